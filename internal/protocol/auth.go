package protocol

import (
	"crypto/ed25519"
	"fmt"
)

// SpendAuthenticator verifies a SignedSpend's signature. The DBC signature
// scheme proper is an external collaborator; this interface is the seam a
// real deployment plugs it in through. Ed25519Authenticator below is the
// default, self-contained implementation used when no external scheme is
// wired in.
type SpendAuthenticator interface {
	VerifySpend(s SignedSpend) error
}

// RegisterAuthenticator verifies a SignedRegister's signature.
type RegisterAuthenticator interface {
	VerifyRegister(r SignedRegister) error
}

// Ed25519Authenticator implements SpendAuthenticator and
// RegisterAuthenticator by checking a detached signature over the
// content being attested, using the key embedded on the value itself.
type Ed25519Authenticator struct{}

func (Ed25519Authenticator) VerifySpend(s SignedSpend) error {
	if len(s.SigningKey) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: bad signing key length", ErrInvalidSpendSignature(s.DbcId))
	}
	digest := s.SpentTxHash()
	if !ed25519.Verify(ed25519.PublicKey(s.SigningKey), digest[:], s.Signature) {
		return ErrInvalidSpendSignature(s.DbcId)
	}
	return nil
}

func (Ed25519Authenticator) VerifyRegister(r SignedRegister) error {
	if len(r.SigningKey) != ed25519.PublicKeySize {
		return ErrInvalidRegister
	}
	digest := registerDigest(r)
	if !ed25519.Verify(ed25519.PublicKey(r.SigningKey), digest, r.Signature) {
		return ErrInvalidRegister
	}
	return nil
}

func registerDigest(r SignedRegister) []byte {
	h := HashBytes(append(append([]byte{}, r.Address[:]...), r.Entry.Value...))
	return h[:]
}

// ErrInvalidSpendSignature builds the typed signature-verification error for
// dbcId. Exported as a function (not a package-level sentinel) because it
// carries the offending id.
func ErrInvalidSpendSignature(dbcId DbcId) error {
	return &InvalidSpendSignatureErr{DbcId: dbcId}
}

// InvalidSpendSignatureErr reports that a spend's signature did not verify.
type InvalidSpendSignatureErr struct {
	DbcId DbcId
}

func (e *InvalidSpendSignatureErr) Error() string {
	return fmt.Sprintf("invalid signature for spend %s", e.DbcId)
}
