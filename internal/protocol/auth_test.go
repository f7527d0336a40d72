package protocol

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEd25519AuthenticatorVerifySpend(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	tx := DbcTransaction{Inputs: []DbcId{{1}}, Outputs: []OutputSpec{{DbcId: DbcId{2}}}}
	digest := tx.Hash()
	sig := ed25519.Sign(priv, digest[:])

	spend := SignedSpend{DbcId: DbcId{2}, SpentTx: tx, Signature: sig, SigningKey: pub}

	auth := Ed25519Authenticator{}
	assert.NoError(t, auth.VerifySpend(spend))

	tampered := spend
	tampered.Signature = append([]byte{}, sig...)
	tampered.Signature[0] ^= 0xFF
	assert.Error(t, auth.VerifySpend(tampered))
}

func TestEd25519AuthenticatorVerifySpendRejectsBadKeyLength(t *testing.T) {
	spend := SignedSpend{SigningKey: []byte("too-short")}
	assert.Error(t, Ed25519Authenticator{}.VerifySpend(spend))
}

func TestEd25519AuthenticatorVerifyRegister(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	reg := SignedRegister{
		Address:    ContentName{1},
		SigningKey: pub,
		Entry:      RegisterEntry{Actor: [32]byte{1}, Counter: 1, Value: []byte("value")},
	}
	digest := registerDigest(reg)
	reg.Signature = ed25519.Sign(priv, digest)

	auth := Ed25519Authenticator{}
	assert.NoError(t, auth.VerifyRegister(reg))

	tampered := reg
	tampered.Entry.Value = []byte("changed")
	assert.Error(t, auth.VerifyRegister(tampered))
}
