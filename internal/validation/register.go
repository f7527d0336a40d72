package validation

import (
	"github.com/placrosse/safe-network/internal/logx"
	"github.com/placrosse/safe-network/internal/protocol"
)

// RegisterValidator validates and stores signed register submissions.
type RegisterValidator struct {
	store RecordStore
	auth  protocol.RegisterAuthenticator
	log   *logx.Logger
}

func NewRegisterValidator(s RecordStore, auth protocol.RegisterAuthenticator, log *logx.Logger) *RegisterValidator {
	if auth == nil {
		auth = protocol.Ed25519Authenticator{}
	}
	return &RegisterValidator{store: s, auth: auth, log: log.With("register")}
}

// ValidateAndStore verifies authenticity, then admits the entry as-is if
// nothing is stored yet, else merges with the local entry under the CRDT's
// (Counter, Actor) order and stores the result only if it actually changed.
// Callers must already hold the store's per-key lock for signed.Address.
func (v *RegisterValidator) ValidateAndStore(signed protocol.SignedRegister) (protocol.CmdOk, error) {
	if err := v.auth.VerifyRegister(signed); err != nil {
		return 0, err
	}

	key := signed.Address

	rec, found, err := v.store.Get(key)
	if err != nil {
		return 0, &protocol.RegisterNotStoredError{Addr: key, Err: err}
	}

	merged := signed.Entry
	if found {
		if rec.Kind != protocol.KindRegister {
			return 0, protocol.ErrRecordKindMismatch
		}
		var local protocol.SignedRegister
		if err := protocol.Deserialize(rec.Payload, protocol.KindRegister, &local); err != nil {
			return 0, protocol.ErrDecodeFailed
		}
		merged = protocol.MergeEntries(local.Entry, signed.Entry)
		if merged.Equal(local.Entry) {
			v.log.Debug("register merge produced no change", logx.String("addr", key.String()))
			return protocol.CmdDataAlreadyPresent, nil
		}
	}

	out := signed
	out.Entry = merged
	payload, err := protocol.Serialize(out, protocol.KindRegister)
	if err != nil {
		return 0, &protocol.RegisterNotStoredError{Addr: key, Err: err}
	}
	if err := v.store.Put(protocol.Record{Key: key, Kind: protocol.KindRegister, Payload: payload}); err != nil {
		return 0, &protocol.RegisterNotStoredError{Addr: key, Err: err}
	}

	return protocol.CmdStoredSuccessfully, nil
}
