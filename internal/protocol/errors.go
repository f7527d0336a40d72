package protocol

import (
	"errors"
	"fmt"
)

// Sentinel framing, storage, and authenticity errors that carry no extra
// data. They are compared with errors.Is.
var (
	ErrRecordKeyMismatch      = errors.New("record key does not match derived key")
	ErrRecordKindMismatch     = errors.New("record kind mismatch")
	ErrDecodeFailed           = errors.New("record payload decode failed")
	ErrUnsupportedWireVersion = errors.New("unsupported wire version")

	ErrInvalidRegister           = errors.New("register signature invalid")
	ErrInvalidSpendParents       = errors.New("spend parents failed validation")
	ErrPaymentProofWithoutInputs = errors.New("payment proof references no inputs")

	ErrSpendNotFound           = errors.New("spend not found")
	ErrMaxSignedSpendsExceeded = errors.New("more signed spends than max signed spends")
)

// ChunkNotStoredError wraps a storage failure while writing a chunk record.
type ChunkNotStoredError struct {
	Name ContentName
	Err  error
}

func (e *ChunkNotStoredError) Error() string {
	return fmt.Sprintf("chunk %s not stored: %v", e.Name, e.Err)
}
func (e *ChunkNotStoredError) Unwrap() error { return e.Err }

// RegisterNotStoredError wraps a storage failure while writing a register.
type RegisterNotStoredError struct {
	Addr ContentName
	Err  error
}

func (e *RegisterNotStoredError) Error() string {
	return fmt.Sprintf("register %s not stored: %v", e.Addr, e.Err)
}
func (e *RegisterNotStoredError) Unwrap() error { return e.Err }

// SpendNotStoredError carries the free-text reason the original protocol
// returns for an un-storable spend submission (length mismatch, dbc_id
// mismatch, empty input, storage failure).
type SpendNotStoredError struct {
	Reason string
}

func (e *SpendNotStoredError) Error() string { return fmt.Sprintf("spend not stored: %s", e.Reason) }

func SpendNotStored(reason string) error { return &SpendNotStoredError{Reason: reason} }

// InvalidPaymentProofError reports a Merkle audit trail that does not fold
// to the fee output's root hash.
type InvalidPaymentProofError struct {
	AddrName ContentName
	Reason   string
}

func (e *InvalidPaymentProofError) Error() string {
	return fmt.Sprintf("invalid payment proof for %s: %s", e.AddrName, e.Reason)
}

// PaymentProofTxMismatchError reports that the witnesses collected for a
// payment's spent ids disagree about the spend transaction, or disagree
// with the transaction supplied to the verifier.
type PaymentProofTxMismatchError struct {
	AddrName ContentName
}

func (e *PaymentProofTxMismatchError) Error() string {
	return fmt.Sprintf("payment proof tx mismatch for %s", e.AddrName)
}

// PaymentProofInvalidFeeOutputError reports that a transaction's fee output
// id does not match hash(root_hash || inputs).
type PaymentProofInvalidFeeOutputError struct {
	Id [32]byte
}

func (e *PaymentProofInvalidFeeOutputError) Error() string {
	return fmt.Sprintf("invalid fee output id %x", e.Id)
}

// PaymentProofInsufficientAmountError reports that the fee paid does not
// cover the leaf's position in the batch.
type PaymentProofInsufficientAmountError struct {
	Paid     uint64
	Expected uint64
}

func (e *PaymentProofInsufficientAmountError) Error() string {
	return fmt.Sprintf("payment proof insufficient amount: paid %d, expected %d", e.Paid, e.Expected)
}

// DoubleSpendAttemptError carries the two conflicting witnesses so the
// caller can broadcast evidence; it is returned after the witnesses have
// already been persisted.
type DoubleSpendAttemptError struct {
	First  SignedSpend
	Second SignedSpend
}

func (e *DoubleSpendAttemptError) Error() string {
	return fmt.Sprintf("double spend attempt detected for dbc %s", e.First.DbcId)
}

// NotEnoughChunksRetrievedError is the intentional error-compaction result
// of a batched chunk fetch: individual per-chunk causes are collapsed into
// one error carrying the set of missing names. The first underlying cause
// should still be logged by the caller.
type NotEnoughChunksRetrievedError struct {
	Expected int
	Retrieved int
	Missing  []ContentName
}

func (e *NotEnoughChunksRetrievedError) Error() string {
	return fmt.Sprintf("not enough chunks retrieved: expected %d, got %d, missing %d", e.Expected, e.Retrieved, len(e.Missing))
}

// TimeoutError marks an outbound network query's deadline expiry. Callers
// must treat it as SpendNotFound / ChunkNotFound per the caller's context.
type TimeoutError struct {
	Operation string
}

func (e *TimeoutError) Error() string { return fmt.Sprintf("%s: operation timed out", e.Operation) }
