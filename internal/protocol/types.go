// Package protocol defines the wire-level data model shared by every
// validation component: identifiers, record kinds, and the record types
// exchanged between peers.
package protocol

import (
	"bytes"
	"encoding/hex"
)

// NodeId is the 256-bit identifier of a peer, derived from its long-lived
// key pair. It doubles as a DHT location.
type NodeId [32]byte

func (n NodeId) String() string { return hex.EncodeToString(n[:]) }

// ContentName is the 256-bit content address used as a DHT record key.
type ContentName [32]byte

func (c ContentName) String() string { return hex.EncodeToString(c[:]) }

// IsZero reports whether the name was never assigned.
func (c ContentName) IsZero() bool { return c == ContentName{} }

// CmdOk is the success discriminant validators return alongside a nil
// error: a PUT either stores new bytes or discovers the data is already
// present, and both are successful outcomes, not error paths.
type CmdOk int

const (
	CmdStoredSuccessfully CmdOk = iota
	CmdDataAlreadyPresent
)

func (c CmdOk) String() string {
	if c == CmdDataAlreadyPresent {
		return "DataAlreadyPresent"
	}
	return "StoredSuccessfully"
}

// RecordKind tags the payload carried by a Record.
type RecordKind uint8

const (
	KindChunk RecordKind = iota
	KindDbcSpend
	KindRegister
)

func (k RecordKind) String() string {
	switch k {
	case KindChunk:
		return "Chunk"
	case KindDbcSpend:
		return "DbcSpend"
	case KindRegister:
		return "Register"
	default:
		return "Unknown"
	}
}

// Record is the triple every peer stores: a content-addressed key, the kind
// of payload it carries, and the framed payload bytes. The invariant
// key == derive(payload, kind) is enforced by the validation dispatcher and
// validators, not by this type or the codec.
type Record struct {
	Key     ContentName
	Kind    RecordKind
	Payload []byte
}

// Chunk is an immutable content-addressed byte blob. Name is always the
// content hash of Bytes; that invariant is established by whichever
// component constructs a Chunk (self-encryption, an external collaborator,
// is assumed to have already produced correctly-addressed chunks — this
// node only re-derives and checks).
type Chunk struct {
	Name  ContentName
	Bytes []byte
}

// DbcId identifies a digital bearer certificate.
type DbcId [32]byte

func (d DbcId) String() string { return hex.EncodeToString(d[:]) }

// PathStep is one step of a Merkle audit trail.
type PathStep int

const (
	PathLeft PathStep = iota
	PathRight
)

// PaymentProof binds a chunk address to a fee output paid in an on-network
// DBC transaction via a Merkle audit trail.
type PaymentProof struct {
	SpentIDs   []DbcId
	AuditTrail [][32]byte
	Path       []PathStep
}

// ChunkWithPayment is the payload framed under RecordKind Chunk.
type ChunkWithPayment struct {
	Chunk   Chunk
	Payment *PaymentProof // optional; free chunks carry no proof
}

// OutputSpec is one output of a DbcTransaction. The full output commitment
// scheme (blinded amounts, owner keys) is a cryptographic primitive owned by
// the external DBC library; only the identifying fields this core needs to
// reason about are modeled here.
type OutputSpec struct {
	DbcId DbcId
}

// FeeOutput is the transaction output paying storage fees.
type FeeOutput struct {
	Id         [32]byte
	TokenNanos uint64
	RootHash   [32]byte
}

// IsFree reports whether this fee output carries no payment obligation.
func (f FeeOutput) IsFree() bool { return f.TokenNanos == 0 && f.RootHash == [32]byte{} }

// DbcTransaction is the spend transaction a SignedSpend attests to.
type DbcTransaction struct {
	Inputs  []DbcId
	Outputs []OutputSpec
	Fee     FeeOutput
}

// Hash is a content hash of the transaction, used to detect when two
// SignedSpends for the same DbcId disagree about what was spent.
func (tx DbcTransaction) Hash() [32]byte {
	return hashTransaction(tx)
}

// SignedSpend is a witness that a DBC was spent in a specific transaction.
// Two SignedSpends for the same DbcId with different SpentTx hashes are a
// double spend.
type SignedSpend struct {
	DbcId      DbcId
	SpentTx    DbcTransaction
	Signature  []byte
	SigningKey []byte // public key embedded in the parent output being spent
}

// SpentTxHash is a convenience accessor used for deduplication and
// double-spend comparisons.
func (s SignedSpend) SpentTxHash() [32]byte { return s.SpentTx.Hash() }

// Parents returns the DbcIds this spend's transaction consumed, i.e. the
// spends that must themselves verify before this one is trusted.
func (s SignedSpend) Parents() []DbcId { return s.SpentTx.Inputs }

// SignedRegister is an authenticity-signed CRDT register: a single
// last-writer-wins RegisterEntry, merged by MergeEntries, plus a signature
// checked by a RegisterAuthenticator (Ed25519Authenticator by default).
type SignedRegister struct {
	Address    ContentName
	Signature  []byte
	SigningKey []byte
	Entry      RegisterEntry
}

// RegisterEntry is a last-writer-wins CRDT entry: merge picks the entry with
// the higher Counter, breaking ties on Actor and then on Value bytes so the
// merge is deterministic and independent of argument order (commutative,
// associative, idempotent).
type RegisterEntry struct {
	Actor   [32]byte
	Counter uint64
	Value   []byte
}

// precedes reports whether e should lose a merge against other.
func (e RegisterEntry) precedes(other RegisterEntry) bool {
	if e.Counter != other.Counter {
		return e.Counter < other.Counter
	}
	for i := range e.Actor {
		if e.Actor[i] != other.Actor[i] {
			return e.Actor[i] < other.Actor[i]
		}
	}
	return bytes.Compare(e.Value, other.Value) < 0
}

// Equal reports whether e and other carry the same logical write. Value is
// compared by bytes since RegisterEntry embeds a slice and is therefore not
// comparable with ==.
func (e RegisterEntry) Equal(other RegisterEntry) bool {
	return e.Actor == other.Actor && e.Counter == other.Counter && bytes.Equal(e.Value, other.Value)
}

// MergeEntries returns the entry that wins between a and b. It is
// commutative and idempotent by construction (max over a total order), and
// associative because max is associative.
func MergeEntries(a, b RegisterEntry) RegisterEntry {
	if a.precedes(b) {
		return b
	}
	return a
}
