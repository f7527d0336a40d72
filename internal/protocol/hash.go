package protocol

import "crypto/sha256"

// HashBytes is the content-addressing primitive used throughout this core:
// plain SHA-256. It is deliberately not part of the DBC cryptographic
// primitives (signature scheme, Merkle tree builder) that this package
// treats as an external collaborator — content addressing of chunks and
// derivation of record keys is this node's own responsibility.
func HashBytes(b []byte) [32]byte { return sha256.Sum256(b) }

// ChunkName derives a ContentName from chunk bytes.
func ChunkName(bytes []byte) ContentName { return ContentName(HashBytes(bytes)) }

// DbcAddress derives the ContentName a DBC spend record for dbcId is stored
// under.
func DbcAddress(id DbcId) ContentName {
	return ContentName(HashBytes(id[:]))
}

// RegisterAddress is the identity mapping: a register's address is already
// its content name (registers are mutable, so their key is their identity,
// not a hash of their current payload).
func RegisterAddress(addr ContentName) ContentName { return addr }

func hashTransaction(tx DbcTransaction) [32]byte {
	h := sha256.New()
	for _, in := range tx.Inputs {
		h.Write(in[:])
	}
	for _, out := range tx.Outputs {
		h.Write(out.DbcId[:])
	}
	h.Write(tx.Fee.Id[:])
	h.Write(tx.Fee.RootHash[:])
	var nanos [8]byte
	putUint64(nanos[:], tx.Fee.TokenNanos)
	h.Write(nanos[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * uint(i)))
	}
}

// FeeOutputId computes hash(root_hash || concat(input dbc ids)), the
// deterministic id a non-free fee output must carry.
func FeeOutputId(rootHash [32]byte, inputs []DbcId) [32]byte {
	h := sha256.New()
	h.Write(rootHash[:])
	for _, in := range inputs {
		h.Write(in[:])
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
