package dbc

import (
	"github.com/placrosse/safe-network/internal/protocol"
)

// VerifyFeeOutputId recomputes hash(root_hash || inputs) and compares it to
// tx.Fee.Id. Free fees (no payment obligation) are not checked.
func VerifyFeeOutputId(tx protocol.DbcTransaction) error {
	if tx.Fee.IsFree() {
		return nil
	}
	want := protocol.FeeOutputId(tx.Fee.RootHash, tx.Inputs)
	if want != tx.Fee.Id {
		return &protocol.PaymentProofInvalidFeeOutputError{Id: tx.Fee.Id}
	}
	return nil
}

// VerifyFeeOutputAndProof runs the full payment-proof check: the fee
// output id, then the Merkle audit trail from addrName up to
// tx.Fee.RootHash, then the per-leaf minimum-payment rule. It returns the
// leaf index on success.
func VerifyFeeOutputAndProof(addrName protocol.ContentName, tx protocol.DbcTransaction, auditTrail [][32]byte, path []protocol.PathStep) (int, error) {
	if err := VerifyFeeOutputId(tx); err != nil {
		return 0, err
	}

	leafIndex, computedRoot, err := foldAuditTrail(addrName, auditTrail, path)
	if err != nil {
		return 0, &protocol.InvalidPaymentProofError{AddrName: addrName, Reason: err.Error()}
	}
	if computedRoot != tx.Fee.RootHash {
		return 0, &protocol.InvalidPaymentProofError{AddrName: addrName, Reason: "audit trail does not fold to the fee output's root hash"}
	}

	expected := uint64(leafIndex) + 1
	if tx.Fee.TokenNanos <= uint64(leafIndex) {
		return leafIndex, &protocol.PaymentProofInsufficientAmountError{
			Paid:     tx.Fee.TokenNanos,
			Expected: expected,
		}
	}
	return leafIndex, nil
}

// foldAuditTrail walks the Merkle path from leaf = hash(addrName), folding
// each sibling hash per path[i], and returns the resulting root together
// with the leaf's index in the tree (reconstructed from the left/right
// sequence, matching the order payload addresses were batched in).
func foldAuditTrail(addrName protocol.ContentName, auditTrail [][32]byte, path []protocol.PathStep) (int, [32]byte, error) {
	if len(auditTrail) == 0 || len(auditTrail) != len(path) {
		return 0, [32]byte{}, errMismatchedTrail
	}

	current := protocol.HashBytes(addrName[:])
	index := 0
	for i, sibling := range auditTrail {
		switch path[i] {
		case protocol.PathLeft:
			// current is the right child; sibling is the left child.
			current = protocol.HashBytes(append(append([]byte{}, sibling[:]...), current[:]...))
			index |= 1 << uint(i)
		case protocol.PathRight:
			// current is the left child; sibling is the right child.
			current = protocol.HashBytes(append(append([]byte{}, current[:]...), sibling[:]...))
		default:
			return 0, [32]byte{}, errMismatchedTrail
		}
	}
	return index, current, nil
}

var errMismatchedTrail = trailErr("audit trail and path length mismatch, or empty trail")

type trailErr string

func (e trailErr) Error() string { return string(e) }
