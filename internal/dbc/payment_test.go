package dbc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/placrosse/safe-network/internal/protocol"
)

func buildSingleLeafProof(t *testing.T, addr protocol.ContentName, sibling [32]byte) (protocol.DbcTransaction, protocol.PaymentProof) {
	t.Helper()
	leaf := protocol.HashBytes(addr[:])
	root := protocol.HashBytes(append(append([]byte{}, leaf[:]...), sibling[:]...))
	inputs := []protocol.DbcId{{9}}
	feeId := protocol.FeeOutputId(root, inputs)

	tx := protocol.DbcTransaction{
		Inputs: inputs,
		Fee:    protocol.FeeOutput{Id: feeId, TokenNanos: 5, RootHash: root},
	}
	proof := protocol.PaymentProof{
		SpentIDs:   inputs,
		AuditTrail: [][32]byte{sibling},
		Path:       []protocol.PathStep{protocol.PathRight},
	}
	return tx, proof
}

func TestVerifyFeeOutputAndProofSucceeds(t *testing.T) {
	addr := protocol.ContentName{1}
	tx, proof := buildSingleLeafProof(t, addr, [32]byte{7})

	leafIndex, err := VerifyFeeOutputAndProof(addr, tx, proof.AuditTrail, proof.Path)
	require.NoError(t, err)
	assert.Equal(t, 0, leafIndex)
}

func TestVerifyFeeOutputAndProofRejectsWrongFeeId(t *testing.T) {
	addr := protocol.ContentName{1}
	tx, proof := buildSingleLeafProof(t, addr, [32]byte{7})
	tx.Fee.Id[0] ^= 0xFF

	_, err := VerifyFeeOutputAndProof(addr, tx, proof.AuditTrail, proof.Path)
	assert.Error(t, err)
}

func TestVerifyFeeOutputAndProofRejectsBadRoot(t *testing.T) {
	addr := protocol.ContentName{1}
	tx, proof := buildSingleLeafProof(t, addr, [32]byte{7})
	tx.Fee.RootHash[0] ^= 0xFF
	// Recompute Fee.Id for the altered root so the fee-output-id check
	// passes and the failure comes from the audit trail not folding to
	// RootHash.
	tx.Fee.Id = protocol.FeeOutputId(tx.Fee.RootHash, tx.Inputs)
	proof.AuditTrail[0][0] ^= 0xFF

	_, err := VerifyFeeOutputAndProof(addr, tx, proof.AuditTrail, proof.Path)
	assert.Error(t, err)
}

func TestVerifyFeeOutputAndProofRejectsInsufficientAmount(t *testing.T) {
	addr := protocol.ContentName{1}
	tx, proof := buildSingleLeafProof(t, addr, [32]byte{7})
	tx.Fee.TokenNanos = 0

	_, err := VerifyFeeOutputAndProof(addr, tx, proof.AuditTrail, proof.Path)
	assert.Error(t, err)
	var insufficient *protocol.PaymentProofInsufficientAmountError
	assert.ErrorAs(t, err, &insufficient)
}

func TestVerifyFeeOutputAndProofRejectsMismatchedTrailLength(t *testing.T) {
	addr := protocol.ContentName{1}
	tx, _ := buildSingleLeafProof(t, addr, [32]byte{7})

	_, err := VerifyFeeOutputAndProof(addr, tx, nil, nil)
	assert.Error(t, err)
}

func TestVerifyFeeOutputIdSkipsFreeFees(t *testing.T) {
	tx := protocol.DbcTransaction{Fee: protocol.FeeOutput{}}
	assert.NoError(t, VerifyFeeOutputId(tx))
}
