// Package validation implements the chunk validator, register validator,
// spend validator, and the validation dispatcher that routes inbound
// records to them.
package validation

import (
	"context"

	"github.com/placrosse/safe-network/internal/dbc"
	"github.com/placrosse/safe-network/internal/logx"
	"github.com/placrosse/safe-network/internal/protocol"
	"github.com/placrosse/safe-network/internal/store"
)

// RecordStore is the local storage seam validators write through.
type RecordStore interface {
	Contains(key protocol.ContentName) bool
	Get(key protocol.ContentName) (protocol.Record, bool, error)
	Put(rec protocol.Record) error
	Lock(key protocol.ContentName) func()
}

var _ RecordStore = (*store.Store)(nil)

// ChunkValidator validates and stores chunk-with-payment submissions.
type ChunkValidator struct {
	store   RecordStore
	parents *dbc.ParentFetcher
	log     *logx.Logger
}

func NewChunkValidator(s RecordStore, parents *dbc.ParentFetcher, log *logx.Logger) *ChunkValidator {
	return &ChunkValidator{store: s, parents: parents, log: log.With("chunk")}
}

// ValidateAndStore admits a chunk-with-payment submission. Callers must
// already hold the store's per-key lock for cwp.Chunk.Name's derived key.
func (v *ChunkValidator) ValidateAndStore(ctx context.Context, cwp protocol.ChunkWithPayment) (protocol.CmdOk, error) {
	name := cwp.Chunk.Name
	key := name // a chunk's record key is its own content name

	if v.store.Contains(key) {
		v.log.Debug("chunk already present, not overwriting", logx.String("name", name.String()))
		return protocol.CmdDataAlreadyPresent, nil
	}

	if cwp.Payment != nil {
		if err := v.validatePayment(ctx, name, cwp.Payment); err != nil {
			return 0, err
		}
	}

	payload, err := protocol.Serialize(cwp, protocol.KindChunk)
	if err != nil {
		return 0, &protocol.ChunkNotStoredError{Name: name, Err: err}
	}
	rec := protocol.Record{Key: key, Kind: protocol.KindChunk, Payload: payload}
	if err := v.store.Put(rec); err != nil {
		v.log.Warn("storing chunk record failed", logx.String("name", name.String()), logx.Err(err))
		return 0, &protocol.ChunkNotStoredError{Name: name, Err: err}
	}

	return protocol.CmdStoredSuccessfully, nil
}

// validatePayment checks a chunk's payment proof: for every spent id
// referenced by the proof, fetch the network's aggregated view of that
// dbc_id, require exactly one agreeing witness across all of them, then
// hand the shared spend transaction to the payment-proof verifier.
func (v *ChunkValidator) validatePayment(ctx context.Context, addrName protocol.ContentName, proof *protocol.PaymentProof) error {
	if len(proof.SpentIDs) == 0 {
		return protocol.ErrPaymentProofWithoutInputs
	}

	var sharedTx *protocol.DbcTransaction
	for _, spentId := range proof.SpentIDs {
		witnesses := v.parents.GetAggregatedSpendsFromPeers(ctx, spentId)
		switch len(witnesses) {
		case 0:
			return protocol.ErrSpendNotFound
		case 1:
			tx := witnesses[0].SpentTx
			if sharedTx == nil {
				sharedTx = &tx
			} else if tx.Hash() != sharedTx.Hash() {
				return &protocol.PaymentProofTxMismatchError{AddrName: addrName}
			}
		default:
			return &protocol.DoubleSpendAttemptError{First: witnesses[0], Second: witnesses[1]}
		}
	}

	_, err := dbc.VerifyFeeOutputAndProof(addrName, *sharedTx, proof.AuditTrail, proof.Path)
	return err
}
