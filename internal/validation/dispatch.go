package validation

import (
	"context"

	"github.com/placrosse/safe-network/internal/logx"
	"github.com/placrosse/safe-network/internal/protocol"
)

// Dispatcher peeks a record's kind, decodes it into the concrete type that
// kind carries, checks that the record's key is coherent with its derived
// address, and routes to the matching validator — all while holding the
// store's per-key lock for the record's duration.
type Dispatcher struct {
	store    RecordStore
	chunks   *ChunkValidator
	registers *RegisterValidator
	spends   *SpendValidator
	log      *logx.Logger
}

func NewDispatcher(s RecordStore, chunks *ChunkValidator, registers *RegisterValidator, spends *SpendValidator, log *logx.Logger) *Dispatcher {
	return &Dispatcher{store: s, chunks: chunks, registers: registers, spends: spends, log: log.With("dispatch")}
}

// ValidateAndStore decodes frame per its kind tag and routes it to the
// matching validator, holding the derived key's lock for the whole
// sequence.
func (d *Dispatcher) ValidateAndStore(ctx context.Context, frame []byte) (protocol.CmdOk, error) {
	kind, err := protocol.PeekKind(frame)
	if err != nil {
		return 0, err
	}

	switch kind {
	case protocol.KindChunk:
		var cwp protocol.ChunkWithPayment
		if err := protocol.Deserialize(frame, protocol.KindChunk, &cwp); err != nil {
			return 0, protocol.ErrDecodeFailed
		}
		key := cwp.Chunk.Name
		if protocol.ChunkName(cwp.Chunk.Bytes) != key {
			return 0, protocol.ErrRecordKeyMismatch
		}
		unlock := d.store.Lock(key)
		defer unlock()
		return d.chunks.ValidateAndStore(ctx, cwp)

	case protocol.KindRegister:
		var signed protocol.SignedRegister
		if err := protocol.Deserialize(frame, protocol.KindRegister, &signed); err != nil {
			return 0, protocol.ErrDecodeFailed
		}
		unlock := d.store.Lock(signed.Address)
		defer unlock()
		return d.registers.ValidateAndStore(signed)

	case protocol.KindDbcSpend:
		var spends []protocol.SignedSpend
		if err := protocol.Deserialize(frame, protocol.KindDbcSpend, &spends); err != nil {
			return 0, protocol.ErrDecodeFailed
		}
		if len(spends) == 0 {
			return 0, protocol.SpendNotStored("no spends submitted")
		}
		dbcId := spends[0].DbcId
		key := protocol.DbcAddress(dbcId)
		unlock := d.store.Lock(key)
		defer unlock()
		return d.spends.ValidateAndStore(ctx, dbcId, spends)

	default:
		return 0, protocol.ErrRecordKindMismatch
	}
}
