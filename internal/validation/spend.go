package validation

import (
	"context"

	"github.com/placrosse/safe-network/internal/dbc"
	"github.com/placrosse/safe-network/internal/logx"
	"github.com/placrosse/safe-network/internal/protocol"
)

// SpendValidator validates and stores dbc spend submissions.
type SpendValidator struct {
	store   RecordStore
	parents *dbc.ParentFetcher
	auth    protocol.SpendAuthenticator
	log     *logx.Logger
}

func NewSpendValidator(s RecordStore, parents *dbc.ParentFetcher, auth protocol.SpendAuthenticator, log *logx.Logger) *SpendValidator {
	if auth == nil {
		auth = protocol.Ed25519Authenticator{}
	}
	return &SpendValidator{store: s, parents: parents, auth: auth, log: log.With("spend")}
}

// ValidateAndStore admits a spend submission for dbcId. Callers must
// already hold the store's per-key lock for dbcId's derived address.
//
// The submitted spends are merged with whatever this node already holds
// for dbcId first. If that merge leaves a single surviving witness, it is
// the honest-spend path: verify its signature, its parents, and its fee
// output id, then poll peers for any witness they hold and fold that in
// too, so one honest PUT still surfaces a conflicting witness already on
// the network. If the merge already disagrees — two or more distinct
// transactions for the same dbc_id — that disagreement is itself the
// evidence: store it as-is and report DoubleSpendAttempt without
// re-checking parents or re-polling the network, since nothing either
// check could find would change the fact that the network already
// disagrees.
func (v *SpendValidator) ValidateAndStore(ctx context.Context, dbcId protocol.DbcId, spends []protocol.SignedSpend) (protocol.CmdOk, error) {
	if len(spends) == 0 {
		return 0, protocol.SpendNotStored("no spends submitted")
	}
	if len(spends) > dbc.MaxSignedSpends {
		return 0, protocol.ErrMaxSignedSpendsExceeded
	}
	for _, s := range spends {
		if s.DbcId != dbcId {
			return 0, protocol.SpendNotStored("dbc_id mismatch among submitted spends")
		}
	}

	key := protocol.DbcAddress(dbcId)

	var local []protocol.SignedSpend
	rec, found, err := v.store.Get(key)
	if err != nil {
		return 0, protocol.SpendNotStored(err.Error())
	}
	if found {
		if rec.Kind != protocol.KindDbcSpend {
			return 0, protocol.ErrRecordKindMismatch
		}
		if err := protocol.Deserialize(rec.Payload, protocol.KindDbcSpend, &local); err != nil {
			return 0, protocol.SpendNotStored("decode failed: " + err.Error())
		}
	}

	merged := dbc.Aggregate(append(append([]protocol.SignedSpend{}, local...), spends...), dbcId)

	if len(merged) == 1 {
		s := merged[0]
		if err := v.auth.VerifySpend(s); err != nil {
			return 0, protocol.SpendNotStored("invalid spend signature: " + err.Error())
		}
		if err := v.parents.CheckParentSpends(ctx, s); err != nil {
			return 0, protocol.SpendNotStored(err.Error())
		}
		if err := dbc.VerifyFeeOutputId(s.SpentTx); err != nil {
			return 0, protocol.SpendNotStored(err.Error())
		}

		peerWitnesses := v.parents.GetAggregatedSpendsFromPeers(ctx, dbcId)
		merged = dbc.Aggregate(append(append([]protocol.SignedSpend{}, merged...), peerWitnesses...), dbcId)
	}

	newCount := 0
	for _, m := range merged {
		seen := false
		for _, l := range local {
			if l.SpentTxHash() == m.SpentTxHash() {
				seen = true
				break
			}
		}
		if !seen {
			newCount++
		}
	}
	if newCount == 0 {
		v.log.Debug("spend already known, nothing new", logx.String("dbc_id", dbcId.String()))
		return protocol.CmdDataAlreadyPresent, nil
	}

	payload, err := protocol.Serialize(merged, protocol.KindDbcSpend)
	if err != nil {
		return 0, protocol.SpendNotStored(err.Error())
	}
	if err := v.store.Put(protocol.Record{Key: key, Kind: protocol.KindDbcSpend, Payload: payload}); err != nil {
		return 0, protocol.SpendNotStored(err.Error())
	}

	if len(merged) > 1 {
		return protocol.CmdStoredSuccessfully, &protocol.DoubleSpendAttemptError{First: merged[0], Second: merged[1]}
	}
	return protocol.CmdStoredSuccessfully, nil
}
