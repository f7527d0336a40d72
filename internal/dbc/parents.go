package dbc

import (
	"context"
	"fmt"

	"github.com/sony/gobreaker"

	"github.com/placrosse/safe-network/internal/logx"
	"github.com/placrosse/safe-network/internal/protocol"
)

// PeerLookup is the DHT capability this package needs: fetch every witness
// spend a peer holds for a given dbc_id. The concrete swarm/DHT driver
// (internal/network) is an external collaborator; this interface is the
// seam.
type PeerLookup interface {
	FetchSpendWitnesses(ctx context.Context, dbcId protocol.DbcId) ([]protocol.SignedSpend, error)
}

// ParentFetcher checks that a spend's parents verify, and pulls the
// network's current aggregated view of a dbc_id.
type ParentFetcher struct {
	peers   PeerLookup
	auth    protocol.SpendAuthenticator
	breaker *gobreaker.CircuitBreaker
	log     *logx.Logger
}

// NewParentFetcher builds a ParentFetcher over peers. A circuit breaker
// guards the lookups: a peer (or peer set) that is timing out on every
// request trips the breaker so repeated parent/witness checks fail fast
// instead of serializing behind a string of doomed round trips — a slow
// handler must not block the rest of validation.
func NewParentFetcher(peers PeerLookup, auth protocol.SpendAuthenticator, log *logx.Logger) *ParentFetcher {
	if auth == nil {
		auth = protocol.Ed25519Authenticator{}
	}
	return &ParentFetcher{
		peers: peers,
		auth:  auth,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "dbc-parent-fetch",
			MaxRequests: 1,
		}),
		log: log,
	}
}

func (f *ParentFetcher) fetch(ctx context.Context, dbcId protocol.DbcId) ([]protocol.SignedSpend, error) {
	result, err := f.breaker.Execute(func() (interface{}, error) {
		return f.peers.FetchSpendWitnesses(ctx, dbcId)
	})
	if err != nil {
		return nil, err
	}
	spends, _ := result.([]protocol.SignedSpend)
	return spends, nil
}

// CheckParentSpends verifies that every parent_dbc_id of signedSpend
// resolves to an agreeing witness set whose spent_tx emits signedSpend's
// dbc_id among its outputs, each signed by a verifying signature.
func (f *ParentFetcher) CheckParentSpends(ctx context.Context, signedSpend protocol.SignedSpend) error {
	for _, parentId := range signedSpend.Parents() {
		witnesses, err := f.fetch(ctx, parentId)
		if err != nil {
			return fmt.Errorf("%w: fetching parent %s: %v", protocol.ErrInvalidSpendParents, parentId, err)
		}
		if len(witnesses) == 0 {
			return fmt.Errorf("%w: no witness found for parent %s", protocol.ErrInvalidSpendParents, parentId)
		}

		txHash := witnesses[0].SpentTxHash()
		for _, w := range witnesses[1:] {
			if w.SpentTxHash() != txHash {
				return fmt.Errorf("%w: parent %s has conflicting witnesses", protocol.ErrInvalidSpendParents, parentId)
			}
		}

		parentTx := witnesses[0].SpentTx
		if !emits(parentTx, signedSpend.DbcId) {
			return fmt.Errorf("%w: parent %s's spend does not emit child %s", protocol.ErrInvalidSpendParents, parentId, signedSpend.DbcId)
		}
		for _, w := range witnesses {
			if err := f.auth.VerifySpend(w); err != nil {
				return fmt.Errorf("%w: parent %s witness signature invalid: %v", protocol.ErrInvalidSpendParents, parentId, err)
			}
		}
	}
	return nil
}

func emits(tx protocol.DbcTransaction, dbcId protocol.DbcId) bool {
	for _, out := range tx.Outputs {
		if out.DbcId == dbcId {
			return true
		}
	}
	return false
}

// GetAggregatedSpendsFromPeers looks up every witness peers hold for
// dbcId, aggregates them, and returns — possibly empty, never an error,
// since "no witness" is a normal outcome the caller (chunk/spend
// validation) is expected to handle explicitly.
func (f *ParentFetcher) GetAggregatedSpendsFromPeers(ctx context.Context, dbcId protocol.DbcId) []protocol.SignedSpend {
	witnesses, err := f.fetch(ctx, dbcId)
	if err != nil {
		f.log.Warn("spend witness lookup failed, treating as no witness", logx.String("dbc_id", dbcId.String()), logx.Err(err))
		return nil
	}
	return Aggregate(witnesses, dbcId)
}
