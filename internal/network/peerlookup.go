package network

import (
	"context"
	"fmt"

	"github.com/placrosse/safe-network/internal/dbc"
	"github.com/placrosse/safe-network/internal/protocol"
)

var _ dbc.PeerLookup = (*PeerLookup)(nil)

// PeerLookup adapts the libp2p Host to dbc.PeerLookup: fetching a dbc_id's spend
// witnesses by broadcasting GetSpend to every known peer and merging the
// replies. It is the concrete seam the dbc package's external-collaborator
// interface is wired to at startup.
type PeerLookup struct {
	h *Host
}

func NewPeerLookup(h *Host) *PeerLookup { return &PeerLookup{h: h} }

// FetchSpendWitnesses implements dbc.PeerLookup.
func (p *PeerLookup) FetchSpendWitnesses(ctx context.Context, dbcId protocol.DbcId) ([]protocol.SignedSpend, error) {
	targets := p.h.Peers()

	var all []protocol.SignedSpend
	for _, target := range targets {
		res, err := p.h.SendRequest(ctx, target, GetSpendRequest{Addr: dbcId})
		if err != nil {
			continue
		}
		spendRes, ok := res.(GetDbcSpendResponse)
		if !ok {
			continue
		}
		if spendRes.error() != nil {
			continue
		}
		all = append(all, spendRes.Spends...)
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("%w: no peers returned spend witnesses for %s", protocol.ErrSpendNotFound, dbcId)
	}
	return all, nil
}
