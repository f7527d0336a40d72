package dbc

import (
	"context"
	"crypto/ed25519"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/placrosse/safe-network/internal/logx"
	"github.com/placrosse/safe-network/internal/protocol"
)

type fakePeerLookup struct {
	witnesses map[protocol.DbcId][]protocol.SignedSpend
	err       error
}

func (f *fakePeerLookup) FetchSpendWitnesses(ctx context.Context, dbcId protocol.DbcId) ([]protocol.SignedSpend, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.witnesses[dbcId], nil
}

func testLogger() *logx.Logger {
	return logx.New(logx.Config{Level: logx.Fatal + 1, Output: io.Discard})
}

func signedSpend(t *testing.T, dbcId protocol.DbcId, tx protocol.DbcTransaction) protocol.SignedSpend {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	digest := tx.Hash()
	return protocol.SignedSpend{
		DbcId:      dbcId,
		SpentTx:    tx,
		Signature:  ed25519.Sign(priv, digest[:]),
		SigningKey: pub,
	}
}

func TestCheckParentSpendsAcceptsAgreeingWitnesses(t *testing.T) {
	parentID := protocol.DbcId{1}
	childID := protocol.DbcId{2}
	parentTx := protocol.DbcTransaction{Outputs: []protocol.OutputSpec{{DbcId: childID}}}
	witness := signedSpend(t, parentID, parentTx)

	child := protocol.SignedSpend{DbcId: childID, SpentTx: protocol.DbcTransaction{Inputs: []protocol.DbcId{parentID}}}

	peers := &fakePeerLookup{witnesses: map[protocol.DbcId][]protocol.SignedSpend{parentID: {witness}}}
	fetcher := NewParentFetcher(peers, protocol.Ed25519Authenticator{}, testLogger())

	assert.NoError(t, fetcher.CheckParentSpends(context.Background(), child))
}

func TestCheckParentSpendsRejectsMissingWitness(t *testing.T) {
	parentID := protocol.DbcId{1}
	childID := protocol.DbcId{2}
	child := protocol.SignedSpend{DbcId: childID, SpentTx: protocol.DbcTransaction{Inputs: []protocol.DbcId{parentID}}}

	peers := &fakePeerLookup{witnesses: map[protocol.DbcId][]protocol.SignedSpend{}}
	fetcher := NewParentFetcher(peers, protocol.Ed25519Authenticator{}, testLogger())

	err := fetcher.CheckParentSpends(context.Background(), child)
	assert.ErrorIs(t, err, protocol.ErrInvalidSpendParents)
}

func TestCheckParentSpendsRejectsParentNotEmittingChild(t *testing.T) {
	parentID := protocol.DbcId{1}
	childID := protocol.DbcId{2}
	otherChild := protocol.DbcId{3}
	parentTx := protocol.DbcTransaction{Outputs: []protocol.OutputSpec{{DbcId: otherChild}}}
	witness := signedSpend(t, parentID, parentTx)

	child := protocol.SignedSpend{DbcId: childID, SpentTx: protocol.DbcTransaction{Inputs: []protocol.DbcId{parentID}}}
	peers := &fakePeerLookup{witnesses: map[protocol.DbcId][]protocol.SignedSpend{parentID: {witness}}}
	fetcher := NewParentFetcher(peers, protocol.Ed25519Authenticator{}, testLogger())

	err := fetcher.CheckParentSpends(context.Background(), child)
	assert.ErrorIs(t, err, protocol.ErrInvalidSpendParents)
}

func TestCheckParentSpendsRejectsConflictingWitnesses(t *testing.T) {
	parentID := protocol.DbcId{1}
	childID := protocol.DbcId{2}
	txA := protocol.DbcTransaction{Outputs: []protocol.OutputSpec{{DbcId: childID}}}
	txB := protocol.DbcTransaction{Outputs: []protocol.OutputSpec{{DbcId: protocol.DbcId{99}}}}
	wA := signedSpend(t, parentID, txA)
	wB := signedSpend(t, parentID, txB)

	child := protocol.SignedSpend{DbcId: childID, SpentTx: protocol.DbcTransaction{Inputs: []protocol.DbcId{parentID}}}
	peers := &fakePeerLookup{witnesses: map[protocol.DbcId][]protocol.SignedSpend{parentID: {wA, wB}}}
	fetcher := NewParentFetcher(peers, protocol.Ed25519Authenticator{}, testLogger())

	err := fetcher.CheckParentSpends(context.Background(), child)
	assert.ErrorIs(t, err, protocol.ErrInvalidSpendParents)
}

func TestGetAggregatedSpendsFromPeersReturnsNilOnLookupError(t *testing.T) {
	peers := &fakePeerLookup{err: errors.New("peer unreachable")}
	fetcher := NewParentFetcher(peers, protocol.Ed25519Authenticator{}, testLogger())

	got := fetcher.GetAggregatedSpendsFromPeers(context.Background(), protocol.DbcId{1})
	assert.Nil(t, got)
}

func TestGetAggregatedSpendsFromPeersAggregates(t *testing.T) {
	id := protocol.DbcId{1}
	w1 := spendFor(id, 1, 1)
	w2 := spendFor(id, 1, 1) // identical tx, same signature: collapses to one
	peers := &fakePeerLookup{witnesses: map[protocol.DbcId][]protocol.SignedSpend{id: {w1, w2}}}
	fetcher := NewParentFetcher(peers, protocol.Ed25519Authenticator{}, testLogger())

	got := fetcher.GetAggregatedSpendsFromPeers(context.Background(), id)
	assert.Len(t, got, 1)
}
