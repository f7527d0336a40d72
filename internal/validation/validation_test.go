package validation

import (
	"context"
	"io"
	"testing"

	"github.com/placrosse/safe-network/internal/dbc"
	"github.com/placrosse/safe-network/internal/logx"
	"github.com/placrosse/safe-network/internal/protocol"
	"github.com/placrosse/safe-network/internal/store"
)

func testLogger() *logx.Logger {
	return logx.New(logx.Config{Level: logx.Fatal + 1, Output: io.Discard})
}

func newTestStore(t *testing.T) RecordStore {
	t.Helper()
	return store.New(t.TempDir(), "peer")
}

type fakePeerLookup struct {
	witnesses map[protocol.DbcId][]protocol.SignedSpend
}

func (f *fakePeerLookup) FetchSpendWitnesses(ctx context.Context, dbcId protocol.DbcId) ([]protocol.SignedSpend, error) {
	return f.witnesses[dbcId], nil
}

func newTestParentFetcher(witnesses map[protocol.DbcId][]protocol.SignedSpend) *dbc.ParentFetcher {
	return dbc.NewParentFetcher(&fakePeerLookup{witnesses: witnesses}, protocol.Ed25519Authenticator{}, testLogger())
}
