// Package dbc implements the spend aggregator, payment-proof verifier, and
// parent-spend fetcher — the helpers the spend and chunk validators
// (internal/validation) build on.
package dbc

import (
	"bytes"
	"sort"

	"github.com/placrosse/safe-network/internal/protocol"
)

// MaxSignedSpends bounds the number of witnesses this node ever keeps for a
// single dbc_id.
const MaxSignedSpends = 2

// Aggregate combines possibly-conflicting witnesses for dbcId into at most
// MaxSignedSpends canonical signed spends. It is idempotent and
// commutative: calling it twice, or on a permutation of the same input,
// yields the same result.
//
// Spends whose DbcId does not match dbcId are dropped silently — callers
// are expected to have already filtered by dbc_id; Aggregate itself only
// de-duplicates and resolves the two-witness tie-break.
func Aggregate(spends []protocol.SignedSpend, dbcId protocol.DbcId) []protocol.SignedSpend {
	byTxHash := map[[32]byte]protocol.SignedSpend{}
	var order [][32]byte

	for _, s := range spends {
		if s.DbcId != dbcId {
			continue
		}
		h := s.SpentTxHash()
		if existing, ok := byTxHash[h]; ok {
			// Prefer the lexicographically smaller signature bytes so the
			// choice is deterministic regardless of arrival order (ties
			// within the same transaction hash — duplicate witnesses for
			// the same spend — are otherwise interchangeable).
			if bytes.Compare(s.Signature, existing.Signature) < 0 {
				byTxHash[h] = s
			}
			continue
		}
		byTxHash[h] = s
		order = append(order, h)
	}

	if len(order) <= MaxSignedSpends {
		out := make([]protocol.SignedSpend, 0, len(order))
		for _, h := range order {
			out = append(out, byTxHash[h])
		}
		sortBySignature(out)
		return out
	}

	// More than MaxSignedSpends distinct transactions: pick exactly two,
	// by signature-bytes order, for a stable tie-break every peer agrees
	// on without further coordination.
	all := make([]protocol.SignedSpend, 0, len(order))
	for _, h := range order {
		all = append(all, byTxHash[h])
	}
	sortBySignature(all)
	return all[:MaxSignedSpends]
}

func sortBySignature(spends []protocol.SignedSpend) {
	sort.Slice(spends, func(i, j int) bool {
		return bytes.Compare(spends[i].Signature, spends[j].Signature) < 0
	})
}
