package node

import (
	"context"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/semaphore"

	"github.com/placrosse/safe-network/internal/config"
	"github.com/placrosse/safe-network/internal/logx"
	"github.com/placrosse/safe-network/internal/network"
	"github.com/placrosse/safe-network/internal/protocol"
)

// LocalStore is the seam Replication checks before queuing a fetch.
type LocalStore interface {
	Contains(key protocol.ContentName) bool
}

// Replication reacts to a peer join/leave or an explicit list of
// under-replicated keys by queuing asynchronous fetches without blocking
// the event loop, collapsing duplicate fetches by key.
type Replication struct {
	handle     network.Handle
	dispatcher Dispatcher
	store      LocalStore
	cfg        config.Config
	log        *logx.Logger

	sem     *semaphore.Weighted
	breaker *gobreaker.CircuitBreaker

	seenMu sync.Mutex
	seen   *bloom.BloomFilter

	inFlightMu sync.Mutex
	inFlight   map[protocol.ContentName]bool
}

// NewReplication builds a Replication controller. The in-flight map is the
// authoritative check that prevents a concurrent duplicate fetch; the bloom
// filter, checked after it, records every key ever attempted and is never
// cleared, so a false positive can also skip a key that was never tried.
func NewReplication(handle network.Handle, dispatcher Dispatcher, store LocalStore, cfg config.Config, log *logx.Logger) *Replication {
	return &Replication{
		handle:     handle,
		dispatcher: dispatcher,
		store:      store,
		cfg:        cfg,
		log:        log.With("replication"),
		sem:        semaphore.NewWeighted(int64(cfg.ChunksBatchMaxSize)),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "replication-fetch",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
		}),
		seen:     bloom.NewWithEstimates(200_000, 0.01),
		inFlight: make(map[protocol.ContentName]bool),
	}
}

// TryTriggerReplication nudges peer to cross-check what it should
// replicate to or pull from this node. Computing exactly which keys peer
// is now responsible for is the DHT/swarm driver's job; concrete keys this
// node must re-seek arrive separately via LostRecordDetected and are
// handled by TryTriggerReplicationForKey.
func (r *Replication) TryTriggerReplication(ctx context.Context, peer protocol.NodeId, lost bool) {
	if lost {
		r.log.Debug("peer lost, awaiting concrete lost-record keys", logx.String("peer", peer.String()))
		return
	}
	go func() {
		if _, err := r.handle.SendRequest(ctx, peer, network.RequestReplicationRequest{}); err != nil {
			r.log.Debug("replication nudge failed", logx.String("peer", peer.String()), logx.Err(err))
		}
	}()
}

// TryTriggerReplicationForKey queues an asynchronous fetch for key unless
// it's already present locally, already in flight, or (probably) attempted
// before. The fetch goroutine waits for a concurrency slot itself, so the
// caller never blocks.
func (r *Replication) TryTriggerReplicationForKey(ctx context.Context, key protocol.ContentName) {
	if r.store.Contains(key) {
		return
	}
	if !r.claim(key) {
		return
	}
	go func() {
		defer r.release(key)
		if err := r.sem.Acquire(ctx, 1); err != nil {
			return
		}
		defer r.sem.Release(1)
		r.fetchWithRetry(ctx, key)
	}()
}

// claim reports whether this call is the one that gets to fetch key. The
// in-flight map is authoritative for concurrent duplicate fetches; the
// bloom filter additionally suppresses re-fetching any key this node has
// attempted before, even after it leaves the in-flight map. The filter is
// never reset, so that suppression lasts for the Replication's lifetime.
func (r *Replication) claim(key protocol.ContentName) bool {
	r.inFlightMu.Lock()
	defer r.inFlightMu.Unlock()
	if r.inFlight[key] {
		return false
	}

	r.seenMu.Lock()
	alreadyAttempted := r.seen.Test(key[:])
	r.seenMu.Unlock()
	if alreadyAttempted {
		return false
	}

	r.inFlight[key] = true
	return true
}

func (r *Replication) release(key protocol.ContentName) {
	r.inFlightMu.Lock()
	delete(r.inFlight, key)
	r.inFlightMu.Unlock()

	r.seenMu.Lock()
	r.seen.Add(key[:])
	r.seenMu.Unlock()
}

// fetchWithRetry asks every known peer for key, retrying each with bounded
// exponential backoff and short-circuiting via the circuit breaker when
// peers are timing out, until one peer answers or peers are exhausted.
func (r *Replication) fetchWithRetry(ctx context.Context, key protocol.ContentName) {
	peers := r.handle.Peers()
	if len(peers) == 0 {
		r.log.Debug("no peers known, deferring fetch", logx.String("key", key.String()))
		return
	}

	for _, p := range peers {
		policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)

		var frame network.ReplicatedData
		op := func() error {
			res, err := r.breaker.Execute(func() (interface{}, error) {
				return r.handle.SendRequest(ctx, p, network.GetReplicatedDataRequest{Addr: key})
			})
			if err != nil {
				return err
			}
			dataRes, ok := res.(network.GetReplicatedDataResponse)
			if !ok {
				return backoff.Permanent(errUnexpectedResponse)
			}
			if dataRes.ErrMsg != "" {
				return backoff.Permanent(errString(dataRes.ErrMsg))
			}
			frame = dataRes.Data
			return nil
		}

		if err := backoff.Retry(op, policy); err != nil {
			r.log.Debug("fetch attempt failed", logx.String("peer", p.String()), logx.String("key", key.String()), logx.Err(err))
			continue
		}

		if _, err := r.dispatcher.ValidateAndStore(ctx, frame.Frame); err != nil {
			r.log.Warn("replicated data failed validation", logx.String("key", key.String()), logx.Err(err))
			continue
		}
		r.log.Debug("replicated record stored", logx.String("key", key.String()))
		return
	}
}

// notifyFetchResult handles a GetReplicatedData response that arrived too
// late to match any in-flight SendRequest call (its context had already
// given up). Rather than drop it, validate and store it anyway — the data
// is still good even if nothing is left waiting for it. This is the
// Go-native analogue of the original protocol's notify_fetch_result.
func (r *Replication) notifyFetchResult(correlationID uuid.UUID, res network.Response) {
	dataRes, ok := res.(network.GetReplicatedDataResponse)
	if !ok || dataRes.ErrMsg != "" {
		return
	}
	r.log.Debug("late replication response, storing anyway", logx.String("correlation_id", correlationID.String()))
	if _, err := r.dispatcher.ValidateAndStore(context.Background(), dataRes.Data.Frame); err != nil {
		r.log.Debug("late replication response failed validation", logx.Err(err))
	}
}

type errString string

func (e errString) Error() string { return string(e) }

const errUnexpectedResponse = errString("unexpected response type for GetReplicatedData")
