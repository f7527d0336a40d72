package network

import (
	"sync"

	"github.com/google/uuid"
)

// pendingTable correlates outbound requests with their eventual responses:
// no response may ever be routed to the wrong channel. A uuid is minted
// per outbound request and carried on the wire so the response can be
// routed back to the exact channel that is waiting for it, even if two
// requests to the same peer are in flight concurrently.
type pendingTable struct {
	mu      sync.Mutex
	waiters map[uuid.UUID]chan Response
}

func newPendingTable() *pendingTable {
	return &pendingTable{waiters: make(map[uuid.UUID]chan Response)}
}

// register mints a correlation id and a one-shot reply channel for it.
func (t *pendingTable) register() (uuid.UUID, chan Response) {
	id := uuid.New()
	ch := make(chan Response, 1)
	t.mu.Lock()
	t.waiters[id] = ch
	t.mu.Unlock()
	return id, ch
}

// complete routes res to id's waiter, if it is still pending. It reports
// whether a waiter was found; callers should surface an unmatched response
// to the node event loop instead of dropping it outright.
func (t *pendingTable) complete(id uuid.UUID, res Response) bool {
	t.mu.Lock()
	ch, ok := t.waiters[id]
	if ok {
		delete(t.waiters, id)
	}
	t.mu.Unlock()
	if ok {
		ch <- res
	}
	return ok
}

// forget removes id's waiter without delivering anything, used when a
// SendRequest call gives up on its context deadline.
func (t *pendingTable) forget(id uuid.UUID) {
	t.mu.Lock()
	delete(t.waiters, id)
	t.mu.Unlock()
}
