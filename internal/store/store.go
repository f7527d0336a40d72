// Package store implements the local per-peer record store: exactly one
// writer per key at a time, many concurrent readers, backed by disk under
// node/<peer_id>/records/<hex(key)>.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/placrosse/safe-network/internal/protocol"
)

// Store is this peer's local record store.
type Store struct {
	rootDir string
	peerID  string

	locksMu sync.Mutex
	locks   map[protocol.ContentName]*sync.Mutex

	cacheMu sync.RWMutex
	cache   map[protocol.ContentName]protocol.Record
}

// New builds a Store rooted at rootDir/node/<peerID>/records.
func New(rootDir, peerID string) *Store {
	return &Store{
		rootDir: rootDir,
		peerID:  peerID,
		locks:   make(map[protocol.ContentName]*sync.Mutex),
		cache:   make(map[protocol.ContentName]protocol.Record),
	}
}

// PathFor returns the on-disk path a record under key is framed at.
func (s *Store) PathFor(key protocol.ContentName) string {
	return filepath.Join(s.rootDir, "node", s.peerID, "records", key.String())
}

// Lock serializes all access to key: the validation dispatcher holds this
// for the full validate-then-store sequence, not just the final write, so
// two concurrent PUTs to the same key can't interleave. The returned func
// releases the lock.
func (s *Store) Lock(key protocol.ContentName) func() {
	s.locksMu.Lock()
	m, ok := s.locks[key]
	if !ok {
		m = &sync.Mutex{}
		s.locks[key] = m
	}
	s.locksMu.Unlock()

	m.Lock()
	return m.Unlock
}

// Contains is the fast existence probe used by the chunk validator's
// overwrite short-circuit: it must not need to read the payload off disk.
func (s *Store) Contains(key protocol.ContentName) bool {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	_, ok := s.cache[key]
	return ok
}

// Get returns a point-in-time snapshot of the record at key, if present.
func (s *Store) Get(key protocol.ContentName) (protocol.Record, bool, error) {
	s.cacheMu.RLock()
	rec, ok := s.cache[key]
	s.cacheMu.RUnlock()
	if !ok {
		return protocol.Record{}, false, nil
	}
	return rec, true, nil
}

// Put writes rec to disk and publishes it to the in-memory index. Callers
// must hold Lock(rec.Key) for the duration of the validation that produced
// rec.
func (s *Store) Put(rec protocol.Record) error {
	path := s.PathFor(rec.Key)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating record directory: %w", err)
	}
	// rec.Payload is already the framed wire bytes (version | kind | CBOR);
	// the store only persists, it does not re-encode.
	if err := os.WriteFile(path, rec.Payload, 0o600); err != nil {
		return fmt.Errorf("writing record: %w", err)
	}

	s.cacheMu.Lock()
	s.cache[rec.Key] = rec
	s.cacheMu.Unlock()
	return nil
}
