package store

import (
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/placrosse/safe-network/internal/protocol"
)

func TestStorePutGetContains(t *testing.T) {
	s := New(t.TempDir(), "peer-a")
	key := protocol.ContentName{1}

	assert.False(t, s.Contains(key))
	_, found, err := s.Get(key)
	require.NoError(t, err)
	assert.False(t, found)

	rec := protocol.Record{Key: key, Kind: protocol.KindChunk, Payload: []byte("framed-bytes")}
	require.NoError(t, s.Put(rec))

	assert.True(t, s.Contains(key))
	got, found, err := s.Get(key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, rec, got)
}

func TestStorePutPersistsToDisk(t *testing.T) {
	s := New(t.TempDir(), "peer-a")
	key := protocol.ContentName{2}
	rec := protocol.Record{Key: key, Kind: protocol.KindChunk, Payload: []byte("bytes")}
	require.NoError(t, s.Put(rec))

	data, err := os.ReadFile(s.PathFor(key))
	require.NoError(t, err)
	assert.Equal(t, rec.Payload, data)
}

func TestStoreLockSerializesSameKey(t *testing.T) {
	s := New(t.TempDir(), "peer-a")
	key := protocol.ContentName{3}

	var mu sync.Mutex
	order := make([]int, 0, 2)

	unlock1 := s.Lock(key)
	done := make(chan struct{})
	go func() {
		unlock2 := s.Lock(key)
		mu.Lock()
		order = append(order, 2)
		mu.Unlock()
		unlock2()
		close(done)
	}()

	mu.Lock()
	order = append(order, 1)
	mu.Unlock()
	unlock1()
	<-done

	assert.Equal(t, []int{1, 2}, order)
}

func TestStoreLockIsPerKey(t *testing.T) {
	s := New(t.TempDir(), "peer-a")
	unlockA := s.Lock(protocol.ContentName{4})
	defer unlockA()

	acquired := make(chan struct{})
	go func() {
		unlockB := s.Lock(protocol.ContentName{5})
		close(acquired)
		unlockB()
	}()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("expected distinct keys to lock independently")
	}
}
