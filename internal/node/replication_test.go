package node

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/placrosse/safe-network/internal/network"
	"github.com/placrosse/safe-network/internal/protocol"
)

type fakeLocalStore struct {
	present map[protocol.ContentName]bool
}

func (f *fakeLocalStore) Contains(key protocol.ContentName) bool {
	return f.present != nil && f.present[key]
}

func TestClaimPreventsDuplicateInFlightFetch(t *testing.T) {
	r := NewReplication(newFakeHandle(), &fakeDispatcher{}, &fakeLocalStore{}, testConfig(), testLogger())
	key := protocol.ContentName{1}

	assert.True(t, r.claim(key))
	assert.False(t, r.claim(key))

	r.release(key)
	assert.False(t, r.claim(key), "bloom filter should suppress re-attempting a key already tried")
}

func TestTryTriggerReplicationForKeySkipsWhenAlreadyStored(t *testing.T) {
	handle := newFakeHandle()
	r := NewReplication(handle, &fakeDispatcher{}, &fakeLocalStore{present: map[protocol.ContentName]bool{{1}: true}}, testConfig(), testLogger())

	r.TryTriggerReplicationForKey(context.Background(), protocol.ContentName{1})

	assert.Empty(t, handle.sentRequests())
}

func TestTryTriggerReplicationForKeyFetchesFromPeer(t *testing.T) {
	handle := newFakeHandle()
	handle.peers = []protocol.NodeId{{2}}
	key := protocol.ContentName{1}
	frame := []byte("framed-record")
	handle.response = network.GetReplicatedDataResponse{Data: network.ReplicatedData{Holder: protocol.NodeId{2}, Frame: frame}}

	dispatcher := &fakeDispatcher{}
	r := NewReplication(handle, dispatcher, &fakeLocalStore{}, testConfig(), testLogger())

	r.TryTriggerReplicationForKey(context.Background(), key)

	require.Eventually(t, func() bool {
		dispatcher.mu.Lock()
		defer dispatcher.mu.Unlock()
		return len(dispatcher.frames) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestTryTriggerReplicationSkipsLostPeerWithoutConcreteKeys(t *testing.T) {
	handle := newFakeHandle()
	r := NewReplication(handle, &fakeDispatcher{}, &fakeLocalStore{}, testConfig(), testLogger())

	r.TryTriggerReplication(context.Background(), protocol.NodeId{1}, true)

	assert.Empty(t, handle.sentRequests())
}

func TestTryTriggerReplicationNudgesPeerWhenNotLost(t *testing.T) {
	handle := newFakeHandle()
	r := NewReplication(handle, &fakeDispatcher{}, &fakeLocalStore{}, testConfig(), testLogger())

	r.TryTriggerReplication(context.Background(), protocol.NodeId{1}, false)

	require.Eventually(t, func() bool {
		return len(handle.sentRequests()) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestNotifyFetchResultStoresLateGoodResponse(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	r := NewReplication(newFakeHandle(), dispatcher, &fakeLocalStore{}, testConfig(), testLogger())

	res := network.GetReplicatedDataResponse{Data: network.ReplicatedData{Frame: []byte("late")}}
	r.notifyFetchResult(uuid.New(), res)

	assert.Len(t, dispatcher.frames, 1)
}

func TestNotifyFetchResultIgnoresErrorResponse(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	r := NewReplication(newFakeHandle(), dispatcher, &fakeLocalStore{}, testConfig(), testLogger())

	res := network.GetReplicatedDataResponse{ErrMsg: "not found"}
	r.notifyFetchResult(uuid.New(), res)

	assert.Empty(t, dispatcher.frames)
}
