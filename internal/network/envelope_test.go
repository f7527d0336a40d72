package network

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/placrosse/safe-network/internal/protocol"
)

func TestEncodeDecodeRequestRoundTrip(t *testing.T) {
	id := uuid.New()
	req := GetChunkRequest{Addr: protocol.ContentName{1}}

	frame, err := encodeRequest(id, req)
	require.NoError(t, err)

	env, err := decodeEnvelope(frame)
	require.NoError(t, err)
	assert.True(t, env.IsRequest)
	assert.Equal(t, id, env.CorrelationID)

	got, err := unmarshalRequest(env)
	require.NoError(t, err)
	assert.Equal(t, req, got)
}

func TestEncodeDecodeResponseRoundTrip(t *testing.T) {
	id := uuid.New()
	res := GetChunkResponse{Chunk: protocol.Chunk{Name: protocol.ContentName{2}, Bytes: []byte("x")}}

	frame, err := encodeResponse(id, res)
	require.NoError(t, err)

	env, err := decodeEnvelope(frame)
	require.NoError(t, err)
	assert.False(t, env.IsRequest)

	got, err := unmarshalResponse(env)
	require.NoError(t, err)
	assert.Equal(t, res, got)
}

func TestMarshalRequestRejectsUnknownType(t *testing.T) {
	_, _, err := marshalRequest(nil)
	assert.Error(t, err)
}

func TestUnmarshalResponseRejectsUnknownTag(t *testing.T) {
	_, err := unmarshalResponse(wireEnvelope{Tag: "NotARealTag"})
	assert.Error(t, err)
}

func TestAllRequestTypesRoundTrip(t *testing.T) {
	reqs := []Request{
		GetChunkRequest{Addr: protocol.ContentName{1}},
		GetSpendRequest{Addr: protocol.DbcId{2}},
		GetReplicatedDataRequest{Requester: protocol.NodeId{3}, Addr: protocol.ContentName{4}},
		ReplicateRequest{Holder: protocol.NodeId{5}, Keys: []protocol.ContentName{{6}}},
		RequestReplicationRequest{Sender: protocol.NodeId{7}},
		SpendDbcRequest{Spend: protocol.SignedSpend{DbcId: protocol.DbcId{8}}},
	}
	for _, req := range reqs {
		frame, err := encodeRequest(uuid.New(), req)
		require.NoError(t, err)
		env, err := decodeEnvelope(frame)
		require.NoError(t, err)
		got, err := unmarshalRequest(env)
		require.NoError(t, err)
		assert.Equal(t, req, got)
	}
}

func TestAllResponseTypesRoundTrip(t *testing.T) {
	resps := []Response{
		GetChunkResponse{Chunk: protocol.Chunk{Name: protocol.ContentName{1}}},
		GetDbcSpendResponse{Spends: []protocol.SignedSpend{{DbcId: protocol.DbcId{2}}}},
		GetReplicatedDataResponse{Data: ReplicatedData{Holder: protocol.NodeId{3}, Frame: []byte("f")}},
		ReplicateResponse{},
		SpendResponse{Ok: protocol.CmdStoredSuccessfully},
	}
	for _, res := range resps {
		frame, err := encodeResponse(uuid.New(), res)
		require.NoError(t, err)
		env, err := decodeEnvelope(frame)
		require.NoError(t, err)
		got, err := unmarshalResponse(env)
		require.NoError(t, err)
		assert.Equal(t, res, got)
	}
}
