package network

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

// wireEnvelope is what actually crosses a libp2p stream: a correlation id
// (so the response lands on the right pending-fetch waiter) plus a type
// tag and the CBOR body of whichever concrete Request/Response it carries.
// Requests and responses share one envelope shape; IsRequest disambiguates
// which side of the Request/Response closed set Tag belongs to.
type wireEnvelope struct {
	CorrelationID uuid.UUID
	IsRequest     bool
	Tag           string
	Body          []byte
}

func encodeRequest(id uuid.UUID, req Request) ([]byte, error) {
	tag, body, err := marshalRequest(req)
	if err != nil {
		return nil, err
	}
	return cbor.Marshal(wireEnvelope{CorrelationID: id, IsRequest: true, Tag: tag, Body: body})
}

func encodeResponse(id uuid.UUID, res Response) ([]byte, error) {
	tag, body, err := marshalResponse(res)
	if err != nil {
		return nil, err
	}
	return cbor.Marshal(wireEnvelope{CorrelationID: id, IsRequest: false, Tag: tag, Body: body})
}

func decodeEnvelope(b []byte) (wireEnvelope, error) {
	var env wireEnvelope
	if err := cbor.Unmarshal(b, &env); err != nil {
		return wireEnvelope{}, fmt.Errorf("decoding network envelope: %w", err)
	}
	return env, nil
}

func marshalRequest(req Request) (string, []byte, error) {
	var tag string
	switch req.(type) {
	case GetChunkRequest:
		tag = "GetChunk"
	case GetSpendRequest:
		tag = "GetSpend"
	case GetReplicatedDataRequest:
		tag = "GetReplicatedData"
	case ReplicateRequest:
		tag = "Replicate"
	case RequestReplicationRequest:
		tag = "RequestReplication"
	case SpendDbcRequest:
		tag = "SpendDbc"
	default:
		return "", nil, fmt.Errorf("unrecognized request type %T", req)
	}
	body, err := cbor.Marshal(req)
	return tag, body, err
}

func unmarshalRequest(env wireEnvelope) (Request, error) {
	switch env.Tag {
	case "GetChunk":
		var r GetChunkRequest
		return r, cbor.Unmarshal(env.Body, &r)
	case "GetSpend":
		var r GetSpendRequest
		return r, cbor.Unmarshal(env.Body, &r)
	case "GetReplicatedData":
		var r GetReplicatedDataRequest
		return r, cbor.Unmarshal(env.Body, &r)
	case "Replicate":
		var r ReplicateRequest
		return r, cbor.Unmarshal(env.Body, &r)
	case "RequestReplication":
		var r RequestReplicationRequest
		return r, cbor.Unmarshal(env.Body, &r)
	case "SpendDbc":
		var r SpendDbcRequest
		return r, cbor.Unmarshal(env.Body, &r)
	default:
		return nil, fmt.Errorf("unrecognized request tag %q", env.Tag)
	}
}

func marshalResponse(res Response) (string, []byte, error) {
	var tag string
	switch res.(type) {
	case GetChunkResponse:
		tag = "GetChunk"
	case GetDbcSpendResponse:
		tag = "GetDbcSpend"
	case GetReplicatedDataResponse:
		tag = "GetReplicatedData"
	case ReplicateResponse:
		tag = "Replicate"
	case SpendResponse:
		tag = "Spend"
	default:
		return "", nil, fmt.Errorf("unrecognized response type %T", res)
	}
	body, err := cbor.Marshal(res)
	return tag, body, err
}

func unmarshalResponse(env wireEnvelope) (Response, error) {
	switch env.Tag {
	case "GetChunk":
		var r GetChunkResponse
		return r, cbor.Unmarshal(env.Body, &r)
	case "GetDbcSpend":
		var r GetDbcSpendResponse
		return r, cbor.Unmarshal(env.Body, &r)
	case "GetReplicatedData":
		var r GetReplicatedDataResponse
		return r, cbor.Unmarshal(env.Body, &r)
	case "Replicate":
		var r ReplicateResponse
		return r, cbor.Unmarshal(env.Body, &r)
	case "Spend":
		var r SpendResponse
		return r, cbor.Unmarshal(env.Body, &r)
	default:
		return nil, fmt.Errorf("unrecognized response tag %q", env.Tag)
	}
}
