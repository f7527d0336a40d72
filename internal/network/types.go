// Package network models the DHT/swarm driver as a message bus that
// delivers typed events and accepts typed commands, never as something
// validation reaches into directly. Handle is the capability every task
// holds a clone of; the concrete libp2p-backed driver lives in host.go.
package network

import (
	"context"

	"github.com/google/uuid"

	"github.com/placrosse/safe-network/internal/protocol"
)

// Request is the closed set of commands a peer can send this node.
type Request interface{ isRequest() }

type GetChunkRequest struct{ Addr protocol.ContentName }

func (GetChunkRequest) isRequest() {}

type GetSpendRequest struct{ Addr protocol.DbcId }

func (GetSpendRequest) isRequest() {}

type GetReplicatedDataRequest struct {
	Requester protocol.NodeId
	Addr      protocol.ContentName
}

func (GetReplicatedDataRequest) isRequest() {}

type ReplicateRequest struct {
	Holder protocol.NodeId
	Keys   []protocol.ContentName
}

func (ReplicateRequest) isRequest() {}

type RequestReplicationRequest struct{ Sender protocol.NodeId }

func (RequestReplicationRequest) isRequest() {}

type SpendDbcRequest struct{ Spend protocol.SignedSpend }

func (SpendDbcRequest) isRequest() {}

// ReplicatedData is a framed record handed over in a GetReplicatedData
// response, ready to be passed straight into the validation dispatcher.
type ReplicatedData struct {
	Holder protocol.NodeId
	Frame  []byte
}

// Response is the closed set of replies this node's requests can receive.
// Every field named ErrMsg captures a failure as a string rather than an
// error value: responses cross the wire, and an arbitrary error's concrete
// type cannot. An empty ErrMsg means the value fields are populated;
// callers reconstruct an error with Response.error() when it is not.
type Response interface{ isResponse() }

type GetChunkResponse struct {
	Chunk  protocol.Chunk
	ErrMsg string
}

func (GetChunkResponse) isResponse() {}
func (r GetChunkResponse) error() error { return errFromMsg(r.ErrMsg) }

type GetDbcSpendResponse struct {
	Spends []protocol.SignedSpend
	ErrMsg string
}

func (GetDbcSpendResponse) isResponse() {}
func (r GetDbcSpendResponse) error() error { return errFromMsg(r.ErrMsg) }

type GetReplicatedDataResponse struct {
	Data   ReplicatedData
	ErrMsg string
}

func (GetReplicatedDataResponse) isResponse() {}
func (r GetReplicatedDataResponse) error() error { return errFromMsg(r.ErrMsg) }

type ReplicateResponse struct{}

func (ReplicateResponse) isResponse() {}

type SpendResponse struct {
	Ok     protocol.CmdOk
	ErrMsg string
}

func (SpendResponse) isResponse() {}
func (r SpendResponse) error() error { return errFromMsg(r.ErrMsg) }

func errFromMsg(msg string) error {
	if msg == "" {
		return nil
	}
	return errString(msg)
}

type errString string

func (e errString) Error() string { return string(e) }

// NatStatus mirrors the swarm driver's NAT reachability classification.
type NatStatus int

const (
	NatUnknown NatStatus = iota
	NatPublic
	NatPrivate
)

// NetworkEvent is the single stream the node event loop consumes.
type NetworkEvent interface{ isNetworkEvent() }

type RequestReceivedEvent struct {
	Req   Request
	Reply chan<- Response
}

func (RequestReceivedEvent) isNetworkEvent() {}

type ResponseReceivedEvent struct {
	CorrelationID uuid.UUID
	Res           Response
}

func (ResponseReceivedEvent) isNetworkEvent() {}

type PeerAddedEvent struct{ Peer protocol.NodeId }

func (PeerAddedEvent) isNetworkEvent() {}

type PeerRemovedEvent struct{ Peer protocol.NodeId }

func (PeerRemovedEvent) isNetworkEvent() {}

type LostRecordDetectedEvent struct{ Keys []protocol.ContentName }

func (LostRecordDetectedEvent) isNetworkEvent() {}

type NewListenAddrEvent struct{ Addr string }

func (NewListenAddrEvent) isNetworkEvent() {}

type NatStatusChangedEvent struct{ Status NatStatus }

func (NatStatusChangedEvent) isNetworkEvent() {}

type UnverifiedRecordEvent struct{ Frame []byte }

func (UnverifiedRecordEvent) isNetworkEvent() {}

// OutEventKind tags the node's outbound event broadcast.
type OutEventKind int

const (
	EvConnectedToNetwork OutEventKind = iota
	EvPeerAdded
	EvPeerRemoved
	EvBehindNat
	EvSpendStored
	EvChannelClosed
)

// OutEvent is one value on the node's broadcast channel. Only the field
// matching Kind is populated.
type OutEvent struct {
	Kind  OutEventKind
	Peer  protocol.NodeId
	DbcId protocol.DbcId
}

// Handle is the capability every detached task holds a clone of: send-only,
// so the swarm driver's internal state never leaks past this seam.
type Handle interface {
	// SendRequest dispatches req to peer and waits for the matching
	// response or ctx's deadline, whichever comes first.
	SendRequest(ctx context.Context, peer protocol.NodeId, req Request) (Response, error)
	// Broadcast dispatches req to every peer listed by Peers without
	// waiting for responses (used for RequestReplication).
	Broadcast(ctx context.Context, req Request)
	// Peers lists currently known peers. Computing which of them is
	// actually responsible for a given key by XOR distance is the DHT/
	// swarm driver's job; this node only reacts to the keys it's told
	// about (LostRecordDetected) or asks peers directly.
	Peers() []protocol.NodeId
	// Events returns the node's outbound broadcast channel (multi-producer,
	// multi-subscriber; slow subscribers may drop, not block).
	Events() <-chan OutEvent
	// Emit publishes ev on the outbound event channel.
	Emit(ev OutEvent)
}
