// Package node implements the node event loop and replication controller:
// the cooperative task that consumes the network package's event stream,
// dispatches inbound requests to validation, and keeps this peer's share
// of the record set replicated.
package node

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	mathrand "math/rand"
	"sync/atomic"
	"time"

	"github.com/placrosse/safe-network/internal/config"
	"github.com/placrosse/safe-network/internal/logx"
	"github.com/placrosse/safe-network/internal/network"
	"github.com/placrosse/safe-network/internal/protocol"
	"github.com/placrosse/safe-network/internal/validation"
)

// Dispatcher is the seam into validation the event loop routes inbound
// records and requests through.
type Dispatcher interface {
	ValidateAndStore(ctx context.Context, frame []byte) (protocol.CmdOk, error)
}

var _ Dispatcher = (*validation.Dispatcher)(nil)

// Reader is the local-store seam the event loop answers GetChunk/GetSpend/
// GetReplicatedData requests through.
type Reader interface {
	Get(key protocol.ContentName) (protocol.Record, bool, error)
}

// Node owns the event loop state: the initial-join flag and the node
// events broadcast both live and die with it.
type Node struct {
	self       protocol.NodeId
	handle     network.Handle
	dispatcher Dispatcher
	reader     Reader
	repl       *Replication
	cfg        config.Config
	log        *logx.Logger

	initialJoin atomic.Bool
}

// Running is the handle embedders get back from Start: the node's identity,
// its root directory, and its outbound event channel.
type Running struct {
	PeerID  protocol.NodeId
	RootDir string
	Events  <-chan network.OutEvent

	node *Node
}

// New builds a Node ready to run.
func New(self protocol.NodeId, handle network.Handle, dispatcher Dispatcher, reader Reader, repl *Replication, cfg config.Config, log *logx.Logger) *Node {
	return &Node{self: self, handle: handle, dispatcher: dispatcher, reader: reader, repl: repl, cfg: cfg, log: log.With("node")}
}

// Start launches the event loop as a detached goroutine and returns
// immediately with a Running handle.
func Start(ctx context.Context, rootDir string, n *Node, events <-chan network.NetworkEvent, outEvents <-chan network.OutEvent) *Running {
	go n.Run(ctx, events)
	return &Running{PeerID: n.self, RootDir: rootDir, Events: outEvents, node: n}
}

// Run is the cooperative event loop proper. It returns ctx.Err() when ctx
// is cancelled, and nil when the events channel is closed.
func (n *Node) Run(ctx context.Context, events <-chan network.NetworkEvent) error {
	timer := time.NewTimer(n.randomInactivityInterval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-events:
			if !ok {
				return nil
			}
			n.dispatchEvent(ctx, ev)
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(n.randomInactivityInterval())

		case <-timer.C:
			n.onInactivity(ctx)
			timer.Reset(n.randomInactivityInterval())
		}
	}
}

// randomInactivityInterval draws a per-iteration timeout in
// [InactivityTimerMin, InactivityTimerMax) from a PRNG that taskRand builds
// and seeds from crypto/rand on every call; no PRNG is kept on the Node or
// shared across tasks — desynchronizing peers is the goal, not determinism.
func (n *Node) randomInactivityInterval() time.Duration {
	lo, hi := n.cfg.InactivityTimerMin, n.cfg.InactivityTimerMax
	if hi <= lo {
		return lo
	}
	span := hi - lo
	return lo + time.Duration(taskRand().Int63n(int64(span)))
}

func taskRand() *mathrand.Rand {
	var seed int64
	_ = binary.Read(rand.Reader, binary.LittleEndian, &seed)
	return mathrand.New(mathrand.NewSource(seed))
}

// dispatchEvent routes one inbound network event to its handler.
func (n *Node) dispatchEvent(ctx context.Context, ev network.NetworkEvent) {
	switch e := ev.(type) {
	case network.RequestReceivedEvent:
		go n.handleRequest(ctx, e.Req, e.Reply)

	case network.ResponseReceivedEvent:
		n.repl.notifyFetchResult(e.CorrelationID, e.Res)

	case network.PeerAddedEvent:
		if n.initialJoin.CompareAndSwap(false, true) {
			go n.bootstrapRoutingTable(ctx, e.Peer)
		}
		n.repl.TryTriggerReplication(ctx, e.Peer, false)

	case network.PeerRemovedEvent:
		n.repl.TryTriggerReplication(ctx, e.Peer, true)

	case network.LostRecordDetectedEvent:
		for _, key := range e.Keys {
			n.repl.TryTriggerReplicationForKey(ctx, key)
		}

	case network.NewListenAddrEvent:
		if !n.cfg.LocalDiscovery {
			go n.dialBootstrapPeers(ctx)
		}

	case network.NatStatusChangedEvent:
		if e.Status == network.NatPrivate {
			n.log.Warn("node appears to be behind a NAT")
		}

	case network.UnverifiedRecordEvent:
		go n.handleUnverifiedRecord(ctx, e.Frame)

	default:
		n.log.Warn("ignoring unrecognized network event")
	}
}

// handleRequest runs in its own detached task so one slow handler cannot
// block event dispatch, and always produces a response, even a trivial ack.
func (n *Node) handleRequest(ctx context.Context, req network.Request, reply chan<- network.Response) {
	switch r := req.(type) {
	case network.SpendDbcRequest:
		frame, err := protocol.Serialize([]protocol.SignedSpend{r.Spend}, protocol.KindDbcSpend)
		if err != nil {
			reply <- network.SpendResponse{ErrMsg: err.Error()}
			return
		}
		ok, err := n.dispatcher.ValidateAndStore(ctx, frame)
		if ok == protocol.CmdStoredSuccessfully {
			n.handle.Emit(network.OutEvent{Kind: network.EvSpendStored, DbcId: r.Spend.DbcId})
		}
		if err != nil {
			reply <- network.SpendResponse{Ok: ok, ErrMsg: err.Error()}
			return
		}
		reply <- network.SpendResponse{Ok: ok}

	case network.RequestReplicationRequest:
		n.repl.TryTriggerReplication(ctx, r.Sender, false)
		reply <- network.ReplicateResponse{}

	case network.ReplicateRequest:
		for _, key := range r.Keys {
			n.repl.TryTriggerReplicationForKey(ctx, key)
		}
		reply <- network.ReplicateResponse{}

	case network.GetChunkRequest:
		rec, found, err := n.reader.Get(r.Addr)
		if err != nil || !found {
			reply <- network.GetChunkResponse{ErrMsg: (&protocol.ChunkNotStoredError{Name: r.Addr, Err: err}).Error()}
			return
		}
		var cwp protocol.ChunkWithPayment
		if err := protocol.Deserialize(rec.Payload, protocol.KindChunk, &cwp); err != nil {
			reply <- network.GetChunkResponse{ErrMsg: err.Error()}
			return
		}
		reply <- network.GetChunkResponse{Chunk: cwp.Chunk}

	case network.GetSpendRequest:
		rec, found, err := n.reader.Get(protocol.DbcAddress(r.Addr))
		if err != nil || !found {
			reply <- network.GetDbcSpendResponse{ErrMsg: protocol.ErrSpendNotFound.Error()}
			return
		}
		var spends []protocol.SignedSpend
		if err := protocol.Deserialize(rec.Payload, protocol.KindDbcSpend, &spends); err != nil {
			reply <- network.GetDbcSpendResponse{ErrMsg: err.Error()}
			return
		}
		reply <- network.GetDbcSpendResponse{Spends: spends}

	case network.GetReplicatedDataRequest:
		rec, found, err := n.reader.Get(r.Addr)
		if err != nil || !found {
			reply <- network.GetReplicatedDataResponse{ErrMsg: "record not held locally"}
			return
		}
		reply <- network.GetReplicatedDataResponse{Data: network.ReplicatedData{Holder: n.self, Frame: rec.Payload}}

	default:
		reply <- network.ReplicateResponse{}
	}
}

func (n *Node) handleUnverifiedRecord(ctx context.Context, frame []byte) {
	if _, err := n.dispatcher.ValidateAndStore(ctx, frame); err != nil {
		n.log.Debug("inbound record failed validation", logx.Err(err))
	}
}

// bootstrapRoutingTable runs the first-time closest-peers-to-self lookup: a
// RequestReplication round trip with the peer that triggered the join,
// spreading this node's presence and pulling back anything it's already
// responsible for. The actual routing-table walk is the swarm driver's
// job; this loop only triggers it. If the lookup fails, the initial-join
// flag is cleared so the next PeerAdded retries instead of silently giving
// up on ever joining.
func (n *Node) bootstrapRoutingTable(ctx context.Context, via protocol.NodeId) {
	if _, err := n.handle.SendRequest(ctx, via, network.RequestReplicationRequest{Sender: n.self}); err != nil {
		n.log.Warn("initial join lookup failed, will retry on next peer", logx.String("via", via.String()), logx.Err(err))
		n.initialJoin.Store(false)
		return
	}
	n.handle.Emit(network.OutEvent{Kind: network.EvConnectedToNetwork})
	n.log.Info("joined network", logx.String("via", via.String()))
}

func (n *Node) dialBootstrapPeers(ctx context.Context) {
	host, ok := n.handle.(interface {
		DialMultiaddr(context.Context, string) error
	})
	if !ok {
		return
	}
	for _, addr := range n.cfg.BootstrapPeers {
		if err := host.DialMultiaddr(ctx, addr); err != nil {
			n.log.Warn("dialing bootstrap peer failed", logx.String("addr", addr), logx.Err(err))
		}
	}
}

// onInactivity fires on the periodic inactivity timer and broadcasts a
// RequestReplication carrying this node's id to every peer the handle
// knows. It issues no random closest-peers query of its own.
func (n *Node) onInactivity(ctx context.Context) {
	n.log.Debug("inactivity timer fired")
	n.handle.Broadcast(ctx, network.RequestReplicationRequest{Sender: n.self})
}
