package network

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	libp2p "github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/event"
	libp2p_host "github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	p2pproto "github.com/libp2p/go-libp2p/core/protocol"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/placrosse/safe-network/internal/logx"
	"github.com/placrosse/safe-network/internal/protocol"
)

const recordProtocol p2pproto.ID = "/safe-network/record/1.0.0"

// PersistentIdentity is this node's long-lived libp2p key pair, saved
// alongside the record store so a restart keeps the same NodeId
// (node/<peer_id>/...).
type PersistentIdentity struct {
	PrivKey []byte `json:"priv_key"`
	PeerID  string `json:"peer_id"`
}

func identityPath(rootDir string) string {
	return filepath.Join(rootDir, "node_identity.json")
}

// SaveIdentity persists id under rootDir.
func SaveIdentity(rootDir string, id *PersistentIdentity) error {
	data, err := json.Marshal(id)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(rootDir, 0o700); err != nil {
		return err
	}
	return os.WriteFile(identityPath(rootDir), data, 0o600)
}

// LoadIdentity loads a previously-saved identity from rootDir.
func LoadIdentity(rootDir string) (*PersistentIdentity, error) {
	data, err := os.ReadFile(identityPath(rootDir))
	if err != nil {
		return nil, err
	}
	var id PersistentIdentity
	if err := json.Unmarshal(data, &id); err != nil {
		return nil, err
	}
	return &id, nil
}

// loadOrCreateKey loads rootDir's identity, or mints and persists a fresh
// Ed25519 key pair if none exists yet.
func loadOrCreateKey(rootDir string) (crypto.PrivKey, error) {
	id, err := LoadIdentity(rootDir)
	if err == nil {
		return crypto.UnmarshalPrivateKey(id.PrivKey)
	}

	priv, _, err := crypto.GenerateEd25519Key(rand.Reader)
	if err != nil {
		return nil, err
	}
	pid, err := peer.IDFromPrivateKey(priv)
	if err != nil {
		return nil, err
	}
	privBytes, err := crypto.MarshalPrivateKey(priv)
	if err != nil {
		return nil, err
	}
	if err := SaveIdentity(rootDir, &PersistentIdentity{PrivKey: privBytes, PeerID: pid.String()}); err != nil {
		return nil, err
	}
	return priv, nil
}

func nodeIDFromPeerID(p peer.ID) protocol.NodeId {
	return protocol.NodeId(protocol.HashBytes([]byte(p)))
}

// Host is the libp2p-backed implementation of Handle. It owns one
// long-running libp2p host and exposes the node event stream the event
// loop consumes.
type Host struct {
	host    libp2p_host.Host
	pending *pendingTable
	log     *logx.Logger

	peersMu sync.Mutex
	peers   map[protocol.NodeId]peer.ID

	eventsOut chan OutEvent
	eventsIn  chan NetworkEvent

	closeOnce sync.Once
}

// NewHost starts a libp2p host persisted under rootDir and returns both the
// Handle capability and the NetworkEvent stream for the node event loop.
func NewHost(ctx context.Context, rootDir string, log *logx.Logger) (*Host, <-chan NetworkEvent, error) {
	priv, err := loadOrCreateKey(rootDir)
	if err != nil {
		return nil, nil, fmt.Errorf("loading node identity: %w", err)
	}

	h, err := libp2p.New(libp2p.Identity(priv))
	if err != nil {
		return nil, nil, fmt.Errorf("starting libp2p host: %w", err)
	}

	host := &Host{
		host:      h,
		pending:   newPendingTable(),
		log:       log.With("network"),
		peers:     make(map[protocol.NodeId]peer.ID),
		eventsOut: make(chan OutEvent, 64),
		eventsIn:  make(chan NetworkEvent, 256),
	}

	h.SetStreamHandler(recordProtocol, host.handleStream)
	host.subscribeSwarmEvents(ctx)

	return host, host.eventsIn, nil
}

// ID returns this host's NodeId.
func (h *Host) ID() protocol.NodeId { return nodeIDFromPeerID(h.host.ID()) }

// Close shuts the underlying libp2p host down.
func (h *Host) Close() error {
	var err error
	h.closeOnce.Do(func() {
		err = h.host.Close()
		close(h.eventsOut)
	})
	return err
}

// Events implements Handle.
func (h *Host) Events() <-chan OutEvent { return h.eventsOut }

// Emit implements Handle: publish ev on the outbound event channel, dropping
// it rather than blocking the producer if the subscriber is slow.
func (h *Host) Emit(ev OutEvent) {
	select {
	case h.eventsOut <- ev:
	default:
	}
}

func (h *Host) emitNetworkEvent(ev NetworkEvent) {
	select {
	case h.eventsIn <- ev:
	default:
		h.log.Warn("network event dropped, event loop is falling behind")
	}
}

// handleStream decodes an inbound envelope and, for requests, surfaces a
// RequestReceivedEvent to the node event loop with a reply channel; the
// event loop's detached handler task writes the response back onto the
// same stream: reply-channel identity is preserved because the stream
// itself is the channel.
func (h *Host) handleStream(s network.Stream) {
	defer s.Close()

	remote := s.Conn().RemotePeer()
	h.rememberPeer(remote)

	data, err := io.ReadAll(s)
	if err != nil {
		return
	}
	env, err := decodeEnvelope(data)
	if err != nil {
		h.log.Warn("dropping malformed stream payload", logx.Err(err))
		return
	}

	if !env.IsRequest {
		res, err := unmarshalResponse(env)
		if err != nil {
			return
		}
		if !h.pending.complete(env.CorrelationID, res) {
			// No waiter left (already timed out, or a late arrival for a
			// fire-and-forget Broadcast): hand it to the event loop rather
			// than drop it.
			h.emitNetworkEvent(ResponseReceivedEvent{CorrelationID: env.CorrelationID, Res: res})
		}
		return
	}

	req, err := unmarshalRequest(env)
	if err != nil {
		return
	}

	reply := make(chan Response, 1)
	h.emitNetworkEvent(RequestReceivedEvent{Req: req, Reply: reply})

	res := <-reply
	out, err := encodeResponse(env.CorrelationID, res)
	if err != nil {
		return
	}
	_, _ = s.Write(out)
}

func (h *Host) rememberPeer(p peer.ID) {
	h.peersMu.Lock()
	h.peers[nodeIDFromPeerID(p)] = p
	h.peersMu.Unlock()
}

// SendRequest implements Handle.
func (h *Host) SendRequest(ctx context.Context, peerID protocol.NodeId, req Request) (Response, error) {
	target, err := h.resolvePeer(peerID)
	if err != nil {
		return nil, err
	}

	id, waiter := h.pending.register()
	defer h.pending.forget(id)

	frame, err := encodeRequest(id, req)
	if err != nil {
		return nil, err
	}

	stream, err := h.host.NewStream(ctx, target, recordProtocol)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	if _, err := stream.Write(frame); err != nil {
		return nil, err
	}
	if err := stream.CloseWrite(); err != nil {
		return nil, err
	}

	type streamResult struct {
		data []byte
		err  error
	}
	resultCh := make(chan streamResult, 1)
	go func() {
		data, err := io.ReadAll(stream)
		resultCh <- streamResult{data, err}
	}()

	select {
	case <-ctx.Done():
		return nil, &protocol.TimeoutError{Operation: "send_request"}
	case r := <-resultCh:
		if r.err != nil {
			return nil, r.err
		}
		env, err := decodeEnvelope(r.data)
		if err != nil {
			return nil, err
		}
		return unmarshalResponse(env)
	case res := <-waiter:
		return res, nil
	}
}

// Broadcast implements Handle: fire-and-forget delivery to every peer in
// the directory returned by Peers, used for RequestReplication. The
// directory is not pruned on disconnect, so peers that have since
// disconnected are included.
func (h *Host) Broadcast(ctx context.Context, req Request) {
	for _, id := range h.Peers() {
		go func(target protocol.NodeId) {
			if _, err := h.SendRequest(ctx, target, req); err != nil {
				h.log.Debug("broadcast delivery failed", logx.String("peer", target.String()), logx.Err(err))
			}
		}(id)
	}
}

// Peers implements Handle.
func (h *Host) Peers() []protocol.NodeId {
	h.peersMu.Lock()
	defer h.peersMu.Unlock()
	out := make([]protocol.NodeId, 0, len(h.peers))
	for id := range h.peers {
		out = append(out, id)
	}
	return out
}

func (h *Host) resolvePeer(id protocol.NodeId) (peer.ID, error) {
	h.peersMu.Lock()
	p, ok := h.peers[id]
	h.peersMu.Unlock()
	if !ok {
		return "", fmt.Errorf("unknown peer %s", id)
	}
	return p, nil
}

// DialMultiaddr connects to a bootstrap peer described as a multiaddr
// string (ip/port/p2p/peer-id form), used on startup to join the network.
func (h *Host) DialMultiaddr(ctx context.Context, addr string) error {
	maddr, err := ma.NewMultiaddr(addr)
	if err != nil {
		return err
	}
	info, err := peer.AddrInfoFromP2pAddr(maddr)
	if err != nil {
		return err
	}
	if err := h.host.Connect(ctx, *info); err != nil {
		return err
	}
	h.rememberPeer(info.ID)
	return nil
}

// subscribeSwarmEvents turns libp2p's event bus into NetworkEvents and
// OutEvents: PeerAdded/PeerRemoved, NewListenAddr, NatStatusChanged.
func (h *Host) subscribeSwarmEvents(ctx context.Context) {
	bus := h.host.EventBus()

	if connSub, err := bus.Subscribe(new(event.EvtPeerConnectednessChanged)); err == nil {
		go h.drainConnectedness(ctx, connSub)
	}
	if addrSub, err := bus.Subscribe(new(event.EvtLocalAddressesUpdated)); err == nil {
		go h.drainAddrUpdates(ctx, addrSub)
	}
	if natSub, err := bus.Subscribe(new(event.EvtNATDeviceTypeChanged)); err == nil {
		go h.drainNatChanges(ctx, natSub)
	}
}

func (h *Host) drainConnectedness(ctx context.Context, sub event.Subscription) {
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-sub.Out():
			if !ok {
				return
			}
			evt := raw.(event.EvtPeerConnectednessChanged)
			id := nodeIDFromPeerID(evt.Peer)
			if evt.Connectedness == network.Connected {
				h.rememberPeer(evt.Peer)
				h.emitNetworkEvent(PeerAddedEvent{Peer: id})
				h.Emit(OutEvent{Kind: EvPeerAdded, Peer: id})
			} else {
				h.emitNetworkEvent(PeerRemovedEvent{Peer: id})
				h.Emit(OutEvent{Kind: EvPeerRemoved, Peer: id})
			}
		}
	}
}

func (h *Host) drainAddrUpdates(ctx context.Context, sub event.Subscription) {
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-sub.Out():
			if !ok {
				return
			}
			evt := raw.(event.EvtLocalAddressesUpdated)
			for _, a := range evt.Current {
				h.emitNetworkEvent(NewListenAddrEvent{Addr: a.Address.String()})
			}
		}
	}
}

func (h *Host) drainNatChanges(ctx context.Context, sub event.Subscription) {
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-sub.Out():
			if !ok {
				return
			}
			evt := raw.(event.EvtNATDeviceTypeChanged)
			status := NatPublic
			if evt.NatDeviceType.String() != "Unknown" {
				status = NatPrivate
			}
			h.emitNetworkEvent(NatStatusChangedEvent{Status: status})
			if status == NatPrivate {
				h.Emit(OutEvent{Kind: EvBehindNat})
			}
		}
	}
}
