// Command safe-node runs a single storage-node validation-core peer:
// loads configuration, starts the libp2p transport, and hands control to
// the node event loop until interrupted.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/placrosse/safe-network/internal/config"
	"github.com/placrosse/safe-network/internal/dbc"
	"github.com/placrosse/safe-network/internal/logx"
	"github.com/placrosse/safe-network/internal/network"
	"github.com/placrosse/safe-network/internal/node"
	"github.com/placrosse/safe-network/internal/protocol"
	"github.com/placrosse/safe-network/internal/store"
	"github.com/placrosse/safe-network/internal/validation"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logx.Error("loading configuration", logx.Err(err))
		os.Exit(1)
	}

	log := logx.New(logx.Config{Level: logx.ParseLevel(cfg.LogLevel), Component: "safe-node", Output: os.Stdout, Colorize: true})
	logx.SetGlobal(log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("node exited with error", logx.Err(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *logx.Logger) error {
	host, events, err := network.NewHost(ctx, cfg.RootDir, log)
	if err != nil {
		return err
	}
	defer host.Close()

	selfID := host.ID()
	recordStore := store.New(cfg.RootDir, selfID.String())

	auth := protocol.Ed25519Authenticator{}
	peerLookup := network.NewPeerLookup(host)
	parents := dbc.NewParentFetcher(peerLookup, auth, log)

	chunks := validation.NewChunkValidator(recordStore, parents, log)
	registers := validation.NewRegisterValidator(recordStore, auth, log)
	spends := validation.NewSpendValidator(recordStore, parents, auth, log)
	dispatcher := validation.NewDispatcher(recordStore, chunks, registers, spends, log)

	repl := node.NewReplication(host, dispatcher, recordStore, cfg, log)
	n := node.New(selfID, host, dispatcher, recordStore, repl, cfg, log)

	running := node.Start(ctx, cfg.RootDir, n, events, host.Events())
	log.Info("node started", logx.String("peer_id", running.PeerID.String()), logx.String("root_dir", running.RootDir))

	if !cfg.LocalDiscovery {
		for _, addr := range cfg.BootstrapPeers {
			if err := host.DialMultiaddr(ctx, addr); err != nil {
				log.Warn("dialing bootstrap peer failed", logx.String("addr", addr), logx.Err(err))
			}
		}
	}

	go logOutEvents(ctx, running.Events, log)

	<-ctx.Done()
	log.Info("shutting down")
	return nil
}

func logOutEvents(ctx context.Context, events <-chan network.OutEvent, log *logx.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.Kind {
			case network.EvConnectedToNetwork:
				log.Info("connected to network")
			case network.EvPeerAdded:
				log.Debug("peer added", logx.String("peer", ev.Peer.String()))
			case network.EvPeerRemoved:
				log.Debug("peer removed", logx.String("peer", ev.Peer.String()))
			case network.EvBehindNat:
				log.Warn("node is behind a NAT")
			case network.EvSpendStored:
				log.Info("spend stored", logx.String("dbc_id", ev.DbcId.String()))
			case network.EvChannelClosed:
				log.Warn("event channel closed")
			}
		}
	}
}
