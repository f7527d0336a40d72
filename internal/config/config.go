// Package config holds this node's runtime configuration: a plain struct
// with JSON tags and explicit environment variable overrides, loaded
// without a config framework.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is this node's full runtime configuration.
type Config struct {
	// RootDir is where node/<peer_id>/records and node_identity.json live.
	RootDir string `json:"root_dir"`

	// BootstrapPeers are multiaddrs dialed once the local listen address is
	// known, unless LocalDiscovery is set.
	BootstrapPeers []string `json:"bootstrap_peers"`

	// LocalDiscovery disables dialing BootstrapPeers in favor of an
	// external mDNS-style discovery mechanism.
	LocalDiscovery bool `json:"local_discovery"`

	// InactivityTimerMin/Max bound the per-iteration random timeout between
	// routing-table maintenance passes.
	InactivityTimerMin time.Duration `json:"inactivity_timer_min"`
	InactivityTimerMax time.Duration `json:"inactivity_timer_max"`

	// ChunksBatchMaxSize bounds concurrent chunk fetches/uploads.
	ChunksBatchMaxSize int `json:"chunks_batch_max_size"`

	// ReceivedDbcsPath is a wallet-side concern, carried here only so a
	// deployment has one place to read it from.
	ReceivedDbcsPath string `json:"received_dbcs_path"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level"`
}

// Default returns the configuration this node starts with before any
// environment overrides are applied.
func Default() Config {
	return Config{
		RootDir:            defaultRootDir(),
		BootstrapPeers:     nil,
		LocalDiscovery:     false,
		InactivityTimerMin: 20 * time.Second,
		InactivityTimerMax: 40 * time.Second,
		ChunksBatchMaxSize: 5,
		ReceivedDbcsPath:   "",
		LogLevel:           "info",
	}
}

func defaultRootDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return dir + "/safe-network"
	}
	return ".safe-network"
}

// Load builds a Config by layering environment variables over Default().
func Load() (Config, error) {
	cfg := Default()

	if v := os.Getenv("SAFE_NODE_ROOT_DIR"); v != "" {
		cfg.RootDir = v
	}
	if v := os.Getenv("SAFE_NODE_BOOTSTRAP_PEERS"); v != "" {
		var peers []string
		if err := json.Unmarshal([]byte(v), &peers); err != nil {
			return cfg, fmt.Errorf("parsing SAFE_NODE_BOOTSTRAP_PEERS: %w", err)
		}
		cfg.BootstrapPeers = peers
	}
	if v := os.Getenv("SAFE_NODE_LOCAL_DISCOVERY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("parsing SAFE_NODE_LOCAL_DISCOVERY: %w", err)
		}
		cfg.LocalDiscovery = b
	}
	if v := os.Getenv("SAFE_NODE_CHUNKS_BATCH_MAX_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("parsing SAFE_NODE_CHUNKS_BATCH_MAX_SIZE: %w", err)
		}
		cfg.ChunksBatchMaxSize = n
	}
	if v := os.Getenv("SAFE_NODE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	// RECEIVED_DBCS_PATH is a wallet-side concern, kept under its own env
	// var name rather than the SAFE_NODE_ prefix used by the rest of this
	// node's settings.
	if v := os.Getenv("RECEIVED_DBCS_PATH"); v != "" {
		cfg.ReceivedDbcsPath = v
	}

	return cfg, nil
}
