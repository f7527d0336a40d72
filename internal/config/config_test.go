package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 20*time.Second, cfg.InactivityTimerMin)
	assert.Equal(t, 40*time.Second, cfg.InactivityTimerMax)
	assert.Equal(t, 5, cfg.ChunksBatchMaxSize)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("SAFE_NODE_ROOT_DIR", "/tmp/custom-root")
	t.Setenv("SAFE_NODE_BOOTSTRAP_PEERS", `["/ip4/127.0.0.1/tcp/4001/p2p/abc"]`)
	t.Setenv("SAFE_NODE_LOCAL_DISCOVERY", "true")
	t.Setenv("SAFE_NODE_CHUNKS_BATCH_MAX_SIZE", "9")
	t.Setenv("SAFE_NODE_LOG_LEVEL", "debug")
	t.Setenv("RECEIVED_DBCS_PATH", "/tmp/wallet")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/custom-root", cfg.RootDir)
	assert.Equal(t, []string{"/ip4/127.0.0.1/tcp/4001/p2p/abc"}, cfg.BootstrapPeers)
	assert.True(t, cfg.LocalDiscovery)
	assert.Equal(t, 9, cfg.ChunksBatchMaxSize)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/tmp/wallet", cfg.ReceivedDbcsPath)
}

func TestLoadRejectsInvalidBootstrapPeersJSON(t *testing.T) {
	t.Setenv("SAFE_NODE_BOOTSTRAP_PEERS", "not-json")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsInvalidLocalDiscoveryBool(t *testing.T) {
	t.Setenv("SAFE_NODE_LOCAL_DISCOVERY", "not-a-bool")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsInvalidChunksBatchMaxSize(t *testing.T) {
	t.Setenv("SAFE_NODE_CHUNKS_BATCH_MAX_SIZE", "not-a-number")
	_, err := Load()
	assert.Error(t, err)
}
