package config

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io/ioutil"
	"os"
	"path/filepath"
	"roundbft/types"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.ValidateBasic())

	cfg.SetRoot("/foo")
	assert.Equal(t, "/foo/config/config.toml", cfg.ConfigFile())
	assert.Equal(t, "/foo/config/agent_key.json", cfg.AgentKeyFile())
	assert.Equal(t, "/foo/config/node_key.json", cfg.NodeKeyFile())
	assert.Equal(t, "/foo/data", cfg.DBDir())

	cfg.AgentKey = "/opt/agent.json"
	assert.Equal(t, "/opt/agent.json", cfg.AgentKeyFile())
}

func TestConfigValidateBasic(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"empty app id", func(c *Config) { c.AppID = "" }},
		{"unknown db", func(c *Config) { c.DBBackend = "rocksdb" }},
		{"negative threshold", func(c *Config) { c.Agent.Threshold = -1 }},
		{"threshold too large", func(c *Config) { c.Agent.Threshold = 2 }},
		{"bad participant", func(c *Config) { c.Agent.Participants = []string{"zz"} }},
		{"negative timeout", func(c *Config) { c.Gateway.RoundTimeout = -time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := TestConfig()
			tt.modify(cfg)
			assert.Error(t, cfg.ValidateBasic())
		})
	}
}

func TestEnsureRootAndLoad(t *testing.T) {
	root, err := ioutil.TempDir("", "roundbft-config")
	require.NoError(t, err)
	defer os.RemoveAll(root)

	require.NoError(t, EnsureRoot(root))
	for _, p := range []string{"config", "data", "config/config.toml"} {
		_, err := os.Stat(filepath.Join(root, p))
		assert.NoError(t, err, p)
	}

	cfg, err := LoadConfig(root)
	require.NoError(t, err)
	assert.Equal(t, DefaultAppID, cfg.AppID)
	assert.Equal(t, root, cfg.RootDir)
	assert.Equal(t, 30*time.Second, cfg.Gateway.RoundTimeout)
}

func TestWriteConfigFileRoundTrip(t *testing.T) {
	root, err := ioutil.TempDir("", "roundbft-config")
	require.NoError(t, err)
	defer os.RemoveAll(root)
	require.NoError(t, EnsureRoot(root))

	cfg := TestConfig()
	cfg.Moniker = "agent-1"
	cfg.P2P.PersistentPeers = "a@127.0.0.1:26656"
	cfg.Agent.Participants = []string{"AA01", "AA02", "AA03", "AA04"}
	cfg.Agent.Threshold = 3
	cfg.Agent.SafeContractAddress = "0x5afe"
	cfg.Agent.TransferThreshold = 1.5
	cfg.Gateway.RoundTimeout = 5 * time.Second
	require.NoError(t, WriteConfigFile(filepath.Join(root, "config", "config.toml"), cfg))

	loaded, err := LoadConfig(root)
	require.NoError(t, err)
	assert.Equal(t, "agent-1", loaded.Moniker)
	assert.Equal(t, "memdb", loaded.DBBackend)
	assert.Equal(t, "a@127.0.0.1:26656", loaded.P2P.PersistentPeers)
	assert.Equal(t, cfg.Agent.Participants, loaded.Agent.Participants)
	assert.Equal(t, 3, loaded.Agent.Threshold)
	assert.Equal(t, 1.5, loaded.Agent.TransferThreshold)
	assert.Equal(t, 5*time.Second, loaded.Gateway.RoundTimeout)
	assert.Equal(t, "0x5afe", loaded.Agent.Params().SafeContractAddress)
}

func TestAgentQuorum(t *testing.T) {
	cfg := DefaultAgentConfig()
	cfg.Participants = []string{"AA01", "0xAA02", "AA03"}

	self, err := types.AddressFromHex("AA04")
	require.NoError(t, err)
	q, err := cfg.Quorum(self)
	require.NoError(t, err)
	assert.Equal(t, 4, q.Size())
	assert.Equal(t, 3, q.Threshold())
	assert.True(t, q.IsParticipant(self))

	// 已经在列表中的不重复添加
	self, _ = types.AddressFromHex("AA01")
	q, err = cfg.Quorum(self)
	require.NoError(t, err)
	assert.Equal(t, 3, q.Size())
}
