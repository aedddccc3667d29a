package config

import (
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	tmos "github.com/tendermint/tendermint/libs/os"
	"path/filepath"
)

// EnsureRoot creates the root, config, and data directories if they don't exist,
// and writes the default config file if it is missing.
func EnsureRoot(rootDir string) error {
	if err := tmos.EnsureDir(rootDir, 0700); err != nil {
		return err
	}
	if err := tmos.EnsureDir(filepath.Join(rootDir, defaultConfigDir), 0700); err != nil {
		return err
	}
	if err := tmos.EnsureDir(filepath.Join(rootDir, defaultDataDir), 0700); err != nil {
		return err
	}

	configFilePath := filepath.Join(rootDir, defaultConfigFilePath)
	if !tmos.FileExists(configFilePath) {
		return WriteConfigFile(configFilePath, DefaultConfig())
	}
	return nil
}

// WriteConfigFile 把配置写成toml，键名与mapstructure标签一致
func WriteConfigFile(configFilePath string, c *Config) error {
	v := viper.New()
	for key, value := range flatten(c) {
		v.Set(key, value)
	}
	return errors.Wrapf(v.WriteConfigAs(configFilePath), "write %s", configFilePath)
}

func flatten(c *Config) map[string]interface{} {
	return map[string]interface{}{
		"moniker":        c.Moniker,
		"log_level":      c.LogLevel,
		"app_id":         c.AppID,
		"db_backend":     c.DBBackend,
		"db_dir":         c.DBPath,
		"agent_key_file": c.AgentKey,
		"node_key_file":  c.NodeKey,

		"p2p.laddr":              c.P2P.ListenAddress,
		"p2p.external_address":   c.P2P.ExternalAddress,
		"p2p.persistent_peers":   c.P2P.PersistentPeers,
		"p2p.handshake_timeout":  c.P2P.HandshakeTimeout.String(),
		"p2p.dial_timeout":       c.P2P.DialTimeout.String(),
		"p2p.allow_duplicate_ip": c.P2P.AllowDuplicateIP,
		"p2p.addr_book_strict":   c.P2P.AddrBookStrict,

		"rpc.laddr":                c.RPC.ListenAddress,
		"rpc.cors_allowed_origins": c.RPC.CORSAllowedOrigins,
		"rpc.max_open_connections": c.RPC.MaxOpenConnections,

		"agent.participants":          c.Agent.Participants,
		"agent.threshold":             c.Agent.Threshold,
		"agent.token_id":              c.Agent.TokenID,
		"agent.price_endpoint":        c.Agent.PriceEndpoint,
		"agent.contract_endpoint":     c.Agent.ContractEndpoint,
		"agent.safe_contract_address": c.Agent.SafeContractAddress,
		"agent.multisend_address":     c.Agent.MultisendAddress,
		"agent.transfer_target":       c.Agent.TransferTarget,
		"agent.transfer_value":        c.Agent.TransferValue,
		"agent.transfer_threshold":    c.Agent.TransferThreshold,

		"gateway.round_timeout": c.Gateway.RoundTimeout.String(),
	}
}

// LoadConfig reads <root>/config/config.toml on top of the defaults.
func LoadConfig(rootDir string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(filepath.Join(rootDir, defaultConfigFilePath))
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	return Unmarshal(v, rootDir)
}

// Unmarshal 把viper中的值解码到默认配置上并设置根目录
func Unmarshal(v *viper.Viper, rootDir string) (*Config, error) {
	conf := DefaultConfig()
	if err := v.Unmarshal(conf); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	conf.SetRoot(rootDir)
	if err := conf.ValidateBasic(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return conf, nil
}
