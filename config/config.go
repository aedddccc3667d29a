package config

import (
	"fmt"
	"github.com/pkg/errors"
	tmcfg "github.com/tendermint/tendermint/config"
	"os"
	"path/filepath"
	"roundbft/app/learning"
	"roundbft/types"
	"strings"
	"time"
)

const (
	DefaultDirName   = ".roundbft"
	defaultConfigDir = "config"
	defaultDataDir   = "data"

	defaultConfigFileName = "config.toml"
	defaultAgentKeyName   = "agent_key.json"
	defaultNodeKeyName    = "node_key.json"

	DefaultAppID = "learning"
)

var (
	defaultConfigFilePath = filepath.Join(defaultConfigDir, defaultConfigFileName)
	defaultAgentKeyPath   = filepath.Join(defaultConfigDir, defaultAgentKeyName)
	defaultNodeKeyPath    = filepath.Join(defaultConfigDir, defaultNodeKeyName)
)

// Config 节点的全部配置，对应 $HOME/.roundbft/config/config.toml
type Config struct {
	BaseConfig `mapstructure:",squash"`

	P2P     *tmcfg.P2PConfig `mapstructure:"p2p"`
	RPC     *tmcfg.RPCConfig `mapstructure:"rpc"`
	Agent   *AgentConfig     `mapstructure:"agent"`
	Gateway *GatewayConfig   `mapstructure:"gateway"`
}

func DefaultConfig() *Config {
	return &Config{
		BaseConfig: DefaultBaseConfig(),
		P2P:        tmcfg.DefaultP2PConfig(),
		RPC:        tmcfg.DefaultRPCConfig(),
		Agent:      DefaultAgentConfig(),
		Gateway:    DefaultGatewayConfig(),
	}
}

// TestConfig returns a configuration suitable for in-process tests.
func TestConfig() *Config {
	return &Config{
		BaseConfig: TestBaseConfig(),
		P2P:        tmcfg.TestP2PConfig(),
		RPC:        tmcfg.TestRPCConfig(),
		Agent:      DefaultAgentConfig(),
		Gateway:    TestGatewayConfig(),
	}
}

// SetRoot sets the RootDir for all Config structs
func (c *Config) SetRoot(root string) *Config {
	c.BaseConfig.RootDir = root
	c.P2P.RootDir = root
	c.RPC.RootDir = root
	return c
}

func (c *Config) ValidateBasic() error {
	if err := c.BaseConfig.ValidateBasic(); err != nil {
		return err
	}
	if err := c.P2P.ValidateBasic(); err != nil {
		return errors.Wrap(err, "error in [p2p] section")
	}
	if err := c.RPC.ValidateBasic(); err != nil {
		return errors.Wrap(err, "error in [rpc] section")
	}
	if err := c.Agent.ValidateBasic(); err != nil {
		return errors.Wrap(err, "error in [agent] section")
	}
	if err := c.Gateway.ValidateBasic(); err != nil {
		return errors.Wrap(err, "error in [gateway] section")
	}
	return nil
}

//-----------------------------------------------------------------------------

type BaseConfig struct {
	RootDir string `mapstructure:"home"`

	Moniker  string `mapstructure:"moniker"`
	LogLevel string `mapstructure:"log_level"`

	// AppID 签名时的域分隔，不同应用的payload不能互相冒充
	AppID string `mapstructure:"app_id"`

	DBBackend string `mapstructure:"db_backend"`
	DBPath    string `mapstructure:"db_dir"`

	AgentKey string `mapstructure:"agent_key_file"`
	NodeKey  string `mapstructure:"node_key_file"`
}

func DefaultBaseConfig() BaseConfig {
	return BaseConfig{
		Moniker:   defaultMoniker(),
		LogLevel:  "info",
		AppID:     DefaultAppID,
		DBBackend: "goleveldb",
		DBPath:    defaultDataDir,
		AgentKey:  defaultAgentKeyPath,
		NodeKey:   defaultNodeKeyPath,
	}
}

func TestBaseConfig() BaseConfig {
	cfg := DefaultBaseConfig()
	cfg.Moniker = "test-agent"
	cfg.DBBackend = "memdb"
	return cfg
}

func defaultMoniker() string {
	moniker, err := os.Hostname()
	if err != nil {
		moniker = "anonymous"
	}
	return moniker
}

func (cfg BaseConfig) ConfigFile() string {
	return rootify(defaultConfigFilePath, cfg.RootDir)
}

func (cfg BaseConfig) AgentKeyFile() string {
	return rootify(cfg.AgentKey, cfg.RootDir)
}

func (cfg BaseConfig) NodeKeyFile() string {
	return rootify(cfg.NodeKey, cfg.RootDir)
}

func (cfg BaseConfig) DBDir() string {
	return rootify(cfg.DBPath, cfg.RootDir)
}

func (cfg BaseConfig) ValidateBasic() error {
	if cfg.AppID == "" {
		return errors.New("app_id can't be empty")
	}
	switch cfg.DBBackend {
	case "goleveldb", "memdb":
	default:
		return fmt.Errorf("unsupported db_backend %q", cfg.DBBackend)
	}
	return nil
}

//-----------------------------------------------------------------------------

// AgentConfig 参与者集合和学习应用的参数
type AgentConfig struct {
	// Participants 全部参与者地址（十六进制），包括本节点
	Participants []string `mapstructure:"participants"`
	// Threshold 为0时使用 ceil((2n+1)/3)
	Threshold int `mapstructure:"threshold"`

	TokenID          string `mapstructure:"token_id"`
	PriceEndpoint    string `mapstructure:"price_endpoint"`
	ContractEndpoint string `mapstructure:"contract_endpoint"`

	SafeContractAddress string  `mapstructure:"safe_contract_address"`
	MultisendAddress    string  `mapstructure:"multisend_address"`
	TransferTarget      string  `mapstructure:"transfer_target"`
	TransferValue       int64   `mapstructure:"transfer_value"`
	TransferThreshold   float64 `mapstructure:"transfer_threshold"`
}

func DefaultAgentConfig() *AgentConfig {
	return &AgentConfig{
		Participants:  []string{},
		TokenID:       learning.DefaultTokenID,
		TransferValue: learning.DefaultTransferValue,
	}
}

func (cfg *AgentConfig) ValidateBasic() error {
	if cfg.Threshold < 0 {
		return errors.New("threshold can't be negative")
	}
	if cfg.Threshold > len(cfg.Participants) {
		return fmt.Errorf("threshold %d exceeds the %d participants", cfg.Threshold, len(cfg.Participants))
	}
	if cfg.TransferValue < 0 {
		return errors.New("transfer_value can't be negative")
	}
	if _, err := cfg.ParticipantAddresses(); err != nil {
		return err
	}
	return nil
}

func (cfg *AgentConfig) ParticipantAddresses() ([]types.Address, error) {
	addrs := make([]types.Address, 0, len(cfg.Participants))
	for _, p := range cfg.Participants {
		addr, err := types.AddressFromHex(strings.TrimSpace(p))
		if err != nil {
			return nil, errors.Wrapf(err, "participant %q", p)
		}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}

// Quorum builds the participant quorum. self is added if missing.
func (cfg *AgentConfig) Quorum(self types.Address) (*types.Quorum, error) {
	addrs, err := cfg.ParticipantAddresses()
	if err != nil {
		return nil, err
	}
	found := false
	for _, a := range addrs {
		if a.Equal(self) {
			found = true
			break
		}
	}
	if !found {
		addrs = append(addrs, self)
	}
	return types.NewQuorum(addrs, cfg.Threshold)
}

func (cfg *AgentConfig) Params() learning.Params {
	return learning.Params{
		TokenID:             cfg.TokenID,
		SafeContractAddress: cfg.SafeContractAddress,
		MultisendAddress:    cfg.MultisendAddress,
		TransferTarget:      cfg.TransferTarget,
		TransferValue:       cfg.TransferValue,
		TransferThreshold:   cfg.TransferThreshold,
	}
}

//-----------------------------------------------------------------------------

type GatewayConfig struct {
	// RoundTimeout 为0时永远等待quorum
	RoundTimeout time.Duration `mapstructure:"round_timeout"`
}

func DefaultGatewayConfig() *GatewayConfig {
	return &GatewayConfig{
		RoundTimeout: 30 * time.Second,
	}
}

func TestGatewayConfig() *GatewayConfig {
	return &GatewayConfig{
		RoundTimeout: 2 * time.Second,
	}
}

func (cfg *GatewayConfig) ValidateBasic() error {
	if cfg.RoundTimeout < 0 {
		return errors.New("round_timeout can't be negative")
	}
	return nil
}

//-----------------------------------------------------------------------------

func rootify(path, root string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}
