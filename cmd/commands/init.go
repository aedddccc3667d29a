package commands

import (
	"github.com/spf13/cobra"
	tmos "github.com/tendermint/tendermint/libs/os"
	"github.com/tendermint/tendermint/p2p"
	cfg "roundbft/config"
	"roundbft/privval"
)

// InitFilesCmd 初始化agent目录：配置文件、agent密钥和节点密钥
var InitFilesCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a roundbft agent",
	RunE:  initFiles,
}

func initFiles(cmd *cobra.Command, args []string) error {
	return initFilesWithConfig(config)
}

func initFilesWithConfig(config *cfg.Config) error {
	if err := cfg.EnsureRoot(config.RootDir); err != nil {
		return err
	}

	// agent key
	agentKeyFile := config.AgentKeyFile()
	if tmos.FileExists(agentKeyFile) {
		logger.Info("Found agent key", "keyFile", agentKeyFile)
	} else {
		pv := privval.GenFilePV(agentKeyFile)
		if err := pv.Save(); err != nil {
			return err
		}
		logger.Info("Generated agent key", "keyFile", agentKeyFile, "address", pv.GetAddress())
	}

	nodeKeyFile := config.NodeKeyFile()
	if tmos.FileExists(nodeKeyFile) {
		logger.Info("Found node key", "path", nodeKeyFile)
	} else {
		if _, err := p2p.LoadOrGenNodeKey(nodeKeyFile); err != nil {
			return err
		}
		logger.Info("Generated node key", "path", nodeKeyFile)
	}
	return nil
}
