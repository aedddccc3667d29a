package main

import (
	"github.com/tendermint/tendermint/libs/cli"
	"os"
	"path/filepath"
	cmd "roundbft/cmd/commands"
	cfg "roundbft/config"
	nm "roundbft/node"
)

func main() {
	rootCmd := cmd.RootCmd

	rootCmd.AddCommand(
		cmd.InitFilesCmd,
		cli.NewCompletionCmd(rootCmd, true),
	)

	// NOTE:
	// Users wishing to:
	//	* Use an external signer for their agents
	//	* Supply their own price feed or contract api
	//	* Provide their own DB implementation
	// can copy this file and use something other than the
	// DefaultNewNode function
	nodeFunc := nm.DefaultNewNode

	// Create & start node
	rootCmd.AddCommand(
		cmd.GenNodeKeyCmd,
		cmd.GenAgentKeyCmd,
		cmd.ShowNodeIDCmd,
		cmd.ShowAgentCmd,
		cmd.ShowFSMCmd,
		cmd.VersionCmd,
		cmd.NewRunNodeCmd(nodeFunc),
	)
	cmd := cli.PrepareBaseCmd(rootCmd, "RB", os.ExpandEnv(filepath.Join("$HOME", cfg.DefaultDirName)))

	if err := cmd.Execute(); err != nil {
		panic(err)
	}
}
