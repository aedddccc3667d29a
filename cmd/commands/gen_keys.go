package commands

import (
	"fmt"
	"github.com/spf13/cobra"
	tmos "github.com/tendermint/tendermint/libs/os"
	"github.com/tendermint/tendermint/p2p"
	"roundbft/privval"
)

var seed string

// GenAgentKeyCmd 生成agent用来给payload签名的公私钥对，输出地址
// 地址写进其他agent的participants
var GenAgentKeyCmd = &cobra.Command{
	Use:     "gen-agent-key",
	Aliases: []string{"gen_agent_key"},
	Args:    cobra.NoArgs,
	Short:   "Generate a new agent keypair and print its address",
	PreRun:  deprecateSnakeCase,
	RunE:    genAgentKey,
}

// GenNodeKeyCmd 生成p2p连接用的节点密钥，输出nodeID
// nodeID写进其他agent的persistent_peers
var GenNodeKeyCmd = &cobra.Command{
	Use:     "gen-node-key",
	Aliases: []string{"gen_node_key"},
	Args:    cobra.NoArgs,
	Short:   "Generate a node key for this agent and print its ID",
	PreRun:  deprecateSnakeCase,
	RunE:    genNodeKey,
}

func init() {
	GenAgentKeyCmd.Flags().StringVar(&seed, "seed", "", "生成确定性密钥的种子，为空时随机生成")
}

func mustNotExist(path, what string) error {
	if tmos.FileExists(path) {
		return fmt.Errorf("%s at %s already exists", what, path)
	}
	return nil
}

func genAgentKey(cmd *cobra.Command, args []string) error {
	agentKeyFile := config.AgentKeyFile()
	if err := mustNotExist(agentKeyFile, "agent key"); err != nil {
		return err
	}

	pv := privval.GenFilePV(agentKeyFile)
	if seed != "" {
		pv = privval.GenFilePVWithSeed(agentKeyFile, []byte(seed))
	}
	if err := pv.Save(); err != nil {
		return err
	}
	fmt.Println(pv.GetAddress())
	return nil
}

func genNodeKey(cmd *cobra.Command, args []string) error {
	nodeKeyFile := config.NodeKeyFile()
	if err := mustNotExist(nodeKeyFile, "node key"); err != nil {
		return err
	}

	nodeKey, err := p2p.LoadOrGenNodeKey(nodeKeyFile)
	if err != nil {
		return err
	}
	fmt.Println(nodeKey.ID())
	return nil
}
