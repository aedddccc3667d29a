package commands

import (
	"fmt"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	tmos "github.com/tendermint/tendermint/libs/os"
	"github.com/tendermint/tendermint/p2p"
	"roundbft/privval"
)

// ShowNodeIDCmd dumps node's ID to the standard output.
var ShowNodeIDCmd = &cobra.Command{
	Use:     "show-node-id",
	Aliases: []string{"show_node_id"},
	Short:   "Show this node's ID",
	RunE:    showNodeID,
	PreRun:  deprecateSnakeCase,
}

func showNodeID(cmd *cobra.Command, args []string) error {
	nodeKey, err := p2p.LoadNodeKey(config.NodeKeyFile())
	if err != nil {
		return err
	}

	fmt.Println(nodeKey.ID())
	return nil
}

// ShowAgentCmd 输出agent的地址和公钥，地址写进其他agent的participants
var ShowAgentCmd = &cobra.Command{
	Use:     "show-agent",
	Aliases: []string{"show_agent"},
	Short:   "Show this agent's address and public key",
	RunE:    showAgent,
	PreRun:  deprecateSnakeCase,
}

type agentInfo struct {
	Address string `json:"address"`
	PubKey  string `json:"pub_key"`
	Type    string `json:"type"`
}

func showAgent(cmd *cobra.Command, args []string) error {
	keyFilePath := config.AgentKeyFile()
	if !tmos.FileExists(keyFilePath) {
		return fmt.Errorf("agent key file %q does not exist", keyFilePath)
	}

	pv, err := privval.LoadFilePV(keyFilePath)
	if err != nil {
		return err
	}
	pubKey, err := pv.GetPubKey()
	if err != nil {
		return errors.Wrap(err, "can't get pubkey")
	}

	bz, err := json.MarshalIndent(agentInfo{
		Address: pv.GetAddress().String(),
		PubKey:  fmt.Sprintf("%X", pubKey.Bytes()),
		Type:    pubKey.Type(),
	}, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal agent info")
	}

	fmt.Println(string(bz))
	return nil
}
