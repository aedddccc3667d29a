package commands

import (
	"fmt"
	"github.com/spf13/cobra"
	tmos "github.com/tendermint/tendermint/libs/os"
	nm "roundbft/node"
)

// AddNodeFlags exposes some common configuration options on the command-line
// These are exposed for convenience of commands embedding a roundbft node
func AddNodeFlags(cmd *cobra.Command) {
	// bind flags
	cmd.Flags().String("moniker", config.Moniker, "node name")
	cmd.Flags().String("app_id", config.AppID, "application id used to domain-separate payload signatures")
	cmd.Flags().String("db_backend", config.DBBackend, "database backend: goleveldb | memdb")
	cmd.Flags().String("db_dir", config.DBPath, "database directory")

	// p2p flags
	cmd.Flags().String("p2p.laddr", config.P2P.ListenAddress, "node listen address. (0.0.0.0:0 means any interface, any port)")
	cmd.Flags().String("p2p.external-address", config.P2P.ExternalAddress, "ip:port address to advertise to peers for them to dial")
	cmd.Flags().String("p2p.persistent_peers", config.P2P.PersistentPeers, "comma-delimited ID@host:port persistent peers")

	// rpc flags
	cmd.Flags().String("rpc.laddr", config.RPC.ListenAddress, "RPC listen address. Port required")

	// agent flags
	cmd.Flags().StringSlice("agent.participants", config.Agent.Participants, "addresses of all participating agents")
	cmd.Flags().Int("agent.threshold", config.Agent.Threshold, "payloads required to confirm a round, 0 means ceil((2n+1)/3)")
	cmd.Flags().String("agent.price_endpoint", config.Agent.PriceEndpoint, "coingecko compatible price api, empty means a static price")
	cmd.Flags().String("agent.contract_endpoint", config.Agent.ContractEndpoint, "json-rpc endpoint of the contract api")
	cmd.Flags().String("agent.safe_contract_address", config.Agent.SafeContractAddress, "gnosis safe address")

	cmd.Flags().Duration("gateway.round_timeout", config.Gateway.RoundTimeout, "round timeout, 0 waits for the quorum forever")
}

// NewRunNodeCmd returns the command that allows the CLI to start a node.
// It can be used with a custom agent key and node key.
func NewRunNodeCmd(nodeProvider nm.Provider) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "start",
		Aliases: []string{"node", "run"},
		Short:   "Run the roundbft agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := nodeProvider(config, logger)
			if err != nil {
				return fmt.Errorf("failed to create node: %w", err)
			}

			if err := n.Start(); err != nil {
				return fmt.Errorf("failed to start node: %w", err)
			}

			logger.Info("Started node", "nodeInfo", n.Switch().NodeInfo(), "agent", n.Agent().GetAddress())

			// Stop upon receiving SIGTERM or CTRL-C.
			tmos.TrapSignal(logger, func() {
				if n.IsRunning() {
					if err := n.Stop(); err != nil {
						logger.Error("unable to stop the node", "error", err)
					}
				}
			})

			// Run forever.
			select {}
		},
	}

	AddNodeFlags(cmd)
	return cmd
}
