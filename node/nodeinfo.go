package node

import (
	"github.com/tendermint/tendermint/p2p"
	"github.com/tendermint/tendermint/version"
	cfg "roundbft/config"
	"roundbft/gateway"
)

// Version roundbft节点的版本，写入握手信息
const Version = "0.1.0"

// Network 同一个应用的agent才能互相连接
func Network(appID string) string {
	return "roundbft-" + appID
}

func makeNodeInfo(
	config *cfg.Config,
	nodeKey *p2p.NodeKey,
) (p2p.NodeInfo, error) {
	nodeInfo := p2p.DefaultNodeInfo{
		ProtocolVersion: p2p.NewProtocolVersion(
			version.P2PProtocol,
			0, // 没有区块
			0,
		),
		DefaultNodeID: nodeKey.ID(),
		Network:       Network(config.AppID),
		Version:       Version,
		Channels: []byte{
			gateway.PayloadChannel,
		},
		Moniker: config.Moniker,
		Other: p2p.DefaultNodeInfoOther{
			TxIndex:    "off",
			RPCAddress: config.RPC.ListenAddress,
		},
	}

	lAddr := config.P2P.ExternalAddress

	if lAddr == "" {
		lAddr = config.P2P.ListenAddress
	}

	nodeInfo.ListenAddr = lAddr

	err := nodeInfo.Validate()
	return nodeInfo, err
}
