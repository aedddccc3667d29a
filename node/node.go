package node

import (
	"fmt"
	"github.com/pkg/errors"
	"github.com/tendermint/tendermint/libs/log"
	"github.com/tendermint/tendermint/libs/service"
	"github.com/tendermint/tendermint/p2p"
	"github.com/tendermint/tendermint/p2p/conn"
	rpcserver "github.com/tendermint/tendermint/rpc/jsonrpc/server"
	"net"
	"net/http"
	"roundbft/app/learning"
	"roundbft/behaviour"
	cfg "roundbft/config"
	"roundbft/consensus"
	"roundbft/contract"
	"roundbft/gateway"
	"roundbft/libs/metric"
	"roundbft/pricefeed"
	"roundbft/privval"
	"roundbft/rpc"
	"roundbft/state"
	"roundbft/store"
	"strings"
)

const (
	dbName = "roundbft"

	// 没有配置价格接口时使用的固定价格
	staticPrice = 1.0
)

type Provider func(*cfg.Config, log.Logger) (*Node, error)

// Node 一个agent进程：p2p网关、调度器、存储和RPC
type Node struct {
	service.BaseService

	// config
	config *cfg.Config

	// network
	transport *p2p.MultiplexTransport
	sw        *p2p.Switch // p2p connections
	nodeInfo  p2p.NodeInfo
	nodeKey   *p2p.NodeKey // our node privkey

	// service
	agent      *privval.FilePV
	store      *store.KVStore
	gateway    *gateway.Reactor
	dispatcher *consensus.RoundBehaviour
	benchmark  *metric.BenchmarkTool
	metricSet  *metric.MetricSet

	rpcListeners []net.Listener
}

type Option func(*Node)

// DefaultNewNode 从配置中的文件加载agent和节点密钥，不存在时生成
func DefaultNewNode(config *cfg.Config, logger log.Logger) (*Node, error) {
	nodeKey, err := p2p.LoadOrGenNodeKey(config.NodeKeyFile())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load or gen node key %s", config.NodeKeyFile())
	}
	agent, err := privval.LoadOrGenFilePV(config.AgentKeyFile())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load or gen agent key %s", config.AgentKeyFile())
	}
	return NewNode(config, agent, nodeKey, logger)
}

func createTransport(nodeInfo p2p.NodeInfo, nodeKey *p2p.NodeKey) *p2p.MultiplexTransport {
	var (
		mConnConfig = conn.DefaultMConnConfig()
		transport   = p2p.NewMultiplexTransport(nodeInfo, *nodeKey, mConnConfig)
	)
	return transport
}

func createSwitch(config *cfg.Config,
	transport p2p.Transport,
	gatewayReactor *gateway.Reactor,
	nodeInfo p2p.NodeInfo,
	nodeKey *p2p.NodeKey,
	p2pLogger log.Logger) *p2p.Switch {

	sw := p2p.NewSwitch(
		config.P2P,
		transport,
	)
	sw.SetLogger(p2pLogger)
	sw.AddReactor("GATEWAY", gatewayReactor)

	sw.SetNodeInfo(nodeInfo)
	sw.SetNodeKey(nodeKey)

	p2pLogger.Info("P2P Node ID", "ID", nodeKey.ID(), "file", config.NodeKeyFile())
	return sw
}

func createStore(config *cfg.Config, logger log.Logger) (*store.KVStore, error) {
	if config.DBBackend == "memdb" {
		return store.NewMemStore(), nil
	}
	return store.NewKVStore(dbName, config.DBDir(), logger)
}

// resumePoint 有检查点时从检查点所在period的快照继续，否则使用创世快照
func resumePoint(kv *store.KVStore, genesis *state.SynchronizedData) (*state.SynchronizedData, error) {
	rs, err := kv.LoadRoundState()
	if err != nil {
		return nil, err
	}
	if rs == nil {
		return genesis, nil
	}
	sd, err := kv.LoadSnapshot(rs.Period)
	if err != nil {
		return nil, err
	}
	if sd == nil {
		return nil, fmt.Errorf("%w: period %v", consensus.ErrCheckpointGap, rs.Period)
	}
	return sd, nil
}

func createCollaborators(config *cfg.Config, logger log.Logger) (learning.Collaborators, error) {
	collab := learning.Collaborators{}

	if config.Agent.PriceEndpoint == "" {
		collab.Prices = pricefeed.Static(staticPrice)
	} else {
		prices := pricefeed.NewClient(config.Agent.PriceEndpoint)
		prices.SetLogger(logger.With("module", "pricefeed"))
		collab.Prices = prices
	}

	if config.Agent.ContractEndpoint != "" {
		contracts, err := contract.NewClient(config.Agent.ContractEndpoint)
		if err != nil {
			return collab, err
		}
		contracts.SetLogger(logger.With("module", "contract"))
		collab.Contracts = contracts
	}

	if config.Agent.MultisendAddress != "" {
		collab.Batches = learning.TransferBatchBuilder{
			Target: config.Agent.TransferTarget,
			Value:  config.Agent.TransferValue,
		}
	}
	return collab, nil
}

func NewNode(config *cfg.Config, agent *privval.FilePV, nodeKey *p2p.NodeKey, logger log.Logger, options ...Option) (*Node, error) {
	app, err := learning.NewLearningApp()
	if err != nil {
		return nil, err
	}
	params := config.Agent.Params()

	kv, err := createStore(config, logger.With("module", "store"))
	if err != nil {
		return nil, err
	}
	start, err := resumePoint(kv, params.Genesis())
	if err != nil {
		return nil, err
	}

	quorum, err := config.Agent.Quorum(agent.GetAddress())
	if err != nil {
		return nil, err
	}
	collector := gateway.NewCollector(quorum, app, start, gateway.WithRoundTimeout(config.Gateway.RoundTimeout))
	gatewayReactor := gateway.NewReactor(config.AppID, agent, collector)
	gatewayReactor.SetLogger(logger.With("module", "gateway"))

	collab, err := createCollaborators(config, logger)
	if err != nil {
		return nil, err
	}

	benchmark := metric.NewBenchmarkTool()
	bctx := &behaviour.Context{
		AgentAddress: agent.GetAddress(),
		Gateway:      gatewayReactor,
		Benchmark:    benchmark,
		Logger:       logger.With("module", "behaviour"),
	}
	dispatcher, err := consensus.NewRoundBehaviour(app, learning.Factories(params, collab), bctx, start,
		consensus.WithCheckpointStore(kv))
	if err != nil {
		return nil, err
	}
	dispatcher.SetLogger(logger.With("module", "consensus"))
	if err := dispatcher.Restore(); err != nil {
		return nil, err
	}

	metricSet := metric.NewMetricSet()
	for label, item := range map[string]metric.MetricItem{
		"benchmark":  benchmark,
		"dispatcher": metric.FuncItem(dispatcher.MetricJSON),
		"gateway":    metric.FuncItem(collector.MetricJSON),
	} {
		if err := metricSet.Register(label, item); err != nil {
			return nil, err
		}
	}

	p2pLogger := logger.With("module", "p2p")

	// setup node identity
	nodeInfo, err := makeNodeInfo(config, nodeKey)
	if err != nil {
		return nil, err
	}

	// Setup Transport.
	transport := createTransport(nodeInfo, nodeKey)

	// Setup Switch.
	sw := createSwitch(
		config, transport, gatewayReactor, nodeInfo, nodeKey, p2pLogger,
	)

	node := &Node{
		config:     config,
		transport:  transport,
		sw:         sw,
		nodeInfo:   nodeInfo,
		nodeKey:    nodeKey,
		agent:      agent,
		store:      kv,
		gateway:    gatewayReactor,
		dispatcher: dispatcher,
		benchmark:  benchmark,
		metricSet:  metricSet,
	}
	node.BaseService = *service.NewBaseService(logger, "Node", node)
	for _, option := range options {
		option(node)
	}

	logger.Info("node created", "agent", agent.GetAddress(), "participants", quorum.Size(),
		"threshold", quorum.Threshold(), "round", dispatcher.CurrentRound())
	return node, nil
}

func (n *Node) Switch() *p2p.Switch {
	return n.sw
}

func (n *Node) NodeInfo() p2p.NodeInfo {
	return n.nodeInfo
}

func (n *Node) Dispatcher() *consensus.RoundBehaviour {
	return n.dispatcher
}

func (n *Node) Gateway() *gateway.Reactor {
	return n.gateway
}

func (n *Node) Agent() *privval.FilePV {
	return n.agent
}

func (n *Node) OnStart() error {
	// start the transport
	addr, err := p2p.NewNetAddressString(p2p.IDAddressString(n.nodeKey.ID(), n.config.P2P.ListenAddress))
	if err != nil {
		return err
	}
	if err := n.transport.Listen(*addr); err != nil {
		return err
	}

	if n.config.RPC.ListenAddress != "" {
		listeners, err := n.startRPC()
		if err != nil {
			return err
		}
		n.rpcListeners = listeners
	}

	// start the Switch
	if err := n.sw.Start(); err != nil {
		return err
	}

	n.Logger.Info("dial peers", "peers", n.config.P2P.PersistentPeers)
	err = n.sw.DialPeersAsync(splitAndTrimEmpty(n.config.P2P.PersistentPeers, ",", " "))
	if err != nil {
		return fmt.Errorf("could not dial peers from persistent_peers field: %w", err)
	}

	return n.dispatcher.Start()
}

func (n *Node) OnStop() {
	if err := n.dispatcher.Stop(); err != nil {
		n.Logger.Error("Error stopping dispatcher", "err", err)
	}
	if err := n.sw.Stop(); err != nil {
		n.Logger.Error("Error stopping switch", "err", err)
	}
	if err := n.transport.Close(); err != nil {
		n.Logger.Error("Error closing transport", "err", err)
	}
	for _, l := range n.rpcListeners {
		n.Logger.Info("Closing rpc listener", "listener", l)
		if err := l.Close(); err != nil {
			n.Logger.Error("Error closing listener", "listener", l, "err", err)
		}
	}
	if err := n.store.Close(); err != nil {
		n.Logger.Error("Error closing store", "err", err)
	}
}

func (n *Node) startRPC() ([]net.Listener, error) {
	rpc.SetEnvironment(&rpc.Environment{
		Dispatcher: n.dispatcher,
		Collector:  n.gateway.Collector(),
		Store:      n.store,
		MetricSet:  n.metricSet,
	})

	config := rpcserver.DefaultConfig()
	config.MaxBodyBytes = n.config.RPC.MaxBodyBytes
	config.MaxHeaderBytes = n.config.RPC.MaxHeaderBytes
	config.MaxOpenConnections = n.config.RPC.MaxOpenConnections

	rpcLogger := n.Logger.With("module", "rpc-server")
	mux := http.NewServeMux()
	wm := rpcserver.NewWebsocketManager(rpc.Routes, rpcserver.ReadLimit(config.MaxBodyBytes))
	wm.SetLogger(rpcLogger.With("protocol", "websocket"))
	mux.HandleFunc("/websocket", wm.WebsocketHandler)
	rpcserver.RegisterRPCFuncs(mux, rpc.Routes, rpcLogger)

	listenAddrs := splitAndTrimEmpty(n.config.RPC.ListenAddress, ",", " ")
	listeners := make([]net.Listener, 0, len(listenAddrs))
	for _, listenAddr := range listenAddrs {
		listener, err := rpcserver.Listen(listenAddr, config)
		if err != nil {
			return nil, err
		}
		go func() {
			if err := rpcserver.Serve(listener, mux, rpcLogger, config); err != nil {
				rpcLogger.Error("Error serving server", "err", err)
			}
		}()
		listeners = append(listeners, listener)
	}
	return listeners, nil
}

// splitAndTrimEmpty slices s into all subslices separated by sep and returns a
// slice of the string s with all leading and trailing Unicode code points
// contained in cutset removed. If sep is empty, SplitAndTrim splits after each
// UTF-8 sequence. First part is equivalent to strings.SplitN with a count of
// -1.  also filter out empty strings, only return non-empty strings.
func splitAndTrimEmpty(s, sep, cutset string) []string {
	if s == "" {
		return []string{}
	}

	spl := strings.Split(s, sep)
	nonEmptyStrings := make([]string, 0, len(spl))
	for i := 0; i < len(spl); i++ {
		element := strings.Trim(spl[i], cutset)
		if element != "" {
			nonEmptyStrings = append(nonEmptyStrings, element)
		}
	}
	return nonEmptyStrings
}
