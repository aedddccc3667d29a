package learning

import (
	"context"
	"errors"
	"github.com/stretchr/testify/require"
	"github.com/tendermint/tendermint/libs/log"
	"roundbft/behaviour"
	"roundbft/consensus"
	"roundbft/fsm"
	"roundbft/gateway"
	"roundbft/privval"
	"roundbft/state"
	"roundbft/types"
	"strings"
	"sync"
	"testing"
	"time"
)

const (
	testSafe   = "0x5afe000000000000000000000000000000000001"
	testTarget = "0x7a4e000000000000000000000000000000000002"
)

var (
	testTxHash = "0x" + strings.Repeat("ab", 32)

	errPriceDown = errors.New("coingecko unavailable")
)

type fixedPrice struct {
	price float64
	err   error
}

func (p fixedPrice) Price(ctx context.Context, tokenID string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return p.price, p.err
}

// recordingContracts 记录收到的请求，返回固定的响应
type recordingContracts struct {
	mtx  sync.Mutex
	reqs []behaviour.ContractRequest

	resp behaviour.ContractResponse
	err  error
}

func (c *recordingContracts) GetState(ctx context.Context, req behaviour.ContractRequest) (behaviour.ContractResponse, error) {
	c.mtx.Lock()
	c.reqs = append(c.reqs, req)
	c.mtx.Unlock()
	if err := ctx.Err(); err != nil {
		return behaviour.ContractResponse{}, err
	}
	return c.resp, c.err
}

func (c *recordingContracts) requests() []behaviour.ContractRequest {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	out := make([]behaviour.ContractRequest, len(c.reqs))
	copy(out, c.reqs)
	return out
}

func hashResponse(txHash string) behaviour.ContractResponse {
	return behaviour.ContractResponse{
		Performative: behaviour.PerformativeState,
		State:        map[string]string{txHashKey: txHash},
	}
}

func testParams() Params {
	params := DefaultParams()
	params.SafeContractAddress = testSafe
	params.TransferTarget = testTarget
	return params
}

func newAgents(n int) []*privval.FilePV {
	agents := make([]*privval.FilePV, n)
	for i := range agents {
		agents[i] = privval.GenFilePVWithSeed("", []byte{byte(i), 'l', 'e', 'a', 'r', 'n'})
	}
	return agents
}

func newTestGateway(t *testing.T, app *fsm.App, agents []*privval.FilePV, genesis *state.SynchronizedData) *gateway.LocalGateway {
	addrs := make([]types.Address, len(agents))
	for i, a := range agents {
		addrs[i] = a.GetAddress()
	}
	q, err := types.NewQuorum(addrs, 0)
	require.NoError(t, err)
	gw := gateway.NewLocalGateway(gateway.NewCollector(q, app, genesis))
	gw.SetLogger(log.TestingLogger())
	return gw
}

func gatewayWithTimeout(q *types.Quorum, app *fsm.App, params Params, timeout time.Duration) *gateway.LocalGateway {
	gw := gateway.NewLocalGateway(gateway.NewCollector(q, app, params.Genesis(), gateway.WithRoundTimeout(timeout)))
	gw.SetLogger(log.TestingLogger())
	return gw
}

func newTestRoundBehaviour(
	t *testing.T,
	app *fsm.App,
	gw behaviour.Gateway,
	agent *privval.FilePV,
	params Params,
	collab Collaborators,
	options ...consensus.RoundBehaviourOption,
) *consensus.RoundBehaviour {
	bctx := &behaviour.Context{
		AgentAddress: agent.GetAddress(),
		Gateway:      gw,
		Logger:       log.TestingLogger(),
	}
	rb, err := consensus.NewRoundBehaviour(app, Factories(params, collab), bctx, params.Genesis(), options...)
	require.NoError(t, err)
	rb.SetLogger(log.TestingLogger())
	return rb
}

// runAll 并发运行全部调度器直到终止轮或出错
func runAll(ctx context.Context, rbs []*consensus.RoundBehaviour) []error {
	errs := make([]error, len(rbs))
	var wg sync.WaitGroup
	for i, rb := range rbs {
		wg.Add(1)
		go func(i int, rb *consensus.RoundBehaviour) {
			defer wg.Done()
			errs[i] = rb.Run(ctx)
		}(i, rb)
	}
	wg.Wait()
	return errs
}

func eventsOf(rb *consensus.RoundBehaviour) []types.Event {
	history := rb.History()
	out := make([]types.Event, 0, len(history))
	for _, r := range history {
		out = append(out, r.Event)
	}
	return out
}
