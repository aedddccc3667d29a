package consensus

import (
	"context"
	"github.com/stretchr/testify/require"
	"github.com/tendermint/tendermint/libs/log"
	"roundbft/behaviour"
	"roundbft/fsm"
	"roundbft/gateway"
	"roundbft/privval"
	"roundbft/state"
	"roundbft/types"
	"sync"
	"testing"
)

const (
	proposeRound = types.RoundID("propose")
	voteRound    = types.RoundID("vote")
	endRound     = types.RoundID("end")

	testKind = types.PayloadKind("consensus_test_payload")

	eventDone       = types.Event("DONE")
	eventNoMajority = types.Event("NO_MAJORITY")
	eventBogus      = types.Event("BOGUS")
)

type testPayload struct {
	types.BasePayload
	Value string `json:"value"`
}

func (p *testPayload) Kind() types.PayloadKind { return testKind }

func (p *testPayload) Content() ([]byte, error) { return []byte(p.Value), nil }

func init() {
	types.RegisterPayload(testKind, func() types.Payload { return &testPayload{} })
}

func fieldOf(round types.RoundID) string {
	return string(round) + "_value"
}

func foldFor(round types.RoundID) state.Folder {
	return func(_ *state.SynchronizedData, payloads []types.Payload, threshold int) (map[string]interface{}, error) {
		p, ok := fsm.CollectSameUntilThreshold(payloads, threshold)
		if !ok {
			return nil, nil
		}
		return map[string]interface{}{fieldOf(round): p.(*testPayload).Value}, nil
	}
}

func newTestApp(t *testing.T) *fsm.App {
	events := []types.Event{eventDone, eventNoMajority}
	app, err := fsm.NewApp(
		[]fsm.Round{
			{ID: proposeRound, PayloadKind: testKind, Events: events, Initial: true, Fold: foldFor(proposeRound)},
			{ID: voteRound, PayloadKind: testKind, Events: events, Fold: foldFor(voteRound)},
			{ID: endRound, Terminal: true},
		},
		[]fsm.Transition{
			{From: proposeRound, Event: eventDone, To: voteRound},
			{From: proposeRound, Event: eventNoMajority, To: voteRound},
			{From: voteRound, Event: eventDone, To: endRound},
			{From: voteRound, Event: eventNoMajority, To: voteRound},
		},
	)
	require.NoError(t, err)
	return app
}

// valueBehaviour 提交固定的值，根据确认的快照是否写入了该轮字段决定事件
type valueBehaviour struct {
	c     *behaviour.Context
	round types.RoundID
	value func(types.RoundID, types.Period) string
	event types.Event // 非空时直接发出该事件

	calls *counter
}

type counter struct {
	mtx sync.Mutex
	n   int
}

func (c *counter) inc() {
	c.mtx.Lock()
	c.n++
	c.mtx.Unlock()
}

func (c *counter) get() int {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.n
}

func (b *valueBehaviour) ID() string { return string(b.round) + "_behaviour" }

func (b *valueBehaviour) Round() types.RoundID { return b.round }

func (b *valueBehaviour) LocalAct(ctx context.Context, synced *state.SynchronizedData) (types.Payload, error) {
	if b.calls != nil {
		b.calls.inc()
	}
	return &testPayload{
		BasePayload: types.NewBasePayload(b.c.AgentAddress, b.round, synced.Period()),
		Value:       b.value(b.round, synced.Period()),
	}, nil
}

func (b *valueBehaviour) Event(confirmed *state.SynchronizedData) (types.Event, error) {
	if b.event != "" {
		return b.event, nil
	}
	if confirmed.SetInLastRound(fieldOf(b.round)) {
		return eventDone, nil
	}
	return eventNoMajority, nil
}

func constant(v string) func(types.RoundID, types.Period) string {
	return func(types.RoundID, types.Period) string { return v }
}

func testFactories(value func(types.RoundID, types.Period) string, calls *counter) map[types.RoundID]behaviour.Factory {
	factories := map[types.RoundID]behaviour.Factory{}
	for _, id := range []types.RoundID{proposeRound, voteRound} {
		round := id
		factories[round] = func(c *behaviour.Context) behaviour.Behaviour {
			return &valueBehaviour{c: c, round: round, value: value, calls: calls}
		}
	}
	return factories
}

func newAgents(n int) []*privval.FilePV {
	agents := make([]*privval.FilePV, n)
	for i := range agents {
		agents[i] = privval.GenFilePVWithSeed("", []byte{byte(i), 'c', 's'})
	}
	return agents
}

func newLocalGateway(t *testing.T, app *fsm.App, agents []*privval.FilePV) *gateway.LocalGateway {
	addrs := make([]types.Address, len(agents))
	for i, a := range agents {
		addrs[i] = a.GetAddress()
	}
	q, err := types.NewQuorum(addrs, 0)
	require.NoError(t, err)
	return gateway.NewLocalGateway(gateway.NewCollector(q, app, nil))
}

func newTestRoundBehaviour(
	t *testing.T,
	app *fsm.App,
	gw behaviour.Gateway,
	agent *privval.FilePV,
	factories map[types.RoundID]behaviour.Factory,
	options ...RoundBehaviourOption,
) *RoundBehaviour {
	bctx := &behaviour.Context{
		AgentAddress: agent.GetAddress(),
		Gateway:      gw,
		Logger:       log.TestingLogger(),
	}
	rb, err := NewRoundBehaviour(app, factories, bctx, nil, options...)
	require.NoError(t, err)
	rb.SetLogger(log.TestingLogger())
	return rb
}

func gatewayFrom(q *types.Quorum, app *fsm.App, genesis *state.SynchronizedData) *gateway.LocalGateway {
	return gateway.NewLocalGateway(gateway.NewCollector(q, app, genesis))
}
