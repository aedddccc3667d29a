package gateway

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/go-kit/kit/log/term"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfg "github.com/tendermint/tendermint/config"
	"github.com/tendermint/tendermint/libs/log"
	"github.com/tendermint/tendermint/p2p"
	"github.com/tendermint/tendermint/p2p/mock"
	"roundbft/privval"
	"roundbft/state"
	"roundbft/types"
)

const (
	testAppID = "gateway_test"
	timeout   = 30 * time.Second
)

// 测试节点之间通过p2p广播payload后确认出相同的快照
func TestReactorBroadcastPayloads(t *testing.T) {
	config := cfg.TestConfig()

	agents := newAgents(4)
	reactors := makeAndConnectReactors(t, config, agents)
	defer func() {
		for _, r := range reactors {
			if err := r.Stop(); err != nil {
				assert.NoError(t, err)
			}
		}
	}()

	for i, r := range reactors {
		p := newPayload(agents[i].GetAddress(), collectRound, 0, "1.0")
		require.NoError(t, r.Submit(context.Background(), p))
	}

	snapshots := waitForRoundOnReactors(t, reactors, types.RoundKey{Period: 0, Round: collectRound})
	for _, sd := range snapshots {
		v, ok := sd.GetString("value")
		assert.True(t, ok)
		assert.Equal(t, "1.0", v)
		assert.Len(t, sd.Payloads(), 3)
	}
}

// 测试一个节点提交后只靠其他节点的转发也能凑齐quorum
func TestReactorRelaysPayloads(t *testing.T) {
	config := cfg.TestConfig()

	agents := newAgents(4)
	reactors := makeAndConnectReactors(t, config, agents)
	defer func() {
		for _, r := range reactors {
			if err := r.Stop(); err != nil {
				assert.NoError(t, err)
			}
		}
	}()

	// 重复提交不会重复计数
	require.NoError(t, reactors[0].Submit(context.Background(), newPayload(agents[0].GetAddress(), collectRound, 0, "x")))
	require.NoError(t, reactors[0].Submit(context.Background(), newPayload(agents[0].GetAddress(), collectRound, 0, "x")))
	require.NoError(t, reactors[1].Submit(context.Background(), newPayload(agents[1].GetAddress(), collectRound, 0, "x")))
	require.NoError(t, reactors[2].Submit(context.Background(), newPayload(agents[2].GetAddress(), collectRound, 0, "x")))

	snapshots := waitForRoundOnReactors(t, reactors, types.RoundKey{Period: 0, Round: collectRound})
	// reactor 3没有提交，但同样能确认这一轮
	v, _ := snapshots[3].GetString("value")
	assert.Equal(t, "x", v)
	for _, sd := range snapshots {
		assert.Equal(t, snapshots[0].Hash(), sd.Hash())
	}
}

// 测试当有节点退出时不会出现goroutine泄漏
func TestBroadcastRoutineStopsWhenReactorStops(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test in short mode.")
	}

	config := cfg.TestConfig()
	reactors := makeAndConnectReactors(t, config, newAgents(2))

	for _, r := range reactors {
		if err := r.Stop(); err != nil {
			assert.NoError(t, err)
		}
	}

	leaktest.CheckTimeout(t, 10*time.Second)()
}

func TestReactorReceiveFromPeer(t *testing.T) {
	config := cfg.TestConfig()
	agents := newAgents(4)
	reactors := makeAndConnectReactors(t, config, agents[:1])
	defer func() {
		for _, r := range reactors {
			if err := r.Stop(); err != nil {
				assert.NoError(t, err)
			}
		}
	}()
	reactor := reactors[0]
	key := types.RoundKey{Round: collectRound}

	peer := mock.NewPeer(nil)
	reactor.InitPeer(peer)
	reactor.Receive(0x99, peer, []byte{0x1})
	assert.Equal(t, 0, reactor.Collector().Contributors(key))

	env, err := SignEnvelope(testAppID, agents[1], newPayload(agents[1].GetAddress(), collectRound, 0, "1.0"))
	require.NoError(t, err)
	bz, err := env.Marshal()
	require.NoError(t, err)

	// 重复收到只计数一次
	reactor.Receive(PayloadChannel, peer, bz)
	reactor.Receive(PayloadChannel, peer, bz)
	assert.Equal(t, 1, reactor.Collector().Contributors(key))
	assert.Equal(t, 1, reactor.outbox.Size())
}

// 测试peerIDs能否正常分配id回收id
func TestPeerIDsBasic(t *testing.T) {
	ids := newPeerIDs()

	peer := mock.NewPeer(net.IP{127, 0, 0, 1})

	ids.ReserveForPeer(peer)
	assert.EqualValues(t, 1, ids.GetForPeer(peer))
	ids.Reclaim(peer)

	ids.ReserveForPeer(peer)
	assert.EqualValues(t, 2, ids.GetForPeer(peer))
	ids.Reclaim(peer)
}

// gatewayLogger is a TestingLogger which uses a different
// color for each agent ("agent" key must exist).
func gatewayLogger() log.Logger {
	return log.TestingLoggerWithColorFn(func(keyvals ...interface{}) term.FgBgColor {
		for i := 0; i < len(keyvals)-1; i += 2 {
			if keyvals[i] == "agent" {
				return term.FgBgColor{Fg: term.Color(uint8(keyvals[i+1].(int) + 1))}
			}
		}
		return term.FgBgColor{}
	})
}

// connect N gateway reactors through N switches
// 所有节点使用4个agent组成的quorum
func makeAndConnectReactors(t *testing.T, config *cfg.Config, agents []*privval.FilePV) []*Reactor {
	all := newAgents(4)
	quorum := newTestQuorum(t, all)
	app := newTestApp(t)

	reactors := make([]*Reactor, len(agents))
	logger := gatewayLogger()
	for i := range agents {
		reactors[i] = NewReactor(testAppID, agents[i], NewCollector(quorum, app, nil))
		reactors[i].SetLogger(logger.With("agent", i))
	}

	p2p.MakeConnectedSwitches(config.P2P, len(agents), func(i int, s *p2p.Switch) *p2p.Switch {
		s.AddReactor("GATEWAY", reactors[i])
		return s
	}, p2p.Connect2Switches)
	return reactors
}

func waitForRoundOnReactors(t *testing.T, reactors []*Reactor, key types.RoundKey) []*state.SynchronizedData {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	out := make([]*state.SynchronizedData, len(reactors))
	wg := new(sync.WaitGroup)
	for i, reactor := range reactors {
		wg.Add(1)
		go func(r *Reactor, idx int) {
			defer wg.Done()
			sd, err := r.AwaitRoundEnd(ctx, key.Round, key.Period)
			assert.NoError(t, err, "reactor %d", idx)
			out[idx] = sd
		}(reactor, i)
	}
	wg.Wait()

	for _, sd := range out {
		require.NotNil(t, sd)
		assert.Equal(t, out[0].Period(), sd.Period())
	}
	return out
}
