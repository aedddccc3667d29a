package gateway

import (
	"github.com/stretchr/testify/require"
	"github.com/tendermint/tendermint/crypto/ed25519"
	"roundbft/fsm"
	"roundbft/privval"
	"roundbft/state"
	"roundbft/types"
	"testing"
)

const (
	collectRound  = types.RoundID("collect")
	retryRound    = types.RoundID("retry")
	finishedRound = types.RoundID("finished")

	testKind = types.PayloadKind("gateway_test_payload")

	eventDone       = types.Event("DONE")
	eventNoMajority = types.Event("NO_MAJORITY")
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

func majorityFold(_ *state.SynchronizedData, payloads []types.Payload, threshold int) (map[string]interface{}, error) {
	p, ok := fsm.CollectSameUntilThreshold(payloads, threshold)
	if !ok {
		return nil, nil
	}
	return map[string]interface{}{"value": p.(*testPayload).Value}, nil
}

func newTestApp(t *testing.T) *fsm.App {
	events := []types.Event{eventDone, eventNoMajority}
	app, err := fsm.NewApp(
		[]fsm.Round{
			{ID: collectRound, PayloadKind: testKind, Events: events, Initial: true, Fold: majorityFold},
			{ID: retryRound, PayloadKind: testKind, Events: events, Fold: majorityFold},
			{ID: finishedRound, Terminal: true},
		},
		[]fsm.Transition{
			{From: collectRound, Event: eventDone, To: finishedRound},
			{From: collectRound, Event: eventNoMajority, To: retryRound},
			{From: retryRound, Event: eventDone, To: finishedRound},
			{From: retryRound, Event: eventNoMajority, To: retryRound},
		},
	)
	require.NoError(t, err)
	return app
}

func newAgents(n int) []*privval.FilePV {
	agents := make([]*privval.FilePV, n)
	for i := range agents {
		agents[i] = privval.GenFilePVWithSeed("", []byte{byte(i), 'g', 'w'})
	}
	return agents
}

func newTestQuorum(t *testing.T, agents []*privval.FilePV) *types.Quorum {
	addrs := make([]types.Address, len(agents))
	for i, a := range agents {
		addrs[i] = a.GetAddress()
	}
	q, err := types.NewQuorum(addrs, 0)
	require.NoError(t, err)
	return q
}

func newPayload(sender types.Address, round types.RoundID, period types.Period, value string) *testPayload {
	return &testPayload{
		BasePayload: types.NewBasePayload(sender, round, period),
		Value:       value,
	}
}

func strangerAddress() types.Address {
	return types.GetAddress(ed25519.GenPrivKey().PubKey())
}
