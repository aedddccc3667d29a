package store

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendermint/tendermint/libs/log"
	"io/ioutil"
	"os"
	cstypes "roundbft/consensus/types"
	"roundbft/state"
	"roundbft/types"
	"testing"
)

const (
	testRound = types.RoundID("store_round")
	testKind  = types.PayloadKind("store_test_payload")
)

type testPayload struct {
	types.BasePayload
	Price float64 `json:"price"`
}

func (p *testPayload) Kind() types.PayloadKind { return testKind }

func (p *testPayload) Content() ([]byte, error) { return json.Marshal(p.Price) }

func init() {
	types.RegisterPayload(testKind, func() types.Payload { return &testPayload{} })
}

func confirmedSnapshot(t *testing.T, prev *state.SynchronizedData, price float64) *state.SynchronizedData {
	p := &testPayload{
		BasePayload: types.NewBasePayload(types.Address{0x01}, testRound, prev.Period()),
		Price:       price,
	}
	next, err := prev.Update(testRound, []types.Payload{p}, map[string]interface{}{"price": price}, false)
	require.NoError(t, err)
	return next
}

func TestSnapshotRoundTrip(t *testing.T) {
	kv := NewMemStore()

	latest, err := kv.LatestSnapshot()
	require.NoError(t, err)
	assert.Nil(t, latest)

	genesis := state.NewSynchronizedData(map[string]interface{}{"safe_contract_address": "0xsafe"})
	require.NoError(t, kv.SaveSnapshot(genesis))
	s1 := confirmedSnapshot(t, genesis, 1.5)
	require.NoError(t, kv.SaveSnapshot(s1))

	got, err := kv.LoadSnapshot(1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, s1.Hash(), got.Hash())
	price, ok := got.GetFloat("price")
	assert.True(t, ok)
	assert.Equal(t, 1.5, price)
	assert.True(t, got.SetInLastRound("price"))
	assert.Len(t, got.Payloads(), 1)

	// 保存旧快照不会回退latest
	require.NoError(t, kv.SaveSnapshot(genesis))
	latest, err = kv.LatestSnapshot()
	require.NoError(t, err)
	assert.Equal(t, types.Period(1), latest.Period())

	missing, err := kv.LoadSnapshot(7)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRoundStateRoundTrip(t *testing.T) {
	kv := NewMemStore()

	rs, err := kv.LoadRoundState()
	require.NoError(t, err)
	assert.Nil(t, rs)

	p := &testPayload{
		BasePayload: types.NewBasePayload(types.Address{0x02}, testRound, 3),
		Price:       2.25,
	}
	require.NoError(t, kv.SaveRoundState(cstypes.RoundState{
		Round:     testRound,
		Period:    3,
		Step:      cstypes.StepAwaitingConsensus,
		Payload:   p,
		LastEvent: "DONE",
	}))

	rs, err = kv.LoadRoundState()
	require.NoError(t, err)
	require.NotNil(t, rs)
	assert.Equal(t, testRound, rs.Round)
	assert.Equal(t, types.Period(3), rs.Period)
	assert.Equal(t, cstypes.StepAwaitingConsensus, rs.Step)
	assert.Equal(t, types.Event("DONE"), rs.LastEvent)
	assert.True(t, types.SamePayload(p, rs.Payload))

	require.NoError(t, kv.SaveRoundState(cstypes.RoundState{Round: testRound, Period: 4, Step: cstypes.StepLocalRunning}))
	rs, err = kv.LoadRoundState()
	require.NoError(t, err)
	assert.Nil(t, rs.Payload)
	assert.Equal(t, cstypes.StepLocalRunning, rs.Step)
}

func TestGoLevelDBStore(t *testing.T) {
	dir, err := ioutil.TempDir("", "roundbft_store")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	kv, err := NewKVStore("test", dir, log.TestingLogger())
	require.NoError(t, err)
	genesis := state.NewSynchronizedData(nil)
	require.NoError(t, kv.SaveSnapshot(genesis))
	require.NoError(t, kv.SaveSnapshot(confirmedSnapshot(t, genesis, 3)))
	require.NoError(t, kv.Close())

	kv, err = NewKVStore("test", dir, log.TestingLogger())
	require.NoError(t, err)
	defer kv.Close()
	latest, err := kv.LatestSnapshot()
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, types.Period(1), latest.Period())
}

func TestGenKeyOrdering(t *testing.T) {
	assert.True(t, string(genKey(tableSnapshot, types.Period(2))) < string(genKey(tableSnapshot, types.Period(10))))
	assert.Equal(t, "round_state7", string(genKey(tableRoundState, 7)))
}
