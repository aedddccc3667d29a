package learning

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"roundbft/types"
	"strings"
	"testing"
)

func TestNewLearningApp(t *testing.T) {
	app, err := NewLearningApp()
	require.NoError(t, err)

	assert.Equal(t, APICheckRound, app.InitialRound())
	assert.True(t, app.IsTerminal(FinishedDecisionMakingRound))
	assert.True(t, app.IsTerminal(FinishedTxPreparationRound))
	assert.Len(t, app.Transitions(), 14)

	tests := []struct {
		round types.RoundID
		event types.Event
		next  types.RoundID
	}{
		{APICheckRound, EventDone, DecisionMakingRound},
		{APICheckRound, EventError, APICheckRound},
		{APICheckRound, EventRoundTimeout, APICheckRound},
		{DecisionMakingRound, EventTransact, TxPreparationRound},
		{DecisionMakingRound, EventMissingData, FinishedDecisionMakingRound},
		{DecisionMakingRound, EventNoMajority, DecisionMakingRound},
		{TxPreparationRound, EventDone, FinishedTxPreparationRound},
		{TxPreparationRound, EventError, FinishedDecisionMakingRound},
	}
	for _, tt := range tests {
		next, terminal, err := app.Next(tt.round, tt.event)
		require.NoError(t, err)
		assert.False(t, terminal)
		assert.Equal(t, tt.next, next, "%v/%v", tt.round, tt.event)
	}

	// TxPreparation失败不会进入假设存在hash的轮次
	for _, e := range []types.Event{EventError, EventNoMajority, EventRoundTimeout} {
		next, _, err := app.Next(TxPreparationRound, e)
		require.NoError(t, err)
		assert.NotEqual(t, FinishedTxPreparationRound, next)
	}

	_, terminal, err := app.Next(FinishedTxPreparationRound, EventDone)
	require.NoError(t, err)
	assert.True(t, terminal)
}

func TestFoldAPICheck(t *testing.T) {
	agents := newAgents(4)
	payloads := []types.Payload{
		NewAPICheckPayload(agents[0].GetAddress(), 0, 1.0, false),
		NewAPICheckPayload(agents[1].GetAddress(), 0, 1.0, false),
		NewAPICheckPayload(agents[2].GetAddress(), 0, 2.0, false),
		NewAPICheckPayload(agents[3].GetAddress(), 0, 1.0, false),
	}
	fields, err := foldAPICheck(nil, payloads, 3)
	require.NoError(t, err)
	assert.Equal(t, 1.0, fields[KeyPrice])
	assert.Equal(t, false, fields[KeyPriceFallback])

	fields, err = foldAPICheck(nil, payloads[:3], 3)
	require.NoError(t, err)
	assert.Nil(t, fields)
}

func TestFoldTxPreparation(t *testing.T) {
	agents := newAgents(3)
	hash := strings.Repeat("ab", 32)

	ok := []types.Payload{}
	failed := []types.Payload{}
	for _, a := range agents {
		ok = append(ok, NewTxPreparationPayload(a.GetAddress(), 2, TxPreparationBehaviourID, hash))
		failed = append(failed, NewTxPreparationPayload(a.GetAddress(), 2, "", ""))
	}

	fields, err := foldTxPreparation(nil, ok, 3)
	require.NoError(t, err)
	assert.Equal(t, hash, fields[KeyMostVotedTxHash])
	assert.Equal(t, TxPreparationBehaviourID, fields[KeyTxSubmitter])

	fields, err = foldTxPreparation(nil, failed, 3)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{KeyTxHashMissing: true}, fields)
}

func TestPayloadValidateBasic(t *testing.T) {
	addr := newAgents(1)[0].GetAddress()

	assert.NoError(t, NewAPICheckPayload(addr, 0, 1.0, false).ValidateBasic())
	assert.ErrorIs(t, NewAPICheckPayload(addr, 0, -1, false).ValidateBasic(), ErrNegativePrice)

	assert.NoError(t, NewDecisionMakingPayload(addr, 1, EventTransact).ValidateBasic())
	assert.ErrorIs(t, NewDecisionMakingPayload(addr, 1, EventNoMajority).ValidateBasic(), ErrUnknownDecision)

	assert.NoError(t, NewTxPreparationPayload(addr, 2, "", "").ValidateBasic())
	assert.ErrorIs(t, NewTxPreparationPayload(addr, 2, "x", "0x1234").ValidateBasic(), ErrBadTxHash)
}

func TestPayloadCodec(t *testing.T) {
	p := NewTxPreparationPayload(newAgents(1)[0].GetAddress(), 2, TxPreparationBehaviourID, strings.Repeat("cd", 32))
	bz, err := types.EncodePayload(p)
	require.NoError(t, err)

	decoded, err := types.DecodePayload(bz)
	require.NoError(t, err)
	assert.True(t, types.SamePayload(p, decoded))
}
