package learning

import (
	"errors"
	"roundbft/fsm"
	"roundbft/state"
	"roundbft/types"
)

const (
	APICheckRound               = types.RoundID("api_check_round")
	DecisionMakingRound         = types.RoundID("decision_making_round")
	TxPreparationRound          = types.RoundID("tx_preparation_round")
	FinishedDecisionMakingRound = types.RoundID("finished_decision_making_round")
	FinishedTxPreparationRound  = types.RoundID("finished_tx_preparation_round")
)

const (
	EventDone         = types.Event("DONE")
	EventError        = types.Event("ERROR")
	EventTransact     = types.Event("TRANSACT")
	EventNoMajority   = types.Event("NO_MAJORITY")
	EventRoundTimeout = types.Event("ROUND_TIMEOUT")
	EventMissingData  = types.Event("MISSING_DATA")
)

// 同步数据中各轮写入的字段
const (
	KeySafeContractAddress = "safe_contract_address"
	KeyPrice               = "price"
	KeyPriceFallback       = "price_fallback"
	KeyDecision            = "decision"
	KeyTxSubmitter         = "tx_submitter"
	KeyMostVotedTxHash     = "most_voted_tx_hash"
	KeyTxHashMissing       = "tx_hash_missing"
)

var ErrUnknownDecision = errors.New("unknown decision event")

// decisionMaking轮可以投票的事件
var decisionEvents = types.NewEventSet(EventDone, EventTransact, EventMissingData, EventError)

// NewLearningApp builds the learning application FSM:
//
//	api_check --DONE--> decision_making --TRANSACT--> tx_preparation --DONE--> finished_tx_preparation
//	                         |                              |
//	                         +--DONE/MISSING_DATA/ERROR-----+--ERROR--> finished_decision_making
func NewLearningApp() (*fsm.App, error) {
	return fsm.NewApp(
		[]fsm.Round{
			{
				ID:          APICheckRound,
				PayloadKind: APICheckPayloadKind,
				Events:      []types.Event{EventDone, EventError, EventNoMajority, EventRoundTimeout},
				Initial:     true,
				Fold:        foldAPICheck,
			},
			{
				ID:          DecisionMakingRound,
				PayloadKind: DecisionMakingPayloadKind,
				Events:      []types.Event{EventDone, EventTransact, EventMissingData, EventError, EventNoMajority, EventRoundTimeout},
				Fold:        foldDecisionMaking,
			},
			{
				ID:          TxPreparationRound,
				PayloadKind: TxPreparationPayloadKind,
				Events:      []types.Event{EventDone, EventError, EventNoMajority, EventRoundTimeout},
				Fold:        foldTxPreparation,
			},
			{ID: FinishedDecisionMakingRound, Terminal: true},
			{ID: FinishedTxPreparationRound, Terminal: true},
		},
		[]fsm.Transition{
			{From: APICheckRound, Event: EventDone, To: DecisionMakingRound},
			{From: APICheckRound, Event: EventError, To: APICheckRound},
			{From: APICheckRound, Event: EventNoMajority, To: APICheckRound},
			{From: APICheckRound, Event: EventRoundTimeout, To: APICheckRound},

			{From: DecisionMakingRound, Event: EventDone, To: FinishedDecisionMakingRound},
			{From: DecisionMakingRound, Event: EventTransact, To: TxPreparationRound},
			{From: DecisionMakingRound, Event: EventMissingData, To: FinishedDecisionMakingRound},
			{From: DecisionMakingRound, Event: EventError, To: FinishedDecisionMakingRound},
			{From: DecisionMakingRound, Event: EventNoMajority, To: DecisionMakingRound},
			{From: DecisionMakingRound, Event: EventRoundTimeout, To: DecisionMakingRound},

			{From: TxPreparationRound, Event: EventDone, To: FinishedTxPreparationRound},
			{From: TxPreparationRound, Event: EventError, To: FinishedDecisionMakingRound},
			{From: TxPreparationRound, Event: EventNoMajority, To: TxPreparationRound},
			{From: TxPreparationRound, Event: EventRoundTimeout, To: TxPreparationRound},
		},
	)
}

// MustNewLearningApp panics if the learning FSM is inconsistent.
func MustNewLearningApp() *fsm.App {
	app, err := NewLearningApp()
	if err != nil {
		panic(err)
	}
	return app
}

func foldAPICheck(_ *state.SynchronizedData, payloads []types.Payload, threshold int) (map[string]interface{}, error) {
	p, ok := fsm.CollectSameUntilThreshold(payloads, threshold)
	if !ok {
		return nil, nil
	}
	ap := p.(*APICheckPayload)
	return map[string]interface{}{
		KeyPrice:         ap.Price,
		KeyPriceFallback: ap.Fallback,
	}, nil
}

func foldDecisionMaking(_ *state.SynchronizedData, payloads []types.Payload, threshold int) (map[string]interface{}, error) {
	p, ok := fsm.CollectSameUntilThreshold(payloads, threshold)
	if !ok {
		return nil, nil
	}
	return map[string]interface{}{
		KeyDecision: string(p.(*DecisionMakingPayload).Event),
	}, nil
}

// foldTxPreparation 多数节点都没有构造出交易时只记录失败，不写入hash
func foldTxPreparation(_ *state.SynchronizedData, payloads []types.Payload, threshold int) (map[string]interface{}, error) {
	p, ok := fsm.CollectSameUntilThreshold(payloads, threshold)
	if !ok {
		return nil, nil
	}
	tp := p.(*TxPreparationPayload)
	if tp.TxHash == "" {
		return map[string]interface{}{KeyTxHashMissing: true}, nil
	}
	return map[string]interface{}{
		KeyTxSubmitter:     tp.TxSubmitter,
		KeyMostVotedTxHash: tp.TxHash,
	}, nil
}
