package rpc

import (
	"errors"
	rpctypes "github.com/tendermint/tendermint/rpc/jsonrpc/types"
	cstypes "roundbft/consensus/types"
	"roundbft/fsm"
	"roundbft/state"
	"roundbft/types"
)

var ErrNoSnapshot = errors.New("snapshot not found")

type ResultRoundState struct {
	Round        types.RoundID         `json:"round"`
	Period       types.Period          `json:"period"`
	Step         string                `json:"step"`
	LastEvent    types.Event           `json:"last_event"`
	Terminal     bool                  `json:"terminal"`
	Contributors int                   `json:"contributors"`
	History      []cstypes.RoundRecord `json:"history"`
}

// RoundState 返回调度器当前所在的轮次和已经走过的轨迹
func RoundState(ctx *rpctypes.Context) (*ResultRoundState, error) {
	rs := env.Dispatcher.GetRoundState()
	result := &ResultRoundState{
		Round:     rs.Round,
		Period:    rs.Period,
		Step:      rs.Step.String(),
		LastEvent: rs.LastEvent,
		Terminal:  rs.Terminal,
		History:   env.Dispatcher.History(),
	}
	if env.Collector != nil {
		result.Contributors = env.Collector.Contributors(rs.Key())
	}
	return result, nil
}

type ResultSnapshot struct {
	Snapshot *state.SynchronizedData `json:"snapshot"`
}

// Snapshot 返回指定period的快照，period小于0时返回调度器当前使用的快照
func Snapshot(ctx *rpctypes.Context, period int64) (*ResultSnapshot, error) {
	if period < 0 || env.Store == nil {
		return &ResultSnapshot{Snapshot: env.Dispatcher.Synchronized()}, nil
	}
	sd, err := env.Store.LoadSnapshot(types.Period(period))
	if err != nil {
		return nil, err
	}
	if sd == nil {
		return nil, ErrNoSnapshot
	}
	return &ResultSnapshot{Snapshot: sd}, nil
}

type ResultRound struct {
	ID          types.RoundID     `json:"id"`
	PayloadKind types.PayloadKind `json:"payload_kind"`
	Events      []types.Event     `json:"events"`
	Initial     bool              `json:"initial"`
	Terminal    bool              `json:"terminal"`
}

type ResultFSM struct {
	Initial     types.RoundID    `json:"initial"`
	Rounds      []ResultRound    `json:"rounds"`
	Transitions []fsm.Transition `json:"transitions"`
}

func FSM(ctx *rpctypes.Context) (*ResultFSM, error) {
	return DescribeApp(env.Dispatcher.App()), nil
}

// DescribeApp 把状态机转换成可序列化的描述
func DescribeApp(app *fsm.App) *ResultFSM {
	result := &ResultFSM{
		Initial:     app.InitialRound(),
		Rounds:      []ResultRound{},
		Transitions: app.Transitions(),
	}
	for _, id := range app.RoundIDs() {
		r, _ := app.Round(id)
		result.Rounds = append(result.Rounds, ResultRound{
			ID:          r.ID,
			PayloadKind: r.PayloadKind,
			Events:      r.Events,
			Initial:     r.Initial,
			Terminal:    r.Terminal,
		})
	}
	return result
}
