package fsm

import (
	"roundbft/state"
	"roundbft/types"
)

// Round 轮次的静态描述，启动时定义，之后不再修改
type Round struct {
	ID          types.RoundID
	PayloadKind types.PayloadKind

	// Events 该轮的behaviour可能发出的全部事件
	Events []types.Event

	Initial  bool
	Terminal bool

	// Fold 把达到quorum的payload折叠成同步数据字段，终止轮不需要
	Fold state.Folder
}

// Transition is one (round, event) -> next round entry.
type Transition struct {
	From  types.RoundID
	Event types.Event
	To    types.RoundID
}

// TransitionTable maps (round, event) to the next round.
type TransitionTable map[types.RoundID]map[types.Event]types.RoundID

func (tt TransitionTable) Lookup(round types.RoundID, event types.Event) (types.RoundID, bool) {
	events, ok := tt[round]
	if !ok {
		return "", false
	}
	next, ok := events[event]
	return next, ok
}
