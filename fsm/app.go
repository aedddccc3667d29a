package fsm

import (
	"roundbft/state"
	"roundbft/types"
	"sort"
)

// App 应用层有限状态机：轮次描述 + 转移表
// 创建时完成校验，之后只读
type App struct {
	rounds  map[types.RoundID]Round
	order   []types.RoundID
	table   TransitionTable
	initial types.RoundID
	events  types.EventSet
}

// NewApp builds and validates an application FSM. Any incompleteness is
// reported as a *ConfigurationError.
func NewApp(rounds []Round, transitions []Transition) (*App, error) {
	app := &App{
		rounds: make(map[types.RoundID]Round, len(rounds)),
		order:  make([]types.RoundID, 0, len(rounds)),
		table:  make(TransitionTable),
		events: types.NewEventSet(),
	}

	for _, r := range rounds {
		if r.ID == "" {
			return nil, configErrorf("round with empty id")
		}
		if _, exist := app.rounds[r.ID]; exist {
			return nil, configErrorf("round %v declared twice", r.ID)
		}
		app.rounds[r.ID] = r
		app.order = append(app.order, r.ID)
		for _, e := range r.Events {
			app.events[e] = struct{}{}
		}
	}

	for _, tr := range transitions {
		events, ok := app.table[tr.From]
		if !ok {
			events = make(map[types.Event]types.RoundID)
			app.table[tr.From] = events
		}
		if prev, exist := events[tr.Event]; exist && prev != tr.To {
			return nil, configErrorf("round %v maps event %v to both %v and %v", tr.From, tr.Event, prev, tr.To)
		}
		events[tr.Event] = tr.To
	}

	if err := app.Validate(); err != nil {
		return nil, err
	}
	return app, nil
}

// Validate 校验状态机的完整性
//   - 有且只有一个初始轮，除了它自己的重试之外没有转移指向它
//   - 终止轮没有出边
//   - 非终止轮能发出的每个事件都有对应的转移，转移表中不存在多余的事件
//   - 所有转移的目标轮都已声明
func (app *App) Validate() error {
	initials := []types.RoundID{}
	for _, id := range app.order {
		r := app.rounds[id]
		if r.Initial {
			initials = append(initials, id)
		}
		if r.Initial && r.Terminal {
			return configErrorf("round %v is both initial and terminal", id)
		}
	}
	if len(initials) != 1 {
		return configErrorf("expected exactly one initial round, got %v", initials)
	}
	app.initial = initials[0]

	for from, events := range app.table {
		r, ok := app.rounds[from]
		if !ok {
			return configErrorf("transition from undeclared round %v", from)
		}
		if r.Terminal {
			return configErrorf("terminal round %v has outgoing transitions", from)
		}
		emittable := types.NewEventSet(r.Events...)
		for event, to := range events {
			if !emittable.Has(event) {
				return configErrorf("round %v cannot emit event %v but the table maps it to %v", from, event, to)
			}
			if _, ok := app.rounds[to]; !ok {
				return configErrorf("round %v event %v targets undeclared round %v", from, event, to)
			}
			if to == app.initial && from != to {
				return configErrorf("initial round %v has an incoming transition from %v on %v", to, from, event)
			}
		}
	}

	for _, id := range app.order {
		r := app.rounds[id]
		if r.Terminal {
			continue
		}
		if len(r.Events) == 0 {
			return configErrorf("non-terminal round %v emits no events", id)
		}
		if r.PayloadKind == "" {
			return configErrorf("non-terminal round %v accepts no payload kind", id)
		}
		if r.Fold == nil {
			return configErrorf("non-terminal round %v has no fold function", id)
		}
		for _, e := range r.Events {
			if _, ok := app.table.Lookup(id, e); !ok {
				return configErrorf("round %v may emit %v but has no transition for it", id, e)
			}
		}
	}
	return nil
}

func (app *App) InitialRound() types.RoundID {
	return app.initial
}

func (app *App) Round(id types.RoundID) (Round, bool) {
	r, ok := app.rounds[id]
	return r, ok
}

func (app *App) IsTerminal(id types.RoundID) bool {
	r, ok := app.rounds[id]
	return ok && r.Terminal
}

// CanEmit 判断事件是否在该轮声明的事件集合中
func (app *App) CanEmit(id types.RoundID, event types.Event) bool {
	r, ok := app.rounds[id]
	if !ok {
		return false
	}
	return types.NewEventSet(r.Events...).Has(event)
}

// Next 查找(round, event)对应的下一轮
// 终止轮返回terminal=true；非终止轮找不到转移时返回*TransitionError
func (app *App) Next(round types.RoundID, event types.Event) (next types.RoundID, terminal bool, err error) {
	if _, ok := app.rounds[round]; !ok {
		return "", false, configErrorf("round %v is not declared", round)
	}
	if next, ok := app.table.Lookup(round, event); ok {
		return next, false, nil
	}
	if app.IsTerminal(round) {
		return "", true, nil
	}
	return "", false, &TransitionError{Round: round, Event: event}
}

// RoundIDs returns the declared rounds in declaration order.
func (app *App) RoundIDs() []types.RoundID {
	out := make([]types.RoundID, len(app.order))
	copy(out, app.order)
	return out
}

func (app *App) Events() []types.Event {
	return app.events.Sorted()
}

// Transitions 返回排好序的转移列表
func (app *App) Transitions() []Transition {
	out := []Transition{}
	for from, events := range app.table {
		for event, to := range events {
			out = append(out, Transition{From: from, Event: event, To: to})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].Event < out[j].Event
	})
	return out
}

// Folders returns the fold function of every non-terminal round.
func (app *App) Folders() map[types.RoundID]state.Folder {
	folders := make(map[types.RoundID]state.Folder)
	for id, r := range app.rounds {
		if r.Fold != nil {
			folders[id] = r.Fold
		}
	}
	return folders
}
