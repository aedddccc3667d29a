package consensus

import (
	jsoniter "github.com/json-iterator/go"
	cstypes "roundbft/consensus/types"
	"roundbft/types"
	"time"
)

func newDispatcherMetric() *dispatcherMetric {
	return &dispatcherMetric{
		Period:         0,
		RoundStartTime: time.Time{},
		IsWorking:      false,
		CurrentRound:   "",
		Step:           "",
		LastEvent:      "",
		Visited:        make(map[types.RoundID]int64),
		Terminal:       false,
	}
}

type dispatcherMetric struct {
	Period         int64     `json:"current_period"`
	RoundStartTime time.Time `json:"round_start_time"`

	IsWorking    bool   `json:"is_working"`
	CurrentRound string `json:"current_round"`
	Step         string `json:"current_step"`
	LastEvent    string `json:"last_event"`

	// 每个round被激活的次数，重试会体现在这里
	Visited  map[types.RoundID]int64 `json:"visited"`
	Terminal bool                    `json:"terminal"`
}

func (dm *dispatcherMetric) JSONString() string {
	s, _ := jsoniter.MarshalToString(dm)
	return s
}

func (dm *dispatcherMetric) MarkRound(rs cstypes.RoundState) {
	dm.Period = rs.Period.Int64()
	dm.CurrentRound = rs.Round.String()
	dm.Step = rs.Step.String()
	dm.LastEvent = rs.LastEvent.String()
	dm.Terminal = rs.Terminal
}

func (dm *dispatcherMetric) MarkRoundStart(round types.RoundID, t time.Time) {
	dm.RoundStartTime = t
	dm.Visited[round]++
}

func (dm *dispatcherMetric) MarkIsWorking(v bool) {
	dm.IsWorking = v
}

func (dm *dispatcherMetric) copy() *dispatcherMetric {
	cp := *dm
	cp.Visited = make(map[types.RoundID]int64, len(dm.Visited))
	for k, v := range dm.Visited {
		cp.Visited[k] = v
	}
	return &cp
}
