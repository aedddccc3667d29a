package metric

import (
	"fmt"
	jsoniter "github.com/json-iterator/go"
	gometrics "github.com/rcrowley/go-metrics"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	phaseLocal     = "local"
	phaseConsensus = "consensus"
)

// BenchmarkTool 记录每个behaviour本地阶段和共识阶段的耗时
// 只用于观测，不影响控制流
type BenchmarkTool struct {
	registry gometrics.Registry

	mtx      sync.Mutex
	behavers map[string]struct{}
}

func NewBenchmarkTool() *BenchmarkTool {
	return &BenchmarkTool{
		registry: gometrics.NewRegistry(),
		behavers: make(map[string]struct{}),
	}
}

// Measure returns the measurement scope of one behaviour.
func (bt *BenchmarkTool) Measure(behaviourID string) *Measurement {
	bt.mtx.Lock()
	bt.behavers[behaviourID] = struct{}{}
	bt.mtx.Unlock()
	return &Measurement{tool: bt, behaviourID: behaviourID}
}

func (bt *BenchmarkTool) timer(behaviourID, phase string) gometrics.Timer {
	return gometrics.GetOrRegisterTimer(timerName(behaviourID, phase), bt.registry)
}

func timerName(behaviourID, phase string) string {
	return fmt.Sprintf("%s.%s", behaviourID, phase)
}

// Measurement 一次behaviour激活的计时范围
type Measurement struct {
	tool        *BenchmarkTool
	behaviourID string
}

// Local starts timing the local phase; call the returned func to stop.
func (m *Measurement) Local() func() {
	return m.start(phaseLocal)
}

// Consensus starts timing the consensus phase; call the returned func to stop.
func (m *Measurement) Consensus() func() {
	return m.start(phaseConsensus)
}

func (m *Measurement) start(phase string) func() {
	timer := m.tool.timer(m.behaviourID, phase)
	begin := time.Now()
	var once sync.Once
	return func() {
		once.Do(func() { timer.UpdateSince(begin) })
	}
}

// PhaseStat 单个阶段的统计数据，时间单位为秒
type PhaseStat struct {
	Count int64   `json:"count"`
	Max   float64 `json:"max"`
	Min   float64 `json:"min"`
	Mean  float64 `json:"mean"`
}

// Stats returns the statistics of every measured behaviour and phase.
func (bt *BenchmarkTool) Stats() map[string]PhaseStat {
	stats := make(map[string]PhaseStat)
	bt.registry.Each(func(name string, i interface{}) {
		timer, ok := i.(gometrics.Timer)
		if !ok {
			return
		}
		snap := timer.Snapshot()
		stats[name] = PhaseStat{
			Count: snap.Count(),
			Max:   float64(snap.Max()) / 1e9,
			Min:   float64(snap.Min()) / 1e9,
			Mean:  snap.Mean() / 1e9,
		}
	})
	return stats
}

func (bt *BenchmarkTool) Behaviours() []string {
	bt.mtx.Lock()
	defer bt.mtx.Unlock()
	out := make([]string, 0, len(bt.behavers))
	for id := range bt.behavers {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Count 返回某个behaviour某个阶段被记录的次数
func (bt *BenchmarkTool) Count(behaviourID, phase string) int64 {
	return bt.timer(behaviourID, strings.ToLower(phase)).Count()
}

// JSONString implements MetricItem
func (bt *BenchmarkTool) JSONString() string {
	s, _ := jsoniter.MarshalToString(bt.Stats())
	return s
}
