package metric

import (
	"github.com/stretchr/testify/assert"
	"testing"
	"time"
)

func TestBenchmarkToolMeasure(t *testing.T) {
	bt := NewBenchmarkTool()

	stop := bt.Measure("api_check").Local()
	time.Sleep(5 * time.Millisecond)
	stop()
	stop() // 重复调用只记录一次

	stop = bt.Measure("api_check").Consensus()
	stop()

	assert.Equal(t, int64(1), bt.Count("api_check", "local"))
	assert.Equal(t, int64(1), bt.Count("api_check", "consensus"))
	assert.Equal(t, []string{"api_check"}, bt.Behaviours())

	stats := bt.Stats()
	local, ok := stats["api_check.local"]
	assert.True(t, ok)
	assert.Greater(t, local.Max, 0.004)
	assert.Contains(t, bt.JSONString(), "api_check.consensus")
}

func TestBenchmarkToolAsMetricItem(t *testing.T) {
	ms := NewMetricSet()
	var item MetricItem = NewBenchmarkTool()
	assert.Nil(t, ms.Register("benchmark", item))
	_, ok := ms.Get("benchmark")
	assert.True(t, ok)
}
