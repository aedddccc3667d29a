package metric

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func constItem(s string) MetricItem {
	return FuncItem(func() string { return s })
}

func TestMetricSetRegister(t *testing.T) {
	ms := NewMetricSet()
	require.NoError(t, ms.Register("gateway", constItem(`{"received":1}`)))
	assert.ErrorIs(t, ms.Register("gateway", constItem("{}")), ErrMetricLabelExist)

	item, ok := ms.Get("gateway")
	require.True(t, ok)
	assert.Equal(t, `{"received":1}`, item.JSONString())

	_, ok = ms.Get("dispatcher")
	assert.False(t, ok)
}

func TestMetricSetLabelsSorted(t *testing.T) {
	ms := NewMetricSet()
	for _, l := range []string{"gateway", "benchmark", "dispatcher"} {
		require.NoError(t, ms.Register(l, constItem(l)))
	}
	assert.Equal(t, []string{"benchmark", "dispatcher", "gateway"}, ms.Labels())
}

func TestMetricSetExport(t *testing.T) {
	ms := NewMetricSet()
	require.NoError(t, ms.Register("a", constItem("1")))
	require.NoError(t, ms.Register("b", constItem("2")))

	all, err := ms.Export()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, all)

	one, err := ms.Export("b")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"b": "2"}, one)

	_, err = ms.Export("c")
	assert.ErrorIs(t, err, ErrUnknownMetric)
}
