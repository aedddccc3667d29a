package metric

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrMetricLabelExist = errors.New("metric label already registered")
	ErrUnknownMetric    = errors.New("unknown metric label")
)

// MetricSet 节点内各模块的metric，按label注册，通过rpc导出
type MetricSet struct {
	mtx   sync.RWMutex
	items map[string]MetricItem
}

func NewMetricSet() *MetricSet {
	return &MetricSet{
		items: make(map[string]MetricItem),
	}
}

// Register 同一个label只能注册一次
func (ms *MetricSet) Register(label string, item MetricItem) error {
	ms.mtx.Lock()
	defer ms.mtx.Unlock()
	if _, ok := ms.items[label]; ok {
		return fmt.Errorf("%w: %s", ErrMetricLabelExist, label)
	}
	ms.items[label] = item
	return nil
}

func (ms *MetricSet) Get(label string) (MetricItem, bool) {
	ms.mtx.RLock()
	defer ms.mtx.RUnlock()
	item, ok := ms.items[label]
	return item, ok
}

// Labels 返回排好序的label
func (ms *MetricSet) Labels() []string {
	ms.mtx.RLock()
	defer ms.mtx.RUnlock()
	labels := make([]string, 0, len(ms.items))
	for l := range ms.items {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}

// Export 导出指定label的JSON，不指定时导出全部
func (ms *MetricSet) Export(labels ...string) (map[string]string, error) {
	if len(labels) == 0 {
		labels = ms.Labels()
	}
	out := make(map[string]string, len(labels))
	for _, l := range labels {
		item, ok := ms.Get(l)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownMetric, l)
		}
		out[l] = item.JSONString()
	}
	return out, nil
}
