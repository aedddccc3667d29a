package gateway

import (
	jsoniter "github.com/json-iterator/go"
	"sync"
)

func newGatewayMetric() *gatewayMetric {
	return &gatewayMetric{}
}

type gatewayMetric struct {
	mtx          sync.RWMutex
	Period       int64 `json:"period"`        // 已确认的最新period
	Received     int64 `json:"received"`      // 接受并计数的payload总数
	Duplicates   int64 `json:"duplicates"`    // 重复提交被忽略的次数
	Rejected     int64 `json:"rejected"`      // 校验失败被拒绝的次数
	Confirmed    int64 `json:"confirmed"`     // 达到quorum确认的轮数
	TimedOut     int64 `json:"timed_out"`     // 超时结束的轮数
	OutboxLength int   `json:"outbox_length"` // 待广播的payload数量
}

func (gm *gatewayMetric) JSONString() string {
	gm.mtx.RLock()
	defer gm.mtx.RUnlock()
	s, _ := jsoniter.MarshalToString(gm)
	return s
}

func (gm *gatewayMetric) MarkPeriod(period int64) {
	gm.mtx.Lock()
	defer gm.mtx.Unlock()
	gm.Period = period
}

func (gm *gatewayMetric) MarkReceived() {
	gm.mtx.Lock()
	defer gm.mtx.Unlock()
	gm.Received++
}

func (gm *gatewayMetric) MarkDuplicate() {
	gm.mtx.Lock()
	defer gm.mtx.Unlock()
	gm.Duplicates++
}

func (gm *gatewayMetric) MarkRejected() {
	gm.mtx.Lock()
	defer gm.mtx.Unlock()
	gm.Rejected++
}

func (gm *gatewayMetric) MarkConfirmed(timedOut bool) {
	gm.mtx.Lock()
	defer gm.mtx.Unlock()
	if timedOut {
		gm.TimedOut++
		return
	}
	gm.Confirmed++
}

func (gm *gatewayMetric) MarkOutboxLength(n int) {
	gm.mtx.Lock()
	defer gm.mtx.Unlock()
	gm.OutboxLength = n
}
