package gateway

import (
	"context"
	"errors"
	"fmt"
	"github.com/tendermint/tendermint/libs/log"
	cstypes "roundbft/consensus/types"
	"roundbft/fsm"
	"roundbft/state"
	"roundbft/types"
	"sync"
	"time"
)

const (
	// 保留最近若干个period的确认结果，供落后的AwaitRoundEnd读取
	confirmedHistory = 64
)

// Collector 收集各参与者的payload，达到quorum后折叠出新的同步数据快照
// 同一个sender在同一个(period, round)只计数一次
type Collector struct {
	mtx sync.Mutex

	quorum *types.Quorum
	exec   state.RoundExecutor
	kinds  map[types.RoundID]types.PayloadKind

	synced    *state.SynchronizedData
	payloads  *cstypes.RoundPayloadSet
	confirmed map[types.RoundKey]*state.SynchronizedData
	waiters   map[types.RoundKey][]chan struct{}

	// 超时为0表示永远等待quorum
	timeout time.Duration
	timers  map[types.RoundKey]*time.Timer
	closed  bool

	onCommit []func(*state.SynchronizedData)

	logger log.Logger
	metric *gatewayMetric
}

type CollectorOption func(*Collector)

// WithRoundTimeout 等待超过timeout仍没有quorum的轮次会以超时快照结束
func WithRoundTimeout(timeout time.Duration) CollectorOption {
	return func(c *Collector) {
		c.timeout = timeout
	}
}

func NewCollector(quorum *types.Quorum, app *fsm.App, genesis *state.SynchronizedData, options ...CollectorOption) *Collector {
	if genesis == nil {
		genesis = state.NewSynchronizedData(nil)
	}
	kinds := make(map[types.RoundID]types.PayloadKind)
	for _, id := range app.RoundIDs() {
		r, _ := app.Round(id)
		if !r.Terminal {
			kinds[id] = r.PayloadKind
		}
	}

	c := &Collector{
		quorum:    quorum,
		exec:      state.NewRoundExecutor(app.Folders()),
		kinds:     kinds,
		synced:    genesis,
		payloads:  cstypes.MakeRoundPayloadSet(),
		confirmed: make(map[types.RoundKey]*state.SynchronizedData),
		waiters:   make(map[types.RoundKey][]chan struct{}),
		timers:    make(map[types.RoundKey]*time.Timer),
		logger:    log.NewNopLogger(),
		metric:    newGatewayMetric(),
	}
	for _, opt := range options {
		opt(c)
	}
	c.metric.MarkPeriod(genesis.Period().Int64())
	return c
}

func (c *Collector) SetLogger(logger log.Logger) {
	c.logger = logger
	c.exec.SetLogger(logger)
}

// OnCommit 注册快照确认后的回调，回调在持有锁的情况下执行，不能再调用Collector
func (c *Collector) OnCommit(fn func(*state.SynchronizedData)) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.onCommit = append(c.onCommit, fn)
}

func (c *Collector) Quorum() *types.Quorum {
	return c.quorum
}

// Synchronized returns the latest confirmed snapshot.
func (c *Collector) Synchronized() *state.SynchronizedData {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.synced
}

// Check 只做无状态校验：签名者是参与者，round存在且payload类型正确
func (c *Collector) Check(p types.Payload) error {
	if p == nil {
		return types.ErrNilPayload
	}
	if err := p.ValidateBasic(); err != nil {
		return err
	}
	if !c.quorum.IsParticipant(p.Sender()) {
		return fmt.Errorf("%w: %v", ErrNotParticipant, p.Sender())
	}
	kind, ok := c.kinds[p.Round()]
	if !ok {
		return fmt.Errorf("%w: %v", ErrUnknownRound, p.Round())
	}
	if kind != p.Kind() {
		return fmt.Errorf("%w: round %v wants %v, got %v", ErrWrongKind, p.Round(), kind, p.Kind())
	}
	return nil
}

// AddPayload 添加一个payload，达到quorum时立即确认
// 重复提交返回cstypes.ErrDuplicatePayload，已确认轮次的提交返回ErrRoundClosed
func (c *Collector) AddPayload(p types.Payload) error {
	if err := c.Check(p); err != nil {
		c.metric.MarkRejected()
		return err
	}

	c.mtx.Lock()
	defer c.mtx.Unlock()

	if c.closed {
		return ErrCollectorClosed
	}

	key := types.PayloadKey(p)
	if _, ok := c.confirmed[key]; ok {
		c.metric.MarkDuplicate()
		return ErrRoundClosed
	}
	if key.Period < c.synced.Period() {
		c.metric.MarkRejected()
		return fmt.Errorf("%w: %v, current %v", ErrStalePayload, key, c.synced.Period())
	}

	if err := c.payloads.AddPayload(p); err != nil {
		if errors.Is(err, cstypes.ErrDuplicatePayload) {
			c.metric.MarkDuplicate()
		} else {
			c.metric.MarkRejected()
		}
		return err
	}
	c.metric.MarkReceived()
	c.logger.Debug("payload added", "payload", types.PayloadString(p))

	// 未来period的payload先缓存，等追上以后再确认
	if key.Period == c.synced.Period() {
		return c.tryConfirm(key)
	}
	return nil
}

// tryConfirm 调用者持有锁
func (c *Collector) tryConfirm(key types.RoundKey) error {
	ps := c.payloads.GetPayloadsByKey(key)
	if ps == nil || ps.Size() < c.quorum.Threshold() {
		return nil
	}
	next, err := c.exec.ApplyRound(c.synced, key.Round, ps.GetPayloads(), c.quorum.Threshold())
	if err != nil {
		c.logger.Error("apply round failed", "key", key, "err", err)
		return err
	}
	c.commit(key, next)
	return nil
}

// commit 调用者持有锁
func (c *Collector) commit(key types.RoundKey, next *state.SynchronizedData) {
	c.confirmed[key] = next
	c.synced = next
	c.metric.MarkPeriod(next.Period().Int64())
	c.metric.MarkConfirmed(next.TimedOut())
	c.logger.Info("round confirmed", "key", key, "snapshot", next)

	for k, timer := range c.timers {
		if k.Period < next.Period() {
			timer.Stop()
			delete(c.timers, k)
		}
	}
	// 同一period的其他轮次不会再被确认，等待者一并唤醒
	for k, chs := range c.waiters {
		if k.Period < next.Period() {
			for _, ch := range chs {
				close(ch)
			}
			delete(c.waiters, k)
		}
	}
	c.payloads.Prune(next.Period())
	for k := range c.confirmed {
		if k.Period < next.Period()-confirmedHistory {
			delete(c.confirmed, k)
		}
	}
	for _, fn := range c.onCommit {
		fn(next)
	}

	for _, k := range c.payloads.Keys(next.Period()) {
		if c.synced != next {
			break
		}
		if err := c.tryConfirm(k); err != nil {
			return
		}
	}
}

// Await 挂起直到key对应的轮次被确认
func (c *Collector) Await(ctx context.Context, key types.RoundKey) (*state.SynchronizedData, error) {
	c.mtx.Lock()
	if sd, ok := c.confirmed[key]; ok {
		c.mtx.Unlock()
		return sd, nil
	}
	if c.closed {
		c.mtx.Unlock()
		return nil, ErrCollectorClosed
	}
	if key.Period < c.synced.Period() {
		c.mtx.Unlock()
		return nil, fmt.Errorf("%w: %v", ErrRoundSuperseded, key)
	}
	ch := make(chan struct{})
	c.waiters[key] = append(c.waiters[key], ch)
	c.startTimer(key)
	c.mtx.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-ch:
	}

	c.mtx.Lock()
	defer c.mtx.Unlock()
	if sd, ok := c.confirmed[key]; ok {
		return sd, nil
	}
	if c.closed {
		return nil, ErrCollectorClosed
	}
	return nil, fmt.Errorf("%w: %v", ErrRoundSuperseded, key)
}

// startTimer 调用者持有锁
func (c *Collector) startTimer(key types.RoundKey) {
	if c.timeout <= 0 || key.Period != c.synced.Period() {
		return
	}
	if _, ok := c.timers[key]; ok {
		return
	}
	c.timers[key] = time.AfterFunc(c.timeout, func() {
		c.expire(key)
	})
}

func (c *Collector) expire(key types.RoundKey) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	delete(c.timers, key)
	if c.closed || key.Period != c.synced.Period() {
		return
	}
	if _, ok := c.confirmed[key]; ok {
		return
	}
	next, err := c.exec.ApplyTimeout(c.synced, key.Round)
	if err != nil {
		c.logger.Error("apply timeout failed", "key", key, "err", err)
		return
	}
	c.commit(key, next)
}

// Close 停止所有定时器并唤醒等待者
func (c *Collector) Close() {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for k, timer := range c.timers {
		timer.Stop()
		delete(c.timers, k)
	}
	for k, chs := range c.waiters {
		for _, ch := range chs {
			close(ch)
		}
		delete(c.waiters, k)
	}
}

// Contributors 返回某一轮已经提交payload的参与者数量
func (c *Collector) Contributors(key types.RoundKey) int {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	ps := c.payloads.GetPayloadsByKey(key)
	if ps == nil {
		return 0
	}
	return ps.Size()
}

func (c *Collector) MetricJSON() string {
	return c.metric.JSONString()
}
