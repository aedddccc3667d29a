package consensus

import (
	"context"
	"errors"
	"fmt"
	"github.com/tendermint/tendermint/libs/events"
	"github.com/tendermint/tendermint/libs/log"
	"github.com/tendermint/tendermint/libs/service"
	"roundbft/behaviour"
	cstypes "roundbft/consensus/types"
	"roundbft/fsm"
	"roundbft/state"
	"roundbft/types"
	"sync"
	"time"
)

// 调度器对外广播的事件
const (
	EventNewRound  = "NewRound"
	EventRoundDone = "RoundDone"
	EventTerminal  = "Terminal"
)

var (
	ErrCheckpointGap = errors.New("checkpoint refers to a snapshot that is not stored")
)

// RoundBehaviour 调度器：持有全部behaviour和转移表，驱动当前轮次直到终止轮
// 当前轮次只由调度器修改
type RoundBehaviour struct {
	service.BaseService

	app       *fsm.App
	factories map[types.RoundID]behaviour.Factory
	bctx      *behaviour.Context
	store     CheckpointStore

	mtx     sync.RWMutex
	rs      cstypes.RoundState
	synced  *state.SynchronizedData
	pending *cstypes.RoundState // 重启后待恢复的检查点
	history []cstypes.RoundRecord

	eventSwitch events.EventSwitch
	metric      *dispatcherMetric

	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

type RoundBehaviourOption func(*RoundBehaviour)

func WithCheckpointStore(store CheckpointStore) RoundBehaviourOption {
	return func(rb *RoundBehaviour) {
		rb.store = store
	}
}

// NewRoundBehaviour 创建调度器并检查每个非终止轮都绑定了唯一的behaviour
// 检查失败返回*fsm.ConfigurationError
func NewRoundBehaviour(
	app *fsm.App,
	factories map[types.RoundID]behaviour.Factory,
	bctx *behaviour.Context,
	genesis *state.SynchronizedData,
	options ...RoundBehaviourOption,
) (*RoundBehaviour, error) {
	if app == nil {
		return nil, &fsm.ConfigurationError{Reason: "nil application"}
	}
	if bctx == nil || bctx.Gateway == nil {
		return nil, &fsm.ConfigurationError{Reason: "behaviour context has no consensus gateway"}
	}
	if genesis == nil {
		genesis = state.NewSynchronizedData(nil)
	}

	copied := make(map[types.RoundID]behaviour.Factory, len(factories))
	for id, f := range factories {
		copied[id] = f
	}

	rb := &RoundBehaviour{
		app:       app,
		factories: copied,
		bctx:      bctx,
		rs: cstypes.RoundState{
			Round:  app.InitialRound(),
			Period: genesis.Period(),
			Step:   cstypes.StepLocalRunning,
		},
		synced:      genesis,
		history:     []cstypes.RoundRecord{},
		eventSwitch: events.NewEventSwitch(),
		metric:      newDispatcherMetric(),
		done:        make(chan struct{}),
	}
	rb.BaseService = *service.NewBaseService(nil, "ROUND_BEHAVIOUR", rb)

	for _, opt := range options {
		opt(rb)
	}

	if err := rb.validateFactories(); err != nil {
		return nil, err
	}
	rb.metric.MarkRound(rb.rs)
	return rb, nil
}

// validateFactories 每个被引用的非终止轮有且只有一个behaviour，且behaviour绑定的round一致
func (rb *RoundBehaviour) validateFactories() error {
	for id, f := range rb.factories {
		if _, ok := rb.app.Round(id); !ok {
			return &fsm.ConfigurationError{Reason: fmt.Sprintf("behaviour bound to undeclared round %v", id)}
		}
		if rb.app.IsTerminal(id) {
			return &fsm.ConfigurationError{Reason: fmt.Sprintf("terminal round %v must not have a behaviour", id)}
		}
		if f == nil {
			return &fsm.ConfigurationError{Reason: fmt.Sprintf("nil behaviour factory for round %v", id)}
		}
		if b := f(rb.bctx); b == nil || b.Round() != id {
			return &fsm.ConfigurationError{Reason: fmt.Sprintf("factory for round %v builds a behaviour for another round", id)}
		}
	}
	for _, id := range rb.app.RoundIDs() {
		if rb.app.IsTerminal(id) {
			continue
		}
		if _, ok := rb.factories[id]; !ok {
			return &fsm.ConfigurationError{Reason: fmt.Sprintf("round %v has no behaviour", id)}
		}
	}
	return nil
}

func (rb *RoundBehaviour) SetLogger(logger log.Logger) {
	rb.Logger = logger
	rb.eventSwitch.SetLogger(logger)
}

// EventSwitch 用于订阅NewRound、RoundDone、Terminal事件
func (rb *RoundBehaviour) EventSwitch() events.EventSwitch {
	return rb.eventSwitch
}

// Restore 从检查点恢复调度器状态，没有检查点时保存创世快照
func (rb *RoundBehaviour) Restore() error {
	if rb.store == nil {
		return nil
	}
	rb.mtx.Lock()
	defer rb.mtx.Unlock()

	rs, err := rb.store.LoadRoundState()
	if err != nil {
		return err
	}
	if rs == nil {
		return rb.store.SaveSnapshot(rb.synced)
	}

	synced, err := rb.store.LoadSnapshot(rs.Period)
	if err != nil {
		return err
	}
	if synced == nil {
		return fmt.Errorf("%w: period %v", ErrCheckpointGap, rs.Period)
	}

	rb.synced = synced
	rb.rs = *rs
	if rs.Step == cstypes.StepAwaitingConsensus && rs.Payload != nil {
		rb.pending = rs
	}
	rb.metric.MarkRound(rb.rs)
	rb.Logger.Info("restored from checkpoint", "state", rs, "snapshot", synced)
	return nil
}

func (rb *RoundBehaviour) OnStart() error {
	if err := rb.eventSwitch.Start(); err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	rb.cancel = cancel
	go func() {
		err := rb.Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			rb.Logger.Error("round behaviour stopped", "err", err)
		}
	}()
	rb.Logger.Info("round behaviour started", "round", rb.CurrentRound())
	return nil
}

func (rb *RoundBehaviour) OnStop() {
	if rb.cancel != nil {
		rb.cancel()
	}
	if err := rb.eventSwitch.Stop(); err != nil {
		rb.Logger.Error("failed trying to stop eventSwitch", "error", err)
	}
	rb.Logger.Info("round behaviour stopped.")
}

// Run 循环调度直到终止轮、出错或ctx取消
func (rb *RoundBehaviour) Run(ctx context.Context) error {
	rb.markWorking(true)
	defer rb.markWorking(false)

	for {
		_, terminal, err := rb.Dispatch(ctx)
		if err != nil {
			rb.finish(err)
			return err
		}
		if terminal {
			rb.finish(nil)
			return nil
		}
	}
}

// Dispatch 执行当前轮次的behaviour并切换到下一轮
// 当前已经是终止轮时返回terminal=true
func (rb *RoundBehaviour) Dispatch(ctx context.Context) (next types.RoundID, terminal bool, err error) {
	rb.mtx.Lock()
	rs := rb.rs
	synced := rb.synced
	pending := rb.pending
	rb.pending = nil
	rb.mtx.Unlock()

	if rb.app.IsTerminal(rs.Round) {
		return rs.Round, true, nil
	}

	factory, ok := rb.factories[rs.Round]
	if !ok {
		return "", false, &fsm.ConfigurationError{Reason: fmt.Sprintf("round %v has no behaviour", rs.Round)}
	}
	impl := factory(rb.bctx)
	bb := behaviour.NewBaseBehaviour(rb.bctx, impl, synced)
	bb.SetCheckpoint(func(step cstypes.RoundState) error {
		return rb.checkpoint(step, rs.LastEvent)
	})
	if pending != nil {
		if err := bb.Resume(*pending); err != nil {
			return "", false, err
		}
		rb.Logger.Info("resume behaviour", "behaviour", impl.ID(), "step", bb.Step())
	}

	rb.mtx.Lock()
	rb.metric.MarkRoundStart(rs.Round, time.Now())
	rb.mtx.Unlock()
	rb.Logger.Info("enter round", "round", rs.Round, "period", rs.Period, "behaviour", impl.ID())
	rb.eventSwitch.FireEvent(EventNewRound, rs)

	event, err := bb.AsyncAct(ctx)
	if err != nil {
		return "", false, err
	}

	// 只允许发出该轮声明过的事件
	if !rb.app.CanEmit(rs.Round, event) {
		return "", false, &fsm.TransitionError{Round: rs.Round, Event: event}
	}
	next, terminal, err = rb.app.Next(rs.Round, event)
	if err != nil {
		return "", false, err
	}

	confirmed := bb.Confirmed()
	if err := rb.advance(rs, confirmed, event, next); err != nil {
		return "", false, err
	}
	return next, rb.app.IsTerminal(next), nil
}

// advance 保存确认的快照并把当前轮次切换到next
func (rb *RoundBehaviour) advance(prev cstypes.RoundState, confirmed *state.SynchronizedData, event types.Event, next types.RoundID) error {
	if rb.store != nil {
		if err := rb.store.SaveSnapshot(confirmed); err != nil {
			return err
		}
	}

	rs := cstypes.RoundState{
		Round:     next,
		Period:    confirmed.Period(),
		Step:      cstypes.StepLocalRunning,
		LastEvent: event,
		Terminal:  rb.app.IsTerminal(next),
	}
	if rb.store != nil {
		if err := rb.store.SaveRoundState(rs); err != nil {
			return err
		}
	}

	record := cstypes.RoundRecord{Period: prev.Period, Round: prev.Round, Event: event, Next: next}

	rb.mtx.Lock()
	rb.rs = rs
	rb.synced = confirmed
	rb.history = append(rb.history, record)
	rb.metric.MarkRound(rs)
	rb.mtx.Unlock()

	rb.Logger.Info("round done", "record", record)
	rb.eventSwitch.FireEvent(EventRoundDone, record)
	if rs.Terminal {
		rb.Logger.Info("reach terminal round", "round", next, "period", rs.Period)
		rb.eventSwitch.FireEvent(EventTerminal, rs)
	}
	return nil
}

func (rb *RoundBehaviour) checkpoint(rs cstypes.RoundState, lastEvent types.Event) error {
	rs.LastEvent = lastEvent
	rb.mtx.Lock()
	rb.rs.Step = rs.Step
	rb.metric.MarkRound(rb.rs)
	rb.mtx.Unlock()

	if rb.store == nil {
		return nil
	}
	return rb.store.SaveRoundState(rs)
}

func (rb *RoundBehaviour) finish(err error) {
	rb.mtx.Lock()
	defer rb.mtx.Unlock()
	select {
	case <-rb.done:
		return
	default:
	}
	rb.err = err
	close(rb.done)
}

func (rb *RoundBehaviour) markWorking(v bool) {
	rb.mtx.Lock()
	rb.metric.MarkIsWorking(v)
	rb.mtx.Unlock()
}

// Done 在Run结束后关闭
func (rb *RoundBehaviour) Done() <-chan struct{} {
	return rb.done
}

// Err returns the error that stopped Run, nil on terminal completion.
func (rb *RoundBehaviour) Err() error {
	rb.mtx.RLock()
	defer rb.mtx.RUnlock()
	return rb.err
}

func (rb *RoundBehaviour) CurrentRound() types.RoundID {
	rb.mtx.RLock()
	defer rb.mtx.RUnlock()
	return rb.rs.Round
}

func (rb *RoundBehaviour) GetRoundState() cstypes.RoundState {
	rb.mtx.RLock()
	defer rb.mtx.RUnlock()
	return rb.rs
}

func (rb *RoundBehaviour) Synchronized() *state.SynchronizedData {
	rb.mtx.RLock()
	defer rb.mtx.RUnlock()
	return rb.synced
}

// History 返回已经完成的轮次轨迹
func (rb *RoundBehaviour) History() []cstypes.RoundRecord {
	rb.mtx.RLock()
	defer rb.mtx.RUnlock()
	out := make([]cstypes.RoundRecord, len(rb.history))
	copy(out, rb.history)
	return out
}

// VisitedRounds returns the sequence of rounds that completed, in order.
func (rb *RoundBehaviour) VisitedRounds() []types.RoundID {
	history := rb.History()
	out := make([]types.RoundID, 0, len(history))
	for _, r := range history {
		out = append(out, r.Round)
	}
	return out
}

func (rb *RoundBehaviour) App() *fsm.App {
	return rb.app
}

func (rb *RoundBehaviour) MetricJSON() string {
	rb.mtx.RLock()
	defer rb.mtx.RUnlock()
	return rb.metric.copy().JSONString()
}
