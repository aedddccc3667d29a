package behaviour

import (
	"context"
	"errors"
	"fmt"
	cstypes "roundbft/consensus/types"
	"roundbft/state"
	"roundbft/types"
)

var (
	ErrWrongSender = errors.New("payload sender is not this agent")
	ErrWrongRound  = errors.New("payload does not target the active round")
	ErrNilConfirm  = errors.New("gateway confirmed a nil snapshot")
)

// Checkpoint 每次阶段切换时调用，用于持久化恢复点
type Checkpoint func(cstypes.RoundState) error

// BaseBehaviour 驱动behaviour完成两阶段协议
//
//	LOCAL_RUNNING -> AWAITING_CONSENSUS -> DONE
//
// 进入AWAITING_CONSENSUS之前没有任何对外可见的副作用
type BaseBehaviour struct {
	c      *Context
	impl   Behaviour
	synced *state.SynchronizedData

	step      cstypes.StepType
	payload   types.Payload
	confirmed *state.SynchronizedData

	checkpoint Checkpoint
}

func NewBaseBehaviour(c *Context, impl Behaviour, synced *state.SynchronizedData) *BaseBehaviour {
	return &BaseBehaviour{
		c:      c,
		impl:   impl,
		synced: synced,
		step:   cstypes.StepLocalRunning,
	}
}

func (bb *BaseBehaviour) SetCheckpoint(cp Checkpoint) {
	bb.checkpoint = cp
}

// Resume 从检查点恢复：已经产生的payload直接重新提交，不再重新计算
func (bb *BaseBehaviour) Resume(rs cstypes.RoundState) error {
	if rs.Round != bb.impl.Round() || rs.Period != bb.synced.Period() {
		return fmt.Errorf("%w: checkpoint %v, behaviour %v/%v", ErrWrongRound, rs.Key(), bb.synced.Period(), bb.impl.Round())
	}
	if rs.Step == cstypes.StepAwaitingConsensus && rs.Payload != nil {
		if err := bb.validatePayload(rs.Payload); err != nil {
			return err
		}
		bb.payload = rs.Payload
		bb.step = cstypes.StepAwaitingConsensus
		return nil
	}
	// 本地阶段中断的话从头开始
	bb.step = cstypes.StepLocalRunning
	return nil
}

func (bb *BaseBehaviour) Step() cstypes.StepType {
	return bb.step
}

func (bb *BaseBehaviour) Payload() types.Payload {
	return bb.payload
}

// Confirmed returns the snapshot the gateway confirmed, nil before StepDone.
func (bb *BaseBehaviour) Confirmed() *state.SynchronizedData {
	return bb.confirmed
}

func (bb *BaseBehaviour) roundState() cstypes.RoundState {
	return cstypes.RoundState{
		Round:   bb.impl.Round(),
		Period:  bb.synced.Period(),
		Step:    bb.step,
		Payload: bb.payload,
	}
}

func (bb *BaseBehaviour) enterStep(step cstypes.StepType) error {
	bb.step = step
	if bb.checkpoint == nil {
		return nil
	}
	return bb.checkpoint(bb.roundState())
}

// AsyncAct 执行behaviour直到得到事件
// 挂起点只有三处：本地阶段的外部I/O、Submit、AwaitRoundEnd
func (bb *BaseBehaviour) AsyncAct(ctx context.Context) (types.Event, error) {
	logger := bb.c.logger().With("behaviour", bb.impl.ID(), "period", bb.synced.Period())

	for {
		switch bb.step {
		case cstypes.StepLocalRunning:
			stop := bb.measure().Local()
			payload, err := bb.impl.LocalAct(ctx, bb.synced)
			stop()
			if err != nil {
				return "", err
			}
			if err := bb.validatePayload(payload); err != nil {
				return "", err
			}
			bb.payload = payload
			logger.Debug("local phase done", "payload", types.PayloadString(payload))
			if err := bb.enterStep(cstypes.StepAwaitingConsensus); err != nil {
				return "", err
			}

		case cstypes.StepAwaitingConsensus:
			stop := bb.measure().Consensus()
			confirmed, err := bb.consensus(ctx)
			stop()
			if err != nil {
				return "", err
			}
			bb.confirmed = confirmed
			logger.Debug("round confirmed", "snapshot", confirmed)
			if err := bb.enterStep(cstypes.StepDone); err != nil {
				return "", err
			}

		case cstypes.StepDone:
			return bb.impl.Event(bb.confirmed)

		default:
			panic(fmt.Sprintf("wrong step: %v", bb.step))
		}
	}
}

func (bb *BaseBehaviour) consensus(ctx context.Context) (*state.SynchronizedData, error) {
	if err := bb.c.Gateway.Submit(ctx, bb.payload); err != nil {
		return nil, err
	}
	confirmed, err := bb.c.Gateway.AwaitRoundEnd(ctx, bb.impl.Round(), bb.synced.Period())
	if err != nil {
		return nil, err
	}
	if confirmed == nil {
		return nil, ErrNilConfirm
	}
	return confirmed, nil
}

func (bb *BaseBehaviour) validatePayload(p types.Payload) error {
	if p == nil {
		return types.ErrNilPayload
	}
	if err := p.ValidateBasic(); err != nil {
		return err
	}
	if !p.Sender().Equal(bb.c.AgentAddress) {
		return fmt.Errorf("%w: %v", ErrWrongSender, p.Sender())
	}
	if p.Round() != bb.impl.Round() || p.Period() != bb.synced.Period() {
		return fmt.Errorf("%w: %v", ErrWrongRound, types.PayloadString(p))
	}
	return nil
}

func (bb *BaseBehaviour) measure() measurement {
	if bb.c.Benchmark == nil {
		return nopMeasurement{}
	}
	return bb.c.Benchmark.Measure(bb.impl.ID())
}

type measurement interface {
	Local() func()
	Consensus() func()
}

type nopMeasurement struct{}

func (nopMeasurement) Local() func()     { return func() {} }
func (nopMeasurement) Consensus() func() { return func() {} }
