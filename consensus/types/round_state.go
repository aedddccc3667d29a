package types

import (
	"fmt"
	"roundbft/types"
)

//-----------------------------------------------------------------------------
// StepType enum type

// StepType enumerates the phases of one behaviour activation.
type StepType uint8

// StepType
const (
	StepLocalRunning      = StepType(0x01) // 本地计算阶段，可能挂起在外部I/O
	StepAwaitingConsensus = StepType(0x02) // payload已产生，提交并等待该轮确认
	StepDone              = StepType(0x03) // 已读到确认的同步数据
)

func (s StepType) String() string {
	switch s {
	case StepLocalRunning:
		return "LOCAL_RUNNING"
	case StepAwaitingConsensus:
		return "AWAITING_CONSENSUS"
	case StepDone:
		return "DONE"
	default:
		return "UNKNOWN_STEP"
	}
}

func (s StepType) IsValid() bool {
	return s >= StepLocalRunning && s <= StepDone
}

// RoundState 调度器的内部状态，也是重启恢复时的检查点
type RoundState struct {
	Round  types.RoundID `json:"round"`
	Period types.Period  `json:"period"`
	Step   StepType      `json:"step"`

	// Payload 本地阶段产生的payload，进入AWAITING_CONSENSUS后不再重新计算
	Payload types.Payload `json:"-"`

	// Event 上一轮behaviour发出的事件
	LastEvent types.Event `json:"last_event"`

	// Terminal 是否已经到达终止轮
	Terminal bool `json:"terminal"`
}

func (rs RoundState) Key() types.RoundKey {
	return types.RoundKey{Period: rs.Period, Round: rs.Round}
}

func (rs RoundState) String() string {
	return fmt.Sprintf("RoundState{%v/%v step:%v last:%v terminal:%v}", rs.Period, rs.Round, rs.Step, rs.LastEvent, rs.Terminal)
}

// RoundRecord 调度器轨迹中的一条记录
type RoundRecord struct {
	Period types.Period  `json:"period"`
	Round  types.RoundID `json:"round"`
	Event  types.Event   `json:"event"`
	Next   types.RoundID `json:"next,omitempty"`
}

func (rr RoundRecord) String() string {
	return fmt.Sprintf("%v/%v --%v--> %v", rr.Period, rr.Round, rr.Event, rr.Next)
}
