package consensus

import (
	cstypes "roundbft/consensus/types"
	"roundbft/state"
)

// CheckpointStore 持久化同步数据快照以及调度器的检查点
type CheckpointStore interface {
	state.Store

	SaveRoundState(rs cstypes.RoundState) error

	// LoadRoundState 不存在时返回(nil, nil)
	LoadRoundState() (*cstypes.RoundState, error)
}
