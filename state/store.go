package state

import "roundbft/types"

// Store 持久化已确认的同步数据快照
type Store interface {
	SaveSnapshot(*SynchronizedData) error

	// LoadSnapshot 读取指定period的快照，不存在时返回(nil, nil)
	LoadSnapshot(period types.Period) (*SynchronizedData, error)

	// LatestSnapshot 读取最新的快照，不存在时返回(nil, nil)
	LatestSnapshot() (*SynchronizedData, error)
}
