package store

import (
	"github.com/tendermint/tendermint/libs/log"
	"github.com/tendermint/tm-db/memdb"
)

// NewMemStore 基于内存数据库的KVStore，测试和不需要持久化的模拟使用
func NewMemStore() *KVStore {
	return NewKVStoreWithDB(memdb.NewDB(), log.NewNopLogger())
}
