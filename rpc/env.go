package rpc

import (
	"roundbft/consensus"
	"roundbft/libs/metric"
	"roundbft/state"
	"roundbft/types"
)

var (
	env *Environment
)

func SetEnvironment(e *Environment) {
	env = e
}

// Collector 网关中可以被查询的部分
type Collector interface {
	Contributors(key types.RoundKey) int
	Synchronized() *state.SynchronizedData
}

type Environment struct {
	Dispatcher *consensus.RoundBehaviour
	Collector  Collector
	Store      state.Store

	MetricSet *metric.MetricSet
}
