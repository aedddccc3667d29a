package behaviour

import (
	"context"
	"github.com/tendermint/tendermint/libs/log"
	"roundbft/libs/metric"
	"roundbft/state"
	"roundbft/types"
)

// Gateway 共识网关，达成一致的具体协议由外部实现
type Gateway interface {
	// Submit 尽力广播本节点的payload，同一个sender同一轮重复调用是幂等的
	Submit(ctx context.Context, payload types.Payload) error

	// AwaitRoundEnd 挂起直到该轮达到quorum并生成新的同步数据快照
	// 本层不会主动超时，只有网关确认或ctx被取消才会返回
	AwaitRoundEnd(ctx context.Context, round types.RoundID, period types.Period) (*state.SynchronizedData, error)
}

// Behaviour 绑定到一个round的可执行单元
// 除了读取同步数据外，不在轮次之间保存任何状态
type Behaviour interface {
	// ID 用于日志和benchmark
	ID() string

	// Round 绑定的轮次
	Round() types.RoundID

	// LocalAct 本地阶段：只读当前快照，可以调用外部collaborator，必须产生一个payload
	// 数据错误应该体现在payload中，返回error只用于ctx取消等无法继续的情况
	LocalAct(ctx context.Context, synced *state.SynchronizedData) (types.Payload, error)

	// Event 根据已确认的快照推导事件，不能使用本地payload
	Event(confirmed *state.SynchronizedData) (types.Event, error)
}

// Factory builds a fresh behaviour instance for one round activation.
type Factory func(c *Context) Behaviour

// Context 显式注入给每个behaviour的运行环境
type Context struct {
	AgentAddress types.Address
	Gateway      Gateway
	Benchmark    *metric.BenchmarkTool
	Logger       log.Logger
}

func (c *Context) logger() log.Logger {
	if c.Logger == nil {
		return log.NewNopLogger()
	}
	return c.Logger
}
