package gateway

import (
	"context"
	"errors"
	"github.com/tendermint/tendermint/libs/log"
	cstypes "roundbft/consensus/types"
	"roundbft/state"
	"roundbft/types"
)

// LocalGateway 进程内网关，所有参与者共享同一个Collector
// 用于单进程多agent模拟和测试
type LocalGateway struct {
	collector *Collector
	logger    log.Logger
}

func NewLocalGateway(collector *Collector) *LocalGateway {
	return &LocalGateway{
		collector: collector,
		logger:    log.NewNopLogger(),
	}
}

func (g *LocalGateway) SetLogger(logger log.Logger) {
	g.logger = logger
	g.collector.SetLogger(logger)
}

func (g *LocalGateway) Collector() *Collector {
	return g.collector
}

// Submit implements behaviour.Gateway. 重复提交直接忽略
func (g *LocalGateway) Submit(ctx context.Context, p types.Payload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := g.collector.AddPayload(p)
	if errors.Is(err, cstypes.ErrDuplicatePayload) || errors.Is(err, ErrRoundClosed) {
		g.logger.Debug("ignore resubmitted payload", "payload", types.PayloadString(p))
		return nil
	}
	return err
}

// AwaitRoundEnd implements behaviour.Gateway.
func (g *LocalGateway) AwaitRoundEnd(ctx context.Context, round types.RoundID, period types.Period) (*state.SynchronizedData, error) {
	return g.collector.Await(ctx, types.RoundKey{Period: period, Round: round})
}

func (g *LocalGateway) Close() {
	g.collector.Close()
}
