package gateway

import (
	"context"
	"errors"
	"fmt"
	"github.com/tendermint/tendermint/libs/clist"
	"github.com/tendermint/tendermint/libs/log"
	"github.com/tendermint/tendermint/p2p"
	"math"
	cstypes "roundbft/consensus/types"
	"roundbft/state"
	"roundbft/types"
	"sync"
	"time"
)

const (
	PayloadChannel = byte(0x40)

	peerCatchupSleepIntervalMS = 100 // If peer is behind, sleep this amount

	// UnknownPeerID 本节点自己提交的payload
	UnknownPeerID uint16 = 0

	maxActiveIDs = math.MaxUint16

	maxMsgSize = 1048576 // 1MB
)

// Reactor 通过p2p广播签名payload的网关
// 每个节点各自确认轮次，只在参与者诚实且网络最终送达时保证一致
type Reactor struct {
	p2p.BaseReactor

	appID     string
	priv      types.PrivAgent
	collector *Collector
	outbox    *Outbox
	ids       *peerIDs
}

type peerIDs struct {
	mtx       sync.RWMutex
	peerMap   map[p2p.ID]uint16 // map from p2p.ID to peerIDs
	nextID    uint16            // nextID指向最后一个可用ID+1的值，但该值不一定可用
	activeIDs map[uint16]struct{}
}

// ReserveForPeer 为peer节点附带一个唯一id
func (ids *peerIDs) ReserveForPeer(peer p2p.Peer) {
	ids.mtx.Lock()
	defer ids.mtx.Unlock()

	curID := ids.nextPeerID()
	ids.peerMap[peer.ID()] = curID
	ids.activeIDs[curID] = struct{}{}
}

// nextPeerID 返回下一个可用的id
// 由caller负责lock/unlock.
func (ids *peerIDs) nextPeerID() uint16 {
	if len(ids.activeIDs) == maxActiveIDs {
		panic(fmt.Sprintf("node has maximum %d active IDs and wanted to get one more", maxActiveIDs))
	}

	_, idExists := ids.activeIDs[ids.nextID]
	for idExists {
		ids.nextID++
		_, idExists = ids.activeIDs[ids.nextID]
	}
	curID := ids.nextID
	ids.nextID++
	return curID
}

// Reclaim 释放peer对应的id.
func (ids *peerIDs) Reclaim(peer p2p.Peer) {
	ids.mtx.Lock()
	defer ids.mtx.Unlock()

	removedID, ok := ids.peerMap[peer.ID()]
	if ok {
		delete(ids.activeIDs, removedID)
		delete(ids.peerMap, peer.ID())
	}
}

// GetForPeer 返回peer的id.
func (ids *peerIDs) GetForPeer(peer p2p.Peer) uint16 {
	ids.mtx.RLock()
	defer ids.mtx.RUnlock()

	return ids.peerMap[peer.ID()]
}

func newPeerIDs() *peerIDs {
	return &peerIDs{
		peerMap:   make(map[p2p.ID]uint16),
		activeIDs: map[uint16]struct{}{0: {}},
		nextID:    1, // 为UnknownPeerID保留0
	}
}

func NewReactor(appID string, priv types.PrivAgent, collector *Collector) *Reactor {
	gwR := &Reactor{
		appID:     appID,
		priv:      priv,
		collector: collector,
		outbox:    NewOutbox(),
		ids:       newPeerIDs(),
	}
	gwR.BaseReactor = *p2p.NewBaseReactor("Gateway", gwR)

	// 确认新的period后，两个period之前的payload不再需要转发
	collector.OnCommit(func(sd *state.SynchronizedData) {
		gwR.outbox.Prune(sd.Period() - 1)
		gwR.collector.metric.MarkOutboxLength(gwR.outbox.Size())
	})
	return gwR
}

// SetLogger sets the Logger on the reactor and the underlying collector.
func (gwR *Reactor) SetLogger(l log.Logger) {
	gwR.Logger = l
	gwR.outbox.SetLogger(l)
	gwR.collector.SetLogger(l)
}

func (gwR *Reactor) Collector() *Collector {
	return gwR.collector
}

// OnStart implements p2p.BaseReactor.
func (gwR *Reactor) OnStart() error {
	gwR.Logger.Info("Gateway Reactor started.", "threshold", gwR.collector.Quorum().Threshold())
	return nil
}

// OnStop 唤醒所有仍在等待的AwaitRoundEnd
func (gwR *Reactor) OnStop() {
	gwR.collector.Close()
}

// GetChannels implements Reactor
func (gwR *Reactor) GetChannels() []*p2p.ChannelDescriptor {
	return []*p2p.ChannelDescriptor{
		{
			ID:                  PayloadChannel,
			Priority:            5,
			SendQueueCapacity:   100,
			RecvMessageCapacity: maxMsgSize,
		},
	}
}

// InitPeer implements Reactor
func (gwR *Reactor) InitPeer(peer p2p.Peer) p2p.Peer {
	gwR.ids.ReserveForPeer(peer)
	return peer
}

// AddPeer implements Reactor.
// 启动broadcast routine向该peer转发payload
func (gwR *Reactor) AddPeer(peer p2p.Peer) {
	go gwR.broadcastPayloadRoutine(peer)
}

// RemovePeer implements Reactor.
func (gwR *Reactor) RemovePeer(peer p2p.Peer, reason interface{}) {
	gwR.ids.Reclaim(peer)
	// broadcast routine checks if peer is gone and returns
}

// Receive implements Reactor.
func (gwR *Reactor) Receive(chID byte, src p2p.Peer, msgBytes []byte) {
	if chID != PayloadChannel {
		gwR.Logger.Error(fmt.Sprintf("Unknown chID %X", chID))
		return
	}

	env, err := UnmarshalEnvelope(msgBytes)
	if err != nil {
		gwR.Logger.Error("Error decoding message", "src", src, "chId", chID, "err", err)
		gwR.Switch.StopPeerForError(src, err)
		return
	}
	p, err := env.Open(gwR.appID)
	if err != nil {
		gwR.Logger.Error("Invalid payload envelope", "src", src, "err", err)
		gwR.Switch.StopPeerForError(src, err)
		return
	}

	err = gwR.collector.AddPayload(p)
	switch {
	case err == nil:
	case errors.Is(err, cstypes.ErrDuplicatePayload), errors.Is(err, ErrRoundClosed):
		// 已经收到过的payload只记录来源
		gwR.outbox.Push(p, msgBytes, gwR.ids.GetForPeer(src))
		return
	default:
		gwR.Logger.Debug("Could not add payload", "payload", types.PayloadString(p), "err", err)
		return
	}
	if gwR.outbox.Push(p, msgBytes, gwR.ids.GetForPeer(src)) {
		gwR.collector.metric.MarkOutboxLength(gwR.outbox.Size())
	}
}

// Submit implements behaviour.Gateway. 签名后加入本地collector并广播
func (gwR *Reactor) Submit(ctx context.Context, p types.Payload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	env, err := SignEnvelope(gwR.appID, gwR.priv, p)
	if err != nil {
		return err
	}
	bz, err := env.Marshal()
	if err != nil {
		return err
	}

	if err := gwR.collector.AddPayload(p); err != nil && !ignorable(err) {
		return err
	}
	gwR.outbox.Push(p, bz, UnknownPeerID)
	gwR.collector.metric.MarkOutboxLength(gwR.outbox.Size())
	return nil
}

// AwaitRoundEnd implements behaviour.Gateway.
func (gwR *Reactor) AwaitRoundEnd(ctx context.Context, round types.RoundID, period types.Period) (*state.SynchronizedData, error) {
	return gwR.collector.Await(ctx, types.RoundKey{Period: period, Round: round})
}

func ignorable(err error) bool {
	return errors.Is(err, cstypes.ErrDuplicatePayload) ||
		errors.Is(err, ErrRoundClosed) ||
		errors.Is(err, ErrStalePayload)
}

// --------------------------------
func (gwR *Reactor) broadcastPayloadRoutine(peer p2p.Peer) {
	peerID := gwR.ids.GetForPeer(peer)
	var next *clist.CElement

	for {
		if !gwR.IsRunning() || !peer.IsRunning() {
			return
		}

		if next == nil {
			select {
			case <-gwR.outbox.WaitChan():
				if next = gwR.outbox.Front(); next == nil {
					continue
				}
			case <-peer.Quit():
				return
			case <-gwR.Quit():
				return
			}
		}

		oe := next.Value.(*outboxEnvelope)
		if _, ok := oe.senders.Load(peerID); !ok {
			// 没有从该节点收到这条payload，向该节点发送
			if success := peer.Send(PayloadChannel, oe.bz); !success {
				gwR.Logger.Debug("send payload failed", "peer", peer.ID(), "key", oe.key)
				time.Sleep(peerCatchupSleepIntervalMS * time.Millisecond)
				continue
			}
		}

		select {
		// 当next有下一个元素时，它的nextWaitch关闭，流程继续
		// 如果没有下一个元素，则会在这里block
		case <-next.NextWaitChan():
			next = next.Next()
		case <-peer.Quit():
			return
		case <-gwR.Quit():
			return
		}
	}
}
