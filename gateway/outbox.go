package gateway

import (
	"github.com/tendermint/tendermint/libs/clist"
	"github.com/tendermint/tendermint/libs/log"
	"roundbft/types"
	"sync"
	"sync/atomic"
)

// Outbox 待广播的payload队列，每个peer一个goroutine顺序读取
type Outbox struct {
	envelopes *clist.CList
	envMap    sync.Map // outboxKey => *clist.CElement
	bytes     int64

	logger log.Logger
}

func NewOutbox() *Outbox {
	return &Outbox{
		envelopes: clist.New(),
		logger:    log.NewNopLogger(),
	}
}

func (ob *Outbox) SetLogger(logger log.Logger) {
	ob.logger = logger
}

type outboxKey struct {
	sender string
	key    types.RoundKey
}

type outboxEnvelope struct {
	key types.RoundKey
	bz  []byte

	// 从哪些peer收到过，不再原路发回
	senders sync.Map
}

// Push 加入一个签名payload，同一个sender同一轮只保留第一份
func (ob *Outbox) Push(p types.Payload, bz []byte, senderID uint16) bool {
	k := outboxKey{sender: p.Sender().String(), key: types.PayloadKey(p)}
	if e, ok := ob.envMap.Load(k); ok {
		e.(*clist.CElement).Value.(*outboxEnvelope).senders.Store(senderID, struct{}{})
		return false
	}

	oe := &outboxEnvelope{key: k.key, bz: bz}
	oe.senders.Store(senderID, struct{}{})
	e := ob.envelopes.PushBack(oe)
	ob.envMap.Store(k, e)
	atomic.AddInt64(&ob.bytes, int64(len(bz)))
	return true
}

// Prune 删除period之前的payload
func (ob *Outbox) Prune(period types.Period) {
	ob.envMap.Range(func(k, v interface{}) bool {
		key := k.(outboxKey)
		if key.key.Period >= period {
			return true
		}
		e := v.(*clist.CElement)
		ob.envelopes.Remove(e)
		e.DetachPrev()
		ob.envMap.Delete(k)
		atomic.AddInt64(&ob.bytes, -int64(len(e.Value.(*outboxEnvelope).bz)))
		return true
	})
}

func (ob *Outbox) Size() int {
	return ob.envelopes.Len()
}

func (ob *Outbox) Bytes() int64 {
	return atomic.LoadInt64(&ob.bytes)
}

func (ob *Outbox) WaitChan() <-chan struct{} {
	return ob.envelopes.WaitChan()
}

func (ob *Outbox) Front() *clist.CElement {
	return ob.envelopes.Front()
}
