package types

import (
	"errors"
	"roundbft/types"
	"sort"
)

var (
	ErrDuplicatePayload   = errors.New("duplicate payload")
	ErrConflictingPayload = errors.New("sender already submitted a different payload for this round")
)

func MakeRoundPayloadSet() *RoundPayloadSet {
	return &RoundPayloadSet{
		roundPayloadSet: make(map[types.RoundKey]*payloadSet),
	}
}

// RoundPayloadSet 按(period, round)分组保存各参与者提交的payload
type RoundPayloadSet struct {
	roundPayloadSet map[types.RoundKey](*payloadSet)
}

// AddPayload 将payload添加到对应轮次
// 同一个sender重复提交相同内容返回ErrDuplicatePayload，不会重复计数
func (rps *RoundPayloadSet) AddPayload(p types.Payload) error {
	key := types.PayloadKey(p)
	ps, exist := rps.roundPayloadSet[key]
	if !exist {
		ps = NewPayloadSet()
		rps.roundPayloadSet[key] = ps
	}
	return ps.AddPayload(p)
}

// GetPayloadsByKey 根据轮次返回对应的payloadSet，没有时返回nil
func (rps *RoundPayloadSet) GetPayloadsByKey(key types.RoundKey) *payloadSet {
	ps, exist := rps.roundPayloadSet[key]
	if !exist {
		return nil
	}
	return ps
}

// Keys returns the round keys of the given period in a stable order.
func (rps *RoundPayloadSet) Keys(period types.Period) []types.RoundKey {
	keys := []types.RoundKey{}
	for k := range rps.roundPayloadSet {
		if k.Period == period {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Round < keys[j].Round })
	return keys
}

// Prune 删除period之前的所有payload
func (rps *RoundPayloadSet) Prune(period types.Period) {
	for k := range rps.roundPayloadSet {
		if k.Period < period {
			delete(rps.roundPayloadSet, k)
		}
	}
}

func NewPayloadSet() *payloadSet {
	return &payloadSet{
		payloads: make(map[string]types.Payload),
	}
}

type payloadSet struct {
	payloads map[string]types.Payload
}

func (ps *payloadSet) AddPayload(p types.Payload) error {
	sender := p.Sender().String()
	if exist, ok := ps.payloads[sender]; ok {
		if types.SamePayload(exist, p) {
			return ErrDuplicatePayload
		}
		return ErrConflictingPayload
	}
	ps.payloads[sender] = p
	return nil
}

func (ps *payloadSet) Size() int {
	return len(ps.payloads)
}

func (ps *payloadSet) HasSender(addr types.Address) bool {
	_, ok := ps.payloads[addr.String()]
	return ok
}

// GetPayloads 按sender排序返回
func (ps *payloadSet) GetPayloads() []types.Payload {
	out := make([]types.Payload, 0, len(ps.payloads))
	for _, p := range ps.payloads {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sender().String() < out[j].Sender().String() })
	return out
}
