package state

import (
	"errors"
	"fmt"
	"github.com/tendermint/tendermint/crypto/tmhash"
	"roundbft/types"
	"sort"
)

var (
	ErrEmptyKey      = errors.New("synchronized data key is empty")
	ErrRoundMismatch = errors.New("payload does not belong to the confirmed round")
)

// Value 同步数据中的一个字段，记录由哪一轮在哪个period写入
type Value struct {
	Data   interface{}   `json:"data"`
	Period types.Period  `json:"period"`
	Round  types.RoundID `json:"round"`
}

// SynchronizedData 所有参与者共同确认的复制状态
// 一个快照创建后不再修改，每次确认一轮都会生成新的快照
// 字段值只允许JSON兼容的类型（string、float64、bool等），保证落盘后读回一致
type SynchronizedData struct {
	period    types.Period
	lastRound types.RoundID
	timedOut  bool

	fields   map[string]Value
	payloads []types.Payload // 最近一轮确认的payload，按sender排序
}

// NewSynchronizedData returns the genesis snapshot. setup fields are recorded at
// period zero with no contributing round.
func NewSynchronizedData(setup map[string]interface{}) *SynchronizedData {
	fields := make(map[string]Value, len(setup))
	for k, v := range setup {
		if k == "" {
			continue
		}
		fields[k] = Value{Data: v, Period: types.PeriodZero}
	}
	return &SynchronizedData{
		period: types.PeriodZero,
		fields: fields,
	}
}

// Period 返回快照的版本号，等于已经确认的轮数
func (sd *SynchronizedData) Period() types.Period {
	return sd.period
}

// LastRound returns the round whose confirmation produced this snapshot.
func (sd *SynchronizedData) LastRound() types.RoundID {
	return sd.lastRound
}

// TimedOut reports whether the last round was ended by the gateway without quorum.
func (sd *SynchronizedData) TimedOut() bool {
	return sd.timedOut
}

func (sd *SynchronizedData) Get(key string) (interface{}, bool) {
	v, ok := sd.fields[key]
	if !ok {
		return nil, false
	}
	return v.Data, true
}

func (sd *SynchronizedData) Entry(key string) (Value, bool) {
	v, ok := sd.fields[key]
	return v, ok
}

func (sd *SynchronizedData) GetString(key string) (string, bool) {
	v, ok := sd.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func (sd *SynchronizedData) GetFloat(key string) (float64, bool) {
	v, ok := sd.Get(key)
	if !ok {
		return 0, false
	}
	switch f := v.(type) {
	case float64:
		return f, true
	case float32:
		return float64(f), true
	case int:
		return float64(f), true
	case int64:
		return float64(f), true
	default:
		return 0, false
	}
}

func (sd *SynchronizedData) GetBool(key string) (bool, bool) {
	v, ok := sd.Get(key)
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// SetInLastRound 判断字段是否由产生该快照的那一轮写入
func (sd *SynchronizedData) SetInLastRound(key string) bool {
	v, ok := sd.fields[key]
	if !ok || sd.period == types.PeriodZero {
		return false
	}
	return v.Period == sd.period && v.Round == sd.lastRound
}

// ContributedBy returns the keys whose latest value was written by round.
func (sd *SynchronizedData) ContributedBy(round types.RoundID) []string {
	keys := []string{}
	for k, v := range sd.fields {
		if v.Round == round {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func (sd *SynchronizedData) Keys() []string {
	keys := make([]string, 0, len(sd.fields))
	for k := range sd.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Payloads 返回最近一轮确认的payload副本
func (sd *SynchronizedData) Payloads() []types.Payload {
	out := make([]types.Payload, len(sd.payloads))
	copy(out, sd.payloads)
	return out
}

// Update 根据一轮确认结果生成新的快照，当前快照保持不变
// fields中的每个key在一次确认中只会写入一次
func (sd *SynchronizedData) Update(
	round types.RoundID,
	payloads []types.Payload,
	fields map[string]interface{},
	timedOut bool,
) (*SynchronizedData, error) {
	next := &SynchronizedData{
		period:    sd.period.Update(1),
		lastRound: round,
		timedOut:  timedOut,
		fields:    make(map[string]Value, len(sd.fields)+len(fields)),
		payloads:  make([]types.Payload, 0, len(payloads)),
	}
	for k, v := range sd.fields {
		next.fields[k] = v
	}
	for k, v := range fields {
		if k == "" {
			return nil, ErrEmptyKey
		}
		next.fields[k] = Value{Data: v, Period: next.period, Round: round}
	}

	for _, p := range payloads {
		if p.Round() != round || p.Period() != sd.period {
			return nil, fmt.Errorf("%w: %v, confirming %v/%v", ErrRoundMismatch, types.PayloadString(p), sd.period, round)
		}
		next.payloads = append(next.payloads, p)
	}
	sort.Slice(next.payloads, func(i, j int) bool {
		return next.payloads[i].Sender().String() < next.payloads[j].Sender().String()
	})

	return next, nil
}

// Hash 返回快照内容的摘要，内容相同的快照hash相同
func (sd *SynchronizedData) Hash() []byte {
	bz, err := sd.MarshalJSON()
	if err != nil {
		return nil
	}
	return tmhash.Sum(bz)
}

func (sd *SynchronizedData) String() string {
	return fmt.Sprintf("SynchronizedData{period:%v round:%v timedOut:%v keys:%v payloads:%d}",
		sd.period, sd.lastRound, sd.timedOut, sd.Keys(), len(sd.payloads))
}
