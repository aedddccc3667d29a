package fsm

import (
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"roundbft/types"
	"testing"
)

type valuePayload struct {
	types.BasePayload
	Value string `json:"value"`
}

func (p *valuePayload) Kind() types.PayloadKind {
	return "fsm_value"
}

func (p *valuePayload) Content() ([]byte, error) {
	return jsoniter.Marshal(p.Value)
}

func vp(sender byte, value string) types.Payload {
	return &valuePayload{
		BasePayload: types.NewBasePayload(types.Address{sender}, roundA, 0),
		Value:       value,
	}
}

func TestCollectSameUntilThreshold(t *testing.T) {
	payloads := []types.Payload{vp(4, "x"), vp(2, "y"), vp(3, "x"), vp(1, "x")}

	p, ok := CollectSameUntilThreshold(payloads, 3)
	require.True(t, ok)
	assert.Equal(t, "x", p.(*valuePayload).Value)
	assert.Equal(t, types.Address{1}, p.Sender(), "取sender最小的payload")

	_, ok = CollectSameUntilThreshold(payloads, 4)
	assert.False(t, ok, "没有内容达到4票")

	_, ok = CollectSameUntilThreshold(payloads[:2], 3)
	assert.False(t, ok)
}

func TestCollectSameOrderIndependent(t *testing.T) {
	a := []types.Payload{vp(1, "x"), vp(2, "y"), vp(3, "y"), vp(4, "x")}
	b := []types.Payload{vp(4, "x"), vp(3, "y"), vp(1, "x"), vp(2, "y")}

	pa, oka := CollectSameUntilThreshold(a, 2)
	pb, okb := CollectSameUntilThreshold(b, 2)
	require.True(t, oka)
	require.True(t, okb)
	assert.True(t, types.SamePayload(pa, pb), "平票时结果不依赖输入顺序")
}
