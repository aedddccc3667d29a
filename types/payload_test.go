package types

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

const testPayloadKind = PayloadKind("test_payload")

type testPayload struct {
	BasePayload
	Value string `json:"value"`
}

func (p *testPayload) Kind() PayloadKind {
	return testPayloadKind
}

func (p *testPayload) Content() ([]byte, error) {
	return json.Marshal(p.Value)
}

func init() {
	RegisterPayload(testPayloadKind, func() Payload { return &testPayload{} })
}

func newTestPayload(sender string, value string) *testPayload {
	addr, _ := AddressFromHex(sender)
	return &testPayload{
		BasePayload: NewBasePayload(addr, RoundID("test_round"), Period(3)),
		Value:       value,
	}
}

func TestEncodeDecodePayload(t *testing.T) {
	p := newTestPayload("0xAA01", "hello")

	bz, err := EncodePayload(p)
	require.NoError(t, err)

	decoded, err := DecodePayload(bz)
	require.NoError(t, err)
	assert.True(t, SamePayload(p, decoded), "解码后的payload应该和原payload一致")
	assert.Equal(t, "AA01", decoded.Sender().String())
	assert.Equal(t, RoundKey{Period: 3, Round: "test_round"}, PayloadKey(decoded))
}

func TestDecodeUnknownKind(t *testing.T) {
	_, err := DecodePayload([]byte(`{"kind":"nope","body":{}}`))
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestContentHashIgnoresSender(t *testing.T) {
	a := newTestPayload("0x01", "same")
	b := newTestPayload("0x02", "same")
	c := newTestPayload("0x01", "other")

	ha, err := ContentHash(a)
	require.NoError(t, err)
	hb, _ := ContentHash(b)
	hc, _ := ContentHash(c)

	assert.Equal(t, ha, hb)
	assert.NotEqual(t, ha, hc)
	assert.False(t, SamePayload(a, b), "不同sender不是同一个payload")
	assert.False(t, SamePayload(a, c))
}

func TestBasePayloadValidateBasic(t *testing.T) {
	assert.ErrorIs(t, BasePayload{RoundID: "r"}.ValidateBasic(), ErrEmptySender)
	assert.ErrorIs(t, BasePayload{SenderAddr: Address{1}}.ValidateBasic(), ErrEmptyRound)
	assert.NoError(t, NewBasePayload(Address{1}, "r", 0).ValidateBasic())
}
