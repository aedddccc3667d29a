package gateway

import (
	"fmt"
	jsoniter "github.com/json-iterator/go"
	"github.com/tendermint/tendermint/crypto/ed25519"
	"roundbft/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Envelope 节点之间传输的带签名payload
type Envelope struct {
	Payload   jsoniter.RawMessage `json:"payload"`
	PubKey    []byte              `json:"pub_key"`
	Signature []byte              `json:"signature"`
}

// SignEnvelope 编码payload并用agent私钥签名
func SignEnvelope(appID string, priv types.PrivAgent, p types.Payload) (*Envelope, error) {
	bz, err := types.EncodePayload(p)
	if err != nil {
		return nil, err
	}
	pub, err := priv.GetPubKey()
	if err != nil {
		return nil, err
	}
	sig, err := priv.SignBytes(appID, bz)
	if err != nil {
		return nil, err
	}
	return &Envelope{
		Payload:   bz,
		PubKey:    pub.Bytes(),
		Signature: sig,
	}, nil
}

// Open 验证签名并解码payload，签名公钥必须对应payload的sender
func (env *Envelope) Open(appID string) (types.Payload, error) {
	if len(env.PubKey) != ed25519.PubKeySize {
		return nil, fmt.Errorf("%w: pubkey size %d", ErrBadSignature, len(env.PubKey))
	}
	pub := ed25519.PubKey(env.PubKey)
	if !pub.VerifySignature(types.AgentSignBytes(appID, env.Payload), env.Signature) {
		return nil, ErrBadSignature
	}
	p, err := types.DecodePayload(env.Payload)
	if err != nil {
		return nil, err
	}
	if !types.GetAddress(pub).Equal(p.Sender()) {
		return nil, fmt.Errorf("%w: signer %v, sender %v", ErrBadSignature, types.GetAddress(pub), p.Sender())
	}
	return p, nil
}

func (env *Envelope) Marshal() ([]byte, error) {
	return json.Marshal(env)
}

func UnmarshalEnvelope(bz []byte) (*Envelope, error) {
	env := &Envelope{}
	if err := json.Unmarshal(bz, env); err != nil {
		return nil, err
	}
	return env, nil
}
