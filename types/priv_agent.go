package types

import "github.com/tendermint/tendermint/crypto"

// PrivAgent 参与者的签名身份，payload广播前需要签名
type PrivAgent interface {
	GetAddress() Address
	GetPubKey() (crypto.PubKey, error)

	SignBytes(appID string, bz []byte) ([]byte, error)
}

// AgentSignBytes 签名内容带上appID，防止不同应用之间重放
func AgentSignBytes(appID string, bz []byte) []byte {
	out := make([]byte, 0, len(appID)+1+len(bz))
	out = append(out, appID...)
	out = append(out, ':')
	return append(out, bz...)
}
