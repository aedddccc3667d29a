package learning

import (
	"roundbft/state"
	"roundbft/types"
)

const (
	DefaultTokenID       = "autonolas"
	DefaultTransferValue = int64(1)
)

// Params 学习应用的静态参数，启动时从配置读取
type Params struct {
	TokenID string

	// SafeContractAddress 写入初始快照，为空时DecisionMaking发出MISSING_DATA
	SafeContractAddress string
	MultisendAddress    string
	TransferTarget      string
	TransferValue       int64

	// TransferThreshold 价格不低于该值时才发起转账
	TransferThreshold float64
}

func DefaultParams() Params {
	return Params{
		TokenID:       DefaultTokenID,
		TransferValue: DefaultTransferValue,
	}
}

// Genesis returns the initial snapshot seeded with the setup fields.
func (p Params) Genesis() *state.SynchronizedData {
	setup := map[string]interface{}{}
	if p.SafeContractAddress != "" {
		setup[KeySafeContractAddress] = p.SafeContractAddress
	}
	return state.NewSynchronizedData(setup)
}

// SynchronizedData 学习应用字段的类型化视图
type SynchronizedData struct {
	*state.SynchronizedData
}

func NewSynchronizedData(sd *state.SynchronizedData) SynchronizedData {
	return SynchronizedData{SynchronizedData: sd}
}

func (sd SynchronizedData) SafeContractAddress() (string, bool) {
	addr, ok := sd.GetString(KeySafeContractAddress)
	return addr, ok && addr != ""
}

// Price returns the agreed price. Fallback prices are reported as absent.
func (sd SynchronizedData) Price() (float64, bool) {
	price, ok := sd.GetFloat(KeyPrice)
	if !ok {
		return 0, false
	}
	if fallback, _ := sd.GetBool(KeyPriceFallback); fallback {
		return 0, false
	}
	return price, true
}

func (sd SynchronizedData) Decision() (types.Event, bool) {
	e, ok := sd.GetString(KeyDecision)
	return types.Event(e), ok
}

func (sd SynchronizedData) MostVotedTxHash() (string, bool) {
	h, ok := sd.GetString(KeyMostVotedTxHash)
	return h, ok && h != ""
}

func (sd SynchronizedData) TxSubmitter() string {
	s, _ := sd.GetString(KeyTxSubmitter)
	return s
}
