package learning

import (
	"encoding/hex"
	"errors"
	"fmt"
	jsoniter "github.com/json-iterator/go"
	"roundbft/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	APICheckPayloadKind       = types.PayloadKind("learning/api_check")
	DecisionMakingPayloadKind = types.PayloadKind("learning/decision_making")
	TxPreparationPayloadKind  = types.PayloadKind("learning/tx_preparation")
)

var (
	ErrNegativePrice = errors.New("price must not be negative")
	ErrBadTxHash     = errors.New("tx hash must be 32 bytes of hex without 0x prefix")
)

func init() {
	types.RegisterPayload(APICheckPayloadKind, func() types.Payload { return &APICheckPayload{} })
	types.RegisterPayload(DecisionMakingPayloadKind, func() types.Payload { return &DecisionMakingPayload{} })
	types.RegisterPayload(TxPreparationPayloadKind, func() types.Payload { return &TxPreparationPayload{} })
}

// APICheckPayload 本节点观察到的价格
// Fallback为true表示价格源不可用，Price不是真实数据
type APICheckPayload struct {
	types.BasePayload
	Price    float64 `json:"price"`
	Fallback bool    `json:"fallback"`
}

func NewAPICheckPayload(sender types.Address, period types.Period, price float64, fallback bool) *APICheckPayload {
	return &APICheckPayload{
		BasePayload: types.NewBasePayload(sender, APICheckRound, period),
		Price:       price,
		Fallback:    fallback,
	}
}

func (p *APICheckPayload) Kind() types.PayloadKind {
	return APICheckPayloadKind
}

func (p *APICheckPayload) Content() ([]byte, error) {
	return json.Marshal(struct {
		Price    float64 `json:"price"`
		Fallback bool    `json:"fallback"`
	}{p.Price, p.Fallback})
}

func (p *APICheckPayload) ValidateBasic() error {
	if err := p.BasePayload.ValidateBasic(); err != nil {
		return err
	}
	if p.Price < 0 {
		return ErrNegativePrice
	}
	return nil
}

// DecisionMakingPayload carries the event this agent voted for.
type DecisionMakingPayload struct {
	types.BasePayload
	Event types.Event `json:"event"`
}

func NewDecisionMakingPayload(sender types.Address, period types.Period, event types.Event) *DecisionMakingPayload {
	return &DecisionMakingPayload{
		BasePayload: types.NewBasePayload(sender, DecisionMakingRound, period),
		Event:       event,
	}
}

func (p *DecisionMakingPayload) Kind() types.PayloadKind {
	return DecisionMakingPayloadKind
}

func (p *DecisionMakingPayload) Content() ([]byte, error) {
	return json.Marshal(p.Event)
}

func (p *DecisionMakingPayload) ValidateBasic() error {
	if err := p.BasePayload.ValidateBasic(); err != nil {
		return err
	}
	if !decisionEvents.Has(p.Event) {
		return fmt.Errorf("%w: %v is not a decision", ErrUnknownDecision, p.Event)
	}
	return nil
}

// TxPreparationPayload 空的TxHash表示本节点没能构造出交易
type TxPreparationPayload struct {
	types.BasePayload
	TxSubmitter string `json:"tx_submitter"`
	TxHash      string `json:"tx_hash"`
}

func NewTxPreparationPayload(sender types.Address, period types.Period, submitter, txHash string) *TxPreparationPayload {
	return &TxPreparationPayload{
		BasePayload: types.NewBasePayload(sender, TxPreparationRound, period),
		TxSubmitter: submitter,
		TxHash:      txHash,
	}
}

func (p *TxPreparationPayload) Kind() types.PayloadKind {
	return TxPreparationPayloadKind
}

func (p *TxPreparationPayload) Content() ([]byte, error) {
	return json.Marshal(struct {
		TxSubmitter string `json:"tx_submitter"`
		TxHash      string `json:"tx_hash"`
	}{p.TxSubmitter, p.TxHash})
}

func (p *TxPreparationPayload) ValidateBasic() error {
	if err := p.BasePayload.ValidateBasic(); err != nil {
		return err
	}
	if p.TxHash == "" {
		return nil
	}
	if bz, err := hex.DecodeString(p.TxHash); err != nil || len(bz) != 32 {
		return fmt.Errorf("%w: %q", ErrBadTxHash, p.TxHash)
	}
	return nil
}
