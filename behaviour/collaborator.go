package behaviour

import (
	"context"
	"fmt"
)

// Performative 合约查询响应的类型
type Performative string

const (
	PerformativeState = Performative("state")
	PerformativeError = Performative("error")
)

// ContractRequest 合约只读调用，按(地址, 合约标识, 方法, 参数)区分
type ContractRequest struct {
	ContractAddress string            `json:"contract_address"`
	ContractID      string            `json:"contract_id"`
	Callable        string            `json:"contract_callable"`
	Kwargs          map[string]string `json:"kwargs"`
}

// ContractResponse 成功时Performative为state，失败时带上原因码
type ContractResponse struct {
	Performative Performative      `json:"performative"`
	State        map[string]string `json:"state,omitempty"`
	Code         int               `json:"code,omitempty"`
	Message      string            `json:"message,omitempty"`
}

func (r ContractResponse) Err() error {
	if r.Performative == PerformativeState {
		return nil
	}
	return fmt.Errorf("contract api returned %v (code %d): %s", r.Performative, r.Code, r.Message)
}

// ContractAPI reads on-chain state. Only used inside local phases.
type ContractAPI interface {
	GetState(ctx context.Context, req ContractRequest) (ContractResponse, error)
}

// PriceSource is the off-chain HTTP collaborator used for price lookups.
type PriceSource interface {
	Price(ctx context.Context, tokenID string) (float64, error)
}
