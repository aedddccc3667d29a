package contract

import (
	"context"
	"github.com/pkg/errors"
	"github.com/tendermint/tendermint/libs/log"
	jsonrpcclient "github.com/tendermint/tendermint/rpc/jsonrpc/client"
	"roundbft/behaviour"
)

// MethodGetState 合约服务上只读查询的方法名
const MethodGetState = "get_state"

// Client 通过JSON-RPC访问合约服务，实现behaviour.ContractAPI
type Client struct {
	rpc    *jsonrpcclient.Client
	remote string
	logger log.Logger
}

var _ behaviour.ContractAPI = (*Client)(nil)

func NewClient(remote string) (*Client, error) {
	rpc, err := jsonrpcclient.New(remote)
	if err != nil {
		return nil, errors.Wrapf(err, "create contract client for %s", remote)
	}
	return &Client{
		rpc:    rpc,
		remote: remote,
		logger: log.NewNopLogger(),
	}, nil
}

func (c *Client) SetLogger(logger log.Logger) {
	c.logger = logger
}

// GetState implements behaviour.ContractAPI. 传输失败返回error，合约执行失败体现在Performative中
func (c *Client) GetState(ctx context.Context, req behaviour.ContractRequest) (behaviour.ContractResponse, error) {
	params := map[string]interface{}{
		"contract_address":  req.ContractAddress,
		"contract_id":       req.ContractID,
		"contract_callable": req.Callable,
		"kwargs":            req.Kwargs,
	}

	var resp behaviour.ContractResponse
	if _, err := c.rpc.Call(ctx, MethodGetState, params, &resp); err != nil {
		return behaviour.ContractResponse{}, errors.Wrapf(err, "%s %s.%s", c.remote, req.ContractID, req.Callable)
	}
	c.logger.Debug("contract state", "contract", req.ContractAddress, "callable", req.Callable, "performative", resp.Performative)
	return resp, nil
}
