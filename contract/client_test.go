package contract

import (
	"context"
	"errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendermint/tendermint/libs/log"
	rpcserver "github.com/tendermint/tendermint/rpc/jsonrpc/server"
	rpctypes "github.com/tendermint/tendermint/rpc/jsonrpc/types"
	"net/http"
	"net/http/httptest"
	"roundbft/behaviour"
	"testing"
)

const testHash = "0xabababababababababababababababababababababababababababababababab"

func getState(
	ctx *rpctypes.Context,
	contractAddress string,
	contractID string,
	contractCallable string,
	kwargs map[string]string,
) (*behaviour.ContractResponse, error) {
	switch contractCallable {
	case "get_raw_safe_transaction_hash":
		if kwargs["to_address"] == "" {
			return &behaviour.ContractResponse{Performative: behaviour.PerformativeError, Code: 2, Message: "to_address required"}, nil
		}
		return &behaviour.ContractResponse{
			Performative: behaviour.PerformativeState,
			State:        map[string]string{"tx_hash": testHash, "safe": contractAddress, "id": contractID},
		}, nil
	default:
		return nil, errors.New("unknown callable")
	}
}

func newTestServer(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	routes := map[string]*rpcserver.RPCFunc{
		MethodGetState: rpcserver.NewRPCFunc(getState, "contract_address,contract_id,contract_callable,kwargs"),
	}
	rpcserver.RegisterRPCFuncs(mux, routes, log.TestingLogger())
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientGetState(t *testing.T) {
	srv := newTestServer(t)
	c, err := NewClient(srv.URL)
	require.NoError(t, err)
	c.SetLogger(log.TestingLogger())

	resp, err := c.GetState(context.Background(), behaviour.ContractRequest{
		ContractAddress: "0x5afe",
		ContractID:      "valory/gnosis_safe:0.1.0",
		Callable:        "get_raw_safe_transaction_hash",
		Kwargs:          map[string]string{"to_address": "0x7a4e", "value": "1"},
	})
	require.NoError(t, err)
	require.NoError(t, resp.Err())
	assert.Equal(t, testHash, resp.State["tx_hash"])
	assert.Equal(t, "0x5afe", resp.State["safe"])
	assert.Equal(t, "valory/gnosis_safe:0.1.0", resp.State["id"])
}

func TestClientContractError(t *testing.T) {
	srv := newTestServer(t)
	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	resp, err := c.GetState(context.Background(), behaviour.ContractRequest{
		ContractAddress: "0x5afe",
		Callable:        "get_raw_safe_transaction_hash",
	})
	require.NoError(t, err)
	assert.Equal(t, behaviour.PerformativeError, resp.Performative)
	assert.Equal(t, 2, resp.Code)
	assert.Error(t, resp.Err())

	_, err = c.GetState(context.Background(), behaviour.ContractRequest{Callable: "bogus"})
	assert.Error(t, err)
}

func TestClientUnreachable(t *testing.T) {
	srv := newTestServer(t)
	url := srv.URL
	srv.Close()

	c, err := NewClient(url)
	require.NoError(t, err)
	_, err = c.GetState(context.Background(), behaviour.ContractRequest{Callable: "get_raw_safe_transaction_hash"})
	assert.Error(t, err)
}
