package rpc

import rpc "github.com/tendermint/tendermint/rpc/jsonrpc/server"

var Routes = map[string]*rpc.RPCFunc{
	"round_state": rpc.NewRPCFunc(RoundState, ""),
	"snapshot":    rpc.NewRPCFunc(Snapshot, "period"),
	"fsm":         rpc.NewRPCFunc(FSM, ""),
	"metrics":     rpc.NewRPCFunc(JSONMetrics, "label"),
}
