package rpc

import (
	rpctypes "github.com/tendermint/tendermint/rpc/jsonrpc/types"
)

type ResultMetrics struct {
	Metrics map[string]string `json:"metrics"`
}

// JSONMetrics label为空时返回全部模块的metric
func JSONMetrics(ctx *rpctypes.Context, label string) (*ResultMetrics, error) {
	var labels []string
	if label != "" {
		labels = append(labels, label)
	}
	metrics, err := env.MetricSet.Export(labels...)
	if err != nil {
		return nil, err
	}
	return &ResultMetrics{Metrics: metrics}, nil
}
