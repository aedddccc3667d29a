package learning

import (
	"context"
	"encoding/hex"
	"errors"
)

// SafeOperation gnosis safe交易类型
type SafeOperation int

const (
	SafeOperationCall         = SafeOperation(0)
	SafeOperationDelegateCall = SafeOperation(1)
)

var ErrEmptyBatch = errors.New("multisend batch is empty")

// MultisendBatch is one call bundled into a multisend transaction.
type MultisendBatch struct {
	To    string `json:"to"`
	Value int64  `json:"value"`
	Data  string `json:"data"`
}

// MultisendTx 编码后的multisend调用数据和其中的全部子交易
type MultisendTx struct {
	Batches []MultisendBatch `json:"batches"`
	Data    string           `json:"data"`
}

func (tx MultisendTx) Value() int64 {
	var total int64
	for _, b := range tx.Batches {
		total += b.Value
	}
	return total
}

// TxBatchBuilder 可选的collaborator，配置后TxPreparation通过multisend合约发出交易
type TxBatchBuilder interface {
	Build(ctx context.Context, data SynchronizedData) (MultisendTx, error)
}

// TransferBatchBuilder bundles a single value transfer to the configured target.
type TransferBatchBuilder struct {
	Target string
	Value  int64

	// Encode 把子交易编码成multisend合约的调用数据
	Encode func([]MultisendBatch) (string, error)
}

func (b TransferBatchBuilder) Build(ctx context.Context, _ SynchronizedData) (MultisendTx, error) {
	if err := ctx.Err(); err != nil {
		return MultisendTx{}, err
	}
	if b.Target == "" {
		return MultisendTx{}, ErrEmptyBatch
	}
	batches := []MultisendBatch{{To: b.Target, Value: b.Value, Data: txData}}
	encode := b.Encode
	if encode == nil {
		encode = encodeBatches
	}
	data, err := encode(batches)
	if err != nil {
		return MultisendTx{}, err
	}
	return MultisendTx{Batches: batches, Data: data}, nil
}

// encodeBatches 默认编码：子交易的JSON十六进制，真正的ABI编码由合约服务完成
func encodeBatches(batches []MultisendBatch) (string, error) {
	if len(batches) == 0 {
		return "", ErrEmptyBatch
	}
	bz, err := json.Marshal(batches)
	if err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(bz), nil
}
