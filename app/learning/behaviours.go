package learning

import (
	"context"
	"encoding/hex"
	"fmt"
	"github.com/pkg/errors"
	"github.com/tendermint/tendermint/libs/log"
	"roundbft/behaviour"
	"roundbft/state"
	"roundbft/types"
	"strconv"
	"strings"
)

const (
	APICheckBehaviourID       = "api_check"
	DecisionMakingBehaviourID = "decision_making"
	TxPreparationBehaviourID  = "tx_preparation"

	GnosisSafeContractID = "valory/gnosis_safe:0.1.0"
	safeTxHashCallable   = "get_raw_safe_transaction_hash"

	txData       = "0x"
	safeGas      = 0
	txHashLength = 66
	txHashKey    = "tx_hash"
	valueKey     = "value"
	toAddressKey = "to_address"
	dataKey      = "data"
	safeTxGasKey = "safe_tx_gas"
	operationKey = "operation"
)

var (
	errNoPriceSource    = errors.New("no price source configured")
	errNoContractAPI    = errors.New("no contract api configured")
	errNoTransferTarget = errors.New("no transfer target configured")
	errInvalidTxHash    = errors.New("invalid safe tx hash")
)

// Collaborators 本地阶段可以访问的外部服务，全部通过构造注入
type Collaborators struct {
	Prices    behaviour.PriceSource
	Contracts behaviour.ContractAPI

	// Batches 为nil时TxPreparation直接向TransferTarget转账
	Batches TxBatchBuilder
}

// Factories binds every non-terminal learning round to its behaviour.
func Factories(params Params, collab Collaborators) map[types.RoundID]behaviour.Factory {
	return map[types.RoundID]behaviour.Factory{
		APICheckRound: func(c *behaviour.Context) behaviour.Behaviour {
			return &APICheckBehaviour{c: c, params: params, prices: collab.Prices}
		},
		DecisionMakingRound: func(c *behaviour.Context) behaviour.Behaviour {
			return &DecisionMakingBehaviour{c: c, params: params}
		},
		TxPreparationRound: func(c *behaviour.Context) behaviour.Behaviour {
			return &TxPreparationBehaviour{c: c, params: params, contracts: collab.Contracts, batches: collab.Batches}
		},
	}
}

// ----------------------------------------------------------------------------

type APICheckBehaviour struct {
	c      *behaviour.Context
	params Params
	prices behaviour.PriceSource
}

var _ behaviour.Behaviour = (*APICheckBehaviour)(nil)

func (b *APICheckBehaviour) ID() string           { return APICheckBehaviourID }
func (b *APICheckBehaviour) Round() types.RoundID { return APICheckRound }

// LocalAct 价格获取失败时提交Fallback payload，不使用伪造的价格
func (b *APICheckBehaviour) LocalAct(ctx context.Context, synced *state.SynchronizedData) (types.Payload, error) {
	price, err := b.price(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger(b.c).Error("price lookup failed", "token", b.params.TokenID, "err", err)
		return NewAPICheckPayload(b.c.AgentAddress, synced.Period(), 0, true), nil
	}
	logger(b.c).Info("price fetched", "token", b.params.TokenID, "price", price)
	return NewAPICheckPayload(b.c.AgentAddress, synced.Period(), price, false), nil
}

func (b *APICheckBehaviour) price(ctx context.Context) (float64, error) {
	if b.prices == nil {
		return 0, errNoPriceSource
	}
	price, err := b.prices.Price(ctx, b.params.TokenID)
	if err != nil {
		return 0, err
	}
	if price < 0 {
		return 0, ErrNegativePrice
	}
	return price, nil
}

func (b *APICheckBehaviour) Event(confirmed *state.SynchronizedData) (types.Event, error) {
	switch {
	case confirmed.TimedOut():
		return EventRoundTimeout, nil
	case !confirmed.SetInLastRound(KeyPrice):
		return EventNoMajority, nil
	}
	if fallback, _ := confirmed.GetBool(KeyPriceFallback); fallback {
		return EventError, nil
	}
	return EventDone, nil
}

// ----------------------------------------------------------------------------

// DecisionMakingBehaviour 根据已确认的价格和safe地址决定是否发起转账
type DecisionMakingBehaviour struct {
	c      *behaviour.Context
	params Params
}

var _ behaviour.Behaviour = (*DecisionMakingBehaviour)(nil)

func (b *DecisionMakingBehaviour) ID() string           { return DecisionMakingBehaviourID }
func (b *DecisionMakingBehaviour) Round() types.RoundID { return DecisionMakingRound }

func (b *DecisionMakingBehaviour) LocalAct(ctx context.Context, synced *state.SynchronizedData) (types.Payload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	event := b.decide(NewSynchronizedData(synced))
	logger(b.c).Info("decision made", "event", event)
	return NewDecisionMakingPayload(b.c.AgentAddress, synced.Period(), event), nil
}

func (b *DecisionMakingBehaviour) decide(data SynchronizedData) types.Event {
	if _, ok := data.SafeContractAddress(); !ok {
		return EventMissingData
	}
	price, ok := data.Price()
	if !ok {
		return EventError
	}
	if price >= b.params.TransferThreshold {
		return EventTransact
	}
	return EventDone
}

func (b *DecisionMakingBehaviour) Event(confirmed *state.SynchronizedData) (types.Event, error) {
	if confirmed.TimedOut() {
		return EventRoundTimeout, nil
	}
	if !confirmed.SetInLastRound(KeyDecision) {
		return EventNoMajority, nil
	}
	decision, _ := NewSynchronizedData(confirmed).Decision()
	if !decisionEvents.Has(decision) {
		return "", fmt.Errorf("%w: %v", ErrUnknownDecision, decision)
	}
	return decision, nil
}

// ----------------------------------------------------------------------------

// TxPreparationBehaviour 通过合约服务计算safe交易hash
type TxPreparationBehaviour struct {
	c         *behaviour.Context
	params    Params
	contracts behaviour.ContractAPI
	batches   TxBatchBuilder
}

var _ behaviour.Behaviour = (*TxPreparationBehaviour)(nil)

func (b *TxPreparationBehaviour) ID() string           { return TxPreparationBehaviourID }
func (b *TxPreparationBehaviour) Round() types.RoundID { return TxPreparationRound }

// LocalAct 构造失败时提交空hash，由确认结果统一发出ERROR
func (b *TxPreparationBehaviour) LocalAct(ctx context.Context, synced *state.SynchronizedData) (types.Payload, error) {
	txHash, err := b.safeTxHash(ctx, NewSynchronizedData(synced))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger(b.c).Error("could not prepare safe tx", "err", err)
		return NewTxPreparationPayload(b.c.AgentAddress, synced.Period(), "", ""), nil
	}
	logger(b.c).Info("safe tx prepared", "tx_hash", txHash)
	return NewTxPreparationPayload(b.c.AgentAddress, synced.Period(), b.ID(), txHash), nil
}

func (b *TxPreparationBehaviour) safeTxHash(ctx context.Context, data SynchronizedData) (string, error) {
	if b.contracts == nil {
		return "", errNoContractAPI
	}
	safe, ok := data.SafeContractAddress()
	if !ok {
		return "", errors.Errorf("%s not set", KeySafeContractAddress)
	}

	req, err := b.request(ctx, safe, data)
	if err != nil {
		return "", err
	}
	resp, err := b.contracts.GetState(ctx, req)
	if err != nil {
		return "", errors.Wrap(err, "contract api")
	}
	if err := resp.Err(); err != nil {
		return "", err
	}
	return parseSafeTxHash(resp.State[txHashKey])
}

// request 配置了multisend时对multisend合约做DELEGATE_CALL，否则直接转账
func (b *TxPreparationBehaviour) request(ctx context.Context, safe string, data SynchronizedData) (behaviour.ContractRequest, error) {
	kwargs := map[string]string{
		safeTxGasKey: strconv.Itoa(safeGas),
	}
	if b.batches != nil && b.params.MultisendAddress != "" {
		tx, err := b.batches.Build(ctx, data)
		if err != nil {
			return behaviour.ContractRequest{}, errors.Wrap(err, "build multisend batch")
		}
		kwargs[toAddressKey] = b.params.MultisendAddress
		kwargs[valueKey] = strconv.FormatInt(tx.Value(), 10)
		kwargs[dataKey] = tx.Data
		kwargs[operationKey] = strconv.Itoa(int(SafeOperationDelegateCall))
	} else {
		if b.params.TransferTarget == "" {
			return behaviour.ContractRequest{}, errNoTransferTarget
		}
		kwargs[toAddressKey] = b.params.TransferTarget
		kwargs[valueKey] = strconv.FormatInt(b.params.TransferValue, 10)
		kwargs[dataKey] = txData
		kwargs[operationKey] = strconv.Itoa(int(SafeOperationCall))
	}
	return behaviour.ContractRequest{
		ContractAddress: safe,
		ContractID:      GnosisSafeContractID,
		Callable:        safeTxHashCallable,
		Kwargs:          kwargs,
	}, nil
}

// parseSafeTxHash 校验0x开头的66位hash并去掉前缀
func parseSafeTxHash(txHash string) (string, error) {
	if len(txHash) != txHashLength || !strings.HasPrefix(txHash, "0x") {
		return "", errors.Wrapf(errInvalidTxHash, "%q", txHash)
	}
	stripped := strings.ToLower(txHash[2:])
	if _, err := hex.DecodeString(stripped); err != nil {
		return "", errors.Wrapf(errInvalidTxHash, "%q", txHash)
	}
	return stripped, nil
}

func (b *TxPreparationBehaviour) Event(confirmed *state.SynchronizedData) (types.Event, error) {
	switch {
	case confirmed.TimedOut():
		return EventRoundTimeout, nil
	case confirmed.SetInLastRound(KeyMostVotedTxHash):
		return EventDone, nil
	case confirmed.SetInLastRound(KeyTxHashMissing):
		return EventError, nil
	default:
		return EventNoMajority, nil
	}
}

func logger(c *behaviour.Context) log.Logger {
	if c == nil || c.Logger == nil {
		return log.NewNopLogger()
	}
	return c.Logger
}
