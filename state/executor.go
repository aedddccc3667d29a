package state

import (
	"fmt"
	"github.com/tendermint/tendermint/libs/log"
	"roundbft/types"
	"sort"
)

// Folder 把一轮确认的payload折叠成新的同步数据字段
// 返回nil表示这一轮没有达成多数，不写入任何字段
type Folder func(prev *SynchronizedData, payloads []types.Payload, threshold int) (map[string]interface{}, error)

type RoundExecutor interface {
	// ApplyRound 把达到quorum的一轮payload折叠进新的快照
	ApplyRound(prev *SynchronizedData, round types.RoundID, payloads []types.Payload, threshold int) (*SynchronizedData, error)

	// ApplyTimeout 网关在没有quorum的情况下结束一轮，生成标记超时的快照
	ApplyTimeout(prev *SynchronizedData, round types.RoundID) (*SynchronizedData, error)

	SetLogger(logger log.Logger)
}

func NewRoundExecutor(folders map[types.RoundID]Folder) RoundExecutor {
	copied := make(map[types.RoundID]Folder, len(folders))
	for id, f := range folders {
		copied[id] = f
	}
	return &roundExecutor{
		folders: copied,
		logger:  log.NewNopLogger(),
	}
}

type roundExecutor struct {
	folders map[types.RoundID]Folder

	logger log.Logger
}

// SetLogger implements RoundExecutor
func (exec *roundExecutor) SetLogger(logger log.Logger) {
	exec.logger = logger
}

// ApplyRound implements RoundExecutor
func (exec *roundExecutor) ApplyRound(
	prev *SynchronizedData,
	round types.RoundID,
	payloads []types.Payload,
	threshold int,
) (*SynchronizedData, error) {
	folder, ok := exec.folders[round]
	if !ok {
		return nil, ErrUnknownRound(round)
	}

	// 折叠前按sender排序，保证每个节点的输入顺序一致
	sorted := make([]types.Payload, len(payloads))
	copy(sorted, payloads)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Sender().String() < sorted[j].Sender().String() })

	for _, p := range sorted {
		if err := p.ValidateBasic(); err != nil {
			return nil, ErrInvalidPayload(err)
		}
	}

	fields, err := folder(prev, sorted, threshold)
	if err != nil {
		return nil, err
	}

	next, err := prev.Update(round, sorted, fields, false)
	if err != nil {
		return nil, err
	}
	exec.logger.Debug("apply round done", "round", round, "period", next.Period(), "fields", next.ContributedBy(round))
	return next, nil
}

// ApplyTimeout implements RoundExecutor
func (exec *roundExecutor) ApplyTimeout(prev *SynchronizedData, round types.RoundID) (*SynchronizedData, error) {
	if _, ok := exec.folders[round]; !ok {
		return nil, ErrUnknownRound(round)
	}
	exec.logger.Info("round ended by timeout", "round", round, "period", prev.Period())
	return prev.Update(round, nil, nil, true)
}

type unknownRoundError struct {
	round types.RoundID
}

func (e unknownRoundError) Error() string {
	return fmt.Sprintf("no folder registered for round %v", e.round)
}

func ErrUnknownRound(round types.RoundID) error {
	return unknownRoundError{round: round}
}

type invalidPayloadError struct {
	err error
}

func (e invalidPayloadError) Error() string {
	return fmt.Sprintf("invalid payload: %v", e.err)
}

func (e invalidPayloadError) Unwrap() error {
	return e.err
}

func ErrInvalidPayload(err error) error {
	return invalidPayloadError{err: err}
}
