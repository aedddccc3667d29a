package types

import (
	"errors"
	"sort"
)

var (
	ErrNoParticipants   = errors.New("participant set is empty")
	ErrDupParticipant   = errors.New("duplicate participant")
	ErrInvalidThreshold = errors.New("threshold out of range")
)

// ConsensusThreshold 返回n个参与者达成共识所需的最少人数 ceil((2n+1)/3)
func ConsensusThreshold(n int) int {
	if n <= 0 {
		return 0
	}
	return (2*n + 1 + 2) / 3
}

// Quorum 描述一组参与者以及确认一轮所需的payload数量
type Quorum struct {
	participants []Address
	index        map[string]int
	threshold    int
}

// NewQuorum builds a quorum over the participants. A threshold of zero selects
// the default byzantine threshold.
func NewQuorum(participants []Address, threshold int) (*Quorum, error) {
	if len(participants) == 0 {
		return nil, ErrNoParticipants
	}
	sorted := make([]Address, len(participants))
	copy(sorted, participants)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].String() < sorted[j].String() })

	index := make(map[string]int, len(sorted))
	for i, addr := range sorted {
		if _, exist := index[addr.String()]; exist {
			return nil, ErrDupParticipant
		}
		index[addr.String()] = i
	}

	if threshold == 0 {
		threshold = ConsensusThreshold(len(sorted))
	}
	if threshold < 1 || threshold > len(sorted) {
		return nil, ErrInvalidThreshold
	}

	return &Quorum{
		participants: sorted,
		index:        index,
		threshold:    threshold,
	}, nil
}

func (q *Quorum) Threshold() int {
	return q.threshold
}

func (q *Quorum) Size() int {
	return len(q.participants)
}

func (q *Quorum) IsParticipant(addr Address) bool {
	_, exist := q.index[addr.String()]
	return exist
}

func (q *Quorum) Participants() []Address {
	out := make([]Address, len(q.participants))
	copy(out, q.participants)
	return out
}
