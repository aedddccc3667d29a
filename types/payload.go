package types

import (
	"encoding/hex"
	"errors"
	"fmt"
	"github.com/tendermint/tendermint/crypto/tmhash"
)

var (
	ErrEmptySender  = errors.New("payload has no sender")
	ErrEmptyRound   = errors.New("payload has no round")
	ErrNilPayload   = errors.New("payload is nil")
	ErrUnknownKind  = errors.New("unknown payload kind")
	ErrPeriodBehind = errors.New("payload period is negative")
)

// PayloadKind 一个round只接受一种payload
type PayloadKind string

// Payload - 某个参与者在某一轮提出的待共识数据
// 每个参与者在每一轮只能有一个有效payload
type Payload interface {
	Kind() PayloadKind
	Sender() Address
	Round() RoundID
	Period() Period

	// Content 返回不包含sender的轮次数据编码，内容相同的payload视为同一个提议
	Content() ([]byte, error)

	ValidateBasic() error
}

// BasePayload carries the sender attribution shared by every payload.
type BasePayload struct {
	SenderAddr Address `json:"sender"`
	RoundID    RoundID `json:"round"`
	PeriodNum  Period  `json:"period"`
}

func NewBasePayload(sender Address, round RoundID, period Period) BasePayload {
	return BasePayload{
		SenderAddr: sender,
		RoundID:    round,
		PeriodNum:  period,
	}
}

func (bp BasePayload) Sender() Address {
	return bp.SenderAddr
}

func (bp BasePayload) Round() RoundID {
	return bp.RoundID
}

func (bp BasePayload) Period() Period {
	return bp.PeriodNum
}

func (bp BasePayload) Key() RoundKey {
	return RoundKey{Period: bp.PeriodNum, Round: bp.RoundID}
}

func (bp BasePayload) ValidateBasic() error {
	if bp.SenderAddr.IsEmpty() {
		return ErrEmptySender
	}
	if bp.RoundID == "" {
		return ErrEmptyRound
	}
	if bp.PeriodNum < PeriodZero {
		return ErrPeriodBehind
	}
	return nil
}

// PayloadKey returns the (period, round) the payload was proposed for.
func PayloadKey(p Payload) RoundKey {
	return RoundKey{Period: p.Period(), Round: p.Round()}
}

// ContentHash 返回payload内容的hash，用于统计相同提议的数量
func ContentHash(p Payload) (string, error) {
	if p == nil {
		return "", ErrNilPayload
	}
	content, err := p.Content()
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(tmhash.Sum(append([]byte(p.Kind()+":"), content...))), nil
}

// SamePayload 判断两个payload是否是同一个sender对同一轮的相同提议
func SamePayload(a, b Payload) bool {
	if a == nil || b == nil {
		return false
	}
	if !a.Sender().Equal(b.Sender()) || PayloadKey(a) != PayloadKey(b) || a.Kind() != b.Kind() {
		return false
	}
	ha, err := ContentHash(a)
	if err != nil {
		return false
	}
	hb, err := ContentHash(b)
	if err != nil {
		return false
	}
	return ha == hb
}

func PayloadString(p Payload) string {
	if p == nil {
		return "<nil>"
	}
	return fmt.Sprintf("[%v %v/%v from %v]", p.Kind(), p.Period(), p.Round(), p.Sender())
}
