package types

import "fmt"

// RoundID identifies one round of the application FSM.
type RoundID string

func (r RoundID) String() string {
	return string(r)
}

// RoundKey 一次轮次激活的唯一标识
// 同一个round可能在不同period被重复激活（重试），因此需要period区分
type RoundKey struct {
	Period Period  `json:"period"`
	Round  RoundID `json:"round"`
}

func (k RoundKey) String() string {
	return fmt.Sprintf("%v/%v", k.Period, k.Round)
}
