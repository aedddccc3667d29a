package fsm

import (
	"fmt"
	"roundbft/types"
)

// ConfigurationError 配置错误不可恢复，启动时或第一次出现时直接暴露
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Reason)
}

func configErrorf(format string, args ...interface{}) error {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

// TransitionError is returned when a behaviour emits an event the transition
// table does not expect for a non-terminal round.
type TransitionError struct {
	Round types.RoundID
	Event types.Event
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("transition error: round %v has no transition for event %v", e.Round, e.Event)
}
