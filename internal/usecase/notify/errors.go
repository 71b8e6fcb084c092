package notify

import (
	"errors"
	"fmt"
)

// Sentinel errors for notify use case operations.
var (
	// ErrInvalidMessage wraps the entity validation error of a rejected message.
	ErrInvalidMessage = errors.New("invalid message")

	// ErrNoAdapter indicates that no adapter is registered for a channel type.
	ErrNoAdapter = errors.New("no adapter registered for channel type")

	// ErrHistoryWrite indicates that at least one delivery result could not be
	// recorded. Send still returns the complete report alongside it.
	ErrHistoryWrite = errors.New("record delivery history")

	// ErrInvalidConfig is returned by Config.Validate.
	ErrInvalidConfig = errors.New("invalid notify configuration")
)

// panicError carries a value recovered from a panicking adapter.
type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("adapter panicked: %v", e.value)
}
