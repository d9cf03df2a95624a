package common

import (
	"errors"
	"fmt"

	"warden/apperr"
)

// BotError pairs a user-facing message with the internal error that caused
// it. The dispatcher shows Message to the invoker and logs Internal.
type BotError struct {
	Message  string
	Internal error
}

func (e *BotError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}
	return e.Message
}

func (e *BotError) Unwrap() error {
	return e.Internal
}

// NewBotError creates a user-visible error wrapping an internal cause
func NewBotError(message string, internal error) *BotError {
	return &BotError{Message: message, Internal: internal}
}

// UserMessage extracts the message to show the invoker for any error
func UserMessage(err error) string {
	var be *BotError
	if errors.As(err, &be) {
		return be.Message
	}
	return apperr.UserMessage(err)
}
