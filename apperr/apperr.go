package apperr

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies an error for dispatch and reply purposes. Values are
// stable strings and safe to persist or serialise.
type Kind string

const (
	KindBadArgument Kind = "bad_argument"
	KindForbidden   Kind = "forbidden"
	KindNotFound    Kind = "not_found"
	KindRateLimited Kind = "rate_limited"
	KindConflict    Kind = "conflict"
	KindTimeout     Kind = "timeout"
	KindTransport   Kind = "transport"
	KindInternal    Kind = "internal"
)

// Error is a classified error. Message is safe to show to the invoking user
// for every kind except KindInternal, which gets a generic reply.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error with a user-visible message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the kind from an error chain, defaulting to KindInternal
// for unclassified errors.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// UserMessage returns the message to surface to the invoking user.
func UserMessage(err error) string {
	var ae *Error
	if errors.As(err, &ae) && ae.Kind != KindInternal {
		return ae.Message
	}
	return "Something went wrong. Please try again later."
}

// Retryable reports whether the caller may retry the failed operation.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindConflict, KindTransport:
		return true
	}
	return false
}
