// internal/errors/mapper.go
package errors

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// Kind classifies an error for branching at the service layer.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindInvalidArgument
	KindUnauthenticated
	KindUnavailable
	KindFailedPrecondition
	KindDeadlineExceeded
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalidArgument:
		return "invalid_argument"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindUnavailable:
		return "unavailable"
	case KindFailedPrecondition:
		return "failed_precondition"
	case KindDeadlineExceeded:
		return "deadline_exceeded"
	case KindCanceled:
		return "canceled"
	default:
		return "internal"
	}
}

// Error pairs a Kind with a message and an optional cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Map converts repo/infra errors into classified errors.
// Keeps the service layer clean by centralizing error mapping.
func Map(err error) error {
	if err == nil {
		return nil
	}

	var classified *Error
	if errors.As(err, &classified) {
		return err
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return &Error{Kind: KindNotFound, Msg: "record not found", Err: err}

	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindDeadlineExceeded, Msg: "request timed out", Err: err}

	case errors.Is(err, context.Canceled):
		return &Error{Kind: KindCanceled, Msg: "request was canceled", Err: err}

	default:
		return &Error{Kind: KindInternal, Msg: "internal error", Err: err}
	}
}

// KindOf extracts the Kind from err, falling back to KindInternal for
// unclassified errors and KindCanceled/KindDeadlineExceeded for context errors.
func KindOf(err error) Kind {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}
	switch {
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return KindDeadlineExceeded
	case errors.Is(err, gorm.ErrRecordNotFound):
		return KindNotFound
	}
	return KindInternal
}

// IsKind reports whether err classifies as k.
func IsKind(err error, k Kind) bool { return err != nil && KindOf(err) == k }

// InvalidArgument creates an invalid-argument error.
// Use this in the service layer for bad input validation.
func InvalidArgument(msg string) error {
	return &Error{Kind: KindInvalidArgument, Msg: msg}
}

// NotFound creates a not-found error.
func NotFound(msg string) error {
	return &Error{Kind: KindNotFound, Msg: msg}
}

// Unauthenticated creates a credential-failure error, wrapping the cause.
func Unauthenticated(msg string, cause error) error {
	return &Error{Kind: KindUnauthenticated, Msg: msg, Err: cause}
}

// Unavailable creates an upstream-unavailable error, wrapping the cause.
func Unavailable(msg string, cause error) error {
	return &Error{Kind: KindUnavailable, Msg: msg, Err: cause}
}

// FailedPrecondition creates a state-conflict error, e.g. a sync requested
// while another run for the same user is still processing.
func FailedPrecondition(msg string) error {
	return &Error{Kind: KindFailedPrecondition, Msg: msg}
}
