// Package apperr defines the error-kind taxonomy shared by the Persistence
// Gateway, Fairness Oracle, Round Engine, Wager Arbiter and Request
// Front-End (spec §7).
package apperr

import (
	"errors"
	"fmt"
)

// Kind is one of the error kinds enumerated in spec §7.
type Kind string

const (
	Unauthenticated     Kind = "UNAUTHENTICATED"
	PermissionDenied    Kind = "PERMISSION_DENIED"
	InvalidArgument     Kind = "INVALID_ARGUMENT"
	FailedPrecondition  Kind = "FAILED_PRECONDITION"
	AlreadyExists       Kind = "ALREADY_EXISTS"
	NotFound            Kind = "NOT_FOUND"
	InsufficientFunds   Kind = "INSUFFICIENT_FUNDS"
	DailyLimitExceeded  Kind = "DAILY_LIMIT_EXCEEDED"
	ResourceExhausted   Kind = "RESOURCE_EXHAUSTED"
	DeadlineExceeded    Kind = "DEADLINE_EXCEEDED"
	Internal            Kind = "INTERNAL"
	DegradedConsistency Kind = "DEGRADED_CONSISTENCY"
)

// HTTPStatus returns the status code the Request Front-End should respond
// with for a given kind (spec §6).
func (k Kind) HTTPStatus() int {
	switch k {
	case Unauthenticated:
		return 401
	case PermissionDenied:
		return 403
	case InvalidArgument:
		return 400
	case FailedPrecondition:
		return 400
	case AlreadyExists:
		return 409
	case NotFound:
		return 404
	case InsufficientFunds:
		return 409
	case DailyLimitExceeded:
		return 409
	case ResourceExhausted:
		return 429
	case DeadlineExceeded:
		return 504
	case DegradedConsistency:
		return 500
	default:
		return 500
	}
}

// Error wraps a Kind with an operator/client-safe message and optional
// validation details.
type Error struct {
	Kind    Kind
	Message string
	Details []string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf builds an Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying cause, preserving it for
// logs while keeping Message client-safe.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// WithDetails attaches validation detail strings and returns the receiver.
func (e *Error) WithDetails(details ...string) *Error {
	e.Details = append(e.Details, details...)
	return e
}

// KindOf extracts the Kind from err, defaulting to Internal for unrecognised
// errors so callers never leak a raw error kind downstream.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return Internal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
