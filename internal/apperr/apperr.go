// Package apperr defines the closed set of error kinds used across the
// service. Callers branch on kind (via IsKind) instead of matching on
// error strings or concrete types from lower layers.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error into one of the failure categories the
// service distinguishes.
type Kind int

const (
	// Configuration: missing or unreadable resource (keystore path,
	// storage directory). Fatal to the operation, not retried.
	Configuration Kind = iota + 1
	// Credential: bad keystore password or corrupt keystore.
	Credential
	// Security: path escapes the storage boundary, or a token fails
	// integrity or scope checks.
	Security
	// NotFound: the requested file is absent.
	NotFound
	// IO: transient disk or filesystem failure.
	IO
)

func (k Kind) String() string {
	switch k {
	case Configuration:
		return "configuration"
	case Credential:
		return "credential"
	case Security:
		return "security"
	case NotFound:
		return "not_found"
	case IO:
		return "io"
	default:
		return "unknown"
	}
}

// Error carries a kind, a safe message, and an optional wrapped cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an error of the given kind with a static message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf returns an error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap returns an error of the given kind wrapping a cause.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf returns the kind of err, or 0 if err carries no kind.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsKind reports whether err (or any error it wraps) has the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
