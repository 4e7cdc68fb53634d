// Package errors defines the error taxonomy shared across the core: the
// interpreter, evaluators, matchers, finder and miner all report failures
// through a LodaError so callers can branch on Kind without string matching.
package errors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies a failure the way spec section 7 does.
type Kind string

const (
	// RuntimeLimit means a step/memory/time bound was exceeded during
	// interpretation. Recoverable at the miner loop boundary.
	RuntimeLimit Kind = "RuntimeLimit"
	// InvalidProgram means static validation failed (unbalanced loops, bad
	// operand arity, negative cell index).
	InvalidProgram Kind = "InvalidProgram"
	// ParseError means the textual form could not be parsed.
	ParseError Kind = "ParseError"
	// IOError means a file was missing, a fetch failed, or a b-file was
	// corrupt.
	IOError Kind = "IOError"
	// LockContention means a folder lock could not be acquired.
	LockContention Kind = "LockContention"
	// Internal means an invariant was violated (malformed cached state).
	Internal Kind = "Internal"
)

// LodaError wraps an underlying cause with a Kind and an optional message.
type LodaError struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *LodaError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap lets errors.Is / errors.As reach the wrapped cause.
func (e *LodaError) Unwrap() error { return e.cause }

// New creates a LodaError of the given kind with a formatted message.
func New(kind Kind, format string, args ...interface{}) *LodaError {
	return &LodaError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a Kind and message to an existing error, preserving the
// original as the cause (via github.com/pkg/errors so callers can still
// recover a stack trace with errors.Cause for Internal-kind bugs).
func Wrap(kind Kind, cause error, format string, args ...interface{}) *LodaError {
	return &LodaError{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		cause:   errors.Wrap(cause, string(kind)),
	}
}

// KindOf returns the Kind of err if it is (or wraps) a *LodaError, else "".
func KindOf(err error) Kind {
	var le *LodaError
	if errors.As(err, &le) {
		return le.Kind
	}
	return ""
}

// Is reports whether err is a LodaError of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
