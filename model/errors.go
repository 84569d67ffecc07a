package model

import (
	"errors"
	"fmt"
	"time"
)

// Kind is the closed set of failure classifications every core operation
// reports. The string form is stable and is asserted on by UI-layer
// callers, so values are never renamed once shipped.
type Kind string

const (
	KindConnectionFailed Kind = "ConnectionFailed"
	KindAuthFailed       Kind = "AuthFailed"
	KindTimeout          Kind = "Timeout"
	KindSessionNotFound  Kind = "SessionNotFound"
	KindDriverNotFound   Kind = "DriverNotFound"
	KindSyntaxError      Kind = "SyntaxError"
	KindExecutionError   Kind = "ExecutionError"
	KindTransactionError Kind = "TransactionError"
	KindNotSupported     Kind = "NotSupported"
	KindSshError         Kind = "SshError"
	KindInternal         Kind = "Internal"
	KindPolicyBlocked    Kind = "PolicyBlocked"
)

// CoreError is the one error type every core operation returns. Kind is
// the stable classification; Message is the human-readable reason shown
// in an envelope's error field.
type CoreError struct {
	Kind    Kind
	Message string
	Elapsed time.Duration // only meaningful for KindTimeout
	cause   error
}

func (e *CoreError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *CoreError) Unwrap() error { return e.cause }

// NewError builds a CoreError of the given kind.
func NewError(kind Kind, message string) *CoreError {
	return &CoreError{Kind: kind, Message: message}
}

// Wrap builds a CoreError of the given kind that wraps cause, preserving
// it for errors.Is/As.
func Wrap(kind Kind, message string, cause error) *CoreError {
	return &CoreError{Kind: kind, Message: message, cause: cause}
}

// NewTimeout builds a Timeout error carrying the elapsed budget, so
// callers can report how long a deadline-bound operation ran before it
// was cut off.
func NewTimeout(message string, elapsed time.Duration) *CoreError {
	return &CoreError{Kind: KindTimeout, Message: message, Elapsed: elapsed}
}

// KindOf extracts the Kind of err if it is (or wraps) a *CoreError,
// otherwise KindInternal — every unclassified failure is an invariant
// violation by definition.
func KindOf(err error) Kind {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindInternal
}

// IsKind reports whether err classifies as kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
