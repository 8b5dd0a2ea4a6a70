// Package apmaserr gives the error taxonomy from spec §7 first-class Kind
// values so callers can distinguish e.g. NotFound from InvalidState without
// parsing error strings. No third-party taxonomy/wrapping library in the
// retrieval pack is actually imported by its owning packages (kubernaut's
// go.mod carries go-faster/errors only transitively, via ogen) so this is a
// deliberately small stdlib `errors` construct — see DESIGN.md.
package apmaserr

import (
	"errors"
	"fmt"
)

// Kind is one of the error categories named in spec §7.
type Kind string

const (
	KindNotFound           Kind = "not_found"
	KindInvalidState       Kind = "invalid_state"
	KindConfigError        Kind = "config_error"
	KindStorageError       Kind = "storage_error"
	KindTransportError     Kind = "transport_error"
	KindProtocolError      Kind = "protocol_error"
	KindValidationError    Kind = "validation_error"
	KindTimeoutError       Kind = "timeout_error"
	KindRetryableSpawn     Kind = "retryable_spawn_error"
	KindFatalSpawn         Kind = "fatal_spawn_error"
)

// Error wraps an underlying cause with a taxonomy Kind.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New creates an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an Error of the given kind around an existing cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Is reports whether err (or anything it wraps) has the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// NotFound, InvalidState, etc. are convenience constructors used throughout
// the supervisor, store, and tool handlers.
func NotFound(format string, args ...interface{}) *Error {
	return New(KindNotFound, fmt.Sprintf(format, args...))
}

func InvalidState(format string, args ...interface{}) *Error {
	return New(KindInvalidState, fmt.Sprintf(format, args...))
}

func ConfigError(format string, args ...interface{}) *Error {
	return New(KindConfigError, fmt.Sprintf(format, args...))
}

func Validation(format string, args ...interface{}) *Error {
	return New(KindValidationError, fmt.Sprintf(format, args...))
}

func Storage(cause error, format string, args ...interface{}) *Error {
	return Wrap(KindStorageError, fmt.Sprintf(format, args...), cause)
}
