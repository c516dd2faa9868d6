// Package errors defines the error taxonomy consumed across the creature
// server: preflight failures surfaced synchronously to callers, distinguished
// by Kind so handlers can map them to the right response without string
// matching.
package errors

import "fmt"

// Kind classifies a ServerError into one of the three categories the core
// ever returns synchronously (see spec §7 — everything after the first event
// enqueue is converted to telemetry, never returned as an error).
type Kind string

const (
	// NotFound means a referenced resource (audio file, animation, creature)
	// does not exist.
	NotFound Kind = "not_found"
	// InvalidData means the input was found but fails a format or shape
	// invariant (wrong channel count, empty track list, ms_per_frame not a
	// multiple of the tick period).
	InvalidData Kind = "invalid_data"
	// InternalError means a dependency the core relies on (encoder,
	// RTP transport, configuration) is broken or misconfigured.
	InternalError Kind = "internal_error"
)

// ServerError is the error type every preflight failure path returns.
type ServerError struct {
	Kind    Kind
	Message string
	cause   error
}

func New(kind Kind, message string) *ServerError {
	return &ServerError{Kind: kind, Message: message}
}

func Wrap(kind Kind, cause error, message string) *ServerError {
	return &ServerError{Kind: kind, Message: message, cause: cause}
}

func (e *ServerError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ServerError) Unwrap() error {
	return e.cause
}

// Is reports whether target is a *ServerError with the same Kind, enabling
// errors.Is(err, errors.New(NotFound, "")) style checks against a sentinel.
func (e *ServerError) Is(target error) bool {
	t, ok := target.(*ServerError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func IsNotFound(err error) bool      { return hasKind(err, NotFound) }
func IsInvalidData(err error) bool   { return hasKind(err, InvalidData) }
func IsInternalError(err error) bool { return hasKind(err, InternalError) }

func hasKind(err error, k Kind) bool {
	se, ok := err.(*ServerError)
	return ok && se.Kind == k
}
