// Package monerr defines the engine's error taxonomy: a single typed error
// carrying a stable kind, a human-readable message, and an optional
// offending-field hint, so callers never see internal stack traces.
package monerr

import "fmt"

// Kind is a stable, machine-checkable error category.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindNotFound      Kind = "not-found"
	KindConflict      Kind = "conflict"
	KindResourceLimit Kind = "resource-limit"
	KindIO            Kind = "io"
	KindIntegrity     Kind = "integrity"
	KindTimeout       Kind = "timeout"
)

// Error is the engine's public error type. It wraps an optional cause but
// never exposes it through Error() — callers get Kind, Message and Field.
type Error struct {
	Kind    Kind
	Message string
	Field   string
	Err     error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field: %s)", e.Kind, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	return e.Kind == kind
}

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *Error { return newf(KindValidation, format, args...) }
func NotFound(format string, args ...any) *Error   { return newf(KindNotFound, format, args...) }
func Conflict(format string, args ...any) *Error   { return newf(KindConflict, format, args...) }
func ResourceLimit(format string, args ...any) *Error {
	return newf(KindResourceLimit, format, args...)
}
func IO(format string, args ...any) *Error        { return newf(KindIO, format, args...) }
func Integrity(format string, args ...any) *Error { return newf(KindIntegrity, format, args...) }
func Timeout(format string, args ...any) *Error   { return newf(KindTimeout, format, args...) }

// WithField sets the offending-field hint and returns e for chaining.
func (e *Error) WithField(field string) *Error {
	e.Field = field
	return e
}

// Wrap sets the wrapped cause and returns e for chaining.
func (e *Error) Wrap(err error) *Error {
	e.Err = err
	return e
}
