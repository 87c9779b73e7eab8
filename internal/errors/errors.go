package errors

import (
	"errors"
	"fmt"
)

// Type categorizes an error so long-running loops can decide whether to
// retry, skip the record, or abort the subsystem and checkpoint.
type Type int

const (
	// TypeConfig - missing or invalid configuration; always fatal at startup.
	TypeConfig Type = iota
	// TypeValidation - malformed input data; skip the record, count it.
	TypeValidation
	// TypeDatabase - store connection or query failure.
	TypeDatabase
	// TypeNetwork - transient network failure; retried by the API client.
	TypeNetwork
	// TypeExternal - external service failure after retries were exhausted.
	TypeExternal
	// TypeAuth - persistent API auth failure; abort the subsystem.
	TypeAuth
	// TypeInternal - unexpected internal state.
	TypeInternal
)

// Error carries a type and an optional cause. Loops inspect the type to map
// the error onto a handling policy; everything else treats it as a plain
// error.
type Error struct {
	Type    Type
	Message string
	Cause   error
	Fatal   bool
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches on type so callers can use errors.Is with sentinel instances.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// New creates an error of the given type.
func New(t Type, message string) *Error {
	return &Error{Type: t, Message: message, Fatal: t == TypeConfig || t == TypeAuth}
}

// Newf creates a formatted error of the given type.
func Newf(t Type, format string, args ...interface{}) *Error {
	return New(t, fmt.Sprintf(format, args...))
}

// Wrap attaches a type to an existing error. Returns nil for a nil cause.
func Wrap(err error, t Type, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Type: t, Message: message, Cause: err, Fatal: t == TypeConfig || t == TypeAuth}
}

// Wrapf attaches a type with a formatted message.
func Wrapf(err error, t Type, format string, args ...interface{}) *Error {
	return Wrap(err, t, fmt.Sprintf(format, args...))
}

// ConfigError creates a fatal configuration error.
func ConfigError(format string, args ...interface{}) *Error {
	return Newf(TypeConfig, format, args...)
}

// ValidationError creates a skippable input error.
func ValidationError(format string, args ...interface{}) *Error {
	return Newf(TypeValidation, format, args...)
}

// DatabaseError wraps a store failure.
func DatabaseError(err error, message string) *Error {
	return Wrap(err, TypeDatabase, message)
}

// AuthError wraps a persistent API auth failure.
func AuthError(err error, message string) *Error {
	return Wrap(err, TypeAuth, message)
}

// ExternalError wraps an external service failure.
func ExternalError(err error, message string) *Error {
	return Wrap(err, TypeExternal, message)
}

// IsFatal reports whether the error should abort the current subsystem.
func IsFatal(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Fatal
	}
	return false
}

// GetType returns the error's type, defaulting to TypeInternal for plain
// errors.
func GetType(err error) Type {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return TypeInternal
}
