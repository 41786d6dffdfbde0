// Package errors provides typed errors for the history store.
//
// Storage failures are reported as *HistoryError values carrying a closed
// Kind so callers can branch on the failure category instead of parsing
// messages. All error types implement the standard error interface and
// support errors.Is() and errors.As() from the standard library and
// cockroachdb/errors.
package errors

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Kind classifies a storage failure.
type Kind int

const (
	// KindBackend is a failed database operation, including constraint violations.
	KindBackend Kind = iota + 1
	// KindNotFound means the addressed item does not exist.
	KindNotFound
	// KindSerialization means the extensible payload could not be encoded or decoded.
	KindSerialization
	// KindIO means a directory or file could not be created or opened.
	KindIO
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindBackend:
		return "backend"
	case KindNotFound:
		return "not found"
	case KindSerialization:
		return "serialization"
	case KindIO:
		return "io"
	default:
		return "unknown"
	}
}

// HistoryError represents a failed history store operation.
type HistoryError struct {
	Kind      Kind
	Operation string // e.g., "save", "load", "search"
	Message   string
	Retryable bool // set for transient lock contention
	Cause     error
}

// Error implements the error interface.
func (e *HistoryError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("history %s failed (%s): %s", e.Operation, e.Kind, e.Message)
	}
	return fmt.Sprintf("history error (%s): %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *HistoryError) Unwrap() error {
	return e.Cause
}

// NewNotFoundError creates a HistoryError of kind KindNotFound.
func NewNotFoundError(operation, message string) *HistoryError {
	return &HistoryError{Kind: KindNotFound, Operation: operation, Message: message}
}

// NewSerializationError creates a HistoryError of kind KindSerialization.
func NewSerializationError(operation, message string, cause error) *HistoryError {
	return &HistoryError{Kind: KindSerialization, Operation: operation, Message: message, Cause: cause}
}

// NewIOError creates a HistoryError of kind KindIO.
func NewIOError(operation, message string, cause error) *HistoryError {
	return &HistoryError{Kind: KindIO, Operation: operation, Message: message, Cause: cause}
}

// NewBackendError creates a HistoryError of kind KindBackend.
func NewBackendError(operation, message string, cause error) *HistoryError {
	return &HistoryError{Kind: KindBackend, Operation: operation, Message: message, Cause: cause}
}

// WithRetryable marks whether repeating the operation may succeed.
func (e *HistoryError) WithRetryable(retryable bool) *HistoryError {
	e.Retryable = retryable
	return e
}

// ConfigError represents configuration-related errors.
type ConfigError struct {
	Field   string // Which config field has the issue
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error in %s: %s", e.Field, e.Message)
	}
	return "config error: " + e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// NewConfigErrorWithCause creates a new ConfigError with an underlying cause.
func NewConfigErrorWithCause(field, message string, cause error) *ConfigError {
	return &ConfigError{Field: field, Message: message, Cause: cause}
}

// KindOf returns the Kind of the first HistoryError in err's chain, or 0
// when there is none.
func KindOf(err error) Kind {
	var hErr *HistoryError
	if errors.As(err, &hErr) {
		return hErr.Kind
	}
	return 0
}

// IsRetryable checks if an error or any error in its chain is retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var hErr *HistoryError
	if errors.As(err, &hErr) {
		return hErr.Retryable
	}

	return false
}

// IsNotFound checks if an error or any error in its chain is a not-found HistoryError.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// IsSerialization checks if an error or any error in its chain is a serialization HistoryError.
func IsSerialization(err error) bool {
	return KindOf(err) == KindSerialization
}

// IsIO checks if an error or any error in its chain is an IO HistoryError.
func IsIO(err error) bool {
	return KindOf(err) == KindIO
}

// IsBackend checks if an error or any error in its chain is a backend HistoryError.
func IsBackend(err error) bool {
	return KindOf(err) == KindBackend
}

// IsConfigError checks if an error or any error in its chain is a ConfigError.
func IsConfigError(err error) bool {
	var configErr *ConfigError
	return errors.As(err, &configErr)
}

// Re-export commonly used functions from cockroachdb/errors for convenience.
// This allows consumers to use histerrors.Wrap() instead of importing two packages.
var (
	// New creates a new error with the given message.
	New = errors.New

	// Newf creates a new error with formatted message.
	Newf = errors.Newf

	// Wrap wraps an error with additional context.
	Wrap = errors.Wrap

	// Wrapf wraps an error with formatted additional context.
	Wrapf = errors.Wrapf

	// Is reports whether any error in err's chain matches target.
	Is = errors.Is

	// As finds the first error in err's chain that matches target.
	As = errors.As

	// Cause returns the root cause of an error.
	Cause = errors.Cause
)
