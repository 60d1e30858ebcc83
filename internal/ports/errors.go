package ports

import (
	"errors"
	"fmt"
	"time"
)

// Common infrastructure errors that can occur while talking to a text
// generation backend.
var (
	// ErrRateLimited indicates that the backend rate limited the request.
	ErrRateLimited = errors.New("rate limited")

	// ErrServiceUnavailable indicates that the backend is unreachable or
	// returned a server-side failure.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrTimeout indicates that a generation call timed out.
	ErrTimeout = errors.New("operation timed out")

	// ErrInvalidResponse indicates that the backend returned a response the
	// client could not use (empty body, no choices, malformed stream).
	ErrInvalidResponse = errors.New("invalid response")

	// ErrAuthenticationFailed indicates that authentication with the
	// backend failed.
	ErrAuthenticationFailed = errors.New("authentication failed")
)

// GeneratorError represents a failure from a text-generation backend.
// It carries enough context to classify the failure for retry decisions
// and telemetry.
type GeneratorError struct {
	// Model identifies the backend model involved in the failed call.
	Model string

	// Operation names the call that failed.
	Operation string

	// Err is the underlying error.
	Err error

	// RetryAfter indicates how long to wait before retrying, when the
	// backend supplied one.
	RetryAfter *time.Duration
}

// Error implements the error interface for GeneratorError.
func (e *GeneratorError) Error() string {
	msg := fmt.Sprintf("generator error: model=%s, operation=%s, err=%v", e.Model, e.Operation, e.Err)
	if e.RetryAfter != nil {
		msg += fmt.Sprintf(", retry_after=%v", *e.RetryAfter)
	}
	return msg
}

// Unwrap returns the underlying error, supporting errors.Is/As chains.
func (e *GeneratorError) Unwrap() error { return e.Err }

// IsRetryable returns true when the failure is transient and the call can
// be retried. Logic errors and authentication failures are not retryable.
func (e *GeneratorError) IsRetryable() bool {
	return errors.Is(e.Err, ErrRateLimited) ||
		errors.Is(e.Err, ErrServiceUnavailable) ||
		errors.Is(e.Err, ErrTimeout)
}

// NewGeneratorError creates a GeneratorError with the given details.
func NewGeneratorError(model, operation string, err error) *GeneratorError {
	return &GeneratorError{
		Model:     model,
		Operation: operation,
		Err:       err,
	}
}
