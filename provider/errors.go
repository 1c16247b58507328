package provider

import (
	"errors"
	"fmt"
)

// Sentinel errors for provider operations.
var (
	// ErrUnknownProvider indicates the requested family is not registered.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrUnknownAgent indicates the agent name is not in the registry.
	ErrUnknownAgent = errors.New("unknown agent")

	// ErrUnknownModel indicates the model identifier is absent from (or
	// ambiguous across) the provider configuration tables.
	ErrUnknownModel = errors.New("unknown model")

	// ErrProviderUnavailable indicates the family was never configured,
	// usually because its credential is missing.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrQuotaExceeded indicates the lifetime token ceiling was breached.
	// It is fatal: every subsequent admission fails with it.
	ErrQuotaExceeded = errors.New("lifetime token quota exceeded")

	// ErrModelNotPulled indicates a local model could not be fetched,
	// including the one retry with the version tag stripped.
	ErrModelNotPulled = errors.New("model not pulled")
)

// Error wraps provider errors with context.
type Error struct {
	Provider  string // Family name ("ollama", "mistral")
	Op        string // Operation that failed ("chat", "stream", "pull")
	Err       error  // Underlying error
	Retryable bool   // Whether the error is likely transient
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new provider error.
func NewError(provider, op string, err error, retryable bool) *Error {
	return &Error{
		Provider:  provider,
		Op:        op,
		Err:       err,
		Retryable: retryable,
	}
}

// IsRetryable checks if an error is likely transient and worth retrying.
// Resolution and quota errors are never retryable.
func IsRetryable(err error) bool {
	var provErr *Error
	if errors.As(err, &provErr) {
		return provErr.Retryable
	}
	return false
}

// IsFatal checks if an error permanently poisons further calls for the
// process lifetime, as opposed to failing only the current request.
func IsFatal(err error) bool {
	return errors.Is(err, ErrQuotaExceeded)
}
