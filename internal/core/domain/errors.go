package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	// An unknown document slug is an error; a (document, space) pair
	// with no stored chunks is an empty result, not an error.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConfiguration indicates invalid configuration, such as a chunk
	// overlap that meets or exceeds the chunk size, or missing provider
	// credentials. Fatal at startup or first call; never retried.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrStorage indicates a durable-store read or write failure.
	ErrStorage = errors.New("storage failure")

	// ErrProviderUnavailable indicates no embedding provider is
	// configured for the requested embedding space.
	ErrProviderUnavailable = errors.New("embedding provider unavailable")

	// ErrDimensionMismatch indicates a vector's length does not match
	// the embedding space's fixed dimensionality.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// ProviderError wraps a failure from an external embedding or LLM
// provider. Retryable distinguishes transient failures (timeout, rate
// limit) from permanent ones (auth, malformed input); callers own the
// retry policy, this type only reports the distinction.
type ProviderError struct {
	// Provider is the provider's human-readable identity.
	Provider string

	// Retryable is true for transient failures.
	Retryable bool

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	kind := "permanent"
	if e.Retryable {
		kind = "retryable"
	}
	return fmt.Sprintf("%s: %s provider error: %v", e.Provider, kind, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError wraps err as a provider failure.
func NewProviderError(provider string, retryable bool, err error) *ProviderError {
	return &ProviderError{Provider: provider, Retryable: retryable, Err: err}
}

// IsRetryable reports whether err is a provider error marked retryable.
func IsRetryable(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Retryable
}
