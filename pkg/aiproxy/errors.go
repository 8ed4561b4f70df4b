package aiproxy

import (
	"errors"
	"fmt"
)

var (
	// ErrRateLimitExceeded marks requests rejected by the per-user window.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrUnsupportedProvider marks provider tags with no routing entry.
	ErrUnsupportedProvider = errors.New("unsupported AI provider")

	// ErrNotImplemented marks providers with a routing entry but no call
	// strategy yet.
	ErrNotImplemented = errors.New("provider integration not implemented")
)

// RateLimitError carries the rejected request's identity.
type RateLimitError struct {
	UserID   string
	Provider string
	Limit    int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s: %d requests per window", e.Provider, e.Limit)
}

func (e *RateLimitError) Unwrap() error {
	return ErrRateLimitExceeded
}

// ProviderError wraps a failed live provider call.
type ProviderError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s API error: %d", e.Provider, e.StatusCode)
	}

	return fmt.Sprintf("%s request failed: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
