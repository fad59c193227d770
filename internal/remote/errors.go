package remote

import (
	"errors"
	"fmt"
)

var (
	// ErrNoToken is returned when the identity provider has no bearer token;
	// the attempted call is aborted before touching the network
	ErrNoToken = errors.New("remote: no token available")

	// ErrNotFound is returned when the record no longer exists server-side
	ErrNotFound = errors.New("remote: not found")
)

// APIError is a rejection carried inside the response envelope or a non-2xx
// status. Transient for callers: the next attempt may succeed.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote: request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("remote: %s (status %d)", e.Message, e.StatusCode)
}

// IsRetryable reports whether err is worth retrying: transport failures and
// server-side errors, but not client mistakes or missing records.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNoToken) || errors.Is(err, ErrNotFound) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 0 || apiErr.StatusCode >= 500
	}
	// Plain transport errors (connection refused, timeouts) are retryable.
	return true
}
