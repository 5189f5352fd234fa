package registry

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoTrials indicates the registry returned no studies for the query.
// Callers treat this as an empty result, not a failure.
var ErrNoTrials = errors.New("registry: no trials found")

// APIError is a non-retryable failure from the registry API.
type APIError struct {
	Message    string
	StatusCode int
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("registry: %s (status %d)", e.Message, e.StatusCode)
	}
	return "registry: " + e.Message
}

// RateLimitError reports a 429 from the registry with the server's
// requested wait.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("registry: rate limited, retry after %s", e.RetryAfter)
}

// RetryAfterOf extracts the server-mandated wait from an error chain, or 0.
func RetryAfterOf(err error) time.Duration {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return rle.RetryAfter
	}
	return 0
}
