package amocrm

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a non-2xx response from the CRM. Rate-limited and server-side
// failures are retryable; other client errors are hard failures.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("amocrm: api status %d: %s", e.StatusCode, e.Body)
}

// RateLimited reports whether the CRM asked the caller to back off.
func (e *APIError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// Retryable reports whether retrying the call can succeed.
func (e *APIError) Retryable() bool {
	return e.RateLimited() || e.StatusCode >= http.StatusInternalServerError
}

// IsRetryable reports whether err is a transient CRM failure. Transport-level
// failures (timeouts, connection resets) count as transient.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return err != nil
}
