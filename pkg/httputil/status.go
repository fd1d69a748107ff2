package httputil

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound is returned for 404 responses.
	ErrNotFound = errors.New("resource not found")

	// ErrNetwork is returned for HTTP failures (connection errors, non-2xx responses).
	ErrNetwork = errors.New("network error")

	// ErrTimeout is returned when a request exceeds its deadline.
	ErrTimeout = errors.New("request timed out")

	// ErrTooLarge is returned when a body exceeds the caller's limit.
	ErrTooLarge = errors.New("response body too large")
)

// CheckStatus classifies an HTTP status code. 2xx is success, 404 is
// [ErrNotFound], 5xx is a retryable [ErrNetwork], everything else is a
// non-retryable [ErrNetwork].
func CheckStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code >= 500:
		return Retryable(fmt.Errorf("%w: status %d", ErrNetwork, code))
	default:
		return fmt.Errorf("%w: status %d", ErrNetwork, code)
	}
}
