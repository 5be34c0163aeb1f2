package transport

import (
	"errors"
	"fmt"
	"net/http"
)

var ErrBodyTooLarge = errors.New("response body exceeds limit")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s", e.Code, http.StatusText(e.Code))
}

// RateLimited reports whether the status signals throttling.
func (e *StatusError) RateLimited() bool {
	return e.Code == http.StatusTooManyRequests || e.Code == http.StatusServiceUnavailable
}

// Error is the terminal failure of a fetch after retries were exhausted or a
// non-retryable condition was hit.
type Error struct {
	Term     string
	URL      string
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fetch %q failed after %d attempt(s): %s", e.Term, e.Attempts, e.Err.Error())
}

func (e *Error) Unwrap() error {
	return e.Err
}
