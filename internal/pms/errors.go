package pms

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnavailable covers transport failures, timeouts and 5xx responses.
	ErrUnavailable = errors.New("pms: upstream unavailable")
	// ErrNotFound is returned for 404 responses.
	ErrNotFound = errors.New("pms: not found")
	// ErrAlreadyCancelled is returned when cancelling an appointment the PMS
	// already reports as cancelled.
	ErrAlreadyCancelled = errors.New("pms: appointment already cancelled")
)

// APIError is a non-2xx response from the PMS.
type APIError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("pms: %s: API error (status %d): %s", e.Operation, e.StatusCode, e.Body)
}

// Unwrap lets errors.Is match ErrNotFound and ErrUnavailable on API errors.
func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case e.StatusCode >= 500, e.StatusCode == http.StatusTooManyRequests:
		return ErrUnavailable
	default:
		return nil
	}
}

// Rejected reports whether the PMS refused the request itself (a 4xx other
// than 404 and 429), as opposed to failing to answer it.
func (e *APIError) Rejected() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500 &&
		e.StatusCode != http.StatusNotFound && e.StatusCode != http.StatusTooManyRequests
}

// IsConflict reports whether err is a 409 from the PMS.
func IsConflict(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict
}
