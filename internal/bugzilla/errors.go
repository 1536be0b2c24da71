package bugzilla

import (
	"fmt"
	"net/http"

	"github.com/bzmirror/bzmirror/internal/tracker"
)

// Bugzilla in-body error codes.
const (
	CodeInvalidBug   = 101 // Bug does not exist
	CodeAccessDenied = 102 // Bug exists but the caller may not see it
)

// APIError is a non-2xx response or an in-body error from Bugzilla.
type APIError struct {
	StatusCode int    // HTTP status
	Code       int    // Bugzilla error code, 0 when absent
	Endpoint   string // Request path, without credentials
	Message    string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Code != 0 {
		return fmt.Sprintf("bugzilla %s: %s (status %d, code %d)", e.Endpoint, msg, e.StatusCode, e.Code)
	}
	return fmt.Sprintf("bugzilla %s: %s (status %d)", e.Endpoint, msg, e.StatusCode)
}

// Is maps Bugzilla failures onto the tracker sentinels so callers can use errors.Is.
func (e *APIError) Is(target error) bool {
	switch target {
	case tracker.ErrRestricted:
		return e.Code == CodeAccessDenied || e.StatusCode == http.StatusUnauthorized
	case tracker.ErrNotFound:
		return e.Code == CodeInvalidBug || e.StatusCode == http.StatusNotFound
	}
	return false
}

// Retryable reports whether the failure is transient.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}
