// Package api error types for transfer backend responses.
package api

import (
	"errors"
	"fmt"
	nethttp "net/http"
	"strings"
)

// ErrUnauthorized matches any StatusError carrying 401 or 403, so callers can
// tell a missing or expired login apart from a bad bucket name.
var ErrUnauthorized = errors.New("unauthorized")

// maxErrorBody caps how much of a rejected response body is kept.
const maxErrorBody = 512

// StatusError is returned for every non-2xx response.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s failed: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s failed: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Is reports whether target is ErrUnauthorized and the status is 401 or 403.
func (e *StatusError) Is(target error) bool {
	if target != ErrUnauthorized {
		return false
	}
	return e.StatusCode == nethttp.StatusUnauthorized || e.StatusCode == nethttp.StatusForbidden
}

// StatusCode returns the HTTP status carried by err, or 0 when err is not a
// StatusError.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

func newStatusError(op string, status int, body []byte) *StatusError {
	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody] + "..."
	}
	return &StatusError{Op: op, StatusCode: status, Body: text}
}
