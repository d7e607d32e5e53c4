package polygon

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrMalformedResponse is wrapped when a response body cannot be decoded.
var ErrMalformedResponse = errors.New("malformed response")

// APIError is a non-success answer from the API.
type APIError struct {
	StatusCode int
	Status     string // "status" field of the body, e.g. ERROR / NOT_AUTHORIZED
	Message    string
	RequestID  string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Status != "" {
		return fmt.Sprintf("polygon: status %d (%s): %s", e.StatusCode, e.Status, msg)
	}
	return fmt.Sprintf("polygon: status %d: %s", e.StatusCode, msg)
}

// IsAuth reports an authentication or entitlement failure.
func (e *APIError) IsAuth() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden || e.Status == "NOT_AUTHORIZED"
}

// IsRateLimited reports a 429.
func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}
