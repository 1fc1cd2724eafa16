package saltapi

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	// ErrAuthDenied is returned when salt-api rejects the credentials
	// or the token.
	ErrAuthDenied = errors.New("authentication denied")
	// ErrServerError is returned when salt-api fails to process a
	// request.
	ErrServerError = errors.New("server error")
	// ErrMalformedResponse is returned when a response does not have
	// the expected shape.
	ErrMalformedResponse = errors.New("unable to parse the server response")
	// ErrInvalidURL is returned for API URLs without an HTTP(S) scheme.
	ErrInvalidURL = errors.New("salt-api URL missing HTTP(S) protocol")
)

// HTTPError describes an unexpected HTTP status code.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected HTTP status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected HTTP status %d: %s", e.StatusCode, e.Body)
}
