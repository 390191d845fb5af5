package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated means no credential was available; no request was sent.
	ErrUnauthenticated = errors.New("no authentication token")
	ErrTimeout         = errors.New("request timeout")
)

// NetworkError wraps a failure to send a request or read its response.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (%d): %s", e.Status, e.Message)
}

// IsAuthRejected reports whether the server refused the credential.
func IsAuthRejected(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status == 401 || apiErr.Status == 403
}
