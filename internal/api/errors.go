package api

import (
	"errors"
	"fmt"
)

// ErrUnauthorized is returned for any 401 response. Callers send the user to
// the login page instead of retrying.
var ErrUnauthorized = errors.New("unauthorized: session expired")

// StatusError is a non-2xx response from the backend.
type StatusError struct {
	Code    int
	Status  string
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("API error: %s: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("API error: %s", e.Status)
}
