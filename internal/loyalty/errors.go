package loyalty

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured is returned when no provider token was configured
	ErrNotConfigured = errors.New("loyalty provider token is not configured")
	// ErrNotFound is returned when no customer in the program has the email
	ErrNotFound = errors.New("customer has no digital card installed")
	// ErrEmailRequired is returned when Resolve is called without an email
	ErrEmailRequired = errors.New("customer email is required")
)

// TransportError wraps a network or timeout failure talking to the provider
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport error: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// StatusError is returned for a non-2xx provider response
type StatusError struct {
	Op   string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected HTTP status %d", e.Op, e.Code)
}

// DecodeError is returned when a 2xx provider response is not the expected shape
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: malformed response: %v", e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
