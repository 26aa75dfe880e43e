package remo

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured is returned when the client has no device address.
	ErrNotConfigured = errors.New("remo: device address not configured")

	// ErrTransport wraps every failure talking to the device: network
	// errors, non-2xx responses and undecodable bodies.
	ErrTransport = errors.New("remo: transport error")
)

// StatusError is returned when the device answers with a non-2xx status.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// Unwrap lets errors.Is match ErrTransport.
func (e *StatusError) Unwrap() error {
	return ErrTransport
}
