package signal

import "errors"

// Domain errors for the signal package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, signal.ErrSignalNotFound) {
//	    // handle not found case
//	}
var (
	// ErrSignalNotFound is returned when no record exists for a name.
	ErrSignalNotFound = errors.New("signal: not found")

	// ErrSignalExists is returned when creating a record whose name is taken.
	ErrSignalExists = errors.New("signal: already exists")

	// ErrInvalidSignal is returned when signal validation fails.
	ErrInvalidSignal = errors.New("signal: invalid")

	// ErrInvalidName is returned when a record name is empty, too long or
	// contains a slash.
	ErrInvalidName = errors.New("signal: invalid name")

	// ErrRelayUnavailable is returned by Send when no device address is configured.
	ErrRelayUnavailable = errors.New("signal: relay not configured")

	// ErrRelayFailed wraps transport errors returned by the relay.
	ErrRelayFailed = errors.New("signal: relay failed")
)
