package influxdb

import "errors"

// Sentinel errors. Write failures are reported asynchronously through
// SetOnError rather than returned.
var (
	ErrNotConnected     = errors.New("influxdb: not connected")
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrDisabled is returned by Connect when send history is switched off.
	ErrDisabled = errors.New("influxdb: disabled in configuration")
)
