// Package remo is a client for the local HTTP API of a Nature Remo IR
// transceiver.
//
// The device exposes a single endpoint, /messages. POST transmits a
// signal and GET returns the last signal the device captured. Both require
// the X-Requested-With header; requests without it are rejected.
//
//	c := remo.New("192.168.1.40", remo.WithTimeout(10*time.Second))
//	if err := c.Send(ctx, sig); err != nil {
//	    var se *remo.StatusError
//	    if errors.As(err, &se) { ... }
//	}
//
// The client performs no retries. A Client built with an empty address is
// unconfigured and fails every call with ErrNotConfigured.
package remo
