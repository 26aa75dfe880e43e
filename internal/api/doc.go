// Package api implements the HTTP REST API and WebSocket event stream for
// the relay.
//
// Routes:
//
//	GET    /health                 liveness plus store and device status
//	GET    /metrics                Prometheus exposition (when enabled)
//	GET    /signals                stored signal names
//	GET    /signals/{name}         one signal
//	POST   /signals/{name}         create; 409 if the name is taken
//	PUT    /signals/{name}         update; 404 if absent
//	DELETE /signals/{name}         delete
//	POST   /signals/{name}/send    forward to the device
//	GET    /device/messages        last signal captured by the device
//	GET    /audit                  change and send history (when enabled)
//	GET    /ws                     WebSocket; subscribe to "signal.sent"
//
// Every failure is a JSON Error body carrying the HTTP status, a stable
// code and a message naming the signal or cause.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
