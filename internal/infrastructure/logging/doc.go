// Package logging provides structured logging for remo-relay.
//
// It wraps log/slog so every component logs through one handler with the
// same default fields (service, version).
//
// Logging is configured via the logging section of config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("signal sent", "name", name)
package logging
