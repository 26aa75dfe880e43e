package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/remo-relay/internal/metrics"
)

// healthCheckTimeout bounds the store check made by /health.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)
	if s.metrics != nil {
		r.Use(metrics.HTTPMiddleware(s.metrics))
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, "method not allowed")
	})

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/signals", func(r chi.Router) {
		r.Get("/", s.handleListSignals)

		r.Route("/{name}", func(r chi.Router) {
			r.Get("/", s.handleGetSignal)
			r.Post("/", s.handleCreateSignal)
			r.Put("/", s.handleUpdateSignal)
			r.Delete("/", s.handleDeleteSignal)
			r.Post("/send", s.handleSendSignal)
		})
	})

	r.Get("/device/messages", s.handleDeviceMessages)

	if s.audit != nil {
		r.Get("/audit", s.handleListAuditLogs)
	}

	r.Get("/ws", s.handleWebSocket)

	return r
}

// handleHealth returns the server health status.
// A failing store turns the response into 503 "degraded".
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":            "ok",
		"version":           s.version,
		"device_configured": s.signals.RelayConfigured(),
		"ws_clients":        s.hub.ClientCount(),
	}

	if s.store == nil {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	if err := s.store.HealthCheck(ctx); err != nil {
		s.logger.Warn("store health check failed", "error", err)
		resp["status"] = "degraded"
		resp["store"] = "unavailable"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	resp["store"] = "ok"
	if version, err := s.store.SchemaVersion(ctx); err == nil {
		resp["schema_version"] = version
	}
	writeJSON(w, http.StatusOK, resp)
}
