package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/nerrad567/remo-relay/internal/signal"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest         = "bad_request"
	ErrCodeNotFound           = "not_found"
	ErrCodeConflict           = "conflict"
	ErrCodeInternal           = "internal_error"
	ErrCodeValidation         = "validation_error"
	ErrCodeServiceUnavailable = "service_unavailable"
	ErrCodeMethodNotAllow     = "method_not_allowed"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeSignalError maps a signal service error onto a status and code.
// Store failures are logged and reported without detail.
func (s *Server) writeSignalError(w http.ResponseWriter, r *http.Request, name string, err error) {
	switch {
	case errors.Is(err, signal.ErrInvalidSignal), errors.Is(err, signal.ErrInvalidName):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, signal.ErrSignalNotFound):
		writeNotFound(w, fmt.Sprintf("signal %q not found", name))
	case errors.Is(err, signal.ErrSignalExists):
		writeError(w, http.StatusConflict, ErrCodeConflict, fmt.Sprintf("signal %q already exists", name))
	case errors.Is(err, signal.ErrRelayUnavailable):
		writeError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "device address is not configured")
	case errors.Is(err, signal.ErrRelayFailed):
		writeInternalError(w, err.Error())
	default:
		s.logger.Error("signal request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", r.Context().Value(ctxKeyRequestID),
			"error", err,
		)
		writeInternalError(w, "internal server error")
	}
}
