package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/remo-relay/internal/audit"
	"github.com/nerrad567/remo-relay/internal/signal"
)

// messageResponse is the body of successful create and update calls.
type messageResponse struct {
	Message string `json:"message"`
}

// handleListSignals returns every stored signal name.
func (s *Server) handleListSignals(w http.ResponseWriter, r *http.Request) {
	names, err := s.signals.ListNames(r.Context())
	if err != nil {
		s.writeSignalError(w, r, "", err)
		return
	}
	writeJSON(w, http.StatusOK, names)
}

// handleGetSignal returns one stored signal.
func (s *Server) handleGetSignal(w http.ResponseWriter, r *http.Request) {
	name, ok := signalName(w, r)
	if !ok {
		return
	}

	sig, err := s.signals.Get(r.Context(), name)
	if err != nil {
		s.writeSignalError(w, r, name, err)
		return
	}
	writeJSON(w, http.StatusOK, sig)
}

// handleCreateSignal stores a new signal; 409 if the name is taken.
func (s *Server) handleCreateSignal(w http.ResponseWriter, r *http.Request) {
	name, ok := signalName(w, r)
	if !ok {
		return
	}

	sig, ok := decodeSignal(w, r)
	if !ok {
		return
	}

	if err := s.signals.Create(r.Context(), name, sig); err != nil {
		s.writeSignalError(w, r, name, err)
		return
	}
	s.auditLog(audit.ActionCreate, name, map[string]any{"freq": sig.Frequency, "pulses": len(sig.Pulses)})
	writeJSON(w, http.StatusCreated, messageResponse{
		Message: fmt.Sprintf("signal %q created", name),
	})
}

// handleUpdateSignal overwrites an existing signal; 404 if absent.
func (s *Server) handleUpdateSignal(w http.ResponseWriter, r *http.Request) {
	name, ok := signalName(w, r)
	if !ok {
		return
	}

	sig, ok := decodeSignal(w, r)
	if !ok {
		return
	}

	if err := s.signals.Update(r.Context(), name, sig); err != nil {
		s.writeSignalError(w, r, name, err)
		return
	}
	s.auditLog(audit.ActionUpdate, name, map[string]any{"freq": sig.Frequency, "pulses": len(sig.Pulses)})
	writeJSON(w, http.StatusOK, messageResponse{
		Message: fmt.Sprintf("signal %q updated", name),
	})
}

// handleDeleteSignal removes a signal.
func (s *Server) handleDeleteSignal(w http.ResponseWriter, r *http.Request) {
	name, ok := signalName(w, r)
	if !ok {
		return
	}

	if err := s.signals.Delete(r.Context(), name); err != nil {
		s.writeSignalError(w, r, name, err)
		return
	}
	s.auditLog(audit.ActionDelete, name, nil)
	w.WriteHeader(http.StatusNoContent)
}

// handleSendSignal forwards a stored signal to the device.
func (s *Server) handleSendSignal(w http.ResponseWriter, r *http.Request) {
	name, ok := signalName(w, r)
	if !ok {
		return
	}

	if err := s.signals.Send(r.Context(), name); err != nil {
		s.writeSignalError(w, r, name, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDeviceMessages returns the signal the device captured last.
func (s *Server) handleDeviceMessages(w http.ResponseWriter, r *http.Request) {
	sig, err := s.signals.Receive(r.Context())
	if err != nil {
		s.writeSignalError(w, r, "", err)
		return
	}
	writeJSON(w, http.StatusOK, sig)
}

// signalName returns the {name} path segment. chi matches on the raw path
// when the request carries escapes it cannot represent in URL.Path (such
// as %2F), and only then is the segment still percent-encoded.
func signalName(w http.ResponseWriter, r *http.Request) (string, bool) {
	name := chi.URLParam(r, "name")
	if r.URL.RawPath == "" {
		return name, true
	}
	decoded, err := url.PathUnescape(name)
	if err != nil {
		writeBadRequest(w, "invalid signal name: "+err.Error())
		return "", false
	}
	return decoded, true
}

// decodeSignal reads a Signal body. Omitted fields take their defaults.
// The body must hold exactly one JSON object. On failure it writes a 4xx
// and returns false.
func decodeSignal(w http.ResponseWriter, r *http.Request) (signal.Signal, bool) {
	sig := signal.DefaultSignal()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&sig); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			writeBadRequest(w, "request body is required")
		case errors.As(err, &maxErr):
			writeError(w, http.StatusRequestEntityTooLarge, ErrCodeBadRequest, "request body too large")
		default:
			writeBadRequest(w, "invalid JSON: "+err.Error())
		}
		return signal.Signal{}, false
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		writeBadRequest(w, "invalid JSON: unexpected data after the signal object")
		return signal.Signal{}, false
	}
	return sig, true
}
