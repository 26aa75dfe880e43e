package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/remo-relay/internal/audit"
)

// auditLog queues an entry for a change made through the API.
// It does nothing when no audit writer is configured.
func (s *Server) auditLog(action, name string, details map[string]any) {
	if s.audit == nil {
		return
	}
	s.audit.Record(action, name, audit.SourceAPI, details)
}

// handleListAuditLogs returns a page of audit entries.
//
// Query parameters: action, name, source, limit (default 50, max 200), offset.
func (s *Server) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := audit.Filter{
		Action: q.Get("action"),
		Name:   q.Get("name"),
		Source: q.Get("source"),
	}

	for param, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		v := q.Get(param)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			writeBadRequest(w, param+" must be an integer")
			return
		}
		*dst = n
	}

	result, err := s.audit.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list audit logs", "error", err)
		writeInternalError(w, "failed to list audit logs")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
