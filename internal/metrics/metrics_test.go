package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	dto "github.com/prometheus/client_model/go"

	"github.com/nerrad567/remo-relay/internal/signal"
)

func findFamily(t *testing.T, reg *Registry, name string) *dto.MetricFamily {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

func TestHTTPMiddleware_UsesRoutePattern(t *testing.T) {
	reg := NewRegistry()

	r := chi.NewRouter()
	r.Use(HTTPMiddleware(reg))
	r.Get("/signals/{name}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	req := httptest.NewRequest(http.MethodGet, "/signals/tv-power", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	mf := findFamily(t, reg, "http_requests_total")
	if mf == nil {
		t.Fatal("expected http_requests_total to be recorded")
	}
	m := mf.GetMetric()[0]
	if got := labelValue(m, "path"); got != "/signals/{name}" {
		t.Errorf("path label = %q, want /signals/{name}", got)
	}
	if got := labelValue(m, "status"); got != "4xx" {
		t.Errorf("status label = %q, want 4xx", got)
	}
}

func TestHTTPMiddleware_UnmatchedPath(t *testing.T) {
	reg := NewRegistry()

	handler := HTTPMiddleware(reg)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/anything/at/all", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	mf := findFamily(t, reg, "http_request_duration_seconds")
	if mf == nil {
		t.Fatal("expected http_request_duration_seconds to be recorded")
	}
	if got := labelValue(mf.GetMetric()[0], "path"); got != unmatchedPath {
		t.Errorf("path label = %q, want %q", got, unmatchedPath)
	}
}

func TestRegistry_SignalSent(t *testing.T) {
	reg := NewRegistry()

	reg.SignalSent(signal.SendEvent{Name: "tv", Duration: 20 * time.Millisecond})
	reg.SignalSent(signal.SendEvent{Name: "tv", Duration: time.Second, Err: errors.New("refused")})
	reg.SignalSent(signal.SendEvent{Name: "fan", Duration: 30 * time.Millisecond})

	mf := findFamily(t, reg, "remorelay_signal_sends_total")
	if mf == nil {
		t.Fatal("expected remorelay_signal_sends_total")
	}
	counts := map[string]float64{}
	for _, m := range mf.GetMetric() {
		counts[labelValue(m, "result")] = m.GetCounter().GetValue()
	}
	if counts["ok"] != 2 || counts["error"] != 1 {
		t.Errorf("send counts = %v, want ok=2 error=1", counts)
	}

	hist := findFamily(t, reg, "remorelay_signal_send_duration_seconds")
	if hist == nil || hist.GetMetric()[0].GetHistogram().GetSampleCount() != 3 {
		t.Error("expected 3 send duration samples")
	}
}

func TestRegistry_Handler(t *testing.T) {
	reg := NewRegistry()
	reg.SetRelayConfigured(true)

	w := httptest.NewRecorder()
	reg.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "remorelay_relay_configured 1") {
		t.Error("expected remorelay_relay_configured 1 in exposition output")
	}
}

func TestStatusToString(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{100, "1xx"},
		{204, "2xx"},
		{304, "3xx"},
		{409, "4xx"},
		{503, "5xx"},
	}
	for _, tt := range tests {
		if got := statusToString(tt.status); got != tt.want {
			t.Errorf("statusToString(%d) = %q, want %q", tt.status, got, tt.want)
		}
	}
}
