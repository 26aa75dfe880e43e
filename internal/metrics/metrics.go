// Package metrics exposes Prometheus metrics for the HTTP API and for
// signal sends.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/remo-relay/internal/signal"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	// HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Relay metrics
	sendsTotal      *prometheus.CounterVec
	sendDuration    prometheus.Histogram
	relayConfigured prometheus.Gauge
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently in flight",
			},
		),

		sendsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "remorelay_signal_sends_total",
				Help: "Total number of signals forwarded to the device",
			},
			[]string{"result"},
		),

		// Device round trips are LAN-local; most finish well under a second.
		sendDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "remorelay_signal_send_duration_seconds",
				Help:    "Device send round trip in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
		),

		relayConfigured: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "remorelay_relay_configured",
				Help: "1 when a device address is configured, 0 otherwise",
			},
		),
	}

	reg.MustRegister(r.httpRequestsTotal)
	reg.MustRegister(r.httpRequestDuration)
	reg.MustRegister(r.httpRequestsInFlight)
	reg.MustRegister(r.sendsTotal)
	reg.MustRegister(r.sendDuration)
	reg.MustRegister(r.relayConfigured)

	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.Registry, promhttp.HandlerOpts{Registry: r.Registry})
}

// RecordRequest records metrics for an HTTP request.
func (r *Registry) RecordRequest(method, path string, status int, duration float64) {
	r.httpRequestsTotal.WithLabelValues(method, path, statusToString(status)).Inc()
	r.httpRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// InFlightInc increments in-flight requests.
func (r *Registry) InFlightInc() {
	r.httpRequestsInFlight.Inc()
}

// InFlightDec decrements in-flight requests.
func (r *Registry) InFlightDec() {
	r.httpRequestsInFlight.Dec()
}

// SetRelayConfigured records whether sends can reach a device.
func (r *Registry) SetRelayConfigured(configured bool) {
	if configured {
		r.relayConfigured.Set(1)
		return
	}
	r.relayConfigured.Set(0)
}

// SignalSent implements signal.SendListener.
func (r *Registry) SignalSent(ev signal.SendEvent) {
	result := "ok"
	if !ev.OK() {
		result = "error"
	}
	r.sendsTotal.WithLabelValues(result).Inc()
	r.sendDuration.Observe(ev.Duration.Seconds())
}

func statusToString(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
