// Package metrics exposes Prometheus counters for manifest parsing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the parser counters. A nil *Metrics records nothing.
type Metrics struct {
	registry                *prometheus.Registry
	parsesTotal             *prometheus.CounterVec
	warningsTotal           prometheus.Counter
	forcedProtectionsTotal  prometheus.Counter
	resourceRequestsTotal   *prometheus.CounterVec
	droppedAdaptationsTotal prometheus.Counter
	httpRequestsTotal       prometheus.Counter
	httpErrorsTotal         prometheus.Counter
}

// New creates and registers the counters on a private registry
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		parsesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mpd_parses_total",
			Help: "Manifest parses by outcome (done, needs_resources, error)",
		}, []string{"outcome"}),
		warningsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mpd_parse_warnings_total",
			Help: "Non fatal issues met while parsing",
		}),
		forcedProtectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mpd_content_protections_forced_total",
			Help: "ContentProtection references force-resolved at finalization",
		}),
		resourceRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mpd_resource_requests_total",
			Help: "External resources requested by the parser, by type",
		}, []string{"type"}),
		droppedAdaptationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mpd_adaptations_dropped_total",
			Help: "AdaptationSets dropped because their type could not be inferred",
		}),
		httpRequestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mpd_http_requests_total",
			Help: "HTTP requests served",
		}),
		httpErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mpd_http_errors_total",
			Help: "HTTP responses with a 4xx or 5xx status",
		}),
	}

	registry.MustRegister(
		m.parsesTotal,
		m.warningsTotal,
		m.forcedProtectionsTotal,
		m.resourceRequestsTotal,
		m.droppedAdaptationsTotal,
		m.httpRequestsTotal,
		m.httpErrorsTotal,
	)
	return m
}

// IncParses counts one parse step with its outcome
func (m *Metrics) IncParses(outcome string) {
	if m == nil {
		return
	}
	m.parsesTotal.WithLabelValues(outcome).Inc()
}

// AddWarnings adds n parse warnings
func (m *Metrics) AddWarnings(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.warningsTotal.Add(float64(n))
}

// IncForcedProtections counts a forced content-protection resolution
func (m *Metrics) IncForcedProtections() {
	if m == nil {
		return
	}
	m.forcedProtectionsTotal.Inc()
}

// IncResourceRequests counts one requested resource
func (m *Metrics) IncResourceRequests(resourceType string) {
	if m == nil {
		return
	}
	m.resourceRequestsTotal.WithLabelValues(resourceType).Inc()
}

// IncDroppedAdaptations counts one dropped AdaptationSet
func (m *Metrics) IncDroppedAdaptations() {
	if m == nil {
		return
	}
	m.droppedAdaptationsTotal.Inc()
}

// Registry exposes the underlying registry, mostly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// RequestMiddleware counts requests and error responses, chi compatible
func RequestMiddleware(m *Metrics) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			if m == nil {
				return
			}
			m.httpRequestsTotal.Inc()
			if rec.status >= 400 {
				m.httpErrorsTotal.Inc()
			}
		})
	}
}
