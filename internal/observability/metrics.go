package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the application.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	domainActions   *prometheus.CounterVec
	jobRuns         *prometheus.CounterVec
	alertsEmitted   *prometheus.CounterVec
}

// NewMetrics initializes the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tapiceria_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tapiceria_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	actions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tapiceria_domain_actions_total",
		Help: "Ledger mutations by audited action.",
	}, []string{"action"})
	jobs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tapiceria_jobs_total",
		Help: "Background job runs by task and outcome.",
	}, []string{"task", "status"})
	alerts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tapiceria_alerts_emitted_total",
		Help: "Alerts produced by digest scans, by priority.",
	}, []string{"priority"})
	registry.MustRegister(requests, duration, actions, jobs, alerts)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		domainActions:   actions,
		jobRuns:         jobs,
		alertsEmitted:   alerts,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// CountAction increments the domain mutation counter.
func (m *Metrics) CountAction(action string) {
	if m == nil {
		return
	}
	m.domainActions.WithLabelValues(action).Inc()
}

// CountJobRun increments the background job counter.
func (m *Metrics) CountJobRun(task, status string) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(task, status).Inc()
}

// CountAlerts increments the emitted alert counter.
func (m *Metrics) CountAlerts(priority string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.alertsEmitted.WithLabelValues(priority).Add(float64(n))
}

// Registerer exposes the registry for custom metric registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
