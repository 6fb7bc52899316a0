package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the service.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	commitsTotal    *prometheus.CounterVec
	commitRows      *prometheus.CounterVec
	commitDuration  *prometheus.HistogramVec
}

// NewMetrics initialises the registry and the base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pricedesk_http_requests_total",
		Help: "HTTP requests by route and status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pricedesk_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	commits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pricedesk_bulk_commits_total",
		Help: "Bulk commits by table and outcome.",
	}, []string{"table", "outcome"})
	rows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pricedesk_bulk_commit_rows_total",
		Help: "Rows covered by bulk commits by table and outcome.",
	}, []string{"table", "outcome"})
	commitDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pricedesk_bulk_commit_duration_seconds",
		Help:    "Bulk commit duration per table.",
		Buckets: prometheus.DefBuckets,
	}, []string{"table"})
	registry.MustRegister(requests, duration, commits, rows, commitDuration)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		commitsTotal:    commits,
		commitRows:      rows,
		commitDuration:  commitDuration,
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

// ObserveCommit records one finished bulk commit.
func (m *Metrics) ObserveCommit(table, outcome string, rows int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.commitsTotal.WithLabelValues(table, outcome).Inc()
	m.commitRows.WithLabelValues(table, outcome).Add(float64(rows))
	m.commitDuration.WithLabelValues(table).Observe(elapsed.Seconds())
}

// Registerer exposes the registry for custom metrics.
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
