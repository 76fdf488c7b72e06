// Package observability wires Prometheus instrumentation for the HTTP
// surface and the sync pipeline.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/profitlens/profitlens/internal/utils"
)

// Metrics owns the registry and the application's instruments. A nil
// *Metrics is a no-op everywhere, so wiring stays optional in tests.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	syncRuns        *prometheus.CounterVec
	syncedAmount    *prometheus.CounterVec
	reportRequests  prometheus.Counter
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "profitlens_http_requests_total",
		Help: "HTTP requests by path and status code.",
	}, []string{"path", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "profitlens_http_request_duration_seconds",
		Help:    "HTTP request duration by path.",
		Buckets: prometheus.DefBuckets,
	}, []string{"path"})
	syncRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "profitlens_sync_runs_total",
		Help: "Historical sync invocations by platform and outcome.",
	}, []string{"platform", "outcome"})
	syncedAmount := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "profitlens_synced_amount_total",
		Help: "Total ad spend reconciled into the ledger, by platform.",
	}, []string{"platform"})
	reportRequests := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "profitlens_report_requests_total",
		Help: "Profit report computations served.",
	})
	registry.MustRegister(requests, duration, syncRuns, syncedAmount, reportRequests)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		syncRuns:        syncRuns,
		syncedAmount:    syncedAmount,
		reportRequests:  reportRequests,
	}
}

// Handler serves the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request counts and latency.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &utils.StatusRecorder{ResponseWriter: w, Status: http.StatusOK}
		next.ServeHTTP(rec, r)
		m.requestsTotal.WithLabelValues(r.URL.Path, strconv.Itoa(rec.Status)).Inc()
		m.requestDuration.WithLabelValues(r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

// ObserveSync records one sync invocation.
func (m *Metrics) ObserveSync(platform, outcome string, amount float64) {
	if m == nil {
		return
	}
	m.syncRuns.WithLabelValues(platform, outcome).Inc()
	if amount > 0 {
		m.syncedAmount.WithLabelValues(platform).Add(amount)
	}
}

// ObserveReport records one served profit report.
func (m *Metrics) ObserveReport() {
	if m == nil {
		return
	}
	m.reportRequests.Inc()
}
