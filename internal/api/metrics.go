package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects request and loan-tracker metrics in a private registry.
type Metrics struct {
	registry      *prometheus.Registry
	reqTotal      *prometheus.CounterVec
	reqLatency    *prometheus.HistogramVec
	unitsAdded    *prometheus.CounterVec
	loansCreated  prometheus.Counter
	loansReturned prometheus.Counter
}

// NewMetrics creates a Metrics with its own registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		reqTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests.",
		}, []string{"method", "route", "status"}),
		reqLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		unitsAdded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "teamdesk_units_added_total",
			Help: "Equipment units added to the inventory.",
		}, []string{"type"}),
		loansCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "teamdesk_loans_created_total",
			Help: "Loans opened.",
		}),
		loansReturned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "teamdesk_loans_returned_total",
			Help: "Loans returned.",
		}),
	}
	m.registry.MustRegister(m.reqTotal, m.reqLatency, m.unitsAdded, m.loansCreated, m.loansReturned)
	return m
}

// Middleware records count and latency per matched route.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		// ServeMux sets Pattern on the request it routes.
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(rec.status)
		m.reqTotal.WithLabelValues(r.Method, route, status).Inc()
		m.reqLatency.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) unitAdded(typ string, n int) {
	if m != nil {
		m.unitsAdded.WithLabelValues(typ).Add(float64(n))
	}
}

func (m *Metrics) loanCreated() {
	if m != nil {
		m.loansCreated.Inc()
	}
}

func (m *Metrics) loanReturned() {
	if m != nil {
		m.loansReturned.Inc()
	}
}
