// Package metrics exports Prometheus counters for authentication and
// administrator lifecycle events.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sleepplanet"

// Metrics holds every collector the service exports. Each instance owns a
// private registry, so several can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	LoginTotal          *prometheus.CounterVec
	GuardDecisions      *prometheus.CounterVec
	AdminOperations     *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		LoginTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "login_total",
				Help:      "Login attempts by outcome",
			},
			[]string{"outcome"},
		),
		GuardDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "guard_decisions_total",
				Help:      "Authorization decisions on protected routes",
			},
			[]string{"state", "reason"},
		),
		AdminOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "admin_operations_total",
				Help:      "Administrator lifecycle operations by outcome",
			},
			[]string{"op", "outcome"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "status"},
		),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Login records a login attempt. outcome is "success", "failure" or "error".
func (m *Metrics) Login(outcome string) {
	if m == nil {
		return
	}
	m.LoginTotal.WithLabelValues(outcome).Inc()
}

// Guard records an authorization decision.
func (m *Metrics) Guard(state, reason string) {
	if m == nil {
		return
	}
	m.GuardDecisions.WithLabelValues(state, reason).Inc()
}

// AdminOp records the outcome of a lifecycle operation.
func (m *Metrics) AdminOp(op, outcome string) {
	if m == nil {
		return
	}
	m.AdminOperations.WithLabelValues(op, outcome).Inc()
}

// Middleware observes the duration of every request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.HTTPRequestDuration.WithLabelValues(r.Method, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}
