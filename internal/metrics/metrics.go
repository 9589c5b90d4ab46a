package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors of the grading service. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	reg prometheus.Gatherer

	AttemptsStarted   prometheus.Counter
	AttemptsSubmitted prometheus.Counter
	GradingWarnings   *prometheus.CounterVec
	Recalculations    prometheus.Counter

	RequestCounter  *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		reg: reg,
		AttemptsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quiz_attempts_started_total",
			Help: "Attempts created (resumes excluded)",
		}),
		AttemptsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quiz_attempts_submitted_total",
			Help: "Attempts moved from in_progress to submitted",
		}),
		GradingWarnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_grading_warnings_total",
			Help: "Data-quality warnings raised while grading",
		}, []string{"source"}),
		Recalculations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quiz_score_recalculations_total",
			Help: "Score reconciliations executed",
		}),
		RequestCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		}, []string{"method", "route"}),
	}
	reg.MustRegister(
		m.AttemptsStarted, m.AttemptsSubmitted, m.GradingWarnings, m.Recalculations,
		m.RequestCounter, m.RequestDuration,
		collectors.NewGoCollector(),
	)
	return m
}

func (m *Metrics) Started() {
	if m != nil {
		m.AttemptsStarted.Inc()
	}
}

func (m *Metrics) Submitted() {
	if m != nil {
		m.AttemptsSubmitted.Inc()
	}
}

func (m *Metrics) Recalculated() {
	if m != nil {
		m.Recalculations.Inc()
	}
}

// Warnings counts n data-quality warnings from source (autograde, reconcile).
func (m *Metrics) Warnings(source string, n int) {
	if m != nil && n > 0 {
		m.GradingWarnings.WithLabelValues(source).Add(float64(n))
	}
}

// Middleware records request count and latency by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.RequestCounter.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
