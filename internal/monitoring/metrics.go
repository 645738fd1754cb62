// Package monitoring exposes Prometheus metrics for the catchment API and
// the analysis operations behind it.
package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"

	"github.com/sells-group/catchment-cli/internal/catchment"
)

// Metrics bundles the collectors registered for one server.
type Metrics struct {
	gatherer prometheus.Gatherer

	Requests  *prometheus.CounterVec
	Durations *prometheus.HistogramVec

	Classified   prometheus.Counter
	Unclassified prometheus.Counter

	Solves        *prometheus.CounterVec
	SolveDuration prometheus.Histogram
}

// New registers the metrics against reg. A nil reg gets a fresh registry so
// tests and multiple servers never collide.
func New(reg *prometheus.Registry) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		gatherer: reg,
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catchment_http_requests_total",
			Help: "Handled HTTP requests by method, route pattern and status code.",
		}, []string{"method", "route", "code"}),
		Durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "catchment_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"method", "route"}),
		Classified: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "catchment_points_classified_total",
			Help: "Points credited to a service area ring.",
		}),
		Unclassified: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "catchment_points_unclassified_total",
			Help: "Points outside every service area ring.",
		}),
		Solves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catchment_solves_total",
			Help: "Service area solves by outcome.",
		}, []string{"outcome"}),
		SolveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "catchment_solve_duration_seconds",
			Help:    "Service area solve latency in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
	}

	for _, c := range []prometheus.Collector{
		m.Requests, m.Durations, m.Classified, m.Unclassified, m.Solves, m.SolveDuration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, eris.Wrap(err, "monitoring: register collector")
		}
	}
	return m, nil
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency per chi route pattern.
// Unmatched routes are labeled "unmatched" to keep cardinality bounded.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.Requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.Durations.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// ObserveStats adds a calculation's classified and unclassified point counts.
func (m *Metrics) ObserveStats(stats *catchment.Stats) {
	if m == nil || stats == nil {
		return
	}
	for _, g := range stats.Groups {
		in := g.Total()
		m.Classified.Add(float64(in))
		m.Unclassified.Add(float64(g.Points - in))
	}
}

// ObserveSolve records one solve attempt.
func (m *Metrics) ObserveSolve(elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.Solves.WithLabelValues(outcome).Inc()
	m.SolveDuration.Observe(elapsed.Seconds())
}
