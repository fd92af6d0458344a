// Package observability exposes Prometheus metrics for source resolution and
// the HTTP surface.
package observability

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce sync.Once

	tierAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "interview",
			Subsystem: "sources",
			Name:      "attempts_total",
			Help:      "Source tier attempts by outcome.",
		},
		[]string{"tier", "outcome"},
	)
	resolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "interview",
			Subsystem: "sources",
			Name:      "resolutions_total",
			Help:      "Resolved queries by surface and answering tier.",
		},
		[]string{"surface", "tier"},
	)
	resolutionCost = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "interview",
			Subsystem: "sources",
			Name:      "resolution_cost_units",
			Help:      "Cost units spent per resolution.",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 25, 38},
		},
		[]string{"surface"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "interview",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "interview",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(tierAttempts, resolutions, resolutionCost, httpRequests, httpDuration)
	})
}

// Recorder feeds resolution telemetry into the registered metrics.
type Recorder struct{}

func NewRecorder() Recorder {
	RegisterMetrics()
	return Recorder{}
}

func (Recorder) RecordAttempt(tier, outcome string) {
	tierAttempts.WithLabelValues(tier, outcome).Inc()
}

func (Recorder) RecordResolution(surface, tier string, costUnits int) {
	resolutions.WithLabelValues(surface, tier).Inc()
	resolutionCost.WithLabelValues(surface).Observe(float64(costUnits))
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

// RequestMetrics records each request under its chi route pattern.
func RequestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		RecordHTTPRequest(r.Method, path, status, time.Since(start))
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	RegisterMetrics()
	return promhttp.Handler()
}
