package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"medi/connect/internal/emergency"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_http_requests_total",
			Help: "Total number of HTTP requests received by the API.",
		},
		[]string{"route", "method", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_http_request_duration_seconds",
			Help:    "Duration of HTTP requests handled by the API.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method", "status"},
	)

	resourcesGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "api_ambulances",
			Help: "Ambulances per availability.",
		},
		[]string{"availability"},
	)

	requestsGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "api_emergency_requests",
			Help: "Tracked emergency requests per status.",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDurationSeconds,
		resourcesGauge,
		requestsGauge,
	)
}

// metricsMiddleware records basic request metrics for Prometheus (RPS and latency).
func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		durationSeconds := time.Since(start).Seconds()
		status := strconv.Itoa(ww.Status())
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		httpRequestsTotal.WithLabelValues(route, r.Method, status).Inc()
		httpRequestDurationSeconds.WithLabelValues(route, r.Method, status).Observe(durationSeconds)
	})
}

// runMetricsSync refreshes the fleet and request gauges until ctx is done.
func (s *Server) runMetricsSync(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.syncGauges()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.syncGauges()
		}
	}
}

func (s *Server) syncGauges() {
	for availability, n := range s.dispatcher.FleetCounts() {
		resourcesGauge.WithLabelValues(string(availability)).Set(float64(n))
	}

	counts := map[emergency.Status]int{
		emergency.StatusRequested:  0,
		emergency.StatusDispatched: 0,
		emergency.StatusEnRoute:    0,
		emergency.StatusArrived:    0,
		emergency.StatusCompleted:  0,
		emergency.StatusCancelled:  0,
	}
	for _, req := range s.dispatcher.List() {
		counts[req.Status]++
	}
	for status, n := range counts {
		requestsGauge.WithLabelValues(string(status)).Set(float64(n))
	}
}
