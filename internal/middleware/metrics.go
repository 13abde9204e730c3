package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// httpMetrics holds Prometheus metrics for served requests.
type httpMetrics struct {
	requestsTotal     *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	requestsInFlight  prometheus.Gauge
	rateLimitRejected prometheus.Counter
}

var (
	httpMetricsInstance *httpMetrics
	httpMetricsOnce     sync.Once
)

// getHTTPMetrics returns the singleton HTTP metrics instance.
func getHTTPMetrics() *httpMetrics {
	httpMetricsOnce.Do(func() {
		httpMetricsInstance = &httpMetrics{
			requestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "nitro",
					Subsystem: "http",
					Name:      "requests_total",
					Help:      "Total number of HTTP requests by method and status",
				},
				[]string{"method", "status"},
			),
			requestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: "nitro",
					Subsystem: "http",
					Name:      "request_duration_seconds",
					Help:      "HTTP request duration in seconds",
					Buckets:   prometheus.DefBuckets,
				},
				[]string{"method"},
			),
			requestsInFlight: promauto.NewGauge(
				prometheus.GaugeOpts{
					Namespace: "nitro",
					Subsystem: "http",
					Name:      "requests_in_flight",
					Help:      "Number of HTTP requests currently being served",
				},
			),
			rateLimitRejected: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "nitro",
					Subsystem: "http",
					Name:      "rate_limit_rejected_total",
					Help:      "Total number of requests rejected by the rate limiter",
				},
			),
		}
	})
	return httpMetricsInstance
}

// Metrics returns a middleware that records request count, duration and
// in-flight gauge.
func Metrics() func(http.Handler) http.Handler {
	m := getHTTPMetrics()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			m.requestsInFlight.Inc()
			defer m.requestsInFlight.Dec()

			rw := &responseWriter{
				ResponseWriter: w,
				status:         http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			m.requestsTotal.WithLabelValues(r.Method, strconv.Itoa(rw.status)).Inc()
			m.requestDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
		})
	}
}
