package router

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// cacheMetrics contains Prometheus metrics for the match result cache.
type cacheMetrics struct {
	hits      prometheus.Counter
	misses    prometheus.Counter
	evictions prometheus.Counter
	size      prometheus.Gauge
}

var (
	cacheMetricsInstance *cacheMetrics
	cacheMetricsOnce     sync.Once
)

// getCacheMetrics returns the singleton cache metrics instance.
func getCacheMetrics() *cacheMetrics {
	cacheMetricsOnce.Do(func() {
		cacheMetricsInstance = &cacheMetrics{
			hits: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "nitro",
					Subsystem: "router",
					Name:      "route_cache_hits_total",
					Help:      "Total number of route cache hits",
				},
			),
			misses: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "nitro",
					Subsystem: "router",
					Name:      "route_cache_misses_total",
					Help:      "Total number of route cache misses",
				},
			),
			evictions: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "nitro",
					Subsystem: "router",
					Name:      "route_cache_evictions_total",
					Help:      "Total number of route cache evictions",
				},
			),
			size: promauto.NewGauge(
				prometheus.GaugeOpts{
					Namespace: "nitro",
					Subsystem: "router",
					Name:      "route_cache_size",
					Help:      "Current number of entries in the route cache",
				},
			),
		}
	})
	return cacheMetricsInstance
}
