package nitro

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type dispatchMetrics struct {
	dispatched *prometheus.CounterVec
	panics     prometheus.Counter
	fallbacks  prometheus.Counter
	timeouts   prometheus.Counter
}

var (
	dispatchMetricsOnce sync.Once
	dispatchMetricsInst *dispatchMetrics
)

// dispatchMetricsInstance returns the process-wide dispatch metrics,
// registering them on first use.
func dispatchMetricsInstance() *dispatchMetrics {
	dispatchMetricsOnce.Do(func() {
		dispatchMetricsInst = &dispatchMetrics{
			dispatched: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "nitro_dispatch_total",
				Help: "Total handler dispatches by mode.",
			}, []string{"mode"}),
			panics: promauto.NewCounter(prometheus.CounterOpts{
				Name: "nitro_dispatch_panics_total",
				Help: "Total handler invocations that panicked.",
			}),
			fallbacks: promauto.NewCounter(prometheus.CounterOpts{
				Name: "nitro_dispatch_fallback_responses_total",
				Help: "Total generic 500 responses sent after handler failure.",
			}),
			timeouts: promauto.NewCounter(prometheus.CounterOpts{
				Name: "nitro_dispatch_timeouts_total",
				Help: "Total requests whose handler never resolved the response in time.",
			}),
		}
	})
	return dispatchMetricsInst
}
