package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ResolverMetrics tracks metrics for credential resolution.
//
// Metrics:
//   - callisto_resolver_lookups_total: Lookup count by kind and result
//   - callisto_resolver_lookup_duration_seconds: Lookup latency histogram
type ResolverMetrics struct {
	lookupsTotal *prometheus.CounterVec

	lookupDuration *prometheus.HistogramVec
}

// NewResolverMetrics creates and registers resolver metrics with the provided registry.
func NewResolverMetrics(registry *prometheus.Registry) *ResolverMetrics {
	rm := &ResolverMetrics{
		lookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "callisto",
				Subsystem: "resolver",
				Name:      "lookups_total",
				Help:      "Total number of credential lookups",
			},
			[]string{"kind", "result"},
		),

		lookupDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "callisto",
				Subsystem: "resolver",
				Name:      "lookup_duration_seconds",
				Help:      "Duration of credential lookups in seconds",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
			},
			[]string{"kind"},
		),
	}

	registry.MustRegister(
		rm.lookupsTotal,
		rm.lookupDuration,
	)

	return rm
}

// RecordLookup records a credential resolution attempt.
func (rm *ResolverMetrics) RecordLookup(kind, result string, duration time.Duration) {
	rm.lookupsTotal.WithLabelValues(kind, result).Inc()
	rm.lookupDuration.WithLabelValues(kind).Observe(duration.Seconds())
}
