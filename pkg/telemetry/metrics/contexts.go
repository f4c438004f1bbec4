package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ContextMetrics tracks metrics for TLS context construction.
//
// Metrics:
//   - callisto_tls_context_builds_total: Build count by mode and status
//   - callisto_tls_context_build_duration_seconds: Build duration histogram
//   - callisto_tls_sni_requests_total: SNI callback lookups by result
type ContextMetrics struct {
	buildsTotal *prometheus.CounterVec

	buildDuration *prometheus.HistogramVec

	sniRequestsTotal *prometheus.CounterVec
}

// NewContextMetrics creates and registers context metrics with the provided registry.
func NewContextMetrics(registry *prometheus.Registry) *ContextMetrics {
	cm := &ContextMetrics{
		buildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "callisto",
				Subsystem: "tls",
				Name:      "context_builds_total",
				Help:      "Total number of TLS context builds",
			},
			[]string{"mode", "status"},
		),

		buildDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "callisto",
				Subsystem: "tls",
				Name:      "context_build_duration_seconds",
				Help:      "Duration of TLS context builds in seconds",
				Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"mode"},
		),

		sniRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "callisto",
				Subsystem: "tls",
				Name:      "sni_requests_total",
				Help:      "Total number of SNI certificate lookups",
			},
			[]string{"result"},
		),
	}

	registry.MustRegister(
		cm.buildsTotal,
		cm.buildDuration,
		cm.sniRequestsTotal,
	)

	return cm
}

// RecordBuild records a TLS context construction attempt.
func (cm *ContextMetrics) RecordBuild(mode, status string, duration time.Duration) {
	cm.buildsTotal.WithLabelValues(mode, status).Inc()
	cm.buildDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// RecordSNIRequest records a certificate lookup made by the SNI callback.
func (cm *ContextMetrics) RecordSNIRequest(result string) {
	cm.sniRequestsTotal.WithLabelValues(result).Inc()
}
