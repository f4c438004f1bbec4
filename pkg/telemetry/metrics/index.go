package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// IndexMetrics tracks metrics for certificate index builds.
//
// Metrics:
//   - callisto_certstore_index_builds_total: Build count by trigger
//   - callisto_certstore_index_build_duration_seconds: Build duration histogram
//   - callisto_certstore_indexed_certificates: Certificates in the current index
//   - callisto_certstore_indexed_identities: Identities in the current index
//   - callisto_certstore_skipped_files_total: Candidate files excluded, by reason
type IndexMetrics struct {
	buildsTotal *prometheus.CounterVec

	buildDuration prometheus.Histogram

	indexedCertificates prometheus.Gauge

	indexedIdentities prometheus.Gauge

	skippedTotal *prometheus.CounterVec
}

// NewIndexMetrics creates and registers index metrics with the provided registry.
func NewIndexMetrics(registry *prometheus.Registry) *IndexMetrics {
	im := &IndexMetrics{
		buildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "callisto",
				Subsystem: "certstore",
				Name:      "index_builds_total",
				Help:      "Total number of certificate index builds",
			},
			[]string{"trigger"},
		),

		buildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "callisto",
				Subsystem: "certstore",
				Name:      "index_build_duration_seconds",
				Help:      "Duration of certificate index builds in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
		),

		indexedCertificates: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "callisto",
				Subsystem: "certstore",
				Name:      "indexed_certificates",
				Help:      "Number of certificate files in the current index",
			},
		),

		indexedIdentities: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "callisto",
				Subsystem: "certstore",
				Name:      "indexed_identities",
				Help:      "Number of distinct identities in the current index",
			},
		),

		skippedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "callisto",
				Subsystem: "certstore",
				Name:      "skipped_files_total",
				Help:      "Total number of candidate files excluded from the index",
			},
			[]string{"reason"},
		),
	}

	registry.MustRegister(
		im.buildsTotal,
		im.buildDuration,
		im.indexedCertificates,
		im.indexedIdentities,
		im.skippedTotal,
	)

	return im
}

// RecordBuild records a completed index build.
func (im *IndexMetrics) RecordBuild(trigger string, duration time.Duration, certificates, identities int) {
	im.buildsTotal.WithLabelValues(trigger).Inc()
	im.buildDuration.Observe(duration.Seconds())
	im.indexedCertificates.Set(float64(certificates))
	im.indexedIdentities.Set(float64(identities))
}

// RecordSkipped records a candidate file excluded from the index.
func (im *IndexMetrics) RecordSkipped(reason string) {
	im.skippedTotal.WithLabelValues(reason).Inc()
}
