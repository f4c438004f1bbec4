package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ExpiryMetrics tracks certificate expiry.
//
// Metrics:
//   - callisto_certificate_expiry_seconds: Seconds until NotAfter, by host
//   - callisto_certificates_expiring_soon: Certificates inside the warning window
//
// Cardinality of the per-host gauge is bounded by the number of
// certificates on disk, which for a certificate store is small.
type ExpiryMetrics struct {
	expirySeconds *prometheus.GaugeVec

	expiringSoon prometheus.Gauge
}

// NewExpiryMetrics creates and registers expiry metrics with the provided registry.
func NewExpiryMetrics(registry *prometheus.Registry) *ExpiryMetrics {
	em := &ExpiryMetrics{
		expirySeconds: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "callisto",
				Name:      "certificate_expiry_seconds",
				Help:      "Seconds until certificate expiry, negative once expired",
			},
			[]string{"host"},
		),

		expiringSoon: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "callisto",
				Name:      "certificates_expiring_soon",
				Help:      "Number of indexed certificates expiring within the warning window",
			},
		),
	}

	registry.MustRegister(
		em.expirySeconds,
		em.expiringSoon,
	)

	return em
}

// Observe updates the expiry gauge for a host's certificate.
func (em *ExpiryMetrics) Observe(host string, notAfter time.Time) {
	em.expirySeconds.WithLabelValues(host).Set(time.Until(notAfter).Seconds())
}

// SetExpiringSoon sets the count of certificates inside the warning window.
func (em *ExpiryMetrics) SetExpiringSoon(count int) {
	em.expiringSoon.Set(float64(count))
}

// Reset clears all per-host expiry gauges.
func (em *ExpiryMetrics) Reset() {
	em.expirySeconds.Reset()
}
