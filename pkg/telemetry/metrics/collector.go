package metrics

import (
	"time"

	"mercator-hq/callisto/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector is the main orchestrator for all Prometheus metrics in
// Callisto. It manages metric registration and provides a unified
// interface for recording metrics across the index, resolver, and
// context builder.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	indexMetrics    *IndexMetrics
	resolverMetrics *ResolverMetrics
	contextMetrics  *ContextMetrics
	expiryMetrics   *ExpiryMetrics
}

// NewCollector creates a new metrics collector with the specified
// configuration and Prometheus registry. If registry is nil, a fresh
// registry is created.
//
// Example:
//
//	cfg := &config.MetricsConfig{Enabled: true, Path: "/metrics"}
//	collector := metrics.NewCollector(cfg, nil)
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		config:   cfg,
		registry: registry,
	}

	c.indexMetrics = NewIndexMetrics(registry)
	c.resolverMetrics = NewResolverMetrics(registry)
	c.contextMetrics = NewContextMetrics(registry)
	c.expiryMetrics = NewExpiryMetrics(registry)

	return c
}

// Registry returns the underlying Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordIndexBuild records a completed certificate index build.
//
// Parameters:
//   - trigger: what caused the build ("demand", "watch", "schedule", "reload")
//   - duration: how long the directory walk and parsing took
//   - certificates: number of certificate files indexed
//   - identities: number of distinct identities extracted
func (c *Collector) RecordIndexBuild(trigger string, duration time.Duration, certificates, identities int) {
	if !c.config.Enabled {
		return
	}
	c.indexMetrics.RecordBuild(trigger, duration, certificates, identities)
}

// RecordSkippedFile records a candidate file that was excluded from the
// index, by reason ("unreadable", "not_pem", "parse_error", "expired").
func (c *Collector) RecordSkippedFile(reason string) {
	if !c.config.Enabled {
		return
	}
	c.indexMetrics.RecordSkipped(reason)
}

// RecordLookup records a credential resolution attempt.
//
// Parameters:
//   - kind: "host" or "service"
//   - result: "found" or "not_found"
//   - duration: lookup latency including filesystem probes
func (c *Collector) RecordLookup(kind, result string, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.resolverMetrics.RecordLookup(kind, result, duration)
}

// RecordContextBuild records a TLS context construction attempt.
//
// Parameters:
//   - mode: "client" or "server"
//   - status: "success" or "error"
//   - duration: time spent layering, loading files, and finalizing
func (c *Collector) RecordContextBuild(mode, status string, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.contextMetrics.RecordBuild(mode, status, duration)
}

// RecordSNIRequest records a certificate lookup made by the SNI
// callback, by result ("hit" or "miss").
func (c *Collector) RecordSNIRequest(result string) {
	if !c.config.Enabled {
		return
	}
	c.contextMetrics.RecordSNIRequest(result)
}

// ObserveExpiry updates the expiry gauge for a host's certificate.
// The gauge holds seconds remaining until NotAfter, negative once the
// certificate has expired.
func (c *Collector) ObserveExpiry(host string, notAfter time.Time) {
	if !c.config.Enabled {
		return
	}
	c.expiryMetrics.Observe(host, notAfter)
}

// SetExpiringSoon sets the count of indexed certificates expiring
// within the warning window.
func (c *Collector) SetExpiringSoon(count int) {
	if !c.config.Enabled {
		return
	}
	c.expiryMetrics.SetExpiringSoon(count)
}

// ResetExpiry clears per-host expiry gauges. Called before a rescan
// repopulates them so certificates removed from disk do not linger.
func (c *Collector) ResetExpiry() {
	if !c.config.Enabled {
		return
	}
	c.expiryMetrics.Reset()
}
