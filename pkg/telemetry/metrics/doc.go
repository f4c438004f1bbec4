// Package metrics provides Prometheus metrics collection for Callisto.
//
// # Overview
//
// The metrics package implements Prometheus metrics for monitoring
// certificate index builds, credential resolution, TLS context
// construction, and certificate expiry. Metrics register against an
// injected registry so tests and embedders can isolate them.
//
// # Metrics Categories
//
//   - Index Metrics: Build count, duration, indexed certificates and identities
//   - Resolver Metrics: Lookup count and latency by kind and result
//   - Context Metrics: TLS context builds by mode and status, SNI lookups
//   - Expiry Metrics: Per-host seconds until expiry, expiring-soon count
//
// # Usage
//
//	// Create collector
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//
//	// Record an index build
//	collector.RecordIndexBuild("demand", 12*time.Millisecond, 8, 14)
//
//	// Record a lookup
//	collector.RecordLookup("host", "found", 80*time.Microsecond)
//
//	// Record a context build
//	collector.RecordContextBuild("server", "success", time.Millisecond)
//
//	// Expose the endpoint
//	http.Handle("/metrics", collector.Handler())
package metrics
