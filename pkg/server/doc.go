// Package server provides the HTTPS status endpoint.
//
// The server terminates TLS with credentials the engine discovered:
// its base context comes from the configured default host (or the
// https service certificate for the listen port), and SNI selects
// per-host certificates through the engine's resolver. A successful
// handshake against the endpoint therefore proves the certificate
// tree is serviceable.
//
// # Basic Usage
//
//	srv := server.NewServer(cfg, eng, collector)
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Start blocks until the context is cancelled, a SIGTERM or SIGINT
// arrives, or Stop is called, then drains connections for up to the
// configured shutdown timeout.
//
// # Routes
//
//   - GET /healthz  - index summary (certificate count, build time)
//   - GET /readyz   - readiness probes (certificate root, inventory)
//   - GET /metrics  - Prometheus metrics, when telemetry is enabled
//
// # Reloads
//
// The server subscribes to the engine's reload notifications and
// rebuilds its handshake configuration in place; the listen address is
// fixed for the life of the process.
package server
