// Package telemetry groups the observability subpackages.
//
// # Components
//
//   - logging: structured slog logging with private key redaction
//   - metrics: Prometheus collectors for index builds, resolution and
//     context construction
//   - health: readiness probes served by the status server
//
// Each subpackage stands alone; there is no shared initialization.
// The run command wires them together: logging first, then the
// metrics collector handed to the engine, then the health checker
// inside the status server.
package telemetry
