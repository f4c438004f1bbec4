// Callisto discovers TLS certificates on disk and builds TLS contexts from them.
//
// It indexes a certificate directory tree, matches certificates to hosts and
// services by their asserted identities and by filesystem naming conventions,
// and assembles ready-to-use TLS configurations from layered options. An
// optional status server terminates TLS with the discovered certificates and
// serves health and metrics endpoints.
//
// Usage:
//
//	# Start the engine with default configuration
//	callisto run
//
//	# Start with a custom configuration file
//	callisto run --config /etc/callisto/callisto.yaml
//
//	# Scan the certificate tree once and print the index
//	callisto scan
//
//	# Find the credentials serving a host
//	callisto resolve chat.example.com
//
//	# Dry-run a TLS context and print the resolved options
//	callisto context chat.example.com --mode server
//
//	# Inspect a certificate file
//	callisto certs info certs/chat.example.com.crt
//
//	# List certificates expiring within 30 days
//	callisto certs expiring --days 30
//
// For complete documentation, see: https://github.com/mercator-hq/callisto
package main

func main() {
	Execute()
}
