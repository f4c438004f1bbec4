// Package config provides configuration management for Callisto.
//
// This package handles loading, validating, and managing configuration from
// YAML files with environment variable overrides. It describes where
// certificates live, per-host and per-service discovery overrides, the
// global TLS option layer, and the supporting subsystems.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("callisto.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("callisto.yaml")
//
// Relative paths inside the file (certificate root, inventory database)
// resolve against the directory containing the file.
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention CALLISTO_SECTION_FIELD.
// For example:
//
//   - CALLISTO_CERTIFICATES_ROOT overrides certificates.root
//   - CALLISTO_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - CALLISTO_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// Environment variables always take precedence over file-based configuration.
//
// # Singleton Pattern
//
// For application-wide configuration access, use the singleton pattern:
//
//	// At application startup
//	if err := config.Initialize("callisto.yaml"); err != nil {
//	    log.Fatal(err)
//	}
//
//	// Anywhere in the application
//	cfg := config.GetConfig()
//	fmt.Println(cfg.CertRoot())
//
// Subsystems that cache derived state (the certificate index, the global TLS
// layer) register with OnReload and refresh when ReloadConfig swaps in a new
// instance.
//
// # Example Configuration
//
//	certificates:
//	  root: "certs"
//	  depth_limit: 3
//	  watch: true
//
//	tls:
//	  protocol: "tlsv1_2+"
//	  verify: "none"
//
//	hosts:
//	  example.com:
//	    certificate: "certs/example.com.crt"
//
//	services:
//	  xmpp-server:
//	    certificates:
//	      "5269": "certs/s2s"
//	      default: "certs"
//
//	telemetry:
//	  logging:
//	    level: "info"
//	    format: "json"
//
// # Thread Safety
//
// All configuration access is thread-safe. The singleton pattern uses read-write
// locks to allow concurrent reads while protecting against concurrent writes during
// reload operations.
package config
