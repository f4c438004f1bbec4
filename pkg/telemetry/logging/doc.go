// Package logging provides structured logging with private key redaction.
//
// # Overview
//
// The logging package wraps Go's standard log/slog package to provide:
//   - Structured logging with JSON and text formats
//   - Automatic masking of PEM private key material in log fields
//   - Component-tagged child loggers
//   - Configurable log levels (debug, info, warn, error)
//
// # Usage
//
//	// Create a logger and install it as the process default
//	logger, err := logging.New(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	})
//	if err != nil {
//	    return err
//	}
//	logger.SetDefault()
//
//	// Tag a subsystem's entries with a component attribute
//	log := logging.Component("certstore")
//	log.Info("index built",
//	    "certificates", 12,
//	    "duration_ms", 41,
//	)
//
// # Redaction
//
// Certificate handling code works close to key material, and a careless
// log call could write a private key to disk. Every string field passes
// through a redactor that replaces PEM private key blocks with
// "[REDACTED PRIVATE KEY]" before the entry is written. Certificate
// blocks are public material and pass through untouched.
package logging
