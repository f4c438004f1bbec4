package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "certificates.root").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateCertificates(&cfg.Certificates)...)
	errs = append(errs, validateHosts(cfg.Hosts)...)
	errs = append(errs, validateServices(cfg.Services)...)
	errs = append(errs, validateInventory(&cfg.Inventory)...)
	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateCertificates(cfg *CertificatesConfig) []FieldError {
	var errs []FieldError

	if cfg.Root == "" {
		errs = append(errs, FieldError{
			Field:   "certificates.root",
			Message: "must not be empty",
		})
	}
	if cfg.DepthLimit < 0 {
		errs = append(errs, FieldError{
			Field:   "certificates.depth_limit",
			Message: fmt.Sprintf("must not be negative, got %d", cfg.DepthLimit),
		})
	}
	if cfg.WatchDebounce < 0 {
		errs = append(errs, FieldError{
			Field:   "certificates.watch_debounce",
			Message: "must not be negative",
		})
	}

	return errs
}

func validateHosts(hosts map[string]HostConfig) []FieldError {
	var errs []FieldError

	for name := range hosts {
		if name == "" {
			errs = append(errs, FieldError{
				Field:   "hosts",
				Message: "host names must not be empty",
			})
			continue
		}
		if strings.ContainsAny(name, " \t") {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("hosts.%s", name),
				Message: "host names must not contain whitespace",
			})
		}
		if name != strings.ToLower(name) {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("hosts.%s", name),
				Message: "host names must be lowercase",
			})
		}
	}

	return errs
}

func validateServices(services map[string]ServiceConfig) []FieldError {
	var errs []FieldError

	for name, svc := range services {
		if name == "" {
			errs = append(errs, FieldError{
				Field:   "services",
				Message: "service names must not be empty",
			})
			continue
		}
		for portKey := range svc.Certificates {
			if portKey == "default" {
				continue
			}
			port, err := strconv.Atoi(portKey)
			if err != nil || port < 1 || port > 65535 {
				errs = append(errs, FieldError{
					Field:   fmt.Sprintf("services.%s.certificates.%s", name, portKey),
					Message: "must be a port number between 1 and 65535, or \"default\"",
				})
			}
		}
	}

	return errs
}

func validateInventory(cfg *InventoryConfig) []FieldError {
	if !cfg.Enabled {
		return nil
	}

	var errs []FieldError

	if cfg.Path == "" {
		errs = append(errs, FieldError{
			Field:   "inventory.path",
			Message: "must not be empty when inventory is enabled",
		})
	}
	if cfg.MaxOpenConns < 1 {
		errs = append(errs, FieldError{
			Field:   "inventory.max_open_conns",
			Message: "must be at least 1",
		})
	}
	if cfg.MaxIdleConns < 0 {
		errs = append(errs, FieldError{
			Field:   "inventory.max_idle_conns",
			Message: "must not be negative",
		})
	}
	if cfg.RetentionDays < 0 {
		errs = append(errs, FieldError{
			Field:   "inventory.retention_days",
			Message: "must not be negative",
		})
	}

	return errs
}

func validateServer(cfg *ServerConfig) []FieldError {
	if !cfg.Enabled {
		return nil
	}

	var errs []FieldError

	if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: fmt.Sprintf("invalid address %q: must be host:port", cfg.ListenAddress),
		})
	}
	if cfg.DefaultHost == "" {
		errs = append(errs, FieldError{
			Field:   "server.default_host",
			Message: "must name the identity whose certificate anchors the listener",
		})
	}
	if cfg.ShutdownTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.shutdown_timeout",
			Message: "must not be negative",
		})
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch cfg.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid level %q: must be one of debug, info, warn, error", cfg.Logging.Level),
		})
	}

	switch cfg.Logging.Format {
	case "", "json", "text":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid format %q: must be json or text", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Path != "" && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: "must start with /",
		})
	}

	return errs
}
