package config

import "time"

// Default values for configuration fields.
const (
	// Certificate discovery defaults
	DefaultCertificatesRoot = "certs"
	DefaultDepthLimit       = 3
	DefaultWatchDebounce    = 2 * time.Second
	DefaultRescanSchedule   = "0 4 * * *"

	// Inventory defaults
	DefaultInventoryPath          = "data/certificates.db"
	DefaultInventoryMaxOpenConns  = 10
	DefaultInventoryMaxIdleConns  = 5
	DefaultInventoryWALMode       = true
	DefaultInventoryBusyTimeout   = 5 * time.Second
	DefaultInventoryRetentionDays = 90

	// Status server defaults
	DefaultListenAddress   = "127.0.0.1:9443"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	// Telemetry defaults
	DefaultLoggingLevel  = "info"
	DefaultLoggingFormat = "json"
	DefaultMetricsPath   = "/metrics"
)

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Certificate discovery defaults
	if cfg.Certificates.Root == "" {
		cfg.Certificates.Root = DefaultCertificatesRoot
	}
	if cfg.Certificates.DepthLimit == 0 {
		cfg.Certificates.DepthLimit = DefaultDepthLimit
	}
	if cfg.Certificates.WatchDebounce == 0 {
		cfg.Certificates.WatchDebounce = DefaultWatchDebounce
	}
	if cfg.Certificates.RescanSchedule == "" {
		cfg.Certificates.RescanSchedule = DefaultRescanSchedule
	}

	// Inventory defaults
	if cfg.Inventory.Path == "" {
		cfg.Inventory.Path = DefaultInventoryPath
	}
	if cfg.Inventory.MaxOpenConns == 0 {
		cfg.Inventory.MaxOpenConns = DefaultInventoryMaxOpenConns
	}
	if cfg.Inventory.MaxIdleConns == 0 {
		cfg.Inventory.MaxIdleConns = DefaultInventoryMaxIdleConns
	}
	if !cfg.Inventory.WALMode {
		cfg.Inventory.WALMode = DefaultInventoryWALMode
	}
	if cfg.Inventory.BusyTimeout == 0 {
		cfg.Inventory.BusyTimeout = DefaultInventoryBusyTimeout
	}
	if cfg.Inventory.RetentionDays == 0 {
		cfg.Inventory.RetentionDays = DefaultInventoryRetentionDays
	}

	// Status server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
}
