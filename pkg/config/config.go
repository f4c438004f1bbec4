package config

import (
	"path/filepath"
	"strconv"
	"time"
)

// Config is the root configuration structure for Callisto.
// It describes where certificates live on disk, per-host and per-service
// overrides for credential discovery, the global TLS option layer, and the
// supporting subsystems (inventory, status server, telemetry).
type Config struct {
	// Certificates configures certificate discovery: the directory tree to
	// scan, how deep to descend, and how the index is kept fresh.
	Certificates CertificatesConfig `yaml:"certificates"`

	// TLS is the global TLS option layer applied to every context built for
	// any host or service. Keys follow the option vocabulary of the context
	// builder (protocol, ciphers, verify, options, certificate, key, cafile,
	// capath, dhparam, ...). Values may be scalars, lists, or nested groups.
	TLS map[string]any `yaml:"tls"`

	// Hosts contains per-host overrides. Keys are lowercase hostnames.
	Hosts map[string]HostConfig `yaml:"hosts"`

	// Services contains per-service certificate overrides. Keys are service
	// names (e.g. "xmpp-server").
	Services map[string]ServiceConfig `yaml:"services"`

	// Inventory configures the SQLite-backed certificate observation history.
	Inventory InventoryConfig `yaml:"inventory"`

	// Server configures the optional TLS status server.
	Server ServerConfig `yaml:"server"`

	// Telemetry contains logging and metrics configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// BaseDir is the directory the configuration file was loaded from.
	// Relative certificate, key, and data paths resolve against it.
	// It is set by LoadConfig and never read from the file itself.
	BaseDir string `yaml:"-"`
}

// CertificatesConfig controls certificate discovery.
type CertificatesConfig struct {
	// Root is the certificate directory scanned by the index, relative to
	// the configuration directory unless absolute.
	// Default: "certs"
	Root string `yaml:"root"`

	// DepthLimit is how many directory levels the scan descends below Root.
	// A value of 0 means unset and falls back to the default; callers that
	// genuinely want a zero-depth scan pass it to Build directly.
	// Default: 3
	DepthLimit int `yaml:"depth_limit"`

	// Watch enables rebuilding the index when files under Root change.
	// Default: false
	Watch bool `yaml:"watch"`

	// WatchDebounce is how long to coalesce filesystem events before a
	// rebuild. Certificate deployments touch several files in quick
	// succession, so this should comfortably cover one deployment.
	// Default: 2s
	WatchDebounce time.Duration `yaml:"watch_debounce"`

	// RescanSchedule is a cron expression for periodic index rebuilds,
	// catching renewals that arrive without filesystem events (e.g. mounted
	// volumes). Empty disables scheduled rescans.
	// Default: "0 4 * * *"
	RescanSchedule string `yaml:"rescan_schedule"`
}

// HostConfig contains per-host overrides for credential discovery and
// context construction.
type HostConfig struct {
	// Certificate is a base path handed to the convention matcher for this
	// host, overriding the global certificate root. It may name a directory
	// or point directly at a certificate file.
	Certificate string `yaml:"certificate"`

	// TLS is an option layer the connection layer passes as a caller
	// override when building this host's context.
	TLS map[string]any `yaml:"tls"`
}

// ServiceConfig contains per-service certificate overrides.
type ServiceConfig struct {
	// Certificates maps a listening port (decimal string) to a certificate
	// base path. The "default" key applies to ports without their own entry.
	Certificates map[string]string `yaml:"certificates"`
}

// CertificateForPort returns the certificate base path for the given port,
// falling back to the "default" entry. Empty when neither is configured.
func (s ServiceConfig) CertificateForPort(port int) string {
	if path, ok := s.Certificates[strconv.Itoa(port)]; ok {
		return path
	}
	return s.Certificates["default"]
}

// InventoryConfig configures the certificate observation history.
type InventoryConfig struct {
	// Enabled controls whether index builds record observations.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Path is the SQLite database file, relative to the configuration
	// directory unless absolute.
	// Default: "data/certificates.db"
	Path string `yaml:"path"`

	// MaxOpenConns is the maximum number of open database connections.
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle database connections.
	// Default: 5
	MaxIdleConns int `yaml:"max_idle_conns"`

	// WALMode enables SQLite write-ahead logging.
	// Default: true
	WALMode bool `yaml:"wal_mode"`

	// BusyTimeout is how long SQLite waits on a locked database.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`

	// RetentionDays is how long observations are kept before pruning.
	// Zero keeps them forever.
	// Default: 90
	RetentionDays int `yaml:"retention_days"`
}

// ServerConfig configures the status server, a small TLS endpoint that
// serves health and metrics using certificates resolved by the engine.
type ServerConfig struct {
	// Enabled controls whether the status server starts with "callisto run".
	// Default: false
	Enabled bool `yaml:"enabled"`

	// ListenAddress is the address and port to listen on.
	// Default: "127.0.0.1:9443"
	ListenAddress string `yaml:"listen_address"`

	// DefaultHost is the identity whose certificate anchors the listener's
	// base TLS configuration. SNI selects per-host certificates on top.
	DefaultHost string `yaml:"default_host"`

	// ReadTimeout is the maximum duration for reading a request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing a response.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle limit.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics configures Prometheus metrics.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig configures structured logging output.
type LoggingConfig struct {
	// Level is the minimum level to emit: debug, info, warn, error.
	// Default: "info"
	Level string `yaml:"level"`

	// Format selects the output encoding: "json" or "text".
	// Default: "json"
	Format string `yaml:"format"`
}

// MetricsConfig configures Prometheus metrics exposure.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path the status server exposes metrics on.
	// Default: "/metrics"
	Path string `yaml:"path"`
}

// ResolvePath resolves a possibly-relative path against the configuration
// directory. Absolute paths and the empty string pass through unchanged.
func (c *Config) ResolvePath(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.BaseDir, path)
}

// CertRoot returns the resolved certificate root directory.
func (c *Config) CertRoot() string {
	return c.ResolvePath(c.Certificates.Root)
}

// HostCertificate returns the resolved per-host certificate override, or
// empty when the host has none.
func (c *Config) HostCertificate(host string) string {
	hc, ok := c.Hosts[host]
	if !ok || hc.Certificate == "" {
		return ""
	}
	return c.ResolvePath(hc.Certificate)
}

// ServiceCertificate returns the resolved per-service certificate override
// for the given port, or empty when the service has none.
func (c *Config) ServiceCertificate(service string, port int) string {
	sc, ok := c.Services[service]
	if !ok {
		return ""
	}
	path := sc.CertificateForPort(port)
	if path == "" {
		return ""
	}
	return c.ResolvePath(path)
}
