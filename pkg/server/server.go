// Package server provides the HTTPS status endpoint.
package server

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"mercator-hq/callisto/pkg/config"
	"mercator-hq/callisto/pkg/engine"
	"mercator-hq/callisto/pkg/telemetry/health"
	"mercator-hq/callisto/pkg/telemetry/metrics"
	"mercator-hq/callisto/pkg/tlsconfig"
)

// Server is the HTTPS status endpoint. It terminates TLS with
// credentials the engine discovered, so a successful handshake against
// it exercises the same discovery and context construction the rest of
// the process relies on.
type Server struct {
	config  *config.Config
	engine  *engine.Engine
	metrics *metrics.Collector
	health  *health.Checker
	logger  *slog.Logger

	httpServer *http.Server
	listener   net.Listener

	// tlsConfig holds the current handshake configuration. Reloads
	// swap it; connections pick it up through GetConfigForClient.
	tlsConfig atomic.Pointer[tls.Config]

	shutdownChan chan struct{}
	shutdownOnce sync.Once
	stopOnce     sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// NewServer creates a status server around the given engine. The
// collector may be nil, in which case no metrics route is registered.
func NewServer(cfg *config.Config, eng *engine.Engine, collector *metrics.Collector) *Server {
	s := &Server{
		config:       cfg,
		engine:       eng,
		metrics:      collector,
		health:       health.New(0),
		logger:       slog.Default().With("component", "server"),
		shutdownChan: make(chan struct{}),
	}
	s.registerChecks()

	// Configuration reloads change what the listener should present;
	// rebuild the handshake configuration in place.
	eng.OnReload(s.handleReload)

	return s
}

// registerChecks installs the readiness probes. Probes read the
// current configuration on every run so reloads take effect without
// re-registration.
func (s *Server) registerChecks() {
	s.health.RegisterCheck("certificate_root", func(ctx context.Context) error {
		root := s.currentConfig().CertRoot()
		info, err := os.Stat(root)
		if err != nil {
			return fmt.Errorf("certificate root unavailable: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("certificate root %s is not a directory", root)
		}
		return nil
	})

	s.health.RegisterCheck("inventory", func(ctx context.Context) error {
		if !s.currentConfig().Inventory.Enabled {
			return nil
		}
		inv := s.engine.Inventory()
		if inv == nil {
			return fmt.Errorf("inventory enabled but not open")
		}
		return inv.Ping(ctx)
	})
}

// Start starts the HTTPS server and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	handler := s.setupRoutes()
	cfg := s.currentConfig()

	s.httpServer = &http.Server{
		Addr:         cfg.Server.ListenAddress,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	base, err := s.buildTLSConfig()
	if err != nil {
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		return fmt.Errorf("failed to configure TLS: %w", err)
	}
	s.tlsConfig.Store(base)
	s.httpServer.TLSConfig = &tls.Config{
		GetConfigForClient: func(*tls.ClientHelloInfo) (*tls.Config, error) {
			return s.tlsConfig.Load(), nil
		},
	}

	listener, err := net.Listen("tcp", cfg.Server.ListenAddress)
	if err != nil {
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", cfg.Server.ListenAddress, err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("status server started",
			"address", listener.Addr().String(),
			"default_host", cfg.Server.DefaultHost,
		)

		err := s.httpServer.ServeTLS(listener, "", "")
		if err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	// Set up signal handlers
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Wait for shutdown signal or error
	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	case <-s.shutdownChan:
		s.logger.Info("shutdown requested")
		return s.Shutdown(context.Background())
	}
}

// Stop requests shutdown from another goroutine. Start then returns
// after the graceful shutdown completes.
func (s *Server) Stop() {
	s.stopOnce.Do(func() { close(s.shutdownChan) })
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		timeout := s.currentConfig().Server.ShutdownTimeout
		s.logger.Info("initiating graceful shutdown", "timeout", timeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				s.logger.Error("error during server shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("status server stopped")
	})

	return shutdownErr
}

// setupRoutes configures the HTTP routes. Recovery sits outermost so
// a panic anywhere below it still answers with a 500.
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.health.ReadinessHandler())

	cfg := s.currentConfig()
	if s.metrics != nil && cfg.Telemetry.Metrics.Enabled {
		path := cfg.Telemetry.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		mux.Handle(path, s.metrics.Handler())
	}

	return s.withRecovery(s.withRequestLog(mux))
}

type healthResponse struct {
	Status       string `json:"status"`
	Certificates int    `json:"certificates"`
	Skipped      int    `json:"skipped"`
	BuiltAt      string `json:"built_at"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	idx := s.engine.Index()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(healthResponse{
		Status:       "ok",
		Certificates: idx.Len(),
		Skipped:      idx.Skipped(),
		BuiltAt:      idx.BuiltAt.Format(time.RFC3339),
	})
}

// buildTLSConfig assembles the handshake configuration: the default
// host's context as the base, SNI resolution on top. Without a default
// host the listener anchors on the https service certificate for its
// port, falling back to a certificate-less SNI-only configuration.
func (s *Server) buildTLSConfig() (*tls.Config, error) {
	cfg := s.currentConfig()

	identity := cfg.Server.DefaultHost
	if identity == "" {
		identity = fmt.Sprintf("https port %d", listenPort(cfg.Server.ListenAddress))
	}

	var overrides []tlsconfig.Layer
	if hc, ok := cfg.Hosts[identity]; ok && len(hc.TLS) > 0 {
		overrides = append(overrides, tlsconfig.Layer(hc.TLS))
	}

	tlsCtx, _, err := s.engine.CreateContext(identity, tlsconfig.ModeServer, overrides...)
	if err != nil {
		return nil, err
	}

	handshake := tlsCtx.Config.Clone()
	handshake.GetCertificate = s.engine.GetCertificate
	return handshake, nil
}

// handleReload rebuilds the handshake configuration after a
// configuration reload. The listen address is fixed for the life of
// the process; only the TLS material refreshes.
func (s *Server) handleReload(cfg *config.Config) {
	s.mu.Lock()
	s.config = cfg
	running := s.isRunning
	s.mu.Unlock()

	if !running {
		return
	}

	fresh, err := s.buildTLSConfig()
	if err != nil {
		s.logger.Error("failed to rebuild listener TLS configuration", "error", err)
		return
	}
	s.tlsConfig.Store(fresh)
	s.logger.Info("listener TLS configuration rebuilt")
}

func (s *Server) currentConfig() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// Addr returns the bound listen address, or empty before Start.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler returns the configured HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

func listenPort(address string) int {
	_, portStr, err := net.SplitHostPort(address)
	if err != nil {
		return 443
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 443
	}
	return port
}
