package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"mercator-hq/callisto/pkg/certstore"
	"mercator-hq/callisto/pkg/cli"
	"mercator-hq/callisto/pkg/config"
	"mercator-hq/callisto/pkg/engine"
	"mercator-hq/callisto/pkg/server"
	"mercator-hq/callisto/pkg/telemetry/logging"
	"mercator-hq/callisto/pkg/telemetry/metrics"
)

// configWatchDebounce is the quiet period after the last write to the
// configuration file before a reload fires, matching the certificate
// watcher default.
const configWatchDebounce = 2 * time.Second

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Callisto engine",
	Long: `Start the Callisto engine with the specified configuration.

The engine builds the certificate index, keeps it fresh through the
filesystem watcher and the rescan schedule, and records observations
in the inventory. When the status server is enabled it also serves
health and metrics over TLS using the discovered certificates.

The configuration reloads on SIGHUP and when the configuration file
itself is rewritten.

Examples:
  # Start with default config
  callisto run

  # Start with custom config
  callisto run --config /etc/callisto/callisto.yaml

  # Override the status server listen address
  callisto run --listen 0.0.0.0:9443

  # Validate config without starting
  callisto run --dry-run`,
	RunE: runEngine,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override status server listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting")
}

func runEngine(cmd *cobra.Command, args []string) error {
	// Load configuration
	if err := config.Initialize(cfgFile); err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	cfg := config.GetConfig()

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	// Initialize logging based on config
	logger, err := logging.New(logging.Config{
		Level:  cfg.Telemetry.Logging.Level,
		Format: cfg.Telemetry.Logging.Format,
	})
	if err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}
	logger.SetDefault()

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	// Print startup banner
	printBanner(cfg)

	var collector *metrics.Collector
	if cfg.Telemetry.Metrics.Enabled {
		collector = metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
		if !cfg.Server.Enabled {
			slog.Debug("metrics enabled without status server; no scrape endpoint")
		}
	}

	engineOpts := []engine.Option{engine.WithConfigPath(cfgFile)}
	if collector != nil {
		engineOpts = append(engineOpts, engine.WithMetrics(collector))
	}

	eng, err := engine.New(cfg, engineOpts...)
	if err != nil {
		return cli.NewCommandError("run", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := eng.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	defer eng.Stop()

	idx := eng.Index()
	fmt.Printf("✓ Certificate index built (%d certificates, %d skipped)\n", idx.Len(), idx.Skipped())
	if cfg.Certificates.Watch {
		fmt.Println("✓ Certificate watcher running")
	}
	if cfg.Certificates.RescanSchedule != "" {
		fmt.Printf("✓ Rescan scheduled (%s)\n", cfg.Certificates.RescanSchedule)
	}
	if eng.Inventory() != nil {
		fmt.Println("✓ Certificate inventory recording")
	}

	// Start the status server in a background goroutine
	var srv *server.Server
	errChan := make(chan error, 1)
	if cfg.Server.Enabled {
		srv = server.NewServer(cfg, eng, collector)
		go func() {
			slog.Info("starting status server",
				"address", cfg.Server.ListenAddress,
				"default_host", cfg.Server.DefaultHost,
			)
			if err := srv.Start(ctx); err != nil {
				errChan <- fmt.Errorf("status server error: %w", err)
			}
		}()

		fmt.Println()
		fmt.Printf("✓ Status server listening on %s\n", cfg.Server.ListenAddress)
		fmt.Printf("✓ Health endpoint: https://%s/healthz\n", cfg.Server.ListenAddress)
		fmt.Printf("✓ Readiness endpoint: https://%s/readyz\n", cfg.Server.ListenAddress)
		if collector != nil {
			fmt.Printf("✓ Metrics endpoint: https://%s%s\n", cfg.Server.ListenAddress, cfg.Telemetry.Metrics.Path)
		}
	}

	// Reload when the configuration file itself is rewritten
	go func() {
		if err := watchConfigFile(ctx, cfgFile, eng); err != nil {
			slog.Warn("configuration file watch unavailable", "error", err)
		}
	}()

	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for a reload request, a shutdown signal, or a server error
	reloadChan := make(chan os.Signal, 1)
	signal.Notify(reloadChan, syscall.SIGHUP)

	sigChan := cli.WaitForShutdown()

	for {
		select {
		case err := <-errChan:
			return cli.NewCommandError("run", err)

		case <-reloadChan:
			fmt.Println("Received SIGHUP, reloading configuration...")
			if err := eng.ReloadConfiguration(); err != nil {
				slog.Error("configuration reload failed", "error", err)
			} else {
				fmt.Println("✓ Configuration reloaded")
			}

		case sig := <-sigChan:
			fmt.Printf("\nReceived signal %s, shutting down gracefully...\n", sig)

			if srv != nil {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
				defer shutdownCancel()

				if err := srv.Shutdown(shutdownCtx); err != nil {
					slog.Error("shutdown failed", "error", err)
					return cli.NewCommandError("run", err)
				}
			}

			fmt.Println("✓ Stopped")
			return nil
		}
	}
}

func printBanner(cfg *config.Config) {
	fmt.Printf("Callisto v%s\n", Version)
	fmt.Printf("Loading configuration from: %s\n", cfgFile)
	fmt.Println("✓ Configuration loaded")

	slog.Debug("certificate root", "root", cfg.CertRoot())
	if len(cfg.Hosts) > 0 {
		slog.Debug("host overrides configured", "count", len(cfg.Hosts))
	}
	if len(cfg.Services) > 0 {
		slog.Debug("service overrides configured", "count", len(cfg.Services))
	}
	if cfg.Inventory.Enabled {
		slog.Debug("inventory enabled", "path", cfg.Inventory.Path)
	}
}

// watchConfigFile reloads the engine configuration after the file at
// path is rewritten. Editors and deployment tools replace configuration
// files by rename, so the parent directory is watched rather than the
// file itself.
func watchConfigFile(ctx context.Context, path string, eng *engine.Engine) error {
	target, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return err
	}

	debounce := certstore.NewDebouncer(configWatchDebounce)
	defer debounce.Stop()

	slog.Debug("watching configuration file", "path", target)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Chmod == fsnotify.Chmod {
				continue
			}
			if name, err := filepath.Abs(event.Name); err != nil || name != target {
				continue
			}

			debounce.Trigger(func() {
				slog.Info("configuration file changed, reloading", "path", target)
				if err := eng.ReloadConfiguration(); err != nil {
					slog.Error("configuration reload failed", "error", err)
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("configuration file watch error", "error", err)
		}
	}
}
