package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"mercator-hq/callisto/pkg/certstore"
	"mercator-hq/callisto/pkg/config"
	"mercator-hq/callisto/pkg/inventory"
	"mercator-hq/callisto/pkg/telemetry/metrics"
	"mercator-hq/callisto/pkg/tlsconfig"
)

// Engine ties the certificate index, the credential resolver and the
// context builder together behind one facade. It owns the background
// tasks that keep the index fresh, the filesystem watcher and the
// scheduled rescans, and records snapshots in the observation
// inventory when one is configured.
type Engine struct {
	logger  *slog.Logger
	metrics *metrics.Collector

	cfgPath string

	mu       sync.RWMutex
	cfg      *config.Config
	store    *certstore.Store
	resolver *certstore.Resolver
	builder  *tlsconfig.Builder

	watcher   *certstore.Watcher
	watchDone chan struct{}
	scheduler *certstore.Scheduler

	inventory     *inventory.Store
	ownsInventory bool

	running   bool
	runCtx    context.Context
	runCancel context.CancelFunc

	reloadMu sync.Mutex

	subMu       sync.Mutex
	subscribers []func(*config.Config)

	sni atomic.Pointer[sniCache]
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger for the engine's own messages. The
// components underneath label their logs with their own component
// attribute.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMetrics attaches a metrics collector. Index builds, lookups,
// context builds and SNI requests are then recorded.
func WithMetrics(collector *metrics.Collector) Option {
	return func(e *Engine) {
		e.metrics = collector
	}
}

// WithConfigPath remembers the configuration file so that
// ReloadConfiguration can re-read it. Without a path, reloads rewire
// against the configuration the engine already holds.
func WithConfigPath(path string) Option {
	return func(e *Engine) {
		e.cfgPath = path
	}
}

// WithInventory injects an already opened observation store. The
// caller keeps ownership and closes it; the engine only records into
// it.
func WithInventory(store *inventory.Store) Option {
	return func(e *Engine) {
		e.inventory = store
	}
}

// New creates an engine from the given configuration. A nil cfg falls
// back to the process-wide configuration.
//
// When the configuration enables the inventory, New opens the
// observation database and the engine closes it again on Stop.
func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.GetConfig()
	}
	if cfg == nil {
		return nil, fmt.Errorf("engine requires a configuration")
	}

	e := &Engine{cfg: cfg}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default().With("component", "engine")
	}

	e.store, e.resolver, e.builder = e.buildComponents(cfg, nil)

	if e.inventory == nil && cfg.Inventory.Enabled {
		inv, err := inventory.Open(inventoryConfig(cfg))
		if err != nil {
			return nil, fmt.Errorf("failed to open certificate inventory: %w", err)
		}
		e.inventory = inv
		e.ownsInventory = true
	}

	return e, nil
}

// buildComponents wires a store, resolver and builder against cfg. The
// previous store is reused when the certificate root is unchanged, so
// the index snapshot survives configuration reloads that leave the
// tree alone.
func (e *Engine) buildComponents(cfg *config.Config, previous *certstore.Store) (*certstore.Store, *certstore.Resolver, *tlsconfig.Builder) {
	store := previous
	if store == nil || store.Root() != cfg.CertRoot() {
		storeOpts := []certstore.Option{certstore.WithMetrics(e.metrics)}
		if cfg.Certificates.DepthLimit > 0 {
			storeOpts = append(storeOpts, certstore.WithDepth(cfg.Certificates.DepthLimit))
		}
		store = certstore.NewStore(cfg.CertRoot(), storeOpts...)
	}

	resolver := certstore.NewResolver(store, cfg, certstore.WithResolverMetrics(e.metrics))
	builder := tlsconfig.NewBuilder(cfg, resolver, tlsconfig.WithMetrics(e.metrics))

	return store, resolver, builder
}

// inventoryConfig maps the configuration file's inventory section onto
// the observation store's own config, resolving the database path
// against the configuration directory.
func inventoryConfig(cfg *config.Config) *inventory.Config {
	inv := inventory.DefaultConfig()
	inv.Path = cfg.ResolvePath(cfg.Inventory.Path)
	if cfg.Inventory.MaxOpenConns > 0 {
		inv.MaxOpenConns = cfg.Inventory.MaxOpenConns
	}
	if cfg.Inventory.MaxIdleConns > 0 {
		inv.MaxIdleConns = cfg.Inventory.MaxIdleConns
	}
	inv.WALMode = cfg.Inventory.WALMode
	if cfg.Inventory.BusyTimeout > 0 {
		inv.BusyTimeout = cfg.Inventory.BusyTimeout
	}
	inv.RetentionDays = cfg.Inventory.RetentionDays
	return inv
}

// CreateContext builds a TLS context for the given identity. The
// identity is a hostname for most callers; connection code that has no
// virtual host yet passes "<service> port <n>" instead. Overrides
// apply earliest-wins, above the host's configuration but below
// nothing else.
func (e *Engine) CreateContext(identity string, mode tlsconfig.Mode, overrides ...tlsconfig.Layer) (*tlsconfig.Context, *tlsconfig.ResolvedConfig, error) {
	e.mu.RLock()
	builder := e.builder
	e.mu.RUnlock()

	return builder.BuildContext(identity, mode, overrides...)
}

// FindCertificateForHost locates credentials for a hostname without
// building a context. Absence is reported through the boolean, not an
// error.
func (e *Engine) FindCertificateForHost(host string) (*certstore.CredentialPair, bool) {
	e.mu.RLock()
	resolver := e.resolver
	e.mu.RUnlock()

	return resolver.FindForHost(host)
}

// FindCertificateForService locates credentials for a service listener
// that is not bound to a particular host.
func (e *Engine) FindCertificateForService(service string, port int) (*certstore.CredentialPair, bool) {
	e.mu.RLock()
	resolver := e.resolver
	e.mu.RUnlock()

	return resolver.FindForService(service, port)
}

// Index returns the current certificate index snapshot, building it on
// first use.
func (e *Engine) Index() *certstore.Index {
	e.mu.RLock()
	store := e.store
	e.mu.RUnlock()

	return store.Index()
}

// Inventory returns the observation store, or nil when the inventory
// is disabled.
func (e *Engine) Inventory() *inventory.Store {
	return e.inventory
}

// Rescan rebuilds the certificate index and records the fresh snapshot
// in the inventory. The trigger labels the rebuild in logs and
// metrics.
func (e *Engine) Rescan(trigger string) *certstore.Index {
	e.mu.RLock()
	store := e.store
	e.mu.RUnlock()

	idx := store.Rebuild(trigger)
	e.recordBuild(idx)
	return idx
}

func (e *Engine) recordBuild(idx *certstore.Index) {
	if e.inventory == nil || idx == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.inventory.RecordBuild(ctx, idx); err != nil {
		e.logger.Warn("failed to record index build",
			"build_id", idx.ID,
			"error", err,
		)
	}
}

// Start performs the initial index build and launches whatever
// background tasks the configuration asks for. It does not block; call
// Stop to release everything Start acquired.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return fmt.Errorf("engine already started")
	}
	e.running = true
	e.runCtx, e.runCancel = context.WithCancel(ctx)
	e.mu.Unlock()

	idx := e.Rescan("start")
	e.logger.Info("engine started",
		"root", idx.Root,
		"certificates", idx.Len(),
		"skipped", idx.Skipped(),
	)

	if err := e.startBackground(); err != nil {
		e.Stop()
		return err
	}

	return nil
}

// Stop halts the background tasks and closes an inventory the engine
// opened itself. Safe to call more than once.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	cancel := e.runCancel
	e.mu.Unlock()

	// Stop the watcher before cancelling its context so it closes its
	// file descriptors on the way out.
	e.stopBackground()
	if cancel != nil {
		cancel()
	}

	if e.ownsInventory && e.inventory != nil {
		if err := e.inventory.Close(); err != nil {
			e.logger.Warn("failed to close certificate inventory", "error", err)
		}
	}

	e.logger.Info("engine stopped")
}

// startBackground launches the watcher and the rescan scheduler
// against the current store. Both are skipped when the configuration
// leaves them disabled.
func (e *Engine) startBackground() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return nil
	}

	cfg, store, runCtx := e.cfg, e.store, e.runCtx

	if cfg.Certificates.Watch {
		wc := certstore.DefaultWatcherConfig(store.Root())
		if cfg.Certificates.WatchDebounce > 0 {
			wc.DebounceInterval = cfg.Certificates.WatchDebounce
		}

		watcher, err := certstore.NewWatcher(wc, nil)
		if err != nil {
			return fmt.Errorf("failed to create certificate watcher: %w", err)
		}

		done := make(chan struct{})
		e.watcher = watcher
		e.watchDone = done

		go func() {
			defer close(done)
			err := watcher.Watch(runCtx, func() error {
				e.Rescan("watch")
				return nil
			})
			if err != nil {
				e.logger.Error("certificate watcher exited", "error", err)
			}
		}()
	}

	if cfg.Certificates.RescanSchedule != "" {
		scheduler := certstore.NewScheduler(store, cfg.Certificates.RescanSchedule)
		scheduler.AfterRescan = e.recordBuild
		if err := scheduler.Start(runCtx); err != nil {
			return fmt.Errorf("failed to start rescan scheduler: %w", err)
		}
		e.scheduler = scheduler
	}

	return nil
}

// stopBackground tears down the watcher and scheduler. The watcher is
// recreated on restart, so both references are cleared here.
func (e *Engine) stopBackground() {
	e.mu.Lock()
	watcher, done, scheduler := e.watcher, e.watchDone, e.scheduler
	e.watcher, e.watchDone, e.scheduler = nil, nil, nil
	e.mu.Unlock()

	if scheduler != nil {
		scheduler.Stop()
	}

	if watcher != nil {
		if err := watcher.Stop(); err != nil {
			e.logger.Debug("certificate watcher close failed", "error", err)
		}
		if done != nil {
			<-done
		}
	}
}

// ReloadConfiguration re-reads the configuration file the engine was
// given, rewires the resolver and builder against the fresh settings,
// restarts the background tasks, and rebuilds the index wholesale.
// Reloading when nothing changed is safe; the new snapshot simply
// matches the old one.
//
// Without a configuration path the components are rewired against the
// configuration already in hand, which picks up in-place mutations
// made by tests or embedding callers.
func (e *Engine) ReloadConfiguration() error {
	e.reloadMu.Lock()
	defer e.reloadMu.Unlock()

	e.mu.RLock()
	cfg := e.cfg
	e.mu.RUnlock()

	if e.cfgPath != "" {
		if err := config.ReloadConfig(e.cfgPath); err != nil {
			return fmt.Errorf("failed to reload configuration: %w", err)
		}
		cfg = config.GetConfig()
	}

	e.mu.Lock()
	store, resolver, builder := e.buildComponents(cfg, e.store)
	e.cfg, e.store, e.resolver, e.builder = cfg, store, resolver, builder
	restart := e.running
	e.mu.Unlock()

	if restart {
		e.stopBackground()
		if err := e.startBackground(); err != nil {
			return err
		}
	}

	idx := e.Rescan("reload")
	e.logger.Info("configuration reloaded",
		"root", idx.Root,
		"certificates", idx.Len(),
		"skipped", idx.Skipped(),
	)

	e.notifySubscribers(cfg)
	return nil
}

// OnReload registers a callback invoked after each successful
// ReloadConfiguration. Subscriptions last for the engine's lifetime.
func (e *Engine) OnReload(fn func(*config.Config)) {
	if fn == nil {
		return
	}

	e.subMu.Lock()
	e.subscribers = append(e.subscribers, fn)
	e.subMu.Unlock()
}

func (e *Engine) notifySubscribers(cfg *config.Config) {
	e.subMu.Lock()
	subscribers := make([]func(*config.Config), len(e.subscribers))
	copy(subscribers, e.subscribers)
	e.subMu.Unlock()

	for _, fn := range subscribers {
		fn(cfg)
	}
}
