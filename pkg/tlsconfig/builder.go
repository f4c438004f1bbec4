package tlsconfig

import (
	"crypto/tls"
	"log/slog"
	"regexp"
	"strconv"
	"sync"
	"time"

	"mercator-hq/callisto/pkg/certstore"
	"mercator-hq/callisto/pkg/config"
	"mercator-hq/callisto/pkg/telemetry/metrics"
)

// serviceIdentity recognizes service identities of the form
// "<service> port <port>", as opposed to plain hostnames.
var serviceIdentity = regexp.MustCompile(`^(\S+) port (\d+)$`)

// pathOptions are the option keys whose values name files or
// directories and resolve relative to the configuration directory.
var pathOptions = []string{"key", "certificate", "cafile", "capath", "dhparam"}

// CredentialFinder locates certificate and key pairs for hosts and
// services. *certstore.Resolver implements it.
type CredentialFinder interface {
	FindForHost(host string) (*certstore.CredentialPair, bool)
	FindForService(service string, port int) (*certstore.CredentialPair, bool)
}

// Context is an allocated TLS context plus the auxiliary material the
// connection layer needs alongside it.
type Context struct {
	// Config is the allocated TLS configuration, ready to hand to a
	// listener or dialer.
	Config *tls.Config

	// DHParams supplies the PEM-encoded DH parameters configured for
	// this context. Nil when none were configured.
	DHParams func() []byte

	host string
	mode Mode
}

// Host returns the identity the context was built for.
func (c *Context) Host() string {
	return c.host
}

// Mode returns the handshake side the context serves.
func (c *Context) Mode() Mode {
	return c.mode
}

// Builder assembles TLS contexts by merging option layers, resolving
// credentials through the finder, and handing the result to the
// provider. A Builder is safe for concurrent use.
type Builder struct {
	cfg         *config.Config
	finder      CredentialFinder
	provider    Provider
	providerSet bool
	caps        Capabilities
	logger      *slog.Logger
	metrics     *metrics.Collector

	dhMu    sync.Mutex
	dhCache map[string]*DHParams
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithProvider substitutes the TLS provider. Passing nil models a
// stack without encryption support.
func WithProvider(p Provider) BuilderOption {
	return func(b *Builder) {
		b.provider = p
		b.providerSet = true
	}
}

// WithLogger sets the builder's logger.
func WithLogger(logger *slog.Logger) BuilderOption {
	return func(b *Builder) {
		b.logger = logger
	}
}

// WithMetrics attaches a metrics collector.
func WithMetrics(collector *metrics.Collector) BuilderOption {
	return func(b *Builder) {
		b.metrics = collector
	}
}

// NewBuilder creates a Builder over the given configuration and
// credential finder. The standard crypto/tls provider is used unless
// an option substitutes it.
func NewBuilder(cfg *config.Config, finder CredentialFinder, opts ...BuilderOption) *Builder {
	if cfg == nil {
		cfg = &config.Config{}
	}
	b := &Builder{
		cfg:     cfg,
		finder:  finder,
		dhCache: make(map[string]*DHParams),
	}

	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.Default().With("component", "tlsconfig")
	}
	if !b.providerSet {
		b.provider = NewStandardProvider(b.logger)
	}
	if b.provider != nil {
		b.caps = b.provider.Capabilities()
	}
	return b
}

// BuildContext builds a TLS context for the identity. The identity is
// a hostname, or "<service> port <port>" for service contexts.
//
// Option layers apply in order: built-in defaults, discovered
// credentials, mode fixup, the global tls configuration section, then
// the caller overrides in reverse order, so the earliest-listed
// override has the final say.
//
// The resolved configuration is returned alongside both success and
// failure so callers can inspect what was applied. On failure the
// error is a *Diagnostic.
func (b *Builder) BuildContext(identity string, mode Mode, overrides ...Layer) (*Context, *ResolvedConfig, error) {
	start := time.Now()
	ctx, resolved, err := b.buildContext(identity, mode, overrides...)
	status := "success"
	if err != nil {
		status = "error"
	}
	if b.metrics != nil {
		b.metrics.RecordContextBuild(string(mode), status, time.Since(start))
	}
	return ctx, resolved, err
}

func (b *Builder) buildContext(host string, mode Mode, overrides ...Layer) (*Context, *ResolvedConfig, error) {
	merged := defaultsLayer(b.caps)
	merge(merged, b.credentialsLayer(host))
	merge(merged, b.modeLayer(host, mode))
	merge(merged, Layer(b.cfg.TLS))
	for i := len(overrides) - 1; i >= 0; i-- {
		merge(merged, overrides[i])
	}

	b.resolvePaths(merged)

	resolved := &ResolvedConfig{Host: host, Mode: mode, Options: merged}

	if err := b.checkCredentials(resolved); err != nil {
		return nil, resolved, err
	}

	dh, err := b.dhparams(resolved)
	if err != nil {
		return nil, resolved, Translate(host, err)
	}

	if b.provider == nil {
		return nil, resolved, &Diagnostic{
			Host:    host,
			Reason:  ReasonInternal,
			Message: "encryption support not found",
		}
	}

	tlsCfg, err := b.provider.NewContext(resolved)
	if err != nil {
		return nil, resolved, Translate(host, err)
	}

	if err := b.provider.ApplyCipherList(tlsCfg, resolved); err != nil {
		return nil, resolved, Translate(host, err)
	}

	ctx := &Context{Config: tlsCfg, host: host, mode: mode}
	if dh != nil {
		ctx.DHParams = dh.Supplier()
	}
	return ctx, resolved, nil
}

// credentialsLayer locates credentials for the identity. Absent
// credentials contribute nothing; later layers may still supply them.
func (b *Builder) credentialsLayer(host string) Layer {
	if b.finder == nil {
		return nil
	}

	var pair *certstore.CredentialPair
	var found bool
	if m := serviceIdentity.FindStringSubmatch(host); m != nil {
		port, err := strconv.Atoi(m[2])
		if err != nil {
			return nil
		}
		pair, found = b.finder.FindForService(m[1], port)
	} else {
		pair, found = b.finder.FindForHost(host)
	}
	if !found {
		return nil
	}
	return Layer{
		"certificate": pair.Certificate,
		"key":         pair.Key,
	}
}

// modeLayer carries the handshake side and the default password
// callback. The callback runs only if an encrypted key is met with no
// configured password: it logs the problem and returns nothing, so the
// build fails cleanly instead of blocking on a prompt.
func (b *Builder) modeLayer(host string, mode Mode) Layer {
	return Layer{
		"mode": string(mode),
		"password": func() string {
			b.logger.Error("encrypted key requires a configured password", "host", host)
			return ""
		},
	}
}

// resolvePaths resolves path-bearing options against the configuration
// directory. Non-string values for these keys are dropped.
func (b *Builder) resolvePaths(merged Layer) {
	for _, key := range pathOptions {
		value, ok := merged[key]
		if !ok {
			continue
		}
		s, ok := value.(string)
		if !ok {
			b.logger.Debug("dropping non-string path option", "option", key)
			delete(merged, key)
			continue
		}
		merged[key] = b.cfg.ResolvePath(s)
	}
}

// checkCredentials enforces the server-side credential rules: a
// certificate without a key is fatal, no certificate at all is fine
// because SNI may supply one per connection.
func (b *Builder) checkCredentials(rc *ResolvedConfig) error {
	if rc.Mode != ModeServer {
		return nil
	}

	cert, _ := rc.String("certificate")
	key, _ := rc.String("key")

	if cert == "" {
		b.logger.Info("no certificate present in TLS configuration, SNI will be required", "host", rc.Host)
		return nil
	}
	if key == "" {
		return &Diagnostic{
			Host:    rc.Host,
			File:    "key",
			Reason:  ReasonMissing,
			Message: "no key present in TLS configuration",
		}
	}
	return nil
}

// dhparams loads the configured DH parameter file, reusing a previous
// load of the same path. The file is read and validated at build time
// so a bad path fails the build rather than the first handshake.
func (b *Builder) dhparams(rc *ResolvedConfig) (*DHParams, error) {
	path, ok := rc.String("dhparam")
	if !ok || path == "" {
		return nil, nil
	}

	b.dhMu.Lock()
	defer b.dhMu.Unlock()
	if dh, ok := b.dhCache[path]; ok {
		return dh, nil
	}
	dh, err := loadDHParams(path)
	if err != nil {
		return nil, err
	}
	b.dhCache[path] = dh
	return dh, nil
}
