package certstore

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mercator-hq/callisto/pkg/certid"
	"mercator-hq/callisto/pkg/config"
	"mercator-hq/callisto/pkg/telemetry/metrics"
)

// CredentialPair is a matched certificate and key on disk. When the
// certificate file also holds the key (a combined bundle), both paths
// are the same.
type CredentialPair struct {
	Certificate string
	Key         string
}

// Combined reports whether certificate and key live in the same file.
func (p *CredentialPair) Combined() bool {
	return p.Certificate == p.Key
}

// Resolver finds credentials for hosts and services using the
// certificate index, per-host and per-service configuration, and
// filesystem naming conventions.
//
// Absence is not an error: hosts without certificates are normal in a
// multi-tenant deployment, so lookups report found or not found and
// leave policy to the caller.
type Resolver struct {
	store  *Store
	cfg    *config.Config
	logger *slog.Logger

	metrics *metrics.Collector
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithResolverLogger sets the logger lookups use.
func WithResolverLogger(logger *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// WithResolverMetrics attaches a metrics collector to record lookup
// counts and latency.
func WithResolverMetrics(collector *metrics.Collector) ResolverOption {
	return func(r *Resolver) {
		r.metrics = collector
	}
}

// NewResolver creates a resolver over the given store and configuration.
func NewResolver(store *Store, cfg *config.Config, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		store:  store,
		cfg:    cfg,
		logger: slog.Default().With("component", "resolver"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FindForHost locates credentials for a host name.
//
// For the host and then each parent domain in turn, the resolver
// checks the certificate index for a file covering the name for any
// service, then probes the naming conventions against the per-host
// certificate override or, absent one, the global certificate root.
// The first level that yields both a certificate and a key wins.
func (r *Resolver) FindForHost(host string) (*CredentialPair, bool) {
	start := time.Now()
	pair := r.findForHost(NormalizeHost(host))
	r.record("host", pair, time.Since(start))
	if pair == nil {
		return nil, false
	}
	return pair, true
}

func (r *Resolver) findForHost(host string) *CredentialPair {
	for name := host; name != ""; name = parentDomain(name) {
		if pair := r.fromIndex(name, certid.Wildcard); pair != nil {
			return pair
		}

		base := r.cfg.CertRoot()
		if override := r.cfg.HostCertificate(name); override != "" {
			base = override
		}
		if pair := r.matchConventions(base, name); pair != nil {
			r.logger.Debug("resolved credentials by convention",
				"host", host,
				"matched_name", name,
				"certificate", pair.Certificate,
				"key", pair.Key,
			)
			return pair
		}
	}
	return nil
}

// FindForService locates credentials for a service, such as an
// SRV-advertised listener, on a given port.
//
// The index is scanned for any certificate scoped to the service (or
// to all services); failing that, the per-service configuration is
// consulted, preferring an entry for the exact port over the service's
// default.
func (r *Resolver) FindForService(service string, port int) (*CredentialPair, bool) {
	start := time.Now()
	pair := r.findForService(strings.ToLower(service), port)
	r.record("service", pair, time.Since(start))
	if pair == nil {
		return nil, false
	}
	return pair, true
}

func (r *Resolver) findForService(service string, port int) *CredentialPair {
	idx := r.store.Index()
	for _, identity := range idx.Identities() {
		for path, scopes := range idx.Lookup(identity) {
			if !scopes.Has(service) {
				continue
			}
			if pair := r.matchConventions(path, identity); pair != nil {
				r.logger.Debug("resolved service credentials from index",
					"service", service,
					"port", port,
					"identity", identity,
					"certificate", pair.Certificate,
				)
				return pair
			}
		}
	}

	if override := r.cfg.ServiceCertificate(service, port); override != "" {
		if pair := r.matchConventions(override, service); pair != nil {
			r.logger.Debug("resolved service credentials from configuration",
				"service", service,
				"port", port,
				"certificate", pair.Certificate,
			)
			return pair
		}
	}
	return nil
}

// fromIndex resolves an indexed identity to credentials. Each file
// covering the identity for the given service scope is fed to the
// convention matcher as the leading candidate, so its key path is
// derived rather than assumed.
func (r *Resolver) fromIndex(identity, service string) *CredentialPair {
	for path, scopes := range r.store.Lookup(identity) {
		if !scopes.Has(service) {
			continue
		}
		if pair := r.matchConventions(path, identity); pair != nil {
			r.logger.Debug("resolved credentials from index",
				"identity", identity,
				"certificate", pair.Certificate,
				"key", pair.Key,
			)
			return pair
		}
	}
	return nil
}

// matchConventions probes the certificate naming conventions for base
// and name. Candidates are tried in order: the base path itself,
// <name>.crt beside a <name>.key, a <name>/fullchain.pem directory
// with privkey.pem, and a combined <name>.pem holding both. The first
// candidate where certificate and key both exist as regular files
// wins.
func (r *Resolver) matchConventions(base, name string) *CredentialPair {
	for _, certPath := range conventionCandidates(base, name) {
		if !isRegularFile(certPath) {
			continue
		}
		keyPath := deriveKeyPath(certPath)
		if keyPath != certPath && !isRegularFile(keyPath) {
			continue
		}
		return &CredentialPair{Certificate: certPath, Key: keyPath}
	}
	return nil
}

func conventionCandidates(base, name string) []string {
	return []string{
		base,
		filepath.Join(base, name+".crt"),
		filepath.Join(base, name, "fullchain.pem"),
		filepath.Join(base, name+".pem"),
	}
}

// deriveKeyPath maps a certificate path to its expected key path. A
// .crt file pairs with .key, a fullchain.pem with privkey.pem in the
// same directory, and anything else is treated as a combined bundle
// expected to contain the key alongside the certificate.
func deriveKeyPath(certPath string) string {
	if strings.HasSuffix(certPath, ".crt") {
		return strings.TrimSuffix(certPath, ".crt") + ".key"
	}
	if filepath.Base(certPath) == "fullchain.pem" {
		return filepath.Join(filepath.Dir(certPath), "privkey.pem")
	}
	return certPath
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// NormalizeHost lowercases a host name and strips surrounding space
// and any trailing dot, matching how indexed identities are stored.
func NormalizeHost(host string) string {
	return strings.ToLower(strings.TrimSuffix(strings.TrimSpace(host), "."))
}

// parentDomain strips the leftmost label. It returns the empty string
// once no parent remains.
func parentDomain(name string) string {
	_, rest, found := strings.Cut(name, ".")
	if !found {
		return ""
	}
	return rest
}

func (r *Resolver) record(kind string, pair *CredentialPair, duration time.Duration) {
	if r.metrics == nil {
		return
	}
	result := "not_found"
	if pair != nil {
		result = "found"
	}
	r.metrics.RecordLookup(kind, result, duration)
}
