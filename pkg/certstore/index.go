package certstore

import (
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"mercator-hq/callisto/pkg/certid"
	"mercator-hq/callisto/pkg/telemetry/metrics"

	"github.com/google/uuid"
)

// expiringSoonWindow is how close to NotAfter a certificate counts as
// expiring soon, matching the resolver's renewal warning horizon.
const expiringSoonWindow = 30 * 24 * time.Hour

// DefaultDepthLimit bounds the directory walk below the store root.
const DefaultDepthLimit = 3

// Entry describes one certificate file in the index.
type Entry struct {
	// Path is the absolute path of the certificate file.
	Path string

	// Identities maps each name the certificate asserts to the
	// service scopes it grants for that name.
	Identities map[string]certid.ScopeSet

	NotBefore time.Time
	NotAfter  time.Time
}

// ExpiresWithin reports whether the entry's certificate expires inside
// the given window from now.
func (e Entry) ExpiresWithin(window time.Duration) bool {
	return time.Until(e.NotAfter) <= window
}

// Index is an immutable snapshot of the certificates found under the
// store root. Lookups against a snapshot are safe from any goroutine;
// rebuilds produce a new snapshot rather than mutating this one.
type Index struct {
	// ID identifies this build for logs and inventory records.
	ID string

	// BuiltAt is when the walk started.
	BuiltAt time.Time

	// Duration is how long the walk and parsing took.
	Duration time.Duration

	// Root is the directory the walk covered.
	Root string

	// byIdentity maps lowercase identity -> certificate path -> scopes.
	byIdentity map[string]map[string]certid.ScopeSet

	entries []Entry
	skipped int
}

// Lookup returns the certificate files covering an identity, keyed by
// path, with the service scopes each file grants. The identity must
// already be lowercase. Returns nil when nothing covers it.
func (idx *Index) Lookup(identity string) map[string]certid.ScopeSet {
	return idx.byIdentity[identity]
}

// Entries returns every indexed certificate file.
func (idx *Index) Entries() []Entry {
	return idx.entries
}

// Identities returns all indexed identities, sorted.
func (idx *Index) Identities() []string {
	out := make([]string, 0, len(idx.byIdentity))
	for identity := range idx.byIdentity {
		out = append(out, identity)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of indexed certificate files.
func (idx *Index) Len() int {
	return len(idx.entries)
}

// Skipped returns the number of candidate files excluded during the walk.
func (idx *Index) Skipped() int {
	return idx.skipped
}

// ExpiringWithin returns entries whose certificate expires inside the
// given window, soonest first.
func (idx *Index) ExpiringWithin(window time.Duration) []Entry {
	var out []Entry
	for _, e := range idx.entries {
		if e.ExpiresWithin(window) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].NotAfter.Before(out[j].NotAfter)
	})
	return out
}

// Store owns the current index snapshot and rebuilds it on demand.
//
// The zero value is not usable; create stores with NewStore. All
// methods are safe for concurrent use.
type Store struct {
	root   string
	depth  int
	logger *slog.Logger

	metrics *metrics.Collector

	current atomic.Pointer[Index]
	buildMu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithDepth sets the directory walk depth limit. A limit of 0 disables
// traversal entirely and every build produces an empty index.
func WithDepth(depth int) Option {
	return func(s *Store) {
		s.depth = depth
	}
}

// WithLogger sets the logger the store and its walker use.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithMetrics attaches a metrics collector. Builds then record their
// duration, size, and skip reasons.
func WithMetrics(collector *metrics.Collector) Option {
	return func(s *Store) {
		s.metrics = collector
	}
}

// NewStore creates a certificate store rooted at the given directory.
// Nothing is read until the first Index or Rebuild call.
func NewStore(root string, opts ...Option) *Store {
	s := &Store{
		root:   root,
		depth:  DefaultDepthLimit,
		logger: slog.Default().With("component", "certstore"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the directory the store scans.
func (s *Store) Root() string {
	return s.root
}

// Index returns the current snapshot, building one first if none
// exists. Use Rebuild to force a fresh walk.
func (s *Store) Index() *Index {
	if idx := s.current.Load(); idx != nil {
		return idx
	}
	return s.Rebuild("demand")
}

// Lookup returns the certificate files covering an identity in the
// current snapshot, building the index first if needed.
func (s *Store) Lookup(identity string) map[string]certid.ScopeSet {
	return s.Index().Lookup(identity)
}

// Invalidate discards the current snapshot. The next query builds a
// fresh one.
func (s *Store) Invalidate() {
	s.current.Store(nil)
	s.logger.Debug("certificate index invalidated")
}

// Rebuild walks the root and swaps in a fresh snapshot. The trigger
// names what caused the rebuild ("demand", "watch", "schedule",
// "reload", "scan") for logs and metrics. Concurrent rebuilds are
// serialized; readers keep the previous snapshot until the new one is
// ready.
func (s *Store) Rebuild(trigger string) *Index {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	start := time.Now()
	entries, skipped := s.scan()

	idx := &Index{
		ID:         uuid.New().String(),
		BuiltAt:    start,
		Duration:   time.Since(start),
		Root:       s.root,
		byIdentity: make(map[string]map[string]certid.ScopeSet),
		entries:    entries,
		skipped:    skipped,
	}

	for _, e := range entries {
		for identity, scopes := range e.Identities {
			paths := idx.byIdentity[identity]
			if paths == nil {
				paths = make(map[string]certid.ScopeSet)
				idx.byIdentity[identity] = paths
			}
			paths[e.Path] = scopes
		}
	}

	s.current.Store(idx)

	s.logger.Info("certificate index built",
		"build_id", idx.ID,
		"trigger", trigger,
		"root", s.root,
		"certificates", len(entries),
		"identities", len(idx.byIdentity),
		"skipped", skipped,
		"duration_ms", idx.Duration.Milliseconds(),
	)

	if s.metrics != nil {
		s.metrics.RecordIndexBuild(trigger, idx.Duration, len(entries), len(idx.byIdentity))
		s.recordExpiry(idx)
	}

	return idx
}

// recordExpiry refreshes per-host expiry gauges from a new snapshot.
// Each identity reports the soonest NotAfter among its files.
func (s *Store) recordExpiry(idx *Index) {
	s.metrics.ResetExpiry()

	soonest := make(map[string]time.Time)
	for _, e := range idx.entries {
		for identity := range e.Identities {
			if t, ok := soonest[identity]; !ok || e.NotAfter.Before(t) {
				soonest[identity] = e.NotAfter
			}
		}
	}
	for identity, notAfter := range soonest {
		s.metrics.ObserveExpiry(identity, notAfter)
	}

	s.metrics.SetExpiringSoon(len(idx.ExpiringWithin(expiringSoonWindow)))
}
