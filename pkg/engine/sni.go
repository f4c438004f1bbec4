package engine

import (
	"crypto/tls"
	"strings"
	"sync"
)

// sniCacheLimit bounds one snapshot's cache. SNI names arrive from the
// network, so negative entries in particular must not grow without
// bound.
const sniCacheLimit = 512

// sniCache memoizes SNI lookups against one index snapshot. A rebuild
// produces a fresh cache, so entries never outlive the build they were
// resolved from.
type sniCache struct {
	buildID string

	mu     sync.RWMutex
	certs  map[string]*tls.Certificate
	misses map[string]struct{}
}

func newSNICache(buildID string) *sniCache {
	return &sniCache{
		buildID: buildID,
		certs:   make(map[string]*tls.Certificate),
		misses:  make(map[string]struct{}),
	}
}

// lookup reports a cached certificate, a cached miss, or neither.
func (c *sniCache) lookup(name string) (cert *tls.Certificate, hit, miss bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if cert, ok := c.certs[name]; ok {
		return cert, true, false
	}
	if _, ok := c.misses[name]; ok {
		return nil, false, true
	}
	return nil, false, false
}

// remember records the outcome of one resolution. A nil certificate
// records a miss.
func (c *sniCache) remember(name string, cert *tls.Certificate) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Flush wholesale once full. Trees hold few certificates in
	// practice, so anything that fills the cache is junk names.
	if len(c.certs)+len(c.misses) >= sniCacheLimit {
		c.certs = make(map[string]*tls.Certificate)
		c.misses = make(map[string]struct{})
	}

	if cert != nil {
		c.certs[name] = cert
	} else {
		c.misses[name] = struct{}{}
	}
}

// GetCertificate resolves the SNI name from a client hello against the
// certificate index. It satisfies the tls.Config GetCertificate
// contract; returning (nil, nil) lets the listener fall back to its
// statically configured certificates rather than failing the
// handshake.
func (e *Engine) GetCertificate(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
	if hello == nil || hello.ServerName == "" {
		e.recordSNI("no_sni")
		return nil, nil
	}
	name := strings.ToLower(strings.TrimSuffix(hello.ServerName, "."))

	e.mu.RLock()
	store, resolver := e.store, e.resolver
	e.mu.RUnlock()

	idx := store.Index()
	cache := e.sni.Load()
	if cache == nil || cache.buildID != idx.ID {
		// A concurrent swap over the same snapshot is harmless; one
		// fresh cache wins and the other is collected.
		cache = newSNICache(idx.ID)
		e.sni.Store(cache)
	}

	if cert, hit, miss := cache.lookup(name); hit {
		e.recordSNI("hit")
		return cert, nil
	} else if miss {
		e.recordSNI("unknown")
		return nil, nil
	}

	pair, ok := resolver.FindForHost(name)
	if !ok {
		cache.remember(name, nil)
		e.recordSNI("unknown")
		return nil, nil
	}

	cert, err := tls.LoadX509KeyPair(pair.Certificate, pair.Key)
	if err != nil {
		e.logger.Error("failed to load certificate for SNI name",
			"name", name,
			"certificate", pair.Certificate,
			"error", err,
		)
		e.recordSNI("error")
		return nil, nil
	}

	cache.remember(name, &cert)
	e.recordSNI("resolved")
	return &cert, nil
}

func (e *Engine) recordSNI(result string) {
	if e.metrics != nil {
		e.metrics.RecordSNIRequest(result)
	}
}
