/*
Package certstore discovers certificates on disk and resolves them to
credentials for hosts and services.

# Overview

The certstore package implements three cooperating pieces:

  - Store: walks the certificate root, parses every certificate file it
    finds, and keeps an immutable Index snapshot mapping identities to
    the files that cover them
  - Resolver: answers "which certificate and key serve this host (or
    service)" using the index, per-host and per-service configuration,
    and filesystem naming conventions
  - Watcher and Scheduler: invalidate or rebuild the index when files
    change on disk or on a cron schedule

# Index

The index is built lazily on first use and rebuilt after invalidation.
Snapshots are immutable; concurrent readers always see a complete
index while a rebuild prepares the next one.

	store := certstore.NewStore("/etc/callisto/certs")
	idx := store.Index()
	for _, identity := range idx.Identities() {
	    ...
	}

# Resolution

Certificates are matched by naming convention. For a host name the
resolver probes, in order, the path itself, <name>.crt with <name>.key,
<name>/fullchain.pem with <name>/privkey.pem, and a combined <name>.pem
holding both certificate and key.

	resolver := certstore.NewResolver(store, cfg)
	pair, ok := resolver.FindForHost("chat.example.com")
	if ok {
	    ...use pair.Certificate and pair.Key
	}

Absence of a certificate is not an error. Hosts without credentials are
expected in a multi-tenant deployment; the resolver reports them as not
found and the caller decides what that means.
*/
package certstore
