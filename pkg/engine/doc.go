/*
Package engine is the facade over certificate discovery, credential
resolution and TLS context construction.

# Overview

An Engine wires a certstore.Store, a certstore.Resolver and a
tlsconfig.Builder against one configuration and exposes the operations
connection code needs:

	eng, err := engine.New(cfg, engine.WithMetrics(collector))
	if err != nil {
		return err
	}
	if err := eng.Start(ctx); err != nil {
		return err
	}
	defer eng.Stop()

	tlsCtx, _, err := eng.CreateContext("example.com", tlsconfig.ModeServer)

Start performs the initial index build and launches the background
tasks the configuration enables: a filesystem watcher on the
certificate root and a cron-scheduled rescan. Every rebuild, whatever
triggered it, lands in the observation inventory when one is
configured.

# SNI

GetCertificate plugs straight into a tls.Config. It resolves the
server name through the resolver and memoizes outcomes, positive and
negative, in a small cache tied to the current index snapshot; a
rebuild swaps the snapshot and with it the cache, so stale answers
cannot survive a certificate deployment.

# Reloading

ReloadConfiguration re-reads the configuration file, rewires resolver
and builder, restarts the background tasks and rebuilds the index
wholesale. Subscribers registered with OnReload run after each
successful reload; the status server uses this to rebuild its own
listener context.
*/
package engine
