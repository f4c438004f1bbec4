/*
Package inventory keeps a history of certificate observations.

# Overview

Each index build can be recorded as a set of observation rows, one per
discovered certificate file, tagged with the build's ID and capture
time. The in-memory index only ever holds the present; the inventory
answers questions about the past, and powers reporting commands
without forcing a rescan.

	store, err := inventory.Open(nil)
	if err != nil { ... }
	defer store.Close()

	store.RecordBuild(ctx, index)
	expiring, err := store.ExpiringWithin(ctx, 30*24*time.Hour)

Storage is a single SQLite file; retention pruning runs after each
recorded build, dropping observations older than the configured
window.
*/
package inventory
