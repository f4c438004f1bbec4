package main

import (
	"os"
	"path/filepath"
	"testing"

	"mercator-hq/callisto/internal/certtest"
	"mercator-hq/callisto/pkg/certstore"
)

func TestScanCommand(t *testing.T) {
	dir := t.TempDir()
	certsDir := filepath.Join(dir, "certs")
	if err := os.MkdirAll(certsDir, 0755); err != nil {
		t.Fatalf("failed to create certs dir: %v", err)
	}
	certtest.WritePair(t, certsDir, "a.example.com", certtest.GenerateForHost(t, "a.example.com"))
	certtest.WritePair(t, certsDir, "b.example.com", certtest.GenerateForHost(t, "b.example.com"))

	cfgPath := writeTestConfig(t, dir, "certificates:\n  root: certs\n")
	useTestConfig(t, cfgPath)

	tests := []struct {
		name   string
		root   string
		format string
	}{
		{name: "text format", format: "text"},
		{name: "json format", format: "json"},
		{name: "root override", root: t.TempDir(), format: "text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scanFlags.root = tt.root
			scanFlags.format = tt.format

			if err := scanCertificates(nil, nil); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestBuildScanReport(t *testing.T) {
	certsDir := t.TempDir()
	certPath := certtest.WritePair(t, certsDir, "a.example.com", certtest.GenerateForHost(t, "a.example.com"))
	certtest.WritePair(t, certsDir, "stale.example.com", certtest.GenerateExpired(t, "stale.example.com"))

	store := certstore.NewStore(certsDir)
	idx := store.Rebuild("test")

	report := buildScanReport(idx)

	if report.Root != certsDir {
		t.Errorf("expected root %s, got %s", certsDir, report.Root)
	}
	if report.BuildID == "" {
		t.Error("expected a build ID")
	}
	if report.Certificates != 1 {
		t.Errorf("expected 1 certificate, got %d", report.Certificates)
	}
	if report.Skipped != 1 {
		t.Errorf("expected the expired certificate to be skipped, got %d", report.Skipped)
	}
	if len(report.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(report.Entries))
	}

	entry := report.Entries[0]
	if entry.Path != certPath {
		t.Errorf("expected path %s, got %s", certPath, entry.Path)
	}
	scopes, ok := entry.Identities["a.example.com"]
	if !ok {
		t.Fatalf("expected an identity for a.example.com, got %v", entry.Identities)
	}
	if len(scopes) != 1 || scopes[0] != "*" {
		t.Errorf("expected the wildcard scope, got %v", scopes)
	}
	if entry.ExpiresInDays < 0 {
		t.Errorf("expected a future expiry, got %d days", entry.ExpiresInDays)
	}
}
