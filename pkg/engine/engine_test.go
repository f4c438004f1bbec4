package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mercator-hq/callisto/internal/certtest"
	"mercator-hq/callisto/pkg/config"
	"mercator-hq/callisto/pkg/tlsconfig"
)

func engineConfig(t testing.TB) *config.Config {
	t.Helper()
	base := t.TempDir()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.BaseDir = base
	cfg.Certificates.Root = filepath.Join(base, "certs")
	cfg.Certificates.RescanSchedule = ""
	if err := os.MkdirAll(cfg.Certificates.Root, 0755); err != nil {
		t.Fatalf("failed to create cert root: %v", err)
	}
	return cfg
}

func newTestEngine(t testing.TB, cfg *config.Config, opts ...Option) *Engine {
	t.Helper()
	eng, err := New(cfg, opts...)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	return eng
}

func TestNew_RequiresConfiguration(t *testing.T) {
	config.SetConfig(nil)

	if _, err := New(nil); err == nil {
		t.Error("expected error without a configuration, got nil")
	}
}

func TestEngine_CreateContext(t *testing.T) {
	cfg := engineConfig(t)
	certPath := certtest.WritePair(t, cfg.CertRoot(), "example.com", certtest.GenerateForHost(t, "example.com"))
	eng := newTestEngine(t, cfg)

	ctx, resolved, err := eng.CreateContext("example.com", tlsconfig.ModeServer)
	if err != nil {
		t.Fatalf("failed to build context: %v", err)
	}
	if ctx == nil || ctx.Config == nil {
		t.Fatal("expected a context, got nil")
	}
	if len(ctx.Config.Certificates) != 1 {
		t.Errorf("expected 1 certificate in context, got %d", len(ctx.Config.Certificates))
	}
	if got, _ := resolved.String("certificate"); got != certPath {
		t.Errorf("expected resolved certificate %q, got %q", certPath, got)
	}
}

func TestEngine_FindCertificateForHost(t *testing.T) {
	cfg := engineConfig(t)
	certPath := certtest.WritePair(t, cfg.CertRoot(), "example.com", certtest.GenerateForHost(t, "example.com"))
	eng := newTestEngine(t, cfg)

	pair, ok := eng.FindCertificateForHost("example.com")
	if !ok {
		t.Fatal("expected credentials for example.com, got none")
	}
	if pair.Certificate != certPath {
		t.Errorf("expected certificate %q, got %q", certPath, pair.Certificate)
	}

	if _, ok := eng.FindCertificateForHost("missing.example.org"); ok {
		t.Error("expected no credentials for unknown host")
	}
}

func TestEngine_FindCertificateForService(t *testing.T) {
	cfg := engineConfig(t)
	certtest.WritePair(t, cfg.CertRoot(), "example.com", certtest.GenerateForHost(t, "example.com"))
	eng := newTestEngine(t, cfg)

	// A plain DNS certificate carries the wildcard scope, so any
	// service on the host is covered.
	if _, ok := eng.FindCertificateForService("https", 443); !ok {
		t.Error("expected service credentials, got none")
	}
}

func TestEngine_Rescan_SwapsSnapshot(t *testing.T) {
	cfg := engineConfig(t)
	eng := newTestEngine(t, cfg)

	before := eng.Index()
	if before.Len() != 0 {
		t.Fatalf("expected empty initial index, got %d entries", before.Len())
	}

	certtest.WritePair(t, cfg.CertRoot(), "example.com", certtest.GenerateForHost(t, "example.com"))
	after := eng.Rescan("demand")

	if after.Len() != 1 {
		t.Errorf("expected 1 entry after rescan, got %d", after.Len())
	}
	if after.ID == before.ID {
		t.Error("expected rescan to produce a new snapshot")
	}
	if eng.Index().ID != after.ID {
		t.Error("expected Index to return the fresh snapshot")
	}
}

func TestEngine_StartStop(t *testing.T) {
	cfg := engineConfig(t)
	certtest.WritePair(t, cfg.CertRoot(), "example.com", certtest.GenerateForHost(t, "example.com"))
	eng := newTestEngine(t, cfg)

	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("failed to start engine: %v", err)
	}
	t.Cleanup(eng.Stop)

	if got := eng.Index().Len(); got != 1 {
		t.Errorf("expected initial build with 1 certificate, got %d", got)
	}

	if err := eng.Start(context.Background()); err == nil {
		t.Error("expected error on second Start, got nil")
	}

	eng.Stop()
	eng.Stop() // Safe to repeat.
}

func TestEngine_StartWithWatcher(t *testing.T) {
	cfg := engineConfig(t)
	cfg.Certificates.Watch = true
	cfg.Certificates.WatchDebounce = 50 * time.Millisecond
	eng := newTestEngine(t, cfg)

	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("failed to start engine: %v", err)
	}
	t.Cleanup(eng.Stop)

	if got := eng.Index().Len(); got != 0 {
		t.Fatalf("expected empty initial index, got %d entries", got)
	}

	certtest.WritePair(t, cfg.CertRoot(), "late.example.com", certtest.GenerateForHost(t, "late.example.com"))

	deadline := time.Now().Add(5 * time.Second)
	for eng.Index().Len() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("expected watcher to rebuild the index, timed out")
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func TestEngine_Start_RecordsInventory(t *testing.T) {
	cfg := engineConfig(t)
	cfg.Inventory.Enabled = true
	certtest.WritePair(t, cfg.CertRoot(), "example.com", certtest.GenerateForHost(t, "example.com"))
	eng := newTestEngine(t, cfg)
	t.Cleanup(eng.Stop)

	inv := eng.Inventory()
	if inv == nil {
		t.Fatal("expected an inventory, got nil")
	}

	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("failed to start engine: %v", err)
	}
	eng.Rescan("demand")

	history, err := inv.History(context.Background(), 10)
	if err != nil {
		t.Fatalf("failed to read build history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 recorded builds, got %d", len(history))
	}
	for _, build := range history {
		if build.Certificates != 1 {
			t.Errorf("expected 1 certificate in build %s, got %d", build.BuildID, build.Certificates)
		}
	}
}

func TestEngine_InventoryDisabledByDefault(t *testing.T) {
	cfg := engineConfig(t)
	eng := newTestEngine(t, cfg)

	if eng.Inventory() != nil {
		t.Error("expected no inventory when disabled")
	}
}

func TestEngine_ReloadConfiguration_RewiresComponents(t *testing.T) {
	cfg := engineConfig(t)
	certtest.WritePair(t, cfg.CertRoot(), "old.example.com", certtest.GenerateForHost(t, "old.example.com"))
	eng := newTestEngine(t, cfg)

	notified := 0
	eng.OnReload(func(_ *config.Config) { notified++ })

	newRoot := filepath.Join(cfg.BaseDir, "certs2")
	if err := os.MkdirAll(newRoot, 0755); err != nil {
		t.Fatal(err)
	}
	certtest.WritePair(t, newRoot, "new.example.com", certtest.GenerateForHost(t, "new.example.com"))
	cfg.Certificates.Root = newRoot

	if err := eng.ReloadConfiguration(); err != nil {
		t.Fatalf("failed to reload: %v", err)
	}

	if notified != 1 {
		t.Errorf("expected 1 reload notification, got %d", notified)
	}
	if eng.Index().Root != newRoot {
		t.Errorf("expected index rooted at %q, got %q", newRoot, eng.Index().Root)
	}
	if _, ok := eng.FindCertificateForHost("new.example.com"); !ok {
		t.Error("expected credentials from the new root")
	}
	if _, ok := eng.FindCertificateForHost("old.example.com"); ok {
		t.Error("expected old root to be out of service after reload")
	}

	// Reloading again with nothing changed is safe.
	if err := eng.ReloadConfiguration(); err != nil {
		t.Fatalf("second reload failed: %v", err)
	}
	if notified != 2 {
		t.Errorf("expected 2 reload notifications, got %d", notified)
	}
}

func TestEngine_ReloadConfiguration_FromFile(t *testing.T) {
	base := t.TempDir()
	for _, dir := range []string{"certs1", "certs2"} {
		if err := os.MkdirAll(filepath.Join(base, dir), 0755); err != nil {
			t.Fatal(err)
		}
	}
	certtest.WritePair(t, filepath.Join(base, "certs1"), "one.example.com", certtest.GenerateForHost(t, "one.example.com"))
	certtest.WritePair(t, filepath.Join(base, "certs2"), "two.example.com", certtest.GenerateForHost(t, "two.example.com"))

	cfgFile := filepath.Join(base, "callisto.yaml")
	writeConfig := func(root string) {
		t.Helper()
		content := "certificates:\n  root: " + root + "\n"
		if err := os.WriteFile(cfgFile, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	writeConfig("certs1")
	t.Cleanup(func() { config.SetConfig(nil) })

	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	eng := newTestEngine(t, cfg, WithConfigPath(cfgFile))

	if _, ok := eng.FindCertificateForHost("one.example.com"); !ok {
		t.Fatal("expected credentials from certs1 before reload")
	}

	writeConfig("certs2")
	if err := eng.ReloadConfiguration(); err != nil {
		t.Fatalf("failed to reload from file: %v", err)
	}

	if _, ok := eng.FindCertificateForHost("two.example.com"); !ok {
		t.Error("expected credentials from certs2 after reload")
	}
	if _, ok := eng.FindCertificateForHost("one.example.com"); ok {
		t.Error("expected certs1 to be out of service after reload")
	}
}

func TestEngine_ReloadConfiguration_KeepsOldConfigOnFailure(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "certs")
	if err := os.MkdirAll(root, 0755); err != nil {
		t.Fatal(err)
	}
	certtest.WritePair(t, root, "keep.example.com", certtest.GenerateForHost(t, "keep.example.com"))

	cfgFile := filepath.Join(base, "callisto.yaml")
	if err := os.WriteFile(cfgFile, []byte("certificates:\n  root: certs\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { config.SetConfig(nil) })

	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	eng := newTestEngine(t, cfg, WithConfigPath(cfgFile))

	// Negative depth fails validation, so the reload must not take.
	if err := os.WriteFile(cfgFile, []byte("certificates:\n  root: certs\n  depth_limit: -1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := eng.ReloadConfiguration(); err == nil {
		t.Fatal("expected reload to fail on invalid configuration")
	}

	if _, ok := eng.FindCertificateForHost("keep.example.com"); !ok {
		t.Error("expected engine to keep serving from the old configuration")
	}
}
