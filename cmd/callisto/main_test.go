package main

import (
	"os"
	"path/filepath"
	"testing"

	"mercator-hq/callisto/pkg/config"
)

// writeTestConfig writes body as a YAML configuration file under dir
// and returns its path.
func writeTestConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "callisto.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

// useTestConfig loads path and installs it as the process
// configuration. config.Initialize is once-per-process, so commands
// under test pick the configuration up through the singleton rather
// than a fresh load.
func useTestConfig(t *testing.T, path string) *config.Config {
	t.Helper()
	cfg, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config %s: %v", path, err)
	}
	cfgFile = path
	config.SetConfig(cfg)
	t.Cleanup(func() { config.SetConfig(nil) })
	return cfg
}
