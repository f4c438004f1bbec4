package main

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"mercator-hq/callisto/internal/certtest"
	"mercator-hq/callisto/pkg/tlsconfig"
)

func TestContextCommand(t *testing.T) {
	dir := t.TempDir()
	certsDir := filepath.Join(dir, "certs")
	if err := os.MkdirAll(certsDir, 0755); err != nil {
		t.Fatalf("failed to create certs dir: %v", err)
	}
	certtest.WritePair(t, certsDir, "a.example.com", certtest.GenerateForHost(t, "a.example.com"))

	cfgPath := writeTestConfig(t, dir, "certificates:\n  root: certs\n")
	useTestConfig(t, cfgPath)

	tests := []struct {
		name     string
		identity string
		mode     string
		format   string
		wantErr  bool
	}{
		{
			name:     "server context",
			identity: "a.example.com",
			mode:     "server",
			format:   "text",
		},
		{
			name:     "json format",
			identity: "a.example.com",
			mode:     "server",
			format:   "json",
		},
		{
			name:     "client context",
			identity: "a.example.com",
			mode:     "client",
			format:   "text",
		},
		{
			name:     "invalid mode",
			identity: "a.example.com",
			mode:     "sideways",
			wantErr:  true,
		},
		{
			name:     "server context without credentials",
			identity: "missing.example.com",
			mode:     "server",
			format:   "text",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			contextFlags.mode = tt.mode
			contextFlags.format = tt.format

			err := buildContextDryRun(nil, []string{tt.identity})

			if tt.wantErr && err == nil {
				t.Error("expected error but got none")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestContextCommand_HostOverrideWithoutKey(t *testing.T) {
	dir := t.TempDir()
	certsDir := filepath.Join(dir, "certs")
	if err := os.MkdirAll(certsDir, 0755); err != nil {
		t.Fatalf("failed to create certs dir: %v", err)
	}

	// A certificate referenced only through the host's option layer, so
	// no key is discovered alongside it.
	pair := certtest.GenerateForHost(t, "orphan.example.com")
	certPath := filepath.Join(dir, "orphan.crt")
	if err := os.WriteFile(certPath, pair.CertPEM, 0644); err != nil {
		t.Fatalf("failed to write certificate: %v", err)
	}

	cfgPath := writeTestConfig(t, dir, fmt.Sprintf(
		"certificates:\n  root: certs\nhosts:\n  orphan.example.com:\n    tls:\n      certificate: %q\n",
		certPath,
	))
	useTestConfig(t, cfgPath)

	contextFlags.mode = "server"
	contextFlags.format = "text"

	if err := buildContextDryRun(nil, []string{"orphan.example.com"}); err == nil {
		t.Error("expected a certificate without a key to fail in server mode")
	}
}

func TestMaskedOptions(t *testing.T) {
	masked := maskedOptions(tlsconfig.Layer{
		"password": "hunter2",
		"protocol": "tlsv1_2",
	})

	if masked["password"] != "(set)" {
		t.Errorf("expected the password to be masked, got %v", masked["password"])
	}
	if masked["protocol"] != "tlsv1_2" {
		t.Errorf("expected other options to pass through, got %v", masked["protocol"])
	}
}

func TestRenderOptionValue(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{name: "string", value: "tlsv1_2", want: "tlsv1_2"},
		{name: "bool", value: true, want: "true"},
		{name: "int", value: 2, want: "2"},
		{name: "slice", value: []string{"a", "b"}, want: `["a","b"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := renderOptionValue(tt.value); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
