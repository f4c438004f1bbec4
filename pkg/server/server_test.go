package server

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mercator-hq/callisto/internal/certtest"
	"mercator-hq/callisto/pkg/config"
	"mercator-hq/callisto/pkg/engine"
	"mercator-hq/callisto/pkg/telemetry/health"
	"mercator-hq/callisto/pkg/telemetry/metrics"
)

func serverConfig(t testing.TB) *config.Config {
	t.Helper()
	base := t.TempDir()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.BaseDir = base
	cfg.Certificates.Root = filepath.Join(base, "certs")
	cfg.Certificates.RescanSchedule = ""
	cfg.Server.Enabled = true
	cfg.Server.ListenAddress = "127.0.0.1:0"
	if err := os.MkdirAll(cfg.Certificates.Root, 0755); err != nil {
		t.Fatalf("failed to create cert root: %v", err)
	}
	return cfg
}

func newEngine(t *testing.T, cfg *config.Config, opts ...engine.Option) *engine.Engine {
	t.Helper()
	eng, err := engine.New(cfg, opts...)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	return eng
}

// startServer runs Start in a goroutine and waits for the listener to
// come up. Shutdown happens in cleanup, and a failing Start fails the
// test.
func startServer(t *testing.T, cfg *config.Config, eng *engine.Engine, collector *metrics.Collector) *Server {
	t.Helper()
	srv := NewServer(cfg, eng, collector)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(context.Background()) }()

	deadline := time.Now().Add(5 * time.Second)
	for srv.Addr() == "" {
		select {
		case err := <-errCh:
			t.Fatalf("server exited before listening: %v", err)
		default:
		}
		if time.Now().After(deadline) {
			t.Fatal("server did not start listening in time")
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Cleanup(func() {
		srv.Stop()
		select {
		case err := <-errCh:
			if err != nil {
				t.Errorf("server exited with error: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("server did not shut down in time")
		}
	})

	return srv
}

func tlsClient(kp *certtest.KeyPair, serverName string) *http.Client {
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(kp.CertPEM)
	return &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{RootCAs: pool, ServerName: serverName},
		},
	}
}

func TestServer_HealthEndpoint(t *testing.T) {
	cfg := serverConfig(t)
	cfg.Server.DefaultHost = "status.example.com"
	kp := certtest.GenerateForHost(t, "status.example.com")
	certtest.WritePair(t, cfg.CertRoot(), "status.example.com", kp)

	eng := newEngine(t, cfg)
	srv := startServer(t, cfg, eng, nil)

	client := tlsClient(kp, "status.example.com")
	resp, err := client.Get("https://" + srv.Addr() + "/healthz")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}
	var got healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	if got.Status != "ok" {
		t.Errorf("expected status ok, got %q", got.Status)
	}
	if got.Certificates != 1 {
		t.Errorf("expected 1 certificate in index, got %d", got.Certificates)
	}
}

func TestServer_ReadinessEndpoint(t *testing.T) {
	cfg := serverConfig(t)
	cfg.Server.DefaultHost = "status.example.com"
	kp := certtest.GenerateForHost(t, "status.example.com")
	certtest.WritePair(t, cfg.CertRoot(), "status.example.com", kp)

	eng := newEngine(t, cfg)
	srv := startServer(t, cfg, eng, nil)

	client := tlsClient(kp, "status.example.com")
	ready := func() (int, health.Status) {
		t.Helper()
		resp, err := client.Get("https://" + srv.Addr() + "/readyz")
		if err != nil {
			t.Fatalf("readiness request failed: %v", err)
		}
		defer resp.Body.Close()
		var status health.Status
		if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
			t.Fatalf("failed to decode readiness response: %v", err)
		}
		return resp.StatusCode, status
	}

	code, status := ready()
	if code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", code)
	}
	if status.Status != "ready" {
		t.Errorf("expected readiness ready, got %q", status.Status)
	}
	if check, ok := status.Checks["certificate_root"]; !ok || check.Status != "ok" {
		t.Errorf("expected passing certificate_root check, got %+v", status.Checks)
	}

	// Probes read the live configuration, so losing the certificate root
	// degrades readiness without a restart. The listener itself keeps
	// serving from the contexts already in memory.
	if err := os.RemoveAll(cfg.CertRoot()); err != nil {
		t.Fatalf("failed to remove cert root: %v", err)
	}

	code, status = ready()
	if code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503 after losing cert root, got %d", code)
	}
	if status.Status != "degraded" {
		t.Errorf("expected readiness degraded, got %q", status.Status)
	}
	if check := status.Checks["certificate_root"]; check.Status != "unhealthy" {
		t.Errorf("expected failing certificate_root check, got %+v", check)
	}
}

func TestServer_SNISelectsPerHostCertificate(t *testing.T) {
	cfg := serverConfig(t)
	cfg.Server.DefaultHost = "a.example.com"
	kpA := certtest.GenerateForHost(t, "a.example.com")
	kpB := certtest.GenerateForHost(t, "b.example.com")
	certtest.WritePair(t, cfg.CertRoot(), "a.example.com", kpA)
	certtest.WritePair(t, cfg.CertRoot(), "b.example.com", kpB)

	eng := newEngine(t, cfg)
	srv := startServer(t, cfg, eng, nil)

	tests := []struct {
		name       string
		serverName string
		trust      *certtest.KeyPair
	}{
		{name: "default host", serverName: "a.example.com", trust: kpA},
		{name: "sni host", serverName: "b.example.com", trust: kpB},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := x509.NewCertPool()
			pool.AppendCertsFromPEM(tt.trust.CertPEM)

			conn, err := tls.Dial("tcp", srv.Addr(), &tls.Config{
				ServerName: tt.serverName,
				RootCAs:    pool,
			})
			if err != nil {
				t.Fatalf("handshake failed: %v", err)
			}
			defer conn.Close()

			leaf := conn.ConnectionState().PeerCertificates[0]
			if len(leaf.DNSNames) == 0 || leaf.DNSNames[0] != tt.serverName {
				t.Errorf("expected certificate for %q, got %v", tt.serverName, leaf.DNSNames)
			}
		})
	}
}

func TestServer_MetricsEndpoint(t *testing.T) {
	cfg := serverConfig(t)
	cfg.Server.DefaultHost = "status.example.com"
	cfg.Telemetry.Metrics.Enabled = true
	kp := certtest.GenerateForHost(t, "status.example.com")
	certtest.WritePair(t, cfg.CertRoot(), "status.example.com", kp)

	collector := metrics.NewCollector(&config.MetricsConfig{Enabled: true, Path: "/metrics"}, nil)
	eng := newEngine(t, cfg, engine.WithMetrics(collector))
	srv := startServer(t, cfg, eng, collector)

	client := tlsClient(kp, "status.example.com")
	resp, err := client.Get("https://" + srv.Addr() + "/metrics")
	if err != nil {
		t.Fatalf("metrics request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read metrics body: %v", err)
	}
	// Start builds the listener context, so a context build is already
	// on record.
	if !strings.Contains(string(body), "callisto_tls_context_builds_total") {
		t.Error("expected context build counter in metrics output")
	}
}

func TestServer_StartWithoutCredentials(t *testing.T) {
	cfg := serverConfig(t)

	eng := newEngine(t, cfg)
	srv := startServer(t, cfg, eng, nil)

	// The listener comes up SNI-only; a handshake that resolves no
	// certificate fails without taking the server down.
	_, err := tls.Dial("tcp", srv.Addr(), &tls.Config{
		ServerName:         "unknown.example.org",
		InsecureSkipVerify: true,
	})
	if err == nil {
		t.Fatal("expected handshake to fail without any certificates")
	}
	if !srv.IsRunning() {
		t.Error("expected server to keep running after failed handshake")
	}
}

func TestServer_StartTwice(t *testing.T) {
	cfg := serverConfig(t)
	certtest.WritePair(t, cfg.CertRoot(), "status.example.com", certtest.GenerateForHost(t, "status.example.com"))
	cfg.Server.DefaultHost = "status.example.com"

	eng := newEngine(t, cfg)
	srv := startServer(t, cfg, eng, nil)

	if err := srv.Start(context.Background()); err == nil {
		t.Error("expected error starting a running server")
	}
}

func TestServer_ReloadSwapsListenerCertificate(t *testing.T) {
	cfg := serverConfig(t)
	cfg.Server.DefaultHost = "status.example.com"
	first := certtest.GenerateForHost(t, "status.example.com")
	certtest.WritePair(t, cfg.CertRoot(), "status.example.com", first)

	eng := newEngine(t, cfg)
	srv := startServer(t, cfg, eng, nil)

	// Clients without SNI see the base certificate from the listener
	// context, so a reload must swap it.
	presented := func() *x509.Certificate {
		t.Helper()
		conn, err := tls.Dial("tcp", srv.Addr(), &tls.Config{InsecureSkipVerify: true})
		if err != nil {
			t.Fatalf("handshake failed: %v", err)
		}
		defer conn.Close()
		return conn.ConnectionState().PeerCertificates[0]
	}

	before := presented()
	if before.SerialNumber.Cmp(first.Leaf.SerialNumber) != 0 {
		t.Fatal("expected the first certificate before reload")
	}

	second := certtest.GenerateForHost(t, "status.example.com")
	certtest.WritePair(t, cfg.CertRoot(), "status.example.com", second)
	if err := eng.ReloadConfiguration(); err != nil {
		t.Fatalf("failed to reload: %v", err)
	}

	after := presented()
	if after.SerialNumber.Cmp(second.Leaf.SerialNumber) != 0 {
		t.Error("expected the renewed certificate after reload")
	}
}

func TestListenPort(t *testing.T) {
	tests := []struct {
		name    string
		address string
		want    int
	}{
		{name: "host and port", address: "127.0.0.1:9443", want: 9443},
		{name: "port only", address: ":8443", want: 8443},
		{name: "missing port", address: "localhost", want: 443},
		{name: "garbage port", address: "localhost:x", want: 443},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := listenPort(tt.address); got != tt.want {
				t.Errorf("expected port %d, got %d", tt.want, got)
			}
		})
	}
}
