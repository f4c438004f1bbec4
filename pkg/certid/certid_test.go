package certid

import (
	"strings"
	"testing"
	"time"

	"mercator-hq/callisto/internal/certtest"
)

func TestParseCertificatePEM(t *testing.T) {
	kp := certtest.GenerateForHost(t, "example.com")

	tests := []struct {
		name        string
		data        []byte
		expectError bool
	}{
		{
			name:        "valid certificate",
			data:        kp.CertPEM,
			expectError: false,
		},
		{
			name:        "key before certificate",
			data:        append(append([]byte{}, kp.KeyPEM...), kp.CertPEM...),
			expectError: false,
		},
		{
			name:        "key only",
			data:        kp.KeyPEM,
			expectError: true,
		},
		{
			name:        "garbage",
			data:        []byte("not a pem file\n"),
			expectError: true,
		},
		{
			name:        "empty",
			data:        nil,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cert, err := ParseCertificatePEM(tt.data)
			if tt.expectError {
				if err == nil {
					t.Errorf("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cert.Subject.CommonName != "example.com" {
				t.Errorf("expected CN example.com, got %q", cert.Subject.CommonName)
			}
		})
	}
}

func TestParseChainPEM(t *testing.T) {
	first := certtest.GenerateForHost(t, "a.example.com")
	second := certtest.GenerateForHost(t, "b.example.com")

	bundle := append(append([]byte{}, first.CertPEM...), second.CertPEM...)
	chain, err := ParseChainPEM(bundle)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chain) != 2 {
		t.Fatalf("expected 2 certificates, got %d", len(chain))
	}
	if chain[0].Subject.CommonName != "a.example.com" {
		t.Errorf("expected leaf first, got %q", chain[0].Subject.CommonName)
	}

	if _, err := ParseChainPEM([]byte("nothing here")); err == nil {
		t.Error("expected error for data without certificates")
	}
}

func TestValidAt(t *testing.T) {
	now := time.Now()
	kp := certtest.Generate(t, certtest.Options{
		CommonName: "example.com",
		DNSNames:   []string{"example.com"},
		NotBefore:  now.Add(-time.Hour),
		NotAfter:   now.Add(time.Hour),
	})

	tests := []struct {
		name  string
		at    time.Time
		valid bool
	}{
		{name: "inside window", at: now, valid: true},
		{name: "before window", at: now.Add(-2 * time.Hour), valid: false},
		{name: "after window", at: now.Add(2 * time.Hour), valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidAt(kp.Leaf, tt.at); got != tt.valid {
				t.Errorf("ValidAt() = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	valid := certtest.GenerateForHost(t, "example.com")
	if err := Validate(valid.Leaf); err != nil {
		t.Errorf("unexpected error for valid certificate: %v", err)
	}

	expired := certtest.GenerateExpired(t, "example.com")
	err := Validate(expired.Leaf)
	if err == nil {
		t.Fatal("expected error for expired certificate")
	}
	if !strings.Contains(err.Error(), "expired") {
		t.Errorf("expected expiry error, got: %v", err)
	}
}

func TestCheckExpiry(t *testing.T) {
	longLived := certtest.Generate(t, certtest.Options{
		CommonName: "example.com",
		DNSNames:   []string{"example.com"},
		NotAfter:   time.Now().AddDate(1, 0, 0),
	})
	days, warning := CheckExpiry(longLived.Leaf)
	if days < 300 {
		t.Errorf("expected > 300 days until expiry, got %d", days)
	}
	if warning != "" {
		t.Errorf("unexpected warning: %s", warning)
	}

	expiring := certtest.Generate(t, certtest.Options{
		CommonName: "example.com",
		DNSNames:   []string{"example.com"},
		NotAfter:   time.Now().Add(5 * 24 * time.Hour),
	})
	days, warning = CheckExpiry(expiring.Leaf)
	if days > 5 {
		t.Errorf("expected at most 5 days until expiry, got %d", days)
	}
	if warning == "" {
		t.Error("expected expiry warning")
	}
}

func TestExtractInfo(t *testing.T) {
	kp := certtest.Generate(t, certtest.Options{
		CommonName: "example.com",
		DNSNames:   []string{"example.com"},
		SRVNames:   []string{"_xmpp-server.example.com"},
	})

	info := ExtractInfo(kp.Leaf)
	if info == nil {
		t.Fatal("expected non-nil info")
	}
	if info.Subject == "" {
		t.Error("expected subject to be set")
	}
	if len(info.DNSNames) != 1 || info.DNSNames[0] != "example.com" {
		t.Errorf("unexpected DNS names: %v", info.DNSNames)
	}
	if len(info.SRVNames) != 1 || info.SRVNames[0] != "_xmpp-server.example.com" {
		t.Errorf("unexpected SRV names: %v", info.SRVNames)
	}
	if info.NotAfter.Before(info.NotBefore) {
		t.Error("NotAfter should be after NotBefore")
	}
}
