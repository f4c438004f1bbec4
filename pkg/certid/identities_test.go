package certid

import (
	"reflect"
	"testing"

	"mercator-hq/callisto/internal/certtest"
)

func TestIdentities(t *testing.T) {
	tests := []struct {
		name string
		opts certtest.Options
		want map[string][]string
	}{
		{
			name: "dns names cover any service",
			opts: certtest.Options{
				CommonName: "example.com",
				DNSNames:   []string{"example.com", "www.example.com"},
			},
			want: map[string][]string{
				"example.com":     {"*"},
				"www.example.com": {"*"},
			},
		},
		{
			name: "srv names cover one service",
			opts: certtest.Options{
				CommonName: "example.com",
				DNSNames:   []string{"example.com"},
				SRVNames:   []string{"_xmpp-server.example.com", "_xmpp-client.example.com"},
			},
			want: map[string][]string{
				"example.com": {"*", "xmpp-client", "xmpp-server"},
			},
		},
		{
			name: "srv name for a different host",
			opts: certtest.Options{
				CommonName: "example.com",
				SRVNames:   []string{"_xmpp-server.conference.example.com"},
			},
			want: map[string][]string{
				"conference.example.com": {"xmpp-server"},
			},
		},
		{
			name: "common name fallback without sans",
			opts: certtest.Options{
				CommonName: "legacy.example.com",
			},
			want: map[string][]string{
				"legacy.example.com": {"*"},
			},
		},
		{
			name: "names are lowercased",
			opts: certtest.Options{
				CommonName: "Example.COM",
				DNSNames:   []string{"Example.COM"},
			},
			want: map[string][]string{
				"example.com": {"*"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kp := certtest.Generate(t, tt.opts)
			identities := Identities(kp.Leaf)

			got := make(map[string][]string, len(identities))
			for name, scopes := range identities {
				got[name] = scopes.List()
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Identities() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScopeSetHas(t *testing.T) {
	tests := []struct {
		name    string
		scopes  ScopeSet
		service string
		want    bool
	}{
		{name: "literal match", scopes: ScopeSet{"xmpp-server": true}, service: "xmpp-server", want: true},
		{name: "wildcard match", scopes: ScopeSet{Wildcard: true}, service: "xmpp-server", want: true},
		{name: "no match", scopes: ScopeSet{"xmpp-client": true}, service: "xmpp-server", want: false},
		{name: "empty set", scopes: ScopeSet{}, service: "xmpp-server", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.scopes.Has(tt.service); got != tt.want {
				t.Errorf("Has(%q) = %v, want %v", tt.service, got, tt.want)
			}
		})
	}
}

func TestSRVNames(t *testing.T) {
	kp := certtest.Generate(t, certtest.Options{
		CommonName: "example.com",
		DNSNames:   []string{"example.com"},
		SRVNames:   []string{"_xmpp-server.example.com"},
	})

	names := SRVNames(kp.Leaf)
	if len(names) != 1 || names[0] != "_xmpp-server.example.com" {
		t.Errorf("SRVNames() = %v, want [_xmpp-server.example.com]", names)
	}

	plain := certtest.GenerateForHost(t, "example.com")
	if names := SRVNames(plain.Leaf); len(names) != 0 {
		t.Errorf("expected no SRV names, got %v", names)
	}
}
