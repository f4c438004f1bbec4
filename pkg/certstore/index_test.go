package certstore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"mercator-hq/callisto/internal/certtest"
)

func TestStore_Build_IndexesConventionLayouts(t *testing.T) {
	root := t.TempDir()
	certtest.WritePair(t, root, "example.com", certtest.GenerateForHost(t, "example.com"))
	certtest.WriteFullchain(t, root, "chat.example.com", certtest.GenerateForHost(t, "chat.example.com"))
	// Combined bundles are resolved by convention, never indexed.
	certtest.WriteCombined(t, root, "example.net", certtest.GenerateForHost(t, "example.net"))

	store := NewStore(root)
	idx := store.Index()

	if idx.Len() != 2 {
		t.Fatalf("expected 2 indexed certificates, got %d", idx.Len())
	}

	identities := idx.Identities()
	want := []string{"chat.example.com", "example.com"}
	if len(identities) != len(want) {
		t.Fatalf("expected identities %v, got %v", want, identities)
	}
	for i, identity := range want {
		if identities[i] != identity {
			t.Errorf("expected identity %q at position %d, got %q", identity, i, identities[i])
		}
	}

	paths := idx.Lookup("example.com")
	if len(paths) != 1 {
		t.Fatalf("expected 1 file covering example.com, got %d", len(paths))
	}
	for path, scopes := range paths {
		if filepath.Base(path) != "example.com.crt" {
			t.Errorf("expected example.com.crt, got %q", path)
		}
		if !scopes.Has("anything") {
			t.Errorf("expected wildcard scope to cover any service")
		}
	}
}

func TestStore_Build_SkipsInvalidCertificates(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, root string)
	}{
		{
			name: "expired certificate",
			setup: func(t *testing.T, root string) {
				certtest.WritePair(t, root, "old.example.com", certtest.GenerateExpired(t, "old.example.com"))
			},
		},
		{
			name: "not yet valid certificate",
			setup: func(t *testing.T, root string) {
				kp := certtest.Generate(t, certtest.Options{
					CommonName: "future.example.com",
					DNSNames:   []string{"future.example.com"},
					NotBefore:  time.Now().Add(24 * time.Hour),
					NotAfter:   time.Now().Add(48 * time.Hour),
				})
				certtest.WritePair(t, root, "future.example.com", kp)
			},
		},
		{
			name: "file without certificate header",
			setup: func(t *testing.T, root string) {
				if err := os.WriteFile(filepath.Join(root, "garbage.crt"), []byte("not a certificate\n"), 0644); err != nil {
					t.Fatal(err)
				}
			},
		},
		{
			name: "header but malformed body",
			setup: func(t *testing.T, root string) {
				content := "-----BEGIN CERTIFICATE-----\n!!!!\n-----END CERTIFICATE-----\n"
				if err := os.WriteFile(filepath.Join(root, "broken.crt"), []byte(content), 0644); err != nil {
					t.Fatal(err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			certtest.WritePair(t, root, "good.example.com", certtest.GenerateForHost(t, "good.example.com"))
			tt.setup(t, root)

			idx := NewStore(root).Index()

			if idx.Len() != 1 {
				t.Errorf("expected only the valid certificate indexed, got %d", idx.Len())
			}
			if idx.Skipped() != 1 {
				t.Errorf("expected 1 skipped file, got %d", idx.Skipped())
			}
			if idx.Lookup("good.example.com") == nil {
				t.Errorf("expected good.example.com to stay indexed")
			}
		})
	}
}

func TestStore_Build_DepthLimit(t *testing.T) {
	root := t.TempDir()
	certtest.WritePair(t, root, "top.example.com", certtest.GenerateForHost(t, "top.example.com"))
	certtest.WriteFullchain(t, root, "deep.example.com", certtest.GenerateForHost(t, "deep.example.com"))

	tests := []struct {
		name  string
		depth int
		want  int
	}{
		{name: "zero depth disables traversal", depth: 0, want: 0},
		{name: "depth one sees only root files", depth: 1, want: 1},
		{name: "depth two reaches fullchain directories", depth: 2, want: 2},
		{name: "default depth reaches both", depth: DefaultDepthLimit, want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := NewStore(root, WithDepth(tt.depth)).Index()
			if idx.Len() != tt.want {
				t.Errorf("expected %d certificates at depth %d, got %d", tt.want, tt.depth, idx.Len())
			}
		})
	}
}

func TestStore_Build_SkipsHiddenDirectories(t *testing.T) {
	root := t.TempDir()
	hidden := filepath.Join(root, ".archive")
	if err := os.MkdirAll(hidden, 0755); err != nil {
		t.Fatal(err)
	}
	certtest.WritePair(t, hidden, "secret.example.com", certtest.GenerateForHost(t, "secret.example.com"))
	certtest.WritePair(t, root, "visible.example.com", certtest.GenerateForHost(t, "visible.example.com"))

	idx := NewStore(root).Index()

	if idx.Len() != 1 {
		t.Fatalf("expected 1 certificate, got %d", idx.Len())
	}
	if idx.Lookup("secret.example.com") != nil {
		t.Errorf("expected hidden directory contents to stay out of the index")
	}
}

func TestStore_Build_MissingRoot(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "does-not-exist"))

	idx := store.Index()

	if idx.Len() != 0 {
		t.Errorf("expected empty index for missing root, got %d entries", idx.Len())
	}
}

func TestStore_LazyBuildAndInvalidate(t *testing.T) {
	root := t.TempDir()
	certtest.WritePair(t, root, "first.example.com", certtest.GenerateForHost(t, "first.example.com"))

	store := NewStore(root)
	before := store.Index()
	if before.Len() != 1 {
		t.Fatalf("expected 1 certificate, got %d", before.Len())
	}

	certtest.WritePair(t, root, "second.example.com", certtest.GenerateForHost(t, "second.example.com"))

	cached := store.Index()
	if cached.ID != before.ID {
		t.Errorf("expected cached snapshot before invalidation, got a new build")
	}
	if cached.Len() != 1 {
		t.Errorf("expected snapshot to stay immutable, got %d entries", cached.Len())
	}

	store.Invalidate()
	after := store.Index()
	if after.ID == before.ID {
		t.Errorf("expected a fresh build after invalidation")
	}
	if after.Len() != 2 {
		t.Errorf("expected 2 certificates after rebuild, got %d", after.Len())
	}
}

func TestStore_Rebuild_KeepsReadersConsistent(t *testing.T) {
	root := t.TempDir()
	certtest.WritePair(t, root, "example.com", certtest.GenerateForHost(t, "example.com"))

	store := NewStore(root)
	first := store.Index()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			idx := store.Index()
			if idx.Lookup("example.com") == nil {
				t.Error("reader observed an index missing example.com")
				return
			}
		}
	}()

	for i := 0; i < 10; i++ {
		store.Rebuild("demand")
	}
	<-done

	if store.Index().ID == first.ID {
		t.Errorf("expected rebuilds to produce new snapshots")
	}
}

func TestStore_Build_SRVScopes(t *testing.T) {
	root := t.TempDir()
	kp := certtest.Generate(t, certtest.Options{
		CommonName: "example.com",
		DNSNames:   []string{"example.com"},
		SRVNames:   []string{"_xmpp-server.example.com"},
	})
	certtest.WritePair(t, root, "example.com", kp)

	idx := NewStore(root).Index()

	paths := idx.Lookup("example.com")
	if len(paths) != 1 {
		t.Fatalf("expected 1 file covering example.com, got %d", len(paths))
	}
	for _, scopes := range paths {
		if !scopes["xmpp-server"] {
			t.Errorf("expected explicit xmpp-server scope, got %v", scopes.List())
		}
	}
}

func TestIndex_ExpiringWithin(t *testing.T) {
	root := t.TempDir()
	soon := certtest.Generate(t, certtest.Options{
		CommonName: "soon.example.com",
		DNSNames:   []string{"soon.example.com"},
		NotAfter:   time.Now().Add(5 * 24 * time.Hour),
	})
	later := certtest.Generate(t, certtest.Options{
		CommonName: "later.example.com",
		DNSNames:   []string{"later.example.com"},
		NotAfter:   time.Now().Add(300 * 24 * time.Hour),
	})
	certtest.WritePair(t, root, "soon.example.com", soon)
	certtest.WritePair(t, root, "later.example.com", later)

	idx := NewStore(root).Index()

	expiring := idx.ExpiringWithin(30 * 24 * time.Hour)
	if len(expiring) != 1 {
		t.Fatalf("expected 1 expiring certificate, got %d", len(expiring))
	}
	if _, ok := expiring[0].Identities["soon.example.com"]; !ok {
		t.Errorf("expected soon.example.com to be the expiring entry")
	}
}
