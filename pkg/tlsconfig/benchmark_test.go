package tlsconfig

import (
	"testing"

	"mercator-hq/callisto/internal/certtest"
)

func BenchmarkBuildContext_Server(b *testing.B) {
	cfg := builderConfig(b)
	certtest.WritePair(b, cfg.CertRoot(), "example.com", certtest.GenerateForHost(b, "example.com"))
	builder := newTestBuilder(cfg)
	builder.BuildContext("example.com", ModeServer) // prime the index

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		builder.BuildContext("example.com", ModeServer)
	}
}

func BenchmarkBuildContext_ClientNoCredentials(b *testing.B) {
	builder := newTestBuilder(builderConfig(b))
	builder.BuildContext("example.com", ModeClient)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		builder.BuildContext("example.com", ModeClient)
	}
}

func BenchmarkMerge(b *testing.B) {
	overlay := Layer{
		"protocol": "tlsv1_2",
		"options":  map[string]any{"no_ticket": true},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		base := defaultsLayer(standardCapabilities())
		merge(base, overlay)
	}
}
