package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func BenchmarkCollector_RecordLookup(b *testing.B) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		collector.RecordLookup("host", "found", 80*time.Microsecond)
	}
}

func BenchmarkCollector_RecordContextBuild(b *testing.B) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		collector.RecordContextBuild("server", "success", time.Millisecond)
	}
}
