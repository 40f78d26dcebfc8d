package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewRegistersMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()

	m := New(registry)

	if m.EntriesCreated == nil || m.HTTPRequests == nil || m.AuditRecords == nil {
		t.Fatalf("expected key metrics to be initialized: %+v", m)
	}

	m.EntriesCreated.WithLabelValues("Loan").Inc()
	m.CacheHits.Inc()

	metricFamilies, err := registry.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	if len(metricFamilies) == 0 {
		t.Fatalf("expected registered metrics, got none")
	}

	if got := testutil.ToFloat64(m.EntriesCreated.WithLabelValues("Loan")); got != 1 {
		t.Fatalf("expected one loan counted, got %v", got)
	}
}

func TestNewWithSeparateRegistries(t *testing.T) {
	// Each registry gets its own collectors, so repeated construction must not panic.
	New(prometheus.NewRegistry())
	New(prometheus.NewRegistry())
}
