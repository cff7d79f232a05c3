package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/iho/creditledger/internal/domain"
)

func TestNewRegistersMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()

	m := New(registry)

	if m.Reconciliations == nil || m.BulkRuns == nil || m.BulkLastRunUsers == nil {
		t.Fatalf("expected key metrics to be initialized: %+v", m)
	}

	m.ObserveReconciliation("updated", 10*time.Millisecond)

	metricFamilies, err := registry.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	if len(metricFamilies) == 0 {
		t.Fatalf("expected registered metrics, got none")
	}
}

func TestObserveReconciliation(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveReconciliation("updated", 5*time.Millisecond)
	m.ObserveReconciliation("updated", 7*time.Millisecond)
	m.ObserveReconciliation(string(domain.CodeTooFrequent), time.Millisecond)

	if got := testutil.ToFloat64(m.Reconciliations.WithLabelValues("updated")); got != 2 {
		t.Fatalf("expected 2 updated reconciliations, got %v", got)
	}
	if got := testutil.ToFloat64(m.Reconciliations.WithLabelValues("too_frequent")); got != 1 {
		t.Fatalf("expected 1 too_frequent reconciliation, got %v", got)
	}
	if got := testutil.CollectAndCount(m.ReconciliationDuration); got != 1 {
		t.Fatalf("expected duration histogram to be collected, got %d", got)
	}
}

func TestObserveBulkRun(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveBulkRun(&domain.BulkReconciliationResult{
		ProcessedCount:     9,
		UpdatedCount:       3,
		InconsistencyCount: 4,
		ErrorCount:         1,
		ProcessingTimeMs:   1500,
	})
	m.ObserveBulkRun(&domain.BulkReconciliationResult{Cancelled: true})

	if got := testutil.ToFloat64(m.BulkRuns.WithLabelValues("completed")); got != 1 {
		t.Fatalf("expected 1 completed run, got %v", got)
	}
	if got := testutil.ToFloat64(m.BulkRuns.WithLabelValues("cancelled")); got != 1 {
		t.Fatalf("expected 1 cancelled run, got %v", got)
	}
	if got := testutil.ToFloat64(m.BulkLastRunUsers.WithLabelValues("processed")); got != 0 {
		t.Fatalf("expected last run gauge to reflect the latest run, got %v", got)
	}
	if got := testutil.ToFloat64(m.BulkLastRunSuccess); got == 0 {
		t.Fatalf("expected last run timestamp to be set")
	}
}
