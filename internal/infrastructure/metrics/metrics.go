package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/iho/creditledger/internal/domain"
)

const namespace = "creditledger"

// Metrics holds the reconciliation Prometheus metrics and implements
// usecase.MetricsRecorder.
type Metrics struct {
	// Single-user reconciliation metrics
	Reconciliations        *prometheus.CounterVec
	ReconciliationDuration prometheus.Histogram

	// Bulk run metrics
	BulkRuns           *prometheus.CounterVec
	BulkRunDuration    prometheus.Histogram
	BulkLastRunUsers   *prometheus.GaugeVec
	BulkLastRunSuccess prometheus.Gauge
}

// New creates the metrics and registers them with reg. A nil reg uses the
// default Prometheus registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		Reconciliations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconciliations_total",
				Help:      "Total number of user reconciliations by outcome",
			},
			[]string{"outcome"},
		),
		ReconciliationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reconciliation_duration_seconds",
			Help:      "Duration of single-user reconciliations",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),

		BulkRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bulk_runs_total",
				Help:      "Total number of bulk reconciliation runs by status",
			},
			[]string{"status"},
		),
		BulkRunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bulk_run_duration_seconds",
			Help:      "Duration of bulk reconciliation runs",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		BulkLastRunUsers: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "bulk_last_run_users",
				Help:      "User counts of the most recent bulk run",
			},
			[]string{"kind"},
		),
		BulkLastRunSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bulk_last_run_timestamp_seconds",
			Help:      "Unix time the most recent bulk run finished",
		}),
	}
}

// ObserveReconciliation records one user reconciliation.
func (m *Metrics) ObserveReconciliation(outcome string, duration time.Duration) {
	m.Reconciliations.WithLabelValues(outcome).Inc()
	m.ReconciliationDuration.Observe(duration.Seconds())
}

// ObserveBulkRun records the aggregates of a finished bulk run.
func (m *Metrics) ObserveBulkRun(result *domain.BulkReconciliationResult) {
	status := "completed"
	if result.Cancelled {
		status = "cancelled"
	}

	m.BulkRuns.WithLabelValues(status).Inc()
	m.BulkRunDuration.Observe(float64(result.ProcessingTimeMs) / 1000)

	m.BulkLastRunUsers.WithLabelValues("processed").Set(float64(result.ProcessedCount))
	m.BulkLastRunUsers.WithLabelValues("updated").Set(float64(result.UpdatedCount))
	m.BulkLastRunUsers.WithLabelValues("inconsistent").Set(float64(result.InconsistencyCount))
	m.BulkLastRunUsers.WithLabelValues("errors").Set(float64(result.ErrorCount))
	m.BulkLastRunSuccess.SetToCurrentTime()
}
