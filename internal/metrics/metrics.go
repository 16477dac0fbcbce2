package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SyncMetrics holds all Prometheus metrics for the reconciliation engine.
type SyncMetrics struct {
	TableSyncsTotal *prometheus.CounterVec
	RowsTotal       *prometheus.CounterVec
	SyncDuration    *prometheus.HistogramVec
	AuthCallsTotal  *prometheus.CounterVec
	QueueLength     prometheus.Gauge
}

// NewSyncMetrics initializes and registers the Prometheus metrics.
func NewSyncMetrics() *SyncMetrics {
	return &SyncMetrics{
		TableSyncsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "erpsync",
			Subsystem: "pipeline",
			Name:      "table_syncs_total",
			Help:      "Total number of table sync attempts by outcome.",
		}, []string{"entity", "outcome"}), // outcome: success, failure
		RowsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "erpsync",
			Subsystem: "pipeline",
			Name:      "rows_total",
			Help:      "Total number of reconciled rows by kind.",
		}, []string{"entity", "kind"}), // kind: inserted, updated, stale, skipped
		SyncDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "erpsync",
			Subsystem: "pipeline",
			Name:      "sync_duration_seconds",
			Help:      "Duration of table sync attempts.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"entity"}),
		AuthCallsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "erpsync",
			Subsystem: "auth",
			Name:      "calls_total",
			Help:      "Total number of ERP authentication calls by outcome.",
		}, []string{"outcome"}),
		QueueLength: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "erpsync",
			Subsystem: "scheduler",
			Name:      "queue_length",
			Help:      "Tenants currently waiting in the sync queue.",
		}),
	}
}

// ObserveTableSync records the outcome of one table sync attempt.
func (m *SyncMetrics) ObserveTableSync(entity string, success bool, durationSeconds float64, inserted, updated, stale, skipped int) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.TableSyncsTotal.WithLabelValues(entity, outcome).Inc()
	m.SyncDuration.WithLabelValues(entity).Observe(durationSeconds)
	m.RowsTotal.WithLabelValues(entity, "inserted").Add(float64(inserted))
	m.RowsTotal.WithLabelValues(entity, "updated").Add(float64(updated))
	m.RowsTotal.WithLabelValues(entity, "stale").Add(float64(stale))
	m.RowsTotal.WithLabelValues(entity, "skipped").Add(float64(skipped))
}
