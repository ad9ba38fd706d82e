package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for StableCore.
type Metrics struct {
	// --- Engine operations ---
	OpsApplied  *prometheus.CounterVec
	OpsRejected *prometheus.CounterVec
	OpDuration  *prometheus.HistogramVec

	// --- Liquidation ---
	Liquidations prometheus.Counter

	// --- Oracle ---
	OracleFailures *prometheus.CounterVec

	// --- Records pipeline ---
	RecordsEmitted   *prometheus.CounterVec
	RecordsDropped   prometheus.Counter
	RecordsPersisted prometheus.Counter
	PersistErrors    *prometheus.CounterVec
	PersistBatchDur  prometheus.Histogram
	PersistBatchSize prometheus.Histogram

	// --- HTTP API ---
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	opBuckets := []float64{
		0.00001, 0.000025, 0.00005, 0.0001, 0.00025,
		0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	return &Metrics{
		OpsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stable_engine_operations_applied_total",
			Help: "State-changing operations committed by the engine",
		}, []string{"operation"}),

		OpsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stable_engine_operations_rejected_total",
			Help: "Operations aborted and rolled back, by reason",
		}, []string{"operation", "reason"}),

		OpDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stable_engine_operation_duration_seconds",
			Help:    "Time to execute one engine operation",
			Buckets: opBuckets,
		}, []string{"operation"}),

		Liquidations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stable_engine_liquidations_total",
			Help: "Liquidations committed",
		}),

		OracleFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stable_oracle_failures_total",
			Help: "Valuations rejected by the price guard (stale/invalid/unknown)",
		}, []string{"reason"}),

		RecordsEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stable_records_emitted_total",
			Help: "Operation records emitted by the engine",
		}, []string{"kind"}),

		RecordsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stable_records_publish_drops_total",
			Help: "Records dropped due to full outbound publish channel",
		}),

		RecordsPersisted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stable_records_persisted_total",
			Help: "Records written to Postgres",
		}),

		PersistErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stable_persist_errors_total",
			Help: "Persistence errors",
		}, []string{"error_type"}),

		PersistBatchDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "stable_persist_batch_duration_seconds",
			Help:    "Postgres batch write duration",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		PersistBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "stable_persist_batch_size",
			Help:    "Records per batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),

		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stable_http_requests_total",
			Help: "HTTP API requests",
		}, []string{"endpoint", "status"}),

		HTTPDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stable_http_request_duration_seconds",
			Help:    "HTTP API request latency",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"endpoint"}),
	}
}
