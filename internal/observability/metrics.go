// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Collection metrics
	TransfersStored    prometheus.Counter
	SnapshotsStored    prometheus.Counter
	DuplicatesSkipped  *prometheus.CounterVec
	ExtractionErrors   *prometheus.CounterVec
	TimeseriesFlushed  prometheus.Counter

	// Backfill metrics
	BackfillChunksProcessed *prometheus.CounterVec
	BackfillPassDuration    prometheus.Histogram
	GapLedgersDetected      *prometheus.GaugeVec

	// Realtime metrics
	StreamEventsReceived prometheus.Counter
	CursorFlushes        prometheus.Counter
	ReconnectAttempts    prometheus.Counter
	SubscriberUp         prometheus.Gauge

	// Client metrics
	RPCCallLatency *prometheus.HistogramVec
	RPCCallErrors  *prometheus.CounterVec

	// Health metrics
	HighestLedgerSeen   prometheus.Gauge
	LastSuccessfulFlush prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "xrpl_amm_lab"
	}

	return &Metrics{
		// Collection metrics
		TransfersStored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collection",
			Name:      "transfers_stored_total",
			Help:      "Total number of transfer legs stored to database",
		}),
		SnapshotsStored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collection",
			Name:      "snapshots_stored_total",
			Help:      "Total number of pool snapshots stored to database",
		}),
		DuplicatesSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collection",
			Name:      "duplicates_skipped_total",
			Help:      "Total number of duplicate rows skipped by kind",
		}, []string{"kind"}),
		ExtractionErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collection",
			Name:      "extraction_errors_total",
			Help:      "Total number of extraction or storage errors by stage",
		}, []string{"stage"}),
		TimeseriesFlushed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collection",
			Name:      "timeseries_points_flushed_total",
			Help:      "Total number of timeseries points flushed to ClickHouse",
		}),

		// Backfill metrics
		BackfillChunksProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backfill",
			Name:      "chunks_processed_total",
			Help:      "Total number of backfill chunks processed by status",
		}, []string{"status"}),
		BackfillPassDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backfill",
			Name:      "pass_duration_seconds",
			Help:      "Backfill pass duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		GapLedgersDetected: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "backfill",
			Name:      "gap_ledgers",
			Help:      "Size of the last detected ledger gap per account",
		}, []string{"account"}),

		// Realtime metrics
		StreamEventsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "stream_events_received_total",
			Help:      "Total number of transaction events received from the stream",
		}),
		CursorFlushes: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "cursor_flushes_total",
			Help:      "Total number of cursor batch flushes",
		}),
		ReconnectAttempts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "reconnect_attempts_total",
			Help:      "Total number of websocket reconnect attempts",
		}),
		SubscriberUp: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "subscriber_up",
			Help:      "1 while the realtime subscriber is connected",
		}),

		// Client metrics
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "rpc_call_duration_seconds",
			Help:      "XRPL request duration in seconds by method",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		RPCCallErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "rpc_call_errors_total",
			Help:      "Total number of failed XRPL requests by method",
		}, []string{"method"}),

		// Health metrics
		HighestLedgerSeen: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "highest_ledger_seen",
			Help:      "Highest validated ledger index observed",
		}),
		LastSuccessfulFlush: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_flush_timestamp",
			Help:      "Unix timestamp of the last successful cursor flush",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordTransferStored increments the transfers stored counter.
func RecordTransferStored() {
	DefaultMetrics.TransfersStored.Inc()
}

// RecordSnapshotStored increments the snapshots stored counter.
func RecordSnapshotStored() {
	DefaultMetrics.SnapshotsStored.Inc()
}

// RecordDuplicateSkipped records a skipped duplicate row.
func RecordDuplicateSkipped(kind string) {
	DefaultMetrics.DuplicatesSkipped.WithLabelValues(kind).Inc()
}

// RecordExtractionError records an extraction or storage error.
func RecordExtractionError(stage string) {
	DefaultMetrics.ExtractionErrors.WithLabelValues(stage).Inc()
}

// RecordBackfillChunk records one processed backfill chunk.
func RecordBackfillChunk(status string) {
	DefaultMetrics.BackfillChunksProcessed.WithLabelValues(status).Inc()
}

// RecordGap updates the detected gap gauge for an account.
func RecordGap(account string, ledgers int64) {
	DefaultMetrics.GapLedgersDetected.WithLabelValues(account).Set(float64(ledgers))
}

// RecordReconnectAttempt increments the reconnect attempts counter.
func RecordReconnectAttempt() {
	DefaultMetrics.ReconnectAttempts.Inc()
}

// RecordRPCCall records an XRPL request's latency and outcome.
func RecordRPCCall(method string, seconds float64, err error) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
	if err != nil {
		DefaultMetrics.RPCCallErrors.WithLabelValues(method).Inc()
	}
}

// UpdateHighestLedger updates the highest ledger seen gauge.
func UpdateHighestLedger(ledger int64) {
	DefaultMetrics.HighestLedgerSeen.Set(float64(ledger))
}
