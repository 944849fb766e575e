package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collectors shared by the server ingestion path, the override authorizer,
// and the terminal-side sync engine.
var (
	SyncPushTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_push_total",
			Help: "Queued transactions pushed to the server, by result",
		},
		[]string{"result"}, // synced | failed
	)

	SyncDuplicateTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_duplicate_total",
			Help: "Submissions short-circuited by the idempotency lookup",
		},
	)

	OverrideAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "override_attempts_total",
			Help: "Manager override attempts, by outcome",
		},
		[]string{"outcome"}, // granted | not_privileged | locked | invalid_pin
	)

	ConnectivityState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "terminal_connectivity_state",
			Help: "Terminal connectivity: 2 online, 1 degraded, 0 offline",
		},
	)

	PendingQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "terminal_pending_queue_depth",
			Help: "Unsynced records waiting in the local queue",
		},
	)

	IngestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ingest_duration_seconds",
			Help:    "Duration of the offline-sale ingestion unit of work",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Register installs all collectors on the default registry. Call once at
// process start.
func Register() {
	prometheus.MustRegister(
		SyncPushTotal,
		SyncDuplicateTotal,
		OverrideAttemptsTotal,
		ConnectivityState,
		PendingQueueDepth,
		IngestDuration,
	)
}
