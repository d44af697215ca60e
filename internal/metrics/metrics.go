package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "melodex_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "melodex_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "melodex_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Store metrics
var (
	StoreOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "melodex_store_operations_total",
			Help: "Total number of key-value store operations",
		},
		[]string{"operation", "status"},
	)

	StoreOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "melodex_store_operation_duration_seconds",
			Help:    "Key-value store operation duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	StoreBatchCommits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "melodex_store_batch_commits_total",
			Help: "Total number of bounded batch commits",
		},
	)

	StoreConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "melodex_store_connections_open",
			Help: "Number of open store connections",
		},
	)
)

// Scanner metrics
var (
	ScannerRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "melodex_scanner_runs_total",
			Help: "Total number of scanner runs",
		},
	)

	ScannerIsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "melodex_scanner_is_running",
			Help: "Whether a scan is currently in progress (1 or 0)",
		},
	)

	ScannerLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "melodex_scanner_last_run_timestamp",
			Help: "Timestamp of the last scanner run",
		},
	)

	ScannerLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "melodex_scanner_last_run_duration_seconds",
			Help: "Duration of the last scanner run in seconds",
		},
	)

	ScannerFilesProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "melodex_scanner_files_processed_total",
			Help: "Total number of audio files processed by the scanner",
		},
	)

	ScannerFilesSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "melodex_scanner_files_skipped_total",
			Help: "Total number of files skipped due to read or tag errors",
		},
	)

	ScannerErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "melodex_scanner_errors_total",
			Help: "Total number of scanner errors",
		},
	)
)

// Sweep metrics
var (
	SweepRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "melodex_sweep_runs_total",
			Help: "Total number of consistency sweep runs",
		},
	)

	SweepPassDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "melodex_sweep_pass_duration_seconds",
			Help:    "Duration of each sweep pass in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		},
		[]string{"pass"},
	)

	SweepDeletions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "melodex_sweep_deletions_total",
			Help: "Total records deleted by the sweep, by collection",
		},
		[]string{"collection"},
	)

	SweepRepairs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "melodex_sweep_repairs_total",
			Help: "Total records repaired in place by the sweep, by collection",
		},
		[]string{"collection"},
	)
)

// Filesystem metrics
var (
	FSRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "melodex_fs_retries_total",
			Help: "Total number of retried filesystem operations",
		},
		[]string{"operation"},
	)

	FSErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "melodex_fs_errors_total",
			Help: "Total number of filesystem errors after retries",
		},
		[]string{"operation"},
	)
)
