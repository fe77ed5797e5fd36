package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tagify_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tagify_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tagify_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tagify_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tagify_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)
)

// Scanner metrics
var (
	ScanRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tagify_scan_runs_total",
			Help: "Total number of library scans started",
		},
	)

	ScansActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tagify_scans_active",
			Help: "Number of library scans currently running",
		},
	)

	ScanFilesProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tagify_scan_files_processed_total",
			Help: "Total number of files processed by the scanner",
		},
	)

	ScanFilesSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tagify_scan_files_skipped_total",
			Help: "Total number of files skipped (undecodable or unsupported)",
		},
	)

	ScanFileErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tagify_scan_file_errors_total",
			Help: "Total number of per-file I/O errors during scans",
		},
	)

	ScanErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tagify_scan_errors_total",
			Help: "Total number of scans that failed outright",
		},
	)

	ScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tagify_scan_duration_seconds",
			Help:    "Duration of completed library scans in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
	)

	ScanWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tagify_scan_workers",
			Help: "Configured scan worker pool size",
		},
	)
)

// Object store metrics
var (
	StoreOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tagify_store_operations_total",
			Help: "Total number of object store operations",
		},
		[]string{"operation", "status"},
	)

	StoreOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tagify_store_operation_duration_seconds",
			Help:    "Object store operation duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)

	StoreBytesWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tagify_store_bytes_written_total",
			Help: "Total bytes written to the object store",
		},
		[]string{"bucket"},
	)
)

// Thumbnail metrics
var (
	ThumbnailsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tagify_thumbnails_generated_total",
			Help: "Total number of thumbnail generation attempts",
		},
		[]string{"status"},
	)

	ThumbnailDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tagify_thumbnail_generation_duration_seconds",
			Help:    "Thumbnail generation duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)
)

// Tag cache metrics
var (
	TagCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tagify_tag_cache_hits_total",
			Help: "Total number of tag count cache hits",
		},
	)

	TagCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tagify_tag_cache_misses_total",
			Help: "Total number of tag count cache misses (recomputes)",
		},
	)

	TagCacheInvalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tagify_tag_cache_invalidations_total",
			Help: "Total number of explicit tag count cache invalidations",
		},
	)
)

// Filesystem retry metrics
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tagify_filesystem_retry_attempts_total",
			Help: "Total number of filesystem operation retries",
		},
		[]string{"operation"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tagify_filesystem_retry_failures_total",
			Help: "Total number of filesystem operations that failed after all retries",
		},
		[]string{"operation"},
	)
)
