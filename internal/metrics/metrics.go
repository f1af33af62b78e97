package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "journeymap_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "journeymap_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "journeymap_http_requests_in_flight",
			Help: "Number of HTTP requests currently being served",
		},
	)
)

// Store metrics
var (
	StoreQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "journeymap_store_queries_total",
			Help: "Total number of media store queries",
		},
		[]string{"operation", "status"},
	)

	StoreQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "journeymap_store_query_duration_seconds",
			Help:    "Media store query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	StoreWriteConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "journeymap_store_write_conflicts_total",
			Help: "Total number of write conflicts that triggered a retry",
		},
	)

	StoreConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "journeymap_store_connections_open",
			Help: "Number of open database connections",
		},
	)
)

// Scanner metrics
var (
	ScanRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "journeymap_scan_runs_total",
			Help: "Total number of scan runs",
		},
	)

	ScanIsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "journeymap_scan_is_running",
			Help: "Whether a scan is currently in progress (1 or 0)",
		},
	)

	ScanLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "journeymap_scan_last_run_timestamp_seconds",
			Help: "Unix timestamp of the last completed scan",
		},
	)

	ScanLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "journeymap_scan_last_run_duration_seconds",
			Help: "Duration of the last completed scan in seconds",
		},
	)

	ScanFilesProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "journeymap_scan_files_processed_total",
			Help: "Total number of media files processed by scans",
		},
	)

	ScanFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "journeymap_scan_failures_total",
			Help: "Total number of per-file scan failures",
		},
		[]string{"reason"}, // "unreadable", "store"
	)
)

// Extraction metrics
var (
	ExtractDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "journeymap_extract_duration_seconds",
			Help:    "Metadata extraction duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"kind"},
	)

	ExtractGPSFound = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "journeymap_extract_gps_found_total",
			Help: "Files whose extraction yielded usable GPS coordinates",
		},
		[]string{"kind"},
	)

	ExtractInvalidCoordinates = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "journeymap_extract_invalid_coordinates_total",
			Help: "Files with malformed GPS tags treated as absent coordinates",
		},
	)
)

// Thumbnail metrics
var (
	ThumbnailCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "journeymap_thumbnail_cache_hits_total",
			Help: "Thumbnail cache hits",
		},
	)

	ThumbnailCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "journeymap_thumbnail_cache_misses_total",
			Help: "Thumbnail cache misses",
		},
	)

	ThumbnailGenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "journeymap_thumbnail_generation_duration_seconds",
			Help:    "Video thumbnail generation duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)
)

// Geocoding metrics
var (
	GeocodeRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "journeymap_geocode_requests_total",
			Help: "Total number of reverse geocoding lookups",
		},
		[]string{"status"}, // "cached", "success", "error"
	)
)
