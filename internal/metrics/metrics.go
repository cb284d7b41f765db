package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label value constants to prevent typos
const (
	// Week processing results
	WeekResultSuccess     = "success"
	WeekResultEmpty       = "empty"
	WeekResultFetchFailed = "fetch_failed"
	WeekResultFiltered    = "filtered_out"

	// Record drop reasons
	DropReasonNoStartTime = "no_start_time"
	DropReasonNormalize   = "normalize_failed"

	// Vendor operations
	OpFetchActivities = "fetch_activities"
	OpFetchDetail     = "fetch_detail"
	OpFetchExport     = "fetch_export"

	// HTTP endpoints
	EndpointActivity   = "activity"
	EndpointRecent     = "recent_activities"
	EndpointAggregates = "aggregates"
	EndpointWeekDelta  = "week_delta"
	EndpointHealth     = "health"
)

// Pipeline metrics
var (
	WeeksProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weeks_processed_total",
			Help: "Total number of week batches processed by result",
		},
		[]string{"result"},
	)

	WeekCacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "week_cache_hits_total",
			Help: "Total number of weeks served from the on-disk raw cache",
		},
	)

	RecordsNormalizedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "records_normalized_total",
			Help: "Total number of raw records successfully normalized",
		},
	)

	RecordsDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "records_dropped_total",
			Help: "Total number of raw records dropped during normalization",
		},
		[]string{"reason"},
	)

	RecordsPersistedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "records_persisted_total",
			Help: "Total number of new rows appended to the activities store",
		},
	)

	ActivityFilesFetchedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "activity_files_fetched_total",
			Help: "Total number of per-activity detail directories fetched",
		},
	)

	ActivityFilesSkippedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "activity_files_skipped_total",
			Help: "Total number of per-activity fetches skipped because the directory exists",
		},
	)
)

// Vendor API metrics
var (
	VendorRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "garmin_api_requests_total",
			Help: "Total number of Garmin API requests",
		},
		[]string{"operation", "status_code"},
	)

	VendorRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "garmin_api_request_duration_seconds",
			Help:    "Garmin API request latency in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"operation"},
	)
)

// HTTP metrics for the query API
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"endpoint", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"endpoint", "status_code"},
	)
)
