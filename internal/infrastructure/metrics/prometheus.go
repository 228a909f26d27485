// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "vidcache"

var (
	// CacheOperationsTotal tracks cache operations.
	// Labels:
	//   - operation: add, get, get_by_file, remove, update_status, cleanup, clear
	//   - status: hit, miss, success, error
	CacheOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_operations_total",
			Help:      "Total number of cache operations",
		},
		[]string{"operation", "status"},
	)

	// CacheEvictionsTotal tracks entries dropped by the cache itself.
	// Labels:
	//   - reason: expired, memory, count
	CacheEvictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_evictions_total",
			Help:      "Total number of evicted cache entries",
		},
		[]string{"reason"},
	)

	// CacheEntries is the current number of cached entries.
	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_entries",
			Help:      "Number of entries currently cached",
		},
	)

	// CacheBytes is the summed source file size of cached entries.
	CacheBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_bytes",
			Help:      "Bytes of source video currently cached",
		},
	)

	// DecodeDuration tracks how long metadata and thumbnail extraction takes.
	DecodeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "decode_duration_seconds",
			Help:      "Time spent extracting metadata and derived images",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	// StateOperationsTotal tracks durable state store calls.
	// Labels:
	//   - operation: load, save, delete
	//   - status: success, error
	StateOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_operations_total",
			Help:      "Total number of cache state store operations",
		},
		[]string{"operation", "status"},
	)

	// SingleflightRequestsTotal tracks coalescing of concurrent adds.
	// Labels:
	//   - result: initiated (new execution), shared (reused result)
	SingleflightRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "singleflight_requests_total",
			Help:      "Total number of singleflight requests",
		},
		[]string{"result"},
	)

	// UploadsTotal tracks uploads of cached entries to object storage.
	// Labels:
	//   - status: success, error
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Total number of cached entries uploaded to object storage",
		},
		[]string{"status"},
	)

	// HTTPRequestsTotal tracks served HTTP requests.
	// Labels:
	//   - method: HTTP method
	//   - route: chi route pattern, "unmatched" when no route matched
	//   - code: response status code
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "code"},
	)

	// HTTPRequestDuration tracks HTTP request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// Cache operation status constants.
const (
	CacheStatusHit     = "hit"
	CacheStatusMiss    = "miss"
	CacheStatusSuccess = "success"
	CacheStatusError   = "error"
)

// Cache operation type constants.
const (
	CacheOpAdd          = "add"
	CacheOpGet          = "get"
	CacheOpGetByFile    = "get_by_file"
	CacheOpRemove       = "remove"
	CacheOpUpdateStatus = "update_status"
	CacheOpCleanup      = "cleanup"
	CacheOpClear        = "clear"
)

// Eviction reason constants.
const (
	EvictExpired = "expired"
	EvictMemory  = "memory"
	EvictCount   = "count"
)

// State store operation constants.
const (
	StateOpLoad   = "load"
	StateOpSave   = "save"
	StateOpDelete = "delete"
)

// Singleflight result constants.
const (
	SingleflightInitiated = "initiated"
	SingleflightShared    = "shared"
)
