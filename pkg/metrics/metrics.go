package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Event pipeline metrics
	EventsBuffered = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gatehouse_events_buffered",
			Help: "Number of events currently held in the flush buffer",
		},
	)

	EventsPersisted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatehouse_events_persisted_total",
			Help: "Total number of events persisted by kind and action",
		},
		[]string{"kind", "action"},
	)

	EventsSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gatehouse_events_skipped_total",
			Help: "Total number of preexisting events skipped during replay",
		},
	)

	BufferFlushesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatehouse_buffer_flushes_total",
			Help: "Total number of buffer flushes by outcome",
		},
		[]string{"outcome"},
	)

	BufferFlushDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gatehouse_buffer_flush_duration_seconds",
			Help:    "Buffer flush duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Store metrics
	StoreTransactionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gatehouse_store_transaction_duration_seconds",
			Help:    "Store transaction duration in seconds by operation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	StoreRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gatehouse_store_retries_total",
			Help: "Total number of transient store errors retried",
		},
	)

	// Cache metrics
	CachedEvents = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gatehouse_cached_events",
			Help: "Number of events currently held in the event cache",
		},
	)

	CacheEvictions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gatehouse_cache_evictions_total",
			Help: "Total number of events evicted from the event cache",
		},
	)

	// Router metrics
	RoutedOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatehouse_routed_operations_total",
			Help: "Total number of routed operations by target",
		},
		[]string{"target"},
	)

	ShardCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gatehouse_shard_call_duration_seconds",
			Help:    "Remote shard call duration in seconds by operation kind",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	ShardCallErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatehouse_shard_call_errors_total",
			Help: "Total number of failed remote shard calls by shard url",
		},
		[]string{"shard_url"},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatehouse_api_requests_total",
			Help: "Total number of API requests by method and status",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gatehouse_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// Trip-switch state (1 = tripped, 0 = clear)
	TripSwitchState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gatehouse_trip_switch_tripped",
			Help: "Whether the trip switch is set (1 = tripped, writes refused)",
		},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(EventsBuffered)
	prometheus.MustRegister(EventsPersisted)
	prometheus.MustRegister(EventsSkipped)
	prometheus.MustRegister(BufferFlushesTotal)
	prometheus.MustRegister(BufferFlushDuration)
	prometheus.MustRegister(StoreTransactionDuration)
	prometheus.MustRegister(StoreRetries)
	prometheus.MustRegister(CachedEvents)
	prometheus.MustRegister(CacheEvictions)
	prometheus.MustRegister(RoutedOperations)
	prometheus.MustRegister(ShardCallDuration)
	prometheus.MustRegister(ShardCallErrors)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
	prometheus.MustRegister(TripSwitchState)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
