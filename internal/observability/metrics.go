package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StoreOperationLatency records store call latency by collection and operation.
	StoreOperationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lumen_store_operation_latency_seconds",
		Help:    "Store operation latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"collection", "operation"})

	// StoreOperationErrors counts failed store calls by collection and operation.
	StoreOperationErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lumen_store_operation_errors_total",
		Help: "Total number of failed store operations",
	}, []string{"collection", "operation"})

	// CacheLookups counts read-through cache lookups by collection and result.
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lumen_cache_lookups_total",
		Help: "Total number of cache lookups by result",
	}, []string{"collection", "result"})

	// RedisErrors counts Redis errors by command.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lumen_redis_errors_total",
		Help: "Total number of Redis errors by command",
	}, []string{"command"})

	// FeedRequests counts feed assembly requests by mode and outcome.
	FeedRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lumen_feed_requests_total",
		Help: "Total number of feed requests by mode and outcome",
	}, []string{"mode", "outcome"})

	// FeedSize records how many posts a feed page returned.
	FeedSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lumen_feed_size_posts",
		Help:    "Number of posts returned per feed request",
		Buckets: []float64{0, 1, 3, 5, 7, 9},
	}, []string{"mode"})
)
