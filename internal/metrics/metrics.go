package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Accounting-core counters and histograms, partitioned by protocol where
// it is meaningful.

var (
	// Router
	RouterEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "router",
		Name:      "events_total",
		Help:      "Total events received per trigger type",
	}, []string{"trigger"})

	RouterDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "router",
		Name:      "events_dropped_total",
		Help:      "Total events dropped before delegation",
	}, []string{"reason"})

	RouterDispatchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "router",
		Name:      "events_dispatched_total",
		Help:      "Total events delegated to a protocol rule",
	}, []string{"protocol"})

	RouterErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "router",
		Name:      "errors_total",
		Help:      "Total fatal per-event errors propagated to the caller",
	}, []string{"trigger"})

	RouterPreloadLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "indexer",
		Subsystem: "router",
		Name:      "preload_duration_seconds",
		Help:      "Parallel pre-load phase duration",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	})

	// Membership cache
	MembershipCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "membership",
		Name:      "cache_hits_total",
		Help:      "Membership answers served from the process-wide set",
	}, []string{"category"})

	MembershipBloomRejects = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "membership",
		Name:      "bloom_rejects_total",
		Help:      "Membership negatives resolved by the bloom tier",
	}, []string{"category"})

	MembershipStoreLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "membership",
		Name:      "store_lookups_total",
		Help:      "Batched membership lookups against the backing store",
	}, []string{"category"})

	// Pool resolver
	PoolResolverFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "pools",
		Name:      "metadata_fetches_total",
		Help:      "On-chain metadata fetches per protocol",
	}, []string{"protocol"})

	PoolResolverCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "pools",
		Name:      "created_total",
		Help:      "Pools materialized per protocol",
	}, []string{"protocol"})

	PoolResolverUnclaimed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "pools",
		Name:      "adapter_unclaimed_total",
		Help:      "Aggregator pools no registered adapter claimed",
	})

	// RPC transport
	RPCCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "rpc",
		Name:      "calls_total",
		Help:      "Total RPC calls by method and outcome",
	}, []string{"method", "status"})

	RPCRateLimitWaits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "rpc",
		Name:      "rate_limit_waits_total",
		Help:      "RPC calls delayed by the token bucket",
	})

	RPCBatchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "indexer",
		Subsystem: "rpc",
		Name:      "batch_size",
		Help:      "Calls per batched request",
		Buckets:   []float64{1, 2, 4, 8, 16, 32, 64},
	})

	// Feed
	FeedEventsDecoded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "feed",
		Name:      "events_decoded_total",
		Help:      "Feed envelopes decoded per trigger type",
	}, []string{"trigger"})

	FeedDecodeErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "feed",
		Name:      "decode_errors_total",
		Help:      "Feed envelopes that failed to decode",
	})

	FeedHandleLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "indexer",
		Subsystem: "feed",
		Name:      "handle_duration_seconds",
		Help:      "End-to-end event handling duration",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"trigger"})

	// Snapshots
	SnapshotWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "snapshot",
		Name:      "writes_total",
		Help:      "Historical snapshot writes per record kind",
	}, []string{"kind"})
)
