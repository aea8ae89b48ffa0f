package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OperationDuration observes store operation latency per collection.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_operation_duration_seconds",
			Help:    "Duration of record store operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"driver", "collection", "operation", "outcome"},
	)

	storeRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_operation_retries_total",
			Help: "Total number of retried record store operations",
		},
		[]string{"driver", "operation"},
	)

	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "store_circuit_breaker_state",
			Help: "Record store circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"driver"},
	)
)
