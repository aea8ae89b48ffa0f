package redis

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var txRetries = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "store_redis_transaction_retries_total",
		Help: "Total number of Redis transactions retried after a WATCH conflict",
	},
	[]string{"collection"},
)
