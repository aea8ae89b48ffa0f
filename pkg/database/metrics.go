package database

import (
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

type poolStat struct {
	desc  *prometheus.Desc
	kind  prometheus.ValueType
	value func(*pgxpool.Stat) float64
}

// PoolStatsCollector exports pgxpool.Stat as db_pool_* metrics, read fresh on
// every scrape.
type PoolStatsCollector struct {
	pool    *pgxpool.Pool
	service string
	stats   []poolStat
}

func NewPoolStatsCollector(pool *pgxpool.Pool, service string) *PoolStatsCollector {
	gauge := func(name, help string, fn func(*pgxpool.Stat) int32) poolStat {
		return poolStat{
			desc:  prometheus.NewDesc("db_pool_"+name, help, []string{"service"}, nil),
			kind:  prometheus.GaugeValue,
			value: func(s *pgxpool.Stat) float64 { return float64(fn(s)) },
		}
	}
	counter := func(name, help string, fn func(*pgxpool.Stat) float64) poolStat {
		return poolStat{
			desc:  prometheus.NewDesc("db_pool_"+name, help, []string{"service"}, nil),
			kind:  prometheus.CounterValue,
			value: fn,
		}
	}

	return &PoolStatsCollector{
		pool:    pool,
		service: service,
		stats: []poolStat{
			gauge("acquired_connections", "Connections currently checked out.", (*pgxpool.Stat).AcquiredConns),
			gauge("idle_connections", "Connections currently idle.", (*pgxpool.Stat).IdleConns),
			gauge("total_connections", "Connections currently open.", (*pgxpool.Stat).TotalConns),
			gauge("max_connections", "Configured connection limit.", (*pgxpool.Stat).MaxConns),
			gauge("constructing_connections", "Connections being established.", (*pgxpool.Stat).ConstructingConns),
			counter("acquire_count_total", "Successful acquires.", func(s *pgxpool.Stat) float64 { return float64(s.AcquireCount()) }),
			counter("acquire_duration_seconds_total", "Time spent waiting in acquire.", func(s *pgxpool.Stat) float64 { return s.AcquireDuration().Seconds() }),
			counter("canceled_acquire_count_total", "Acquires abandoned by context cancellation.", func(s *pgxpool.Stat) float64 { return float64(s.CanceledAcquireCount()) }),
			counter("empty_acquire_count_total", "Acquires that had to wait for a free connection.", func(s *pgxpool.Stat) float64 { return float64(s.EmptyAcquireCount()) }),
			counter("new_connections_total", "Connections opened.", func(s *pgxpool.Stat) float64 { return float64(s.NewConnsCount()) }),
			counter("max_lifetime_destroy_total", "Connections closed for exceeding MaxConnLifetime.", func(s *pgxpool.Stat) float64 { return float64(s.MaxLifetimeDestroyCount()) }),
			counter("max_idle_destroy_total", "Connections closed for exceeding MaxConnIdleTime.", func(s *pgxpool.Stat) float64 { return float64(s.MaxIdleDestroyCount()) }),
		},
	}
}

func (c *PoolStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, s := range c.stats {
		ch <- s.desc
	}
}

func (c *PoolStatsCollector) Collect(ch chan<- prometheus.Metric) {
	stat := c.pool.Stat()
	for _, s := range c.stats {
		ch <- prometheus.MustNewConstMetric(s.desc, s.kind, s.value(stat), c.service)
	}
}

// RegisterPoolMetrics registers a collector for pool. A collector already
// registered for the same service is not an error, so the server and the
// seed command can share the wiring.
func RegisterPoolMetrics(reg prometheus.Registerer, pool *pgxpool.Pool, service string) error {
	err := reg.Register(NewPoolStatsCollector(pool, service))
	var already prometheus.AlreadyRegisteredError
	if err != nil && !errors.As(err, &already) {
		return err
	}
	return nil
}
