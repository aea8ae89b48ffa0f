package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/SajivJess/Wally/internal/config"
	"github.com/SajivJess/Wally/internal/domain"
	"github.com/SajivJess/Wally/internal/store"
	mongostore "github.com/SajivJess/Wally/internal/store/mongo"
	pgstore "github.com/SajivJess/Wally/internal/store/postgres"
	redisstore "github.com/SajivJess/Wally/internal/store/redis"
	"github.com/SajivJess/Wally/pkg/database"
)

// uniqueIndexes lists the unique keys created on MongoDB collections. Every
// collection is keyed by id; a cart holds at most one line per product.
var uniqueIndexes = map[string][][]string{
	domain.CartItemsCollection:       {{"id"}, {"user_id", "product_id"}},
	domain.UsersCollection:           {{"id"}},
	domain.ProductsCollection:        {{"id"}},
	domain.BundlesCollection:         {{"id"}},
	domain.LoyaltyMissionsCollection: {{"id"}},
	domain.MealPlansCollection:       {{"id"}},
	domain.RefillAlertsCollection:    {{"id"}},
	domain.SmartTipsCollection:       {{"id"}},
}

// redisPartitions splits per-user collections so that writes for different
// users watch disjoint keys.
var redisPartitions = map[string]string{
	domain.CartItemsCollection: "user_id",
}

// OpenStore connects the backend selected by cfg.StoreDriver and wraps it
// with instrumentation and the retry/circuit breaker policy.
func OpenStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	backend, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return store.WithResilience(store.Instrument(backend), cfg.ResilienceConfig(), logger), nil
}

func openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	if cfg.SlowQueryThresholdMs > 0 {
		database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, logger)
	}

	switch cfg.StoreDriver {
	case store.DriverPostgres:
		pool, err := database.NewPostgresPool(ctx, cfg.PostgresConfig(), logger)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		logger.Info("connected to PostgreSQL",
			slog.String("host", cfg.PostgresHost),
			slog.Int("port", cfg.PostgresPort),
			slog.String("database", cfg.PostgresDB),
		)
		if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, config.ServiceName); err != nil {
			pool.Close()
			return nil, fmt.Errorf("register pool metrics: %w", err)
		}
		if err := database.RunMigrations(ctx, pool, pgstore.Migrations(), logger); err != nil {
			pool.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		logger.Info("database migrations completed")
		return pgstore.New(pool), nil

	case store.DriverMongo:
		client, err := database.NewMongoClient(ctx, cfg.MongoConfig())
		if err != nil {
			return nil, fmt.Errorf("connect to mongo: %w", err)
		}
		logger.Info("connected to MongoDB", slog.String("database", cfg.DBName))
		s := mongostore.New(client, cfg.DBName)
		for coll, keys := range uniqueIndexes {
			for _, fields := range keys {
				if err := s.EnsureUniqueIndex(ctx, coll, fields...); err != nil {
					_ = s.Close(context.Background())
					return nil, err
				}
			}
		}
		return s, nil

	default:
		rc := cfg.RedisConfig()
		client, err := database.NewRedisClient(ctx, rc)
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		logger.Info("connected to Redis",
			slog.String("addr", rc.Addr()),
			slog.Int("db", rc.DB),
		)
		opts := make([]redisstore.Option, 0, len(redisPartitions))
		for coll, field := range redisPartitions {
			opts = append(opts, redisstore.WithPartition(coll, field))
		}
		return redisstore.New(client, cfg.StoreKeyPrefix, opts...), nil
	}
}
