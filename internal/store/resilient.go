package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sony/gobreaker/v2"

	apperrors "github.com/SajivJess/Wally/pkg/errors"
)

// ResilienceConfig tunes the breaker and retry policy wrapped around a store.
type ResilienceConfig struct {
	// Attempts is the total number of tries for idempotent operations.
	// 1 disables retrying.
	Attempts       uint
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// BreakerFailures is the number of consecutive storage-unavailable
	// errors that opens the breaker.
	BreakerFailures uint32
	// BreakerTimeout is how long the breaker stays open before letting a
	// probe through.
	BreakerTimeout time.Duration
}

// DefaultResilienceConfig returns the policy used when nothing is configured.
func DefaultResilienceConfig() ResilienceConfig {
	return ResilienceConfig{
		Attempts:        3,
		InitialBackoff:  50 * time.Millisecond,
		MaxBackoff:      time.Second,
		BreakerFailures: 5,
		BreakerTimeout:  30 * time.Second,
	}
}

type resilientStore struct {
	Store
	cb     *gobreaker.CircuitBreaker[any]
	cfg    ResilienceConfig
	logger *slog.Logger
}

// WithResilience guards every operation on s with a circuit breaker and
// retries idempotent operations that failed with a storage-unavailable
// error. Only storage-unavailable errors count as breaker failures; a not
// found or a duplicate id leaves it closed.
func WithResilience(s Store, cfg ResilienceConfig, logger *slog.Logger) Store {
	if cfg.Attempts == 0 {
		cfg.Attempts = 1
	}
	name := "store-" + s.Driver()
	rs := &resilientStore{Store: s, cfg: cfg, logger: logger}
	rs.cb = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !apperrors.IsStorageUnavailable(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			breakerState.WithLabelValues(s.Driver()).Set(float64(to))
			logger.Warn("store circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
	breakerState.WithLabelValues(s.Driver()).Set(float64(gobreaker.StateClosed))
	return rs
}

func (s *resilientStore) Collection(name string) Collection {
	return &resilientCollection{inner: s.Store.Collection(name), rs: s}
}

// Ping bypasses retries so readiness reflects the current state, but still
// goes through the breaker.
func (s *resilientStore) Ping(ctx context.Context) error {
	_, err := guard(s, func() (struct{}, error) {
		return struct{}{}, s.Store.Ping(ctx)
	})
	return err
}

// guard runs op through the breaker and maps breaker rejections to
// storage-unavailable errors.
func guard[T any](s *resilientStore, op func() (T, error)) (T, error) {
	v, err := s.cb.Execute(func() (any, error) {
		return op()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		var zero T
		return zero, apperrors.StorageUnavailable(err)
	}
	res, _ := v.(T)
	return res, err
}

// run executes op, retrying only when idempotent is true and the failure is
// a storage-unavailable error other than an open breaker.
func run[T any](ctx context.Context, s *resilientStore, op string, idempotent bool, fn func() (T, error)) (T, error) {
	if !idempotent || s.cfg.Attempts <= 1 {
		return guard(s, fn)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.InitialBackoff
	b.MaxInterval = s.cfg.MaxBackoff

	attempt := 0
	return backoff.Retry(ctx, func() (T, error) {
		v, err := guard(s, fn)
		if err == nil {
			return v, nil
		}
		if !apperrors.IsStorageUnavailable(err) || errors.Is(err, gobreaker.ErrOpenState) {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(s.cfg.Attempts),
		backoff.WithNotify(func(err error, wait time.Duration) {
			attempt++
			storeRetries.WithLabelValues(s.Driver(), op).Inc()
			s.logger.WarnContext(ctx, "store operation failed, retrying",
				slog.String("operation", op),
				slog.Int("attempt", attempt),
				slog.Duration("backoff", wait),
				slog.String("error", err.Error()),
			)
		}),
	)
}

type resilientCollection struct {
	inner Collection
	rs    *resilientStore
}

func (c *resilientCollection) Name() string { return c.inner.Name() }

func (c *resilientCollection) FindOne(ctx context.Context, filter Filter) (Document, error) {
	return run(ctx, c.rs, "find_one", true, func() (Document, error) {
		return c.inner.FindOne(ctx, filter)
	})
}

func (c *resilientCollection) FindMany(ctx context.Context, filter Filter, limit int) ([]Document, error) {
	return run(ctx, c.rs, "find_many", true, func() ([]Document, error) {
		return c.inner.FindMany(ctx, filter, limit)
	})
}

func (c *resilientCollection) InsertOne(ctx context.Context, doc Document) error {
	_, err := run(ctx, c.rs, "insert_one", false, func() (struct{}, error) {
		return struct{}{}, c.inner.InsertOne(ctx, doc)
	})
	return err
}

func (c *resilientCollection) InsertMany(ctx context.Context, docs []Document) error {
	_, err := run(ctx, c.rs, "insert_many", false, func() (struct{}, error) {
		return struct{}{}, c.inner.InsertMany(ctx, docs)
	})
	return err
}

func (c *resilientCollection) UpdateOne(ctx context.Context, filter Filter, update Update) (UpdateResult, error) {
	return run(ctx, c.rs, "update_one", update.IsIdempotent(), func() (UpdateResult, error) {
		return c.inner.UpdateOne(ctx, filter, update)
	})
}

func (c *resilientCollection) DeleteOne(ctx context.Context, filter Filter) (int64, error) {
	return run(ctx, c.rs, "delete_one", false, func() (int64, error) {
		return c.inner.DeleteOne(ctx, filter)
	})
}

func (c *resilientCollection) DeleteMany(ctx context.Context, filter Filter) (int64, error) {
	return run(ctx, c.rs, "delete_many", false, func() (int64, error) {
		return c.inner.DeleteMany(ctx, filter)
	})
}

func (c *resilientCollection) Distinct(ctx context.Context, field string, filter Filter) ([]any, error) {
	return run(ctx, c.rs, "distinct", true, func() ([]any, error) {
		return c.inner.Distinct(ctx, field, filter)
	})
}

func (c *resilientCollection) Count(ctx context.Context, filter Filter) (int64, error) {
	return run(ctx, c.rs, "count", true, func() (int64, error) {
		return c.inner.Count(ctx, filter)
	})
}

func (c *resilientCollection) Upsert(ctx context.Context, filter Filter, inc map[string]int64, doc Document) (Document, error) {
	return run(ctx, c.rs, "upsert", false, func() (Document, error) {
		return c.inner.Upsert(ctx, filter, inc, doc)
	})
}
