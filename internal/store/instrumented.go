package store

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/SajivJess/Wally/pkg/database"
	apperrors "github.com/SajivJess/Wally/pkg/errors"
)

var tracingSystems = map[string]string{
	DriverRedis:    "redis",
	DriverPostgres: "postgresql",
	DriverMongo:    "mongodb",
}

type instrumentedStore struct {
	Store
	system string
}

// Instrument records a latency histogram sample and a client span for every
// collection operation on s.
func Instrument(s Store) Store {
	system, ok := tracingSystems[s.Driver()]
	if !ok {
		system = s.Driver()
	}
	return &instrumentedStore{Store: s, system: system}
}

func (s *instrumentedStore) Collection(name string) Collection {
	return &instrumentedCollection{inner: s.Store.Collection(name), store: s}
}

type instrumentedCollection struct {
	inner Collection
	store *instrumentedStore
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNoDocuments):
		return "not_found"
	case errors.Is(err, ErrDuplicateID):
		return "duplicate"
	case apperrors.IsStorageUnavailable(err):
		return "unavailable"
	default:
		return "error"
	}
}

func (c *instrumentedCollection) observe(ctx context.Context, op string) (context.Context, func(error)) {
	start := time.Now()
	ctx, end := database.TraceOperation(ctx, c.store.system, op,
		attribute.String("db.collection.name", c.inner.Name()))
	return ctx, func(err error) {
		// A miss is an answer, not a failed span.
		spanErr := err
		if errors.Is(err, ErrNoDocuments) {
			spanErr = nil
		}
		end(spanErr)
		OperationDuration.
			WithLabelValues(c.store.Driver(), c.inner.Name(), op, outcome(err)).
			Observe(time.Since(start).Seconds())
	}
}

func (c *instrumentedCollection) Name() string { return c.inner.Name() }

func (c *instrumentedCollection) FindOne(ctx context.Context, filter Filter) (doc Document, err error) {
	ctx, end := c.observe(ctx, "find_one")
	defer func() { end(err) }()
	return c.inner.FindOne(ctx, filter)
}

func (c *instrumentedCollection) FindMany(ctx context.Context, filter Filter, limit int) (docs []Document, err error) {
	ctx, end := c.observe(ctx, "find_many")
	defer func() { end(err) }()
	return c.inner.FindMany(ctx, filter, limit)
}

func (c *instrumentedCollection) InsertOne(ctx context.Context, doc Document) (err error) {
	ctx, end := c.observe(ctx, "insert_one")
	defer func() { end(err) }()
	return c.inner.InsertOne(ctx, doc)
}

func (c *instrumentedCollection) InsertMany(ctx context.Context, docs []Document) (err error) {
	ctx, end := c.observe(ctx, "insert_many")
	defer func() { end(err) }()
	return c.inner.InsertMany(ctx, docs)
}

func (c *instrumentedCollection) UpdateOne(ctx context.Context, filter Filter, update Update) (res UpdateResult, err error) {
	ctx, end := c.observe(ctx, "update_one")
	defer func() { end(err) }()
	return c.inner.UpdateOne(ctx, filter, update)
}

func (c *instrumentedCollection) DeleteOne(ctx context.Context, filter Filter) (n int64, err error) {
	ctx, end := c.observe(ctx, "delete_one")
	defer func() { end(err) }()
	return c.inner.DeleteOne(ctx, filter)
}

func (c *instrumentedCollection) DeleteMany(ctx context.Context, filter Filter) (n int64, err error) {
	ctx, end := c.observe(ctx, "delete_many")
	defer func() { end(err) }()
	return c.inner.DeleteMany(ctx, filter)
}

func (c *instrumentedCollection) Distinct(ctx context.Context, field string, filter Filter) (values []any, err error) {
	ctx, end := c.observe(ctx, "distinct")
	defer func() { end(err) }()
	return c.inner.Distinct(ctx, field, filter)
}

func (c *instrumentedCollection) Count(ctx context.Context, filter Filter) (n int64, err error) {
	ctx, end := c.observe(ctx, "count")
	defer func() { end(err) }()
	return c.inner.Count(ctx, filter)
}

func (c *instrumentedCollection) Upsert(ctx context.Context, filter Filter, inc map[string]int64, doc Document) (stored Document, err error) {
	ctx, end := c.observe(ctx, "upsert")
	defer func() { end(err) }()
	return c.inner.Upsert(ctx, filter, inc, doc)
}
