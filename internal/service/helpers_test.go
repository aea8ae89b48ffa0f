package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/SajivJess/Wally/internal/domain"
	"github.com/SajivJess/Wally/internal/fixtures"
	"github.com/SajivJess/Wally/internal/store"
	redisstore "github.com/SajivJess/Wally/internal/store/redis"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// newTestStore returns a Redis-backed store on a private miniredis instance,
// with cart items partitioned by user as in production.
func newTestStore(t *testing.T) store.Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return redisstore.New(client, redisstore.DefaultKeyPrefix,
		redisstore.WithPartition(domain.CartItemsCollection, "user_id"))
}

func priceOf(p int64) *int64 { return &p }

func testFixtures(t *testing.T) *fixtures.Set {
	t.Helper()
	set, err := fixtures.Load()
	require.NoError(t, err)
	return set
}

// --- Recording publisher ---

type publishedEvent struct {
	kind   string
	action string
	userID string
	item   *domain.CartItem
	order  *domain.Order
	count  int64
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *recordingPublisher) record(e publishedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) PublishItemChanged(_ context.Context, action string, item *domain.CartItem) error {
	return p.record(publishedEvent{kind: "item", action: action, userID: item.UserID, item: item})
}

func (p *recordingPublisher) PublishCartCleared(_ context.Context, userID string, removed int64) error {
	return p.record(publishedEvent{kind: "cleared", userID: userID, count: removed})
}

func (p *recordingPublisher) PublishOrderPlaced(_ context.Context, userID string, order *domain.Order) error {
	return p.record(publishedEvent{kind: "order", userID: userID, order: order})
}

func (p *recordingPublisher) kinds() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.kind)
	}
	return out
}

// --- Fault injection ---

// faultyStore fails DeleteMany on every collection with err.
type faultyStore struct {
	store.Store
	err error
}

func (s *faultyStore) Collection(name string) store.Collection {
	return &faultyCollection{Collection: s.Store.Collection(name), err: s.err}
}

type faultyCollection struct {
	store.Collection
	err error
}

func (c *faultyCollection) DeleteMany(context.Context, store.Filter) (int64, error) {
	return 0, c.err
}

var errDiskFull = errors.New("disk full")
