package app

import (
	"context"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SajivJess/Wally/internal/config"
	"github.com/SajivJess/Wally/internal/store"
)

func TestOpenStore_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	t.Setenv("REDIS_HOST", mr.Host())
	t.Setenv("REDIS_PORT", mr.Port())
	t.Setenv("STORE_KEY_PREFIX", "wally-test:")

	cfg, err := config.Load()
	require.NoError(t, err)

	ctx := context.Background()
	s, err := OpenStore(ctx, cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })

	assert.Equal(t, store.DriverRedis, s.Driver())
	require.NoError(t, s.Ping(ctx))

	coll := s.Collection("users")
	require.NoError(t, coll.InsertOne(ctx, store.Document{"id": "user-1", "name": "Raj"}))
	doc, err := coll.FindOne(ctx, store.Filter{"id": "user-1"})
	require.NoError(t, err)
	assert.Equal(t, "Raj", doc["name"])

	assert.True(t, mr.Exists("wally-test:users"))
}

func TestOpenStore_RedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	t.Setenv("REDIS_HOST", mr.Host())
	t.Setenv("REDIS_PORT", mr.Port())
	mr.Close()

	cfg, err := config.Load()
	require.NoError(t, err)

	_, err = OpenStore(context.Background(), cfg, slog.New(slog.DiscardHandler))
	assert.ErrorContains(t, err, "connect to redis")
}
