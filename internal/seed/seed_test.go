package seed

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SajivJess/Wally/internal/domain"
	"github.com/SajivJess/Wally/internal/fixtures"
	"github.com/SajivJess/Wally/internal/store"
	redisstore "github.com/SajivJess/Wally/internal/store/redis"
	apperrors "github.com/SajivJess/Wally/pkg/errors"
)

func setup(t *testing.T) (*Seeder, store.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	s := redisstore.New(client, redisstore.DefaultKeyPrefix)
	seeder := NewSeeder(s, fixtures.MustLoad(), slog.New(slog.DiscardHandler))
	seeder.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return seeder, s
}

func TestRun_SeedsEmptyStore(t *testing.T) {
	seeder, s := setup(t)
	ctx := context.Background()

	res, err := seeder.Run(ctx, false)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, map[string]int{
		domain.ProductsCollection:        3,
		domain.BundlesCollection:         3,
		domain.UsersCollection:           1,
		domain.LoyaltyMissionsCollection: 3,
		domain.MealPlansCollection:       3,
		domain.SmartTipsCollection:       2,
	}, res.Inserted)

	products, err := store.NewTyped[domain.Product](s, domain.ProductsCollection, "product").
		FindMany(ctx, store.Filter{}, 0)
	require.NoError(t, err)
	require.Len(t, products, 3)
	assert.True(t, products[0].InStock)
	assert.Equal(t, 2026, products[0].CreatedAt.Year())
}

func TestRun_SkipsWhenProductsExist(t *testing.T) {
	seeder, _ := setup(t)
	ctx := context.Background()

	_, err := seeder.Run(ctx, false)
	require.NoError(t, err)

	res, err := seeder.Run(ctx, false)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
}

func TestRun_ForceReportsDuplicates(t *testing.T) {
	seeder, _ := setup(t)
	ctx := context.Background()

	_, err := seeder.Run(ctx, false)
	require.NoError(t, err)

	_, err = seeder.Run(ctx, true)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
}

func TestRun_DoesNotMutateFixtures(t *testing.T) {
	seeder, _ := setup(t)

	_, err := seeder.Run(context.Background(), false)
	require.NoError(t, err)

	assert.True(t, fixtures.MustLoad().Sample.Users[0].CreatedAt.IsZero())
}
