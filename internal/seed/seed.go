// Package seed loads the sample catalog into an empty store.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/SajivJess/Wally/internal/domain"
	"github.com/SajivJess/Wally/internal/fixtures"
	"github.com/SajivJess/Wally/internal/store"
)

// Result counts the records inserted per collection.
type Result struct {
	Skipped  bool
	Inserted map[string]int
}

// Seeder inserts the fixture sample into a store.
type Seeder struct {
	store  store.Store
	sample fixtures.Sample
	logger *slog.Logger
	now    func() time.Time
}

func NewSeeder(s store.Store, set *fixtures.Set, logger *slog.Logger) *Seeder {
	return &Seeder{
		store:  s,
		sample: set.Sample,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Run inserts the sample data unless the products collection already holds
// documents. With force set the check is skipped; records whose id already
// exists are then reported as duplicates.
func (s *Seeder) Run(ctx context.Context, force bool) (*Result, error) {
	if !force {
		n, err := s.store.Collection(domain.ProductsCollection).Count(ctx, store.Filter{})
		if err != nil {
			return nil, fmt.Errorf("check existing products: %w", err)
		}
		if n > 0 {
			s.logger.InfoContext(ctx, "sample data already present, skipping seed",
				slog.Int64("products", n),
			)
			return &Result{Skipped: true}, nil
		}
	}

	now := s.now()
	res := &Result{Inserted: map[string]int{}}

	products := append([]domain.Product{}, s.sample.Products...)
	for i := range products {
		products[i].InStock = true
		products[i].CreatedAt = stamp(products[i].CreatedAt, now)
	}
	bundles := append([]domain.Bundle{}, s.sample.Bundles...)
	for i := range bundles {
		bundles[i].CreatedAt = stamp(bundles[i].CreatedAt, now)
	}
	users := append([]domain.User{}, s.sample.Users...)
	for i := range users {
		users[i].CreatedAt = stamp(users[i].CreatedAt, now)
	}
	missions := append([]domain.LoyaltyMission{}, s.sample.Missions...)
	for i := range missions {
		missions[i].CreatedAt = stamp(missions[i].CreatedAt, now)
	}
	plans := append([]domain.MealPlan{}, s.sample.MealPlans...)
	for i := range plans {
		plans[i].CreatedAt = stamp(plans[i].CreatedAt, now)
	}
	tips := append([]domain.SmartTip{}, s.sample.SmartTips...)
	for i := range tips {
		tips[i].CreatedAt = stamp(tips[i].CreatedAt, now)
	}

	steps := []func() error{
		func() error { return insert(ctx, s.store, domain.ProductsCollection, "product", products, res) },
		func() error { return insert(ctx, s.store, domain.BundlesCollection, "bundle", bundles, res) },
		func() error { return insert(ctx, s.store, domain.UsersCollection, "user", users, res) },
		func() error {
			return insert(ctx, s.store, domain.LoyaltyMissionsCollection, "mission", missions, res)
		},
		func() error { return insert(ctx, s.store, domain.MealPlansCollection, "meal plan", plans, res) },
		func() error { return insert(ctx, s.store, domain.SmartTipsCollection, "smart tip", tips, res) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}

	s.logger.InfoContext(ctx, "sample data seeded",
		slog.Int("products", res.Inserted[domain.ProductsCollection]),
		slog.Int("bundles", res.Inserted[domain.BundlesCollection]),
		slog.Int("users", res.Inserted[domain.UsersCollection]),
		slog.Int("missions", res.Inserted[domain.LoyaltyMissionsCollection]),
		slog.Int("meal_plans", res.Inserted[domain.MealPlansCollection]),
		slog.Int("smart_tips", res.Inserted[domain.SmartTipsCollection]),
	)
	return res, nil
}

func insert[T any](ctx context.Context, s store.Store, collection, resource string, recs []T, res *Result) error {
	if err := store.NewTyped[T](s, collection, resource).InsertMany(ctx, recs); err != nil {
		return fmt.Errorf("seed %s: %w", collection, err)
	}
	res.Inserted[collection] = len(recs)
	return nil
}

func stamp(t, now time.Time) time.Time {
	if t.IsZero() {
		return now
	}
	return t
}
