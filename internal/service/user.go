package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/SajivJess/Wally/internal/domain"
	"github.com/SajivJess/Wally/internal/store"
	apperrors "github.com/SajivJess/Wally/pkg/errors"
)

const (
	profileCartLimit     = 100
	profileMissionsLimit = 10
)

// CreateUserInput holds the parameters for registering a user.
type CreateUserInput struct {
	Name     string `json:"name" validate:"required,max=200"`
	Location string `json:"location" validate:"required,max=200"`
}

// UserService manages users and assembles their profile view.
type UserService struct {
	users    *store.Typed[domain.User]
	items    *store.Typed[domain.CartItem]
	missions *store.Typed[domain.LoyaltyMission]
	logger   *slog.Logger
}

func NewUserService(s store.Store, logger *slog.Logger) *UserService {
	return &UserService{
		users:    store.NewTyped[domain.User](s, domain.UsersCollection, "user"),
		items:    newCartItems(s),
		missions: newMissions(s),
		logger:   logger,
	}
}

func (s *UserService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return s.users.FindOne(ctx, store.Filter{store.IDField: id})
}

func (s *UserService) CreateUser(ctx context.Context, input CreateUserInput) (*domain.User, error) {
	if input.Name == "" {
		return nil, apperrors.InvalidInput("name is required")
	}
	if input.Location == "" {
		return nil, apperrors.InvalidInput("location is required")
	}

	user := &domain.User{
		ID:        uuid.New().String(),
		Name:      input.Name,
		Location:  input.Location,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.users.InsertOne(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.InfoContext(ctx, "user created", slog.String("user_id", user.ID))
	return user, nil
}

// GetProfile loads the user, their cart and the active missions concurrently.
func (s *UserService) GetProfile(ctx context.Context, id string) (*domain.UserProfile, error) {
	var (
		user     *domain.User
		items    []domain.CartItem
		missions []domain.LoyaltyMission
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		user, err = s.users.FindOne(gctx, store.Filter{store.IDField: id})
		return err
	})
	g.Go(func() error {
		var err error
		items, err = s.items.FindMany(gctx, store.Filter{"user_id": id}, profileCartLimit)
		return err
	})
	g.Go(func() error {
		var err error
		missions, err = s.missions.FindMany(gctx, store.Filter{"active": true}, profileMissionsLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &domain.UserProfile{
		User:           user,
		CartSummary:    domain.NewCartSummary(items),
		ActiveMissions: missions,
	}, nil
}

// AddPoints adds points (which may be negative) to the user's balance.
func (s *UserService) AddPoints(ctx context.Context, id string, points int64) error {
	res, err := s.users.UpdateOne(ctx, store.Filter{store.IDField: id},
		store.Update{Inc: map[string]int64{"points": points}})
	if err != nil {
		return fmt.Errorf("update points: %w", err)
	}
	if res.Matched == 0 {
		return apperrors.NotFound("user", id)
	}

	s.logger.InfoContext(ctx, "user points updated",
		slog.String("user_id", id),
		slog.Int64("delta", points),
	)
	return nil
}
