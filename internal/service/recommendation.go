package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/SajivJess/Wally/internal/domain"
	"github.com/SajivJess/Wally/internal/fixtures"
	"github.com/SajivJess/Wally/internal/store"
	apperrors "github.com/SajivJess/Wally/pkg/errors"
)

const recommendationListLimit = 100

type CreateSmartTipInput struct {
	Title   string `json:"title" validate:"required"`
	Savings string `json:"savings" validate:"required"`
	Image   string `json:"image" validate:"required"`
}

type CreateRefillAlertInput struct {
	UserID      string `json:"user_id" validate:"required"`
	ProductName string `json:"product_name" validate:"required"`
	DaysLeft    int    `json:"days_left" validate:"gte=0"`
	Discount    string `json:"discount" validate:"required"`
	Image       string `json:"image" validate:"required"`
}

// RecommendationService serves smart tips, refill alerts and the canned
// recommendation feeds.
type RecommendationService struct {
	tips     *store.Typed[domain.SmartTip]
	alerts   *store.Typed[domain.RefillAlert]
	fixtures *fixtures.Set
	logger   *slog.Logger
}

func NewRecommendationService(s store.Store, set *fixtures.Set, logger *slog.Logger) *RecommendationService {
	return &RecommendationService{
		tips:     store.NewTyped[domain.SmartTip](s, domain.SmartTipsCollection, "smart tip"),
		alerts:   store.NewTyped[domain.RefillAlert](s, domain.RefillAlertsCollection, "refill alert"),
		fixtures: set,
		logger:   logger,
	}
}

func (s *RecommendationService) SmartTips(ctx context.Context, activeOnly bool) ([]domain.SmartTip, error) {
	filter := store.Filter{}
	if activeOnly {
		filter["active"] = true
	}
	return s.tips.FindMany(ctx, filter, recommendationListLimit)
}

func (s *RecommendationService) CreateSmartTip(ctx context.Context, input CreateSmartTipInput) (*domain.SmartTip, error) {
	if input.Title == "" {
		return nil, apperrors.InvalidInput("title is required")
	}

	tip := &domain.SmartTip{
		ID:        uuid.New().String(),
		Title:     input.Title,
		Savings:   input.Savings,
		Image:     input.Image,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.tips.InsertOne(ctx, tip); err != nil {
		return nil, fmt.Errorf("create smart tip: %w", err)
	}

	s.logger.InfoContext(ctx, "smart tip created", slog.String("tip_id", tip.ID))
	return tip, nil
}

// RefillAlerts returns the user's active refill alerts, falling back to the
// default alerts when the user has none.
func (s *RecommendationService) RefillAlerts(ctx context.Context, userID string) ([]domain.RefillAlert, error) {
	alerts, err := s.alerts.FindMany(ctx, store.Filter{"user_id": userID, "active": true}, recommendationListLimit)
	if err != nil {
		return nil, err
	}
	if len(alerts) == 0 {
		return s.fixtures.RefillAlertsFor(userID), nil
	}
	return alerts, nil
}

func (s *RecommendationService) CreateRefillAlert(ctx context.Context, input CreateRefillAlertInput) (*domain.RefillAlert, error) {
	if input.UserID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}

	alert := &domain.RefillAlert{
		ID:          uuid.New().String(),
		UserID:      input.UserID,
		ProductName: input.ProductName,
		DaysLeft:    input.DaysLeft,
		Discount:    input.Discount,
		Image:       input.Image,
		Active:      true,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.alerts.InsertOne(ctx, alert); err != nil {
		return nil, fmt.Errorf("create refill alert: %w", err)
	}

	s.logger.InfoContext(ctx, "refill alert created",
		slog.String("alert_id", alert.ID),
		slog.String("user_id", alert.UserID),
	)
	return alert, nil
}

func (s *RecommendationService) ExclusiveDrops(userID string) (*domain.ExclusiveDrops, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}
	drops := append([]domain.ExclusiveDrop{}, s.fixtures.ExclusiveDrops...)
	return &domain.ExclusiveDrops{Drops: drops, UserID: userID}, nil
}

func (s *RecommendationService) Personalized(userID string) *domain.PersonalizedRecommendations {
	return &domain.PersonalizedRecommendations{
		Recommendations: s.fixtures.Recommendations,
		UserID:          userID,
	}
}
