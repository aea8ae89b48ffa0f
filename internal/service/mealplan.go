package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/SajivJess/Wally/internal/domain"
	"github.com/SajivJess/Wally/internal/fixtures"
	"github.com/SajivJess/Wally/internal/store"
	apperrors "github.com/SajivJess/Wally/pkg/errors"
)

const mealPlanListLimit = 100

// CreateMealPlanInput holds the parameters for creating a meal plan.
type CreateMealPlanInput struct {
	GoalType       string   `json:"goal_type" validate:"required"`
	Monday         []string `json:"monday" validate:"required"`
	Tuesday        []string `json:"tuesday" validate:"required"`
	Wednesday      []string `json:"wednesday" validate:"required"`
	Thursday       []string `json:"thursday" validate:"required"`
	Friday         []string `json:"friday" validate:"required"`
	Saturday       []string `json:"saturday" validate:"required"`
	Sunday         []string `json:"sunday" validate:"required"`
	EstimatedCost  int64    `json:"estimated_cost" validate:"gte=0"`
	CaloriesPerDay int      `json:"calories_per_day" validate:"gte=0"`
}

// MealPlanService manages weekly meal plans and their shopping lists.
type MealPlanService struct {
	plans    *store.Typed[domain.MealPlan]
	fixtures *fixtures.Set
	logger   *slog.Logger
}

func NewMealPlanService(s store.Store, set *fixtures.Set, logger *slog.Logger) *MealPlanService {
	return &MealPlanService{
		plans:    store.NewTyped[domain.MealPlan](s, domain.MealPlansCollection, "meal plan"),
		fixtures: set,
		logger:   logger,
	}
}

func (s *MealPlanService) ListMealPlans(ctx context.Context, goalType string) ([]domain.MealPlan, error) {
	filter := store.Filter{}
	if goalType != "" {
		filter["goal_type"] = goalType
	}
	return s.plans.FindMany(ctx, filter, mealPlanListLimit)
}

func (s *MealPlanService) GetMealPlan(ctx context.Context, id string) (*domain.MealPlan, error) {
	return s.plans.FindOne(ctx, store.Filter{store.IDField: id})
}

// GetByGoal returns the first meal plan for goalType.
func (s *MealPlanService) GetByGoal(ctx context.Context, goalType string) (*domain.MealPlan, error) {
	plan, err := s.plans.FindOne(ctx, store.Filter{"goal_type": goalType})
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFoundf("Meal plan for %s not found", goalType)
		}
		return nil, err
	}
	return plan, nil
}

func (s *MealPlanService) CreateMealPlan(ctx context.Context, input CreateMealPlanInput) (*domain.MealPlan, error) {
	if input.GoalType == "" {
		return nil, apperrors.InvalidInput("goal type is required")
	}

	plan := &domain.MealPlan{
		ID:             uuid.New().String(),
		GoalType:       input.GoalType,
		Monday:         orEmpty(input.Monday),
		Tuesday:        orEmpty(input.Tuesday),
		Wednesday:      orEmpty(input.Wednesday),
		Thursday:       orEmpty(input.Thursday),
		Friday:         orEmpty(input.Friday),
		Saturday:       orEmpty(input.Saturday),
		Sunday:         orEmpty(input.Sunday),
		EstimatedCost:  input.EstimatedCost,
		CaloriesPerDay: input.CaloriesPerDay,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.plans.InsertOne(ctx, plan); err != nil {
		return nil, fmt.Errorf("create meal plan: %w", err)
	}

	s.logger.InfoContext(ctx, "meal plan created",
		slog.String("meal_plan_id", plan.ID),
		slog.String("goal_type", plan.GoalType),
	)
	return plan, nil
}

// Ingredients returns the shopping list for a goal that has a meal plan.
func (s *MealPlanService) Ingredients(ctx context.Context, goalType string) (*domain.ShoppingList, error) {
	if _, err := s.GetByGoal(ctx, goalType); err != nil {
		return nil, err
	}
	return s.fixtures.ShoppingList(goalType), nil
}

// AvailableGoals lists the distinct goal types across stored meal plans.
func (s *MealPlanService) AvailableGoals(ctx context.Context) ([]string, error) {
	return s.plans.DistinctStrings(ctx, "goal_type", store.Filter{})
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
