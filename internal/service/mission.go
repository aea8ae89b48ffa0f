package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/SajivJess/Wally/internal/domain"
	"github.com/SajivJess/Wally/internal/fixtures"
	"github.com/SajivJess/Wally/internal/store"
	apperrors "github.com/SajivJess/Wally/pkg/errors"
)

const (
	missionListLimit = 100

	// categoriesMissionType missions report one category already covered for
	// every user until per-user tracking exists.
	categoriesMissionType = "categories"
)

// CreateMissionInput holds the parameters for creating a loyalty mission.
type CreateMissionInput struct {
	Title       string `json:"title" validate:"required"`
	Reward      string `json:"reward" validate:"required"`
	Target      int    `json:"target" validate:"gte=1"`
	MissionType string `json:"mission_type" validate:"required"`
}

// MissionService manages loyalty missions and the reward roulette.
type MissionService struct {
	missions *store.Typed[domain.LoyaltyMission]
	locks    *KeyedLocks
	rewards  []string
	pick     func(n int) int
	logger   *slog.Logger
}

func newMissions(s store.Store) *store.Typed[domain.LoyaltyMission] {
	return store.NewTyped[domain.LoyaltyMission](s, domain.LoyaltyMissionsCollection, "mission")
}

func NewMissionService(s store.Store, set *fixtures.Set, logger *slog.Logger) *MissionService {
	return &MissionService{
		missions: newMissions(s),
		locks:    NewKeyedLocks(),
		rewards:  set.RouletteRewards,
		pick:     rand.IntN,
		logger:   logger,
	}
}

func (s *MissionService) ListMissions(ctx context.Context, activeOnly bool) ([]domain.LoyaltyMission, error) {
	filter := store.Filter{}
	if activeOnly {
		filter["active"] = true
	}
	return s.missions.FindMany(ctx, filter, missionListLimit)
}

func (s *MissionService) GetMission(ctx context.Context, id string) (*domain.LoyaltyMission, error) {
	return s.missions.FindOne(ctx, store.Filter{store.IDField: id})
}

func (s *MissionService) CreateMission(ctx context.Context, input CreateMissionInput) (*domain.LoyaltyMission, error) {
	if input.Title == "" {
		return nil, apperrors.InvalidInput("title is required")
	}
	if input.Target < 1 {
		return nil, apperrors.InvalidInput("target must be at least 1")
	}

	mission := &domain.LoyaltyMission{
		ID:          uuid.New().String(),
		Title:       input.Title,
		Reward:      input.Reward,
		Target:      input.Target,
		MissionType: input.MissionType,
		Active:      true,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.missions.InsertOne(ctx, mission); err != nil {
		return nil, fmt.Errorf("create mission: %w", err)
	}

	s.logger.InfoContext(ctx, "mission created", slog.String("mission_id", mission.ID))
	return mission, nil
}

// AdvanceProgress adds increment to the mission's progress, keeping it within
// [0, target], and returns the new value. Calls for one mission are applied
// one at a time.
func (s *MissionService) AdvanceProgress(ctx context.Context, id string, increment int) (int, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	filter := store.Filter{store.IDField: id}
	mission, err := s.missions.FindOne(ctx, filter)
	if err != nil {
		return 0, err
	}

	progress := min(max(mission.Progress+increment, 0), mission.Target)

	res, err := s.missions.UpdateOne(ctx, filter, store.Update{Set: store.Document{"progress": progress}})
	if err != nil {
		return 0, fmt.Errorf("update mission progress: %w", err)
	}
	if res.Matched == 0 {
		return 0, apperrors.NotFound("mission", id)
	}

	s.logger.InfoContext(ctx, "mission progress updated",
		slog.String("mission_id", id),
		slog.Int("progress", progress),
	)
	return progress, nil
}

// SpinRoulette draws one reward uniformly from the reward list.
func (s *MissionService) SpinRoulette(ctx context.Context, userID string) (*domain.RouletteSpin, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}
	if len(s.rewards) == 0 {
		return nil, apperrors.Internal(fmt.Errorf("roulette has no rewards"))
	}

	reward := s.rewards[s.pick(len(s.rewards))]

	s.logger.InfoContext(ctx, "roulette spun",
		slog.String("user_id", userID),
		slog.String("reward", reward),
	)
	return &domain.RouletteSpin{
		Reward:  reward,
		Message: "Congratulations! You won: " + reward,
	}, nil
}

// UserProgress lists the active missions with the user's progress on each.
func (s *MissionService) UserProgress(ctx context.Context, userID string) (*domain.UserMissions, error) {
	missions, err := s.missions.FindMany(ctx, store.Filter{"active": true}, missionListLimit)
	if err != nil {
		return nil, err
	}

	out := make([]domain.MissionProgress, 0, len(missions))
	for _, m := range missions {
		progress := 0
		if m.MissionType == categoriesMissionType {
			progress = 1
		}
		out = append(out, domain.MissionProgress{LoyaltyMission: m, UserProgress: progress})
	}
	return &domain.UserMissions{Missions: out, UserID: userID}, nil
}
