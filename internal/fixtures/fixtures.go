// Package fixtures holds the embedded sample catalog and the canned payloads
// served by the mock feed endpoints.
package fixtures

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/SajivJess/Wally/internal/domain"
)

//go:embed fixtures.yaml
var raw []byte

// Sample is the catalog inserted into an empty store.
type Sample struct {
	Products  []domain.Product        `json:"products"`
	Bundles   []domain.Bundle         `json:"bundles"`
	Users     []domain.User           `json:"users"`
	Missions  []domain.LoyaltyMission `json:"missions"`
	MealPlans []domain.MealPlan       `json:"meal_plans"`
	SmartTips []domain.SmartTip       `json:"smart_tips"`
}

// Set is the full fixture file.
type Set struct {
	Sample              Sample                         `json:"sample"`
	Ingredients         map[string][]domain.Ingredient `json:"ingredients"`
	VisualMatches       []domain.VisualMatch           `json:"visual_matches"`
	DefaultRefillAlerts []domain.RefillAlert           `json:"default_refill_alerts"`
	ExclusiveDrops      []domain.ExclusiveDrop         `json:"exclusive_drops"`
	Recommendations     domain.Recommendations         `json:"recommendations"`
	RouletteRewards     []string                       `json:"roulette_rewards"`
}

var (
	loadOnce sync.Once
	loaded   *Set
	loadErr  error
)

// Load parses the embedded fixture file once and returns the shared result.
// Callers must not mutate the returned set.
func Load() (*Set, error) {
	loadOnce.Do(func() {
		loaded, loadErr = Parse(raw)
	})
	return loaded, loadErr
}

// Parse decodes a fixture document. YAML is read generically and then decoded
// through the records' JSON tags, so fixture keys match the stored field
// names exactly. Unknown keys are rejected.
func Parse(data []byte) (*Set, error) {
	var generic map[string]any
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}

	encoded, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("encode fixtures: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(encoded))
	dec.DisallowUnknownFields()

	var set Set
	if err := dec.Decode(&set); err != nil {
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}
	return &set, nil
}

// MustLoad is Load for callers that cannot proceed without fixtures.
func MustLoad() *Set {
	set, err := Load()
	if err != nil {
		panic(err)
	}
	return set
}

// RefillAlertsFor returns copies of the default refill alerts addressed to userID.
func (s *Set) RefillAlertsFor(userID string) []domain.RefillAlert {
	alerts := make([]domain.RefillAlert, len(s.DefaultRefillAlerts))
	copy(alerts, s.DefaultRefillAlerts)
	for i := range alerts {
		alerts[i].UserID = userID
	}
	return alerts
}

// ShoppingList builds the ingredient list for goalType. Unknown goals yield an
// empty list with a zero total.
func (s *Set) ShoppingList(goalType string) *domain.ShoppingList {
	ingredients := append([]domain.Ingredient{}, s.Ingredients[goalType]...)
	var total int64
	for _, ing := range ingredients {
		total += ing.Price
	}
	return &domain.ShoppingList{
		GoalType:          goalType,
		Ingredients:       ingredients,
		TotalCost:         total,
		EstimatedServings: 7,
	}
}
