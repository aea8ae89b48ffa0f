package fixtures

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_SampleCatalog(t *testing.T) {
	set, err := Load()
	require.NoError(t, err)

	assert.Len(t, set.Sample.Products, 3)
	assert.Len(t, set.Sample.Bundles, 3)
	assert.Len(t, set.Sample.Missions, 3)
	assert.Len(t, set.Sample.MealPlans, 3)
	assert.Len(t, set.Sample.SmartTips, 2)
	require.Len(t, set.Sample.Users, 1)

	user := set.Sample.Users[0]
	assert.Equal(t, "user-1", user.ID)
	assert.Equal(t, "Chennai", user.Location)
	assert.Equal(t, int64(2450), user.Points)

	prod := set.Sample.Products[0]
	assert.Equal(t, "prod-1", prod.ID)
	assert.Equal(t, int64(120), prod.Price)
	require.NotNil(t, prod.OriginalPrice)
	assert.Equal(t, int64(150), *prod.OriginalPrice)

	assert.Equal(t, []string{"prod-1", "prod-3"}, set.Sample.Bundles[0].ProductIDs)
	assert.Equal(t, "+100 points", set.Sample.Missions[0].Reward)
	assert.Equal(t, "Weight Loss", set.Sample.MealPlans[0].GoalType)
}

func TestLoad_MockPayloads(t *testing.T) {
	set := MustLoad()

	assert.Len(t, set.VisualMatches, 3)
	assert.Len(t, set.ExclusiveDrops, 2)
	assert.Len(t, set.RouletteRewards, 8)
	assert.Len(t, set.Recommendations.TopProducts, 3)
	require.Len(t, set.Recommendations.SuggestedSwitches, 1)
	assert.InDelta(t, 4.5, set.Recommendations.SuggestedSwitches[0].QualityRating, 0.001)
}

func TestRefillAlertsFor(t *testing.T) {
	set := MustLoad()

	alerts := set.RefillAlertsFor("user-7")
	require.Len(t, alerts, 2)
	for _, a := range alerts {
		assert.Equal(t, "user-7", a.UserID)
		assert.True(t, a.Active)
	}
	assert.Equal(t, "Baby Wipes", alerts[0].ProductName)
	assert.Equal(t, 3, alerts[0].DaysLeft)

	// The shared defaults stay unaddressed.
	assert.Empty(t, set.DefaultRefillAlerts[0].UserID)
}

func TestShoppingList(t *testing.T) {
	set := MustLoad()

	list := set.ShoppingList("High Protein")
	assert.Len(t, list.Ingredients, 5)
	assert.Equal(t, int64(3610), list.TotalCost)
	assert.Equal(t, 7, list.EstimatedServings)

	empty := set.ShoppingList("Bulking")
	assert.NotNil(t, empty.Ingredients)
	assert.Empty(t, empty.Ingredients)
	assert.Zero(t, empty.TotalCost)
}

func TestParse_RejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("sample:\n  products:\n    - id: p\n      colour: red\n"))
	require.Error(t, err)
}

func TestParse_RejectsMalformedYAML(t *testing.T) {
	_, err := Parse([]byte("sample: [unterminated"))
	require.Error(t, err)
}
