package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Aggregate Tests
// ============================================================================

func TestAggregate_Empty(t *testing.T) {
	items, amount := Aggregate(nil)
	assert.Equal(t, 0, items)
	assert.Equal(t, int64(0), amount)
}

func TestAggregate_MultipleItems(t *testing.T) {
	items, amount := Aggregate([]CartItem{
		{Price: 120, Quantity: 3},
		{Price: 799, Quantity: 1},
		{Price: 299, Quantity: 2},
	})
	assert.Equal(t, 6, items)
	assert.Equal(t, int64(360+799+598), amount)
}

func TestAggregate_LargeValuesDoNotOverflowInt32(t *testing.T) {
	items, amount := Aggregate([]CartItem{
		{Price: MaxPrice, Quantity: MaxQuantityPerItem},
		{Price: MaxPrice, Quantity: MaxQuantityPerItem},
	})
	assert.Equal(t, 200, items)
	assert.Equal(t, int64(2_000_000_000), amount)
}

// ============================================================================
// CartSummary Tests
// ============================================================================

func TestNewCartSummary_NilItemsEncodeAsArray(t *testing.T) {
	summary := NewCartSummary(nil)

	raw, err := json.Marshal(summary)
	require.NoError(t, err)
	assert.JSONEq(t, `{"items":[],"total_items":0,"total_amount":0}`, string(raw))
}

func TestNewCartSummary_Totals(t *testing.T) {
	summary := NewCartSummary([]CartItem{{ProductID: "prod-1", Price: 120, Quantity: 2}})
	assert.Equal(t, 2, summary.TotalItems)
	assert.Equal(t, int64(240), summary.TotalAmount)
	assert.Len(t, summary.Items, 1)
}

// ============================================================================
// Order ID Tests
// ============================================================================

func TestLegacyOrderID(t *testing.T) {
	assert.Equal(t, "WMTer-1001", LegacyOrderID("user-1"))
	assert.Equal(t, "WMTab001", LegacyOrderID("ab"))
	assert.Equal(t, LegacyOrderID("user-1"), LegacyOrderID("user-1"))
}

func TestUniqueOrderID(t *testing.T) {
	a := UniqueOrderID("user-1")
	b := UniqueOrderID("user-1")

	assert.True(t, strings.HasPrefix(a, "WMTer-1-"), a)
	assert.Len(t, a, len("WMTer-1-")+8)
	assert.NotEqual(t, a, b)
}

func TestOrderIDScheme(t *testing.T) {
	assert.Equal(t, "WMTer-1001", OrderIDScheme(OrderIDSchemeLegacy)("user-1"))
	assert.NotEqual(t, "WMTer-1001", OrderIDScheme(OrderIDSchemeUnique)("user-1"))
	assert.True(t, strings.HasPrefix(OrderIDScheme("anything")("user-1"), "WMT"))
}

func TestMissionProgress_FlattensMission(t *testing.T) {
	raw, err := json.Marshal(MissionProgress{
		LoyaltyMission: LoyaltyMission{ID: "mission-3", MissionType: "categories", Target: 3},
		UserProgress:   1,
	})
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "mission-3", out["id"])
	assert.Equal(t, float64(1), out["user_progress"])
}
