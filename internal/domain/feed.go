package domain

// Static feed payloads. These endpoints return canned data; nothing here is
// persisted.

type VisualMatch struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Price           int64  `json:"price"`
	OriginalPrice   int64  `json:"original_price"`
	MatchPercentage int    `json:"match_percentage"`
	Image           string `json:"image"`
	Category        string `json:"category"`
}

type VisualSearchResult struct {
	Results []VisualMatch `json:"results"`
	Query   string        `json:"query"`
}

type ExclusiveDrop struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Price         int64  `json:"price"`
	OriginalPrice int64  `json:"original_price"`
	EarlyAccess   bool   `json:"early_access"`
	Image         string `json:"image"`
	Description   string `json:"description"`
}

type ExclusiveDrops struct {
	Drops  []ExclusiveDrop `json:"drops"`
	UserID string          `json:"user_id"`
}

type TopProduct struct {
	Name          string `json:"name"`
	PurchaseCount int    `json:"purchase_count"`
	Savings       string `json:"savings"`
}

type SuggestedSwitch struct {
	CurrentProduct   string  `json:"current_product"`
	SuggestedProduct string  `json:"suggested_product"`
	MonthlySavings   string  `json:"monthly_savings"`
	QualityRating    float64 `json:"quality_rating"`
}

type ReorderSuggestion struct {
	Product        string `json:"product"`
	LastPurchase   string `json:"last_purchase"`
	TypicalReorder string `json:"typical_reorder"`
	Discount       string `json:"discount"`
}

type Recommendations struct {
	TopProducts        []TopProduct        `json:"top_products"`
	SuggestedSwitches  []SuggestedSwitch   `json:"suggested_switches"`
	ReorderSuggestions []ReorderSuggestion `json:"reorder_suggestions"`
}

type PersonalizedRecommendations struct {
	Recommendations Recommendations `json:"recommendations"`
	UserID          string          `json:"user_id"`
}

// RouletteSpin is the outcome of one roulette spin.
type RouletteSpin struct {
	Reward  string `json:"reward"`
	Message string `json:"message"`
}

// UserMissions lists the active missions annotated with a user's progress.
type UserMissions struct {
	Missions []MissionProgress `json:"missions"`
	UserID   string            `json:"user_id"`
}
