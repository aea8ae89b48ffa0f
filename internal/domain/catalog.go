package domain

import "time"

// Catalog collection names.
const (
	UsersCollection           = "users"
	ProductsCollection        = "products"
	BundlesCollection         = "bundles"
	LoyaltyMissionsCollection = "loyalty_missions"
	MealPlansCollection       = "meal_plans"
	RefillAlertsCollection    = "refill_alerts"
	SmartTipsCollection       = "smart_tips"
)

type User struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Location         string    `json:"location"`
	Points           int64     `json:"points"`
	SavingsThisMonth int64     `json:"savings_this_month"`
	CreatedAt        time.Time `json:"created_at"`
}

type Product struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Price         int64     `json:"price"`
	OriginalPrice *int64    `json:"original_price"`
	Image         string    `json:"image"`
	Category      string    `json:"category"`
	Description   *string   `json:"description"`
	InStock       bool      `json:"in_stock"`
	CreatedAt     time.Time `json:"created_at"`
}

// Bundle groups products sold together. Savings is OriginalPrice - Price.
type Bundle struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Price         int64     `json:"price"`
	OriginalPrice int64     `json:"original_price"`
	Savings       int64     `json:"savings"`
	ItemsCount    int       `json:"items_count"`
	Image         string    `json:"image"`
	ProductIDs    []string  `json:"product_ids"`
	CreatedAt     time.Time `json:"created_at"`
}

// LoyaltyMission tracks progress toward a reward. Progress never exceeds Target.
type LoyaltyMission struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Reward      string    `json:"reward"`
	Progress    int       `json:"progress"`
	Target      int       `json:"target"`
	MissionType string    `json:"mission_type"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

// MissionProgress is a mission annotated with the requesting user's progress.
type MissionProgress struct {
	LoyaltyMission
	UserProgress int `json:"user_progress"`
}

// MealPlan is a week of meals for one goal, e.g. "Weight Loss".
type MealPlan struct {
	ID             string    `json:"id"`
	GoalType       string    `json:"goal_type"`
	Monday         []string  `json:"monday"`
	Tuesday        []string  `json:"tuesday"`
	Wednesday      []string  `json:"wednesday"`
	Thursday       []string  `json:"thursday"`
	Friday         []string  `json:"friday"`
	Saturday       []string  `json:"saturday"`
	Sunday         []string  `json:"sunday"`
	EstimatedCost  int64     `json:"estimated_cost"`
	CaloriesPerDay int       `json:"calories_per_day"`
	CreatedAt      time.Time `json:"created_at"`
}

type RefillAlert struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	ProductName string    `json:"product_name"`
	DaysLeft    int       `json:"days_left"`
	Discount    string    `json:"discount"`
	Image       string    `json:"image"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

type SmartTip struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Savings   string    `json:"savings"`
	Image     string    `json:"image"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserProfile combines a user with their cart and the currently active missions.
type UserProfile struct {
	User           *User            `json:"user"`
	CartSummary    *CartSummary     `json:"cart_summary"`
	ActiveMissions []LoyaltyMission `json:"active_missions"`
}

// Ingredient is one line of a meal plan shopping list.
type Ingredient struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Price int64  `json:"price" yaml:"price"`
	Image string `json:"image" yaml:"image"`
}

// ShoppingList is the ingredient list for a meal plan goal.
type ShoppingList struct {
	GoalType          string       `json:"goal_type"`
	Ingredients       []Ingredient `json:"ingredients"`
	TotalCost         int64        `json:"total_cost"`
	EstimatedServings int          `json:"estimated_servings"`
}
