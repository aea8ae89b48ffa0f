package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Cart limits enforced on every mutation.
const (
	MaxQuantityPerItem = 100
	MaxItemsPerCart    = 50
	MaxPrice           = 100_000_00
)

// Collection names used by the cart workflow.
const CartItemsCollection = "cart_items"

// CartItem is one product line in a user's cart. At most one item exists per
// (UserID, ProductID); prices are in the smallest currency unit.
type CartItem struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	ProductID   string    `json:"product_id"`
	ProductName string    `json:"product_name"`
	Price       int64     `json:"price"`
	Quantity    int       `json:"quantity"`
	Image       string    `json:"image"`
	AddedAt     time.Time `json:"added_at"`
}

// CartSummary is the derived view of a cart. It is recomputed on every read.
type CartSummary struct {
	Items       []CartItem `json:"items"`
	TotalItems  int        `json:"total_items"`
	TotalAmount int64      `json:"total_amount"`
}

// NewCartSummary aggregates items into a summary. A nil slice is normalised
// so the summary always encodes "items" as a JSON array.
func NewCartSummary(items []CartItem) *CartSummary {
	if items == nil {
		items = []CartItem{}
	}
	totalItems, totalAmount := Aggregate(items)
	return &CartSummary{
		Items:       items,
		TotalItems:  totalItems,
		TotalAmount: totalAmount,
	}
}

// Aggregate returns the sum of quantities and the sum of price*quantity.
// An empty cart aggregates to (0, 0).
func Aggregate(items []CartItem) (totalItems int, totalAmount int64) {
	for _, item := range items {
		totalItems += item.Quantity
		totalAmount += item.Price * int64(item.Quantity)
	}
	return totalItems, totalAmount
}

// Order is the confirmation returned by a successful checkout. It is not
// persisted.
type Order struct {
	Message           string `json:"message"`
	OrderID           string `json:"order_id"`
	TotalItems        int    `json:"total_items"`
	TotalAmount       int64  `json:"total_amount"`
	EstimatedDelivery string `json:"estimated_delivery"`
}

const (
	OrderPlacedMessage       = "Order placed successfully"
	DefaultEstimatedDelivery = "2 hours"
	orderIDPrefix            = "WMT"
)

// OrderIDFunc derives an order id for a user's checkout.
type OrderIDFunc func(userID string) string

// Order id schemes selectable through configuration.
const (
	OrderIDSchemeLegacy = "legacy"
	OrderIDSchemeUnique = "unique"
)

// OrderIDScheme resolves a scheme name to its generator; unknown names fall
// back to the unique scheme.
func OrderIDScheme(name string) OrderIDFunc {
	if name == OrderIDSchemeLegacy {
		return LegacyOrderID
	}
	return UniqueOrderID
}

// LegacyOrderID reproduces the historical "WMT" + last four characters of the
// user id + "001" format. It repeats for every checkout of the same user.
func LegacyOrderID(userID string) string {
	return orderIDPrefix + lastN(userID, 4) + "001"
}

// UniqueOrderID keeps the legacy prefix but appends eight random hex
// characters, so repeated checkouts yield distinct ids.
func UniqueOrderID(userID string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return orderIDPrefix + lastN(userID, 4) + "-" + suffix
}

func lastN(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}
