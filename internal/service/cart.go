package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/SajivJess/Wally/internal/domain"
	"github.com/SajivJess/Wally/internal/event"
	"github.com/SajivJess/Wally/internal/store"
	apperrors "github.com/SajivJess/Wally/pkg/errors"
)

// EventPublisher publishes cart and order events. *event.Producer satisfies it.
type EventPublisher interface {
	PublishItemChanged(ctx context.Context, action string, item *domain.CartItem) error
	PublishCartCleared(ctx context.Context, userID string, removed int64) error
	PublishOrderPlaced(ctx context.Context, userID string, order *domain.Order) error
}

// AddItemInput holds the parameters for adding an item to the cart.
type AddItemInput struct {
	UserID      string `json:"user_id"`
	ProductID   string `json:"product_id" validate:"required"`
	ProductName string `json:"product_name" validate:"required"`
	Price       *int64 `json:"price" validate:"required,gte=0,lte=10000000"`
	Image       string `json:"image"`
	Quantity    int    `json:"quantity" validate:"gte=1,lte=100"`
}

// UpdateQuantityInput holds the parameters for updating an item quantity.
// Zero or negative quantities remove the item; an absent quantity is invalid.
type UpdateQuantityInput struct {
	Quantity *int `json:"quantity" validate:"required,lte=100"`
}

// CartService implements the business logic for cart line items.
type CartService struct {
	items     *store.Typed[domain.CartItem]
	locks     *KeyedLocks
	publisher EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewCartService creates a new cart service. locks must be shared with the
// checkout service so checkout and cart mutations for one user never overlap.
func NewCartService(s store.Store, locks *KeyedLocks, publisher EventPublisher, logger *slog.Logger) *CartService {
	return &CartService{
		items:     newCartItems(s),
		locks:     locks,
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func newCartItems(s store.Store) *store.Typed[domain.CartItem] {
	return store.NewTyped[domain.CartItem](s, domain.CartItemsCollection, "cart item")
}

// GetCart returns the aggregated cart for a user. A user without items gets an
// empty summary.
func (s *CartService) GetCart(ctx context.Context, userID string) (*domain.CartSummary, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}

	items, err := s.items.FindMany(ctx, store.Filter{"user_id": userID}, 0)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	return domain.NewCartSummary(items), nil
}

// AddItem adds a product to the user's cart. When the cart already holds the
// product, the requested quantity is added to the existing line and the
// stored price, name and image are kept.
func (s *CartService) AddItem(ctx context.Context, userID string, input AddItemInput) (*domain.CartItem, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}
	if input.ProductID == "" {
		return nil, apperrors.InvalidInput("product id is required")
	}
	if input.Quantity <= 0 {
		return nil, apperrors.InvalidInput("quantity must be greater than 0")
	}
	if input.Quantity > domain.MaxQuantityPerItem {
		return nil, apperrors.InvalidInput(fmt.Sprintf("quantity must not exceed %d", domain.MaxQuantityPerItem))
	}
	if input.Price == nil {
		return nil, apperrors.InvalidInput("price is required")
	}
	price := *input.Price
	if price < 0 {
		return nil, apperrors.InvalidInput("price must not be negative")
	}
	if price > domain.MaxPrice {
		return nil, apperrors.InvalidInput(fmt.Sprintf("price must not exceed %d", domain.MaxPrice))
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	line := store.Filter{"user_id": userID, "product_id": input.ProductID}
	existing, err := s.items.FindMany(ctx, line, 1)
	if err != nil {
		return nil, fmt.Errorf("add item: %w", err)
	}

	if len(existing) > 0 {
		if existing[0].Quantity+input.Quantity > domain.MaxQuantityPerItem {
			return nil, apperrors.InvalidInput(fmt.Sprintf("combined quantity must not exceed %d", domain.MaxQuantityPerItem))
		}
	} else {
		lines, err := s.items.Count(ctx, store.Filter{"user_id": userID})
		if err != nil {
			return nil, fmt.Errorf("add item: %w", err)
		}
		if lines >= domain.MaxItemsPerCart {
			return nil, apperrors.InvalidInput(fmt.Sprintf("cart must not contain more than %d items", domain.MaxItemsPerCart))
		}
	}

	fresh := &domain.CartItem{
		ID:          uuid.New().String(),
		UserID:      userID,
		ProductID:   input.ProductID,
		ProductName: input.ProductName,
		Price:       price,
		Quantity:    input.Quantity,
		Image:       input.Image,
		AddedAt:     s.now(),
	}

	item, err := s.items.Upsert(ctx, line, map[string]int64{"quantity": int64(input.Quantity)}, fresh)
	if err != nil {
		return nil, fmt.Errorf("add item: %w", err)
	}

	action := event.ActionItemUpdated
	if item.ID == fresh.ID {
		action = event.ActionItemAdded
	}
	s.publish(ctx, userID, s.publisher.PublishItemChanged(ctx, action, item))

	s.logger.InfoContext(ctx, "item added to cart",
		slog.String("user_id", userID),
		slog.String("product_id", input.ProductID),
		slog.String("item_id", item.ID),
		slog.Int("quantity", item.Quantity),
	)

	return item, nil
}

// UpdateItemQuantity sets the quantity of one of the user's items. A quantity
// of zero or less removes the item, in which case the returned item is nil.
func (s *CartService) UpdateItemQuantity(ctx context.Context, userID, itemID string, quantity int) (*domain.CartItem, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}
	if itemID == "" {
		return nil, apperrors.InvalidInput("item id is required")
	}
	if quantity > domain.MaxQuantityPerItem {
		return nil, apperrors.InvalidInput(fmt.Sprintf("quantity must not exceed %d", domain.MaxQuantityPerItem))
	}

	if quantity <= 0 {
		return nil, s.RemoveItem(ctx, userID, itemID)
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	owned := store.Filter{store.IDField: itemID, "user_id": userID}
	res, err := s.items.UpdateOne(ctx, owned, store.Update{Set: store.Document{"quantity": quantity}})
	if err != nil {
		return nil, fmt.Errorf("update item quantity: %w", err)
	}
	if res.Matched == 0 {
		return nil, apperrors.NotFound("cart item", itemID)
	}

	item, err := s.items.FindOne(ctx, owned)
	if err != nil {
		return nil, fmt.Errorf("update item quantity: %w", err)
	}

	s.publish(ctx, userID, s.publisher.PublishItemChanged(ctx, event.ActionItemUpdated, item))

	s.logger.InfoContext(ctx, "cart item quantity updated",
		slog.String("user_id", userID),
		slog.String("item_id", itemID),
		slog.Int("quantity", quantity),
	)

	return item, nil
}

// RemoveItem deletes one of the user's items.
func (s *CartService) RemoveItem(ctx context.Context, userID, itemID string) error {
	if userID == "" {
		return apperrors.InvalidInput("user id is required")
	}
	if itemID == "" {
		return apperrors.InvalidInput("item id is required")
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	deleted, err := s.items.DeleteOne(ctx, store.Filter{store.IDField: itemID, "user_id": userID})
	if err != nil {
		return fmt.Errorf("remove item: %w", err)
	}
	if deleted == 0 {
		return apperrors.NotFound("cart item", itemID)
	}

	removed := &domain.CartItem{ID: itemID, UserID: userID}
	s.publish(ctx, userID, s.publisher.PublishItemChanged(ctx, event.ActionItemRemoved, removed))

	s.logger.InfoContext(ctx, "item removed from cart",
		slog.String("user_id", userID),
		slog.String("item_id", itemID),
	)

	return nil
}

// ClearCart deletes every item in the user's cart and returns how many were
// removed. Clearing an empty cart is not an error.
func (s *CartService) ClearCart(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, apperrors.InvalidInput("user id is required")
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	removed, err := s.items.DeleteMany(ctx, store.Filter{"user_id": userID})
	if err != nil {
		return 0, fmt.Errorf("clear cart: %w", err)
	}

	s.publish(ctx, userID, s.publisher.PublishCartCleared(ctx, userID, removed))

	s.logger.InfoContext(ctx, "cart cleared",
		slog.String("user_id", userID),
		slog.Int64("removed", removed),
	)

	return removed, nil
}

func (s *CartService) publish(ctx context.Context, userID string, err error) {
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart event",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}
