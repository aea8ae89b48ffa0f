package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/SajivJess/Wally/internal/domain"
	"github.com/SajivJess/Wally/internal/store"
	apperrors "github.com/SajivJess/Wally/pkg/errors"
)

var (
	checkoutsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_attempts_total",
			Help: "Total number of checkout attempts by outcome",
		},
		[]string{"outcome"},
	)

	checkoutAmount = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "checkout_order_amount",
			Help:    "Order totals of successful checkouts in the smallest currency unit",
			Buckets: prometheus.ExponentialBuckets(100, 4, 8),
		},
	)
)

// CheckoutService turns a user's cart into an order and empties the cart.
type CheckoutService struct {
	items     *store.Typed[domain.CartItem]
	locks     *KeyedLocks
	publisher EventPublisher
	logger    *slog.Logger
	orderID   domain.OrderIDFunc
}

// NewCheckoutService creates a checkout service. A nil orderID selects the
// unique order id scheme.
func NewCheckoutService(s store.Store, locks *KeyedLocks, publisher EventPublisher, orderID domain.OrderIDFunc, logger *slog.Logger) *CheckoutService {
	if orderID == nil {
		orderID = domain.UniqueOrderID
	}
	return &CheckoutService{
		items:     newCartItems(s),
		locks:     locks,
		publisher: publisher,
		logger:    logger,
		orderID:   orderID,
	}
}

// Checkout snapshots the cart, totals it and clears it. An empty cart is
// rejected without touching the store. If clearing fails the cart is left
// as it was and no order is returned, so the caller can retry.
func (s *CheckoutService) Checkout(ctx context.Context, userID string) (*domain.Order, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	owned := store.Filter{"user_id": userID}
	items, err := s.items.FindMany(ctx, owned, 0)
	if err != nil {
		checkoutsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("checkout: %w", err)
	}
	if len(items) == 0 {
		checkoutsTotal.WithLabelValues("empty_cart").Inc()
		return nil, apperrors.EmptyCart()
	}

	totalItems, totalAmount := domain.Aggregate(items)

	if _, err := s.items.DeleteMany(ctx, owned); err != nil {
		checkoutsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("checkout: clear cart: %w", err)
	}

	order := &domain.Order{
		Message:           domain.OrderPlacedMessage,
		OrderID:           s.orderID(userID),
		TotalItems:        totalItems,
		TotalAmount:       totalAmount,
		EstimatedDelivery: domain.DefaultEstimatedDelivery,
	}

	checkoutsTotal.WithLabelValues("ok").Inc()
	checkoutAmount.Observe(float64(totalAmount))

	if err := s.publisher.PublishOrderPlaced(ctx, userID, order); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.placed event",
			slog.String("user_id", userID),
			slog.String("order_id", order.OrderID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "order placed",
		slog.String("user_id", userID),
		slog.String("order_id", order.OrderID),
		slog.Int("total_items", totalItems),
		slog.Int64("total_amount", totalAmount),
	)

	return order, nil
}
