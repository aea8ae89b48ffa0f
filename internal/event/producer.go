package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/SajivJess/Wally/internal/domain"
	pkgkafka "github.com/SajivJess/Wally/pkg/kafka"
	"github.com/SajivJess/Wally/pkg/logger"
)

// Kafka topics for cart domain events.
var (
	TopicCartUpdated = pkgkafka.Topic("cart", "updated")
	TopicCartCleared = pkgkafka.Topic("cart", "cleared")
	TopicOrderPlaced = pkgkafka.Topic("order", "placed")
)

// Cart item actions carried by cart.updated events.
const (
	ActionItemAdded   = "item_added"
	ActionItemUpdated = "item_updated"
	ActionItemRemoved = "item_removed"
)

const (
	AggregateTypeCart = "cart"
	SourceWally       = "wally-api"
)

// ItemChangedData is the payload for a cart.updated event.
type ItemChangedData struct {
	UserID    string `json:"user_id"`
	Action    string `json:"action"`
	ItemID    string `json:"item_id"`
	ProductID string `json:"product_id,omitempty"`
	Quantity  int    `json:"quantity"`
	Price     int64  `json:"price,omitempty"`
}

// CartClearedData is the payload for a cart.cleared event.
type CartClearedData struct {
	UserID       string `json:"user_id"`
	RemovedItems int64  `json:"removed_items"`
}

// OrderPlacedData is the payload for an order.placed event.
type OrderPlacedData struct {
	UserID      string `json:"user_id"`
	OrderID     string `json:"order_id"`
	TotalItems  int    `json:"total_items"`
	TotalAmount int64  `json:"total_amount"`
}

// Publisher writes an event to a topic. *pkgkafka.Producer satisfies it.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes cart and order events. A Producer without a publisher
// drops every event, which is how the service runs with Kafka disabled.
type Producer struct {
	publisher Publisher
	logger    *slog.Logger
}

// NewProducer creates an event producer. publisher may be nil.
func NewProducer(publisher Publisher, logger *slog.Logger) *Producer {
	return &Producer{publisher: publisher, logger: logger}
}

// Enabled reports whether events are actually sent.
func (p *Producer) Enabled() bool {
	return p != nil && p.publisher != nil
}

// PublishItemChanged publishes a cart.updated event for one line item.
func (p *Producer) PublishItemChanged(ctx context.Context, action string, item *domain.CartItem) error {
	return p.publish(ctx, TopicCartUpdated, item.UserID, ItemChangedData{
		UserID:    item.UserID,
		Action:    action,
		ItemID:    item.ID,
		ProductID: item.ProductID,
		Quantity:  item.Quantity,
		Price:     item.Price,
	})
}

// PublishCartCleared publishes a cart.cleared event.
func (p *Producer) PublishCartCleared(ctx context.Context, userID string, removed int64) error {
	return p.publish(ctx, TopicCartCleared, userID, CartClearedData{
		UserID:       userID,
		RemovedItems: removed,
	})
}

// PublishOrderPlaced publishes an order.placed event.
func (p *Producer) PublishOrderPlaced(ctx context.Context, userID string, order *domain.Order) error {
	return p.publish(ctx, TopicOrderPlaced, userID, OrderPlacedData{
		UserID:      userID,
		OrderID:     order.OrderID,
		TotalItems:  order.TotalItems,
		TotalAmount: order.TotalAmount,
	})
}

func (p *Producer) publish(ctx context.Context, topic, userID string, data any) error {
	if !p.Enabled() {
		return nil
	}

	evt, err := pkgkafka.NewEvent(topic, userID, AggregateTypeCart, SourceWally, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		evt.WithCorrelationID(id)
	}

	if err := p.publisher.Publish(ctx, topic, evt); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.String("user_id", userID),
	)
	return nil
}
