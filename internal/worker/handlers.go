package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"order-core/internal/models"
	"order-core/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventStore provides the processed-events ledger consumers use to make
// at-least-once redelivery safe.
type EventStore interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// ProductCache is the cache layer the stock consumers keep fresh.
type ProductCache interface {
	DelProduct(ctx context.Context, productID int64) error
}

// Publisher is the outbound side for handlers that fan events out.
type Publisher interface {
	PublishStockDeduction(ctx context.Context, orderID, productID int64, quantity int) error
	PublishStockRecovery(ctx context.Context, orderID, productID int64, quantity int) error
	PublishNotification(ctx context.Context, kind string, userID, orderID int64, subject, content string) error
}

// Handlers holds the message handlers for every queue this service
// consumes. Every handler checks the event ledger first, so a redelivered
// message never applies its effect twice.
type Handlers struct {
	store     EventStore
	cache     ProductCache
	publisher Publisher
	logger    *zap.Logger
}

// NewHandlers creates the consumer handler set
func NewHandlers(store EventStore, cache ProductCache, publisher Publisher) *Handlers {
	return &Handlers{
		store:     store,
		cache:     cache,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// alreadyProcessed reports whether the event was handled before.
func (h *Handlers) alreadyProcessed(ctx context.Context, eventID string) (bool, error) {
	processed, err := h.store.IsEventProcessed(ctx, eventID)
	if err != nil {
		return false, fmt.Errorf("failed to check event ledger: %w", err)
	}
	if processed {
		h.logger.Debug("Event already processed", zap.String("event_id", eventID))
	}
	return processed, nil
}

// HandleOrderCreated fans an order.created event out into per-item stock
// deduction messages and a payment-reminder notification.
func (h *Handlers) HandleOrderCreated(ctx context.Context, msg kafka.Message) error {
	var event models.OrderEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal order event: %w", err)
	}

	if done, err := h.alreadyProcessed(ctx, event.EventID); err != nil || done {
		return err
	}

	for _, item := range event.Items {
		if err := h.publisher.PublishStockDeduction(ctx, event.OrderID, item.ProductID, item.Quantity); err != nil {
			return err
		}
	}

	content := fmt.Sprintf("Your order %s has been created. Please complete payment soon.", event.OrderNo)
	if err := h.publisher.PublishNotification(ctx, "order_created", event.UserID, event.OrderID, "Order created", content); err != nil {
		return err
	}

	return h.store.MarkEventProcessed(ctx, event.EventID, event.EventType)
}

// HandleOrderPaid notifies the user that payment was received.
func (h *Handlers) HandleOrderPaid(ctx context.Context, msg kafka.Message) error {
	var event models.OrderEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal order event: %w", err)
	}

	if done, err := h.alreadyProcessed(ctx, event.EventID); err != nil || done {
		return err
	}

	content := fmt.Sprintf("Payment for order %s was received. We will ship it shortly.", event.OrderNo)
	if err := h.publisher.PublishNotification(ctx, "order_paid", event.UserID, event.OrderID, "Payment received", content); err != nil {
		return err
	}

	return h.store.MarkEventProcessed(ctx, event.EventID, event.EventType)
}

// HandleOrderCancelled fans an order.cancelled event out into per-item
// stock recovery messages and a notification.
func (h *Handlers) HandleOrderCancelled(ctx context.Context, msg kafka.Message) error {
	var event models.OrderEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal order event: %w", err)
	}

	if done, err := h.alreadyProcessed(ctx, event.EventID); err != nil || done {
		return err
	}

	for _, item := range event.Items {
		if err := h.publisher.PublishStockRecovery(ctx, event.OrderID, item.ProductID, item.Quantity); err != nil {
			return err
		}
	}

	content := fmt.Sprintf("Your order %s has been cancelled and any reserved stock released.", event.OrderNo)
	if err := h.publisher.PublishNotification(ctx, "order_cancelled", event.UserID, event.OrderID, "Order cancelled", content); err != nil {
		return err
	}

	return h.store.MarkEventProcessed(ctx, event.EventID, event.EventType)
}

// HandleStockAdjustment serves both stock.deduction and stock.recovery.
// The database already holds the authoritative counter, adjusted inside
// the order transaction; the consumer's job is dropping the cached
// product snapshot so readers see fresh stock. Invalidation is naturally
// idempotent, but the ledger check keeps redeliveries cheap.
func (h *Handlers) HandleStockAdjustment(ctx context.Context, msg kafka.Message) error {
	var event models.StockEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal stock event: %w", err)
	}

	if done, err := h.alreadyProcessed(ctx, event.EventID); err != nil || done {
		return err
	}

	if err := h.cache.DelProduct(ctx, event.ProductID); err != nil {
		return fmt.Errorf("failed to invalidate product %d: %w", event.ProductID, err)
	}

	h.logger.Debug("Stock mirror refreshed",
		zap.String("event_type", event.EventType),
		zap.Int64("product_id", event.ProductID),
		zap.Int("quantity", event.Quantity))

	return h.store.MarkEventProcessed(ctx, event.EventID, event.EventType)
}

// HandleNotification delivers a user notification. Delivery is mocked as
// a log line; a real sender would go here.
func (h *Handlers) HandleNotification(ctx context.Context, msg kafka.Message) error {
	var event models.NotificationEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal notification event: %w", err)
	}

	if done, err := h.alreadyProcessed(ctx, event.EventID); err != nil || done {
		return err
	}

	h.logger.Info("Sending notification",
		zap.String("kind", event.Kind),
		zap.Int64("user_id", event.UserID),
		zap.Int64("order_id", event.OrderID),
		zap.String("subject", event.Subject))

	return h.store.MarkEventProcessed(ctx, event.EventID, event.EventType)
}
