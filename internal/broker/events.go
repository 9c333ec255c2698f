package broker

import (
	"context"
	"fmt"
	"time"

	"order-core/internal/models"

	"github.com/google/uuid"
)

// EventPublisher handles publishing domain events. Publishing is
// best-effort: the caller logs failures and never rolls back the state
// transition that produced the event.
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}

// fanOutBaseEvent derives the event id from the event's own coordinates.
// Fan-out happens inside consumers, so a redelivered upstream message
// re-publishes byte-identical ids and the processed_events ledger drops
// the duplicates instead of emailing or invalidating twice.
func fanOutBaseEvent(eventType, key string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.NewSHA1(uuid.NameSpaceOID, []byte(eventType+":"+key)).String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}

func orderKey(orderID int64) string {
	return fmt.Sprintf("order-%d", orderID)
}

// NewOrderEvent builds an order lifecycle envelope from persisted state.
func NewOrderEvent(eventType string, order *models.Order, items []models.OrderItem) *models.OrderEvent {
	data := make([]models.OrderItemData, len(items))
	for i, item := range items {
		data[i] = models.OrderItemData{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.Price,
		}
	}
	return &models.OrderEvent{
		BaseEvent:   newBaseEvent(eventType),
		OrderID:     order.ID,
		OrderNo:     order.OrderNo,
		UserID:      order.UserID,
		TotalAmount: order.TotalAmount,
		Items:       data,
	}
}

// PublishOrderCreated publishes to the order.created queue
func (ep *EventPublisher) PublishOrderCreated(ctx context.Context, event *models.OrderEvent) error {
	return ep.producer.Publish(ctx, models.QueueOrderCreated, orderKey(event.OrderID), event)
}

// PublishOrderPaid publishes to the order.paid queue
func (ep *EventPublisher) PublishOrderPaid(ctx context.Context, event *models.OrderEvent) error {
	return ep.producer.Publish(ctx, models.QueueOrderPaid, orderKey(event.OrderID), event)
}

// PublishOrderCancelled publishes to the order.cancelled queue
func (ep *EventPublisher) PublishOrderCancelled(ctx context.Context, event *models.OrderEvent) error {
	return ep.producer.Publish(ctx, models.QueueOrderCancelled, orderKey(event.OrderID), event)
}

// PublishStockDeduction publishes one line item's deduction to the
// stock.deduction queue
func (ep *EventPublisher) PublishStockDeduction(ctx context.Context, orderID, productID int64, quantity int) error {
	event := &models.StockEvent{
		BaseEvent: fanOutBaseEvent(models.EventTypeStockDeduction, fmt.Sprintf("%d-%d", orderID, productID)),
		OrderID:   orderID,
		ProductID: productID,
		Quantity:  quantity,
	}
	return ep.producer.Publish(ctx, models.QueueStockDeduction, orderKey(orderID), event)
}

// PublishStockRecovery publishes one line item's recovery to the
// stock.recovery queue
func (ep *EventPublisher) PublishStockRecovery(ctx context.Context, orderID, productID int64, quantity int) error {
	event := &models.StockEvent{
		BaseEvent: fanOutBaseEvent(models.EventTypeStockRecovery, fmt.Sprintf("%d-%d", orderID, productID)),
		OrderID:   orderID,
		ProductID: productID,
		Quantity:  quantity,
	}
	return ep.producer.Publish(ctx, models.QueueStockRecovery, orderKey(orderID), event)
}

// PublishNotification publishes to the notification.email queue
func (ep *EventPublisher) PublishNotification(ctx context.Context, kind string, userID, orderID int64, subject, content string) error {
	event := &models.NotificationEvent{
		BaseEvent: fanOutBaseEvent(models.EventTypeEmailNotification, fmt.Sprintf("%d-%s", orderID, kind)),
		Kind:      kind,
		UserID:    userID,
		OrderID:   orderID,
		Subject:   subject,
		Content:   content,
	}
	return ep.producer.Publish(ctx, models.QueueEmailNotification, orderKey(orderID), event)
}
