package models

import "time"

// Queue (topic) names. Consumers ack only after successful processing;
// redelivery is expected and handled via processed_events.
const (
	QueueOrderCreated      = "order.created"
	QueueOrderPaid         = "order.paid"
	QueueOrderCancelled    = "order.cancelled"
	QueueStockDeduction    = "stock.deduction"
	QueueStockRecovery     = "stock.recovery"
	QueueEmailNotification = "notification.email"
)

// Event types
const (
	EventTypeOrderCreated      = "ORDER_CREATED"
	EventTypeOrderPaid         = "ORDER_PAID"
	EventTypeOrderCancelled    = "ORDER_CANCELLED"
	EventTypeStockDeduction    = "STOCK_DEDUCTION"
	EventTypeStockRecovery     = "STOCK_RECOVERY"
	EventTypeEmailNotification = "EMAIL_NOTIFICATION"
)

// BaseEvent contains common fields for all events.
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderItemData represents item data carried in events.
type OrderItemData struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
	UnitPrice int64 `json:"unit_price"`
}

// OrderEvent is the envelope for order lifecycle events
// (created / paid / cancelled).
type OrderEvent struct {
	BaseEvent
	OrderID     int64           `json:"order_id"`
	OrderNo     string          `json:"order_no"`
	UserID      int64           `json:"user_id"`
	TotalAmount int64           `json:"total_amount"`
	Items       []OrderItemData `json:"items"`
	Reason      string          `json:"reason,omitempty"`
}

// StockEvent drives downstream stock-mirror adjustments for one line item.
type StockEvent struct {
	BaseEvent
	OrderID   int64 `json:"order_id"`
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// NotificationEvent asks the notification consumer to contact a user.
type NotificationEvent struct {
	BaseEvent
	Kind    string `json:"kind"`
	UserID  int64  `json:"user_id"`
	OrderID int64  `json:"order_id"`
	Subject string `json:"subject"`
	Content string `json:"content"`
}
