package worker

import (
	"context"
	"encoding/json"
	"testing"

	"order-core/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockEventStore struct {
	mock.Mock
}

func (m *mockEventStore) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	args := m.Called(ctx, eventID)
	return args.Bool(0), args.Error(1)
}

func (m *mockEventStore) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	args := m.Called(ctx, eventID, eventType)
	return args.Error(0)
}

type mockProductCache struct {
	mock.Mock
}

func (m *mockProductCache) DelProduct(ctx context.Context, productID int64) error {
	args := m.Called(ctx, productID)
	return args.Error(0)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishStockDeduction(ctx context.Context, orderID, productID int64, quantity int) error {
	args := m.Called(ctx, orderID, productID, quantity)
	return args.Error(0)
}

func (m *mockPublisher) PublishStockRecovery(ctx context.Context, orderID, productID int64, quantity int) error {
	args := m.Called(ctx, orderID, productID, quantity)
	return args.Error(0)
}

func (m *mockPublisher) PublishNotification(ctx context.Context, kind string, userID, orderID int64, subject, content string) error {
	args := m.Called(ctx, kind, userID, orderID, subject, content)
	return args.Error(0)
}

func orderMessage(t *testing.T, eventID string) kafka.Message {
	t.Helper()
	event := models.OrderEvent{
		BaseEvent: models.BaseEvent{EventID: eventID, EventType: models.EventTypeOrderCreated},
		OrderID:   42,
		OrderNo:   "17000000000001234",
		UserID:    7,
		Items: []models.OrderItemData{
			{ProductID: 1, Quantity: 2, UnitPrice: 100},
			{ProductID: 2, Quantity: 1, UnitPrice: 300},
		},
	}
	value, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{Value: value}
}

func TestHandleOrderCreatedFansOut(t *testing.T) {
	store := new(mockEventStore)
	cache := new(mockProductCache)
	publisher := new(mockPublisher)

	store.On("IsEventProcessed", mock.Anything, "evt-1").Return(false, nil)
	publisher.On("PublishStockDeduction", mock.Anything, int64(42), int64(1), 2).Return(nil)
	publisher.On("PublishStockDeduction", mock.Anything, int64(42), int64(2), 1).Return(nil)
	publisher.On("PublishNotification", mock.Anything, "order_created", int64(7), int64(42), mock.Anything, mock.Anything).Return(nil)
	store.On("MarkEventProcessed", mock.Anything, "evt-1", models.EventTypeOrderCreated).Return(nil)

	h := NewHandlers(store, cache, publisher)
	err := h.HandleOrderCreated(context.Background(), orderMessage(t, "evt-1"))

	assert.NoError(t, err)
	store.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestHandleOrderCreatedSkipsProcessedEvent(t *testing.T) {
	store := new(mockEventStore)
	cache := new(mockProductCache)
	publisher := new(mockPublisher)

	store.On("IsEventProcessed", mock.Anything, "evt-dup").Return(true, nil)

	h := NewHandlers(store, cache, publisher)
	err := h.HandleOrderCreated(context.Background(), orderMessage(t, "evt-dup"))

	assert.NoError(t, err)
	publisher.AssertNotCalled(t, "PublishStockDeduction", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "MarkEventProcessed", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleOrderCreatedNotMarkedOnPublishFailure(t *testing.T) {
	store := new(mockEventStore)
	cache := new(mockProductCache)
	publisher := new(mockPublisher)

	store.On("IsEventProcessed", mock.Anything, "evt-2").Return(false, nil)
	publisher.On("PublishStockDeduction", mock.Anything, int64(42), int64(1), 2).Return(assert.AnError)

	h := NewHandlers(store, cache, publisher)
	err := h.HandleOrderCreated(context.Background(), orderMessage(t, "evt-2"))

	// the message stays uncommitted and will be redelivered
	assert.Error(t, err)
	store.AssertNotCalled(t, "MarkEventProcessed", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleStockAdjustmentInvalidatesCache(t *testing.T) {
	store := new(mockEventStore)
	cache := new(mockProductCache)
	publisher := new(mockPublisher)

	event := models.StockEvent{
		BaseEvent: models.BaseEvent{EventID: "evt-3", EventType: models.EventTypeStockDeduction},
		OrderID:   42,
		ProductID: 9,
		Quantity:  3,
	}
	value, err := json.Marshal(event)
	require.NoError(t, err)

	store.On("IsEventProcessed", mock.Anything, "evt-3").Return(false, nil)
	cache.On("DelProduct", mock.Anything, int64(9)).Return(nil)
	store.On("MarkEventProcessed", mock.Anything, "evt-3", models.EventTypeStockDeduction).Return(nil)

	h := NewHandlers(store, cache, publisher)
	err = h.HandleStockAdjustment(context.Background(), kafka.Message{Value: value})

	assert.NoError(t, err)
	store.AssertExpectations(t)
	cache.AssertExpectations(t)
}

func TestHandleNotificationMarksProcessed(t *testing.T) {
	store := new(mockEventStore)
	cache := new(mockProductCache)
	publisher := new(mockPublisher)

	event := models.NotificationEvent{
		BaseEvent: models.BaseEvent{EventID: "evt-4", EventType: models.EventTypeEmailNotification},
		Kind:      "order_paid",
		UserID:    7,
		OrderID:   42,
		Subject:   "Payment received",
	}
	value, err := json.Marshal(event)
	require.NoError(t, err)

	store.On("IsEventProcessed", mock.Anything, "evt-4").Return(false, nil)
	store.On("MarkEventProcessed", mock.Anything, "evt-4", models.EventTypeEmailNotification).Return(nil)

	h := NewHandlers(store, cache, publisher)
	err = h.HandleNotification(context.Background(), kafka.Message{Value: value})

	assert.NoError(t, err)
	store.AssertExpectations(t)
}

func TestHandlerRejectsMalformedPayload(t *testing.T) {
	h := NewHandlers(new(mockEventStore), new(mockProductCache), new(mockPublisher))

	err := h.HandleOrderCreated(context.Background(), kafka.Message{Value: []byte("{not json")})
	assert.Error(t, err)
}
