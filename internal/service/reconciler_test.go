package service

import (
	"context"
	"testing"
	"time"

	"order-core/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockReconcilerStore struct {
	mock.Mock
}

func (m *mockReconcilerStore) GetExpiredPendingOrders(ctx context.Context, cutoff time.Time) ([]models.Order, error) {
	args := m.Called(ctx, cutoff)
	if orders := args.Get(0); orders != nil {
		return orders.([]models.Order), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockReconcilerStore) CancelOrderTx(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	args := m.Called(ctx, orderID)
	if items := args.Get(0); items != nil {
		return items.([]models.OrderItem), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockReconcilerStore) ExpireUserCoupons(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

type mockCancelPublisher struct {
	mock.Mock
}

func (m *mockCancelPublisher) PublishOrderCancelled(ctx context.Context, event *models.OrderEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func TestSweepCancelsExpiredOrders(t *testing.T) {
	store := new(mockReconcilerStore)
	publisher := new(mockCancelPublisher)

	expired := []models.Order{
		{ID: 1, OrderNo: "1001", UserID: 7, Status: models.OrderStatusPending},
		{ID: 2, OrderNo: "1002", UserID: 8, Status: models.OrderStatusPending},
	}
	items := []models.OrderItem{{OrderID: 1, ProductID: 5, Quantity: 2, Price: 100}}

	store.On("GetExpiredPendingOrders", mock.Anything, mock.Anything).Return(expired, nil)
	store.On("CancelOrderTx", mock.Anything, int64(1)).Return(items, nil)
	store.On("CancelOrderTx", mock.Anything, int64(2)).Return([]models.OrderItem{}, nil)
	store.On("ExpireUserCoupons", mock.Anything, mock.Anything).Return(int64(0), nil)
	publisher.On("PublishOrderCancelled", mock.Anything, mock.Anything).Return(nil)

	r := NewReconciler(store, publisher, 30*time.Minute, 5*time.Minute)
	r.Sweep(context.Background())

	store.AssertExpectations(t)
	publisher.AssertNumberOfCalls(t, "PublishOrderCancelled", 2)

	event := publisher.Calls[0].Arguments.Get(1).(*models.OrderEvent)
	assert.Equal(t, "timeout", event.Reason)
	assert.Equal(t, models.EventTypeOrderCancelled, event.EventType)
	assert.Equal(t, int64(1), event.OrderID)
}

func TestSweepSkipsOrdersThatLostTheRace(t *testing.T) {
	store := new(mockReconcilerStore)
	publisher := new(mockCancelPublisher)

	expired := []models.Order{{ID: 3, OrderNo: "1003", Status: models.OrderStatusPending}}

	store.On("GetExpiredPendingOrders", mock.Anything, mock.Anything).Return(expired, nil)
	store.On("CancelOrderTx", mock.Anything, int64(3)).Return(nil, models.ErrInvalidState)
	store.On("ExpireUserCoupons", mock.Anything, mock.Anything).Return(int64(0), nil)

	r := NewReconciler(store, publisher, 30*time.Minute, 5*time.Minute)
	r.Sweep(context.Background())

	store.AssertExpectations(t)
	publisher.AssertNotCalled(t, "PublishOrderCancelled", mock.Anything, mock.Anything)
}

func TestSweepIsolatesPerOrderFailures(t *testing.T) {
	store := new(mockReconcilerStore)
	publisher := new(mockCancelPublisher)

	expired := []models.Order{
		{ID: 4, OrderNo: "1004", Status: models.OrderStatusPending},
		{ID: 5, OrderNo: "1005", Status: models.OrderStatusPending},
	}

	store.On("GetExpiredPendingOrders", mock.Anything, mock.Anything).Return(expired, nil)
	store.On("CancelOrderTx", mock.Anything, int64(4)).Return(nil, assert.AnError)
	store.On("CancelOrderTx", mock.Anything, int64(5)).Return([]models.OrderItem{}, nil)
	store.On("ExpireUserCoupons", mock.Anything, mock.Anything).Return(int64(2), nil)
	publisher.On("PublishOrderCancelled", mock.Anything, mock.Anything).Return(nil)

	r := NewReconciler(store, publisher, 30*time.Minute, 5*time.Minute)
	r.Sweep(context.Background())

	// the failure on order 4 must not stop order 5 from being cancelled
	store.AssertCalled(t, "CancelOrderTx", mock.Anything, int64(5))
	publisher.AssertNumberOfCalls(t, "PublishOrderCancelled", 1)
}

func TestSweepUsesConfiguredTimeoutAsCutoff(t *testing.T) {
	store := new(mockReconcilerStore)
	publisher := new(mockCancelPublisher)

	var cutoff time.Time
	store.On("GetExpiredPendingOrders", mock.Anything, mock.MatchedBy(func(c time.Time) bool {
		cutoff = c
		return true
	})).Return([]models.Order{}, nil)
	store.On("ExpireUserCoupons", mock.Anything, mock.Anything).Return(int64(0), nil)

	r := NewReconciler(store, publisher, 30*time.Minute, 5*time.Minute)

	before := time.Now()
	r.Sweep(context.Background())
	after := time.Now()

	assert.False(t, cutoff.Before(before.Add(-30*time.Minute)))
	assert.False(t, cutoff.After(after.Add(-30*time.Minute)))
}

func TestNewReconcilerDefaults(t *testing.T) {
	r := NewReconciler(new(mockReconcilerStore), new(mockCancelPublisher), 0, 0)

	assert.Equal(t, DefaultOrderTimeout, r.timeout)
	assert.Equal(t, DefaultSweepInterval, r.interval)
}
