package service

import (
	"context"
	"testing"
	"time"

	"order-core/internal/models"
	"order-core/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockOrderStore struct {
	mock.Mock
}

func (m *mockOrderStore) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	args := m.Called(ctx, id)
	if p := args.Get(0); p != nil {
		return p.(*models.Product), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockOrderStore) CreateOrderTx(ctx context.Context, p store.CreateOrderParams) (*models.Order, error) {
	args := m.Called(ctx, p)
	if o := args.Get(0); o != nil {
		return o.(*models.Order), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockOrderStore) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	args := m.Called(ctx, id)
	if o := args.Get(0); o != nil {
		return o.(*models.Order), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockOrderStore) GetOrderByNo(ctx context.Context, orderNo string) (*models.Order, error) {
	args := m.Called(ctx, orderNo)
	if o := args.Get(0); o != nil {
		return o.(*models.Order), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockOrderStore) GetOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	args := m.Called(ctx, orderID)
	if items := args.Get(0); items != nil {
		return items.([]models.OrderItem), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockOrderStore) ListOrdersByUser(ctx context.Context, userID int64, status *string, page, limit int) ([]models.Order, int, error) {
	args := m.Called(ctx, userID, status, page, limit)
	if orders := args.Get(0); orders != nil {
		return orders.([]models.Order), args.Int(1), args.Error(2)
	}
	return nil, args.Int(1), args.Error(2)
}

func (m *mockOrderStore) PayOrderTx(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	args := m.Called(ctx, orderID)
	if items := args.Get(0); items != nil {
		return items.([]models.OrderItem), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockOrderStore) CancelOrderTx(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	args := m.Called(ctx, orderID)
	if items := args.Get(0); items != nil {
		return items.([]models.OrderItem), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockOrderStore) ConfirmOrder(ctx context.Context, orderID int64) error {
	args := m.Called(ctx, orderID)
	return args.Error(0)
}

func (m *mockOrderStore) ShipOrder(ctx context.Context, orderID int64) error {
	args := m.Called(ctx, orderID)
	return args.Error(0)
}

func newTestOrderService(st *mockOrderStore) *OrderService {
	return NewOrderService(st, nil, nil, nil, 0)
}

func TestCreateOrderComputesTotalAndSnapshots(t *testing.T) {
	st := new(mockOrderStore)

	st.On("GetProductByID", mock.Anything, int64(1)).Return(
		&models.Product{ID: 1, Name: "Widget", MainImage: "widget.png", Price: 1000, Stock: 10}, nil)
	st.On("GetProductByID", mock.Anything, int64(2)).Return(
		&models.Product{ID: 2, Name: "Gadget", Price: 500, Stock: 3}, nil)

	var persisted store.CreateOrderParams
	st.On("CreateOrderTx", mock.Anything, mock.MatchedBy(func(p store.CreateOrderParams) bool {
		persisted = p
		return true
	})).Return(&models.Order{
		ID: 42, OrderNo: "17000000000001234", UserID: 7,
		TotalAmount: 2500, Status: models.OrderStatusPending,
	}, nil)

	s := newTestOrderService(st)
	resp, err := s.CreateOrder(context.Background(), &CreateOrderRequest{
		UserID: 7,
		Items: []OrderItemRequest{
			{ProductID: 1, Quantity: 2},
			{ProductID: 2, Quantity: 1},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, int64(2500), resp.TotalAmount)
	assert.Equal(t, models.OrderStatusPending, resp.Status)

	// total is the sum of price snapshots times quantities
	assert.Equal(t, int64(2*1000+1*500), persisted.TotalAmount)
	require.Len(t, persisted.Items, 2)
	assert.Equal(t, "Widget", persisted.Items[0].ProductName)
	assert.Equal(t, "widget.png", persisted.Items[0].ProductImage)
	assert.Equal(t, int64(1000), persisted.Items[0].Price)
	assert.Equal(t, 2, persisted.Items[0].Quantity)
	assert.Equal(t, int64(500), persisted.Items[1].Price)
}

func TestCreateOrderRejectsEmptyItems(t *testing.T) {
	s := newTestOrderService(new(mockOrderStore))

	_, err := s.CreateOrder(context.Background(), &CreateOrderRequest{UserID: 1})
	assert.ErrorIs(t, err, models.ErrEmptyItems)
}

func TestCreateOrderRejectsNonPositiveQuantity(t *testing.T) {
	s := newTestOrderService(new(mockOrderStore))

	_, err := s.CreateOrder(context.Background(), &CreateOrderRequest{
		UserID: 1,
		Items:  []OrderItemRequest{{ProductID: 7, Quantity: 0}},
	})
	assert.Error(t, err)
}

func TestCreateOrderRejectsInsufficientStock(t *testing.T) {
	st := new(mockOrderStore)
	st.On("GetProductByID", mock.Anything, int64(1)).Return(
		&models.Product{ID: 1, Name: "Widget", Price: 1000, Stock: 1}, nil)

	s := newTestOrderService(st)
	_, err := s.CreateOrder(context.Background(), &CreateOrderRequest{
		UserID: 7,
		Items:  []OrderItemRequest{{ProductID: 1, Quantity: 2}},
	})

	assert.ErrorIs(t, err, models.ErrInsufficientStock)
	st.AssertNotCalled(t, "CreateOrderTx", mock.Anything, mock.Anything)
}

func TestPayOrderRejectedAfterCancellation(t *testing.T) {
	st := new(mockOrderStore)
	st.On("GetOrderByID", mock.Anything, int64(42)).Return(
		&models.Order{ID: 42, UserID: 7, Status: models.OrderStatusCancelled}, nil)
	st.On("PayOrderTx", mock.Anything, int64(42)).Return(nil, models.ErrInvalidState)

	s := newTestOrderService(st)
	err := s.PayOrder(context.Background(), 42, 7)

	assert.ErrorIs(t, err, models.ErrInvalidState)
}

func TestCancelOrderSecondAttemptRejected(t *testing.T) {
	st := new(mockOrderStore)
	st.On("GetOrderByID", mock.Anything, int64(42)).Return(
		&models.Order{ID: 42, UserID: 7, Status: models.OrderStatusCancelled}, nil)
	st.On("CancelOrderTx", mock.Anything, int64(42)).Return(nil, models.ErrInvalidState)

	s := newTestOrderService(st)
	err := s.CancelOrder(context.Background(), 42, 7)

	// the guarded update affected zero rows, so nothing was restored
	assert.ErrorIs(t, err, models.ErrInvalidState)
}

func TestGetOrderEnforcesOwnership(t *testing.T) {
	st := new(mockOrderStore)
	st.On("GetOrderByID", mock.Anything, int64(42)).Return(
		&models.Order{ID: 42, UserID: 99, Status: models.OrderStatusPending}, nil)

	s := newTestOrderService(st)
	_, _, err := s.GetOrder(context.Background(), 42, 7)

	assert.ErrorIs(t, err, models.ErrForbidden)
	st.AssertNotCalled(t, "GetOrderItems", mock.Anything, mock.Anything)
}

func TestShipOrderUnknownOrderIsNotFound(t *testing.T) {
	st := new(mockOrderStore)
	st.On("GetOrderByID", mock.Anything, int64(404)).Return(nil, models.ErrOrderNotFound)

	s := newTestOrderService(st)
	err := s.ShipOrder(context.Background(), 404)

	assert.ErrorIs(t, err, models.ErrOrderNotFound)
	st.AssertNotCalled(t, "ShipOrder", mock.Anything, mock.Anything)
}

func TestRemainingMinutes(t *testing.T) {
	timeout := 30 * time.Minute
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 30, remainingMinutes(created, created, timeout))
	assert.Equal(t, 18, remainingMinutes(created, created.Add(12*time.Minute), timeout))
	assert.Equal(t, 0, remainingMinutes(created, created.Add(30*time.Minute), timeout))
	assert.Equal(t, 0, remainingMinutes(created, created.Add(45*time.Minute), timeout))

	// partial minutes round down
	assert.Equal(t, 17, remainingMinutes(created, created.Add(12*time.Minute+30*time.Second), timeout))
}
