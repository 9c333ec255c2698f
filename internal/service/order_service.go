package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"order-core/internal/broker"
	"order-core/internal/models"
	"order-core/internal/redisclient"
	"order-core/internal/store"
	"order-core/internal/util"

	"go.uber.org/zap"
)

// DefaultOrderTimeout is how long an order may stay PENDING before the
// reconciler cancels it. RemainingMinutes and the sweep must share this
// value so the countdown shown to clients matches actual expiry.
const DefaultOrderTimeout = 30 * time.Minute

// OrderStore is the slice of the store the order service needs.
type OrderStore interface {
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	CreateOrderTx(ctx context.Context, p store.CreateOrderParams) (*models.Order, error)
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrderByNo(ctx context.Context, orderNo string) (*models.Order, error)
	GetOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	ListOrdersByUser(ctx context.Context, userID int64, status *string, page, limit int) ([]models.Order, int, error)
	PayOrderTx(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	CancelOrderTx(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	ConfirmOrder(ctx context.Context, orderID int64) error
	ShipOrder(ctx context.Context, orderID int64) error
}

// OrderService handles order business logic
type OrderService struct {
	store          OrderStore
	redis          *redisclient.Client
	eventPublisher *broker.EventPublisher
	couponService  *CouponService
	logger         *zap.Logger
	timeout        time.Duration
}

// NewOrderService creates a new order service
func NewOrderService(
	store OrderStore,
	redis *redisclient.Client,
	eventPublisher *broker.EventPublisher,
	couponService *CouponService,
	timeout time.Duration,
) *OrderService {
	if timeout <= 0 {
		timeout = DefaultOrderTimeout
	}
	return &OrderService{
		store:          store,
		redis:          redis,
		eventPublisher: eventPublisher,
		couponService:  couponService,
		logger:         util.GetLogger(),
		timeout:        timeout,
	}
}

// CreateOrderRequest represents a request to create an order
type CreateOrderRequest struct {
	UserID            int64              `json:"-"`
	Items             []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
	ShippingAddressID *int64             `json:"shipping_address_id,omitempty"`
	Remark            string             `json:"remark,omitempty"`
	UserCouponID      *int64             `json:"user_coupon_id,omitempty"`
}

// OrderItemRequest represents an item in an order
type OrderItemRequest struct {
	ProductID int64 `json:"product_id" binding:"required"`
	Quantity  int   `json:"quantity" binding:"required,min=1"`
}

// CreateOrderResponse represents the response after creating an order
type CreateOrderResponse struct {
	OrderID        int64  `json:"order_id"`
	OrderNo        string `json:"order_no"`
	TotalAmount    int64  `json:"total_amount"`
	DiscountAmount int64  `json:"discount_amount"`
	Status         string `json:"status"`
}

// CreateOrder creates a new order: prices are snapshotted from the catalog
// at this moment, stock for every line is reserved atomically, and the
// optional coupon is consumed in the same transaction so a failed order
// never burns a coupon.
func (s *OrderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*CreateOrderResponse, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	if len(req.Items) == 0 {
		util.OrdersFailedTotal.WithLabelValues("empty_items").Inc()
		return nil, models.ErrEmptyItems
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			util.OrdersFailedTotal.WithLabelValues("invalid_quantity").Inc()
			return nil, fmt.Errorf("product %d: quantity must be positive", item.ProductID)
		}
	}

	var totalAmount int64
	orderItems := make([]models.OrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		product, err := s.loadProduct(ctx, item.ProductID)
		if err != nil {
			util.OrdersFailedTotal.WithLabelValues("product_not_found").Inc()
			return nil, err
		}

		// Informational pre-check; the conditional decrement inside the
		// transaction is the authoritative one.
		if product.Stock < item.Quantity {
			util.OrdersFailedTotal.WithLabelValues("insufficient_stock").Inc()
			util.StockReservationsFailed.Inc()
			return nil, fmt.Errorf("product %d: %w", item.ProductID, models.ErrInsufficientStock)
		}

		totalAmount += product.Price * int64(item.Quantity)
		orderItems = append(orderItems, models.OrderItem{
			ProductID:    product.ID,
			ProductName:  product.Name,
			ProductImage: product.MainImage,
			Quantity:     item.Quantity,
			Price:        product.Price,
		})
	}

	var discountAmount int64
	if req.UserCouponID != nil {
		var err error
		discountAmount, err = s.couponService.usableDiscount(ctx, req.UserID, *req.UserCouponID, totalAmount)
		if err != nil {
			util.OrdersFailedTotal.WithLabelValues("coupon_rejected").Inc()
			return nil, err
		}
	}

	order, err := s.store.CreateOrderTx(ctx, store.CreateOrderParams{
		UserID:            req.UserID,
		Items:             orderItems,
		TotalAmount:       totalAmount,
		DiscountAmount:    discountAmount,
		UserCouponID:      req.UserCouponID,
		ShippingAddressID: req.ShippingAddressID,
		Remark:            req.Remark,
	})
	if err != nil {
		if errors.Is(err, models.ErrInsufficientStock) {
			util.OrdersFailedTotal.WithLabelValues("insufficient_stock").Inc()
			util.StockReservationsFailed.Inc()
		} else {
			util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		}
		return nil, err
	}

	util.OrdersCreatedTotal.Inc()
	s.logger.Info("Order created",
		zap.Int64("order_id", order.ID),
		zap.String("order_no", order.OrderNo),
		zap.Int64("user_id", order.UserID),
		zap.Int64("total_amount", order.TotalAmount))

	s.invalidateProducts(ctx, orderItems)
	s.publishOrderEvent(ctx, models.EventTypeOrderCreated, order, orderItems)

	return &CreateOrderResponse{
		OrderID:        order.ID,
		OrderNo:        order.OrderNo,
		TotalAmount:    order.TotalAmount,
		DiscountAmount: order.DiscountAmount,
		Status:         order.Status,
	}, nil
}

// GetOrder retrieves an order with its items, verifying ownership.
func (s *OrderService) GetOrder(ctx context.Context, orderID, userID int64) (*models.Order, []models.OrderItem, error) {
	order, err := s.ownedOrder(ctx, orderID, userID)
	if err != nil {
		return nil, nil, err
	}

	items, err := s.store.GetOrderItems(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	return order, items, nil
}

// ListOrders retrieves a page of the user's orders.
func (s *OrderService) ListOrders(ctx context.Context, userID int64, status *string, page, limit int) ([]models.Order, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}
	return s.store.ListOrdersByUser(ctx, userID, status, page, limit)
}

// CancelOrder cancels a PENDING order and restores its stock. Racing the
// timeout sweep is safe: whichever side loses the conditional update gets
// ErrInvalidState and mutates nothing.
func (s *OrderService) CancelOrder(ctx context.Context, orderID, userID int64) error {
	ctx, span := util.StartSpan(ctx, "OrderService.CancelOrder")
	defer span.End()

	order, err := s.ownedOrder(ctx, orderID, userID)
	if err != nil {
		return err
	}

	items, err := s.store.CancelOrderTx(ctx, orderID)
	if err != nil {
		return err
	}
	order.Status = models.OrderStatusCancelled

	util.OrdersCancelledTotal.WithLabelValues("user").Inc()
	s.logger.Info("Order cancelled",
		zap.Int64("order_id", orderID),
		zap.Int64("user_id", userID))

	s.invalidateProducts(ctx, items)
	s.publishOrderEvent(ctx, models.EventTypeOrderCancelled, order, items)
	return nil
}

// PayOrder transitions a PENDING order to PAID and bumps sales counters.
func (s *OrderService) PayOrder(ctx context.Context, orderID, userID int64) error {
	ctx, span := util.StartSpan(ctx, "OrderService.PayOrder")
	defer span.End()

	order, err := s.ownedOrder(ctx, orderID, userID)
	if err != nil {
		return err
	}

	items, err := s.store.PayOrderTx(ctx, orderID)
	if err != nil {
		return err
	}
	order.Status = models.OrderStatusPaid

	util.OrdersPaidTotal.Inc()
	s.logger.Info("Order paid",
		zap.Int64("order_id", orderID),
		zap.Int64("user_id", userID))

	s.invalidateProducts(ctx, items)
	s.publishOrderEvent(ctx, models.EventTypeOrderPaid, order, items)
	return nil
}

// ShipOrder transitions a PAID order to SHIPPED. Back-office action, so
// there is no ownership check, but the order must exist: without the
// lookup an unknown id would surface as a state conflict.
func (s *OrderService) ShipOrder(ctx context.Context, orderID int64) error {
	if _, err := s.store.GetOrderByID(ctx, orderID); err != nil {
		return err
	}
	if err := s.store.ShipOrder(ctx, orderID); err != nil {
		return err
	}
	s.logger.Info("Order shipped", zap.Int64("order_id", orderID))
	return nil
}

// GetOrderByNo retrieves an order by its external number, with items,
// verifying ownership.
func (s *OrderService) GetOrderByNo(ctx context.Context, orderNo string, userID int64) (*models.Order, []models.OrderItem, error) {
	order, err := s.store.GetOrderByNo(ctx, orderNo)
	if err != nil {
		return nil, nil, err
	}
	if order.UserID != userID {
		return nil, nil, fmt.Errorf("order %s: %w", orderNo, models.ErrForbidden)
	}

	items, err := s.store.GetOrderItems(ctx, order.ID)
	if err != nil {
		return nil, nil, err
	}
	return order, items, nil
}

// ConfirmOrder transitions a SHIPPED order to COMPLETED.
func (s *OrderService) ConfirmOrder(ctx context.Context, orderID, userID int64) error {
	if _, err := s.ownedOrder(ctx, orderID, userID); err != nil {
		return err
	}
	if err := s.store.ConfirmOrder(ctx, orderID); err != nil {
		return err
	}
	s.logger.Info("Order completed", zap.Int64("order_id", orderID))
	return nil
}

// RemainingMinutes returns how many minutes are left before a PENDING
// order times out, 0 for any other state.
func (s *OrderService) RemainingMinutes(ctx context.Context, orderID, userID int64) (int, error) {
	order, err := s.ownedOrder(ctx, orderID, userID)
	if err != nil {
		return 0, err
	}
	if order.Status != models.OrderStatusPending {
		return 0, nil
	}
	return remainingMinutes(order.CreatedAt, time.Now(), s.timeout), nil
}

func remainingMinutes(createdAt, now time.Time, timeout time.Duration) int {
	remaining := timeout - now.Sub(createdAt)
	if remaining <= 0 {
		return 0
	}
	return int(remaining / time.Minute)
}

func (s *OrderService) ownedOrder(ctx context.Context, orderID, userID int64) (*models.Order, error) {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, fmt.Errorf("order %d: %w", orderID, models.ErrForbidden)
	}
	return order, nil
}

// loadProduct reads through the product cache; the database remains the
// stock authority, so a stale cached stock value only affects the
// informational pre-check.
func (s *OrderService) loadProduct(ctx context.Context, productID int64) (*models.Product, error) {
	if s.redis != nil {
		product, err := s.redis.GetProduct(ctx, productID)
		if err != nil {
			s.logger.Warn("Product cache read failed",
				zap.Int64("product_id", productID),
				zap.Error(err))
		} else if product != nil {
			return product, nil
		}
	}

	product, err := s.store.GetProductByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	if s.redis != nil {
		if err := s.redis.SetProduct(ctx, product); err != nil {
			s.logger.Warn("Product cache write failed",
				zap.Int64("product_id", productID),
				zap.Error(err))
		}
	}
	return product, nil
}

func (s *OrderService) invalidateProducts(ctx context.Context, items []models.OrderItem) {
	if s.redis == nil {
		return
	}
	for _, item := range items {
		if err := s.redis.DelProduct(ctx, item.ProductID); err != nil {
			s.logger.Warn("Product cache invalidation failed",
				zap.Int64("product_id", item.ProductID),
				zap.Error(err))
		}
	}
}

// publishOrderEvent is fire-and-forget: the state transition is already
// durable, so a publish failure is logged and counted, nothing more.
func (s *OrderService) publishOrderEvent(ctx context.Context, eventType string, order *models.Order, items []models.OrderItem) {
	if s.eventPublisher == nil {
		return
	}
	event := broker.NewOrderEvent(eventType, order, items)

	var err error
	var queue string
	switch eventType {
	case models.EventTypeOrderCreated:
		queue = models.QueueOrderCreated
		err = s.eventPublisher.PublishOrderCreated(ctx, event)
	case models.EventTypeOrderPaid:
		queue = models.QueueOrderPaid
		err = s.eventPublisher.PublishOrderPaid(ctx, event)
	case models.EventTypeOrderCancelled:
		queue = models.QueueOrderCancelled
		err = s.eventPublisher.PublishOrderCancelled(ctx, event)
	}
	if err != nil {
		util.EventPublishFailures.WithLabelValues(queue).Inc()
		s.logger.Error("Failed to publish order event",
			zap.String("event_type", eventType),
			zap.Int64("order_id", order.ID),
			zap.Error(err))
	}
}
