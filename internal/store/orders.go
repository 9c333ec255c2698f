package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"order-core/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const orderNoMaxAttempts = 3

// CreateOrderParams carries everything CreateOrderTx persists. Items must
// already hold the price/name/image snapshots computed by the caller.
type CreateOrderParams struct {
	UserID            int64
	Items             []models.OrderItem
	TotalAmount       int64
	DiscountAmount    int64
	UserCouponID      *int64
	ShippingAddressID *int64
	Remark            string
}

// CreateOrderTx creates an order atomically: every line item's stock is
// reserved with a conditional decrement, the order header and items are
// inserted, matching cart rows are removed, and the coupon (if any) is
// marked used — all in one transaction. Any failure rolls back the whole
// set, so a partial reservation never survives.
//
// An order-number collision retries the WHOLE transaction with a fresh
// number: Postgres aborts a transaction on the failed INSERT, so the
// retry cannot happen inside it.
func (s *Store) CreateOrderTx(ctx context.Context, p CreateOrderParams) (*models.Order, error) {
	var lastErr error
	for attempt := 0; attempt < orderNoMaxAttempts; attempt++ {
		order, err := s.createOrderOnce(ctx, p, GenerateOrderNo())
		if err == nil {
			return order, nil
		}
		if !isOrderNoCollision(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("order number collision persisted after %d attempts: %w", orderNoMaxAttempts, lastErr)
}

func (s *Store) createOrderOnce(ctx context.Context, p CreateOrderParams, orderNo string) (*models.Order, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	for _, item := range p.Items {
		if err := reserveStockTx(ctx, tx, item.ProductID, item.Quantity); err != nil {
			return nil, err
		}
	}

	order, err := insertOrderTx(ctx, tx, p, orderNo)
	if err != nil {
		return nil, err
	}

	for i := range p.Items {
		item := &p.Items[i]
		item.OrderID = order.ID
		err := tx.GetContext(ctx, &item.ID,
			`INSERT INTO order_items (order_id, product_id, product_name, product_image, quantity, price)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING id`,
			item.OrderID, item.ProductID, item.ProductName, item.ProductImage, item.Quantity, item.Price)
		if err != nil {
			return nil, fmt.Errorf("failed to create order item: %w", err)
		}
	}

	productIDs := make([]int64, len(p.Items))
	for i, item := range p.Items {
		productIDs[i] = item.ProductID
	}
	_, err = tx.ExecContext(ctx,
		"DELETE FROM cart_items WHERE user_id = $1 AND product_id = ANY($2)",
		p.UserID, pq.Array(productIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to clear cart: %w", err)
	}

	if p.UserCouponID != nil {
		if err := useCouponTx(ctx, tx, *p.UserCouponID, order.ID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return order, nil
}

// insertOrderTx inserts the order header. Collisions are rare (millisecond
// timestamp plus a random suffix) but the unique constraint, not the
// generator, is what guarantees uniqueness; the collision error is wrapped
// so CreateOrderTx can classify it and retry.
func insertOrderTx(ctx context.Context, tx *sqlx.Tx, p CreateOrderParams, orderNo string) (*models.Order, error) {
	order := &models.Order{
		OrderNo:           orderNo,
		UserID:            p.UserID,
		TotalAmount:       p.TotalAmount,
		DiscountAmount:    p.DiscountAmount,
		Status:            models.OrderStatusPending,
		ShippingAddressID: p.ShippingAddressID,
		Remark:            p.Remark,
	}
	err := tx.GetContext(ctx, order,
		`INSERT INTO orders (order_no, user_id, total_amount, discount_amount, status, shipping_address_id, remark)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at, updated_at`,
		order.OrderNo, order.UserID, order.TotalAmount, order.DiscountAmount,
		order.Status, order.ShippingAddressID, order.Remark)
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	return order, nil
}

// isOrderNoCollision reports whether err is a unique violation on the
// order number constraint. Other unique violations and the 25P02
// aborted-transaction error must not trigger a retry.
func isOrderNoCollision(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) &&
		pqErr.Code == "23505" &&
		strings.Contains(pqErr.Constraint, "order_no")
}

// GenerateOrderNo builds an externally-visible order number from the
// current unix-millisecond timestamp and a 4-digit random suffix.
func GenerateOrderNo() string {
	return fmt.Sprintf("%d%04d", time.Now().UnixMilli(), rand.Intn(10000))
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order %d: %w", id, models.ErrOrderNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderByNo retrieves an order by its external order number
func (s *Store) GetOrderByNo(ctx context.Context, orderNo string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE order_no = $1", orderNo)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order %s: %w", orderNo, models.ErrOrderNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderItems retrieves all items for an order
func (s *Store) GetOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", orderID)
	return items, err
}

// ListOrdersByUser retrieves a page of a user's orders, newest first,
// optionally filtered by status.
func (s *Store) ListOrdersByUser(ctx context.Context, userID int64, status *string, page, limit int) ([]models.Order, int, error) {
	where := "user_id = $1"
	args := []interface{}{userID}
	if status != nil {
		where += " AND status = $2"
		args = append(args, *status)
	}

	var total int
	if err := s.db.GetContext(ctx, &total,
		"SELECT COUNT(*) FROM orders WHERE "+where, args...); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	args = append(args, limit, offset)
	query := fmt.Sprintf("SELECT * FROM orders WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		where, len(args)-1, len(args))

	var orders []models.Order
	if err := s.db.SelectContext(ctx, &orders, query, args...); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// PayOrderTx transitions a PENDING order to PAID and increments each
// product's sales counter by the ordered quantity, in one transaction.
// The status guard in the UPDATE rejects any other starting state.
func (s *Store) PayOrderTx(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE orders SET status = $1, paid_at = NOW(), updated_at = NOW() WHERE id = $2 AND status = $3",
		models.OrderStatusPaid, orderID, models.OrderStatusPending)
	if err != nil {
		return nil, err
	}
	if err := checkTransitioned(res, orderID); err != nil {
		return nil, err
	}

	var items []models.OrderItem
	if err := tx.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1", orderID); err != nil {
		return nil, err
	}

	for _, item := range items {
		_, err := tx.ExecContext(ctx,
			"UPDATE products SET sales_count = sales_count + $1, updated_at = NOW() WHERE id = $2",
			item.Quantity, item.ProductID)
		if err != nil {
			return nil, fmt.Errorf("failed to increment sales count: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return items, nil
}

// CancelOrderTx transitions a PENDING order to CANCELLED and restores the
// stock of every line item, in one transaction. The status guard makes the
// operation idempotent: a second cancel (user or sweep, whichever lost the
// race) affects zero rows and restores nothing.
func (s *Store) CancelOrderTx(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3",
		models.OrderStatusCancelled, orderID, models.OrderStatusPending)
	if err != nil {
		return nil, err
	}
	if err := checkTransitioned(res, orderID); err != nil {
		return nil, err
	}

	var items []models.OrderItem
	if err := tx.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1", orderID); err != nil {
		return nil, err
	}

	for _, item := range items {
		_, err := tx.ExecContext(ctx,
			"UPDATE products SET stock = stock + $1, updated_at = NOW() WHERE id = $2",
			item.Quantity, item.ProductID)
		if err != nil {
			return nil, fmt.Errorf("failed to restore stock: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return items, nil
}

// ConfirmOrder transitions a SHIPPED order to COMPLETED.
func (s *Store) ConfirmOrder(ctx context.Context, orderID int64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE orders SET status = $1, completed_at = NOW(), updated_at = NOW() WHERE id = $2 AND status = $3",
		models.OrderStatusCompleted, orderID, models.OrderStatusShipped)
	if err != nil {
		return err
	}
	return checkTransitioned(res, orderID)
}

// ShipOrder transitions a PAID order to SHIPPED (back-office action).
func (s *Store) ShipOrder(ctx context.Context, orderID int64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE orders SET status = $1, shipped_at = NOW(), updated_at = NOW() WHERE id = $2 AND status = $3",
		models.OrderStatusShipped, orderID, models.OrderStatusPaid)
	if err != nil {
		return err
	}
	return checkTransitioned(res, orderID)
}

func checkTransitioned(res sql.Result, orderID int64) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("order %d: %w", orderID, models.ErrInvalidState)
	}
	return nil
}

// GetExpiredPendingOrders returns PENDING orders created before the cutoff.
func (s *Store) GetExpiredPendingOrders(ctx context.Context, cutoff time.Time) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE status = $1 AND created_at < $2 ORDER BY created_at",
		models.OrderStatusPending, cutoff)
	return orders, err
}
