package models

import "time"

// Product represents a catalog product. Price is stored in cents.
type Product struct {
	ID         int64     `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	MainImage  string    `db:"main_image" json:"main_image,omitempty"`
	Price      int64     `db:"price" json:"price"`
	Stock      int       `db:"stock" json:"stock"`
	SalesCount int       `db:"sales_count" json:"sales_count"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// Order represents a customer order. TotalAmount is the sum of the
// line-item price snapshots; DiscountAmount records the coupon discount
// applied at creation time.
type Order struct {
	ID                int64      `db:"id" json:"id"`
	OrderNo           string     `db:"order_no" json:"order_no"`
	UserID            int64      `db:"user_id" json:"user_id"`
	TotalAmount       int64      `db:"total_amount" json:"total_amount"`
	DiscountAmount    int64      `db:"discount_amount" json:"discount_amount"`
	Status            string     `db:"status" json:"status"`
	ShippingAddressID *int64     `db:"shipping_address_id" json:"shipping_address_id,omitempty"`
	Remark            string     `db:"remark" json:"remark,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	PaidAt            *time.Time `db:"paid_at" json:"paid_at,omitempty"`
	ShippedAt         *time.Time `db:"shipped_at" json:"shipped_at,omitempty"`
	CompletedAt       *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// OrderItem is a line item. Price, name and image are snapshots taken at
// order creation and never re-read from the catalog.
type OrderItem struct {
	ID           int64  `db:"id" json:"id"`
	OrderID      int64  `db:"order_id" json:"order_id"`
	ProductID    int64  `db:"product_id" json:"product_id"`
	ProductName  string `db:"product_name" json:"product_name"`
	ProductImage string `db:"product_image" json:"product_image,omitempty"`
	Quantity     int    `db:"quantity" json:"quantity"`
	Price        int64  `db:"price" json:"price"`
}

// CartItem links a user to a product they intend to buy.
type CartItem struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	ProductID int64     `db:"product_id" json:"product_id"`
	Quantity  int       `db:"quantity" json:"quantity"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Coupon is an issuable coupon template.
type Coupon struct {
	ID             int64     `db:"id" json:"id"`
	Code           string    `db:"code" json:"code"`
	Name           string    `db:"name" json:"name"`
	Description    string    `db:"description" json:"description,omitempty"`
	Kind           string    `db:"kind" json:"kind"`
	DiscountValue  int64     `db:"discount_value" json:"discount_value"`
	MinAmount      int64     `db:"min_amount" json:"min_amount"`
	MaxDiscount    *int64    `db:"max_discount" json:"max_discount,omitempty"`
	TotalQuantity  int       `db:"total_quantity" json:"total_quantity"`
	RemainQuantity int       `db:"remain_quantity" json:"remain_quantity"`
	PerUserLimit   int       `db:"per_user_limit" json:"per_user_limit"`
	StartTime      time.Time `db:"start_time" json:"start_time"`
	EndTime        time.Time `db:"end_time" json:"end_time"`
	Enabled        bool      `db:"enabled" json:"enabled"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// UserCoupon is a coupon grant held by a user. ExpiredAt is copied from
// the coupon's end time at claim time and never re-read.
type UserCoupon struct {
	ID         int64      `db:"id" json:"id"`
	UserID     int64      `db:"user_id" json:"user_id"`
	CouponID   int64      `db:"coupon_id" json:"coupon_id"`
	Status     string     `db:"status" json:"status"`
	OrderID    *int64     `db:"order_id" json:"order_id,omitempty"`
	ReceivedAt time.Time  `db:"received_at" json:"received_at"`
	UsedAt     *time.Time `db:"used_at" json:"used_at,omitempty"`
	ExpiredAt  time.Time  `db:"expired_at" json:"expired_at"`
}

// UserCouponDetail joins a grant with its template fields for listings
// and discount computation.
type UserCouponDetail struct {
	UserCoupon
	Code          string `db:"code" json:"code"`
	Name          string `db:"name" json:"name"`
	Kind          string `db:"kind" json:"kind"`
	DiscountValue int64  `db:"discount_value" json:"discount_value"`
	MinAmount     int64  `db:"min_amount" json:"min_amount"`
	MaxDiscount   *int64 `db:"max_discount" json:"max_discount,omitempty"`
}

// Order statuses
const (
	OrderStatusPending   = "PENDING"
	OrderStatusPaid      = "PAID"
	OrderStatusShipped   = "SHIPPED"
	OrderStatusCompleted = "COMPLETED"
	OrderStatusCancelled = "CANCELLED"
)

// Coupon kinds
const (
	CouponKindFlat        = "FLAT"         // flat amount off, min order amount applies
	CouponKindPercent     = "PERCENT"      // pay discount_value percent of the order, capped
	CouponKindNoThreshold = "NO_THRESHOLD" // flat amount off, no minimum
)

// User coupon statuses
const (
	UserCouponStatusUnused  = "UNUSED"
	UserCouponStatusUsed    = "USED"
	UserCouponStatusExpired = "EXPIRED"
)

// ProcessedEvent records consumed event IDs for redelivery idempotency.
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
