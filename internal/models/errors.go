package models

import "errors"

// Order errors. Callers distinguish these with errors.Is so the HTTP layer
// can map them to specific responses instead of a generic failure.
var (
	ErrEmptyItems        = errors.New("order items must not be empty")
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrOrderNotFound     = errors.New("order not found")
	ErrForbidden         = errors.New("order belongs to another user")
	ErrInvalidState      = errors.New("order status does not permit this transition")
)

// Coupon errors.
var (
	ErrCouponNotFound     = errors.New("coupon not found")
	ErrCouponNotActive    = errors.New("coupon is not yet active")
	ErrCouponExpired      = errors.New("coupon has expired")
	ErrCouponDisabled     = errors.New("coupon is disabled")
	ErrCouponSoldOut      = errors.New("coupon is sold out")
	ErrClaimLimitReached  = errors.New("per-user claim limit reached")
	ErrCouponUnavailable  = errors.New("coupon is not usable")
	ErrUserCouponNotFound = errors.New("user coupon not found")
)
