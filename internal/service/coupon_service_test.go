package service

import (
	"testing"

	"order-core/internal/models"

	"github.com/stretchr/testify/assert"
)

func int64Ptr(v int64) *int64 { return &v }

func TestComputeDiscountFlat(t *testing.T) {
	// 50 off with a 100 minimum
	assert.Equal(t, int64(50), ComputeDiscount(models.CouponKindFlat, 50, 100, nil, 150))
	assert.Equal(t, int64(50), ComputeDiscount(models.CouponKindFlat, 50, 100, nil, 100))

	// below the minimum the coupon does not apply at all
	assert.Equal(t, int64(0), ComputeDiscount(models.CouponKindFlat, 50, 100, nil, 80))
}

func TestComputeDiscountNoThreshold(t *testing.T) {
	assert.Equal(t, int64(30), ComputeDiscount(models.CouponKindNoThreshold, 30, 0, nil, 40))

	// never more than the order itself
	assert.Equal(t, int64(40), ComputeDiscount(models.CouponKindNoThreshold, 50, 0, nil, 40))
}

func TestComputeDiscountPercent(t *testing.T) {
	// pay 20 percent of 500 means a 400 discount, capped at 30
	assert.Equal(t, int64(30), ComputeDiscount(models.CouponKindPercent, 20, 0, int64Ptr(30), 500))

	// uncapped
	assert.Equal(t, int64(400), ComputeDiscount(models.CouponKindPercent, 20, 0, nil, 500))

	// pay 90 percent of 200 means a 20 discount, cap not reached
	assert.Equal(t, int64(20), ComputeDiscount(models.CouponKindPercent, 90, 0, int64Ptr(50), 200))
}

func TestComputeDiscountBounds(t *testing.T) {
	// a pay-more-than-100-percent value can never yield a negative discount
	assert.Equal(t, int64(0), ComputeDiscount(models.CouponKindPercent, 120, 0, nil, 500))

	// a flat value larger than the order is clamped to the order
	assert.Equal(t, int64(100), ComputeDiscount(models.CouponKindFlat, 500, 0, nil, 100))

	// unknown kinds discount nothing
	assert.Equal(t, int64(0), ComputeDiscount("MYSTERY", 50, 0, nil, 500))
}

func TestSortAvailableCoupons(t *testing.T) {
	coupons := []AvailableCoupon{
		{DiscountAmount: 10},
		{DiscountAmount: 50},
		{DiscountAmount: 30},
	}

	sortAvailableCoupons(coupons)

	assert.Equal(t, int64(50), coupons[0].DiscountAmount)
	assert.Equal(t, int64(30), coupons[1].DiscountAmount)
	assert.Equal(t, int64(10), coupons[2].DiscountAmount)
}

func TestClaimRejectReason(t *testing.T) {
	assert.Equal(t, "sold_out", claimRejectReason(models.ErrCouponSoldOut))
	assert.Equal(t, "limit_reached", claimRejectReason(models.ErrClaimLimitReached))
	assert.Equal(t, "error", claimRejectReason(assert.AnError))
}
