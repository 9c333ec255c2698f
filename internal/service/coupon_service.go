package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"order-core/internal/models"
	"order-core/internal/store"
	"order-core/internal/util"

	"go.uber.org/zap"
)

// CouponService handles coupon issuance and discount calculation
type CouponService struct {
	store  *store.Store
	logger *zap.Logger
}

// NewCouponService creates a new coupon service
func NewCouponService(store *store.Store) *CouponService {
	return &CouponService{
		store:  store,
		logger: util.GetLogger(),
	}
}

// Claim issues a coupon grant to a user, by coupon ID or by code.
func (cs *CouponService) Claim(ctx context.Context, userID, couponID int64, code string) (int64, error) {
	ctx, span := util.StartSpan(ctx, "CouponService.Claim")
	defer span.End()

	if couponID == 0 && code != "" {
		coupon, err := cs.store.GetCouponByCode(ctx, code)
		if err != nil {
			util.CouponClaimsRejected.WithLabelValues("not_found").Inc()
			return 0, err
		}
		couponID = coupon.ID
	}
	if couponID == 0 {
		return 0, fmt.Errorf("coupon id or code required: %w", models.ErrCouponNotFound)
	}

	userCouponID, err := cs.store.ClaimCouponTx(ctx, userID, couponID, time.Now())
	if err != nil {
		util.CouponClaimsRejected.WithLabelValues(claimRejectReason(err)).Inc()
		return 0, err
	}

	util.CouponsClaimedTotal.Inc()
	cs.logger.Info("Coupon claimed",
		zap.Int64("user_id", userID),
		zap.Int64("coupon_id", couponID),
		zap.Int64("user_coupon_id", userCouponID))
	return userCouponID, nil
}

func claimRejectReason(err error) string {
	switch {
	case errors.Is(err, models.ErrCouponNotFound):
		return "not_found"
	case errors.Is(err, models.ErrCouponDisabled):
		return "disabled"
	case errors.Is(err, models.ErrCouponNotActive):
		return "not_active"
	case errors.Is(err, models.ErrCouponExpired):
		return "expired"
	case errors.Is(err, models.ErrCouponSoldOut):
		return "sold_out"
	case errors.Is(err, models.ErrClaimLimitReached):
		return "limit_reached"
	default:
		return "error"
	}
}

// ComputeDiscount returns the discount a coupon yields on an order amount.
// The result is always within [0, orderAmount]: below the minimum the
// coupon simply does not apply, and no kind may discount more than the
// order itself.
func ComputeDiscount(kind string, discountValue, minAmount int64, maxDiscount *int64, orderAmount int64) int64 {
	if orderAmount < minAmount {
		return 0
	}

	var discount int64
	switch kind {
	case models.CouponKindFlat, models.CouponKindNoThreshold:
		discount = discountValue
	case models.CouponKindPercent:
		discount = orderAmount - orderAmount*discountValue/100
		if maxDiscount != nil && discount > *maxDiscount {
			discount = *maxDiscount
		}
	default:
		return 0
	}

	if discount < 0 {
		return 0
	}
	if discount > orderAmount {
		return orderAmount
	}
	return discount
}

// AvailableCoupon is a usable grant annotated with its discount on a
// specific order amount.
type AvailableCoupon struct {
	models.UserCouponDetail
	DiscountAmount int64 `json:"discount_amount"`
}

// ListAvailableForOrder returns the user's UNUSED grants that yield a
// positive discount on the given amount, best discount first.
func (cs *CouponService) ListAvailableForOrder(ctx context.Context, userID, orderAmount int64) ([]AvailableCoupon, error) {
	status := models.UserCouponStatusUnused
	coupons, err := cs.store.GetUserCoupons(ctx, userID, &status)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	available := make([]AvailableCoupon, 0, len(coupons))
	for _, uc := range coupons {
		if !now.Before(uc.ExpiredAt) {
			continue
		}
		discount := ComputeDiscount(uc.Kind, uc.DiscountValue, uc.MinAmount, uc.MaxDiscount, orderAmount)
		if discount <= 0 {
			continue
		}
		available = append(available, AvailableCoupon{UserCouponDetail: uc, DiscountAmount: discount})
	}

	sortAvailableCoupons(available)
	return available, nil
}

func sortAvailableCoupons(coupons []AvailableCoupon) {
	sort.SliceStable(coupons, func(i, j int) bool {
		return coupons[i].DiscountAmount > coupons[j].DiscountAmount
	})
}

// PreviewDiscount computes a grant's discount and the resulting payable
// amount without mutating anything.
func (cs *CouponService) PreviewDiscount(ctx context.Context, userID, userCouponID, orderAmount int64) (discount, finalAmount int64, err error) {
	uc, err := cs.store.GetUserCouponDetail(ctx, userCouponID)
	if err != nil {
		return 0, 0, err
	}
	if uc.UserID != userID {
		return 0, 0, fmt.Errorf("user coupon %d: %w", userCouponID, models.ErrUserCouponNotFound)
	}
	if uc.Status != models.UserCouponStatusUnused {
		return 0, 0, fmt.Errorf("user coupon %d: %w", userCouponID, models.ErrCouponUnavailable)
	}

	discount = ComputeDiscount(uc.Kind, uc.DiscountValue, uc.MinAmount, uc.MaxDiscount, orderAmount)
	finalAmount = orderAmount - discount
	return discount, finalAmount, nil
}

// ListUserCoupons retrieves a user's grants, optionally by status.
func (cs *CouponService) ListUserCoupons(ctx context.Context, userID int64, status *string) ([]models.UserCouponDetail, error) {
	return cs.store.GetUserCoupons(ctx, userID, status)
}

// ListClaimable returns a page of enabled coupon templates.
func (cs *CouponService) ListClaimable(ctx context.Context, page, limit int) ([]models.Coupon, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return cs.store.ListEnabledCoupons(ctx, page, limit)
}

// usableDiscount validates a grant for checkout and returns the discount
// it yields. Called by order creation before the grant is consumed inside
// the order transaction.
func (cs *CouponService) usableDiscount(ctx context.Context, userID, userCouponID, orderAmount int64) (int64, error) {
	uc, err := cs.store.GetUserCouponDetail(ctx, userCouponID)
	if err != nil {
		return 0, err
	}
	if uc.UserID != userID {
		return 0, fmt.Errorf("user coupon %d: %w", userCouponID, models.ErrUserCouponNotFound)
	}
	if uc.Status != models.UserCouponStatusUnused {
		return 0, fmt.Errorf("user coupon %d: %w", userCouponID, models.ErrCouponUnavailable)
	}
	if !time.Now().Before(uc.ExpiredAt) {
		return 0, fmt.Errorf("user coupon %d: %w", userCouponID, models.ErrCouponExpired)
	}

	discount := ComputeDiscount(uc.Kind, uc.DiscountValue, uc.MinAmount, uc.MaxDiscount, orderAmount)
	if discount <= 0 {
		return 0, fmt.Errorf("user coupon %d below minimum order amount: %w", userCouponID, models.ErrCouponUnavailable)
	}
	return discount, nil
}
