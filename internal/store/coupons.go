package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"order-core/internal/models"

	"github.com/jmoiron/sqlx"
)

// GetCouponByID retrieves a coupon template by ID
func (s *Store) GetCouponByID(ctx context.Context, id int64) (*models.Coupon, error) {
	var coupon models.Coupon
	err := s.db.GetContext(ctx, &coupon, "SELECT * FROM coupons WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("coupon %d: %w", id, models.ErrCouponNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

// GetCouponByCode retrieves a coupon template by its unique code
func (s *Store) GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := s.db.GetContext(ctx, &coupon, "SELECT * FROM coupons WHERE code = $1", code)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("coupon %q: %w", code, models.ErrCouponNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

// ClaimCouponTx issues a coupon grant to a user. The coupon row is locked
// with SELECT ... FOR UPDATE for the duration of the transaction so that
// concurrent claims on the same coupon serialize: validation, the quota
// decrement and the grant insert are one atomic unit.
func (s *Store) ClaimCouponTx(ctx context.Context, userID, couponID int64, now time.Time) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var coupon models.Coupon
	err = tx.GetContext(ctx, &coupon,
		"SELECT * FROM coupons WHERE id = $1 FOR UPDATE", couponID)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("coupon %d: %w", couponID, models.ErrCouponNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to lock coupon: %w", err)
	}

	if !coupon.Enabled {
		return 0, models.ErrCouponDisabled
	}
	if now.Before(coupon.StartTime) {
		return 0, models.ErrCouponNotActive
	}
	if !now.Before(coupon.EndTime) {
		return 0, models.ErrCouponExpired
	}
	if coupon.RemainQuantity <= 0 {
		return 0, models.ErrCouponSoldOut
	}

	var claimed int
	err = tx.GetContext(ctx, &claimed,
		"SELECT COUNT(*) FROM user_coupons WHERE user_id = $1 AND coupon_id = $2",
		userID, couponID)
	if err != nil {
		return 0, err
	}
	if claimed >= coupon.PerUserLimit {
		return 0, models.ErrClaimLimitReached
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE coupons SET remain_quantity = remain_quantity - 1, updated_at = NOW() WHERE id = $1",
		couponID)
	if err != nil {
		return 0, fmt.Errorf("failed to decrement coupon quantity: %w", err)
	}

	var userCouponID int64
	err = tx.GetContext(ctx, &userCouponID,
		`INSERT INTO user_coupons (user_id, coupon_id, status, expired_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		userID, couponID, models.UserCouponStatusUnused, coupon.EndTime)
	if err != nil {
		return 0, fmt.Errorf("failed to create user coupon: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return userCouponID, nil
}

// GetUserCoupons retrieves a user's coupon grants joined with template
// fields, newest first, optionally filtered by status.
func (s *Store) GetUserCoupons(ctx context.Context, userID int64, status *string) ([]models.UserCouponDetail, error) {
	query := `SELECT uc.*, c.code, c.name, c.kind, c.discount_value, c.min_amount, c.max_discount
	          FROM user_coupons uc
	          INNER JOIN coupons c ON uc.coupon_id = c.id
	          WHERE uc.user_id = $1`
	args := []interface{}{userID}
	if status != nil {
		query += " AND uc.status = $2"
		args = append(args, *status)
	}
	query += " ORDER BY uc.received_at DESC"

	var coupons []models.UserCouponDetail
	err := s.db.SelectContext(ctx, &coupons, query, args...)
	return coupons, err
}

// GetUserCouponDetail retrieves one grant with its template fields.
func (s *Store) GetUserCouponDetail(ctx context.Context, userCouponID int64) (*models.UserCouponDetail, error) {
	var uc models.UserCouponDetail
	err := s.db.GetContext(ctx, &uc,
		`SELECT uc.*, c.code, c.name, c.kind, c.discount_value, c.min_amount, c.max_discount
		 FROM user_coupons uc
		 INNER JOIN coupons c ON uc.coupon_id = c.id
		 WHERE uc.id = $1`, userCouponID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user coupon %d: %w", userCouponID, models.ErrUserCouponNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &uc, nil
}

// useCouponTx marks a grant USED for an order. The status guard in the
// UPDATE allows exactly one UNUSED -> USED transition per grant.
func useCouponTx(ctx context.Context, tx *sqlx.Tx, userCouponID, orderID int64) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE user_coupons SET status = $1, used_at = NOW(), order_id = $2 WHERE id = $3 AND status = $4",
		models.UserCouponStatusUsed, orderID, userCouponID, models.UserCouponStatusUnused)
	if err != nil {
		return fmt.Errorf("failed to use coupon: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("user coupon %d: %w", userCouponID, models.ErrCouponUnavailable)
	}
	return nil
}

// ExpireUserCoupons flips UNUSED grants whose expiry has passed to
// EXPIRED. Returns the number of grants expired.
func (s *Store) ExpireUserCoupons(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE user_coupons SET status = $1 WHERE status = $2 AND expired_at < $3",
		models.UserCouponStatusExpired, models.UserCouponStatusUnused, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListEnabledCoupons returns a page of claimable coupon templates.
func (s *Store) ListEnabledCoupons(ctx context.Context, page, limit int) ([]models.Coupon, int, error) {
	var total int
	if err := s.db.GetContext(ctx, &total,
		"SELECT COUNT(*) FROM coupons WHERE enabled = TRUE"); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	var coupons []models.Coupon
	err := s.db.SelectContext(ctx, &coupons,
		"SELECT * FROM coupons WHERE enabled = TRUE ORDER BY created_at DESC LIMIT $1 OFFSET $2",
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return coupons, total, nil
}
