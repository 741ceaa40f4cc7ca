package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/cafe-ordering/internal/domain/coupon"
	"github.com/xenking/cafe-ordering/internal/domain/pricing"
)

const couponColumns = `id, code, name, discount_type, discount_value, min_order_amount,
	max_discount, usage_limit, used_count, expiry_date, is_active, created_at, updated_at`

const (
	getCouponByCodeSQL = `SELECT ` + couponColumns + ` FROM coupons WHERE code = UPPER($1)`
	getCouponByIDSQL   = `SELECT ` + couponColumns + ` FROM coupons WHERE id = $1`
	listCouponsSQL     = `SELECT ` + couponColumns + ` FROM coupons ORDER BY created_at DESC, id DESC`

	createCouponSQL = `INSERT INTO coupons (id, code, name, discount_type, discount_value,
		min_order_amount, max_discount, usage_limit, used_count, expiry_date, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	upsertCouponSQL = `INSERT INTO coupons (id, code, name, discount_type, discount_value,
		min_order_amount, max_discount, usage_limit, expiry_date, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (code) DO UPDATE SET
			name = EXCLUDED.name,
			discount_type = EXCLUDED.discount_type,
			discount_value = EXCLUDED.discount_value,
			min_order_amount = EXCLUDED.min_order_amount,
			max_discount = EXCLUDED.max_discount,
			usage_limit = EXCLUDED.usage_limit,
			expiry_date = EXCLUDED.expiry_date,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at
		RETURNING id, used_count, created_at`

	updateCouponSQL = `UPDATE coupons SET code = $2, name = $3, discount_type = $4, discount_value = $5,
		min_order_amount = $6, max_discount = $7, usage_limit = $8, expiry_date = $9,
		is_active = $10, updated_at = $11
		WHERE id = $1
		RETURNING used_count`

	deleteCouponSQL = `DELETE FROM coupons WHERE id = $1`

	// incrementCouponSQL affects no row once the limit is reached.
	incrementCouponSQL = `UPDATE coupons SET used_count = used_count + 1, updated_at = now()
		WHERE code = $1 AND (usage_limit IS NULL OR used_count < usage_limit)`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up a coupon by its code (case-insensitive).
// Returns coupon.ErrCouponNotFound when no coupon matches.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	return r.getOne(ctx, getCouponByCodeSQL, code)
}

// Get returns the coupon with the given id.
func (r *CouponRepository) Get(ctx context.Context, id string) (*coupon.Coupon, error) {
	return r.getOne(ctx, getCouponByIDSQL, id)
}

func (r *CouponRepository) getOne(ctx context.Context, query, arg string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("finding coupon %q: %w", arg, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrCouponNotFound
		}
		return nil, fmt.Errorf("finding coupon %q: %w", arg, err)
	}
	return &c, nil
}

// List returns all coupons, newest first.
func (r *CouponRepository) List(ctx context.Context) ([]coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, listCouponsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing coupons: %w", err)
	}

	list, err := pgx.CollectRows(rows, scanCoupon)
	if err != nil {
		return nil, fmt.Errorf("listing coupons: %w", err)
	}
	return list, nil
}

// Create inserts a new coupon.
func (r *CouponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	_, err := r.pool.Exec(ctx, createCouponSQL,
		c.ID, c.Code, c.Name, string(c.DiscountType), c.DiscountValue,
		c.MinOrderAmount, c.MaxDiscount, c.UsageLimit, c.UsedCount,
		c.ExpiryDate, c.IsActive, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return coupon.ErrDuplicateCode
		}
		return fmt.Errorf("creating coupon %q: %w", c.Code, err)
	}
	return nil
}

// Upsert inserts c or overwrites the rule of the coupon with the same code.
// The stored id, usage count and creation time win and are copied back to c.
func (r *CouponRepository) Upsert(ctx context.Context, c *coupon.Coupon) error {
	err := r.pool.QueryRow(ctx, upsertCouponSQL,
		c.ID, c.Code, c.Name, string(c.DiscountType), c.DiscountValue,
		c.MinOrderAmount, c.MaxDiscount, c.UsageLimit,
		c.ExpiryDate, c.IsActive, c.CreatedAt, c.UpdatedAt,
	).Scan(&c.ID, &c.UsedCount, &c.CreatedAt)
	if err != nil {
		return fmt.Errorf("upserting coupon %q: %w", c.Code, err)
	}
	return nil
}

// Update overwrites the editable fields of c. used_count is never written.
func (r *CouponRepository) Update(ctx context.Context, c *coupon.Coupon) error {
	err := r.pool.QueryRow(ctx, updateCouponSQL,
		c.ID, c.Code, c.Name, string(c.DiscountType), c.DiscountValue,
		c.MinOrderAmount, c.MaxDiscount, c.UsageLimit,
		c.ExpiryDate, c.IsActive, c.UpdatedAt,
	).Scan(&c.UsedCount)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return coupon.ErrCouponNotFound
		case isUniqueViolation(err):
			return coupon.ErrDuplicateCode
		}
		return fmt.Errorf("updating coupon %q: %w", c.ID, err)
	}
	return nil
}

// Delete removes the coupon with the given id.
func (r *CouponRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deleteCouponSQL, id)
	if err != nil {
		return fmt.Errorf("deleting coupon %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrCouponNotFound
	}
	return nil
}

// incrementUsage runs the conditional usage increment inside tx.
func incrementUsage(ctx context.Context, tx pgx.Tx, code string) error {
	tag, err := tx.Exec(ctx, incrementCouponSQL, code)
	if err != nil {
		return fmt.Errorf("incrementing uses for coupon %q: %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrUsageLimitReached
	}
	return nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c            coupon.Coupon
		discountType string
	)
	err := row.Scan(
		&c.ID, &c.Code, &c.Name, &discountType, &c.DiscountValue, &c.MinOrderAmount,
		&c.MaxDiscount, &c.UsageLimit, &c.UsedCount, &c.ExpiryDate, &c.IsActive,
		&c.CreatedAt, &c.UpdatedAt,
	)
	c.DiscountType = pricing.DiscountType(discountType)
	return c, err
}
