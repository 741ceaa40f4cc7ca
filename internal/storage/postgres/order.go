package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/cafe-ordering/internal/domain/order"
)

const orderColumns = `id, user_id, name, email, address, order_type, payment_method, items,
	subtotal, total_amount, coupon_code, discount_amount, status, created_at, updated_at`

const (
	createOrderSQL = `INSERT INTO orders (id, user_id, name, email, address, order_type,
		payment_method, items, subtotal, total_amount, coupon_code, discount_amount, status,
		created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	listOrdersSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE ($1 = '' OR user_id = $1) AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3`

	updateOrderStatusSQL = `UPDATE orders SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2`

	attachCouponSQL = `UPDATE orders SET coupon_code = $2, discount_amount = $3,
		total_amount = $4, updated_at = now()
		WHERE id = $1 AND status = 'pending' AND coupon_code IS NULL`

	orderStateSQL = `SELECT status, coupon_code IS NOT NULL FROM orders WHERE id = $1`

	deleteOrderSQL = `DELETE FROM orders WHERE id = $1`

	salesSQL = `SELECT COALESCE(SUM(total_amount), 0), COUNT(*) FROM orders WHERE status = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order. The order items are serialized to JSON for
// storage in the JSONB column. When a coupon is applied its usage counter is
// incremented in the same transaction.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}

	var (
		couponCode *string
		discount   decimal.NullDecimal
	)
	if o.Coupon != nil {
		couponCode = &o.Coupon.Code
		discount = decimal.NewNullDecimal(o.Coupon.DiscountAmount)
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if couponCode != nil {
			if err := incrementUsage(ctx, tx, *couponCode); err != nil {
				return err
			}
		}

		_, err := tx.Exec(ctx, createOrderSQL,
			o.ID, o.UserID, o.Name, o.Email, o.Address, string(o.Type),
			o.PaymentMethod, itemsJSON, o.Subtotal, o.TotalAmount,
			couponCode, discount, string(o.Status), o.CreatedAt, o.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("creating order %q: %w", o.ID, err)
		}
		return nil
	})
}

// Get returns the order with the given id.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return &o, nil
}

// List returns orders matching f, newest first.
func (r *OrderRepository) List(ctx context.Context, f order.Filter) ([]order.Order, error) {
	var limit *int
	if f.Limit > 0 {
		limit = &f.Limit
	}

	rows, err := r.pool.Query(ctx, listOrdersSQL, f.UserID, string(f.Status), limit)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}

	list, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return list, nil
}

// UpdateStatus moves the order from one status to another.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, from, to order.Status) error {
	tag, err := r.pool.Exec(ctx, updateOrderStatusSQL, id, string(from), string(to))
	if err != nil {
		return fmt.Errorf("updating order %q status: %w", id, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var current string
	err = r.pool.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1`, id).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return order.ErrNotFound
		}
		return fmt.Errorf("reading order %q status: %w", id, err)
	}
	return order.ErrStatusConflict
}

// AttachCoupon sets the coupon snapshot on a pending order and increments
// the coupon usage counter in the same transaction.
func (r *OrderRepository) AttachCoupon(ctx context.Context, id string, c order.AppliedCoupon, total decimal.Decimal) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, attachCouponSQL, id, c.Code, c.DiscountAmount, total)
		if err != nil {
			return fmt.Errorf("attaching coupon to order %q: %w", id, err)
		}
		if tag.RowsAffected() == 0 {
			return orderState(ctx, tx, id)
		}
		return incrementUsage(ctx, tx, c.Code)
	})
}

// orderState explains why an order could not take a coupon.
func orderState(ctx context.Context, tx pgx.Tx, id string) error {
	var (
		status    string
		hasCoupon bool
	)
	err := tx.QueryRow(ctx, orderStateSQL, id).Scan(&status, &hasCoupon)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return order.ErrNotFound
	case err != nil:
		return fmt.Errorf("reading order %q: %w", id, err)
	case hasCoupon:
		return order.ErrCouponAlreadyApplied
	default:
		return order.ErrNotPending
	}
}

// Delete removes the order with the given id.
func (r *OrderRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deleteOrderSQL, id)
	if err != nil {
		return fmt.Errorf("deleting order %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// Sales sums the totals of delivered orders.
func (r *OrderRepository) Sales(ctx context.Context) (order.Sales, error) {
	var s order.Sales
	err := r.pool.QueryRow(ctx, salesSQL, string(order.StatusDelivered)).Scan(&s.Revenue, &s.Orders)
	if err != nil {
		return order.Sales{}, fmt.Errorf("summing sales: %w", err)
	}
	return s, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o          order.Order
		orderType  string
		status     string
		itemsJSON  []byte
		couponCode *string
		discount   decimal.NullDecimal
	)
	err := row.Scan(
		&o.ID, &o.UserID, &o.Name, &o.Email, &o.Address, &orderType, &o.PaymentMethod,
		&itemsJSON, &o.Subtotal, &o.TotalAmount, &couponCode, &discount, &status,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return o, err
	}

	o.Type = order.Type(orderType)
	o.Status = order.Status(status)
	if couponCode != nil {
		o.Coupon = &order.AppliedCoupon{Code: *couponCode, DiscountAmount: discount.Decimal}
	}
	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return o, fmt.Errorf("unmarshaling order items: %w", err)
	}
	return o, nil
}
