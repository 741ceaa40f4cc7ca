package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/cafe-ordering/internal/domain/auth"
	"github.com/xenking/cafe-ordering/internal/domain/pricing"
)

// Type is how the customer receives the order.
type Type string

const (
	TypeDineIn   Type = "dine-in"
	TypeTakeout  Type = "takeout"
	TypeDelivery Type = "delivery"
)

// Valid reports whether t is a known order type.
func (t Type) Valid() bool {
	return t == TypeDineIn || t == TypeTakeout || t == TypeDelivery
}

// Order is a placed customer order.
type Order struct {
	ID            string
	UserID        string
	Name          string
	Email         string
	Address       string
	Type          Type
	PaymentMethod string
	Items         []Item
	Subtotal      decimal.Decimal
	TotalAmount   decimal.Decimal
	// Coupon is written once, at placement or by ApplyCoupon.
	Coupon    *AppliedCoupon
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Item is an order line priced from the menu at checkout.
type Item struct {
	FoodItemID string          `json:"foodItemId"`
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
}

// AppliedCoupon is the denormalised coupon snapshot kept on an order. It does
// not follow later edits of the coupon.
type AppliedCoupon struct {
	Code           string
	DiscountAmount decimal.Decimal
}

// Discount returns the applied discount, zero without a coupon.
func (o *Order) Discount() decimal.Decimal {
	if o.Coupon == nil {
		return decimal.Zero
	}
	return o.Coupon.DiscountAmount
}

// Lines converts the order items into pricing lines.
func (o *Order) Lines() []pricing.Line {
	lines := make([]pricing.Line, len(o.Items))
	for i, it := range o.Items {
		lines[i] = pricing.Line{Price: it.Price, Quantity: it.Quantity}
	}
	return lines
}

// VisibleTo reports whether id may read the order.
func (o *Order) VisibleTo(id auth.Identity) bool {
	return id.IsStaff() || (id.UserID != "" && id.UserID == o.UserID)
}

// Sales sums the totals of delivered orders.
type Sales struct {
	Revenue decimal.Decimal
	Orders  int
}

// Average returns the mean order value rounded to cents, zero without orders.
func (s Sales) Average() decimal.Decimal {
	if s.Orders == 0 {
		return decimal.Zero
	}
	return s.Revenue.DivRound(decimal.NewFromInt(int64(s.Orders)), 2)
}

// Filter narrows List results. Zero values mean no restriction.
type Filter struct {
	UserID string
	Status Status
	Limit  int
}

// Repository defines persistence operations for orders.
//
// Create and AttachCoupon own the coupon usage counter: when a coupon is
// involved they must increment it with a single conditional update
// (usedCount < usageLimit, or no limit) in the same transaction as the order
// write, and fail with coupon.ErrUsageLimitReached without writing anything
// when the update matches nothing.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	// Get returns ErrNotFound for an unknown id.
	Get(ctx context.Context, id string) (*Order, error)
	// List returns orders newest first.
	List(ctx context.Context, f Filter) ([]Order, error)
	// UpdateStatus moves the order from one status to another. It returns
	// ErrStatusConflict when the stored status is no longer from.
	UpdateStatus(ctx context.Context, id string, from, to Status) error
	// AttachCoupon sets the coupon snapshot and new total on a pending order
	// without a coupon. It returns ErrCouponAlreadyApplied otherwise.
	AttachCoupon(ctx context.Context, id string, c AppliedCoupon, total decimal.Decimal) error
	Delete(ctx context.Context, id string) error
	// Sales aggregates TotalAmount over orders in StatusDelivered.
	Sales(ctx context.Context) (Sales, error)
}
