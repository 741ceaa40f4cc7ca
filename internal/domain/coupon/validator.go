package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/cafe-ordering/internal/domain/pricing"
)

// Finder is the read side of Repository the validator needs.
type Finder interface {
	FindByCode(ctx context.Context, code string) (*Coupon, error)
}

// Validated is a coupon that passed every check for a subtotal.
type Validated struct {
	Coupon   *Coupon
	Discount decimal.Decimal
}

// Validator decides whether a coupon code may be applied to a subtotal.
// It never mutates usage counters.
type Validator struct {
	repo Finder
	now  func() time.Time
}

// NewValidator creates a Validator backed by the given Finder.
func NewValidator(repo Finder) *Validator {
	return &Validator{repo: repo, now: time.Now}
}

// Validate looks the code up and runs Check against subtotal.
func (v *Validator) Validate(ctx context.Context, code string, subtotal decimal.Decimal) (*Validated, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, ErrCouponNotFound
	}

	c, err := v.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrCouponNotFound) {
			return nil, ErrCouponNotFound
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	if err := Check(c, subtotal, v.now()); err != nil {
		return nil, err
	}

	discount, err := pricing.Discount(subtotal, c.Rule())
	if err != nil {
		return nil, err
	}

	return &Validated{Coupon: c, Discount: discount}, nil
}

// Check applies the eligibility rules in order, returning the first failure:
// active, not expired (expiry instant inclusive), minimum order met
// (inclusive), usage limit not reached.
func Check(c *Coupon, subtotal decimal.Decimal, now time.Time) error {
	if !c.IsActive {
		return ErrCouponInactive
	}
	if now.After(c.ExpiryDate) {
		return ErrCouponExpired
	}
	if subtotal.LessThan(c.MinOrderAmount) {
		return &MinimumOrderError{Minimum: c.MinOrderAmount}
	}
	if c.Exhausted() {
		return ErrUsageLimitReached
	}
	return nil
}

// Reason maps a validation error to a short label for metrics.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrCouponNotFound):
		return "not_found"
	case errors.Is(err, ErrCouponInactive):
		return "inactive"
	case errors.Is(err, ErrCouponExpired):
		return "expired"
	case errors.Is(err, ErrMinimumOrderNotMet):
		return "minimum_order"
	case errors.Is(err, ErrUsageLimitReached):
		return "usage_limit"
	case errors.Is(err, pricing.ErrInvalidDiscountType):
		return "invalid_type"
	default:
		return "other"
	}
}
