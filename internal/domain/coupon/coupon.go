package coupon

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/cafe-ordering/internal/domain/pricing"
)

// Discount types re-exported for callers that only deal with coupons.
const (
	DiscountPercentage = pricing.Percentage
	DiscountFixed      = pricing.Fixed
)

// Code length bounds, after normalisation.
const (
	MinCodeLen = 3
	MaxCodeLen = 15
)

var (
	// ErrCouponNotFound is returned when no coupon matches a code or id.
	ErrCouponNotFound = errors.New("invalid coupon code")
	// ErrCouponInactive is returned for a coupon switched off by an admin.
	ErrCouponInactive = errors.New("this coupon is not active")
	// ErrCouponExpired is returned strictly after the coupon's expiry instant.
	ErrCouponExpired = errors.New("this coupon has expired")
	// ErrMinimumOrderNotMet is matched by every *MinimumOrderError.
	ErrMinimumOrderNotMet = errors.New("minimum order amount not met")
	// ErrUsageLimitReached is returned once usedCount reaches usageLimit,
	// including when the atomic increment loses a race.
	ErrUsageLimitReached = errors.New("this coupon has reached its maximum usage limit")
	// ErrDuplicateCode is returned when creating or renaming onto an existing code.
	ErrDuplicateCode = errors.New("coupon code already exists")
)

// MinimumOrderError carries the minimum the order subtotal must reach.
type MinimumOrderError struct {
	Minimum decimal.Decimal
}

func (e *MinimumOrderError) Error() string {
	return fmt.Sprintf("Minimum order amount of %s required", e.Minimum.StringFixed(2))
}

// Is makes errors.Is(err, ErrMinimumOrderNotMet) hold.
func (e *MinimumOrderError) Is(target error) bool {
	return target == ErrMinimumOrderNotMet
}

// ValidationError describes a rejected coupon field on create or update.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Coupon is a named discount rule.
type Coupon struct {
	ID             string
	Code           string
	Name           string
	DiscountType   pricing.DiscountType
	DiscountValue  decimal.Decimal
	MinOrderAmount decimal.Decimal
	// MaxDiscount caps percentage discounts; invalid means no cap.
	MaxDiscount decimal.NullDecimal
	// UsageLimit is nil for unlimited coupons.
	UsageLimit *int
	UsedCount  int
	// ExpiryDate is the last instant at which the coupon is valid.
	ExpiryDate time.Time
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Rule returns the pricing rule of the coupon.
func (c *Coupon) Rule() pricing.Rule {
	return pricing.Rule{
		Type:        c.DiscountType,
		Value:       c.DiscountValue,
		MaxDiscount: c.MaxDiscount,
	}
}

// Exhausted reports whether the usage limit is reached.
func (c *Coupon) Exhausted() bool {
	return c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit
}

// Validate checks field constraints. Code must already be normalised.
func (c *Coupon) Validate() error {
	switch n := utf8.RuneCountInString(c.Code); {
	case n < MinCodeLen || n > MaxCodeLen:
		return &ValidationError{Field: "code", Reason: fmt.Sprintf("must be %d-%d characters", MinCodeLen, MaxCodeLen)}
	case strings.TrimSpace(c.Name) == "":
		return &ValidationError{Field: "name", Reason: "is required"}
	case !c.DiscountType.Valid():
		return &ValidationError{Field: "discountType", Reason: "must be percentage or fixed"}
	case c.DiscountValue.IsNegative():
		return &ValidationError{Field: "discountValue", Reason: "cannot be negative"}
	case c.DiscountType == DiscountPercentage && c.DiscountValue.GreaterThan(decimal.NewFromInt(100)):
		return &ValidationError{Field: "discountValue", Reason: "percentage cannot exceed 100"}
	case c.MinOrderAmount.IsNegative():
		return &ValidationError{Field: "minOrderAmount", Reason: "cannot be negative"}
	case c.MaxDiscount.Valid && c.MaxDiscount.Decimal.IsNegative():
		return &ValidationError{Field: "maxDiscount", Reason: "cannot be negative"}
	case c.UsageLimit != nil && *c.UsageLimit < 1:
		return &ValidationError{Field: "usageLimit", Reason: "must be at least 1"}
	case c.UsedCount < 0:
		return &ValidationError{Field: "usedCount", Reason: "cannot be negative"}
	case c.ExpiryDate.IsZero():
		return &ValidationError{Field: "expiryDate", Reason: "is required"}
	}
	return nil
}

// NormalizeCode trims and upper-cases a code, making lookups case-insensitive.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Repository persists coupons.
//
// Usage counting is not part of this interface: the conditional increment
// runs inside the order store's transaction, see order.Repository.
type Repository interface {
	// FindByCode looks up a coupon by normalised code.
	// Returns ErrCouponNotFound when absent.
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	// Get returns ErrCouponNotFound for an unknown id.
	Get(ctx context.Context, id string) (*Coupon, error)
	// List returns all coupons, newest first.
	List(ctx context.Context) ([]Coupon, error)
	// Create returns ErrDuplicateCode when the code is taken.
	Create(ctx context.Context, c *Coupon) error
	// Update overwrites the admin-editable fields of c, leaving usedCount alone.
	Update(ctx context.Context, c *Coupon) error
	Delete(ctx context.Context, id string) error
}
