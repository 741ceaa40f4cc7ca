// Package pricing computes order totals. It is the only place where subtotal,
// coupon discount and payable total are derived; coupon validation, order
// placement and coupon application all call into it.
package pricing

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// Percentage takes a share of the subtotal, optionally capped.
	Percentage DiscountType = "percentage"
	// Fixed takes a flat amount, never more than the subtotal.
	Fixed DiscountType = "fixed"
)

// Valid reports whether t is a known discount type.
func (t DiscountType) Valid() bool {
	return t == Percentage || t == Fixed
}

// ErrInvalidDiscountType is returned for a rule whose type is neither
// percentage nor fixed.
var ErrInvalidDiscountType = errors.New("invalid discount type")

var hundred = decimal.NewFromInt(100)

// Line is a priced cart line.
type Line struct {
	Price    decimal.Decimal
	Quantity int
}

// Rule is the discount part of a coupon.
type Rule struct {
	Type  DiscountType
	Value decimal.Decimal
	// MaxDiscount caps percentage discounts when valid. Ignored for fixed.
	MaxDiscount decimal.NullDecimal
}

// Totals is the result of pricing a cart.
type Totals struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

// Subtotal returns the sum of price * quantity across all lines.
func Subtotal(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return sum.Round(2)
}

// Discount returns the amount rule takes off subtotal, rounded to cents and
// clamped to [0, subtotal].
func Discount(subtotal decimal.Decimal, rule Rule) (decimal.Decimal, error) {
	var amount decimal.Decimal
	switch rule.Type {
	case Percentage:
		amount = subtotal.Mul(rule.Value).Div(hundred).Round(2)
		if rule.MaxDiscount.Valid {
			amount = decimal.Min(amount, rule.MaxDiscount.Decimal)
		}
	case Fixed:
		amount = rule.Value
	default:
		return decimal.Zero, errors.Wrapf(ErrInvalidDiscountType, "%q", rule.Type)
	}

	amount = decimal.Min(floorAtZero(amount), floorAtZero(subtotal))
	return amount.Round(2), nil
}

// Compute prices lines with an optional rule. A nil rule means no discount.
func Compute(lines []Line, rule *Rule) (Totals, error) {
	return Apply(Subtotal(lines), rule)
}

// Apply prices an already known subtotal with an optional rule.
func Apply(subtotal decimal.Decimal, rule *Rule) (Totals, error) {
	subtotal = floorAtZero(subtotal).Round(2)
	discount := decimal.Zero
	if rule != nil {
		d, err := Discount(subtotal, *rule)
		if err != nil {
			return Totals{}, err
		}
		discount = d
	}

	return Totals{
		Subtotal: subtotal,
		Discount: discount,
		Total:    floorAtZero(subtotal.Sub(discount)).Round(2),
	}, nil
}

func floorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
