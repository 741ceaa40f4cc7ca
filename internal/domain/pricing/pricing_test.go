package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func capped(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(d(s))
}

func assertTotals(t *testing.T, want, got Totals) {
	t.Helper()
	assert.True(t, want.Subtotal.Equal(got.Subtotal), "subtotal: want %s, got %s", want.Subtotal, got.Subtotal)
	assert.True(t, want.Discount.Equal(got.Discount), "discount: want %s, got %s", want.Discount, got.Discount)
	assert.True(t, want.Total.Equal(got.Total), "total: want %s, got %s", want.Total, got.Total)
}

func TestCompute(t *testing.T) {
	tests := []struct {
		name  string
		lines []Line
		rule  *Rule
		want  Totals
	}{
		{
			name: "no items",
			want: Totals{Subtotal: decimal.Zero, Discount: decimal.Zero, Total: decimal.Zero},
		},
		{
			name:  "no coupon",
			lines: []Line{{Price: d("10.50"), Quantity: 2}, {Price: d("4.25"), Quantity: 1}},
			want:  Totals{Subtotal: d("25.25"), Discount: decimal.Zero, Total: d("25.25")},
		},
		{
			name:  "percentage capped by max discount",
			lines: []Line{{Price: d("250"), Quantity: 4}},
			rule:  &Rule{Type: Percentage, Value: d("10"), MaxDiscount: capped("80")},
			want:  Totals{Subtotal: d("1000"), Discount: d("80"), Total: d("920")},
		},
		{
			name:  "percentage under the cap",
			lines: []Line{{Price: d("100"), Quantity: 1}},
			rule:  &Rule{Type: Percentage, Value: d("10"), MaxDiscount: capped("80")},
			want:  Totals{Subtotal: d("100"), Discount: d("10"), Total: d("90")},
		},
		{
			name:  "percentage without cap",
			lines: []Line{{Price: d("19.99"), Quantity: 3}},
			rule:  &Rule{Type: Percentage, Value: d("15")},
			want:  Totals{Subtotal: d("59.97"), Discount: d("9.00"), Total: d("50.97")},
		},
		{
			name:  "fixed clamped to subtotal",
			lines: []Line{{Price: d("25"), Quantity: 2}},
			rule:  &Rule{Type: Fixed, Value: d("100")},
			want:  Totals{Subtotal: d("50"), Discount: d("50"), Total: decimal.Zero},
		},
		{
			name:  "fixed ignores max discount",
			lines: []Line{{Price: d("40"), Quantity: 1}},
			rule:  &Rule{Type: Fixed, Value: d("30"), MaxDiscount: capped("5")},
			want:  Totals{Subtotal: d("40"), Discount: d("30"), Total: d("10")},
		},
		{
			name:  "fractional cents avoid float drift",
			lines: []Line{{Price: d("0.10"), Quantity: 3}, {Price: d("0.20"), Quantity: 1}},
			want:  Totals{Subtotal: d("0.50"), Discount: decimal.Zero, Total: d("0.50")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compute(tt.lines, tt.rule)
			require.NoError(t, err)
			assertTotals(t, tt.want, got)
		})
	}
}

func TestCompute_InvalidDiscountType(t *testing.T) {
	_, err := Compute([]Line{{Price: d("10"), Quantity: 1}}, &Rule{Type: "bogo", Value: d("1")})
	require.ErrorIs(t, err, ErrInvalidDiscountType)
}

func TestCompute_Properties(t *testing.T) {
	carts := [][]Line{
		{{Price: d("0"), Quantity: 1}},
		{{Price: d("3.33"), Quantity: 3}},
		{{Price: d("12.40"), Quantity: 7}, {Price: d("0.99"), Quantity: 11}},
		{{Price: d("999.99"), Quantity: 1}, {Price: d("0.01"), Quantity: 100}},
	}
	rules := []*Rule{
		nil,
		{Type: Percentage, Value: d("0")},
		{Type: Percentage, Value: d("33.3")},
		{Type: Percentage, Value: d("100")},
		{Type: Percentage, Value: d("50"), MaxDiscount: capped("2.5")},
		{Type: Fixed, Value: d("0")},
		{Type: Fixed, Value: d("7.77")},
		{Type: Fixed, Value: d("100000")},
	}

	for _, lines := range carts {
		want := decimal.Zero
		for _, l := range lines {
			want = want.Add(l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
		}
		for _, rule := range rules {
			got, err := Compute(lines, rule)
			require.NoError(t, err)

			assert.True(t, want.Equal(got.Subtotal), "subtotal %s != %s", got.Subtotal, want)
			assert.True(t, got.Total.LessThanOrEqual(got.Subtotal))
			assert.False(t, got.Total.IsNegative())
			assert.True(t, got.Subtotal.Sub(got.Discount).Equal(got.Total))

			if rule != nil && rule.Type == Fixed {
				assert.True(t, decimal.Min(rule.Value, got.Subtotal).Equal(got.Discount))
			}
			if rule != nil && rule.Type == Percentage && rule.MaxDiscount.Valid {
				raw := got.Subtotal.Mul(rule.Value).Div(hundred).Round(2)
				assert.True(t, decimal.Min(raw, rule.MaxDiscount.Decimal).Equal(got.Discount))
			}

			again, err := Compute(lines, rule)
			require.NoError(t, err)
			assertTotals(t, got, again)
		}
	}
}

func TestDiscount_NegativeSubtotal(t *testing.T) {
	got, err := Discount(d("-5"), Rule{Type: Fixed, Value: d("3")})
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}
