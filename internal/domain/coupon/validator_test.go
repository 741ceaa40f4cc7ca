package coupon

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/cafe-ordering/internal/domain/pricing"
)

type mockFinder struct {
	coupon   *Coupon
	err      error
	lastCode string
}

func (m *mockFinder) FindByCode(_ context.Context, code string) (*Coupon, error) {
	m.lastCode = code
	if m.err != nil {
		return nil, m.err
	}
	if m.coupon == nil {
		return nil, ErrCouponNotFound
	}
	c := *m.coupon
	return &c, nil
}

func limit(n int) *int { return &n }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestValidator_Validate(t *testing.T) {
	fixedNow := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	base := func(mod func(c *Coupon)) *Coupon {
		c := &Coupon{
			ID:            "c1",
			Code:          "SAVE10",
			Name:          "Ten percent",
			DiscountType:  DiscountPercentage,
			DiscountValue: dec("10"),
			ExpiryDate:    fixedNow.Add(24 * time.Hour),
			IsActive:      true,
		}
		if mod != nil {
			mod(c)
		}
		return c
	}

	tests := []struct {
		name       string
		coupon     *Coupon
		code       string
		subtotal   string
		wantAmount string
		wantErr    error
	}{
		{
			name:       "valid code returns discount",
			coupon:     base(nil),
			code:       "SAVE10",
			subtotal:   "100",
			wantAmount: "10",
		},
		{
			name:       "percentage capped by max discount",
			coupon:     base(func(c *Coupon) { c.MaxDiscount = decimal.NewNullDecimal(dec("80")) }),
			code:       "SAVE10",
			subtotal:   "1000",
			wantAmount: "80",
		},
		{
			name:       "fixed discount clamped to subtotal",
			coupon:     base(func(c *Coupon) { c.DiscountType = DiscountFixed; c.DiscountValue = dec("100") }),
			code:       "SAVE10",
			subtotal:   "50",
			wantAmount: "50",
		},
		{
			name:     "unknown code",
			code:     "BOGUS",
			subtotal: "50",
			wantErr:  ErrCouponNotFound,
		},
		{
			name:     "blank code is not found",
			coupon:   base(nil),
			code:     "   ",
			subtotal: "50",
			wantErr:  ErrCouponNotFound,
		},
		{
			name:     "inactive coupon",
			coupon:   base(func(c *Coupon) { c.IsActive = false }),
			code:     "SAVE10",
			subtotal: "100",
			wantErr:  ErrCouponInactive,
		},
		{
			name:     "inactive checked before expiry",
			coupon:   base(func(c *Coupon) { c.IsActive = false; c.ExpiryDate = fixedNow.Add(-time.Hour) }),
			code:     "SAVE10",
			subtotal: "100",
			wantErr:  ErrCouponInactive,
		},
		{
			name:       "expiry instant itself is valid",
			coupon:     base(func(c *Coupon) { c.ExpiryDate = fixedNow }),
			code:       "SAVE10",
			subtotal:   "100",
			wantAmount: "10",
		},
		{
			name:     "one instant past expiry is expired",
			coupon:   base(func(c *Coupon) { c.ExpiryDate = fixedNow.Add(-time.Nanosecond) }),
			code:     "SAVE10",
			subtotal: "100",
			wantErr:  ErrCouponExpired,
		},
		{
			name:     "below minimum order",
			coupon:   base(func(c *Coupon) { c.MinOrderAmount = dec("500") }),
			code:     "SAVE10",
			subtotal: "200",
			wantErr:  ErrMinimumOrderNotMet,
		},
		{
			name:       "minimum order is inclusive",
			coupon:     base(func(c *Coupon) { c.MinOrderAmount = dec("500") }),
			code:       "SAVE10",
			subtotal:   "500",
			wantAmount: "50",
		},
		{
			name:     "usage limit reached",
			coupon:   base(func(c *Coupon) { c.UsageLimit = limit(100); c.UsedCount = 100 }),
			code:     "SAVE10",
			subtotal: "100",
			wantErr:  ErrUsageLimitReached,
		},
		{
			name:       "usage under limit succeeds",
			coupon:     base(func(c *Coupon) { c.UsageLimit = limit(100); c.UsedCount = 99 }),
			code:       "SAVE10",
			subtotal:   "100",
			wantAmount: "10",
		},
		{
			name:       "no usage limit always succeeds",
			coupon:     base(func(c *Coupon) { c.UsedCount = 9999 }),
			code:       "SAVE10",
			subtotal:   "100",
			wantAmount: "10",
		},
		{
			name:     "unknown discount type",
			coupon:   base(func(c *Coupon) { c.DiscountType = "bogo" }),
			code:     "SAVE10",
			subtotal: "100",
			wantErr:  pricing.ErrInvalidDiscountType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewValidator(&mockFinder{coupon: tt.coupon})
			v.now = func() time.Time { return fixedNow }

			got, err := v.Validate(context.Background(), tt.code, dec(tt.subtotal))

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, got)
			assert.True(t, dec(tt.wantAmount).Equal(got.Discount),
				"expected amount %s, got %s", tt.wantAmount, got.Discount)
		})
	}
}

func TestValidator_NormalizesCode(t *testing.T) {
	repo := &mockFinder{coupon: &Coupon{
		Code:          "WELCOME",
		DiscountType:  DiscountFixed,
		DiscountValue: dec("5"),
		ExpiryDate:    time.Now().Add(time.Hour),
		IsActive:      true,
	}}

	_, err := NewValidator(repo).Validate(context.Background(), "  welcome ", dec("20"))
	require.NoError(t, err)
	assert.Equal(t, "WELCOME", repo.lastCode)
}

func TestValidator_DoesNotMutateUsage(t *testing.T) {
	c := &Coupon{
		Code:          "ONCE",
		DiscountType:  DiscountFixed,
		DiscountValue: dec("5"),
		UsageLimit:    limit(1),
		ExpiryDate:    time.Now().Add(time.Hour),
		IsActive:      true,
	}
	v := NewValidator(&mockFinder{coupon: c})

	for range 3 {
		_, err := v.Validate(context.Background(), "ONCE", dec("20"))
		require.NoError(t, err)
	}
	assert.Equal(t, 0, c.UsedCount)
}

func TestValidator_RepositoryError(t *testing.T) {
	v := NewValidator(&mockFinder{err: errors.New("connection refused")})

	_, err := v.Validate(context.Background(), "SAVE10", dec("10"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCouponNotFound)
	assert.Contains(t, err.Error(), "lookup coupon")
}

func TestMinimumOrderError_Message(t *testing.T) {
	err := Check(&Coupon{
		MinOrderAmount: dec("500"),
		ExpiryDate:     time.Now().Add(time.Hour),
		IsActive:       true,
	}, dec("200"), time.Now())

	var minErr *MinimumOrderError
	require.ErrorAs(t, err, &minErr)
	assert.True(t, dec("500").Equal(minErr.Minimum))
	assert.Equal(t, "Minimum order amount of 500.00 required", err.Error())
	assert.Equal(t, "minimum_order", Reason(err))
}

func TestReason(t *testing.T) {
	assert.Equal(t, "not_found", Reason(ErrCouponNotFound))
	assert.Equal(t, "inactive", Reason(ErrCouponInactive))
	assert.Equal(t, "expired", Reason(errors.Wrap(ErrCouponExpired, "validate")))
	assert.Equal(t, "usage_limit", Reason(ErrUsageLimitReached))
	assert.Equal(t, "other", Reason(errors.New("boom")))
}
