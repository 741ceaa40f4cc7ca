package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xenking/cafe-ordering/db"
	"github.com/xenking/cafe-ordering/internal/domain/coupon"
	"github.com/xenking/cafe-ordering/internal/domain/menu"
)

type recordingSeeder struct {
	items   []menu.Item
	coupons []coupon.Coupon
}

func (s *recordingSeeder) UpsertItem(_ context.Context, it *menu.Item) error {
	s.items = append(s.items, *it)
	return nil
}

func (s *recordingSeeder) UpsertCoupon(_ context.Context, c *coupon.Coupon) error {
	s.coupons = append(s.coupons, *c)
	return nil
}

func TestSeedMenu(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("embedded", func(t *testing.T) {
		var s recordingSeeder
		require.NoError(t, seedMenu(context.Background(), zap.NewNop(), &s, db.Menu, now))
		require.NotEmpty(t, s.items)
		for _, it := range s.items {
			assert.NotEmpty(t, it.ID)
			assert.True(t, it.Cost.IsPositive(), it.Name)
			assert.Equal(t, now, it.CreatedAt)
		}
	})

	t.Run("generates missing id", func(t *testing.T) {
		var s recordingSeeder
		data := []byte(`[{"name":"Tiramisu","category":"dess","cost":"6.505"}]`)
		require.NoError(t, seedMenu(context.Background(), zap.NewNop(), &s, data, now))
		require.Len(t, s.items, 1)
		assert.NotEmpty(t, s.items[0].ID)
		assert.Equal(t, "6.51", s.items[0].Cost.StringFixed(2))
	})

	t.Run("invalid item", func(t *testing.T) {
		var s recordingSeeder
		data := []byte(`[{"name":"Soup","category":"soups","cost":"3"}]`)
		err := seedMenu(context.Background(), zap.NewNop(), &s, data, now)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `item "Soup"`)
		assert.Empty(t, s.items)
	})

	t.Run("bad json", func(t *testing.T) {
		var s recordingSeeder
		require.Error(t, seedMenu(context.Background(), zap.NewNop(), &s, []byte(`{`), now))
	})
}

func TestSeedCoupons(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	var s recordingSeeder
	require.NoError(t, seedCoupons(context.Background(), zap.NewNop(), &s, now))
	require.Len(t, s.coupons, 2)

	codes := make(map[string]coupon.Coupon)
	for _, c := range s.coupons {
		assert.NotEmpty(t, c.ID)
		assert.True(t, c.IsActive)
		assert.True(t, c.ExpiryDate.After(now))
		codes[c.Code] = c
	}
	require.Contains(t, codes, "WELCOME10")
	require.Contains(t, codes, "FLAT5")
	assert.Equal(t, coupon.DiscountPercentage, codes["WELCOME10"].DiscountType)
	require.NotNil(t, codes["FLAT5"].UsageLimit)
	assert.Equal(t, 100, *codes["FLAT5"].UsageLimit)
}

func TestRun_UnknownDriver(t *testing.T) {
	err := run(context.Background(), zap.NewNop(), "sqlite", "", "", "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown driver "sqlite"`)
}
