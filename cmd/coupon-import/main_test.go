package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pgzip "github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xenking/cafe-ordering/internal/domain/coupon"
)

func writeGz(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := pgzip.NewWriter(f)
	_, err = gz.Write([]byte(strings.Join(lines, "\n") + "\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())
	return path
}

func testScan(minFiles int) scanConfig {
	return scanConfig{MinFiles: minFiles, ExpectedCodes: 1000, FalsePositiveRate: 0.001}
}

func TestFindCodes(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		writeGz(t, dir, "a.gz", "SUMMER10", "onlyina", "shared3", "ab", "WAYTOOLONGFORACODE"),
		writeGz(t, dir, "b.gz", " summer10 ", "SHARED3", "ONLYINB", "shared3"),
		writeGz(t, dir, "c.gz", "SHARED3", "ab"),
	}

	t.Run("two files", func(t *testing.T) {
		codes, err := findCodes(context.Background(), zap.NewNop(), files, testScan(2))
		require.NoError(t, err)
		assert.Equal(t, []string{"SHARED3", "SUMMER10"}, codes)
	})
	t.Run("all files", func(t *testing.T) {
		codes, err := findCodes(context.Background(), zap.NewNop(), files, testScan(3))
		require.NoError(t, err)
		assert.Equal(t, []string{"SHARED3"}, codes)
	})
	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := findCodes(ctx, zap.NewNop(), files, testScan(2))
		require.Error(t, err)
	})
}

func TestScanConfigCheck(t *testing.T) {
	assert.NoError(t, testScan(2).check(3))
	assert.Error(t, testScan(2).check(0))
	assert.Error(t, testScan(4).check(3))
	assert.Error(t, testScan(0).check(3))
	assert.Error(t, scanConfig{MinFiles: 1, ExpectedCodes: 10}.check(1))
}

func TestRuleFlags(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	c, err := ruleFlags{
		name:         "Promo",
		discountType: "percentage",
		value:        "15",
		minOrder:     "20",
		maxDiscount:  "7.50",
		usageLimit:   3,
		validFor:     24 * time.Hour,
	}.coupon(now)
	require.NoError(t, err)
	assert.Equal(t, coupon.DiscountPercentage, c.DiscountType)
	assert.Equal(t, "15", c.DiscountValue.String())
	assert.True(t, c.MaxDiscount.Valid)
	require.NotNil(t, c.UsageLimit)
	assert.Equal(t, 3, *c.UsageLimit)
	assert.Equal(t, now.Add(24*time.Hour), c.ExpiryDate)

	_, err = ruleFlags{name: "Promo", discountType: "bogus", value: "1", minOrder: "0", validFor: time.Hour}.coupon(now)
	require.Error(t, err)

	_, err = ruleFlags{name: "Promo", discountType: "fixed", value: "x", minOrder: "0", validFor: time.Hour}.coupon(now)
	require.Error(t, err)
}

type recordingRepo struct {
	got []coupon.Coupon
}

func (r *recordingRepo) Upsert(_ context.Context, c *coupon.Coupon) error {
	r.got = append(r.got, *c)
	return nil
}

func TestWriteCoupons(t *testing.T) {
	limit := 2
	template := coupon.Coupon{Name: "Promo", DiscountType: coupon.DiscountFixed, UsageLimit: &limit}
	repo := &recordingRepo{}

	require.NoError(t, writeCoupons(context.Background(), zap.NewNop(), repo, template, []string{"AAA", "BBB"}))
	require.Len(t, repo.got, 2)
	assert.Equal(t, "AAA", repo.got[0].Code)
	assert.Equal(t, "BBB", repo.got[1].Code)
	assert.NotEqual(t, repo.got[0].ID, repo.got[1].ID)
	assert.NotSame(t, repo.got[0].UsageLimit, repo.got[1].UsageLimit)
}
