// Command coupon-import loads bulk promo codes from gzip-compressed code
// dumps. A code is imported when it appears in at least --min-files of the
// dumps; every imported code gets the same discount rule.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/cafe-ordering/internal/domain/coupon"
	"github.com/xenking/cafe-ordering/internal/domain/pricing"
	"github.com/xenking/cafe-ordering/internal/storage/postgres"
)

func main() {
	var (
		pattern     string
		databaseURL string
		dryRun      bool
		scan        scanConfig
		rule        ruleFlags
	)

	flag.StringVar(&pattern, "files", "data/*.gz", "glob of gzip-compressed code dumps, one code per line")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.BoolVar(&dryRun, "dry-run", false, "only report matching codes")
	flag.IntVar(&scan.MinFiles, "min-files", 2, "number of files a code must appear in")
	flag.UintVar(&scan.ExpectedCodes, "expected-codes", 120_000_000, "expected number of codes per file, sizes the bloom filters")
	flag.Float64Var(&scan.FalsePositiveRate, "fpr", 0.001, "bloom filter false positive rate")
	flag.StringVar(&rule.name, "name", "Promo code", "coupon display name")
	flag.StringVar(&rule.discountType, "discount-type", "percentage", "percentage or fixed")
	flag.StringVar(&rule.value, "discount-value", "10", "discount value")
	flag.StringVar(&rule.minOrder, "min-order", "0", "minimum order amount")
	flag.StringVar(&rule.maxDiscount, "max-discount", "", "cap for percentage discounts; empty means no cap")
	flag.IntVar(&rule.usageLimit, "usage-limit", 0, "redemptions per code; 0 means unlimited")
	flag.DurationVar(&rule.validFor, "valid-for", 30*24*time.Hour, "time until the imported codes expire")
	flag.Parse()

	lg, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" && !dryRun {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, pattern, databaseURL, dryRun, scan, rule); err != nil {
		lg.Fatal("Coupon import failed", zap.Error(err))
	}
	lg.Info("Coupon import completed")
}

func run(ctx context.Context, lg *zap.Logger, pattern, databaseURL string, dryRun bool, scan scanConfig, rule ruleFlags) error {
	files, err := filepath.Glob(pattern)
	if err != nil {
		return errors.Wrap(err, "match files")
	}
	sort.Strings(files)
	if err := scan.check(len(files)); err != nil {
		return err
	}

	template, err := rule.coupon(time.Now().UTC())
	if err != nil {
		return errors.Wrap(err, "coupon rule")
	}

	codes, err := findCodes(ctx, lg, files, scan)
	if err != nil {
		return err
	}
	lg.Info("Matching codes found", zap.Int("count", len(codes)), zap.Int("files", len(files)))
	if dryRun || len(codes) == 0 {
		return nil
	}

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}
	return writeCoupons(ctx, lg, postgres.NewCouponRepository(pool), template, codes)
}

type ruleFlags struct {
	name         string
	discountType string
	value        string
	minOrder     string
	maxDiscount  string
	usageLimit   int
	validFor     time.Duration
}

// coupon builds the rule shared by every imported code. Code and ID are
// filled per code.
func (f ruleFlags) coupon(now time.Time) (coupon.Coupon, error) {
	c := coupon.Coupon{
		Name:         f.name,
		DiscountType: pricing.DiscountType(f.discountType),
		ExpiryDate:   now.Add(f.validFor),
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	var err error
	if c.DiscountValue, err = decimal.NewFromString(f.value); err != nil {
		return c, errors.Wrap(err, "discount value")
	}
	if c.MinOrderAmount, err = decimal.NewFromString(f.minOrder); err != nil {
		return c, errors.Wrap(err, "min order")
	}
	if f.maxDiscount != "" {
		d, err := decimal.NewFromString(f.maxDiscount)
		if err != nil {
			return c, errors.Wrap(err, "max discount")
		}
		c.MaxDiscount = decimal.NewNullDecimal(d)
	}
	if f.usageLimit > 0 {
		limit := f.usageLimit
		c.UsageLimit = &limit
	}

	// Validate with a placeholder code; real codes are checked by length while scanning.
	probe := c
	probe.Code = "PROBE"
	if err := probe.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

type upserter interface {
	Upsert(ctx context.Context, c *coupon.Coupon) error
}

// writeCoupons upserts one coupon per code. Existing codes keep their id and
// usage count.
func writeCoupons(ctx context.Context, lg *zap.Logger, repo upserter, template coupon.Coupon, codes []string) error {
	lg.Info("Writing coupons", zap.Int("count", len(codes)))

	for i, code := range codes {
		c := template
		c.ID = uuid.New().String()
		c.Code = code
		if template.UsageLimit != nil {
			limit := *template.UsageLimit
			c.UsageLimit = &limit
		}
		if err := repo.Upsert(ctx, &c); err != nil {
			return errors.Wrapf(err, "upsert coupon %s", code)
		}

		if (i+1)%100 == 0 || i+1 == len(codes) {
			lg.Info("Write progress", zap.Int("written", i+1), zap.Int("total", len(codes)))
		}
	}
	return nil
}
