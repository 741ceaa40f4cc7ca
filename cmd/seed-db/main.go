package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/cafe-ordering/db"
	"github.com/xenking/cafe-ordering/internal/domain/coupon"
	"github.com/xenking/cafe-ordering/internal/domain/menu"
	"github.com/xenking/cafe-ordering/internal/storage/mongo"
	"github.com/xenking/cafe-ordering/internal/storage/postgres"
)

type menuItemJSON struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	Cost        decimal.Decimal `json:"cost"`
	Description string          `json:"description"`
	Image       string          `json:"image"`
}

// seeder writes seed data to the selected store.
type seeder interface {
	UpsertItem(ctx context.Context, it *menu.Item) error
	UpsertCoupon(ctx context.Context, c *coupon.Coupon) error
}

type repos struct {
	menu interface {
		Upsert(ctx context.Context, it *menu.Item) error
	}
	coupons interface {
		Upsert(ctx context.Context, c *coupon.Coupon) error
	}
}

func (r repos) UpsertItem(ctx context.Context, it *menu.Item) error   { return r.menu.Upsert(ctx, it) }
func (r repos) UpsertCoupon(ctx context.Context, c *coupon.Coupon) error { return r.coupons.Upsert(ctx, c) }

func main() {
	var (
		driver        string
		databaseURL   string
		mongoURI      string
		mongoDatabase string
		menuFile      string
	)

	flag.StringVar(&driver, "driver", "postgres", "storage driver: postgres or mongo")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&mongoURI, "mongo-uri", "", "MongoDB connection URI (or MONGODB_URI env)")
	flag.StringVar(&mongoDatabase, "mongo-database", "cafe", "MongoDB database name")
	flag.StringVar(&menuFile, "menu-file", "", "path to menu JSON file; the embedded menu is used when empty")
	flag.Parse()

	lg, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if mongoURI == "" {
		mongoURI = os.Getenv("MONGODB_URI")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, driver, databaseURL, mongoURI, mongoDatabase, menuFile); err != nil {
		lg.Fatal("Seed failed", zap.Error(err))
	}
	lg.Info("Seed completed")
}

func run(ctx context.Context, lg *zap.Logger, driver, databaseURL, mongoURI, mongoDatabase, menuFile string) error {
	var s seeder
	switch driver {
	case "postgres":
		if databaseURL == "" {
			return errors.New("database URL is required: set --database-url or DATABASE_URL")
		}
		lg.Info("Connecting to postgres")
		pool, err := postgres.NewPool(ctx, databaseURL)
		if err != nil {
			return errors.Wrap(err, "connect to database")
		}
		defer pool.Close()

		lg.Info("Running migrations")
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			return errors.Wrap(err, "run migrations")
		}
		s = repos{menu: postgres.NewMenuRepository(pool), coupons: postgres.NewCouponRepository(pool)}
	case "mongo":
		if mongoURI == "" {
			return errors.New("mongo URI is required: set --mongo-uri or MONGODB_URI")
		}
		lg.Info("Connecting to mongo", zap.String("database", mongoDatabase))
		store, err := mongo.Connect(ctx, mongoURI, mongoDatabase)
		if err != nil {
			return errors.Wrap(err, "connect to mongo")
		}
		defer func() { _ = store.Close(context.Background()) }()

		if err := store.Migrate(ctx); err != nil {
			return errors.Wrap(err, "create indexes")
		}
		s = repos{menu: store.Menu(), coupons: store.Coupons()}
	default:
		return errors.Errorf("unknown driver %q", driver)
	}

	data := db.Menu
	if menuFile != "" {
		lg.Info("Reading menu file", zap.String("path", menuFile))
		b, err := os.ReadFile(menuFile)
		if err != nil {
			return errors.Wrap(err, "read menu file")
		}
		data = b
	}

	now := time.Now().UTC()
	if err := seedMenu(ctx, lg, s, data, now); err != nil {
		return errors.Wrap(err, "seed menu")
	}
	if err := seedCoupons(ctx, lg, s, now); err != nil {
		return errors.Wrap(err, "seed coupons")
	}
	return nil
}

func seedMenu(ctx context.Context, lg *zap.Logger, s seeder, data []byte, now time.Time) error {
	var items []menuItemJSON
	if err := json.Unmarshal(data, &items); err != nil {
		return errors.Wrap(err, "parse menu JSON")
	}

	lg.Info("Upserting menu items", zap.Int("count", len(items)))
	for _, raw := range items {
		it := menu.Item{
			ID:          raw.ID,
			Name:        raw.Name,
			Category:    menu.Category(raw.Category),
			Cost:        raw.Cost.Round(2),
			Description: raw.Description,
			Image:       raw.Image,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if it.ID == "" {
			it.ID = uuid.New().String()
		}
		if err := it.Validate(); err != nil {
			return errors.Wrapf(err, "item %q", raw.Name)
		}
		if err := s.UpsertItem(ctx, &it); err != nil {
			return errors.Wrapf(err, "upsert item %s", it.ID)
		}
		lg.Debug("Upserted menu item", zap.String("id", it.ID), zap.String("name", it.Name))
	}
	return nil
}

func seedCoupons(ctx context.Context, lg *zap.Logger, s seeder, now time.Time) error {
	limit := 100
	coupons := []coupon.Coupon{
		{
			Code:          "WELCOME10",
			Name:          "Welcome: 10% off, up to 5.00",
			DiscountType:  coupon.DiscountPercentage,
			DiscountValue: decimal.NewFromInt(10),
			MaxDiscount:   decimal.NewNullDecimal(decimal.NewFromInt(5)),
			ExpiryDate:    now.AddDate(1, 0, 0),
			IsActive:      true,
		},
		{
			Code:           "FLAT5",
			Name:           "5.00 off orders of 25.00 or more",
			DiscountType:   coupon.DiscountFixed,
			DiscountValue:  decimal.NewFromInt(5),
			MinOrderAmount: decimal.NewFromInt(25),
			UsageLimit:     &limit,
			ExpiryDate:     now.AddDate(0, 6, 0),
			IsActive:       true,
		},
	}

	for i := range coupons {
		c := &coupons[i]
		c.ID = uuid.New().String()
		c.CreatedAt = now
		c.UpdatedAt = now
		if err := c.Validate(); err != nil {
			return errors.Wrapf(err, "coupon %s", c.Code)
		}
		if err := s.UpsertCoupon(ctx, c); err != nil {
			return errors.Wrapf(err, "upsert coupon %s", c.Code)
		}
		lg.Info("Upserted coupon", zap.String("code", c.Code), zap.Int("used_count", c.UsedCount))
	}
	return nil
}
