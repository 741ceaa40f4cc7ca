package app

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/cafe-ordering/internal/domain/coupon"
	"github.com/xenking/cafe-ordering/internal/domain/menu"
	"github.com/xenking/cafe-ordering/internal/domain/order"
	"github.com/xenking/cafe-ordering/internal/storage/cache"
	"github.com/xenking/cafe-ordering/internal/storage/memory"
	"github.com/xenking/cafe-ordering/internal/storage/mongo"
	"github.com/xenking/cafe-ordering/internal/storage/postgres"
)

// Storage bundles the repositories of the selected driver.
type Storage struct {
	Menu    menu.Repository
	Coupons coupon.Repository
	Orders  order.Repository

	// Ping reports whether the backing store is reachable.
	Ping  func(ctx context.Context) error
	Close func()
}

// OpenStorage connects to the configured driver and prepares its schema.
func OpenStorage(ctx context.Context, lg *zap.Logger, cfg StorageConfig) (*Storage, error) {
	switch cfg.Driver {
	case DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "create db pool")
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, errors.Wrap(err, "run migrations")
		}
		lg.Info("Storage ready", zap.String("driver", cfg.Driver))
		return &Storage{
			Menu:    postgres.NewMenuRepository(pool),
			Coupons: postgres.NewCouponRepository(pool),
			Orders:  postgres.NewOrderRepository(pool),
			Ping:    pool.Ping,
			Close:   pool.Close,
		}, nil
	case DriverMongo:
		store, err := mongo.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, errors.Wrap(err, "connect mongo")
		}
		if err := store.Migrate(ctx); err != nil {
			_ = store.Close(context.Background())
			return nil, errors.Wrap(err, "create indexes")
		}
		lg.Info("Storage ready", zap.String("driver", cfg.Driver), zap.String("database", cfg.MongoDatabase))
		return &Storage{
			Menu:    store.Menu(),
			Coupons: store.Coupons(),
			Orders:  store.Orders(),
			Ping:    store.Ping,
			Close: func() {
				if err := store.Close(context.Background()); err != nil {
					lg.Warn("Close mongo", zap.Error(err))
				}
			},
		}, nil
	case DriverMemory:
		lg.Warn("Using in-memory storage, data is lost on restart")
		store := memory.New()
		return &Storage{
			Menu:    store.Menu(),
			Coupons: store.Coupons(),
			Orders:  store.Orders(),
			Ping:    func(context.Context) error { return nil },
			Close:   func() {},
		}, nil
	default:
		return nil, errors.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// NewRedis creates a client from cfg. Addr may be host:port or a redis:// URL.
func NewRedis(cfg RedisConfig) (*redis.Client, error) {
	if strings.HasPrefix(cfg.Addr, "redis://") || strings.HasPrefix(cfg.Addr, "rediss://") {
		opts, err := redis.ParseURL(cfg.Addr)
		if err != nil {
			return nil, errors.Wrap(err, "parse redis url")
		}
		return redis.NewClient(opts), nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}), nil
}

// cachedMenu wraps repo with the Redis menu cache when Redis is configured.
func cachedMenu(lg *zap.Logger, cfg RedisConfig, repo menu.Repository) (menu.Repository, *redis.Client, error) {
	if cfg.Addr == "" {
		return repo, nil, nil
	}
	rdb, err := NewRedis(cfg)
	if err != nil {
		return nil, nil, err
	}
	lg.Info("Menu cache enabled", zap.Duration("ttl", cfg.TTL))
	return cache.NewMenu(repo, rdb, cfg.TTL), rdb, nil
}
