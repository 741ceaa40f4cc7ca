package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (CAFE_ prefix), flags, or YAML config files.
type Config struct {
	Addr      string `default:"0.0.0.0:8080" usage:"API server listen address"`
	Storage   StorageConfig
	Redis     RedisConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Graceful  GracefulConfig
}

// StorageConfig selects and configures the primary store.
type StorageConfig struct {
	Driver        string `default:"postgres" usage:"Storage driver: postgres, mongo or memory"`
	DatabaseURL   string `usage:"PostgreSQL connection URL (CAFE_STORAGE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	MongoURI      string `usage:"MongoDB connection URI (CAFE_STORAGE_MONGO_URI or MONGODB_URI)" flag:"mongo-uri"`
	MongoDatabase string `default:"cafe" usage:"MongoDB database name" flag:"mongo-database"`
}

// RedisConfig enables the menu cache when Addr is set.
type RedisConfig struct {
	Addr     string        `usage:"Redis address host:port; empty disables the menu cache" flag:"redis-addr"`
	Password string        `usage:"Redis password"`
	DB       int           `default:"0" usage:"Redis database number"`
	TTL      time.Duration `default:"5m" usage:"Menu cache TTL"`
}

// AuthConfig configures bearer token verification.
type AuthConfig struct {
	Secret string        `usage:"HMAC secret for JWT signing (CAFE_AUTH_SECRET or JWT_SECRET)" flag:"jwt-secret"`
	Issuer string        `default:"cafe-ordering" usage:"JWT issuer"`
	TTL    time.Duration `default:"24h" usage:"Lifetime of issued tokens"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
	// CouponMax limits coupon validation and application separately to slow
	// down code guessing.
	CouponMax int `default:"20" usage:"Max coupon validate/apply requests per window" flag:"coupon-rate-limit"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "CAFE",
		Files:     []string{"config.yaml", "/etc/cafe/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the selected driver and auth are configured.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverPostgres:
		if c.Storage.DatabaseURL == "" {
			return errors.New("database URL is required: set CAFE_STORAGE_DATABASE_URL or DATABASE_URL")
		}
	case DriverMongo:
		if c.Storage.MongoURI == "" {
			return errors.New("mongo URI is required: set CAFE_STORAGE_MONGO_URI or MONGODB_URI")
		}
	case DriverMemory:
	default:
		return errors.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Auth.Secret == "" {
		return errors.New("auth secret is required: set CAFE_AUTH_SECRET or JWT_SECRET")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's CAFE_-prefixed configuration.
func (c *Config) applyPlatformDefaults(getenv func(string) string) {
	if c.Storage.DatabaseURL == "" {
		c.Storage.DatabaseURL = getenv("DATABASE_URL")
	}
	if c.Storage.MongoURI == "" {
		c.Storage.MongoURI = getenv("MONGODB_URI")
	}
	if c.Auth.Secret == "" {
		c.Auth.Secret = getenv("JWT_SECRET")
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = getenv("REDIS_URL")
	}
	if port := getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
