package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const (
	StoreDriverPocketBase = "pocketbase"
	StoreDriverMongo      = "mongo"

	CacheDriverMemory = "memory"
	CacheDriverRedis  = "redis"
)

type Config struct {
	// Server configuration
	Environment string `env:"ENVIRONMENT" envDefault:"development"`

	// Admin access
	AdminSecretKey  string `env:"ADMIN_SECRET_KEY"`
	AdminSecretHash string `env:"ADMIN_SECRET_HASH"`

	// Storage configuration
	StoreDriver   string `env:"STORE_DRIVER" envDefault:"pocketbase"`
	MongoURI      string `env:"MONGODB_URI" envDefault:"mongodb://localhost:27017/rifa"`
	MongoDatabase string `env:"MONGODB_DATABASE" envDefault:"rifa"`
	UploadDir     string `env:"UPLOAD_DIR" envDefault:"uploads"`

	// Redis configuration, empty disables redis backed features
	RedisURL string `env:"REDIS_URL"`

	// Cache configuration
	CacheDriver string        `env:"CACHE_DRIVER" envDefault:"memory"`
	CacheTTL    time.Duration `env:"CACHE_TTL" envDefault:"5s"`

	// PubNub configuration
	PubNubPublishKey   string `env:"PUBNUB_PUBLISH_KEY"`
	PubNubSubscribeKey string `env:"PUBNUB_SUBSCRIBE_KEY"`
	PubNubSecretKey    string `env:"PUBNUB_SECRET_KEY"`
	PubNubUserID       string `env:"PUBNUB_USER_ID" envDefault:"rifa-server"`
	PubNubChannel      string `env:"PUBNUB_CHANNEL" envDefault:"rifa-boletas"`

	// Reservation configuration
	ReservationTTL   time.Duration   `env:"RESERVATION_TTL" envDefault:"24h"`
	ExpirySweepCron  string          `env:"EXPIRY_SWEEP_CRON" envDefault:"* * * * *"`
	MaxProofSize     int64           `env:"MAX_PROOF_SIZE" envDefault:"5242880"`
	TicketPrice      decimal.Decimal `env:"TICKET_PRICE" envDefault:"20000"`
	ReserveRateLimit int             `env:"RESERVE_RATE_LIMIT" envDefault:"10"`

	// Monitoring
	EnableMetrics bool `env:"ENABLE_METRICS" envDefault:"true"`
}

// LoadConfig reads an optional .env file and parses the environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	return Parse()
}

// Parse builds a Config from the current environment only.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.AdminSecretKey == "" && c.AdminSecretHash == "" {
		return errors.New("config: ADMIN_SECRET_KEY or ADMIN_SECRET_HASH is required")
	}

	switch c.StoreDriver {
	case StoreDriverPocketBase, StoreDriverMongo:
	default:
		return fmt.Errorf("config: unknown STORE_DRIVER %q", c.StoreDriver)
	}

	switch c.CacheDriver {
	case CacheDriverMemory:
	case CacheDriverRedis:
		if c.RedisURL == "" {
			return errors.New("config: CACHE_DRIVER=redis requires REDIS_URL")
		}
	default:
		return fmt.Errorf("config: unknown CACHE_DRIVER %q", c.CacheDriver)
	}

	if c.ReservationTTL <= 0 {
		return errors.New("config: RESERVATION_TTL must be positive")
	}
	if c.MaxProofSize <= 0 {
		return errors.New("config: MAX_PROOF_SIZE must be positive")
	}

	return nil
}

func (c *Config) PubNubEnabled() bool {
	return c.PubNubPublishKey != "" && c.PubNubSubscribeKey != ""
}
