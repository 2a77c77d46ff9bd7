package config

import (
	"context"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port      string `env:"PORT,       default=8090"`
	Env       string `env:"ENV,        default=development"`
	LogLevel  string `env:"LOG_LEVEL,  default=info"`
	LogPretty bool   `env:"LOG_PRETTY, default=false"`

	API       APIConfig
	Redis     RedisConfig
	Mongo     MongoConfig
	AMQP      AMQPConfig
	Reconcile ReconcileConfig
}

// APIConfig points at the laundry backend.
type APIConfig struct {
	BaseURL string        `env:"API_BASE_URL, required"`
	Timeout time.Duration `env:"API_TIMEOUT,  default=10s"`
}

type RedisConfig struct {
	Addr      string `env:"REDIS_ADDR,       default=localhost:6379"`
	Password  string `env:"REDIS_PASSWORD"`
	DB        int    `env:"REDIS_DB,         default=0"`
	KeyPrefix string `env:"REDIS_KEY_PREFIX, default=opsync:session"`
}

// MongoConfig configures the transition audit trail. An empty URI disables it.
type MongoConfig struct {
	URI      string `env:"MONGO_URI"`
	Database string `env:"MONGO_DB, default=opsync"`
}

// AMQPConfig configures transition publishing. An empty URL disables it.
type AMQPConfig struct {
	URL   string `env:"AMQP_URL"`
	Queue string `env:"AMQP_QUEUE, default=orders.reconciled"`
}

type ReconcileConfig struct {
	MaxFailures int           `env:"RECONCILE_MAX_FAILURES, default=5"`
	BackoffBase time.Duration `env:"RECONCILE_BACKOFF_BASE, default=30s"`
	BackoffMax  time.Duration `env:"RECONCILE_BACKOFF_MAX,  default=10m"`
	// Interval runs a pass on a ticker in addition to change triggers. Zero disables it.
	Interval time.Duration `env:"RECONCILE_INTERVAL, default=0s"`
}

// Load reads a .env file when present, then the environment.
func Load(ctx context.Context) (*Config, error) {
	_ = godotenv.Load()
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: lookuper}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if cfg.Reconcile.MaxFailures < 0 {
		return nil, fmt.Errorf("config: RECONCILE_MAX_FAILURES must not be negative")
	}
	return &cfg, nil
}

// IsProduction reports whether ENV is production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
