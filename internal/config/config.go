package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/kursadbilgin/campaign-dispatch/internal/domain"
)

type Config struct {
	DatabaseDSN               string `env:"DATABASE_DSN,required=true"`
	RabbitMQURL               string `env:"RABBITMQ_URL,required=true"`
	RedisURL                  string `env:"REDIS_URL,required=true"`
	APIPort                   int    `env:"API_PORT,default=8080"`
	LogLevel                  string `env:"LOG_LEVEL,default=info"`
	WorkerConcurrency         int    `env:"WORKER_CONCURRENCY,default=16"`
	DispatchQueueSize         int    `env:"DISPATCH_QUEUE_SIZE,default=1024"`
	DispatchMaxRetries        int    `env:"DISPATCH_MAX_RETRIES,default=3"`
	DispatchRetryDelaySeconds int    `env:"DISPATCH_RETRY_DELAY_SECONDS,default=30"`
	DeliveryTimeoutSeconds    int    `env:"DELIVERY_TIMEOUT_SECONDS,default=10"`
	RateLimitPerSec           int    `env:"RATE_LIMIT_PER_SEC,default=100"`
	DefaultTenant             string `env:"DEFAULT_TENANT,default=default"`
	DefaultTenantSchema       string `env:"DEFAULT_TENANT_SCHEMA,default=public"`
	EventExchange             string `env:"EVENT_EXCHANGE,default=ledger.events"`
	EventQueue                string `env:"EVENT_QUEUE,default=campaign-dispatch.events"`
	EventPrefetch             int    `env:"EVENT_PREFETCH,default=32"`
	SweepBatchSize            int    `env:"SWEEP_BATCH_SIZE,default=500"`
	SweepClaimTTLHours        int    `env:"SWEEP_CLAIM_TTL_HOURS,default=48"`
	SentryDSN                 string `env:"SENTRY_DSN"`
	SentryEnvironment         string `env:"SENTRY_ENVIRONMENT,default=production"`
}

// Load reads configuration from the environment after merging the given
// dotenv files (".env" when none are given). Missing files are ignored and
// variables already set in the environment win.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", file, err)
		}
	}

	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.WorkerConcurrency < 1 {
		return fmt.Errorf("%w: WORKER_CONCURRENCY must be positive", domain.ErrValidation)
	}
	if c.DispatchQueueSize < 1 {
		return fmt.Errorf("%w: DISPATCH_QUEUE_SIZE must be positive", domain.ErrValidation)
	}
	if c.DispatchMaxRetries < 0 {
		return fmt.Errorf("%w: DISPATCH_MAX_RETRIES must not be negative", domain.ErrValidation)
	}
	if c.DispatchRetryDelaySeconds < 0 {
		return fmt.Errorf("%w: DISPATCH_RETRY_DELAY_SECONDS must not be negative", domain.ErrValidation)
	}
	if c.SweepBatchSize < 1 {
		return fmt.Errorf("%w: SWEEP_BATCH_SIZE must be positive", domain.ErrValidation)
	}
	return nil
}

func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.DispatchRetryDelaySeconds) * time.Second
}

func (c *Config) DeliveryTimeout() time.Duration {
	return time.Duration(c.DeliveryTimeoutSeconds) * time.Second
}

func (c *Config) SweepClaimTTL() time.Duration {
	return time.Duration(c.SweepClaimTTLHours) * time.Hour
}

// Tenant returns the tenant the process serves when an event names none.
func (c *Config) Tenant() domain.Tenant {
	return domain.Tenant{ID: c.DefaultTenant, Schema: c.DefaultTenantSchema}
}
