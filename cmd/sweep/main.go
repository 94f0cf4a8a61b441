package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kursadbilgin/campaign-dispatch/internal/campaign"
	"github.com/kursadbilgin/campaign-dispatch/internal/config"
	"github.com/kursadbilgin/campaign-dispatch/internal/dispatch"
	"github.com/kursadbilgin/campaign-dispatch/internal/domain"
	"github.com/kursadbilgin/campaign-dispatch/internal/engine"
	"github.com/kursadbilgin/campaign-dispatch/internal/infra/postgresql"
	"github.com/kursadbilgin/campaign-dispatch/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/campaign-dispatch/internal/infra/redis"
	"github.com/kursadbilgin/campaign-dispatch/internal/observability"
	"github.com/kursadbilgin/campaign-dispatch/internal/provider"
	"github.com/kursadbilgin/campaign-dispatch/internal/report"
	"github.com/kursadbilgin/campaign-dispatch/internal/repository"
	"go.uber.org/zap"
)

const (
	drainTimeout = 30 * time.Minute
	flushTimeout = 2 * time.Second
)

// sweep runs the calendar campaigns for one day and exits once every
// dispatch it started reached a terminal status.
func main() {
	day := flag.String("date", "", "sweep date as YYYY-MM-DD (default: today, UTC)")
	tenantID := flag.String("tenant", "", "tenant id (default: DEFAULT_TENANT)")
	schema := flag.String("schema", "", "tenant ledger schema (default: DEFAULT_TENANT_SCHEMA)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config: ", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel, "campaign-sweep")
	if err != nil {
		log.Fatal("failed to initialize logger: ", err)
	}
	defer logger.Sync() //nolint:errcheck

	today := time.Now().UTC()
	if *day != "" {
		today, err = time.Parse(time.DateOnly, *day)
		if err != nil {
			logger.Fatal("invalid -date", zap.String("date", *day), zap.Error(err))
		}
	}

	tenant := cfg.Tenant()
	if *tenantID != "" {
		tenant = domain.Tenant{ID: *tenantID, Schema: *schema}
	} else if *schema != "" {
		tenant.Schema = *schema
	}

	reporter, err := observability.NewReporter(cfg.SentryDSN, cfg.SentryEnvironment)
	if err != nil {
		logger.Fatal("sentry initialization failed", zap.Error(err))
	}
	defer reporter.Flush(flushTimeout)

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}
	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(context.Background(), cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	limiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.RateLimitPerSec)
	if err != nil {
		logger.Fatal("rate limiter initialization failed", zap.Error(err))
	}
	guard, err := infraredis.NewSweepGuard(rdb, cfg.SweepClaimTTL())
	if err != nil {
		logger.Fatal("sweep guard initialization failed", zap.Error(err))
	}

	logs := repository.NewGormDeliveryLogRepo(db)
	ledger := repository.NewGormLedgerRepo(db, cfg.DefaultTenantSchema)

	pool := dispatch.NewPool(logs, provider.NewWebhookProvider(cfg.DeliveryTimeout()), dispatch.Options{
		Workers:           cfg.WorkerConcurrency,
		QueueSize:         cfg.DispatchQueueSize,
		DefaultMaxRetries: cfg.DispatchMaxRetries,
		DefaultRetryDelay: cfg.RetryDelay(),
	}, logger)
	pool.SetReporter(reporter)
	pool.SetRateLimiter(limiter)

	eng := engine.New(
		campaign.NewMatcher(repository.NewGormCampaignRepo(db), logger),
		report.NewResolver(ledger, logger),
		pool,
		ledger,
		engine.Options{SweepBatchSize: cfg.SweepBatchSize},
		logger,
	)
	eng.SetReporter(reporter)
	eng.SetSweepGuard(guard)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	poolCtx, stopPool := context.WithCancel(ctx)
	poolDone := make(chan error, 1)
	go func() {
		poolDone <- pool.Start(poolCtx)
	}()

	result, err := eng.RunDailySweep(ctx, tenant, today)
	if err != nil {
		logger.Error("calendar sweep failed", zap.Error(err))
	}

	drainCtx, cancelDrain := context.WithTimeout(ctx, drainTimeout)
	if err := pool.Drain(drainCtx); err != nil {
		logger.Warn("dispatch pool did not drain, canceling remaining deliveries", zap.Error(err))
	}
	cancelDrain()
	stopPool()
	<-poolDone

	logger.Info("calendar sweep completed",
		zap.String("tenantId", tenant.ID),
		zap.String("date", today.Format(time.DateOnly)),
		zap.Int("evaluated", result.Evaluated),
		zap.Int("dispatched", result.Dispatched),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped),
	)
}
