package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/kursadbilgin/campaign-dispatch/internal/campaign"
	"github.com/kursadbilgin/campaign-dispatch/internal/config"
	"github.com/kursadbilgin/campaign-dispatch/internal/dispatch"
	"github.com/kursadbilgin/campaign-dispatch/internal/engine"
	"github.com/kursadbilgin/campaign-dispatch/internal/handler"
	"github.com/kursadbilgin/campaign-dispatch/internal/infra/postgresql"
	"github.com/kursadbilgin/campaign-dispatch/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/campaign-dispatch/internal/infra/redis"
	"github.com/kursadbilgin/campaign-dispatch/internal/observability"
	"github.com/kursadbilgin/campaign-dispatch/internal/provider"
	"github.com/kursadbilgin/campaign-dispatch/internal/queue"
	"github.com/kursadbilgin/campaign-dispatch/internal/report"
	"github.com/kursadbilgin/campaign-dispatch/internal/repository"
	"github.com/kursadbilgin/campaign-dispatch/internal/transport"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout = 10 * time.Second
	flushTimeout    = 2 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config: ", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel, "campaign-engine")
	if err != nil {
		log.Fatal("failed to initialize logger: ", err)
	}
	defer logger.Sync() //nolint:errcheck

	reporter, err := observability.NewReporter(cfg.SentryDSN, cfg.SentryEnvironment)
	if err != nil {
		logger.Fatal("sentry initialization failed", zap.Error(err))
	}
	defer reporter.Flush(flushTimeout)

	metrics := observability.NewMetrics()

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

	rabbit, err := queue.NewRabbitMQ(cfg.RabbitMQURL, queue.Topology{
		Exchange: cfg.EventExchange,
		Queue:    cfg.EventQueue,
	})
	if err != nil {
		logger.Fatal("rabbitmq initialization failed", zap.Error(err))
	}

	campaigns := repository.NewGormCampaignRepo(db)
	logs := repository.NewGormDeliveryLogRepo(db)
	ledger := repository.NewGormLedgerRepo(db, cfg.DefaultTenantSchema)

	limiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.RateLimitPerSec)
	if err != nil {
		logger.Fatal("rate limiter initialization failed", zap.Error(err))
	}
	guard, err := infraredis.NewSweepGuard(rdb, cfg.SweepClaimTTL())
	if err != nil {
		logger.Fatal("sweep guard initialization failed", zap.Error(err))
	}

	pool := dispatch.NewPool(logs, provider.NewWebhookProvider(cfg.DeliveryTimeout()), dispatch.Options{
		Workers:           cfg.WorkerConcurrency,
		QueueSize:         cfg.DispatchQueueSize,
		DefaultMaxRetries: cfg.DispatchMaxRetries,
		DefaultRetryDelay: cfg.RetryDelay(),
	}, logger)
	pool.SetMetrics(metrics)
	pool.SetReporter(reporter)
	pool.SetRateLimiter(limiter)

	eng := engine.New(
		campaign.NewMatcher(campaigns, logger),
		report.NewResolver(ledger, logger),
		pool,
		ledger,
		engine.Options{SweepBatchSize: cfg.SweepBatchSize},
		logger,
	)
	eng.SetMetrics(metrics)
	eng.SetReporter(reporter)
	eng.SetSweepGuard(guard)

	consumer := queue.NewEventConsumer(rabbit, cfg.EventQueue, cfg.EventPrefetch, logger)
	defer consumer.Close() //nolint:errcheck
	if err := eng.Register(consumer); err != nil {
		logger.Fatal("event subscription failed", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          transport.ErrorHandler(logger),
	})
	app.Use(requestid.New())
	app.Use(metrics.HTTPMiddleware())
	handler.RegisterHealthRoutes(app,
		handler.PostgresCheck(sqlDB),
		handler.RedisCheck(rdb),
		handler.ReadinessCheck{Name: "rabbitmq", Ping: rabbit.Ping},
	)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	if err := handler.RegisterDeliveryLogRoutes(app, logs); err != nil {
		logger.Fatal("route registration failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, groupCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return pool.Start(groupCtx)
	})
	g.Go(func() error {
		return consumer.Run(groupCtx)
	})
	g.Go(func() error {
		addr := fmt.Sprintf(":%d", cfg.APIPort)
		if err := app.Listen(addr); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-groupCtx.Done()
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	logger.Info("campaign-dispatch engine started",
		zap.Int("port", cfg.APIPort),
		zap.Int("workers", cfg.WorkerConcurrency),
		zap.String("eventQueue", cfg.EventQueue),
	)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("campaign-dispatch engine stopped with error", zap.Error(err))
		return
	}
	logger.Info("campaign-dispatch engine stopped")
}
