package main

import (
	"context"
	"flag"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/campaign-dispatch/internal/config"
	"github.com/kursadbilgin/campaign-dispatch/internal/domain"
	"github.com/kursadbilgin/campaign-dispatch/internal/observability"
	"github.com/kursadbilgin/campaign-dispatch/internal/queue"
	"go.uber.org/zap"
)

const publishTimeout = 10 * time.Second

// emit publishes a single ledger event, for wiring checks against a running
// engine.
func main() {
	kind := flag.String("kind", "", "event kind, e.g. LOAN_APPROVED")
	entityID := flag.Int64("entity-id", 0, "id of the loan, transaction, or savings account")
	productKind := flag.String("product-kind", "", "LOAN or SAVINGS")
	productID := flag.Int64("product-id", 0, "product id of the entity")
	tenantID := flag.String("tenant", "", "tenant id (default: DEFAULT_TENANT)")
	schema := flag.String("schema", "", "tenant ledger schema (default: DEFAULT_TENANT_SCHEMA)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config: ", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel, "campaign-emit")
	if err != nil {
		log.Fatal("failed to initialize logger: ", err)
	}
	defer logger.Sync() //nolint:errcheck

	eventKind, err := domain.ParseEventKind(*kind)
	if err != nil {
		logger.Fatal("invalid -kind", zap.Error(err))
	}

	tenant := cfg.Tenant()
	if *tenantID != "" {
		tenant = domain.Tenant{ID: *tenantID, Schema: *schema}
	} else if *schema != "" {
		tenant.Schema = *schema
	}

	event := domain.Event{
		Kind:          eventKind,
		Tenant:        tenant,
		Entity:        domain.EntityRef{Kind: eventKind.Trigger().EntityKind(), ID: *entityID},
		CorrelationID: uuid.NewString(),
		OccurredAt:    time.Now().UTC(),
	}
	if *productKind != "" {
		event.Entity.Product = &domain.ProductRef{Kind: domain.ProductKind(strings.ToUpper(*productKind)), ID: *productID}
	}

	rabbit, err := queue.NewRabbitMQ(cfg.RabbitMQURL, queue.Topology{
		Exchange: cfg.EventExchange,
		Queue:    cfg.EventQueue,
	})
	if err != nil {
		logger.Fatal("rabbitmq initialization failed", zap.Error(err))
	}
	publisher := queue.NewEventPublisher(rabbit)
	defer publisher.Close() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := publisher.Publish(ctx, event); err != nil {
		logger.Fatal("publish failed", zap.Error(err))
	}

	logger.Info("event published",
		zap.String("kind", event.Kind.String()),
		zap.String("entity", event.Entity.String()),
		zap.String("tenantId", tenant.ID),
		zap.String("correlationId", event.CorrelationID),
	)
}
