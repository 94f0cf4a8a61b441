package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kursadbilgin/campaign-dispatch/internal/dispatch"
	"github.com/kursadbilgin/campaign-dispatch/internal/domain"
	"github.com/kursadbilgin/campaign-dispatch/internal/events"
	"github.com/kursadbilgin/campaign-dispatch/internal/observability"
	"github.com/kursadbilgin/campaign-dispatch/internal/render"
	"go.uber.org/zap"
)

const defaultSweepBatchSize = 500

type CampaignMatcher interface {
	Match(ctx context.Context, tenantID string, trigger domain.TriggerName, product *domain.ProductRef) ([]domain.Campaign, error)
	MatchBirthday(ctx context.Context, tenantID string) ([]domain.Campaign, error)
	MatchFixedDate(ctx context.Context, tenantID string, today time.Time) ([]domain.Campaign, error)
}

type ReportResolver interface {
	Resolve(ctx context.Context, tenant domain.Tenant, campaign domain.Campaign, entity domain.EntityRef) (domain.ReportRecord, error)
}

// Dispatcher hands rendered tasks to the delivery pool. Dispatch never
// blocks; Submit waits for queue capacity.
type Dispatcher interface {
	Dispatch(task dispatch.Task) error
	Submit(ctx context.Context, task dispatch.Task) error
}

// ClientSource pages through a tenant's active clients by ascending id.
type ClientSource interface {
	ListActiveClients(ctx context.Context, tenant domain.Tenant, afterID int64, limit int) ([]domain.Client, error)
}

// SweepGuard claims a (campaign, client) pair for a given day so a repeated
// sweep does not dispatch it twice.
type SweepGuard interface {
	Claim(ctx context.Context, tenantID string, day time.Time, campaignID int64, clientID int64) (bool, error)
	Release(ctx context.Context, tenantID string, day time.Time, campaignID int64, clientID int64) error
}

type Options struct {
	SweepBatchSize int
}

// Engine turns ledger events and calendar dates into campaign dispatches.
type Engine struct {
	matcher    CampaignMatcher
	resolver   ReportResolver
	dispatcher Dispatcher
	clients    ClientSource
	guard      SweepGuard
	logger     *zap.Logger
	metrics    *observability.Metrics
	reporter   *observability.Reporter
	batchSize  int
}

func New(
	matcher CampaignMatcher,
	resolver ReportResolver,
	dispatcher Dispatcher,
	clients ClientSource,
	opts Options,
	logger *zap.Logger,
) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.SweepBatchSize < 1 {
		opts.SweepBatchSize = defaultSweepBatchSize
	}

	return &Engine{
		matcher:    matcher,
		resolver:   resolver,
		dispatcher: dispatcher,
		clients:    clients,
		logger:     logger,
		batchSize:  opts.SweepBatchSize,
	}
}

func (e *Engine) SetMetrics(metrics *observability.Metrics) {
	if e == nil {
		return
	}
	e.metrics = metrics
}

func (e *Engine) SetReporter(reporter *observability.Reporter) {
	if e == nil {
		return
	}
	e.reporter = reporter
}

func (e *Engine) SetSweepGuard(guard SweepGuard) {
	if e == nil {
		return
	}
	e.guard = guard
}

// Register subscribes the engine to every ledger event kind.
func (e *Engine) Register(bus events.Bus) error {
	for _, kind := range domain.EventKinds() {
		if err := bus.Subscribe(kind, e.HandleEvent); err != nil {
			return fmt.Errorf("subscribe %s: %w", kind, err)
		}
	}
	return nil
}

// HandleEvent dispatches every campaign matching the event. Failures are
// logged and reported per campaign and never returned, so the business
// operation that raised the event is unaffected.
func (e *Engine) HandleEvent(ctx context.Context, event domain.Event) error {
	e.metrics.IncEventReceived(event.Kind.String())

	if event.CorrelationID != "" {
		ctx = observability.WithCorrelationID(ctx, event.CorrelationID)
	}
	ctx = domain.WithTenant(ctx, event.Tenant)
	logger := observability.WithContextLogger(e.logger, ctx).With(
		zap.String("event", event.Kind.String()),
		zap.String("entity", event.Entity.String()),
	)

	if err := event.Validate(); err != nil {
		logger.Warn("ignoring invalid event", zap.Error(err))
		return nil
	}

	trigger := event.Kind.Trigger()
	if want := trigger.EntityKind(); event.Entity.Kind != want {
		logger.Warn("ignoring event with mismatched entity kind",
			zap.String("trigger", trigger.String()),
			zap.String("wantEntityKind", want.String()),
		)
		return nil
	}

	campaigns, err := e.matcher.Match(ctx, event.Tenant.ID, trigger, event.Entity.Product)
	if err != nil {
		logger.Error("failed to match campaigns", zap.Error(err))
		e.reporter.Capture(ctx, err, map[string]string{"trigger": trigger.String()})
		return nil
	}
	if len(campaigns) == 0 {
		logger.Debug("no campaign matched event")
		return nil
	}

	for i := range campaigns {
		if err := e.dispatchOne(ctx, event.Tenant, campaigns[i], event.Entity, event.CorrelationID, e.dispatcher.Dispatch); err != nil {
			logger.Error("campaign dispatch failed",
				zap.Int64("campaignId", campaigns[i].ID),
				zap.Error(err),
			)
		}
	}

	return nil
}

// dispatchOne resolves, renders and passes one campaign payload to handOff.
// Failures are counted and reported before being returned.
func (e *Engine) dispatchOne(
	ctx context.Context,
	tenant domain.Tenant,
	campaign domain.Campaign,
	entity domain.EntityRef,
	correlationID string,
	handOff func(dispatch.Task) error,
) error {
	trigger := campaign.TriggerName.String()
	tags := map[string]string{
		"campaign_id": strconv.FormatInt(campaign.ID, 10),
		"trigger":     trigger,
	}

	report, err := e.resolver.Resolve(ctx, tenant, campaign, entity)
	if err != nil {
		var resolutionErr *domain.ReportResolutionError
		if errors.As(err, &resolutionErr) {
			e.metrics.IncReportFailure(trigger)
		}
		e.reporter.Capture(ctx, err, tags)
		return err
	}

	err = handOff(dispatch.Task{
		Campaign:      campaign,
		Payload:       render.Render(campaign.PayloadTemplate, report),
		Entity:        entity,
		Tenant:        tenant,
		CorrelationID: correlationID,
	})
	if err != nil {
		if !errors.Is(err, dispatch.ErrQueueFull) && ctx.Err() == nil {
			e.reporter.Capture(ctx, err, tags)
		}
		return err
	}
	return nil
}
