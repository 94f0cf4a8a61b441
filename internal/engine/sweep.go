package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/campaign-dispatch/internal/dispatch"
	"github.com/kursadbilgin/campaign-dispatch/internal/domain"
	"github.com/kursadbilgin/campaign-dispatch/internal/observability"
	"go.uber.org/zap"
)

// SweepResult counts the (campaign, client) pairs a sweep looked at.
type SweepResult struct {
	Evaluated  int
	Dispatched int
	Failed     int
	Skipped    int
}

func (r *SweepResult) add(other SweepResult) {
	r.Evaluated += other.Evaluated
	r.Dispatched += other.Dispatched
	r.Failed += other.Failed
	r.Skipped += other.Skipped
}

// RunDailySweep evaluates birthday and fixed-date campaigns for every active
// client of the tenant on today's date. Per-pair failures are counted, not
// returned; the error is set only when campaigns or clients cannot be read.
// Each pair waits for dispatch queue capacity, but the sweep does not wait
// for deliveries to finish.
func (e *Engine) RunDailySweep(ctx context.Context, tenant domain.Tenant, today time.Time) (SweepResult, error) {
	var result SweepResult
	if tenant.IsZero() {
		return result, fmt.Errorf("%w: sweep tenant is required", domain.ErrValidation)
	}

	ctx = domain.WithTenant(ctx, tenant)
	ctx = observability.WithCorrelationID(ctx, uuid.NewString())
	logger := observability.WithContextLogger(e.logger, ctx).With(zap.String("day", today.Format(time.DateOnly)))

	birthday, err := e.matcher.MatchBirthday(ctx, tenant.ID)
	if err != nil {
		return result, fmt.Errorf("match birthday campaigns: %w", err)
	}
	fixed, err := e.matcher.MatchFixedDate(ctx, tenant.ID, today)
	if err != nil {
		return result, fmt.Errorf("match fixed-date campaigns: %w", err)
	}
	if len(birthday) == 0 && len(fixed) == 0 {
		logger.Info("no calendar campaign due")
		return result, nil
	}

	logger.Info("calendar sweep started",
		zap.Int("birthdayCampaigns", len(birthday)),
		zap.Int("fixedDateCampaigns", len(fixed)),
	)

	var afterID int64
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		clients, err := e.clients.ListActiveClients(ctx, tenant, afterID, e.batchSize)
		if err != nil {
			return result, fmt.Errorf("list active clients after %d: %w", afterID, err)
		}
		if len(clients) == 0 {
			break
		}

		for _, client := range clients {
			if client.DateOfBirth != nil && domain.SameMonthDay(*client.DateOfBirth, today) {
				result.add(e.evaluate(ctx, tenant, today, birthday, client, logger))
			}
			result.add(e.evaluate(ctx, tenant, today, fixed, client, logger))
		}

		afterID = clients[len(clients)-1].ID
		if len(clients) < e.batchSize {
			break
		}
	}

	logger.Info("calendar sweep finished",
		zap.Int("evaluated", result.Evaluated),
		zap.Int("dispatched", result.Dispatched),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}

func (e *Engine) evaluate(
	ctx context.Context,
	tenant domain.Tenant,
	today time.Time,
	campaigns []domain.Campaign,
	client domain.Client,
	logger *zap.Logger,
) SweepResult {
	var result SweepResult
	entity := domain.EntityRef{Kind: domain.EntityClient, ID: client.ID}
	correlationID, _ := observability.CorrelationIDFromContext(ctx)
	submit := func(task dispatch.Task) error {
		return e.dispatcher.Submit(ctx, task)
	}

	for i := range campaigns {
		campaign := campaigns[i]
		trigger := campaign.TriggerName.String()
		result.Evaluated++

		claimed := false
		if e.guard != nil {
			ok, err := e.guard.Claim(ctx, tenant.ID, today, campaign.ID, client.ID)
			switch {
			case err != nil:
				logger.Warn("sweep claim failed, dispatching unguarded",
					zap.Int64("campaignId", campaign.ID),
					zap.Int64("clientId", client.ID),
					zap.Error(err),
				)
			case !ok:
				result.Skipped++
				e.metrics.IncSweepEvaluation(trigger, "skipped")
				continue
			default:
				claimed = true
			}
		}

		if err := e.dispatchOne(ctx, tenant, campaign, entity, correlationID, submit); err != nil {
			result.Failed++
			e.metrics.IncSweepEvaluation(trigger, "failed")
			logger.Error("calendar campaign dispatch failed",
				zap.Int64("campaignId", campaign.ID),
				zap.Int64("clientId", client.ID),
				zap.Error(err),
			)
			if claimed {
				if err := e.guard.Release(ctx, tenant.ID, today, campaign.ID, client.ID); err != nil {
					logger.Warn("failed to release sweep claim", zap.Error(err))
				}
			}
			continue
		}

		result.Dispatched++
		e.metrics.IncSweepEvaluation(trigger, "dispatched")
	}

	return result
}
