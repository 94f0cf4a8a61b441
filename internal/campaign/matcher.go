package campaign

import (
	"context"
	"fmt"
	"time"

	"github.com/kursadbilgin/campaign-dispatch/internal/domain"
	"github.com/kursadbilgin/campaign-dispatch/internal/repository"
	"go.uber.org/zap"
)

// Matcher selects the enabled campaigns that apply to a trigger occurrence.
type Matcher struct {
	repo   repository.CampaignRepository
	logger *zap.Logger
}

func NewMatcher(repo repository.CampaignRepository, logger *zap.Logger) *Matcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Matcher{repo: repo, logger: logger}
}

// Match returns enabled campaigns for the trigger whose product scope admits
// the entity's product, ordered by campaign id.
func (m *Matcher) Match(ctx context.Context, tenantID string, trigger domain.TriggerName, product *domain.ProductRef) ([]domain.Campaign, error) {
	if !trigger.IsValid() {
		return nil, fmt.Errorf("%w: invalid trigger name %q", domain.ErrValidation, trigger)
	}

	candidates, err := m.repo.FindActiveByTrigger(ctx, tenantID, trigger)
	if err != nil {
		return nil, fmt.Errorf("find campaigns for %q: %w", trigger, err)
	}

	matched := make([]domain.Campaign, 0, len(candidates))
	for i := range candidates {
		c := candidates[i]
		if !c.Enabled {
			continue
		}
		if err := c.Validate(); err != nil {
			m.logger.Warn("skipping invalid campaign",
				zap.Int64("campaignId", c.ID),
				zap.String("trigger", trigger.String()),
				zap.Error(err),
			)
			continue
		}
		if !c.AppliesTo(product) {
			m.logger.Debug("campaign product scope excludes entity",
				zap.Int64("campaignId", c.ID),
				zap.String("trigger", trigger.String()),
			)
			continue
		}
		matched = append(matched, c)
	}

	return matched, nil
}

// MatchBirthday returns the enabled birthday campaigns.
func (m *Matcher) MatchBirthday(ctx context.Context, tenantID string) ([]domain.Campaign, error) {
	return m.Match(ctx, tenantID, domain.TriggerBirthday, nil)
}

// MatchFixedDate returns the enabled special-event campaigns due on today,
// comparing month and day only.
func (m *Matcher) MatchFixedDate(ctx context.Context, tenantID string, today time.Time) ([]domain.Campaign, error) {
	candidates, err := m.Match(ctx, tenantID, domain.TriggerSpecialEvent, nil)
	if err != nil {
		return nil, err
	}

	due := make([]domain.Campaign, 0, len(candidates))
	for i := range candidates {
		if candidates[i].FiresOn(today) {
			due = append(due, candidates[i])
		}
	}
	return due, nil
}
