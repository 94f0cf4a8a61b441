package campaign

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kursadbilgin/campaign-dispatch/internal/domain"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeCampaignRepo struct {
	findActiveByTriggerFn func(ctx context.Context, tenantID string, trigger domain.TriggerName) ([]domain.Campaign, error)
}

func (f *fakeCampaignRepo) FindActiveByTrigger(ctx context.Context, tenantID string, trigger domain.TriggerName) ([]domain.Campaign, error) {
	return f.findActiveByTriggerFn(ctx, tenantID, trigger)
}

func int64Ptr(v int64) *int64 { return &v }

func validCampaign(id int64, trigger domain.TriggerName) domain.Campaign {
	kind := domain.TriggerKindEntityEvent
	switch trigger {
	case domain.TriggerBirthday:
		kind = domain.TriggerKindBirthday
	case domain.TriggerSpecialEvent:
		kind = domain.TriggerKindFixedDate
	}
	return domain.Campaign{
		ID:          id,
		Name:        "campaign",
		TriggerKind: kind,
		TriggerName: trigger,
		ReportSQL:   "select 1",
		EndpointURL: "https://hooks.example.com/campaigns",
		Enabled:     true,
	}
}

func scoped(c domain.Campaign, loanProductID int64) domain.Campaign {
	c.LoanProductID = int64Ptr(loanProductID)
	return c
}

func disabled(c domain.Campaign) domain.Campaign {
	c.Enabled = false
	return c
}

func onDate(c domain.Campaign, day time.Time) domain.Campaign {
	c.SpecificDate = &day
	return c
}

func ids(campaigns []domain.Campaign) []int64 {
	out := make([]int64, 0, len(campaigns))
	for _, c := range campaigns {
		out = append(out, c.ID)
	}
	return out
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestMatchFiltersByProductScope(t *testing.T) {
	t.Parallel()

	repo := &fakeCampaignRepo{
		findActiveByTriggerFn: func(_ context.Context, tenantID string, trigger domain.TriggerName) ([]domain.Campaign, error) {
			if tenantID != "default" || trigger != domain.TriggerLoanApproved {
				t.Fatalf("FindActiveByTrigger(%q, %q) unexpected args", tenantID, trigger)
			}
			return []domain.Campaign{
				validCampaign(1, domain.TriggerLoanApproved),
				scoped(validCampaign(2, domain.TriggerLoanApproved), 7),
				scoped(validCampaign(3, domain.TriggerLoanApproved), 8),
				disabled(validCampaign(4, domain.TriggerLoanApproved)),
			}, nil
		},
	}

	matcher := NewMatcher(repo, nil)

	got, err := matcher.Match(context.Background(), "default", domain.TriggerLoanApproved, &domain.ProductRef{Kind: domain.ProductLoan, ID: 7})
	if err != nil {
		t.Fatalf("Match() unexpected error = %v", err)
	}
	if want := []int64{1, 2}; !equalIDs(ids(got), want) {
		t.Fatalf("Match() ids = %v, want %v", ids(got), want)
	}

	got, err = matcher.Match(context.Background(), "default", domain.TriggerLoanApproved, nil)
	if err != nil {
		t.Fatalf("Match() unexpected error = %v", err)
	}
	if want := []int64{1}; !equalIDs(ids(got), want) {
		t.Fatalf("Match() without product ids = %v, want %v", ids(got), want)
	}
}

func TestMatchEmptyIsNotAnError(t *testing.T) {
	t.Parallel()

	repo := &fakeCampaignRepo{
		findActiveByTriggerFn: func(context.Context, string, domain.TriggerName) ([]domain.Campaign, error) {
			return nil, nil
		},
	}

	got, err := NewMatcher(repo, nil).Match(context.Background(), "default", domain.TriggerSavingsDeposit, nil)
	if err != nil {
		t.Fatalf("Match() unexpected error = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("Match() = %v, want empty", got)
	}
}

func TestMatchRejectsUnknownTrigger(t *testing.T) {
	t.Parallel()

	repo := &fakeCampaignRepo{
		findActiveByTriggerFn: func(context.Context, string, domain.TriggerName) ([]domain.Campaign, error) {
			t.Fatal("repository should not be queried")
			return nil, nil
		},
	}

	_, err := NewMatcher(repo, nil).Match(context.Background(), "default", "Loan Closed - API", nil)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("Match() error = %v, want ErrValidation", err)
	}
}

func TestMatchPropagatesRepositoryError(t *testing.T) {
	t.Parallel()

	repoErr := errors.New("connection refused")
	repo := &fakeCampaignRepo{
		findActiveByTriggerFn: func(context.Context, string, domain.TriggerName) ([]domain.Campaign, error) {
			return nil, repoErr
		},
	}

	_, err := NewMatcher(repo, nil).Match(context.Background(), "default", domain.TriggerLoanCreated, nil)
	if !errors.Is(err, repoErr) {
		t.Fatalf("Match() error = %v, want wrapped repository error", err)
	}
}

func TestMatchFixedDate(t *testing.T) {
	t.Parallel()

	june1 := time.Date(2020, time.June, 1, 0, 0, 0, 0, time.UTC)
	july4 := time.Date(2020, time.July, 4, 0, 0, 0, 0, time.UTC)

	repo := &fakeCampaignRepo{
		findActiveByTriggerFn: func(_ context.Context, _ string, trigger domain.TriggerName) ([]domain.Campaign, error) {
			if trigger != domain.TriggerSpecialEvent {
				t.Fatalf("trigger = %q, want %q", trigger, domain.TriggerSpecialEvent)
			}
			return []domain.Campaign{
				onDate(validCampaign(10, domain.TriggerSpecialEvent), june1),
				onDate(validCampaign(11, domain.TriggerSpecialEvent), july4),
				validCampaign(12, domain.TriggerSpecialEvent),
			}, nil
		},
	}

	today := time.Date(2026, time.June, 1, 6, 0, 0, 0, time.UTC)
	got, err := NewMatcher(repo, nil).MatchFixedDate(context.Background(), "default", today)
	if err != nil {
		t.Fatalf("MatchFixedDate() unexpected error = %v", err)
	}
	if want := []int64{10}; !equalIDs(ids(got), want) {
		t.Fatalf("MatchFixedDate() ids = %v, want %v", ids(got), want)
	}
}

func TestMatchSkipsInvalidCampaign(t *testing.T) {
	t.Parallel()

	broken := validCampaign(2, domain.TriggerLoanApproved)
	broken.EndpointURL = "not a url"
	repo := &fakeCampaignRepo{
		findActiveByTriggerFn: func(context.Context, string, domain.TriggerName) ([]domain.Campaign, error) {
			return []domain.Campaign{validCampaign(1, domain.TriggerLoanApproved), broken, validCampaign(3, domain.TriggerLoanApproved)}, nil
		},
	}

	core, recorded := observer.New(zap.WarnLevel)
	got, err := NewMatcher(repo, zap.New(core)).Match(context.Background(), "default", domain.TriggerLoanApproved, nil)
	if err != nil {
		t.Fatalf("Match() unexpected error = %v", err)
	}
	if want := []int64{1, 3}; !equalIDs(ids(got), want) {
		t.Fatalf("Match() ids = %v, want %v", ids(got), want)
	}

	entries := recorded.FilterMessage("skipping invalid campaign").All()
	if len(entries) != 1 {
		t.Fatalf("warn entries = %d, want 1", len(entries))
	}
	if got := entries[0].ContextMap()["campaignId"]; got != int64(2) {
		t.Fatalf("campaignId field = %v, want 2", got)
	}
}
