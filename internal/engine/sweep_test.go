package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/kursadbilgin/campaign-dispatch/internal/domain"
	"go.uber.org/zap"
)

type fakeClientSource struct {
	clients []domain.Client
	calls   int
}

func (f *fakeClientSource) ListActiveClients(ctx context.Context, tenant domain.Tenant, afterID int64, limit int) ([]domain.Client, error) {
	f.calls++
	sort.Slice(f.clients, func(i, j int) bool { return f.clients[i].ID < f.clients[j].ID })

	out := make([]domain.Client, 0, limit)
	for _, c := range f.clients {
		if c.ID > afterID && len(out) < limit {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeSweepGuard struct {
	mu       sync.Mutex
	claimed  map[string]bool
	released []string
}

func newFakeSweepGuard() *fakeSweepGuard {
	return &fakeSweepGuard{claimed: make(map[string]bool)}
}

func (g *fakeSweepGuard) key(tenantID string, day time.Time, campaignID int64, clientID int64) string {
	return fmt.Sprintf("%s:%s:%d:%d", tenantID, day.Format(time.DateOnly), campaignID, clientID)
}

func (g *fakeSweepGuard) Claim(ctx context.Context, tenantID string, day time.Time, campaignID int64, clientID int64) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := g.key(tenantID, day, campaignID, clientID)
	if g.claimed[key] {
		return false, nil
	}
	g.claimed[key] = true
	return true, nil
}

func (g *fakeSweepGuard) Release(ctx context.Context, tenantID string, day time.Time, campaignID int64, clientID int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := g.key(tenantID, day, campaignID, clientID)
	delete(g.claimed, key)
	g.released = append(g.released, key)
	return nil
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func datePtr(year int, month time.Month, day int) *time.Time {
	d := date(year, month, day)
	return &d
}

func birthdayCampaign(id int64) domain.Campaign {
	return domain.Campaign{
		ID:              id,
		Name:            "birthday greeting",
		TriggerKind:     domain.TriggerKindBirthday,
		TriggerName:     domain.TriggerBirthday,
		ReportSQL:       "select * from client_report where id = ${clientId}",
		PayloadTemplate: `{"client":${clientId}}`,
		EndpointURL:     "https://hooks.example.com/birthdays",
		Enabled:         true,
	}
}

func clientResolver() *fakeResolver {
	return &fakeResolver{
		resolveFn: func(ctx context.Context, tenant domain.Tenant, campaign domain.Campaign, entity domain.EntityRef) (domain.ReportRecord, error) {
			if entity.Kind != domain.EntityClient {
				return nil, fmt.Errorf("unexpected entity kind %s", entity.Kind)
			}
			return domain.ClientReport{ClientID: int64Ptr(entity.ID)}, nil
		},
	}
}

func dispatchedClients(d *recordingDispatcher) []int64 {
	ids := make([]int64, 0)
	for _, task := range d.recorded() {
		ids = append(ids, task.Entity.ID)
	}
	return ids
}

func sameIDs(got []int64, want ...int64) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range want {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestRunDailySweepBirthdayMatchesMonthAndDay(t *testing.T) {
	t.Parallel()

	clients := &fakeClientSource{clients: []domain.Client{
		{ID: 1, DateOfBirth: datePtr(1990, time.March, 5)},
		{ID: 2, DateOfBirth: datePtr(1985, time.July, 10)},
		{ID: 3},
		{ID: 4, DateOfBirth: datePtr(2000, time.March, 5)},
		{ID: 5, DateOfBirth: datePtr(1970, time.March, 6)},
	}}
	matcher := &fakeMatcher{
		matchBirthdayFn: func(ctx context.Context, tenantID string) ([]domain.Campaign, error) {
			return []domain.Campaign{birthdayCampaign(11)}, nil
		},
	}
	dispatcher := &recordingDispatcher{}

	engine := New(matcher, clientResolver(), dispatcher, clients, Options{SweepBatchSize: 2}, zap.NewNop())
	result, err := engine.RunDailySweep(context.Background(), domain.Tenant{ID: "default"}, date(2026, time.March, 5))
	if err != nil {
		t.Fatalf("RunDailySweep() error = %v", err)
	}

	if result != (SweepResult{Evaluated: 2, Dispatched: 2}) {
		t.Fatalf("result = %+v, want 2 evaluated and dispatched", result)
	}
	if got := dispatchedClients(dispatcher); !sameIDs(got, 1, 4) {
		t.Fatalf("dispatched clients = %v, want [1 4]", got)
	}
	if clients.calls != 3 {
		t.Fatalf("client pages = %d, want 3", clients.calls)
	}
	task := dispatcher.recorded()[0]
	if task.Payload != `{"client":1}` || task.Entity.Kind != domain.EntityClient {
		t.Fatalf("task = %+v, want rendered client payload", task)
	}
}

func TestRunDailySweepLeapDayBirthday(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		today time.Time
		want  int
	}{
		{name: "feb 28 of common year", today: date(2026, time.February, 28)},
		{name: "mar 1 of common year", today: date(2026, time.March, 1)},
		{name: "feb 29 of leap year", today: date(2028, time.February, 29), want: 1},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			clients := &fakeClientSource{clients: []domain.Client{{ID: 1, DateOfBirth: datePtr(2000, time.February, 29)}}}
			matcher := &fakeMatcher{
				matchBirthdayFn: func(ctx context.Context, tenantID string) ([]domain.Campaign, error) {
					return []domain.Campaign{birthdayCampaign(11)}, nil
				},
			}
			dispatcher := &recordingDispatcher{}

			engine := New(matcher, clientResolver(), dispatcher, clients, Options{}, zap.NewNop())
			result, err := engine.RunDailySweep(context.Background(), domain.Tenant{ID: "default"}, tt.today)
			if err != nil {
				t.Fatalf("RunDailySweep() error = %v", err)
			}
			if result.Dispatched != tt.want {
				t.Fatalf("dispatched = %d, want %d", result.Dispatched, tt.want)
			}
		})
	}
}

func TestRunDailySweepFixedDateTargetsAllClients(t *testing.T) {
	t.Parallel()

	june := date(2019, time.June, 1)
	clients := &fakeClientSource{clients: []domain.Client{{ID: 1}, {ID: 2, DateOfBirth: datePtr(1990, time.June, 1)}, {ID: 3}}}
	matcher := &fakeMatcher{
		matchFixedDateFn: func(ctx context.Context, tenantID string, today time.Time) ([]domain.Campaign, error) {
			if !domain.SameMonthDay(today, june) {
				return nil, nil
			}
			return []domain.Campaign{{
				ID:              21,
				Name:            "children's day",
				TriggerKind:     domain.TriggerKindFixedDate,
				TriggerName:     domain.TriggerSpecialEvent,
				SpecificDate:    &june,
				PayloadTemplate: `{"client":${clientId}}`,
				EndpointURL:     "https://hooks.example.com/events",
				Enabled:         true,
			}}, nil
		},
	}
	dispatcher := &recordingDispatcher{}

	engine := New(matcher, clientResolver(), dispatcher, clients, Options{}, zap.NewNop())
	result, err := engine.RunDailySweep(context.Background(), domain.Tenant{ID: "default"}, date(2026, time.June, 1))
	if err != nil {
		t.Fatalf("RunDailySweep() error = %v", err)
	}
	if result != (SweepResult{Evaluated: 3, Dispatched: 3}) {
		t.Fatalf("result = %+v, want 3 evaluated and dispatched", result)
	}
	if got := dispatchedClients(dispatcher); !sameIDs(got, 1, 2, 3) {
		t.Fatalf("dispatched clients = %v, want [1 2 3]", got)
	}

	result, err = engine.RunDailySweep(context.Background(), domain.Tenant{ID: "default"}, date(2026, time.June, 2))
	if err != nil {
		t.Fatalf("RunDailySweep() error = %v", err)
	}
	if result != (SweepResult{}) {
		t.Fatalf("result = %+v, want nothing evaluated on June 2", result)
	}
}

func TestRunDailySweepIsolatesFailuresAndReleasesClaim(t *testing.T) {
	t.Parallel()

	clients := &fakeClientSource{clients: []domain.Client{
		{ID: 1, DateOfBirth: datePtr(1990, time.March, 5)},
		{ID: 2, DateOfBirth: datePtr(1991, time.March, 5)},
		{ID: 3, DateOfBirth: datePtr(1992, time.March, 5)},
	}}
	matcher := &fakeMatcher{
		matchBirthdayFn: func(ctx context.Context, tenantID string) ([]domain.Campaign, error) {
			return []domain.Campaign{birthdayCampaign(11)}, nil
		},
	}
	resolver := &fakeResolver{
		resolveFn: func(ctx context.Context, tenant domain.Tenant, campaign domain.Campaign, entity domain.EntityRef) (domain.ReportRecord, error) {
			if entity.ID == 2 {
				return nil, &domain.ReportResolutionError{CampaignID: campaign.ID, Entity: entity, Reason: "expected exactly one row, got 0"}
			}
			return domain.ClientReport{ClientID: int64Ptr(entity.ID)}, nil
		},
	}
	dispatcher := &recordingDispatcher{}
	guard := newFakeSweepGuard()

	engine := New(matcher, resolver, dispatcher, clients, Options{}, zap.NewNop())
	engine.SetSweepGuard(guard)
	today := date(2026, time.March, 5)

	result, err := engine.RunDailySweep(context.Background(), domain.Tenant{ID: "default"}, today)
	if err != nil {
		t.Fatalf("RunDailySweep() error = %v", err)
	}
	if result != (SweepResult{Evaluated: 3, Dispatched: 2, Failed: 1}) {
		t.Fatalf("result = %+v, want 3 evaluated, 2 dispatched, 1 failed", result)
	}
	if len(guard.released) != 1 {
		t.Fatalf("released claims = %v, want the failed pair only", guard.released)
	}

	result, err = engine.RunDailySweep(context.Background(), domain.Tenant{ID: "default"}, today)
	if err != nil {
		t.Fatalf("second RunDailySweep() error = %v", err)
	}
	if result != (SweepResult{Evaluated: 3, Skipped: 2, Failed: 1}) {
		t.Fatalf("second result = %+v, want delivered pairs skipped and failed pair retried", result)
	}
	if got := len(dispatcher.recorded()); got != 2 {
		t.Fatalf("dispatched = %d, want 2 across both runs", got)
	}
	if got := dispatcher.submitted(); got != 2 {
		t.Fatalf("submitted = %d, want sweep pairs handed off with Submit", got)
	}
}

func TestRunDailySweepErrors(t *testing.T) {
	t.Parallel()

	engine := New(&fakeMatcher{}, clientResolver(), &recordingDispatcher{}, &fakeClientSource{}, Options{}, zap.NewNop())
	if _, err := engine.RunDailySweep(context.Background(), domain.Tenant{}, date(2026, time.March, 5)); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("RunDailySweep() error = %v, want ErrValidation", err)
	}

	dbErr := errors.New("db down")
	failing := New(&fakeMatcher{
		matchBirthdayFn: func(ctx context.Context, tenantID string) ([]domain.Campaign, error) {
			return nil, dbErr
		},
	}, clientResolver(), &recordingDispatcher{}, &fakeClientSource{}, Options{}, zap.NewNop())
	if _, err := failing.RunDailySweep(context.Background(), domain.Tenant{ID: "default"}, date(2026, time.March, 5)); !errors.Is(err, dbErr) {
		t.Fatalf("RunDailySweep() error = %v, want wrapped db error", err)
	}
}
