package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/kursadbilgin/campaign-dispatch/internal/dispatch"
	"github.com/kursadbilgin/campaign-dispatch/internal/domain"
	"github.com/kursadbilgin/campaign-dispatch/internal/provider"
	"github.com/kursadbilgin/campaign-dispatch/internal/repository"
	"go.uber.org/zap"
)

type memoryDeliveryLogs struct {
	mu   sync.Mutex
	logs map[string]*domain.DeliveryLog
}

func newMemoryDeliveryLogs() *memoryDeliveryLogs {
	return &memoryDeliveryLogs{logs: make(map[string]*domain.DeliveryLog)}
}

func (r *memoryDeliveryLogs) Create(ctx context.Context, l *domain.DeliveryLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *l
	r.logs[l.ID] = &copied
	return nil
}

func (r *memoryDeliveryLogs) AppendAttempt(ctx context.Context, a *domain.DeliveryAttempt) error {
	return nil
}

func (r *memoryDeliveryLogs) UpdateState(ctx context.Context, id string, update domain.DeliveryStateUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	log, ok := r.logs[id]
	if !ok {
		return domain.ErrNotFound
	}
	log.Status = update.Status
	log.AttemptCount = update.AttemptCount
	return nil
}

func (r *memoryDeliveryLogs) GetByID(ctx context.Context, id string) (*domain.DeliveryLog, error) {
	return nil, domain.ErrNotFound
}

func (r *memoryDeliveryLogs) ListAttempts(ctx context.Context, logID string) ([]domain.DeliveryAttempt, error) {
	return nil, nil
}

func (r *memoryDeliveryLogs) List(ctx context.Context, params repository.LogListParams) ([]domain.DeliveryLog, int64, error) {
	return nil, 0, nil
}

func (r *memoryDeliveryLogs) statusCounts() map[domain.DeliveryStatus]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[domain.DeliveryStatus]int)
	for _, log := range r.logs {
		counts[log.Status]++
	}
	return counts
}

func TestRunDailySweepWaitsForQueueCapacity(t *testing.T) {
	t.Parallel()

	const clientCount = 200

	var mu sync.Mutex
	hits := make(map[int64]int)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Client int64 `json:"client"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		time.Sleep(2 * time.Millisecond)
		mu.Lock()
		hits[body.Client]++
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	clients := &fakeClientSource{}
	for id := int64(1); id <= clientCount; id++ {
		clients.clients = append(clients.clients, domain.Client{ID: id})
	}

	june := date(2019, time.June, 1)
	matcher := &fakeMatcher{
		matchFixedDateFn: func(ctx context.Context, tenantID string, today time.Time) ([]domain.Campaign, error) {
			return []domain.Campaign{{
				ID:              21,
				Name:            "children's day",
				TriggerKind:     domain.TriggerKindFixedDate,
				TriggerName:     domain.TriggerSpecialEvent,
				SpecificDate:    &june,
				PayloadTemplate: `{"client":${clientId}}`,
				EndpointURL:     server.URL,
				Enabled:         true,
			}}, nil
		},
	}

	logs := newMemoryDeliveryLogs()
	pool := dispatch.NewPool(logs, provider.NewWebhookProvider(5*time.Second), dispatch.Options{
		Workers:   4,
		QueueSize: 16,
	}, zap.NewNop())

	poolCtx, stopPool := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		_ = pool.Start(poolCtx)
	}()
	defer func() {
		stopPool()
		<-stopped
	}()

	engine := New(matcher, clientResolver(), pool, clients, Options{SweepBatchSize: 50}, zap.NewNop())
	result, err := engine.RunDailySweep(context.Background(), domain.Tenant{ID: "default"}, date(2026, time.June, 1))
	if err != nil {
		t.Fatalf("RunDailySweep() error = %v", err)
	}
	if result != (SweepResult{Evaluated: clientCount, Dispatched: clientCount}) {
		t.Fatalf("result = %+v, want every client dispatched", result)
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := pool.Drain(drainCtx); err != nil {
		t.Fatalf("Drain() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(hits) != clientCount {
		t.Fatalf("endpoint reached %d of %d clients", len(hits), clientCount)
	}
	for id, n := range hits {
		if n != 1 {
			t.Fatalf("client %d delivered %d times, want once", id, n)
		}
	}
	if counts := logs.statusCounts(); counts[domain.DeliveryDelivered] != clientCount {
		t.Fatalf("log statuses = %v, want %d DELIVERED", counts, clientCount)
	}
}
