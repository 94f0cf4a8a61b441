package dispatch

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/campaign-dispatch/internal/domain"
	"github.com/kursadbilgin/campaign-dispatch/internal/observability"
	"github.com/kursadbilgin/campaign-dispatch/internal/provider"
	"github.com/kursadbilgin/campaign-dispatch/internal/ratelimit"
	"github.com/kursadbilgin/campaign-dispatch/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	minWorkers          = 1
	minQueueSize        = 1
	persistTimeout      = 5 * time.Second
	maxRecordedBodySize = 4096
)

type Options struct {
	Workers           int
	QueueSize         int
	DefaultMaxRetries int
	DefaultRetryDelay time.Duration
}

// Pool delivers accepted tasks with a fixed number of workers reading a
// bounded queue. Retries are re-enqueued after the retry delay instead of
// holding a worker.
type Pool struct {
	logs        repository.DeliveryLogRepository
	provider    provider.Provider
	rateLimiter ratelimit.RateLimiter
	logger      *zap.Logger
	metrics     *observability.Metrics
	reporter    *observability.Reporter
	now         func() time.Time

	workers           int
	defaultMaxRetries int
	defaultRetryDelay time.Duration
	queue             chan *Task
	slots             chan struct{}
	done              chan struct{}

	mu       sync.Mutex
	closed   bool
	inflight int
	idle     chan struct{}
	timers   map[string]pendingRetry
	retrying sync.WaitGroup
}

type pendingRetry struct {
	timer *time.Timer
	task  *Task
}

func NewPool(
	logs repository.DeliveryLogRepository,
	deliveryProvider provider.Provider,
	opts Options,
	logger *zap.Logger,
) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Workers < minWorkers {
		opts.Workers = minWorkers
	}
	if opts.QueueSize < minQueueSize {
		opts.QueueSize = minQueueSize
	}
	if opts.DefaultMaxRetries < 0 {
		opts.DefaultMaxRetries = 0
	}
	if opts.DefaultRetryDelay < 0 {
		opts.DefaultRetryDelay = 0
	}

	idle := make(chan struct{})
	close(idle)

	return &Pool{
		logs:              logs,
		provider:          deliveryProvider,
		logger:            logger,
		now:               time.Now,
		workers:           opts.Workers,
		defaultMaxRetries: opts.DefaultMaxRetries,
		defaultRetryDelay: opts.DefaultRetryDelay,
		queue:             make(chan *Task, opts.QueueSize),
		slots:             make(chan struct{}, opts.QueueSize),
		done:              make(chan struct{}),
		idle:              idle,
		timers:            make(map[string]pendingRetry),
	}
}

func (p *Pool) SetMetrics(metrics *observability.Metrics) {
	if p == nil {
		return
	}
	p.metrics = metrics
}

func (p *Pool) SetReporter(reporter *observability.Reporter) {
	if p == nil {
		return
	}
	p.reporter = reporter
}

// SetRateLimiter throttles deliveries per campaign. Nil disables throttling.
func (p *Pool) SetRateLimiter(limiter ratelimit.RateLimiter) {
	if p == nil {
		return
	}
	p.rateLimiter = limiter
}

// Dispatch hands the task to the pool without blocking. It returns
// ErrQueueFull when the queue has no free slot.
func (p *Pool) Dispatch(task Task) error {
	t, err := p.prepare(task)
	if err != nil {
		return err
	}
	if p.isClosed() {
		return ErrPoolClosed
	}

	select {
	case p.slots <- struct{}{}:
	default:
		p.metrics.IncQueueRejected(t.Campaign.TriggerName.String())
		p.logger.Warn("dispatch queue full, task rejected",
			zap.Int64("campaignId", t.Campaign.ID),
			zap.String("entity", t.Entity.String()),
			zap.String("tenantId", t.Tenant.ID),
		)
		return ErrQueueFull
	}

	return p.admit(context.Background(), t)
}

// Submit hands the task to the pool, waiting for a free queue slot until ctx
// ends or the pool shuts down.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	if ctx == nil {
		ctx = context.Background()
	}
	t, err := p.prepare(task)
	if err != nil {
		return err
	}
	if p.isClosed() {
		return ErrPoolClosed
	}

	select {
	case p.slots <- struct{}{}:
	case <-p.done:
		return ErrPoolClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	return p.admit(ctx, t)
}

func (p *Pool) prepare(task Task) (*Task, error) {
	if err := task.validate(); err != nil {
		return nil, err
	}

	t := task
	t.logID = uuid.NewString()
	t.attempts = 0
	t.maxAttempts = t.Campaign.EffectiveMaxRetries(p.defaultMaxRetries) + 1
	t.retryDelay = t.Campaign.EffectiveRetryDelay(p.defaultRetryDelay)
	return &t, nil
}

// admit records the PENDING log and enqueues a task that already holds a
// queue slot.
func (p *Pool) admit(ctx context.Context, task *Task) error {
	logCtx := domain.WithTenant(ctx, task.Tenant)
	if task.CorrelationID != "" {
		logCtx = observability.WithCorrelationID(logCtx, task.CorrelationID)
	}
	logger := observability.WithContextLogger(p.logger, logCtx).With(
		zap.String("logId", task.logID),
		zap.Int64("campaignId", task.Campaign.ID),
	)
	p.createLog(logCtx, task, logger)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		<-p.slots
		completedAt := p.now().UTC()
		p.updateState(logCtx, task, domain.DeliveryStateUpdate{
			Status:      domain.DeliveryCanceled,
			CompletedAt: &completedAt,
		}, logger)
		return ErrPoolClosed
	}
	p.acquireLocked()
	p.metrics.IncDispatchInFlight()
	p.queue <- task
	p.mu.Unlock()

	return nil
}

func (p *Pool) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Start runs the workers until ctx is canceled. Queued tasks and pending
// retries left at shutdown are closed as CANCELED.
func (p *Pool) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	g, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < p.workers; i++ {
		workerID := i + 1

		g.Go(func() error {
			p.logger.Debug("dispatch worker started", zap.Int("workerId", workerID))
			for {
				select {
				case <-groupCtx.Done():
					p.logger.Debug("dispatch worker stopped", zap.Int("workerId", workerID))
					return nil
				case task := <-p.queue:
					<-p.slots
					p.process(groupCtx, task)
				}
			}
		})
	}

	err := g.Wait()
	p.shutdown(ctx)
	return err
}

// Drain blocks until every accepted task reached a terminal status or ctx
// ends.
func (p *Pool) Drain(ctx context.Context) error {
	for {
		p.mu.Lock()
		if p.inflight == 0 {
			p.mu.Unlock()
			return nil
		}
		idle := p.idle
		p.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *Pool) process(ctx context.Context, task *Task) {
	attemptCtx := domain.WithTenant(ctx, task.Tenant)
	if task.CorrelationID != "" {
		attemptCtx = observability.WithCorrelationID(attemptCtx, task.CorrelationID)
	}
	logger := observability.WithContextLogger(p.logger, attemptCtx).With(
		zap.String("logId", task.logID),
		zap.Int64("campaignId", task.Campaign.ID),
		zap.String("entity", task.Entity.String()),
	)

	if ctx.Err() != nil {
		p.cancel(attemptCtx, task)
		return
	}

	attemptNumber := task.attempts + 1
	p.updateState(attemptCtx, task, domain.DeliveryStateUpdate{
		Status:       domain.DeliveryAttempting,
		AttemptCount: task.attempts,
	}, logger)

	if p.rateLimiter != nil {
		key := ratelimit.CampaignKey(task.Tenant.ID, task.Campaign.ID)
		if err := p.rateLimiter.Wait(attemptCtx, key); err != nil {
			if ctx.Err() != nil {
				p.cancel(attemptCtx, task)
				return
			}
			logger.Warn("rate limiter unavailable, delivering without throttle", zap.Error(err))
		}
	}

	trigger := task.Campaign.TriggerName.String()
	start := p.now()
	resp, sendErr := p.provider.Deliver(attemptCtx, provider.DeliveryRequest{
		EndpointURL:   task.Campaign.EndpointURL,
		APIKeyHeader:  task.Campaign.HeaderName(),
		APIKey:        task.Campaign.APIKey,
		Payload:       task.Payload,
		CorrelationID: task.CorrelationID,
	})
	elapsed := p.now().Sub(start)
	p.metrics.ObserveAttemptDuration(trigger, elapsed)

	if sendErr != nil && ctx.Err() != nil {
		p.cancel(attemptCtx, task)
		return
	}

	task.attempts = attemptNumber
	p.recordAttempt(attemptCtx, task, resp, sendErr, elapsed, logger)

	if sendErr == nil {
		p.metrics.IncAttempt(trigger, "success")
		completedAt := p.now().UTC()
		p.finish(attemptCtx, task, domain.DeliveryStateUpdate{
			Status:         domain.DeliveryDelivered,
			AttemptCount:   task.attempts,
			LastStatusCode: statusCodePtr(resp, nil),
			CompletedAt:    &completedAt,
		}, logger)
		logger.Info("campaign payload delivered", zap.Int("attempts", task.attempts))
		return
	}

	p.metrics.IncAttempt(trigger, "failure")
	task.lastErr = sendErr
	lastError := sendErr.Error()

	if task.attempts < task.maxAttempts {
		p.updateState(attemptCtx, task, domain.DeliveryStateUpdate{
			Status:         domain.DeliveryRetryWait,
			AttemptCount:   task.attempts,
			LastError:      &lastError,
			LastStatusCode: statusCodePtr(nil, sendErr),
		}, logger)
		logger.Warn("delivery attempt failed, retry scheduled",
			zap.Int("attempt", task.attempts),
			zap.Int("maxAttempts", task.maxAttempts),
			zap.Duration("retryDelay", task.retryDelay),
			zap.Bool("transient", provider.IsTransient(sendErr)),
			zap.Error(sendErr),
		)
		p.metrics.IncRetryScheduled(trigger)
		p.scheduleRetry(ctx, task)
		return
	}

	exhausted := &domain.DeliveryExhaustedError{
		LogID:    task.logID,
		Attempts: task.attempts,
		LastErr:  sendErr,
	}
	exhaustedMsg := exhausted.Error()
	completedAt := p.now().UTC()
	p.finish(attemptCtx, task, domain.DeliveryStateUpdate{
		Status:         domain.DeliveryExhausted,
		AttemptCount:   task.attempts,
		LastError:      &exhaustedMsg,
		LastStatusCode: statusCodePtr(nil, sendErr),
		CompletedAt:    &completedAt,
	}, logger)
	logger.Error("campaign delivery exhausted", zap.Error(exhausted))
	p.reporter.Capture(attemptCtx, exhausted, map[string]string{
		"campaign_id": strconv.FormatInt(task.Campaign.ID, 10),
		"trigger":     trigger,
	})
}

func (p *Pool) scheduleRetry(ctx context.Context, task *Task) {
	p.mu.Lock()
	if p.closed || ctx.Err() != nil {
		p.mu.Unlock()
		p.cancel(domain.WithTenant(ctx, task.Tenant), task)
		return
	}

	timer := time.AfterFunc(task.retryDelay, func() {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return
		}
		delete(p.timers, task.logID)
		p.retrying.Add(1)
		p.mu.Unlock()
		defer p.retrying.Done()

		select {
		case p.slots <- struct{}{}:
			p.queue <- task
		case <-ctx.Done():
			p.cancel(domain.WithTenant(ctx, task.Tenant), task)
		}
	})
	p.timers[task.logID] = pendingRetry{timer: timer, task: task}
	p.mu.Unlock()
}

// shutdown stops pending retries and closes queued tasks as CANCELED.
func (p *Pool) shutdown(ctx context.Context) {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.done)
	}
	stopped := make([]*Task, 0, len(p.timers))
	for logID, pending := range p.timers {
		pending.timer.Stop()
		stopped = append(stopped, pending.task)
		delete(p.timers, logID)
	}
	p.mu.Unlock()

	p.retrying.Wait()

	for _, task := range stopped {
		p.cancel(domain.WithTenant(ctx, task.Tenant), task)
	}

	for {
		select {
		case task := <-p.queue:
			<-p.slots
			p.cancel(domain.WithTenant(ctx, task.Tenant), task)
		default:
			return
		}
	}
}

func (p *Pool) cancel(ctx context.Context, task *Task) {
	update := domain.DeliveryStateUpdate{
		Status:       domain.DeliveryCanceled,
		AttemptCount: task.attempts,
	}
	if task.lastErr != nil {
		msg := task.lastErr.Error()
		update.LastError = &msg
	}
	completedAt := p.now().UTC()
	update.CompletedAt = &completedAt

	logger := p.logger.With(zap.String("logId", task.logID), zap.Int64("campaignId", task.Campaign.ID))
	p.finish(ctx, task, update, logger)
	logger.Info("campaign delivery canceled", zap.Int("attempts", task.attempts))
}

func (p *Pool) finish(ctx context.Context, task *Task, update domain.DeliveryStateUpdate, logger *zap.Logger) {
	p.updateState(ctx, task, update, logger)
	p.metrics.IncDelivery(task.Campaign.TriggerName.String(), update.Status.String())
	p.metrics.DecDispatchInFlight()
	p.release()
}

func (p *Pool) createLog(ctx context.Context, task *Task, logger *zap.Logger) {
	persistCtx, cancel := persistContext(ctx)
	defer cancel()

	now := p.now().UTC()
	log := &domain.DeliveryLog{
		ID:           task.logID,
		TenantID:     task.Tenant.ID,
		CampaignID:   task.Campaign.ID,
		CampaignName: task.Campaign.Name,
		TriggerName:  task.Campaign.TriggerName,
		EntityKind:   task.Entity.Kind,
		EntityID:     task.Entity.ID,
		Payload:      task.Payload,
		Status:       domain.DeliveryPending,
		MaxAttempts:  task.maxAttempts,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := p.logs.Create(persistCtx, log); err != nil {
		logger.Error("failed to create delivery log", zap.Error(err))
	}
}

func (p *Pool) updateState(ctx context.Context, task *Task, update domain.DeliveryStateUpdate, logger *zap.Logger) {
	persistCtx, cancel := persistContext(ctx)
	defer cancel()

	if err := p.logs.UpdateState(persistCtx, task.logID, update); err != nil {
		logger.Error("failed to update delivery log",
			zap.String("status", update.Status.String()),
			zap.Error(err),
		)
	}
}

func (p *Pool) recordAttempt(
	ctx context.Context,
	task *Task,
	resp *provider.DeliveryResponse,
	sendErr error,
	elapsed time.Duration,
	logger *zap.Logger,
) {
	persistCtx, cancel := persistContext(ctx)
	defer cancel()

	var responseBody *string
	var attemptErr *string

	if resp != nil && strings.TrimSpace(resp.Body) != "" {
		value := truncate(resp.Body)
		responseBody = &value
	}
	if sendErr != nil {
		value := sendErr.Error()
		attemptErr = &value

		var transportErr *provider.DeliveryTransportError
		if errors.As(sendErr, &transportErr) && responseBody == nil && transportErr.Body != "" {
			body := truncate(transportErr.Body)
			responseBody = &body
		}
	}

	attempt := &domain.DeliveryAttempt{
		ID:             uuid.NewString(),
		LogID:          task.logID,
		AttemptNumber:  task.attempts,
		StatusCode:     statusCodePtr(resp, sendErr),
		ResponseBody:   responseBody,
		Error:          attemptErr,
		DurationMillis: elapsed.Milliseconds(),
		CreatedAt:      p.now().UTC(),
	}
	if err := p.logs.AppendAttempt(persistCtx, attempt); err != nil {
		logger.Error("failed to record delivery attempt", zap.Int("attempt", task.attempts), zap.Error(err))
	}
}

func (p *Pool) acquireLocked() {
	p.inflight++
	if p.inflight == 1 {
		p.idle = make(chan struct{})
	}
}

func (p *Pool) release() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.inflight--
	if p.inflight == 0 {
		close(p.idle)
	}
}

// persistContext keeps log writes alive when the dispatch context was
// canceled during shutdown.
func persistContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
}

func statusCodePtr(resp *provider.DeliveryResponse, err error) *int {
	if resp != nil && resp.StatusCode > 0 {
		code := resp.StatusCode
		return &code
	}
	if code, ok := provider.StatusCode(err); ok {
		return &code
	}
	return nil
}

func truncate(body string) string {
	if len(body) <= maxRecordedBodySize {
		return body
	}
	return body[:maxRecordedBodySize]
}
