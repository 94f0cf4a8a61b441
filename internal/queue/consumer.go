package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/kursadbilgin/campaign-dispatch/internal/domain"
	"github.com/kursadbilgin/campaign-dispatch/internal/events"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// EventConsumer is a RabbitMQ-backed events.Bus. Handlers are registered
// with Subscribe before Run starts consuming the event queue.
type EventConsumer struct {
	client   *RabbitMQ
	queue    string
	prefetch int
	logger   *zap.Logger

	mu       sync.RWMutex
	handlers map[domain.EventKind][]events.Handler
}

var _ events.Bus = (*EventConsumer)(nil)

func NewEventConsumer(client *RabbitMQ, queue string, prefetch int, logger *zap.Logger) *EventConsumer {
	if prefetch < 1 {
		prefetch = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &EventConsumer{
		client:   client,
		queue:    queue,
		prefetch: prefetch,
		logger:   logger,
		handlers: make(map[domain.EventKind][]events.Handler),
	}
}

func (c *EventConsumer) Subscribe(kind domain.EventKind, handler events.Handler) error {
	if !kind.IsValid() {
		return fmt.Errorf("%w: invalid event kind %q", domain.ErrValidation, kind)
	}
	if handler == nil {
		return fmt.Errorf("%w: handler is required", domain.ErrValidation)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[kind] = append(c.handlers[kind], handler)
	return nil
}

// Run consumes the event queue until ctx is canceled, reconnecting with
// backoff when the channel drops.
func (c *EventConsumer) Run(ctx context.Context) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("consumer is not initialized")
	}
	if c.queue == "" {
		return fmt.Errorf("queue name is required")
	}

	backoff := reconnectBackoff
	for {
		err := c.consumeOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			backoff = reconnectBackoff
			continue
		}

		c.logger.Warn("event consumer interrupted, reconnecting",
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (c *EventConsumer) consumeOnce(ctx context.Context) error {
	ch, err := c.client.channel(ctx)
	if err != nil {
		return err
	}
	defer ch.Close() //nolint:errcheck // best-effort channel close

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set qos: %w", err)
	}

	deliveries, err := ch.Consume(
		c.queue,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to consume queue %q: %w", c.queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}

			if err := c.handleDelivery(ctx, d); err != nil {
				return err
			}
		}
	}
}

// handleDelivery rejects malformed messages to the dead-letter queue, acks
// events nobody subscribed to, and requeues a failed event once before
// dead-lettering it.
func (c *EventConsumer) handleDelivery(ctx context.Context, d amqp.Delivery) error {
	var msg EventMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		c.logger.Warn("rejecting message: invalid JSON",
			zap.Error(err),
			zap.String("routingKey", d.RoutingKey),
		)
		if rejectErr := d.Reject(false); rejectErr != nil {
			return fmt.Errorf("failed to reject invalid message: %w", rejectErr)
		}
		return nil
	}
	if msg.CorrelationID == "" {
		msg.CorrelationID = d.CorrelationId
	}

	event, err := msg.ToEvent()
	if err != nil {
		c.logger.Warn("rejecting message: validation failed",
			zap.Error(err),
			zap.String("kind", msg.Kind),
			zap.Int64("entityId", msg.EntityID),
		)
		if rejectErr := d.Reject(false); rejectErr != nil {
			return fmt.Errorf("failed to reject invalid payload: %w", rejectErr)
		}
		return nil
	}

	c.mu.RLock()
	handlers := append([]events.Handler(nil), c.handlers[event.Kind]...)
	c.mu.RUnlock()

	var handlerErr error
	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil && handlerErr == nil {
			handlerErr = err
		}
	}

	if handlerErr != nil {
		requeue := !d.Redelivered
		c.logger.Warn("event handler failed",
			zap.String("kind", event.Kind.String()),
			zap.String("entity", event.Entity.String()),
			zap.Bool("requeue", requeue),
			zap.Error(handlerErr),
		)
		if nackErr := d.Nack(false, requeue); nackErr != nil {
			return fmt.Errorf("handler failed and nack failed: %w", nackErr)
		}
		return nil
	}

	if err := d.Ack(false); err != nil {
		return fmt.Errorf("failed to ack delivery: %w", err)
	}

	return nil
}

func (c *EventConsumer) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
