package queue

import (
	"fmt"
	"strings"

	"github.com/kursadbilgin/campaign-dispatch/internal/domain"
)

// Topology names the exchange ledger events are published to and the
// durable queue this engine consumes them from.
type Topology struct {
	Exchange string
	Queue    string
}

func (t Topology) Validate() error {
	if strings.TrimSpace(t.Exchange) == "" {
		return fmt.Errorf("%w: event exchange is required", domain.ErrValidation)
	}
	if strings.TrimSpace(t.Queue) == "" {
		return fmt.Errorf("%w: event queue is required", domain.ErrValidation)
	}
	return nil
}

// DLQName returns the dead-letter queue for the event queue, e.g.
// dlq.campaign-dispatch.events.
func (t Topology) DLQName() string {
	return fmt.Sprintf("dlq.%s", t.Queue)
}

// RoutingKey returns the topic routing key for an event kind, e.g.
// loan.approved.
func RoutingKey(kind domain.EventKind) string {
	return strings.ReplaceAll(strings.ToLower(kind.String()), "_", ".")
}

// RoutingKeys returns one routing key per ledger event kind.
func RoutingKeys() []string {
	kinds := domain.EventKinds()
	keys := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		keys = append(keys, RoutingKey(kind))
	}
	return keys
}
