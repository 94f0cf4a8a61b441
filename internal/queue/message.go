package queue

import (
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/campaign-dispatch/internal/domain"
)

// EventMessage is the broker payload for a ledger business event.
type EventMessage struct {
	Kind          string    `json:"kind"`
	TenantID      string    `json:"tenantId"`
	TenantSchema  string    `json:"tenantSchema,omitempty"`
	EntityKind    string    `json:"entityKind"`
	EntityID      int64     `json:"entityId"`
	ProductKind   string    `json:"productKind,omitempty"`
	ProductID     int64     `json:"productId,omitempty"`
	CorrelationID string    `json:"correlationId,omitempty"`
	OccurredAt    time.Time `json:"occurredAt"`
}

func EventMessageFromDomain(event domain.Event) EventMessage {
	msg := EventMessage{
		Kind:          event.Kind.String(),
		TenantID:      event.Tenant.ID,
		TenantSchema:  event.Tenant.Schema,
		EntityKind:    event.Entity.Kind.String(),
		EntityID:      event.Entity.ID,
		CorrelationID: event.CorrelationID,
		OccurredAt:    event.OccurredAt.UTC(),
	}
	if event.Entity.Product != nil {
		msg.ProductKind = string(event.Entity.Product.Kind)
		msg.ProductID = event.Entity.Product.ID
	}
	return msg
}

// ToEvent converts and validates the message.
func (m EventMessage) ToEvent() (domain.Event, error) {
	kind, err := domain.ParseEventKind(m.Kind)
	if err != nil {
		return domain.Event{}, err
	}
	entityKind, err := domain.ParseEntityKind(m.EntityKind)
	if err != nil {
		return domain.Event{}, err
	}

	event := domain.Event{
		Kind: kind,
		Tenant: domain.Tenant{
			ID:     strings.TrimSpace(m.TenantID),
			Schema: strings.TrimSpace(m.TenantSchema),
		},
		Entity:        domain.EntityRef{Kind: entityKind, ID: m.EntityID},
		CorrelationID: m.CorrelationID,
		OccurredAt:    m.OccurredAt,
	}
	if m.ProductKind != "" {
		productKind := domain.ProductKind(strings.ToUpper(strings.TrimSpace(m.ProductKind)))
		if m.ProductID <= 0 {
			return domain.Event{}, fmt.Errorf("%w: productId must be positive", domain.ErrValidation)
		}
		event.Entity.Product = &domain.ProductRef{Kind: productKind, ID: m.ProductID}
	}

	if err := event.Validate(); err != nil {
		return domain.Event{}, err
	}
	return event, nil
}
