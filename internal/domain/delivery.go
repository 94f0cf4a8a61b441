package domain

import (
	"fmt"
	"strings"
	"time"
)

// DeliveryStatus is the state of one dispatch.
type DeliveryStatus string

const (
	DeliveryPending    DeliveryStatus = "PENDING"
	DeliveryAttempting DeliveryStatus = "ATTEMPTING"
	DeliveryRetryWait  DeliveryStatus = "RETRY_WAIT"
	DeliveryDelivered  DeliveryStatus = "DELIVERED"
	DeliveryExhausted  DeliveryStatus = "EXHAUSTED"
	DeliveryCanceled   DeliveryStatus = "CANCELED"
)

func (s DeliveryStatus) String() string { return string(s) }

func (s DeliveryStatus) IsValid() bool {
	switch s {
	case DeliveryPending, DeliveryAttempting, DeliveryRetryWait, DeliveryDelivered, DeliveryExhausted, DeliveryCanceled:
		return true
	}
	return false
}

func (s DeliveryStatus) IsTerminal() bool {
	switch s {
	case DeliveryDelivered, DeliveryExhausted, DeliveryCanceled:
		return true
	}
	return false
}

func ParseDeliveryStatus(s string) (DeliveryStatus, error) {
	st := DeliveryStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid delivery status %q", ErrValidation, s)
	}
	return st, nil
}

// DeliveryLog is the durable record of one dispatch.
type DeliveryLog struct {
	ID             string
	TenantID       string
	CampaignID     int64
	CampaignName   string
	TriggerName    TriggerName
	EntityKind     EntityKind
	EntityID       int64
	Payload        string
	Status         DeliveryStatus
	AttemptCount   int
	MaxAttempts    int
	LastError      *string
	LastStatusCode *int
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CompletedAt    *time.Time
}

// DeliveryAttempt records a single HTTP call made for a dispatch.
type DeliveryAttempt struct {
	ID             string
	LogID          string
	AttemptNumber  int
	StatusCode     *int
	ResponseBody   *string
	Error          *string
	DurationMillis int64
	CreatedAt      time.Time
}

// DeliveryStateUpdate is applied to a log on each state transition.
type DeliveryStateUpdate struct {
	Status         DeliveryStatus
	AttemptCount   int
	LastError      *string
	LastStatusCode *int
	CompletedAt    *time.Time
}
