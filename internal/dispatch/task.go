package dispatch

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/campaign-dispatch/internal/domain"
)

var (
	ErrQueueFull  = errors.New("dispatch queue is full")
	ErrPoolClosed = errors.New("dispatch pool is closed")
)

// Task is one rendered payload to deliver for one campaign and entity. The
// campaign is a snapshot taken when the task was built.
type Task struct {
	Campaign      domain.Campaign
	Payload       string
	Entity        domain.EntityRef
	Tenant        domain.Tenant
	CorrelationID string

	logID       string
	attempts    int
	maxAttempts int
	retryDelay  time.Duration
	lastErr     error
}

func (t *Task) validate() error {
	if t.Tenant.IsZero() {
		return fmt.Errorf("%w: task tenant is required", domain.ErrValidation)
	}
	if t.Campaign.ID <= 0 {
		return fmt.Errorf("%w: task campaign id is required", domain.ErrValidation)
	}
	if strings.TrimSpace(t.Campaign.EndpointURL) == "" {
		return fmt.Errorf("%w: campaign %d has no endpoint", domain.ErrValidation, t.Campaign.ID)
	}
	return t.Entity.Validate()
}
