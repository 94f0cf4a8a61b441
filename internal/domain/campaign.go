package domain

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const DefaultAPIKeyHeader = "X-API-Key"

// Campaign binds a trigger, a report query, a payload template and an
// external delivery endpoint.
type Campaign struct {
	ID               int64
	TenantID         string
	Name             string
	TriggerKind      TriggerKind
	TriggerName      TriggerName
	LoanProductID    *int64
	SavingsProductID *int64
	ReportSQL        string
	PayloadTemplate  string
	EndpointURL      string
	APIKeyHeader     string
	APIKey           string
	MaxRetries       *int
	RetryDelay       *time.Duration
	Enabled          bool
	SpecificDate     *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (c *Campaign) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: campaign name is required", ErrValidation)
	}
	if !c.TriggerKind.IsValid() {
		return fmt.Errorf("%w: invalid trigger kind %q", ErrValidation, c.TriggerKind)
	}
	if !c.TriggerName.IsValid() {
		return fmt.Errorf("%w: invalid trigger name %q", ErrValidation, c.TriggerName)
	}
	switch c.TriggerKind {
	case TriggerKindBirthday:
		if c.TriggerName != TriggerBirthday {
			return fmt.Errorf("%w: birthday campaigns must use trigger %q", ErrValidation, TriggerBirthday)
		}
	case TriggerKindFixedDate:
		if c.TriggerName != TriggerSpecialEvent {
			return fmt.Errorf("%w: fixed-date campaigns must use trigger %q", ErrValidation, TriggerSpecialEvent)
		}
		if c.SpecificDate == nil {
			return fmt.Errorf("%w: fixed-date campaigns require a specific date", ErrValidation)
		}
	case TriggerKindEntityEvent:
		if c.TriggerName.EntityKind() == EntityClient {
			return fmt.Errorf("%w: trigger %q is not an entity event", ErrValidation, c.TriggerName)
		}
	}
	if strings.TrimSpace(c.ReportSQL) == "" {
		return fmt.Errorf("%w: report query is required", ErrValidation)
	}
	if _, err := url.ParseRequestURI(strings.TrimSpace(c.EndpointURL)); err != nil {
		return fmt.Errorf("%w: invalid endpoint url: %v", ErrValidation, err)
	}
	if c.MaxRetries != nil && *c.MaxRetries < 0 {
		return fmt.Errorf("%w: max retries must not be negative", ErrValidation)
	}
	if c.RetryDelay != nil && *c.RetryDelay < 0 {
		return fmt.Errorf("%w: retry delay must not be negative", ErrValidation)
	}
	return nil
}

// AppliesTo reports whether the campaign's product scope admits an entity
// of the given product. A scoped campaign never matches an entity whose
// product is unknown.
func (c *Campaign) AppliesTo(product *ProductRef) bool {
	if c.LoanProductID != nil {
		if product == nil || product.Kind != ProductLoan || product.ID != *c.LoanProductID {
			return false
		}
	}
	if c.SavingsProductID != nil {
		if product == nil || product.Kind != ProductSavings || product.ID != *c.SavingsProductID {
			return false
		}
	}
	return true
}

// FiresOn reports whether a fixed-date campaign is due on day.
func (c *Campaign) FiresOn(day time.Time) bool {
	if c.SpecificDate == nil {
		return false
	}
	return SameMonthDay(*c.SpecificDate, day)
}

// EffectiveMaxRetries returns the campaign override or the engine default.
func (c *Campaign) EffectiveMaxRetries(fallback int) int {
	if c.MaxRetries != nil {
		return *c.MaxRetries
	}
	if fallback < 0 {
		return 0
	}
	return fallback
}

// EffectiveRetryDelay returns the campaign override or the engine default.
func (c *Campaign) EffectiveRetryDelay(fallback time.Duration) time.Duration {
	if c.RetryDelay != nil {
		return *c.RetryDelay
	}
	return fallback
}

func (c *Campaign) HeaderName() string {
	if h := strings.TrimSpace(c.APIKeyHeader); h != "" {
		return h
	}
	return DefaultAPIKeyHeader
}
