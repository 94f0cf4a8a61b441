package domain

import (
	"fmt"
	"strings"
	"time"
)

// EntityKind identifies the ledger entity that triggered a campaign.
type EntityKind string

const (
	EntityLoan               EntityKind = "LOAN"
	EntityLoanTransaction    EntityKind = "LOAN_TRANSACTION"
	EntitySavingsAccount     EntityKind = "SAVINGS_ACCOUNT"
	EntitySavingsTransaction EntityKind = "SAVINGS_TRANSACTION"
	EntityClient             EntityKind = "CLIENT"
)

func (k EntityKind) String() string { return string(k) }

func (k EntityKind) IsValid() bool {
	switch k {
	case EntityLoan, EntityLoanTransaction, EntitySavingsAccount, EntitySavingsTransaction, EntityClient:
		return true
	}
	return false
}

func ParseEntityKind(s string) (EntityKind, error) {
	kind := EntityKind(strings.ToUpper(strings.TrimSpace(s)))
	if !kind.IsValid() {
		return "", fmt.Errorf("%w: invalid entity kind %q", ErrValidation, s)
	}
	return kind, nil
}

// ProductKind separates loan products from savings products.
type ProductKind string

const (
	ProductLoan    ProductKind = "LOAN"
	ProductSavings ProductKind = "SAVINGS"
)

// ProductRef is the product an entity belongs to.
type ProductRef struct {
	Kind ProductKind
	ID   int64
}

// EntityRef points at the entity a dispatch was created for.
type EntityRef struct {
	Kind    EntityKind
	ID      int64
	Product *ProductRef
}

func (r EntityRef) String() string {
	return fmt.Sprintf("%s:%d", r.Kind, r.ID)
}

func (r EntityRef) Validate() error {
	if !r.Kind.IsValid() {
		return fmt.Errorf("%w: invalid entity kind %q", ErrValidation, r.Kind)
	}
	if r.ID <= 0 {
		return fmt.Errorf("%w: entity id must be positive", ErrValidation)
	}
	if r.Product != nil && r.Product.Kind != ProductLoan && r.Product.Kind != ProductSavings {
		return fmt.Errorf("%w: invalid product kind %q", ErrValidation, r.Product.Kind)
	}
	return nil
}

// Event is a ledger business event as delivered by the event bus.
type Event struct {
	Kind          EventKind
	Tenant        Tenant
	Entity        EntityRef
	CorrelationID string
	OccurredAt    time.Time
}

func (e Event) Validate() error {
	if !e.Kind.IsValid() {
		return fmt.Errorf("%w: invalid event kind %q", ErrValidation, e.Kind)
	}
	if strings.TrimSpace(e.Tenant.ID) == "" {
		return fmt.Errorf("%w: tenant is required", ErrValidation)
	}
	return e.Entity.Validate()
}

// Client is the slice of a ledger client the calendar sweep needs.
type Client struct {
	ID          int64
	DateOfBirth *time.Time
}

// SameMonthDay reports whether a and b fall on the same calendar month and day, ignoring the year.
func SameMonthDay(a, b time.Time) bool {
	return a.Month() == b.Month() && a.Day() == b.Day()
}
