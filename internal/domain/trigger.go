package domain

import (
	"fmt"
	"strings"
)

// TriggerName is the fixed label a campaign is tagged with.
type TriggerName string

const (
	TriggerLoanCreated       TriggerName = "Loan Created - API"
	TriggerLoanApproved      TriggerName = "Loan Approved - API"
	TriggerLoanDisbursed     TriggerName = "Loan Disbursed - API"
	TriggerLoanRepayment     TriggerName = "Loan Repayment - API"
	TriggerSavingsCreated    TriggerName = "Savings Account Created - API"
	TriggerSavingsDeposit    TriggerName = "Savings Account Deposit - API"
	TriggerSavingsWithdrawal TriggerName = "Savings Account Withdrawal - API"
	TriggerBirthday          TriggerName = "Birthday Event - API"
	TriggerSpecialEvent      TriggerName = "Special Event - API"
)

var triggerEntityKinds = map[TriggerName]EntityKind{
	TriggerLoanCreated:       EntityLoan,
	TriggerLoanApproved:      EntityLoan,
	TriggerLoanDisbursed:     EntityLoan,
	TriggerLoanRepayment:     EntityLoanTransaction,
	TriggerSavingsCreated:    EntitySavingsAccount,
	TriggerSavingsDeposit:    EntitySavingsTransaction,
	TriggerSavingsWithdrawal: EntitySavingsTransaction,
	TriggerBirthday:          EntityClient,
	TriggerSpecialEvent:      EntityClient,
}

func (t TriggerName) String() string { return string(t) }

func (t TriggerName) IsValid() bool {
	_, ok := triggerEntityKinds[t]
	return ok
}

// EntityKind returns the kind of entity whose report feeds campaigns with this trigger.
func (t TriggerName) EntityKind() EntityKind {
	return triggerEntityKinds[t]
}

func ParseTriggerName(s string) (TriggerName, error) {
	trimmed := strings.TrimSpace(s)
	for name := range triggerEntityKinds {
		if strings.EqualFold(string(name), trimmed) {
			return name, nil
		}
	}
	return "", fmt.Errorf("%w: invalid trigger name %q", ErrValidation, s)
}

// TriggerKind classifies how a campaign is activated.
type TriggerKind string

const (
	TriggerKindEntityEvent TriggerKind = "ENTITY_EVENT"
	TriggerKindBirthday    TriggerKind = "BIRTHDAY"
	TriggerKindFixedDate   TriggerKind = "FIXED_DATE"
)

func (k TriggerKind) String() string { return string(k) }

func (k TriggerKind) IsValid() bool {
	switch k {
	case TriggerKindEntityEvent, TriggerKindBirthday, TriggerKindFixedDate:
		return true
	}
	return false
}

// EventKind tags an inbound ledger business event.
type EventKind string

const (
	EventLoanCreated       EventKind = "LOAN_CREATED"
	EventLoanApproved      EventKind = "LOAN_APPROVED"
	EventLoanDisbursed     EventKind = "LOAN_DISBURSED"
	EventLoanRepaymentMade EventKind = "LOAN_REPAYMENT_MADE"
	EventSavingsCreated    EventKind = "SAVINGS_CREATED"
	EventSavingsDeposit    EventKind = "SAVINGS_DEPOSIT"
	EventSavingsWithdrawal EventKind = "SAVINGS_WITHDRAWAL"
)

var eventTriggers = map[EventKind]TriggerName{
	EventLoanCreated:       TriggerLoanCreated,
	EventLoanApproved:      TriggerLoanApproved,
	EventLoanDisbursed:     TriggerLoanDisbursed,
	EventLoanRepaymentMade: TriggerLoanRepayment,
	EventSavingsCreated:    TriggerSavingsCreated,
	EventSavingsDeposit:    TriggerSavingsDeposit,
	EventSavingsWithdrawal: TriggerSavingsWithdrawal,
}

// EventKinds lists every inbound event kind in a stable order.
func EventKinds() []EventKind {
	return []EventKind{
		EventLoanCreated,
		EventLoanApproved,
		EventLoanDisbursed,
		EventLoanRepaymentMade,
		EventSavingsCreated,
		EventSavingsDeposit,
		EventSavingsWithdrawal,
	}
}

func (k EventKind) String() string { return string(k) }

func (k EventKind) IsValid() bool {
	_, ok := eventTriggers[k]
	return ok
}

// Trigger returns the campaign trigger name fired by this event kind.
func (k EventKind) Trigger() TriggerName {
	return eventTriggers[k]
}

func ParseEventKind(s string) (EventKind, error) {
	kind := EventKind(strings.ToUpper(strings.TrimSpace(s)))
	if !kind.IsValid() {
		return "", fmt.Errorf("%w: invalid event kind %q", ErrValidation, s)
	}
	return kind, nil
}
