package domain

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestEventKindTriggerMapping(t *testing.T) {
	t.Parallel()

	for _, kind := range EventKinds() {
		trigger := kind.Trigger()
		if !trigger.IsValid() {
			t.Fatalf("event %s maps to invalid trigger %q", kind, trigger)
		}
		if trigger.EntityKind() == EntityClient {
			t.Fatalf("event %s maps to calendar trigger %q", kind, trigger)
		}
	}

	if got := EventLoanRepaymentMade.Trigger(); got != TriggerLoanRepayment {
		t.Fatalf("repayment trigger = %q, want %q", got, TriggerLoanRepayment)
	}
	if got := EventSavingsDeposit.Trigger().EntityKind(); got != EntitySavingsTransaction {
		t.Fatalf("deposit entity kind = %s, want %s", got, EntitySavingsTransaction)
	}
}

func TestParseEventKind(t *testing.T) {
	t.Parallel()

	got, err := ParseEventKind(" loan_approved ")
	if err != nil {
		t.Fatalf("ParseEventKind() unexpected error = %v", err)
	}
	if got != EventLoanApproved {
		t.Fatalf("ParseEventKind() = %s, want %s", got, EventLoanApproved)
	}

	_, err = ParseEventKind("loan_closed")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("ParseEventKind() error = %v, want ErrValidation", err)
	}
}

func TestParseTriggerName(t *testing.T) {
	t.Parallel()

	got, err := ParseTriggerName("birthday event - api")
	if err != nil {
		t.Fatalf("ParseTriggerName() unexpected error = %v", err)
	}
	if got != TriggerBirthday {
		t.Fatalf("ParseTriggerName() = %q, want %q", got, TriggerBirthday)
	}

	_, err = ParseTriggerName("Anniversary - API")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("ParseTriggerName() error = %v, want ErrValidation", err)
	}
}

func TestParseDeliveryStatus(t *testing.T) {
	t.Parallel()

	got, err := ParseDeliveryStatus(" delivered ")
	if err != nil {
		t.Fatalf("ParseDeliveryStatus() unexpected error = %v", err)
	}
	if got != DeliveryDelivered || !got.IsTerminal() {
		t.Fatalf("ParseDeliveryStatus() = %s, want terminal DELIVERED", got)
	}
	if DeliveryRetryWait.IsTerminal() {
		t.Fatal("RETRY_WAIT must not be terminal")
	}
	if _, err := ParseDeliveryStatus("sent"); !errors.Is(err, ErrValidation) {
		t.Fatalf("ParseDeliveryStatus() error = %v, want ErrValidation", err)
	}
}

func TestEventValidate(t *testing.T) {
	t.Parallel()

	evt := Event{
		Kind:   EventLoanApproved,
		Tenant: Tenant{ID: "default"},
		Entity: EntityRef{Kind: EntityLoan, ID: 42},
	}
	if err := evt.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error = %v", err)
	}

	evt.Tenant = Tenant{}
	if err := evt.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("Validate() error = %v, want ErrValidation", err)
	}

	evt.Tenant = Tenant{ID: "default"}
	evt.Entity.ID = 0
	if err := evt.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("Validate() error = %v, want ErrValidation", err)
	}
}

func TestParseDecimal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   any
		want    Decimal
		wantErr bool
	}{
		{name: "numeric text keeps scale", input: "1000.00", want: "1000.00"},
		{name: "bytes", input: []byte("12.50"), want: "12.50"},
		{name: "int64", input: int64(42), want: "42"},
		{name: "float64", input: 12.5, want: "12.5"},
		{name: "garbage", input: "twelve", wantErr: true},
		{name: "unsupported", input: time.Now(), wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseDecimal(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDecimal() unexpected error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("ParseDecimal() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTypedErrorsUnwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	resolutionErr := &ReportResolutionError{
		CampaignID: 9,
		Entity:     EntityRef{Kind: EntityLoan, ID: 42},
		Reason:     "expected exactly one row, got 0",
		Cause:      cause,
	}
	if !errors.Is(resolutionErr, cause) {
		t.Fatal("ReportResolutionError should unwrap to its cause")
	}
	if !strings.Contains(resolutionErr.Error(), "LOAN:42") {
		t.Fatalf("Error() = %q, want entity reference", resolutionErr.Error())
	}

	exhausted := &DeliveryExhaustedError{Attempts: 3, LastErr: cause}
	if !errors.Is(exhausted, cause) {
		t.Fatal("DeliveryExhaustedError should unwrap to last error")
	}
	if !strings.Contains(exhausted.Error(), "3 attempts") {
		t.Fatalf("Error() = %q, want attempt count", exhausted.Error())
	}
}
