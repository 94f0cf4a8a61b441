package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Decimal is an exact decimal amount kept as the text the ledger store
// returned, so scale survives rendering (1000.00 stays 1000.00).
type Decimal string

func (d Decimal) String() string { return string(d) }

func ParseDecimal(v any) (Decimal, error) {
	switch value := v.(type) {
	case Decimal:
		return value, nil
	case int64:
		return Decimal(strconv.FormatInt(value, 10)), nil
	case int32:
		return Decimal(strconv.FormatInt(int64(value), 10)), nil
	case int:
		return Decimal(strconv.Itoa(value)), nil
	case float64:
		return Decimal(strconv.FormatFloat(value, 'f', -1, 64)), nil
	case float32:
		return Decimal(strconv.FormatFloat(float64(value), 'f', -1, 32)), nil
	case []byte:
		return parseDecimalText(string(value))
	case string:
		return parseDecimalText(value)
	}
	return "", fmt.Errorf("unsupported decimal type %T", v)
}

func parseDecimalText(s string) (Decimal, error) {
	trimmed := strings.TrimSpace(s)
	if _, err := strconv.ParseFloat(trimmed, 64); err != nil {
		return "", fmt.Errorf("invalid decimal %q", s)
	}
	return Decimal(trimmed), nil
}

// ResultSet is a tabular query result as returned by the ledger store.
type ResultSet struct {
	Columns []string
	Rows    [][]any
}

// ReportRecord is the closed set of entity-specific report variants.
type ReportRecord interface {
	EntityKind() EntityKind
	sealed()
}

// ClientFields are the contact and display fields every variant carries.
type ClientFields struct {
	ClientFirstName   *string
	ClientDisplayName *string
	ClientEmail       *string
	ClientPhoneNumber *string
}

type LoanReport struct {
	ClientFields
	LoanID             *int64
	LoanAmount         *Decimal
	AnnualInterestRate *Decimal
	SubmittedOnDate    *time.Time
	LoanProductName    *string
	ApprovedOnDate     *time.Time
	DisbursedOnDate    *time.Time
	OfficerID          *int64
	OfficerFirstName   *string
	OfficerDisplayName *string
}

type LoanTransactionReport struct {
	ClientFields
	LoanID             *int64
	TransactionID      *int64
	TransactionAmount  *Decimal
	OutstandingBalance *Decimal
	TransactionDate    *time.Time
	LoanProductName    *string
}

type SavingsAccountReport struct {
	ClientFields
	SavingsAccountID   *int64
	AccountNumber      *string
	NubanAccountNumber *string
	SubmittedOnDate    *time.Time
	SavingsProductName *string
}

// TransactionDirection records which amount column a savings transaction
// report was resolved from.
type TransactionDirection string

const (
	DirectionDeposit    TransactionDirection = "DEPOSIT"
	DirectionWithdrawal TransactionDirection = "WITHDRAWAL"
)

type SavingsTransactionReport struct {
	ClientFields
	TransactionID      *int64
	AccountNumber      *string
	NubanAccountNumber *string
	TransactionAmount  *Decimal
	Direction          TransactionDirection
	AccountBalance     *Decimal
	TransactionDate    *time.Time
	SavingsProductName *string
}

type ClientReport struct {
	ClientFields
	ClientID    *int64
	DateOfBirth *time.Time
}

func (LoanReport) EntityKind() EntityKind               { return EntityLoan }
func (LoanTransactionReport) EntityKind() EntityKind    { return EntityLoanTransaction }
func (SavingsAccountReport) EntityKind() EntityKind     { return EntitySavingsAccount }
func (SavingsTransactionReport) EntityKind() EntityKind { return EntitySavingsTransaction }
func (ClientReport) EntityKind() EntityKind             { return EntityClient }

func (LoanReport) sealed()               {}
func (LoanTransactionReport) sealed()    {}
func (SavingsAccountReport) sealed()     {}
func (SavingsTransactionReport) sealed() {}
func (ClientReport) sealed()             {}
