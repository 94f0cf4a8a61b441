package report

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/kursadbilgin/campaign-dispatch/internal/domain"
)

// Column aliases report queries are expected to select. Lookup ignores case.
const (
	colLoanID             = "loanId"
	colLoanAmount         = "loanAmount"
	colAnnualInterestRate = "annualInterestRate"
	colSubmittedOnDate    = "submittedon_date"
	colApprovedOnDate     = "approvedon_date"
	colDisbursedOnDate    = "disbursedon_date"
	colLoanProductName    = "loan_product_name"
	colOfficerID          = "officerId"
	colOfficerFirstName   = "officerFirstname"
	colOfficerDisplayName = "officerDisplayName"
	colTransactionID      = "transactionId"
	colTransactionAmount  = "transactionAmount"
	colOutstandingBalance = "outstandingBalance"
	colTransactionDate    = "transactionDate"
	colAccountID          = "accountId"
	colAccountNumber      = "accountNumber"
	colNubanAccountNumber = "nubanAccountNumber"
	colSavingsProductName = "savings_product_name"
	colDepositAmount      = "depositAmount"
	colWithdrawalAmount   = "withdrawalAmount"
	colAccountBalance     = "accountBalance"
	colClientID           = "clientId"
	colDateOfBirth        = "dateOfBirth"
	colClientFirstName    = "clientFirstName"
	colClientDisplayName  = "clientDisplayName"
	colClientEmail        = "email_address"
	colClientPhone        = "mobile_no"
)

var clientColumns = []string{colClientFirstName, colClientDisplayName, colClientEmail, colClientPhone}

var requiredColumns = map[domain.EntityKind][]string{
	domain.EntityLoan: append([]string{
		colLoanID, colLoanAmount, colAnnualInterestRate, colSubmittedOnDate, colLoanProductName,
	}, clientColumns...),
	domain.EntityLoanTransaction: append([]string{
		colLoanID, colTransactionAmount, colOutstandingBalance, colTransactionDate, colLoanProductName,
	}, clientColumns...),
	domain.EntitySavingsAccount: append([]string{
		colAccountID, colAccountNumber, colSubmittedOnDate, colSavingsProductName,
	}, clientColumns...),
	domain.EntitySavingsTransaction: append([]string{
		colTransactionID, colAccountNumber, colAccountBalance, colTransactionDate, colSavingsProductName,
	}, clientColumns...),
	domain.EntityClient: append([]string{colDateOfBirth}, clientColumns...),
}

var dateLayouts = []string{"2006-01-02", time.RFC3339Nano, "2006-01-02 15:04:05"}

// rowReader reads typed values out of one result row. The first conversion
// failure is kept in err and later reads become no-ops.
type rowReader struct {
	index  map[string]int
	values []any
	err    error
}

func newRowReader(columns []string, values []any) *rowReader {
	index := make(map[string]int, len(columns))
	for i, col := range columns {
		key := strings.ToLower(strings.TrimSpace(col))
		if _, exists := index[key]; !exists {
			index[key] = i
		}
	}
	return &rowReader{index: index, values: values}
}

func (r *rowReader) has(col string) bool {
	_, ok := r.index[strings.ToLower(col)]
	return ok
}

func (r *rowReader) missing(cols []string) []string {
	var out []string
	for _, col := range cols {
		if !r.has(col) {
			out = append(out, col)
		}
	}
	return out
}

func (r *rowReader) raw(col string) any {
	if r.err != nil {
		return nil
	}
	i, ok := r.index[strings.ToLower(col)]
	if !ok {
		return nil
	}
	return r.values[i]
}

func (r *rowReader) fail(col string, v any, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("column %s: cannot convert %T: %w", col, v, err)
	}
}

func (r *rowReader) clientFields() domain.ClientFields {
	return domain.ClientFields{
		ClientFirstName:   r.text(colClientFirstName),
		ClientDisplayName: r.text(colClientDisplayName),
		ClientEmail:       r.text(colClientEmail),
		ClientPhoneNumber: r.text(colClientPhone),
	}
}

func (r *rowReader) id(col string) *int64 {
	v := r.raw(col)
	if v == nil {
		return nil
	}

	var out int64
	switch value := v.(type) {
	case int64:
		out = value
	case int32:
		out = int64(value)
	case int:
		out = int64(value)
	case float64:
		if value != math.Trunc(value) {
			r.fail(col, v, fmt.Errorf("non-integral value %v", value))
			return nil
		}
		out = int64(value)
	case []byte:
		return r.parseID(col, string(value))
	case string:
		return r.parseID(col, value)
	default:
		r.fail(col, v, fmt.Errorf("unsupported type"))
		return nil
	}
	return &out
}

func (r *rowReader) parseID(col, s string) *int64 {
	out, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		r.fail(col, s, err)
		return nil
	}
	return &out
}

func (r *rowReader) decimal(col string) *domain.Decimal {
	v := r.raw(col)
	if v == nil {
		return nil
	}
	d, err := domain.ParseDecimal(v)
	if err != nil {
		r.fail(col, v, err)
		return nil
	}
	return &d
}

func (r *rowReader) text(col string) *string {
	v := r.raw(col)
	if v == nil {
		return nil
	}

	var out string
	switch value := v.(type) {
	case string:
		out = value
	case []byte:
		out = string(value)
	case int64:
		out = strconv.FormatInt(value, 10)
	case int32:
		out = strconv.FormatInt(int64(value), 10)
	case int:
		out = strconv.Itoa(value)
	case time.Time:
		out = value.Format("2006-01-02")
	default:
		r.fail(col, v, fmt.Errorf("unsupported type"))
		return nil
	}
	return &out
}

func (r *rowReader) date(col string) *time.Time {
	v := r.raw(col)
	if v == nil {
		return nil
	}

	switch value := v.(type) {
	case time.Time:
		return &value
	case []byte:
		return r.parseDate(col, string(value))
	case string:
		return r.parseDate(col, value)
	}
	r.fail(col, v, fmt.Errorf("unsupported type"))
	return nil
}

func (r *rowReader) parseDate(col, s string) *time.Time {
	trimmed := strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return &t
		}
	}
	r.fail(col, s, fmt.Errorf("unrecognised date %q", s))
	return nil
}
