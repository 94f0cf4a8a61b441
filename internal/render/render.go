package render

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/kursadbilgin/campaign-dispatch/internal/domain"
)

const dateLayout = "2006-01-02"

// Render substitutes the ${name} tokens the report variant knows about.
// Absent fields and unknown tokens are left in place. Substituted values are
// never rescanned.
func Render(template string, report domain.ReportRecord) string {
	values := fieldValues(report)
	if len(values) == 0 {
		return template
	}

	pairs := make([]string, 0, len(values)*2)
	for name, value := range values {
		token := "${" + name + "}"
		if strings.Contains(template, token) {
			pairs = append(pairs, token, value)
		}
	}
	if len(pairs) == 0 {
		return template
	}

	return strings.NewReplacer(pairs...).Replace(template)
}

// fields collects the rendered value of every present field. Strings share
// one encoder for the whole report.
type fields struct {
	values map[string]string
	buf    bytes.Buffer
	enc    *json.Encoder
}

func fieldValues(report domain.ReportRecord) map[string]string {
	f := &fields{values: make(map[string]string)}
	f.enc = json.NewEncoder(&f.buf)
	f.enc.SetEscapeHTML(false)
	f.collect(report)
	return f.values
}

func (f *fields) collect(report domain.ReportRecord) {
	switch r := report.(type) {
	case domain.LoanReport:
		f.client(r.ClientFields)
		f.number("loanId", r.LoanID)
		f.decimal("loanAmount", r.LoanAmount)
		f.decimal("annualInterestRate", r.AnnualInterestRate)
		f.date("submittedOnDate", r.SubmittedOnDate)
		f.text("loanProductName", r.LoanProductName)
		f.date("approvedOnDate", r.ApprovedOnDate)
		f.date("disbursedOnDate", r.DisbursedOnDate)
		f.number("officerId", r.OfficerID)
		f.text("officerFirstName", r.OfficerFirstName)
		f.text("officerDisplayName", r.OfficerDisplayName)
	case *domain.LoanReport:
		if r != nil {
			f.collect(*r)
		}
	case domain.LoanTransactionReport:
		f.client(r.ClientFields)
		f.number("loanId", r.LoanID)
		f.number("transactionId", r.TransactionID)
		f.decimal("transactionAmount", r.TransactionAmount)
		f.decimal("outstandingBalance", r.OutstandingBalance)
		f.date("transactionDate", r.TransactionDate)
		f.text("loanProductName", r.LoanProductName)
	case *domain.LoanTransactionReport:
		if r != nil {
			f.collect(*r)
		}
	case domain.SavingsAccountReport:
		f.client(r.ClientFields)
		f.number("savingsAccountId", r.SavingsAccountID)
		f.text("accountNumber", r.AccountNumber)
		f.text("nubanAccountNumber", r.NubanAccountNumber)
		f.date("submittedOnDate", r.SubmittedOnDate)
		f.text("savingsProductName", r.SavingsProductName)
	case *domain.SavingsAccountReport:
		if r != nil {
			f.collect(*r)
		}
	case domain.SavingsTransactionReport:
		f.client(r.ClientFields)
		f.number("transactionId", r.TransactionID)
		f.text("accountNumber", r.AccountNumber)
		f.text("nubanAccountNumber", r.NubanAccountNumber)
		f.decimal("transactionAmount", r.TransactionAmount)
		switch r.Direction {
		case domain.DirectionDeposit:
			f.decimal("depositAmount", r.TransactionAmount)
		case domain.DirectionWithdrawal:
			f.decimal("withdrawalAmount", r.TransactionAmount)
		}
		f.decimal("accountBalance", r.AccountBalance)
		f.date("transactionDate", r.TransactionDate)
		f.text("savingsProductName", r.SavingsProductName)
	case *domain.SavingsTransactionReport:
		if r != nil {
			f.collect(*r)
		}
	case domain.ClientReport:
		f.client(r.ClientFields)
		f.number("clientId", r.ClientID)
		f.date("dateOfBirth", r.DateOfBirth)
	case *domain.ClientReport:
		if r != nil {
			f.collect(*r)
		}
	}
}

func (f *fields) client(c domain.ClientFields) {
	f.text("clientFirstName", c.ClientFirstName)
	f.text("clientDisplayName", c.ClientDisplayName)
	f.text("clientEmail", c.ClientEmail)
	f.text("clientPhoneNumber", c.ClientPhoneNumber)
}

func (f *fields) number(name string, p *int64) {
	if p != nil {
		f.values[name] = strconv.FormatInt(*p, 10)
	}
}

func (f *fields) decimal(name string, p *domain.Decimal) {
	if p != nil {
		f.values[name] = p.String()
	}
}

func (f *fields) text(name string, p *string) {
	if p != nil {
		f.values[name] = f.quote(*p)
	}
}

// date values are digits and dashes only, so they need no escaping.
func (f *fields) date(name string, p *time.Time) {
	if p != nil {
		f.values[name] = `"` + p.Format(dateLayout) + `"`
	}
}

// quote renders s as a JSON string literal without HTML escaping.
func (f *fields) quote(s string) string {
	f.buf.Reset()
	if err := f.enc.Encode(s); err != nil {
		return strconv.Quote(s)
	}
	return strings.TrimSuffix(f.buf.String(), "\n")
}
