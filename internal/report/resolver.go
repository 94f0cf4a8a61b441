package report

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/kursadbilgin/campaign-dispatch/internal/domain"
	"go.uber.org/zap"
)

// LedgerQuerier runs a campaign report query against a tenant's ledger.
type LedgerQuerier interface {
	QueryReport(ctx context.Context, tenant domain.Tenant, query string) (*domain.ResultSet, error)
}

var placeholders = map[domain.EntityKind]string{
	domain.EntityLoan:               "${loanId}",
	domain.EntityLoanTransaction:    "${transactionId}",
	domain.EntitySavingsAccount:     "${savingsId}",
	domain.EntitySavingsTransaction: "${savingsTransactionId}",
	domain.EntityClient:             "${clientId}",
}

// Placeholder returns the token a report query uses for the entity id.
func Placeholder(kind domain.EntityKind) string {
	return placeholders[kind]
}

type Resolver struct {
	querier LedgerQuerier
	logger  *zap.Logger
}

func NewResolver(querier LedgerQuerier, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{querier: querier, logger: logger}
}

// Resolve runs the campaign report for one entity and decodes the single
// resulting row into the variant matching the entity kind.
func (r *Resolver) Resolve(ctx context.Context, tenant domain.Tenant, campaign domain.Campaign, entity domain.EntityRef) (domain.ReportRecord, error) {
	fail := func(reason string, cause error) error {
		return &domain.ReportResolutionError{
			CampaignID: campaign.ID,
			Entity:     entity,
			Reason:     reason,
			Cause:      cause,
		}
	}

	placeholder, ok := placeholders[entity.Kind]
	if !ok {
		return nil, fail(fmt.Sprintf("unsupported entity kind %q", entity.Kind), nil)
	}
	if expected := campaign.TriggerName.EntityKind(); expected != entity.Kind {
		return nil, fail(fmt.Sprintf("trigger %q expects %s entities", campaign.TriggerName, expected), nil)
	}

	query := strings.ReplaceAll(campaign.ReportSQL, placeholder, strconv.FormatInt(entity.ID, 10))
	rs, err := r.querier.QueryReport(ctx, tenant, query)
	if err != nil {
		return nil, fail("report query failed", err)
	}
	if rs == nil || len(rs.Rows) != 1 {
		count := 0
		if rs != nil {
			count = len(rs.Rows)
		}
		return nil, fail(fmt.Sprintf("expected exactly one row, got %d", count), nil)
	}
	if len(rs.Rows[0]) != len(rs.Columns) {
		return nil, fail(fmt.Sprintf("row has %d values for %d columns", len(rs.Rows[0]), len(rs.Columns)), nil)
	}

	row := newRowReader(rs.Columns, rs.Rows[0])
	if missing := row.missing(requiredColumns[entity.Kind]); len(missing) > 0 {
		return nil, fail("missing required columns: "+strings.Join(missing, ", "), nil)
	}

	record, err := decode(entity.Kind, row)
	if err != nil {
		return nil, fail("invalid report row", err)
	}

	r.logger.Debug("report resolved",
		zap.Int64("campaignId", campaign.ID),
		zap.String("entity", entity.String()),
	)

	return record, nil
}

func decode(kind domain.EntityKind, row *rowReader) (domain.ReportRecord, error) {
	var record domain.ReportRecord

	switch kind {
	case domain.EntityLoan:
		record = domain.LoanReport{
			ClientFields:       row.clientFields(),
			LoanID:             row.id(colLoanID),
			LoanAmount:         row.decimal(colLoanAmount),
			AnnualInterestRate: row.decimal(colAnnualInterestRate),
			SubmittedOnDate:    row.date(colSubmittedOnDate),
			LoanProductName:    row.text(colLoanProductName),
			ApprovedOnDate:     row.date(colApprovedOnDate),
			DisbursedOnDate:    row.date(colDisbursedOnDate),
			OfficerID:          row.id(colOfficerID),
			OfficerFirstName:   row.text(colOfficerFirstName),
			OfficerDisplayName: row.text(colOfficerDisplayName),
		}
	case domain.EntityLoanTransaction:
		record = domain.LoanTransactionReport{
			ClientFields:       row.clientFields(),
			LoanID:             row.id(colLoanID),
			TransactionID:      row.id(colTransactionID),
			TransactionAmount:  row.decimal(colTransactionAmount),
			OutstandingBalance: row.decimal(colOutstandingBalance),
			TransactionDate:    row.date(colTransactionDate),
			LoanProductName:    row.text(colLoanProductName),
		}
	case domain.EntitySavingsAccount:
		record = domain.SavingsAccountReport{
			ClientFields:       row.clientFields(),
			SavingsAccountID:   row.id(colAccountID),
			AccountNumber:      row.text(colAccountNumber),
			NubanAccountNumber: row.text(colNubanAccountNumber),
			SubmittedOnDate:    row.date(colSubmittedOnDate),
			SavingsProductName: row.text(colSavingsProductName),
		}
	case domain.EntitySavingsTransaction:
		hasDeposit, hasWithdrawal := row.has(colDepositAmount), row.has(colWithdrawalAmount)
		if hasDeposit == hasWithdrawal {
			return nil, fmt.Errorf("exactly one of %s or %s is required", colDepositAmount, colWithdrawalAmount)
		}

		report := domain.SavingsTransactionReport{
			ClientFields:       row.clientFields(),
			TransactionID:      row.id(colTransactionID),
			AccountNumber:      row.text(colAccountNumber),
			NubanAccountNumber: row.text(colNubanAccountNumber),
			AccountBalance:     row.decimal(colAccountBalance),
			TransactionDate:    row.date(colTransactionDate),
			SavingsProductName: row.text(colSavingsProductName),
		}
		if hasDeposit {
			report.Direction = domain.DirectionDeposit
			report.TransactionAmount = row.decimal(colDepositAmount)
		} else {
			report.Direction = domain.DirectionWithdrawal
			report.TransactionAmount = row.decimal(colWithdrawalAmount)
		}
		record = report
	case domain.EntityClient:
		record = domain.ClientReport{
			ClientFields: row.clientFields(),
			ClientID:     row.id(colClientID),
			DateOfBirth:  row.date(colDateOfBirth),
		}
	default:
		return nil, fmt.Errorf("unsupported entity kind %q", kind)
	}

	if row.err != nil {
		return nil, row.err
	}
	return record, nil
}
