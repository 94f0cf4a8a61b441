package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/kursadbilgin/campaign-dispatch/internal/domain"
	"github.com/kursadbilgin/campaign-dispatch/internal/infra/postgresql"
	"gorm.io/gorm"
)

// clientStatusActive is the ledger's m_client.status_enum for active clients.
const clientStatusActive = 300

// LedgerRepository reads from the tenant's ledger tables. All reads run
// inside the tenant schema.
type LedgerRepository interface {
	QueryReport(ctx context.Context, tenant domain.Tenant, query string) (*domain.ResultSet, error)
	ListActiveClients(ctx context.Context, tenant domain.Tenant, afterID int64, limit int) ([]domain.Client, error)
}

type GormLedgerRepo struct {
	db            *gorm.DB
	defaultSchema string
}

func NewGormLedgerRepo(db *gorm.DB, defaultSchema string) *GormLedgerRepo {
	return &GormLedgerRepo{db: db, defaultSchema: defaultSchema}
}

func (r *GormLedgerRepo) schema(tenant domain.Tenant) string {
	if tenant.Schema != "" {
		return tenant.Schema
	}
	return r.defaultSchema
}

func (r *GormLedgerRepo) QueryReport(ctx context.Context, tenant domain.Tenant, query string) (*domain.ResultSet, error) {
	var rs domain.ResultSet

	err := postgresql.WithTenantSchema(ctx, r.db, r.schema(tenant), func(tx *gorm.DB) error {
		rows, err := tx.Raw(query).Rows()
		if err != nil {
			return err
		}
		defer rows.Close()

		columns, err := rows.Columns()
		if err != nil {
			return err
		}
		rs.Columns = columns

		for rows.Next() {
			values := make([]any, len(columns))
			dest := make([]any, len(columns))
			for i := range values {
				dest[i] = &values[i]
			}
			if err := rows.Scan(dest...); err != nil {
				return err
			}
			rs.Rows = append(rs.Rows, values)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("query report for tenant %s: %w", tenant.ID, err)
	}

	return &rs, nil
}

type clientRow struct {
	ID          int64      `gorm:"column:id"`
	DateOfBirth *time.Time `gorm:"column:date_of_birth"`
}

// ListActiveClients returns up to limit active clients with id greater than
// afterID, ordered by id.
func (r *GormLedgerRepo) ListActiveClients(ctx context.Context, tenant domain.Tenant, afterID int64, limit int) ([]domain.Client, error) {
	var rows []clientRow

	err := postgresql.WithTenantSchema(ctx, r.db, r.schema(tenant), func(tx *gorm.DB) error {
		return tx.Raw(
			`SELECT id, date_of_birth FROM m_client WHERE status_enum = ? AND id > ? ORDER BY id ASC LIMIT ?`,
			clientStatusActive, afterID, limit,
		).Scan(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list active clients for tenant %s: %w", tenant.ID, err)
	}

	clients := make([]domain.Client, 0, len(rows))
	for _, row := range rows {
		clients = append(clients, domain.Client{ID: row.ID, DateOfBirth: row.DateOfBirth})
	}
	return clients, nil
}
