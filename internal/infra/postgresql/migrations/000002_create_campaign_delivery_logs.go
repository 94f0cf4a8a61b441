package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/campaign-dispatch/internal/repository"
	"gorm.io/gorm"
)

func createDeliveryLogsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_campaign_delivery_logs",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.DeliveryLogModel{}); err != nil {
				return err
			}
			return execAll(tx, []string{
				`CREATE INDEX IF NOT EXISTS idx_delivery_logs_created ON campaign_delivery_logs (created_at, id)`,
				`CREATE INDEX IF NOT EXISTS idx_delivery_logs_campaign ON campaign_delivery_logs (tenant_id, campaign_id, created_at)`,
				`CREATE INDEX IF NOT EXISTS idx_delivery_logs_open ON campaign_delivery_logs (status) WHERE completed_at IS NULL`,
			})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.DeliveryLogModel{})
		},
	}
}
