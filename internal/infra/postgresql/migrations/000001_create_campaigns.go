package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/campaign-dispatch/internal/repository"
	"gorm.io/gorm"
)

func createCampaignsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_campaigns",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.CampaignModel{}); err != nil {
				return err
			}
			return execAll(tx, []string{
				`CREATE INDEX IF NOT EXISTS idx_campaigns_tenant_trigger ON campaigns (tenant_id, trigger_name, id) WHERE enabled`,
				`ALTER TABLE campaigns DROP CONSTRAINT IF EXISTS chk_campaigns_single_product_scope`,
				`ALTER TABLE campaigns ADD CONSTRAINT chk_campaigns_single_product_scope CHECK (loan_product_id IS NULL OR savings_product_id IS NULL)`,
			})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.CampaignModel{})
		},
	}
}
