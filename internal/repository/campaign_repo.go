package repository

import (
	"context"

	"github.com/kursadbilgin/campaign-dispatch/internal/domain"
	"gorm.io/gorm"
)

// CampaignRepository reads the campaign definitions maintained by the
// campaign CRUD surface.
type CampaignRepository interface {
	FindActiveByTrigger(ctx context.Context, tenantID string, trigger domain.TriggerName) ([]domain.Campaign, error)
}

type GormCampaignRepo struct {
	db *gorm.DB
}

func NewGormCampaignRepo(db *gorm.DB) *GormCampaignRepo {
	return &GormCampaignRepo{db: db}
}

// FindActiveByTrigger returns enabled campaigns for the trigger ordered by id.
func (r *GormCampaignRepo) FindActiveByTrigger(ctx context.Context, tenantID string, trigger domain.TriggerName) ([]domain.Campaign, error) {
	var models []CampaignModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND trigger_name = ? AND enabled = ?", tenantID, trigger, true).
		Order("id ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	campaigns := make([]domain.Campaign, 0, len(models))
	for i := range models {
		campaigns = append(campaigns, *campaignModelToDomain(&models[i]))
	}

	return campaigns, nil
}
