package repository

import (
	"context"
	"errors"
	"time"

	"github.com/kursadbilgin/campaign-dispatch/internal/domain"
	"gorm.io/gorm"
)

const (
	DefaultLogPageLimit = 50
	MaxLogPageLimit     = 200
)

type LogListParams struct {
	TenantID    *string
	CampaignID  *int64
	TriggerName *domain.TriggerName
	Status      *domain.DeliveryStatus
	Offset      int
	Limit       int
}

type DeliveryLogRepository interface {
	Create(ctx context.Context, l *domain.DeliveryLog) error
	AppendAttempt(ctx context.Context, a *domain.DeliveryAttempt) error
	UpdateState(ctx context.Context, id string, update domain.DeliveryStateUpdate) error
	GetByID(ctx context.Context, id string) (*domain.DeliveryLog, error)
	ListAttempts(ctx context.Context, logID string) ([]domain.DeliveryAttempt, error)
	List(ctx context.Context, params LogListParams) ([]domain.DeliveryLog, int64, error)
}

type GormDeliveryLogRepo struct {
	db *gorm.DB
}

func NewGormDeliveryLogRepo(db *gorm.DB) *GormDeliveryLogRepo {
	return &GormDeliveryLogRepo{db: db}
}

func (r *GormDeliveryLogRepo) Create(ctx context.Context, l *domain.DeliveryLog) error {
	model := deliveryLogModelFromDomain(l)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if l != nil {
		*l = *deliveryLogModelToDomain(model)
	}
	return nil
}

func (r *GormDeliveryLogRepo) AppendAttempt(ctx context.Context, a *domain.DeliveryAttempt) error {
	model := attemptModelFromDomain(a)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if a != nil {
		*a = *attemptModelToDomain(model)
	}
	return nil
}

func (r *GormDeliveryLogRepo) UpdateState(ctx context.Context, id string, update domain.DeliveryStateUpdate) error {
	result := r.db.WithContext(ctx).
		Model(&DeliveryLogModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":           update.Status,
			"attempt_count":    update.AttemptCount,
			"last_error":       update.LastError,
			"last_status_code": update.LastStatusCode,
			"completed_at":     update.CompletedAt,
			"updated_at":       time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormDeliveryLogRepo) GetByID(ctx context.Context, id string) (*domain.DeliveryLog, error) {
	var model DeliveryLogModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return deliveryLogModelToDomain(&model), nil
}

func (r *GormDeliveryLogRepo) ListAttempts(ctx context.Context, logID string) ([]domain.DeliveryAttempt, error) {
	var models []DeliveryAttemptModel
	err := r.db.WithContext(ctx).
		Where("log_id = ?", logID).
		Order("attempt_number ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	attempts := make([]domain.DeliveryAttempt, 0, len(models))
	for i := range models {
		attempts = append(attempts, *attemptModelToDomain(&models[i]))
	}

	return attempts, nil
}

// List returns one page of logs in insertion order plus the total count of
// logs matching the filters.
func (r *GormDeliveryLogRepo) List(ctx context.Context, params LogListParams) ([]domain.DeliveryLog, int64, error) {
	query := r.db.WithContext(ctx).Model(&DeliveryLogModel{})

	if params.TenantID != nil {
		query = query.Where("tenant_id = ?", *params.TenantID)
	}
	if params.CampaignID != nil {
		query = query.Where("campaign_id = ?", *params.CampaignID)
	}
	if params.TriggerName != nil {
		query = query.Where("trigger_name = ?", *params.TriggerName)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset, limit := NormalizePage(params.Offset, params.Limit)

	var models []DeliveryLogModel
	err := query.
		Order("created_at ASC").
		Order("id ASC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	logs := make([]domain.DeliveryLog, 0, len(models))
	for i := range models {
		logs = append(logs, *deliveryLogModelToDomain(&models[i]))
	}

	return logs, total, nil
}

// NormalizePage clamps offset and limit to the accepted page window.
func NormalizePage(offset, limit int) (int, int) {
	offset = max(offset, 0)
	if limit < 1 {
		limit = DefaultLogPageLimit
	}
	return offset, min(limit, MaxLogPageLimit)
}
