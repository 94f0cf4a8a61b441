package repository

import (
	"time"

	"github.com/kursadbilgin/campaign-dispatch/internal/domain"
)

// CampaignModel is the persistence model for the campaigns table.
type CampaignModel struct {
	ID                int64              `gorm:"primaryKey;autoIncrement"`
	TenantID          string             `gorm:"type:varchar(64);not null"`
	Name              string             `gorm:"type:varchar(255);not null"`
	TriggerKind       domain.TriggerKind `gorm:"type:varchar(20);not null"`
	TriggerName       domain.TriggerName `gorm:"type:varchar(64);not null"`
	LoanProductID     *int64
	SavingsProductID  *int64
	ReportSQL         string     `gorm:"column:report_sql;type:text;not null"`
	PayloadTemplate   string     `gorm:"type:text;not null"`
	EndpointURL       string     `gorm:"column:endpoint_url;type:text;not null"`
	APIKeyHeader      *string    `gorm:"column:api_key_header;type:varchar(128)"`
	APIKey            *string    `gorm:"column:api_key;type:text"`
	MaxRetries        *int       `gorm:"type:int"`
	RetryDelaySeconds *int       `gorm:"type:int"`
	Enabled           bool       `gorm:"not null;default:true"`
	SpecificDate      *time.Time `gorm:"type:date"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (CampaignModel) TableName() string {
	return "campaigns"
}

// DeliveryLogModel is the persistence model for campaign_delivery_logs.
type DeliveryLogModel struct {
	ID             string                `gorm:"type:uuid;primaryKey"`
	TenantID       string                `gorm:"type:varchar(64);not null"`
	CampaignID     int64                 `gorm:"not null"`
	CampaignName   string                `gorm:"type:varchar(255);not null"`
	TriggerName    domain.TriggerName    `gorm:"type:varchar(64);not null"`
	EntityKind     domain.EntityKind     `gorm:"type:varchar(32);not null"`
	EntityID       int64                 `gorm:"not null"`
	Payload        string                `gorm:"type:text;not null"`
	Status         domain.DeliveryStatus `gorm:"type:varchar(20);not null"`
	AttemptCount   int                   `gorm:"not null;default:0"`
	MaxAttempts    int                   `gorm:"not null"`
	LastError      *string               `gorm:"type:text"`
	LastStatusCode *int                  `gorm:"type:int"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CompletedAt    *time.Time
}

func (DeliveryLogModel) TableName() string {
	return "campaign_delivery_logs"
}

// DeliveryAttemptModel is the persistence model for campaign_delivery_attempts.
type DeliveryAttemptModel struct {
	ID             string  `gorm:"type:uuid;primaryKey"`
	LogID          string  `gorm:"type:uuid;not null"`
	AttemptNumber  int     `gorm:"not null"`
	StatusCode     *int    `gorm:"type:int"`
	ResponseBody   *string `gorm:"type:text"`
	Error          *string `gorm:"type:text"`
	DurationMillis int64   `gorm:"not null;default:0"`
	CreatedAt      time.Time
}

func (DeliveryAttemptModel) TableName() string {
	return "campaign_delivery_attempts"
}

func campaignModelFromDomain(c *domain.Campaign) *CampaignModel {
	if c == nil {
		return nil
	}

	model := &CampaignModel{
		ID:               c.ID,
		TenantID:         c.TenantID,
		Name:             c.Name,
		TriggerKind:      c.TriggerKind,
		TriggerName:      c.TriggerName,
		LoanProductID:    c.LoanProductID,
		SavingsProductID: c.SavingsProductID,
		ReportSQL:        c.ReportSQL,
		PayloadTemplate:  c.PayloadTemplate,
		EndpointURL:      c.EndpointURL,
		APIKeyHeader:     optionalString(c.APIKeyHeader),
		APIKey:           optionalString(c.APIKey),
		MaxRetries:       c.MaxRetries,
		Enabled:          c.Enabled,
		SpecificDate:     c.SpecificDate,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
	if c.RetryDelay != nil {
		seconds := int(c.RetryDelay.Seconds())
		model.RetryDelaySeconds = &seconds
	}
	return model
}

func campaignModelToDomain(m *CampaignModel) *domain.Campaign {
	if m == nil {
		return nil
	}

	c := &domain.Campaign{
		ID:               m.ID,
		TenantID:         m.TenantID,
		Name:             m.Name,
		TriggerKind:      m.TriggerKind,
		TriggerName:      m.TriggerName,
		LoanProductID:    m.LoanProductID,
		SavingsProductID: m.SavingsProductID,
		ReportSQL:        m.ReportSQL,
		PayloadTemplate:  m.PayloadTemplate,
		EndpointURL:      m.EndpointURL,
		MaxRetries:       m.MaxRetries,
		Enabled:          m.Enabled,
		SpecificDate:     m.SpecificDate,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
	if m.APIKeyHeader != nil {
		c.APIKeyHeader = *m.APIKeyHeader
	}
	if m.APIKey != nil {
		c.APIKey = *m.APIKey
	}
	if m.RetryDelaySeconds != nil {
		delay := time.Duration(*m.RetryDelaySeconds) * time.Second
		c.RetryDelay = &delay
	}
	return c
}

func deliveryLogModelFromDomain(l *domain.DeliveryLog) *DeliveryLogModel {
	if l == nil {
		return nil
	}

	return &DeliveryLogModel{
		ID:             l.ID,
		TenantID:       l.TenantID,
		CampaignID:     l.CampaignID,
		CampaignName:   l.CampaignName,
		TriggerName:    l.TriggerName,
		EntityKind:     l.EntityKind,
		EntityID:       l.EntityID,
		Payload:        l.Payload,
		Status:         l.Status,
		AttemptCount:   l.AttemptCount,
		MaxAttempts:    l.MaxAttempts,
		LastError:      l.LastError,
		LastStatusCode: l.LastStatusCode,
		CreatedAt:      l.CreatedAt,
		UpdatedAt:      l.UpdatedAt,
		CompletedAt:    l.CompletedAt,
	}
}

func deliveryLogModelToDomain(m *DeliveryLogModel) *domain.DeliveryLog {
	if m == nil {
		return nil
	}

	return &domain.DeliveryLog{
		ID:             m.ID,
		TenantID:       m.TenantID,
		CampaignID:     m.CampaignID,
		CampaignName:   m.CampaignName,
		TriggerName:    m.TriggerName,
		EntityKind:     m.EntityKind,
		EntityID:       m.EntityID,
		Payload:        m.Payload,
		Status:         m.Status,
		AttemptCount:   m.AttemptCount,
		MaxAttempts:    m.MaxAttempts,
		LastError:      m.LastError,
		LastStatusCode: m.LastStatusCode,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
		CompletedAt:    m.CompletedAt,
	}
}

func attemptModelFromDomain(a *domain.DeliveryAttempt) *DeliveryAttemptModel {
	if a == nil {
		return nil
	}

	return &DeliveryAttemptModel{
		ID:             a.ID,
		LogID:          a.LogID,
		AttemptNumber:  a.AttemptNumber,
		StatusCode:     a.StatusCode,
		ResponseBody:   a.ResponseBody,
		Error:          a.Error,
		DurationMillis: a.DurationMillis,
		CreatedAt:      a.CreatedAt,
	}
}

func attemptModelToDomain(m *DeliveryAttemptModel) *domain.DeliveryAttempt {
	if m == nil {
		return nil
	}

	return &domain.DeliveryAttempt{
		ID:             m.ID,
		LogID:          m.LogID,
		AttemptNumber:  m.AttemptNumber,
		StatusCode:     m.StatusCode,
		ResponseBody:   m.ResponseBody,
		Error:          m.Error,
		DurationMillis: m.DurationMillis,
		CreatedAt:      m.CreatedAt,
	}
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
