package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/campaign-dispatch/internal/domain"
	"github.com/kursadbilgin/campaign-dispatch/internal/export"
	"github.com/kursadbilgin/campaign-dispatch/internal/repository"
)

const tenantHeader = "X-Tenant-ID"

type DeliveryLogReader interface {
	GetByID(ctx context.Context, id string) (*domain.DeliveryLog, error)
	ListAttempts(ctx context.Context, logID string) ([]domain.DeliveryAttempt, error)
	List(ctx context.Context, params repository.LogListParams) ([]domain.DeliveryLog, int64, error)
}

type DeliveryLogHandler struct {
	logs DeliveryLogReader
}

func NewDeliveryLogHandler(logs DeliveryLogReader) (*DeliveryLogHandler, error) {
	if logs == nil {
		return nil, fmt.Errorf("delivery log reader is required")
	}
	return &DeliveryLogHandler{logs: logs}, nil
}

func RegisterDeliveryLogRoutes(router fiber.Router, logs DeliveryLogReader) error {
	h, err := NewDeliveryLogHandler(logs)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Get("/campaign-logs", h.ListLogs)
	v1.Get("/campaign-logs/export.xlsx", h.ExportLogs)
	v1.Get("/campaign-logs/:id", h.GetLog)

	return nil
}

type deliveryLogResponse struct {
	ID             string                    `json:"id"`
	TenantID       string                    `json:"tenantId"`
	CampaignID     int64                     `json:"campaignId"`
	CampaignName   string                    `json:"campaignName"`
	Trigger        string                    `json:"trigger"`
	EntityKind     string                    `json:"entityKind"`
	EntityID       int64                     `json:"entityId"`
	Payload        string                    `json:"payload"`
	Status         string                    `json:"status"`
	AttemptCount   int                       `json:"attemptCount"`
	MaxAttempts    int                       `json:"maxAttempts"`
	LastError      *string                   `json:"lastError,omitempty"`
	LastStatusCode *int                      `json:"lastStatusCode,omitempty"`
	CreatedAt      time.Time                 `json:"createdAt"`
	UpdatedAt      time.Time                 `json:"updatedAt"`
	CompletedAt    *time.Time                `json:"completedAt,omitempty"`
	Attempts       []deliveryAttemptResponse `json:"attempts,omitempty"`
}

type deliveryAttemptResponse struct {
	AttemptNumber  int       `json:"attemptNumber"`
	StatusCode     *int      `json:"statusCode,omitempty"`
	ResponseBody   *string   `json:"responseBody,omitempty"`
	Error          *string   `json:"error,omitempty"`
	DurationMillis int64     `json:"durationMillis"`
	CreatedAt      time.Time `json:"createdAt"`
}

type listLogsResponse struct {
	Data []deliveryLogResponse `json:"data"`
	Meta listMeta              `json:"meta"`
}

type listMeta struct {
	Offset int   `json:"offset"`
	Limit  int   `json:"limit"`
	Total  int64 `json:"total"`
}

func (h *DeliveryLogHandler) ListLogs(c *fiber.Ctx) error {
	params, err := parseLogListParams(c)
	if err != nil {
		return toHTTPError(err)
	}

	logs, total, err := h.logs.List(c.Context(), params)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(listLogsResponse{
		Data: toDeliveryLogResponses(logs),
		Meta: listMeta{
			Offset: params.Offset,
			Limit:  params.Limit,
			Total:  total,
		},
	})
}

func (h *DeliveryLogHandler) GetLog(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		return toHTTPError(fmt.Errorf("%w: id is required", domain.ErrValidation))
	}

	log, err := h.logs.GetByID(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}
	if tenantID := requestTenantID(c); tenantID != "" && log.TenantID != tenantID {
		return toHTTPError(fmt.Errorf("%w: delivery log %s", domain.ErrNotFound, id))
	}

	attempts, err := h.logs.ListAttempts(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	response := toDeliveryLogResponse(log)
	response.Attempts = make([]deliveryAttemptResponse, 0, len(attempts))
	for _, attempt := range attempts {
		response.Attempts = append(response.Attempts, deliveryAttemptResponse{
			AttemptNumber:  attempt.AttemptNumber,
			StatusCode:     attempt.StatusCode,
			ResponseBody:   attempt.ResponseBody,
			Error:          attempt.Error,
			DurationMillis: attempt.DurationMillis,
			CreatedAt:      attempt.CreatedAt,
		})
	}

	return c.Status(fiber.StatusOK).JSON(response)
}

func (h *DeliveryLogHandler) ExportLogs(c *fiber.Ctx) error {
	params, err := parseLogListParams(c)
	if err != nil {
		return toHTTPError(err)
	}

	logs, _, err := h.logs.List(c.Context(), params)
	if err != nil {
		return toHTTPError(err)
	}

	var buf bytes.Buffer
	if err := export.WriteDeliveryLogs(&buf, logs); err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, export.ContentType)
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="campaign-logs.xlsx"`)
	return c.Status(fiber.StatusOK).Send(buf.Bytes())
}

func parseLogListParams(c *fiber.Ctx) (repository.LogListParams, error) {
	params := repository.LogListParams{
		Offset: c.QueryInt("offset", 0),
		Limit:  c.QueryInt("limit", repository.DefaultLogPageLimit),
	}

	if params.Offset < 0 {
		return repository.LogListParams{}, fmt.Errorf("%w: offset must be >= 0", domain.ErrValidation)
	}
	if params.Limit < 1 || params.Limit > repository.MaxLogPageLimit {
		return repository.LogListParams{}, fmt.Errorf("%w: limit must be between 1 and %d", domain.ErrValidation, repository.MaxLogPageLimit)
	}

	if rawCampaignID := strings.TrimSpace(c.Query("campaignId")); rawCampaignID != "" {
		campaignID := int64(c.QueryInt("campaignId", 0))
		if campaignID <= 0 {
			return repository.LogListParams{}, fmt.Errorf("%w: campaignId must be a positive integer", domain.ErrValidation)
		}
		params.CampaignID = &campaignID
	}

	if rawTrigger := strings.TrimSpace(c.Query("trigger")); rawTrigger != "" {
		trigger, err := domain.ParseTriggerName(rawTrigger)
		if err != nil {
			return repository.LogListParams{}, err
		}
		params.TriggerName = &trigger
	}

	if rawStatus := strings.TrimSpace(c.Query("status")); rawStatus != "" {
		status, err := domain.ParseDeliveryStatus(rawStatus)
		if err != nil {
			return repository.LogListParams{}, err
		}
		params.Status = &status
	}

	if tenantID := requestTenantID(c); tenantID != "" {
		params.TenantID = &tenantID
	}

	return params, nil
}

func requestTenantID(c *fiber.Ctx) string {
	return strings.TrimSpace(c.Get(tenantHeader))
}

func toDeliveryLogResponses(logs []domain.DeliveryLog) []deliveryLogResponse {
	responses := make([]deliveryLogResponse, 0, len(logs))
	for _, log := range logs {
		l := log
		responses = append(responses, toDeliveryLogResponse(&l))
	}
	return responses
}

func toDeliveryLogResponse(l *domain.DeliveryLog) deliveryLogResponse {
	if l == nil {
		return deliveryLogResponse{}
	}

	return deliveryLogResponse{
		ID:             l.ID,
		TenantID:       l.TenantID,
		CampaignID:     l.CampaignID,
		CampaignName:   l.CampaignName,
		Trigger:        l.TriggerName.String(),
		EntityKind:     l.EntityKind.String(),
		EntityID:       l.EntityID,
		Payload:        l.Payload,
		Status:         l.Status.String(),
		AttemptCount:   l.AttemptCount,
		MaxAttempts:    l.MaxAttempts,
		LastError:      l.LastError,
		LastStatusCode: l.LastStatusCode,
		CreatedAt:      l.CreatedAt,
		UpdatedAt:      l.UpdatedAt,
		CompletedAt:    l.CompletedAt,
	}
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return err
	}
}
