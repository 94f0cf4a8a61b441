package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/campaign-dispatch/internal/domain"
)

const (
	defaultWebhookTimeout = 10 * time.Second
	maxRecordedBodyBytes  = 4096
	correlationIDHeader   = "X-Correlation-ID"
)

// WebhookProvider posts rendered payloads to campaign endpoints.
type WebhookProvider struct {
	client *resty.Client
}

func NewWebhookProvider(timeout time.Duration) *WebhookProvider {
	client := resty.New()
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	client.SetTimeout(timeout)
	client.SetRetryCount(0)

	provider, _ := NewWebhookProviderWithClient(client)
	return provider
}

func NewWebhookProviderWithClient(client *resty.Client) (*WebhookProvider, error) {
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultWebhookTimeout)
	}
	client.SetRetryCount(0)

	return &WebhookProvider{client: client}, nil
}

// Deliver sends the payload verbatim as the request body. It performs a
// single attempt; retries belong to the dispatcher.
func (p *WebhookProvider) Deliver(ctx context.Context, req DeliveryRequest) (*DeliveryResponse, error) {
	if p == nil || p.client == nil {
		return nil, fmt.Errorf("provider is not initialized")
	}

	endpoint := strings.TrimSpace(req.EndpointURL)
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, &DeliveryTransportError{
			Message: "invalid endpoint url",
			Cause:   fmt.Errorf("%w: %v", domain.ErrValidation, err),
		}
	}

	request := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req.Payload)
	if req.APIKey != "" {
		header := strings.TrimSpace(req.APIKeyHeader)
		if header == "" {
			header = domain.DefaultAPIKeyHeader
		}
		request.SetHeader(header, req.APIKey)
	}
	if req.CorrelationID != "" {
		request.SetHeader(correlationIDHeader, req.CorrelationID)
	}

	response, err := request.Post(endpoint)
	if err != nil {
		return nil, &DeliveryTransportError{
			Message:   "endpoint request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}
	if response == nil {
		return nil, &DeliveryTransportError{
			Message:   "endpoint returned empty response",
			Transient: true,
		}
	}

	statusCode := response.StatusCode()
	responseBody := truncateBody(strings.TrimSpace(response.String()))

	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return &DeliveryResponse{
			StatusCode: statusCode,
			Body:       responseBody,
		}, nil
	}

	return nil, &DeliveryTransportError{
		StatusCode: statusCode,
		Message:    fmt.Sprintf("endpoint returned status %d", statusCode),
		Body:       responseBody,
		Transient:  isTransientHTTPStatus(statusCode),
	}
}

func isTransientHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || (statusCode >= http.StatusInternalServerError && statusCode <= 599)
}

func truncateBody(body string) string {
	if len(body) <= maxRecordedBodyBytes {
		return body
	}
	return body[:maxRecordedBodyBytes]
}
