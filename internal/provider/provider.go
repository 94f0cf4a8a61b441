package provider

import (
	"context"
)

// Provider is the outbound campaign delivery port.
type Provider interface {
	Deliver(ctx context.Context, req DeliveryRequest) (*DeliveryResponse, error)
}

// DeliveryRequest is one rendered payload addressed to a campaign endpoint.
type DeliveryRequest struct {
	EndpointURL   string
	APIKeyHeader  string
	APIKey        string
	Payload       string
	CorrelationID string
}

// DeliveryResponse stores endpoint call metadata for the delivery log.
type DeliveryResponse struct {
	StatusCode int
	Body       string
}
