package ratelimit

import (
	"context"
	"fmt"
)

// RateLimiter controls delivery throughput per key.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Wait(ctx context.Context, key string) error
}

// CampaignKey is the limiter key shared by every delivery of one campaign.
func CampaignKey(tenantID string, campaignID int64) string {
	return fmt.Sprintf("campaign:%s:%d", tenantID, campaignID)
}
