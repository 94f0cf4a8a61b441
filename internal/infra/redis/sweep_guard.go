package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const defaultClaimTTL = 48 * time.Hour

// SweepGuard records which (campaign, client) pairs a day's calendar sweep
// already dispatched so a re-run of the same day skips them.
type SweepGuard struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewSweepGuard(client *goredis.Client, ttl time.Duration) (*SweepGuard, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if ttl <= 0 {
		ttl = defaultClaimTTL
	}
	return &SweepGuard{client: client, ttl: ttl}, nil
}

// Claim returns true when the pair was not claimed yet for day.
func (g *SweepGuard) Claim(ctx context.Context, tenantID string, day time.Time, campaignID int64, clientID int64) (bool, error) {
	ok, err := g.client.SetNX(ctx, claimKey(tenantID, day, campaignID, clientID), 1, g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim sweep pair: %w", err)
	}
	return ok, nil
}

// Release drops a claim so a failed dispatch can be retried by a re-run.
func (g *SweepGuard) Release(ctx context.Context, tenantID string, day time.Time, campaignID int64, clientID int64) error {
	if err := g.client.Del(ctx, claimKey(tenantID, day, campaignID, clientID)).Err(); err != nil {
		return fmt.Errorf("failed to release sweep pair: %w", err)
	}
	return nil
}

func claimKey(tenantID string, day time.Time, campaignID int64, clientID int64) string {
	return fmt.Sprintf("sweep:%s:%s:%d:%d", tenantID, day.Format("2006-01-02"), campaignID, clientID)
}
