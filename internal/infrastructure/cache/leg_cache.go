// Package cache provides a Redis-backed leg-detail cache. Resolver lookups
// repeat across reconciliation runs for the same date range, and leg detail
// is immutable once the call has ended, so a short TTL saves most of the
// per-leg API traffic. The cache degrades gracefully: any Redis failure
// falls through to the underlying fetcher.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/davidleathers/call-reconciliation/internal/domain/routing"
	"github.com/davidleathers/call-reconciliation/internal/service/legs"
)

const legKeyPrefix = "recon:leg:"

// CachedLegFetcher wraps a legs.LegFetcher with a cache-aside Redis layer.
type CachedLegFetcher struct {
	next   legs.LegFetcher
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedLegFetcher creates the caching wrapper.
func NewCachedLegFetcher(next legs.LegFetcher, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedLegFetcher {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CachedLegFetcher{
		next:   next,
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// GetLegDetail implements legs.LegFetcher.
func (c *CachedLegFetcher) GetLegDetail(ctx context.Context, legID string) (*routing.CallLeg, error) {
	key := legKeyPrefix + legID

	data, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var leg routing.CallLeg
		if err := json.Unmarshal(data, &leg); err == nil {
			return &leg, nil
		}
		// Corrupt entry; drop it and refetch.
		c.client.Del(ctx, key)
	} else if err != redis.Nil {
		c.logger.Warn("leg cache read failed", zap.String("leg_id", legID), zap.Error(err))
	}

	leg, err := c.next.GetLegDetail(ctx, legID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(leg); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Warn("leg cache write failed", zap.String("leg_id", legID), zap.Error(err))
		}
	}

	return leg, nil
}
