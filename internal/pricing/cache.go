package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/marketwatch-backend/pkg/logger"
	"github.com/angelmondragon/marketwatch-backend/pkg/metrics"
)

const trendCacheKind = "trend"

// CacheStore is the slice of the redis client used by the trend cache.
type CacheStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CacheKey(kind, id string) string
}

// TrendCache is a cache-aside store for computed trends. A nil cache, or
// one without a store, always misses. Cache failures are logged and never
// surface to callers.
type TrendCache struct {
	store   CacheStore
	ttl     time.Duration
	metrics *metrics.PricingMetrics
	logg    *logger.Logger
}

func NewTrendCache(store CacheStore, ttl time.Duration, m *metrics.PricingMetrics, logg *logger.Logger) *TrendCache {
	return &TrendCache{store: store, ttl: ttl, metrics: m, logg: logg}
}

func (c *TrendCache) enabled() bool {
	return c != nil && c.store != nil && c.ttl > 0
}

func (c *TrendCache) Get(ctx context.Context, listingID uuid.UUID) (*TrendDTO, bool) {
	if !c.enabled() {
		return nil, false
	}
	raw, err := c.store.Get(ctx, c.store.CacheKey(trendCacheKind, listingID.String()))
	if errors.Is(err, redis.Nil) || (err == nil && raw == "") {
		c.metrics.CacheMiss()
		return nil, false
	}
	if err != nil {
		c.metrics.CacheError()
		c.warn(ctx, "trend_cache.get_failed", listingID, err)
		return nil, false
	}
	var dto TrendDTO
	if err := json.Unmarshal([]byte(raw), &dto); err != nil {
		c.metrics.CacheError()
		c.warn(ctx, "trend_cache.decode_failed", listingID, err)
		return nil, false
	}
	c.metrics.CacheHit()
	return &dto, true
}

func (c *TrendCache) Put(ctx context.Context, dto *TrendDTO) {
	if !c.enabled() || dto == nil {
		return
	}
	payload, err := json.Marshal(dto)
	if err != nil {
		return
	}
	if err := c.store.Set(ctx, c.store.CacheKey(trendCacheKind, dto.ListingID.String()), string(payload), c.ttl); err != nil {
		c.metrics.CacheError()
		c.warn(ctx, "trend_cache.set_failed", dto.ListingID, err)
	}
}

// Invalidate drops the cached trend of a listing after its series changed.
func (c *TrendCache) Invalidate(ctx context.Context, listingID uuid.UUID) {
	if !c.enabled() {
		return
	}
	if err := c.store.Del(ctx, c.store.CacheKey(trendCacheKind, listingID.String())); err != nil {
		c.metrics.CacheError()
		c.warn(ctx, "trend_cache.invalidate_failed", listingID, err)
	}
}

func (c *TrendCache) warn(ctx context.Context, msg string, listingID uuid.UUID, err error) {
	if c.logg == nil {
		return
	}
	ctx = c.logg.WithFields(ctx, map[string]any{"listing_id": listingID.String(), "error": err.Error()})
	c.logg.Warn(ctx, msg)
}
