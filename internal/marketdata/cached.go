package marketdata

import (
	"context"
	"log"

	"smc-enginev1/internal/model"
	"smc-enginev1/internal/store/redis"
)

// Cached is a read-through decorator: serve the series from Redis when the
// cached window is large enough, otherwise hit the underlying provider and
// store the result. Cache failures never fail the request — the provider is
// the source of truth.
type Cached struct {
	source model.CandleProvider
	cache  *redis.Cache

	// OnHit and OnMiss, when set, feed the cache metrics.
	OnHit  func()
	OnMiss func()
}

// NewCached wraps source with the Redis series cache.
func NewCached(source model.CandleProvider, cache *redis.Cache) *Cached {
	return &Cached{source: source, cache: cache}
}

// Candles implements model.CandleProvider.
func (c *Cached) Candles(ctx context.Context, pair, timeframe string, count int) (*model.CandleSeries, error) {
	if s, ok := c.cache.GetSeries(ctx, pair, timeframe); ok && s.Len() >= count {
		if c.OnHit != nil {
			c.OnHit()
		}
		if s.Len() == count {
			return s, nil
		}
		// cached window is wider than requested; trim to the newest count
		return model.NewCandleSeries(pair, timeframe, s.Candles[s.Len()-count:])
	}
	if c.OnMiss != nil {
		c.OnMiss()
	}

	s, err := c.source.Candles(ctx, pair, timeframe, count)
	if err != nil {
		return nil, err
	}
	if err := c.cache.SetSeries(ctx, s); err != nil {
		log.Printf("[marketdata] cache store %s:%s: %v", pair, timeframe, err)
	}
	return s, nil
}
