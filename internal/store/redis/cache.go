// Package redis caches candle series and fans analysis snapshots out over
// pub/sub. All calls run through a circuit breaker so a Redis outage degrades
// the service to cache misses instead of stalling every analysis.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"smc-enginev1/internal/model"
)

const defaultSeriesTTL = 5 * time.Minute

// Config configures the cache connection.
type Config struct {
	Addr     string // e.g. "localhost:6379"
	Password string
	DB       int
	TTL      time.Duration // series cache TTL; zero selects the default
}

// Cache wraps a Redis client with series caching and snapshot publishing.
type Cache struct {
	client  *goredis.Client
	breaker *CircuitBreaker
	ttl     time.Duration
}

// New connects and pings the server. The breaker opens after 5 consecutive
// failures and probes again after 10s.
func New(cfg Config) (*Cache, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultSeriesTTL
	}
	cb := NewCircuitBreaker(5, 10*time.Second)
	cb.OnStateChange = func(from, to State) {
		log.Printf("[redis] circuit breaker %s -> %s", from, to)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Cache{client: client, breaker: cb, ttl: ttl}, nil
}

// Client exposes the underlying client for health checks.
func (c *Cache) Client() *goredis.Client { return c.client }

// BreakerState reports the current circuit breaker state.
func (c *Cache) BreakerState() State { return c.breaker.CurrentState() }

func seriesKey(pair, timeframe string) string {
	return "series:" + pair + ":" + timeframe
}

// SnapshotChannel is the pub/sub channel snapshots for (pair, timeframe) go to.
func SnapshotChannel(pair, timeframe string) string {
	return "pub:smc:" + pair + ":" + timeframe
}

// GetSeries returns the cached series for (pair, timeframe) and whether it
// was present. Breaker-open and decode failures both count as misses.
func (c *Cache) GetSeries(ctx context.Context, pair, timeframe string) (*model.CandleSeries, bool) {
	var raw string
	err := c.breaker.Execute(func() error {
		var err error
		raw, err = c.client.Get(ctx, seriesKey(pair, timeframe)).Result()
		if err == goredis.Nil {
			raw = ""
			return nil
		}
		return err
	})
	if err != nil || raw == "" {
		return nil, false
	}

	var s model.CandleSeries
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		log.Printf("[redis] corrupt cached series %s:%s: %v", pair, timeframe, err)
		return nil, false
	}
	if s.Len() == 0 {
		return nil, false
	}
	return &s, true
}

// SetSeries stores the series under its (pair, timeframe) key with the
// configured TTL.
func (c *Cache) SetSeries(ctx context.Context, s *model.CandleSeries) error {
	return c.breaker.Execute(func() error {
		return c.client.Set(ctx, seriesKey(s.Pair, s.Timeframe), s.JSON(), c.ttl).Err()
	})
}

// PublishSnapshot implements model.SnapshotPublisher.
func (c *Cache) PublishSnapshot(ctx context.Context, pair, timeframe string, payload []byte) error {
	return c.breaker.Execute(func() error {
		return c.client.Publish(ctx, SnapshotChannel(pair, timeframe), payload).Err()
	})
}

// Subscribe opens a pub/sub subscription on the snapshot channels for the
// given (pair, timeframe) keys. The caller owns the returned PubSub.
func (c *Cache) Subscribe(ctx context.Context, channels ...string) *goredis.PubSub {
	return c.client.Subscribe(ctx, channels...)
}

// Ping reports connectivity for health checks, bypassing the breaker.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the client.
func (c *Cache) Close() error {
	return c.client.Close()
}
