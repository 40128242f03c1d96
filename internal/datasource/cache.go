package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goredis "github.com/go-redis/redis/v8"
	cache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/vcp-scanner/internal/metrics"
	"github.com/yourusername/vcp-scanner/internal/models"
)

const keyPrefix = "vcp:bars"

// BarCache is a shared cache tier behind the in-process cache
type BarCache interface {
	Get(ctx context.Context, key string) ([]models.Bar, bool, error)
	Set(ctx context.Context, key string, bars []models.Bar, ttl time.Duration) error
}

// RedisCache stores bar slices as JSON strings in Redis
type RedisCache struct {
	client *goredis.Client
}

// RedisConfig configures the Redis tier
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisCache connects to Redis and pings the server
func NewRedisCache(cfg RedisConfig) (*RedisCache, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisCache{client: client}, nil
}

// Get returns cached bars; a missing key is a miss, not an error
func (r *RedisCache) Get(ctx context.Context, key string) ([]models.Bar, bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err == goredis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	var bars []models.Bar
	if err := json.Unmarshal(data, &bars); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached bars: %w", err)
	}
	return bars, true, nil
}

// Set stores bars under key with ttl
func (r *RedisCache) Set(ctx context.Context, key string, bars []models.Bar, ttl time.Duration) error {
	data, err := json.Marshal(bars)
	if err != nil {
		return fmt.Errorf("marshal bars: %w", err)
	}
	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Close closes the Redis client
func (r *RedisCache) Close() error {
	return r.client.Close()
}

// CachedProvider decorates a provider with an in-process cache and an optional shared tier.
// Only successful fetches are cached.
type CachedProvider struct {
	next   BarProvider
	local  *cache.Cache
	shared BarCache
	ttl    time.Duration
	logger *logrus.Entry
}

// NewCachedProvider wraps next. shared may be nil.
func NewCachedProvider(next BarProvider, ttl time.Duration, shared BarCache, logger *logrus.Logger) *CachedProvider {
	if logger == nil {
		logger = logrus.New()
	}
	return &CachedProvider{
		next:   next,
		local:  cache.New(ttl, ttl*2),
		shared: shared,
		ttl:    ttl,
		logger: logger.WithField("component", "bar_cache"),
	}
}

// Name returns the wrapped provider's name
func (c *CachedProvider) Name() string {
	return c.next.Name()
}

// GetBars serves from memory, then the shared tier, then the wrapped provider
func (c *CachedProvider) GetBars(ctx context.Context, symbol string, start, end time.Time) ([]models.Bar, error) {
	key := cacheKey(c.next.Name(), symbol, start, end)

	if cached, found := c.local.Get(key); found {
		if bars, ok := cached.([]models.Bar); ok {
			metrics.RecordCacheHit("memory")
			return copyBars(bars), nil
		}
	}
	metrics.RecordCacheMiss("memory")

	if c.shared != nil {
		bars, found, err := c.shared.Get(ctx, key)
		switch {
		case err != nil:
			c.logger.WithError(err).WithField("symbol", symbol).Warn("Shared cache read failed")
		case found:
			metrics.RecordCacheHit("redis")
			c.local.Set(key, bars, c.ttl)
			return copyBars(bars), nil
		default:
			metrics.RecordCacheMiss("redis")
		}
	}

	bars, err := c.next.GetBars(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}

	c.local.Set(key, copyBars(bars), c.ttl)
	if c.shared != nil {
		if err := c.shared.Set(ctx, key, bars, c.ttl); err != nil {
			c.logger.WithError(err).WithField("symbol", symbol).Warn("Shared cache write failed")
		}
	}
	return bars, nil
}

// Invalidate drops every cached range for symbol from the in-process tier
func (c *CachedProvider) Invalidate(symbol string) {
	prefix := fmt.Sprintf("%s:%s:%s:", keyPrefix, c.next.Name(), strings.ToUpper(symbol))
	for key := range c.local.Items() {
		if strings.HasPrefix(key, prefix) {
			c.local.Delete(key)
		}
	}
}

func cacheKey(provider, symbol string, start, end time.Time) string {
	return fmt.Sprintf("%s:%s:%s:%s:%s", keyPrefix, provider, strings.ToUpper(symbol), start.Format(dateLayout), end.Format(dateLayout))
}

func copyBars(bars []models.Bar) []models.Bar {
	out := make([]models.Bar, len(bars))
	copy(out, bars)
	return out
}
