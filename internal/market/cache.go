package market

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Cache TTLs. Klines on intraday timeframes move once per bar close, so a
// short TTL keeps repeat scans cheap without serving stale bars. Mark price
// feeds proximity alerts and must stay fresh.
const (
	klineCacheTTL = 30 * time.Second
	priceCacheTTL = 2 * time.Second

	klineKeyPrefix = "sentinel:klines"
	priceKeyPrefix = "sentinel:price"
)

// CachedDataSource wraps a DataSource with a Redis-backed cache. When Redis
// is unavailable it falls back to a small in-memory cache so scanning
// continues without interruption.
type CachedDataSource struct {
	source DataSource
	rdb    *redis.Client
	logger zerolog.Logger

	mu  sync.RWMutex
	mem map[string]memEntry
}

type memEntry struct {
	payload   []byte
	expiresAt time.Time
}

// NewCachedDataSource wraps source with caching. rdb may be nil, in which
// case only the in-memory fallback is used.
func NewCachedDataSource(source DataSource, rdb *redis.Client, logger zerolog.Logger) *CachedDataSource {
	return &CachedDataSource{
		source: source,
		rdb:    rdb,
		logger: logger.With().Str("component", "MarketCache").Logger(),
		mem:    make(map[string]memEntry),
	}
}

// GetKlines returns cached klines when fresh, fetching through otherwise
func (c *CachedDataSource) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]Kline, error) {
	key := fmt.Sprintf("%s:%s:%s:%d", klineKeyPrefix, symbol, interval, limit)

	if payload, ok := c.lookup(ctx, key); ok {
		var klines []Kline
		if err := json.Unmarshal(payload, &klines); err == nil {
			return klines, nil
		}
	}

	klines, err := c.source.GetKlines(ctx, symbol, interval, limit)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(klines); err == nil {
		c.store(ctx, key, payload, klineCacheTTL)
	}

	return klines, nil
}

// GetMarkPrice returns a cached mark price when fresh, fetching through otherwise
func (c *CachedDataSource) GetMarkPrice(ctx context.Context, symbol string) (float64, error) {
	key := fmt.Sprintf("%s:%s", priceKeyPrefix, symbol)

	if payload, ok := c.lookup(ctx, key); ok {
		var price float64
		if err := json.Unmarshal(payload, &price); err == nil {
			return price, nil
		}
	}

	price, err := c.source.GetMarkPrice(ctx, symbol)
	if err != nil {
		return 0, err
	}

	if payload, err := json.Marshal(price); err == nil {
		c.store(ctx, key, payload, priceCacheTTL)
	}

	return price, nil
}

func (c *CachedDataSource) lookup(ctx context.Context, key string) ([]byte, bool) {
	if c.rdb != nil {
		payload, err := c.rdb.Get(ctx, key).Bytes()
		if err == nil {
			return payload, true
		}
		if err != redis.Nil {
			c.logger.Debug().Err(err).Str("key", key).Msg("Redis lookup failed, using memory fallback")
		}
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.mem[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.payload, true
}

func (c *CachedDataSource) store(ctx context.Context, key string, payload []byte, ttl time.Duration) {
	if c.rdb != nil {
		if err := c.rdb.Set(ctx, key, payload, ttl).Err(); err != nil {
			c.logger.Debug().Err(err).Str("key", key).Msg("Redis store failed, using memory fallback")
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.mem[key] = memEntry{payload: payload, expiresAt: time.Now().Add(ttl)}

	// Opportunistic sweep keeps the fallback map from growing unbounded
	if len(c.mem) > 4096 {
		now := time.Now()
		for k, e := range c.mem {
			if now.After(e.expiresAt) {
				delete(c.mem, k)
			}
		}
	}
}
