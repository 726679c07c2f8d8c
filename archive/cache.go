package archive

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/onnwee/streamportal/telemetry"
)

// DefaultCacheTTL protects the YouTube search quota between refreshes.
const DefaultCacheTTL = 10 * time.Minute

const defaultMaxEntries = 256

// Cache is a two-tier cache: an in-memory L1 and an optional Redis L2.
// Redis failures degrade to L1 only.
type Cache struct {
	ttl        time.Duration
	rdb        *redis.Client // nil disables L2
	maxEntries int
	now        func() time.Time

	mu sync.Mutex
	l1 map[string]cacheEntry
}

type cacheEntry struct {
	data      []byte
	expiresAt time.Time
}

// NewCache returns a cache with the given TTL. rdb may be nil.
func NewCache(ttl time.Duration, rdb *redis.Client) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{ttl: ttl, rdb: rdb, maxEntries: defaultMaxEntries, now: time.Now, l1: make(map[string]cacheEntry)}
}

// OpenRedis connects to redisURL and pings it. An empty URL returns nil, nil.
func OpenRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	if redisURL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	slog.Info("archive cache: L2 redis connected", slog.String("addr", opts.Addr))
	return rdb, nil
}

// CacheKey builds a deterministic key from parts.
func CacheKey(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return fmt.Sprintf("sp:archive:%x", sum[:12])
}

// Get decodes the cached value for key into dst. It reports whether a value was found.
func (c *Cache) Get(ctx context.Context, key string, dst any) bool {
	c.mu.Lock()
	e, ok := c.l1[key]
	if ok && c.now().After(e.expiresAt) {
		delete(c.l1, key)
		ok = false
	}
	c.mu.Unlock()
	if ok && json.Unmarshal(e.data, dst) == nil {
		telemetry.ObserveCache("l1_hit")
		return true
	}

	if c.rdb != nil {
		data, err := c.rdb.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			if json.Unmarshal(data, dst) == nil {
				c.storeL1(key, data)
				telemetry.ObserveCache("l2_hit")
				return true
			}
		case !errors.Is(err, redis.Nil):
			slog.Debug("archive cache: L2 get failed", slog.Any("err", err))
		}
	}
	telemetry.ObserveCache("miss")
	return false
}

// Set stores v in both tiers.
func (c *Cache) Set(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Debug("archive cache: encode failed", slog.Any("err", err))
		return
	}
	c.storeL1(key, data)
	if c.rdb != nil {
		if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
			slog.Debug("archive cache: L2 set failed", slog.Any("err", err))
		}
	}
}

func (c *Cache) storeL1(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if len(c.l1) >= c.maxEntries {
		for k, e := range c.l1 {
			if now.After(e.expiresAt) {
				delete(c.l1, k)
			}
		}
		// Still full: drop an arbitrary entry.
		for k := range c.l1 {
			if len(c.l1) < c.maxEntries {
				break
			}
			delete(c.l1, k)
		}
	}
	c.l1[key] = cacheEntry{data: data, expiresAt: now.Add(c.ttl)}
}
