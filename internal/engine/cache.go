package engine

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// summaryCache holds finished summaries: L1 in memory, optional L2 Redis.
// Only final tool results go in here, never intermediate scrape artifacts.
var summaryCache *tieredCache

var (
	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
)

type tieredCache struct {
	l1              sync.Map      // key → *cacheEntry
	rdb             *redis.Client // nil if Redis unavailable
	ttl             time.Duration
	maxEntries      int
	cleanupInterval time.Duration
}

type cacheEntry struct {
	data      []byte
	expiresAt time.Time
}

// InitCache sets up the summary cache. redisURL can be empty to disable L2.
// A zero ttl leaves caching disabled.
func InitCache(redisURL string, ttl time.Duration, maxEntries int, cleanupInterval time.Duration) {
	if ttl <= 0 {
		summaryCache = nil
		slog.Info("cache: disabled")
		return
	}
	c := &tieredCache{ttl: ttl, maxEntries: maxEntries, cleanupInterval: cleanupInterval}

	if redisURL != "" {
		c.rdb = connectRedis(redisURL)
	}

	summaryCache = c
	slog.Info("cache: initialized",
		slog.Duration("ttl", ttl),
		slog.Bool("redis", c.rdb != nil),
		slog.Int("max_entries", maxEntries))

	go c.cleanupLoop()
}

func connectRedis(redisURL string) *redis.Client {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		slog.Warn("cache: invalid redis URL, L2 disabled", slog.Any("error", err))
		return nil
	}
	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Warn("cache: redis unreachable, L2 disabled", slog.Any("error", err))
		return nil
	}
	slog.Info("cache: L2 redis connected", slog.String("addr", opts.Addr))
	return rdb
}

// CacheKey builds a deterministic cache key from parts.
func CacheKey(parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return fmt.Sprintf("sb:%x", hash[:12])
}

// CacheGet tries L1, then L2. An L2 hit is copied into L1.
func CacheGet(ctx context.Context, key string) ([]byte, bool) {
	c := summaryCache
	if c == nil {
		cacheMisses.Add(1)
		return nil, false
	}

	if val, ok := c.l1.Load(key); ok {
		entry := val.(*cacheEntry)
		if time.Now().Before(entry.expiresAt) {
			cacheHits.Add(1)
			return entry.data, true
		}
		c.l1.Delete(key)
	}

	if c.rdb != nil {
		data, err := c.rdb.Get(ctx, key).Bytes()
		if err == nil {
			slog.Debug("cache: L2 hit", slog.String("key", key))
			cacheHits.Add(1)
			c.l1.Store(key, &cacheEntry{data: data, expiresAt: time.Now().Add(c.ttl)})
			return data, true
		}
	}

	cacheMisses.Add(1)
	return nil, false
}

// CacheSet stores data in both tiers.
func CacheSet(ctx context.Context, key string, data []byte) {
	c := summaryCache
	if c == nil {
		return
	}

	c.evictIfNeeded()
	c.l1.Store(key, &cacheEntry{data: data, expiresAt: time.Now().Add(c.ttl)})

	if c.rdb != nil {
		if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
			slog.Debug("cache: L2 set failed", slog.Any("error", err))
		}
	}
}

// CacheStats returns current cache hit/miss counters.
func CacheStats() (hits, misses int64) {
	return cacheHits.Load(), cacheMisses.Load()
}

func (c *tieredCache) len() int {
	n := 0
	c.l1.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// evictIfNeeded makes room for one more entry: expired entries go first,
// then the ones closest to expiry.
func (c *tieredCache) evictIfNeeded() {
	if c.maxEntries <= 0 {
		return
	}
	count := c.len()
	if count < c.maxEntries {
		return
	}

	now := time.Now()
	c.l1.Range(func(key, val any) bool {
		if entry, ok := val.(*cacheEntry); ok && now.After(entry.expiresAt) {
			c.l1.Delete(key)
			count--
		}
		return count >= c.maxEntries
	})

	for count >= c.maxEntries {
		var (
			victim any
			at     time.Time
		)
		c.l1.Range(func(key, val any) bool {
			entry, ok := val.(*cacheEntry)
			if ok && (victim == nil || entry.expiresAt.Before(at)) {
				victim, at = key, entry.expiresAt
			}
			return true
		})
		if victim == nil {
			return
		}
		c.l1.Delete(victim)
		count--
	}
}

func (c *tieredCache) cleanupLoop() {
	interval := c.cleanupInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		if summaryCache != c {
			return
		}
		now := time.Now()
		c.l1.Range(func(key, val any) bool {
			if entry, ok := val.(*cacheEntry); ok && now.After(entry.expiresAt) {
				c.l1.Delete(key)
			}
			return true
		})
	}
}
