package consumer

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/RyanHill92/canvass/internal/config"
	"github.com/RyanHill92/canvass/internal/metrics"
)

const keyPrefix = "consumer:"

// NewRedis connects to Redis and verifies the connection with a PING.
func NewRedis(cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

// CachedFetcher keeps successful vendor responses in Redis for a TTL and
// collapses identical concurrent fetches into one upstream call. Errors are
// never cached, and a broken cache falls through to the vendor.
type CachedFetcher struct {
	next    Fetcher
	rdb     *redis.Client
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewCachedFetcher wraps next with a Redis cache.
func NewCachedFetcher(next Fetcher, rdb *redis.Client, ttl time.Duration, m *metrics.Metrics) *CachedFetcher {
	return &CachedFetcher{
		next:    next,
		rdb:     rdb,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "consumer-cache"),
	}
}

// Fetch serves q from Redis when possible, otherwise from the wrapped Fetcher.
func (c *CachedFetcher) Fetch(ctx context.Context, q Query) (string, error) {
	key := cacheKey(q)
	if text, ok := c.get(ctx, key); ok {
		return text, nil
	}
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		if text, err := c.rdb.Get(ctx, key).Result(); err == nil {
			return text, nil
		}
		text, err := c.next.Fetch(ctx, q)
		if err != nil {
			return "", err
		}
		if err := c.rdb.Set(ctx, key, text, c.ttl).Err(); err != nil {
			c.logger.Error("cache set failed", "key", key, "error", err)
		}
		return text, nil
	})
	if err != nil {
		return "", err
	}
	return val.(string), nil
}

// Invalidate drops every cached vendor response and returns how many keys
// were removed.
func (c *CachedFetcher) Invalidate(ctx context.Context) (int64, error) {
	var deleted int64
	iter := c.rdb.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return deleted, fmt.Errorf("deleting key %s: %w", iter.Val(), err)
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("scanning cache keys: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

// Ping checks the Redis connection.
func (c *CachedFetcher) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *CachedFetcher) get(ctx context.Context, key string) (string, bool) {
	text, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.recordMiss()
		return "", false
	}
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
	c.logger.Debug("cache hit", "key", key)
	return text, true
}

func (c *CachedFetcher) recordMiss() {
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

func cacheKey(q Query) string {
	raw := strings.Join([]string{
		strings.TrimSpace(q.Zip),
		strings.ToLower(strings.Join(strings.Fields(q.Street), " ")),
		strings.TrimSpace(q.HouseNumber),
		strconv.Itoa(q.Records),
		strings.Join(q.Columns, ","),
	}, "|")
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
