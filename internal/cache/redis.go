package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/veillabs/veil/internal/config"
	"github.com/veillabs/veil/internal/logger"
	"github.com/veillabs/veil/internal/pii"
)

// ResultCache caches redaction results in Redis, keyed by a digest of the
// input, so repeated scrubs of identical payloads skip the engine.
type ResultCache struct {
	client *redis.Client
	config config.CacheConfig
	logger *logger.Logger
	stats  cacheStats
}

type cacheStats struct {
	hits   int64
	misses int64
	errors int64
}

// NewResultCache creates a new Redis-backed result cache
func NewResultCache(cfg config.CacheConfig, log *logger.Logger) (*ResultCache, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	cache := &ResultCache{
		client: redis.NewClient(opts),
		config: cfg,
		logger: log,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := cache.client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info("Result cache initialized",
		zap.String("redis_url", maskRedisURL(cfg.RedisURL)),
		zap.Duration("ttl", cfg.TTL),
		zap.String("key_prefix", cfg.KeyPrefix))

	return cache, nil
}

// Get looks up the cached entry for text under the given mode.
func (c *ResultCache) Get(ctx context.Context, text string, mode pii.Mode) (*CachedEntry, bool) {
	key := c.cacheKey(text, mode)

	data, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		atomic.AddInt64(&c.stats.misses, 1)
		return nil, false
	} else if err != nil {
		atomic.AddInt64(&c.stats.errors, 1)
		c.logger.Error("Cache lookup failed", zap.Error(err))
		return nil, false
	}

	var entry CachedEntry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		c.logger.Error("Failed to unmarshal cached entry", zap.Error(err))
		// Delete corrupted cache entry
		c.client.Del(ctx, key)
		atomic.AddInt64(&c.stats.errors, 1)
		return nil, false
	}

	atomic.AddInt64(&c.stats.hits, 1)
	c.logger.Debug("Cache hit", zap.String("key", key))

	return &entry, true
}

// Set stores a redaction result and its category counts under the
// digest of the input.
func (c *ResultCache) Set(ctx context.Context, text string, mode pii.Mode, result pii.RedactionResult, categories map[string]int) error {
	entry := CachedEntry{
		Result:     result,
		Categories: categories,
		Mode:       string(mode),
		CachedAt:   time.Now(),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	key := c.cacheKey(text, mode)
	if err := c.client.Set(ctx, key, data, c.config.TTL).Err(); err != nil {
		atomic.AddInt64(&c.stats.errors, 1)
		return fmt.Errorf("failed to cache result: %w", err)
	}

	c.logger.Debug("Result cached", zap.String("key", key))
	return nil
}

// GetStats returns cache performance statistics
func (c *ResultCache) GetStats(ctx context.Context) (*Stats, error) {
	info, err := c.client.Info(ctx, "memory").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get Redis info: %w", err)
	}

	stats := &Stats{
		Hits:   atomic.LoadInt64(&c.stats.hits),
		Misses: atomic.LoadInt64(&c.stats.misses),
		Errors: atomic.LoadInt64(&c.stats.errors),
	}

	total := stats.Hits + stats.Misses
	if total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total) * 100
	}

	for _, line := range strings.Split(info, "\r\n") {
		if strings.HasPrefix(line, "used_memory:") {
			if mem, err := strconv.ParseInt(strings.TrimPrefix(line, "used_memory:"), 10, 64); err == nil {
				stats.MemoryUsage = mem
			}
		}
	}

	if keys, err := c.client.DBSize(ctx).Result(); err == nil {
		stats.TotalKeys = keys
	}

	return stats, nil
}

// Clear removes every cached result under our key prefix
func (c *ResultCache) Clear(ctx context.Context) error {
	pattern := c.config.KeyPrefix + "*"

	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cache keys: %w", err)
	}

	if len(keys) == 0 {
		return nil
	}

	batchSize := 100
	for i := 0; i < len(keys); i += batchSize {
		end := i + batchSize
		if end > len(keys) {
			end = len(keys)
		}
		if err := c.client.Del(ctx, keys[i:end]...).Err(); err != nil {
			return fmt.Errorf("failed to delete cache keys: %w", err)
		}
	}

	c.logger.Info("Cache cleared", zap.Int("deleted_keys", len(keys)))
	return nil
}

// Close closes the Redis connection
func (c *ResultCache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// cacheKey digests the mode and input text. The digest is one-way: the key
// cannot be reversed into the original text.
func (c *ResultCache) cacheKey(text string, mode pii.Mode) string {
	hasher := sha256.New()
	hasher.Write([]byte(mode))
	hasher.Write([]byte{0})
	hasher.Write([]byte(text))

	hash := hex.EncodeToString(hasher.Sum(nil))
	return c.config.KeyPrefix + hash[:16]
}

// maskRedisURL masks credentials in a Redis URL for logging
func maskRedisURL(url string) string {
	if strings.Contains(url, "@") {
		parts := strings.Split(url, "@")
		if len(parts) >= 2 {
			userPart := parts[0]
			if strings.Contains(userPart, ":") {
				userParts := strings.Split(userPart, ":")
				if len(userParts) >= 3 {
					userParts[len(userParts)-1] = "***"
					parts[0] = strings.Join(userParts, ":")
				}
			}
			return strings.Join(parts, "@")
		}
	}
	return url
}
