// Package cache implements the result cache over Redis. Every failure
// (connection error, timeout, bad serialization) is swallowed and
// treated as a miss or no-op: cache unavailability degrades latency,
// never correctness.
package cache

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/iserafeim/heurekka-sub002/internal/common/config"
	"github.com/iserafeim/heurekka-sub002/internal/common/database"
	"github.com/iserafeim/heurekka-sub002/internal/common/logger"
	"github.com/iserafeim/heurekka-sub002/internal/common/metrics"

	"github.com/redis/go-redis/v9"
)

// Kind classifies a cache entry; each kind carries its own TTL.
type Kind string

const (
	KindSearch       Kind = "search"
	KindDetail       Kind = "detail"
	KindBounds       Kind = "bounds"
	KindAutocomplete Kind = "autocomplete"
	KindFacets       Kind = "facets"
	KindClusters     Kind = "clusters"
	KindSimilar      Kind = "similar"
)

// TTLPolicy maps an entry kind to its expiration. Injected so the
// backing store and its constants stay swappable.
type TTLPolicy map[Kind]time.Duration

// PolicyFromConfig builds the TTL policy from configuration.
func PolicyFromConfig(cfg config.TTLConfig) TTLPolicy {
	return TTLPolicy{
		KindSearch:       cfg.Search,
		KindDetail:       cfg.Detail,
		KindBounds:       cfg.Bounds,
		KindAutocomplete: cfg.Autocomplete,
		KindFacets:       cfg.Facets,
		KindClusters:     cfg.Clusters,
		KindSimilar:      cfg.Similar,
	}
}

// keyPattern is the accepted key alphabet. Keys outside it are rejected
// without erroring.
var keyPattern = regexp.MustCompile(`^[A-Za-z0-9:_.-]{1,250}$`)

// ResultCache wraps the Redis client with namespace validation, size
// guards, per-kind TTLs, and the fail-open policy.
type ResultCache struct {
	redis         *database.RedisClient
	policy        TTLPolicy
	prefix        string
	maxValueBytes int
	log           logger.Logger
}

// New creates a ResultCache over an existing Redis client.
func New(rdb *database.RedisClient, cfg config.CacheConfig, log logger.Logger) *ResultCache {
	maxBytes := cfg.MaxValueBytes
	if maxBytes <= 0 || maxBytes > 1<<20 {
		maxBytes = 1 << 20
	}
	return &ResultCache{
		redis:         rdb,
		policy:        PolicyFromConfig(cfg.TTL),
		prefix:        cfg.KeyPrefix,
		maxValueBytes: maxBytes,
		log:           log.WithFields(map[string]interface{}{"component": "result-cache"}),
	}
}

// Get reads a cached value into dest. Returns false on miss, invalid
// key, or any store failure; the caller proceeds as if the cache were
// empty.
func (c *ResultCache) Get(ctx context.Context, key string, dest interface{}) bool {
	if !c.validKey(key) {
		return false
	}

	raw, err := c.redis.Get(ctx, key)
	if err == redis.Nil {
		metrics.CacheMisses.WithLabelValues(c.namespaceOf(key)).Inc()
		return false
	}
	if err != nil {
		c.failOpen("get", key, err)
		return false
	}

	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		c.failOpen("decode", key, err)
		return false
	}

	metrics.CacheHits.WithLabelValues(c.namespaceOf(key)).Inc()
	return true
}

// Set writes a value with the TTL of its kind. Returns false instead of
// erroring on invalid keys, oversized values, or store failures.
func (c *ResultCache) Set(ctx context.Context, key string, value interface{}, kind Kind) bool {
	if !c.validKey(key) {
		return false
	}

	payload, err := json.Marshal(value)
	if err != nil {
		c.failOpen("encode", key, err)
		return false
	}
	if len(payload) > c.maxValueBytes {
		c.log.Warn("cache value exceeds size limit, skipping write", map[string]interface{}{
			"key":   key,
			"bytes": len(payload),
		})
		return false
	}

	ttl, ok := c.policy[kind]
	if !ok || ttl <= 0 {
		ttl = 5 * time.Minute
	}

	if err := c.redis.Set(ctx, key, payload, ttl); err != nil {
		c.failOpen("set", key, err)
		return false
	}
	return true
}

// Delete removes specific keys. Best effort.
func (c *ResultCache) Delete(ctx context.Context, keys ...string) bool {
	if len(keys) == 0 {
		return true
	}
	if err := c.redis.Del(ctx, keys...); err != nil {
		c.failOpen("delete", strings.Join(keys, ","), err)
		return false
	}
	return true
}

// DeleteByPrefix removes all keys under each namespace prefix; used when
// a property record changes. Returns the number of keys removed. A race
// with a concurrent write is tolerated (bounded staleness).
func (c *ResultCache) DeleteByPrefix(ctx context.Context, prefixes ...string) int {
	removed := 0
	for _, prefix := range prefixes {
		keys, err := c.redis.ScanPrefix(ctx, prefix)
		if err != nil {
			c.failOpen("scan", prefix, err)
			continue
		}
		if len(keys) == 0 {
			continue
		}
		if err := c.redis.Del(ctx, keys...); err != nil {
			c.failOpen("delete", prefix, err)
			continue
		}
		removed += len(keys)
	}
	return removed
}

// HealthCheck reports whether the store answers a ping. Never errors.
func (c *ResultCache) HealthCheck(ctx context.Context) bool {
	return c.redis.Ping(ctx) == nil
}

func (c *ResultCache) validKey(key string) bool {
	if !keyPattern.MatchString(key) {
		return false
	}
	return strings.HasPrefix(key, c.prefix+":")
}

// namespaceOf extracts the namespace segment for metrics labels.
func (c *ResultCache) namespaceOf(key string) string {
	parts := strings.SplitN(key, ":", 3)
	if len(parts) >= 2 {
		return parts[1]
	}
	return "unknown"
}

func (c *ResultCache) failOpen(operation, key string, err error) {
	metrics.CacheFailures.WithLabelValues(operation).Inc()
	c.log.WithError(err).Warn("cache operation failed, continuing without cache", map[string]interface{}{
		"operation": operation,
		"key":       key,
	})
}
