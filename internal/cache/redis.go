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

	"github.com/raaihank/speller/internal/speller"
)

// clearBatchSize bounds the number of keys per DEL command.
const clearBatchSize = 100

// SuggestionCache stores speller results in Redis keyed by provider, language and text
type SuggestionCache struct {
	client *redis.Client
	config *Config
	logger *zap.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

var _ speller.Cache = (*SuggestionCache)(nil)

// NewSuggestionCache creates a new Redis-based suggestion cache
func NewSuggestionCache(config *Config, logger *zap.Logger) (*SuggestionCache, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	// Configure connection pool
	opts.PoolSize = config.MaxConnections
	opts.MinIdleConns = config.MinIdleConns

	cache := newWithClient(redis.NewClient(opts), config, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := cache.client.Ping(ctx).Err(); err != nil {
		cache.client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Suggestion cache initialized",
		zap.String("redis_url", maskRedisURL(config.RedisURL)),
		zap.Int("max_connections", config.MaxConnections),
		zap.Duration("default_ttl", config.DefaultTTL))

	return cache, nil
}

func newWithClient(client *redis.Client, config *Config, logger *zap.Logger) *SuggestionCache {
	return &SuggestionCache{client: client, config: config, logger: logger}
}

// Lookup fetches cached suggestion lists with a single MGET.
func (sc *SuggestionCache) Lookup(ctx context.Context, provider, lang string, texts []string) (map[int][]speller.Suggestion, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	keys := make([]string, len(texts))
	for i, text := range texts {
		keys[i] = sc.key(provider, lang, text)
	}

	values, err := sc.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("cache lookup failed: %w", err)
	}

	hits := make(map[int][]speller.Suggestion, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}

		var cached CachedSuggestions
		if err := json.Unmarshal([]byte(raw), &cached); err != nil {
			sc.logger.Warn("Dropping corrupted cache entry", zap.String("key", keys[i]), zap.Error(err))
			sc.client.Del(ctx, keys[i])
			continue
		}
		hits[i] = cached.Suggestions
	}

	sc.hits.Add(int64(len(hits)))
	sc.misses.Add(int64(len(texts) - len(hits)))

	sc.logger.Debug("Cache lookup",
		zap.Int("texts", len(texts)),
		zap.Int("hits", len(hits)))

	return hits, nil
}

// Store caches results[i] for texts[i] using a Redis pipeline
func (sc *SuggestionCache) Store(ctx context.Context, provider, lang string, texts []string, results [][]speller.Suggestion) error {
	if len(texts) != len(results) {
		return fmt.Errorf("texts and results length mismatch: %d != %d", len(texts), len(results))
	}
	if len(texts) == 0 {
		return nil
	}

	pipe := sc.client.Pipeline()
	now := time.Now()
	for i, text := range texts {
		data, err := json.Marshal(CachedSuggestions{Provider: provider, Lang: lang, Suggestions: results[i], CachedAt: now})
		if err != nil {
			return fmt.Errorf("failed to marshal suggestions for caching: %w", err)
		}
		pipe.Set(ctx, sc.key(provider, lang, text), data, sc.config.DefaultTTL)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("batch cache operation failed: %w", err)
	}

	sc.logger.Debug("Batch cache operation completed", zap.Int("cached_texts", len(texts)))
	return nil
}

// GetStats returns cache performance statistics
func (sc *SuggestionCache) GetStats(ctx context.Context) (*CacheStats, error) {
	info, err := sc.client.Info(ctx, "memory").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get Redis info: %w", err)
	}

	stats := &CacheStats{
		Hits:        sc.hits.Load(),
		Misses:      sc.misses.Load(),
		MemoryUsage: parseUsedMemory(info),
	}

	total := stats.Hits + stats.Misses
	if total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total) * 100
	}

	keys, err := sc.scanKeys(ctx)
	if err == nil {
		stats.TotalKeys = int64(len(keys))
	}

	return stats, nil
}

// Clear removes every suggestion stored under the configured prefix
func (sc *SuggestionCache) Clear(ctx context.Context) (int, error) {
	keys, err := sc.scanKeys(ctx)
	if err != nil {
		return 0, err
	}

	for i := 0; i < len(keys); i += clearBatchSize {
		end := min(i+clearBatchSize, len(keys))
		if err := sc.client.Del(ctx, keys[i:end]...).Err(); err != nil {
			return i, fmt.Errorf("failed to delete cache keys: %w", err)
		}
	}

	sc.logger.Info("Cache cleared", zap.Int("deleted_keys", len(keys)))
	return len(keys), nil
}

// Close closes the Redis connection
func (sc *SuggestionCache) Close() error {
	if sc.client != nil {
		return sc.client.Close()
	}
	return nil
}

func (sc *SuggestionCache) scanKeys(ctx context.Context) ([]string, error) {
	iter := sc.client.Scan(ctx, 0, sc.config.KeyPrefix+":sugg:*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan cache keys: %w", err)
	}
	return keys, nil
}

// key hashes the provider, language and text into a fixed-length cache key
func (sc *SuggestionCache) key(provider, lang, text string) string {
	return suggestionKey(sc.config.KeyPrefix, provider, lang, text)
}

func suggestionKey(prefix, provider, lang, text string) string {
	sum := sha256.Sum256([]byte(provider + "|" + lang + "|" + text))
	return fmt.Sprintf("%s:sugg:%s", prefix, hex.EncodeToString(sum[:])[:16])
}

func parseUsedMemory(info string) int64 {
	for _, line := range strings.Split(info, "\r\n") {
		if memStr, ok := strings.CutPrefix(line, "used_memory:"); ok {
			if mem, err := strconv.ParseInt(memStr, 10, 64); err == nil {
				return mem
			}
		}
	}
	return 0
}

// maskRedisURL masks the password in a Redis URL for logging
func maskRedisURL(url string) string {
	at := strings.LastIndex(url, "@")
	if at < 0 {
		return url
	}
	userPart := url[:at]
	colon := strings.LastIndex(userPart, ":")
	// the scheme separator is not a password separator
	if colon < 0 || strings.HasPrefix(userPart[colon:], "://") {
		return url
	}
	return userPart[:colon+1] + "***" + url[at:]
}
