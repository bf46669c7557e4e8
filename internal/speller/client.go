package speller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultBatchSize is the number of texts sent per service request.
const DefaultBatchSize = 5

// Client batches texts through a Service, consulting an optional Cache first.
type Client struct {
	service   Service
	cache     Cache
	limiter   *rate.Limiter
	lang      string
	batchSize int
	logger    *zap.Logger
	stats     *Stats
	mu        sync.RWMutex
}

// NewClient creates a correction client around service. cache may be nil.
func NewClient(service Service, cache Cache, config *Config, logger *zap.Logger) *Client {
	batchSize := config.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	var limiter *rate.Limiter
	if config.RequestsPerSecond > 0 {
		burst := config.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), burst)
	}

	return &Client{
		service:   service,
		cache:     cache,
		limiter:   limiter,
		lang:      config.Lang,
		batchSize: batchSize,
		logger:    logger,
		stats:     &Stats{Provider: service.Name()},
	}
}

// CheckAll returns one suggestion list per text, in input order.
// Batches are requested sequentially; the first failing batch aborts the call.
func (c *Client) CheckAll(ctx context.Context, texts []string, progress Progress) ([][]Suggestion, error) {
	results := make([][]Suggestion, len(texts))
	total := len(texts)

	for start := 0; start < total; start += c.batchSize {
		end := min(start+c.batchSize, total)

		if err := c.checkBatch(ctx, texts[start:end], results[start:end]); err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", start, end, err)
		}

		if progress != nil {
			progress.Report(end, total)
		}
	}

	return results, nil
}

// checkBatch fills out with suggestions for batch, serving cache hits locally.
func (c *Client) checkBatch(ctx context.Context, batch []string, out [][]Suggestion) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	cached := c.lookup(ctx, batch)

	misses := make([]string, 0, len(batch))
	missIdx := make([]int, 0, len(batch))
	for i, text := range batch {
		if s, ok := cached[i]; ok {
			out[i] = s
			continue
		}
		misses = append(misses, text)
		missIdx = append(missIdx, i)
	}

	c.mu.Lock()
	c.stats.CacheHits += int64(len(batch) - len(misses))
	c.stats.Texts += int64(len(batch))
	c.mu.Unlock()

	if len(misses) == 0 {
		c.logger.Debug("Batch served from cache", zap.Int("batch_size", len(batch)))
		return nil
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	start := time.Now()
	fetched, err := c.service.CheckTexts(ctx, misses)
	duration := time.Since(start)
	if err == nil && len(fetched) != len(misses) {
		err = fmt.Errorf("%w: got %d results for %d texts", ErrResponseInvalid, len(fetched), len(misses))
	}
	c.updateStats(duration, fetched, err == nil)
	if err != nil {
		c.logger.Error("Speller request failed",
			zap.String("provider", c.service.Name()),
			zap.Int("texts", len(misses)),
			zap.Error(err))
		return err
	}

	c.logger.Debug("Speller request completed",
		zap.String("provider", c.service.Name()),
		zap.Int("texts", len(misses)),
		zap.Duration("duration", duration))

	for j, i := range missIdx {
		out[i] = fetched[j]
	}

	if c.cache != nil {
		if err := c.cache.Store(ctx, c.service.Name(), c.lang, misses, fetched); err != nil {
			c.logger.Warn("Failed to store suggestions in cache", zap.Error(err))
		}
	}

	return nil
}

func (c *Client) lookup(ctx context.Context, batch []string) map[int][]Suggestion {
	if c.cache == nil {
		return nil
	}
	hits, err := c.cache.Lookup(ctx, c.service.Name(), c.lang, batch)
	if err != nil {
		c.logger.Warn("Suggestion cache lookup failed, treating as miss", zap.Error(err))
		return nil
	}
	return hits
}

// updateStats updates client statistics thread-safely
func (c *Client) updateStats(duration time.Duration, fetched [][]Suggestion, success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.Requests++
	c.stats.LastRequest = time.Now()
	if !success {
		c.stats.FailedRequests++
		return
	}

	for _, list := range fetched {
		c.stats.Suggestions += int64(len(list))
	}

	ok := c.stats.Requests - c.stats.FailedRequests
	total := time.Duration(ok-1)*c.stats.AvgLatency + duration
	c.stats.AvgLatency = total / time.Duration(ok)
}

// GetStats returns client statistics
func (c *Client) GetStats() *Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := *c.stats
	return &stats
}

// Provider returns the name of the underlying service.
func (c *Client) Provider() string {
	return c.service.Name()
}

// Lang returns the language tag sent with every request.
func (c *Client) Lang() string {
	return c.lang
}

// Close releases the underlying service.
func (c *Client) Close() error {
	return c.service.Close()
}
