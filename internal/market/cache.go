package market

import (
	"context"
	"errors"
	"sync"
	"time"

	"WhaleSentinel/internal/model"

	"go.uber.org/zap"
)

const DefaultTTL = 30 * time.Minute

type cacheEntry struct {
	// status is nil for a cached "not found".
	status    *model.MarketStatus
	fetchedAt time.Time
}

// Cache is a read-through TTL cache in front of a StatusFetcher.
//
// Valid statuses and definitive "not found" answers are cached for the TTL.
// Transport failures and invalid payloads are never cached, so they are
// retried on the next lookup.
type Cache struct {
	fetcher StatusFetcher
	ttl     time.Duration
	now     func() time.Time
	logger  *zap.Logger

	mu      sync.Mutex
	entries map[string]cacheEntry
}

// NewCache creates a cache. A nil clock means time.Now.
func NewCache(logger *zap.Logger, fetcher StatusFetcher, ttl time.Duration, now func() time.Time) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Cache{
		fetcher: fetcher,
		ttl:     ttl,
		now:     now,
		logger:  logger,
		entries: make(map[string]cacheEntry),
	}
}

// Get returns the market's status. ok is false when the status is unknown,
// whether because the market does not exist or the lookup failed.
func (c *Cache) Get(ctx context.Context, marketID string) (*model.MarketStatus, bool) {
	c.mu.Lock()
	e, hit := c.entries[marketID]
	if hit && c.now().Sub(e.fetchedAt) < c.ttl {
		c.mu.Unlock()
		return e.status, e.status != nil
	}
	c.mu.Unlock()

	status, err := c.fetcher.FetchStatus(ctx, marketID)
	if err != nil {
		if errors.Is(err, ErrMarketNotFound) {
			c.store(marketID, nil)
			c.logger.Info("market not found upstream, caching miss", zap.String("market", marketID))
			return nil, false
		}
		c.logger.Warn("market status lookup failed", zap.String("market", marketID), zap.Error(err))
		return nil, false
	}

	c.store(marketID, status)
	return status, true
}

// Invalidate drops the cached entry for a market.
func (c *Cache) Invalidate(marketID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, marketID)
}

// Len returns the number of cached entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) store(marketID string, status *model.MarketStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[marketID] = cacheEntry{status: status, fetchedAt: c.now()}
}
