package cache

import (
	"context"
	"sync"
	"time"

	"MarketGate/internal/domain/models"
	"MarketGate/internal/domain/repository"
)

// entry is owned exclusively by the cache. Payloads never leave by
// reference: Put stores a copy and Get returns a copy.
type entry struct {
	record     *models.NormalizedRecord
	insertedAt time.Time
	expiresAt  time.Time
	hits       int64
}

func (e *entry) expired(now time.Time) bool {
	return !now.Before(e.expiresAt)
}

// MemoryCache is the default in-process RecordCache with lazy expiry on read
// plus an optional periodic sweep.
type MemoryCache struct {
	mu        sync.RWMutex
	m         map[string]*entry
	totalHits int64
}

// NewMemoryCache creates an empty in-memory record cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{m: make(map[string]*entry)}
}

// Get returns a copy of the cached record. An expired entry behaves as a
// miss and is removed; hit counts change only here, never on Put.
func (c *MemoryCache) Get(_ context.Context, symbol string) (*models.NormalizedRecord, bool, error) {
	now := time.Now()

	c.mu.RLock()
	e, ok := c.m[symbol]
	if ok && !e.expired(now) {
		c.mu.RUnlock()
		c.mu.Lock()
		// re-check under the write lock; a concurrent Put may have replaced it
		if e2, ok2 := c.m[symbol]; ok2 && !e2.expired(now) {
			e2.hits++
			c.totalHits++
			rec := e2.record.Clone()
			c.mu.Unlock()
			return rec, true, nil
		}
		c.mu.Unlock()
		return nil, false, nil
	}
	c.mu.RUnlock()

	if ok {
		c.mu.Lock()
		if e2, ok2 := c.m[symbol]; ok2 && e2.expired(now) {
			delete(c.m, symbol)
		}
		c.mu.Unlock()
	}
	return nil, false, nil
}

// Put inserts or replaces the entry for symbol. Replacement is
// last-write-wins; the hit count restarts at zero.
func (c *MemoryCache) Put(_ context.Context, symbol string, record *models.NormalizedRecord, ttl time.Duration) error {
	now := time.Now()
	c.mu.Lock()
	c.m[symbol] = &entry{
		record:     record.Clone(),
		insertedAt: now,
		expiresAt:  now.Add(ttl),
	}
	c.mu.Unlock()
	return nil
}

// Stats reports a monitoring snapshot.
func (c *MemoryCache) Stats(_ context.Context) (repository.CacheStats, error) {
	now := time.Now()
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := repository.CacheStats{TotalHits: c.totalHits}
	for _, e := range c.m {
		if e.expired(now) {
			s.Expired++
			continue
		}
		s.Entries++
	}
	return s, nil
}

// Sweep removes expired entries and returns how many were dropped.
func (c *MemoryCache) Sweep() int {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k, e := range c.m {
		if e.expired(now) {
			delete(c.m, k)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Sweep on the given interval until ctx is done.
func (c *MemoryCache) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}
