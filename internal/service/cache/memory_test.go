package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketGate/internal/domain/models"
)

func record(symbol string, price float64) *models.NormalizedRecord {
	return &models.NormalizedRecord{
		EntityInformation: models.EntityInformation{Symbol: symbol, EntityName: symbol + " Inc."},
		MarketMetrics:     models.MarketMetrics{CurrentPrice: &price, Currency: "USD"},
	}
}

func TestMemoryCachePutGet(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "AAPL", record("AAPL", 190.5), time.Minute))

	got, ok, err := c.Get(ctx, "AAPL")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "AAPL", got.EntityInformation.Symbol)
	assert.Equal(t, 190.5, *got.MarketMetrics.CurrentPrice)
}

func TestMemoryCacheMiss(t *testing.T) {
	c := NewMemoryCache()

	_, ok, err := c.Get(context.Background(), "MSFT")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCacheReturnsCopies(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	orig := record("AAPL", 100)
	require.NoError(t, c.Put(ctx, "AAPL", orig, time.Minute))

	// mutating the stored-from value must not touch the cached entry
	*orig.MarketMetrics.CurrentPrice = 1
	orig.EntityInformation.EntityName = "mutated"

	got, ok, _ := c.Get(ctx, "AAPL")
	require.True(t, ok)
	assert.Equal(t, 100.0, *got.MarketMetrics.CurrentPrice)
	assert.Equal(t, "AAPL Inc.", got.EntityInformation.EntityName)

	// and mutating what Get returned must not poison later readers
	*got.MarketMetrics.CurrentPrice = 2

	again, ok, _ := c.Get(ctx, "AAPL")
	require.True(t, ok)
	assert.Equal(t, 100.0, *again.MarketMetrics.CurrentPrice)
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "AAPL", record("AAPL", 100), 10*time.Millisecond))
	time.Sleep(25 * time.Millisecond)

	_, ok, err := c.Get(ctx, "AAPL")
	require.NoError(t, err)
	assert.False(t, ok, "expired entry must behave as a miss")
}

func TestMemoryCacheHitCountOnlyOnGet(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "AAPL", record("AAPL", 100), time.Minute))

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.TotalHits, "Put must not count as a hit")

	for i := 0; i < 3; i++ {
		_, ok, _ := c.Get(ctx, "AAPL")
		require.True(t, ok)
	}
	_, ok, _ := c.Get(ctx, "MSFT")
	assert.False(t, ok)

	stats, _ = c.Stats(ctx)
	assert.Equal(t, int64(3), stats.TotalHits, "misses must not count")
	assert.Equal(t, 1, stats.Entries)
}

func TestMemoryCacheLastWriteWins(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "AAPL", record("AAPL", 100), time.Minute))
	_, _, _ = c.Get(ctx, "AAPL")
	require.NoError(t, c.Put(ctx, "AAPL", record("AAPL", 200), time.Minute))

	got, ok, _ := c.Get(ctx, "AAPL")
	require.True(t, ok)
	assert.Equal(t, 200.0, *got.MarketMetrics.CurrentPrice)
}

func TestMemoryCacheSweep(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "AAPL", record("AAPL", 100), 5*time.Millisecond))
	require.NoError(t, c.Put(ctx, "MSFT", record("MSFT", 300), time.Minute))
	time.Sleep(15 * time.Millisecond)

	removed := c.Sweep()
	assert.Equal(t, 1, removed)

	stats, _ := c.Stats(ctx)
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, 0, stats.Expired)
}
