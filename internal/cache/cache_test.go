package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTTLCacheExpires(t *testing.T) {
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	c := newTTLCacheWithClock[string, int](func() time.Time { return now })

	c.Set("a", 1, time.Minute)
	c.Set("b", 2, 0)

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	now = now.Add(time.Minute)
	_, ok = c.Get("a")
	assert.False(t, ok)

	v, ok = c.Get("b")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestPriceCacheInvalidatePlacement(t *testing.T) {
	c := NewPriceCache()
	assert.True(t, c.FillPrice("Results", 15, 2, c.Ticket("results")))
	assert.True(t, c.FillPrice("results", 30, 4, c.Ticket("results")))
	assert.True(t, c.FillPrice("homepage", 15, 5, c.Ticket("homepage")))

	credits, ok := c.GetPrice("results", 15)
	assert.True(t, ok)
	assert.Equal(t, int64(2), credits)

	c.InvalidatePlacement("RESULTS")
	_, ok = c.GetPrice("results", 15)
	assert.False(t, ok)
	_, ok = c.GetPrice("results", 30)
	assert.False(t, ok)

	credits, ok = c.GetPrice("homepage", 15)
	assert.True(t, ok)
	assert.Equal(t, int64(5), credits)
}

func TestPriceCacheDropsFillThatRacedInvalidation(t *testing.T) {
	c := NewPriceCache()

	stale := c.Ticket("results")
	c.InvalidatePlacement("results")
	assert.False(t, c.FillPrice("results", 15, 2, stale))
	_, ok := c.GetPrice("results", 15)
	assert.False(t, ok)

	fresh := c.Ticket("results")
	c.Purge()
	assert.False(t, c.FillPrice("results", 15, 2, fresh))

	assert.True(t, c.FillPrice("results", 15, 3, c.Ticket("results")))
	credits, ok := c.GetPrice("results", 15)
	assert.True(t, ok)
	assert.Equal(t, int64(3), credits)

	// other placements are unaffected by an invalidation
	homepage := c.Ticket("homepage")
	c.InvalidatePlacement("results")
	assert.True(t, c.FillPrice("homepage", 15, 5, homepage))
}

func TestPriceCacheRefillDoesNotGrowIndex(t *testing.T) {
	c := NewPriceCache().(*priceCache)
	for i := 0; i < 5; i++ {
		c.FillPrice("results", 15, 2, c.Ticket("results"))
	}
	assert.Len(t, c.keys["results"], 1)
}
