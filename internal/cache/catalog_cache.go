package cache

import (
	"strconv"
	"strings"
	"sync"
	"time"
)

const defaultPriceTTL = 5 * time.Minute

// PriceTicket marks the cache state a reader observed before loading a price
// from storage.
type PriceTicket struct {
	epoch uint64
	gen   uint64
}

// PriceCache stores slot prices keyed by placement and duration. Readers take
// a ticket before the storage read and fill with it, so a fill that raced an
// invalidation is dropped instead of resurrecting the old price.
type PriceCache interface {
	GetPrice(placement string, durationDays int) (int64, bool)
	Ticket(placement string) PriceTicket
	FillPrice(placement string, durationDays int, credits int64, ticket PriceTicket) bool
	InvalidatePlacement(placement string)
	Purge()
}

type priceCache struct {
	mu     sync.Mutex
	prices Cache[string, int64]
	keys   map[string]map[string]struct{}
	gens   map[string]uint64
	epoch  uint64
	ttl    time.Duration
}

// NewPriceCache returns an in-memory price cache for catalog lookups.
func NewPriceCache() PriceCache {
	return &priceCache{
		prices: NewTTLCache[string, int64](),
		keys:   map[string]map[string]struct{}{},
		gens:   map[string]uint64{},
		ttl:    defaultPriceTTL,
	}
}

func (c *priceCache) GetPrice(placement string, durationDays int) (int64, bool) {
	return c.prices.Get(cacheKey(placement, strconv.Itoa(durationDays)))
}

func (c *priceCache) Ticket(placement string) PriceTicket {
	c.mu.Lock()
	defer c.mu.Unlock()
	return PriceTicket{epoch: c.epoch, gen: c.gens[cacheKey(placement)]}
}

// FillPrice stores credits unless the placement was invalidated or the cache
// purged since ticket was taken.
func (c *priceCache) FillPrice(placement string, durationDays int, credits int64, ticket PriceTicket) bool {
	index := cacheKey(placement)
	key := cacheKey(placement, strconv.Itoa(durationDays))

	c.mu.Lock()
	defer c.mu.Unlock()
	if ticket.epoch != c.epoch || ticket.gen != c.gens[index] {
		return false
	}
	c.prices.Set(key, credits, c.ttl)
	if c.keys[index] == nil {
		c.keys[index] = map[string]struct{}{}
	}
	c.keys[index][key] = struct{}{}
	return true
}

func (c *priceCache) InvalidatePlacement(placement string) {
	index := cacheKey(placement)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[index]++
	for key := range c.keys[index] {
		c.prices.Delete(key)
	}
	delete(c.keys, index)
}

func (c *priceCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.prices.Purge()
	clear(c.keys)
}

func cacheKey(parts ...string) string {
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		values = append(values, strings.ToLower(trimmed))
	}
	return strings.Join(values, "|")
}
