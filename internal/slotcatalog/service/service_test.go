package service

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/spotlight/internal/cache"
	"github.com/smallbiznis/spotlight/internal/clock"
	"github.com/smallbiznis/spotlight/internal/config"
	"github.com/smallbiznis/spotlight/internal/slotcatalog/domain"
	"github.com/smallbiznis/spotlight/internal/slotcatalog/repository"
	"github.com/smallbiznis/spotlight/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) domain.Service {
	t.Helper()

	db := dbtest.Open(t, &domain.Placement{}, &domain.SlotPrice{})
	svc := NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		Clock: clock.NewFakeClock(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)),
		Repo:  repository.Provide(),
		Cache: cache.NewPriceCache(),
	})
	require.NoError(t, svc.Sync(context.Background(), config.DefaultCatalogConfig()))
	return svc
}

func TestPriceForAndCapacityFor(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	price, ok, err := svc.PriceFor(ctx, "Results", 15)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(2), price.CreditCost)
	assert.Equal(t, "results", price.Placement)

	_, ok, err = svc.PriceFor(ctx, "results", 10)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = svc.PriceFor(ctx, "sidebar", 15)
	require.NoError(t, err)
	assert.False(t, ok)

	capacity, err := svc.CapacityFor(ctx, "results")
	require.NoError(t, err)
	assert.Equal(t, 4, capacity)

	_, err = svc.CapacityFor(ctx, "sidebar")
	require.ErrorIs(t, err, domain.ErrInvalidPlacement)
}

func TestSetPriceInvalidatesCache(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.PriceFor(ctx, "results", 15)
	require.NoError(t, err)

	_, err = svc.SetPrice(ctx, "results", 15, 3)
	require.NoError(t, err)

	price, ok, err := svc.PriceFor(ctx, "results", 15)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(3), price.CreditCost)

	require.NoError(t, svc.DeletePrice(ctx, "results", 15))
	_, ok, err = svc.PriceFor(ctx, "results", 15)
	require.NoError(t, err)
	assert.False(t, ok)

	require.ErrorIs(t, svc.DeletePrice(ctx, "results", 15), domain.ErrPriceNotFound)
}

func TestAdminWritesValidate(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.SetCapacity(ctx, "results", -1)
	require.ErrorIs(t, err, domain.ErrInvalidCapacity)
	_, err = svc.SetCapacity(ctx, "sidebar", 1)
	require.ErrorIs(t, err, domain.ErrInvalidPlacement)
	_, err = svc.SetPrice(ctx, "results", 10, 1)
	require.ErrorIs(t, err, domain.ErrInvalidDuration)
	_, err = svc.SetPrice(ctx, "results", 7, 0)
	require.ErrorIs(t, err, domain.ErrInvalidCreditCost)

	row, err := svc.SetCapacity(ctx, "homepage", 0)
	require.NoError(t, err)
	assert.Equal(t, 0, row.Capacity)

	capacity, err := svc.CapacityFor(ctx, "homepage")
	require.NoError(t, err)
	assert.Zero(t, capacity)
}

func TestListGroupsPrices(t *testing.T) {
	svc := newTestService(t)

	catalog, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, catalog.Placements, 3)

	for _, placement := range catalog.Placements {
		assert.Len(t, placement.Prices, len(domain.AllowedDurations), placement.Placement)
	}
}

func TestSyncRejectsUnknownPlacement(t *testing.T) {
	svc := newTestService(t)

	err := svc.Sync(context.Background(), config.CatalogConfig{
		Placements: []config.PlacementConfig{{Name: "sidebar", Capacity: 1}},
	})
	require.ErrorIs(t, err, domain.ErrInvalidPlacement)
}

// racingCache runs a catalog write after PriceFor has read storage and
// before it fills the cache.
type racingCache struct {
	cache.PriceCache
	beforeFill func()
}

func (c *racingCache) FillPrice(placement string, durationDays int, credits int64, ticket cache.PriceTicket) bool {
	if hook := c.beforeFill; hook != nil {
		c.beforeFill = nil
		hook()
	}
	return c.PriceCache.FillPrice(placement, durationDays, credits, ticket)
}

func TestPriceForDoesNotCacheOverConcurrentWrite(t *testing.T) {
	db := dbtest.Open(t, &domain.Placement{}, &domain.SlotPrice{})
	racing := &racingCache{PriceCache: cache.NewPriceCache()}
	svc := NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		Clock: clock.NewFakeClock(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)),
		Repo:  repository.Provide(),
		Cache: racing,
	})
	ctx := context.Background()
	require.NoError(t, svc.Sync(ctx, config.DefaultCatalogConfig()))

	racing.beforeFill = func() {
		_, err := svc.SetPrice(ctx, "results", 15, 9)
		require.NoError(t, err)
	}

	price, ok, err := svc.PriceFor(ctx, "results", 15)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(2), price.CreditCost)

	price, ok, err = svc.PriceFor(ctx, "results", 15)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(9), price.CreditCost)
}
