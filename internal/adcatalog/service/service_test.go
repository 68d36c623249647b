package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/spotlight/internal/adcatalog/domain"
	"github.com/smallbiznis/spotlight/internal/adcatalog/repository"
	"github.com/smallbiznis/spotlight/internal/clock"
	"github.com/smallbiznis/spotlight/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) domain.Service {
	t.Helper()
	return NewService(Params{
		DB:    dbtest.Open(t, &domain.Ad{}),
		Log:   zap.NewNop(),
		Clock: clock.NewFakeClock(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)),
		Repo:  repository.Provide(),
	})
}

func TestUpsertNormalizesCategory(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	ad, err := svc.Upsert(ctx, domain.UpsertRequest{AdID: 42, AccountID: 7, Category: "Home & Garden", Status: "ACTIVE"})
	require.NoError(t, err)
	assert.Equal(t, "home-and-garden", ad.Category)
	assert.Equal(t, domain.StatusActive, ad.Status)

	category, err := svc.CategoryOf(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "home-and-garden", category)
}

func TestIsEligible(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Upsert(ctx, domain.UpsertRequest{AdID: 42, AccountID: 7, Category: "cars", Status: domain.StatusActive})
	require.NoError(t, err)
	_, err = svc.Upsert(ctx, domain.UpsertRequest{AdID: 43, AccountID: 7, Category: "cars", Status: domain.StatusPaused})
	require.NoError(t, err)
	_, err = svc.Upsert(ctx, domain.UpsertRequest{AdID: 44, AccountID: 7, Category: "", Status: domain.StatusActive})
	require.NoError(t, err)

	for adID, want := range map[int64]bool{42: true, 43: false, 44: false, 99: false} {
		got, err := svc.IsEligible(ctx, snowflakeID(adID))
		require.NoError(t, err)
		assert.Equal(t, want, got, "ad %d", adID)
	}

	_, err = svc.Upsert(ctx, domain.UpsertRequest{AdID: 42, AccountID: 7, Category: "cars", Status: domain.StatusRemoved})
	require.NoError(t, err)
	eligible, err := svc.IsEligible(ctx, 42)
	require.NoError(t, err)
	assert.False(t, eligible)
}

func TestUpsertAndGetValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Upsert(ctx, domain.UpsertRequest{AdID: 42, AccountID: 7, Category: "cars", Status: "deleted"})
	require.ErrorIs(t, err, domain.ErrInvalidAd)
	_, err = svc.Upsert(ctx, domain.UpsertRequest{AdID: 0, AccountID: 7, Category: "cars", Status: domain.StatusActive})
	require.ErrorIs(t, err, domain.ErrInvalidAd)

	_, err = svc.Get(ctx, 404)
	require.ErrorIs(t, err, domain.ErrAdNotFound)
}

func snowflakeID(id int64) snowflake.ID {
	return snowflake.ID(id)
}
