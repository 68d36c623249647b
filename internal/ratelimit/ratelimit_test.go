package ratelimit

import (
	"context"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/spotlight/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestReserveLimiterDisabledAllows(t *testing.T) {
	limiter, err := NewReserveLimiter(config.Config{}, nil)
	require.NoError(t, err)
	assert.Nil(t, limiter)
	assert.False(t, limiter.Enabled())

	res, err := limiter.AllowAccount(context.Background(), "7001")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestReserveLimiterRequiresRedis(t *testing.T) {
	cfg := config.Config{RateLimit: config.RateLimitConfig{Enabled: true, ReserveAccountRate: 1, ReserveAccountBurst: 5}}
	_, err := NewReserveLimiter(cfg, nil)
	assert.Error(t, err)
}

func TestReserveLimiterRejectsNonPositiveRate(t *testing.T) {
	cfg := config.Config{RateLimit: config.RateLimitConfig{Enabled: true, ReserveAccountRate: 0, ReserveAccountBurst: 5}}
	_, err := NewReserveLimiter(cfg, redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}))
	assert.Error(t, err)
}

func TestNilClientConstructors(t *testing.T) {
	assert.Nil(t, NewLocker(nil))
	_, err := NewTokenBucket(nil, 1, 1)
	assert.Error(t, err)
	assert.Nil(t, NewPlacementLocker(nil, config.ReservationConfig{}, zap.NewNop()))
}

func TestUnconfiguredLockerAndBucket(t *testing.T) {
	var locker *Locker
	lease, ok, err := locker.TryLock(context.Background(), "k", time.Second)
	assert.Error(t, err)
	assert.False(t, ok)
	assert.Empty(t, lease.Token)
	assert.NoError(t, locker.Release(context.Background(), Lease{Key: "k", Token: "token"}))

	configured := NewLocker(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}))
	_, _, err = configured.TryLock(context.Background(), "", time.Second)
	assert.Error(t, err)
	assert.NoError(t, configured.Release(context.Background(), Lease{}))

	var bucket *TokenBucket
	res, err := bucket.Take(context.Background(), "k")
	assert.Error(t, err)
	assert.False(t, res.Allowed)
}

func TestBucketTTL(t *testing.T) {
	assert.Equal(t, 10*time.Second, bucketTTL(1, 5))
	assert.Equal(t, time.Second, bucketTTL(100, 1))
	assert.Equal(t, time.Second, bucketTTL(0, 1))
}
