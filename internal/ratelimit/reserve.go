package ratelimit

import (
	"context"
	"errors"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/spotlight/internal/config"
)

const reserveAccountKeyPrefix = "spotlight:reserve:account:"

// ReserveLimiter throttles paid reserve attempts per seller account. A nil
// limiter allows everything.
type ReserveLimiter struct {
	bucket *TokenBucket
}

// NewReserveLimiter returns nil when rate limiting is disabled.
func NewReserveLimiter(cfg config.Config, client *redis.Client) (*ReserveLimiter, error) {
	rl := cfg.RateLimit
	if !rl.Enabled {
		return nil, nil
	}
	if client == nil {
		return nil, errors.New("rate limit requires REDIS_ADDR")
	}
	bucket, err := NewTokenBucket(client, rl.ReserveAccountRate, rl.ReserveAccountBurst)
	if err != nil {
		return nil, err
	}
	return &ReserveLimiter{bucket: bucket}, nil
}

func (l *ReserveLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *ReserveLimiter) AllowAccount(ctx context.Context, accountID string) (Decision, error) {
	if !l.Enabled() {
		return Decision{Allowed: true}, nil
	}
	return l.bucket.Take(ctx, reserveAccountKeyPrefix+strings.TrimSpace(accountID))
}
