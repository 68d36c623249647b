package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// The bucket is kept in milli-tokens so fractional refill survives Redis
// truncating Lua numbers to integers on return. Time comes from the Redis
// server clock, so API replicas agree on refill.
//
// KEYS[1] bucket hash
// ARGV[1] refill, milli-tokens per millisecond (rate tokens/s == rate milli/ms)
// ARGV[2] capacity in milli-tokens
// ARGV[3] ttl ms
// returns {allowed, remaining_milli, retry_after_ms}
const tokenBucketScript = `
local rate = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

local t = redis.call("TIME")
local now = t[1] * 1000 + math.floor(t[2] / 1000)

local state = redis.call("HMGET", KEYS[1], "m", "ts")
local milli = tonumber(state[1]) or capacity
local ts = tonumber(state[2]) or now
if now > ts then
  milli = math.min(capacity, milli + (now - ts) * rate)
end

local allowed = 0
local retry = 0
if milli >= 1000 then
  allowed = 1
  milli = milli - 1000
else
  retry = math.ceil((1000 - milli) / rate)
end

redis.call("HSET", KEYS[1], "m", milli, "ts", now)
redis.call("PEXPIRE", KEYS[1], ttl)
return {allowed, math.floor(milli), retry}
`

// Decision is the outcome of one bucket take.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// TokenBucket is a Redis-backed token bucket with a fixed rate and burst.
type TokenBucket struct {
	client *redis.Client
	script *redis.Script
	rate   float64
	burst  int
}

func NewTokenBucket(client *redis.Client, rate float64, burst int) (*TokenBucket, error) {
	if client == nil {
		return nil, errors.New("token bucket requires a redis client")
	}
	if rate <= 0 || burst <= 0 {
		return nil, fmt.Errorf("token bucket rate %.3f and burst %d must be positive", rate, burst)
	}
	return &TokenBucket{
		client: client,
		script: redis.NewScript(tokenBucketScript),
		rate:   rate,
		burst:  burst,
	}, nil
}

// Take removes one token from the bucket at key.
func (b *TokenBucket) Take(ctx context.Context, key string) (Decision, error) {
	if b == nil || b.client == nil {
		return Decision{}, errors.New("token bucket not configured")
	}
	if key == "" {
		return Decision{}, errors.New("token bucket key is empty")
	}

	raw, err := b.script.Run(ctx, b.client, []string{key},
		b.rate,
		b.burst*1000,
		bucketTTL(b.rate, b.burst).Milliseconds(),
	).Int64Slice()
	if err != nil {
		return Decision{}, err
	}
	if len(raw) != 3 {
		return Decision{}, fmt.Errorf("token bucket script returned %d values", len(raw))
	}

	return Decision{
		Allowed:    raw[0] == 1,
		Limit:      b.burst,
		Remaining:  int(raw[1] / 1000),
		RetryAfter: time.Duration(raw[2]) * time.Millisecond,
	}, nil
}

// bucketTTL keeps idle buckets around for twice the time a full refill
// takes; after that the bucket would be full anyway.
func bucketTTL(rate float64, burst int) time.Duration {
	if rate <= 0 || burst <= 0 {
		return time.Second
	}
	seconds := math.Ceil(2 * float64(burst) / rate)
	return time.Duration(max(seconds, 1)) * time.Second
}
