package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("lock_not_acquired")
	errNoLockClient    = errors.New("lock_client_not_configured")
	errInvalidLease    = errors.New("lock_key_and_ttl_required")
)

// Compare-and-delete so a lease that outlived its TTL cannot drop a lock now
// held by someone else.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

const lockPollInterval = 25 * time.Millisecond

// Locker is a SET NX lease lock on a single Redis.
type Locker struct {
	client *redis.Client
}

// Lease is a held lock. The zero value is not held.
type Lease struct {
	Key   string
	Token string
}

func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{client: client}
}

// TryLock makes one attempt. ok is false when another holder has the key.
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (Lease, bool, error) {
	if l == nil || l.client == nil {
		return Lease{}, false, errNoLockClient
	}
	if key == "" || ttl <= 0 {
		return Lease{}, false, errInvalidLease
	}
	lease := Lease{Key: key, Token: uuid.NewString()}
	ok, err := l.client.SetNX(ctx, key, lease.Token, ttl).Result()
	if err != nil || !ok {
		return Lease{}, false, err
	}
	return lease, true, nil
}

// Acquire polls TryLock until it succeeds, wait elapses, or ctx ends.
func (l *Locker) Acquire(ctx context.Context, key string, ttl, wait time.Duration) (Lease, error) {
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	ticker := time.NewTicker(lockPollInterval)
	defer ticker.Stop()
	for {
		lease, ok, err := l.TryLock(ctx, key, ttl)
		switch {
		case ok:
			return lease, nil
		case errors.Is(err, context.DeadlineExceeded):
			return Lease{}, ErrLockNotAcquired
		case err != nil:
			return Lease{}, err
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return Lease{}, ErrLockNotAcquired
			}
			return Lease{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Release is a no-op for a zero lease or an unconfigured locker.
func (l *Locker) Release(ctx context.Context, lease Lease) error {
	if l == nil || l.client == nil || lease.Token == "" {
		return nil
	}
	return unlockScript.Run(ctx, l.client, []string{lease.Key}, lease.Token).Err()
}
