package ratelimit

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/spotlight/internal/config"
	obsmetrics "github.com/smallbiznis/spotlight/internal/observability/metrics"
	"go.uber.org/zap"
)

const keyPlacementLock = "spotlight:placement:lock:%s"

// PlacementLocker holds a cross-instance Redis lock per placement.
type PlacementLocker struct {
	locker *Locker
	ttl    time.Duration
	wait   time.Duration
	log    *zap.Logger
}

func NewPlacementLocker(client *redis.Client, cfg config.ReservationConfig, log *zap.Logger) *PlacementLocker {
	if client == nil {
		return nil
	}
	ttl := cfg.LockTTL
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	wait := cfg.LockWait
	if wait <= 0 {
		wait = 3 * time.Second
	}
	return &PlacementLocker{
		locker: NewLocker(client),
		ttl:    ttl,
		wait:   wait,
		log:    log.Named("ratelimit.placement_lock"),
	}
}

// Lock acquires every placement in the given order and returns a release
// func. Callers pass placements in a stable order.
func (p *PlacementLocker) Lock(ctx context.Context, placements ...string) (func(), error) {
	acquired := make([]Lease, 0, len(placements))
	release := func() {
		for i := len(acquired) - 1; i >= 0; i-- {
			if err := p.locker.Release(context.Background(), acquired[i]); err != nil {
				p.log.Warn("placement lock release failed", zap.String("key", acquired[i].Key), zap.Error(err))
			}
		}
	}

	start := time.Now()
	for _, placement := range placements {
		lease, err := p.locker.Acquire(ctx, fmt.Sprintf(keyPlacementLock, placement), p.ttl, p.wait)
		if err != nil {
			release()
			return nil, fmt.Errorf("placement lock %s: %w", placement, err)
		}
		acquired = append(acquired, lease)
	}
	obsmetrics.Scheduler().ObserveDBLockWait(obsmetrics.LockResourcePlacement, time.Since(start))
	return release, nil
}
