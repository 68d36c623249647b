package reservation

import (
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/spotlight/internal/config"
	"github.com/smallbiznis/spotlight/internal/ratelimit"
	"github.com/smallbiznis/spotlight/internal/reservation/domain"
	"github.com/smallbiznis/spotlight/internal/reservation/repository"
	"github.com/smallbiznis/spotlight/internal/reservation/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("reservation.service",
	fx.Provide(repository.Provide),
	fx.Provide(NewPlacementLocker),
	fx.Provide(service.NewService),
)

type LockerParams struct {
	fx.In

	Config config.Config
	Redis  *redis.Client `optional:"true"`
	Log    *zap.Logger
}

// NewPlacementLocker always serializes within the process and adds a Redis
// lock when RESERVATION_LOCK_BACKEND=redis.
func NewPlacementLocker(p LockerParams) domain.PlacementLocker {
	local := service.NewLocalLocker()
	if p.Config.Reservation.LockBackend != config.LockBackendRedis {
		return local
	}
	if p.Redis == nil {
		p.Log.Warn("redis lock backend requested without REDIS_ADDR, using process-local locks")
		return local
	}
	return service.NewChainLocker(local, ratelimit.NewPlacementLocker(p.Redis, p.Config.Reservation, p.Log))
}
