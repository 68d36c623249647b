package slotcatalog

import (
	"context"

	"github.com/smallbiznis/spotlight/internal/cache"
	"github.com/smallbiznis/spotlight/internal/config"
	"github.com/smallbiznis/spotlight/internal/slotcatalog/domain"
	"github.com/smallbiznis/spotlight/internal/slotcatalog/repository"
	"github.com/smallbiznis/spotlight/internal/slotcatalog/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("slotcatalog.service",
	fx.Provide(repository.Provide),
	fx.Provide(cache.NewPriceCache),
	fx.Provide(service.NewService),
)

// SyncModule seeds the catalog from catalog.yml on start and on every reload.
var SyncModule = fx.Module("slotcatalog.sync",
	fx.Invoke(RegisterCatalogSync),
)

func RegisterCatalogSync(lc fx.Lifecycle, holder *config.CatalogConfigHolder, svc domain.Service, log *zap.Logger) {
	log = log.Named("slotcatalog.sync")
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := svc.Sync(ctx, holder.Get()); err != nil {
				return err
			}
			holder.OnChange(func(cfg config.CatalogConfig) {
				if err := svc.Sync(context.Background(), cfg); err != nil {
					log.Error("catalog reload rejected", zap.Error(err))
				}
			})
			return nil
		},
	})
}
