package adcatalog

import (
	"github.com/smallbiznis/spotlight/internal/adcatalog/repository"
	"github.com/smallbiznis/spotlight/internal/adcatalog/service"
	"go.uber.org/fx"
)

var Module = fx.Module("adcatalog.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
	fx.Provide(service.NewDirectory),
)
