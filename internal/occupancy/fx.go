package occupancy

import "go.uber.org/fx"

var Module = fx.Module("occupancy.service",
	fx.Provide(NewService),
	fx.Provide(func(s *Service) Reader { return s }),
)
