package events

import (
	"context"
	"strings"

	"github.com/smallbiznis/spotlight/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("events",
	fx.Provide(NewOutbox),
)

// RelayModule is only needed by processes that deliver events.
var RelayModule = fx.Module("events.relay",
	fx.Provide(NewPublisher),
	fx.Provide(NewRelay),
)

func NewPublisher(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) Publisher {
	var pub Publisher
	if strings.TrimSpace(cfg.AMQP.URL) == "" {
		log.Info("AMQP_URL not set, events are logged only")
		pub = NewLogPublisher(log)
	} else {
		pub = NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, log)
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return pub.Close()
		},
	})
	return pub
}
