// Package app composes the fx graphs for the spotlight processes.
package app

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/spotlight/internal/adcatalog"
	"github.com/smallbiznis/spotlight/internal/audit"
	"github.com/smallbiznis/spotlight/internal/authorization"
	"github.com/smallbiznis/spotlight/internal/clock"
	"github.com/smallbiznis/spotlight/internal/config"
	"github.com/smallbiznis/spotlight/internal/events"
	"github.com/smallbiznis/spotlight/internal/ledger"
	"github.com/smallbiznis/spotlight/internal/migration"
	"github.com/smallbiznis/spotlight/internal/observability"
	"github.com/smallbiznis/spotlight/internal/occupancy"
	"github.com/smallbiznis/spotlight/internal/ratelimit"
	"github.com/smallbiznis/spotlight/internal/reservation"
	"github.com/smallbiznis/spotlight/internal/scheduler"
	"github.com/smallbiznis/spotlight/internal/server"
	"github.com/smallbiznis/spotlight/internal/slotcatalog"
	"github.com/smallbiznis/spotlight/pkg/db"
	"go.uber.org/fx"
)

// Infra is shared by every process.
func Infra() fx.Option {
	return fx.Options(
		config.Module,
		config.CatalogModule,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
	)
}

// Domain wires the services behind reservations.
func Domain() fx.Option {
	return fx.Options(
		audit.Module,
		authorization.Module,
		events.Module,
		ledger.Module,
		slotcatalog.Module,
		adcatalog.Module,
		occupancy.Module,
		ratelimit.Module,
		reservation.Module,
	)
}

// API serves HTTP. It applies migrations and syncs the catalog on start.
func API() fx.Option {
	return fx.Options(
		Infra(),
		migration.Module,
		Domain(),
		slotcatalog.SyncModule,
		server.Module,
	)
}

// Scheduler runs status sweeps and relays the outbox.
func Scheduler() fx.Option {
	return fx.Options(
		Infra(),
		Domain(),
		events.RelayModule,
		scheduler.Module,
	)
}

// All runs the API and the scheduler in one process.
func All() fx.Option {
	return fx.Options(
		Infra(),
		migration.Module,
		Domain(),
		slotcatalog.SyncModule,
		events.RelayModule,
		server.Module,
		scheduler.Module,
	)
}

// Store opens the database without any domain services.
func Store() fx.Option {
	return fx.Options(
		config.Module,
		observability.Module,
		db.Module,
	)
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
