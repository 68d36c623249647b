package migration

import (
	"strings"

	adcatalogdomain "github.com/smallbiznis/spotlight/internal/adcatalog/domain"
	auditdomain "github.com/smallbiznis/spotlight/internal/audit/domain"
	"github.com/smallbiznis/spotlight/internal/config"
	"github.com/smallbiznis/spotlight/internal/events"
	ledgerdomain "github.com/smallbiznis/spotlight/internal/ledger/domain"
	reservationdomain "github.com/smallbiznis/spotlight/internal/reservation/domain"
	slotcatalogdomain "github.com/smallbiznis/spotlight/internal/slotcatalog/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(Apply),
)

// Apply runs the embedded SQL on Postgres. Other dialects are development
// setups and get the schema from the models instead.
func Apply(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
	if strings.EqualFold(strings.TrimSpace(cfg.DBType), "postgres") {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		if err := RunMigrations(sqlDB); err != nil {
			return err
		}
		log.Info("database migrations applied")
		return nil
	}

	log.Warn("auto-migrating schema from models", zap.String("db_type", cfg.DBType))
	return conn.AutoMigrate(Models()...)
}

// Models lists every table the service owns.
func Models() []any {
	return []any{
		&slotcatalogdomain.Placement{},
		&slotcatalogdomain.SlotPrice{},
		&adcatalogdomain.Ad{},
		&ledgerdomain.Account{},
		&ledgerdomain.Entry{},
		&reservationdomain.Reservation{},
		&events.OutboxEvent{},
		&auditdomain.AuditLog{},
	}
}
