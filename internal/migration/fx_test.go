package migration

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/smallbiznis/spotlight/internal/config"
	reservationdomain "github.com/smallbiznis/spotlight/internal/reservation/domain"
	"github.com/smallbiznis/spotlight/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestApplyAutoMigratesNonPostgres(t *testing.T) {
	conn := dbtest.Open(t)

	require.NoError(t, Apply(conn, config.Config{DBType: "sqlite"}, zap.NewNop()))

	for _, table := range []string{"placements", "slot_prices", "ads", "ledger_accounts", "ledger_entries", "featured_reservations", "outbox_events", "audit_logs"} {
		assert.True(t, conn.Migrator().HasTable(table), table)
	}
	assert.True(t, conn.Migrator().HasColumn(&reservationdomain.Reservation{}, "refund_amount"))
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(embeddedMigrations, migrationsDir)
	require.NoError(t, err)

	ups, downs := map[string]bool{}, map[string]bool{}
	for _, entry := range entries {
		name := entry.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		}
	}
	require.NotEmpty(t, ups)
	assert.Equal(t, ups, downs)
}

func TestInitMigrationKeepsLiveReservationIndex(t *testing.T) {
	raw, err := fs.ReadFile(embeddedMigrations, migrationsDir+"/000001_init.up.sql")
	require.NoError(t, err)

	assert.Contains(t, string(raw), "ON featured_reservations (ad_id, placement)\n    WHERE status IN ('pending', 'active')")
}
