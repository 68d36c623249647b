package occupancy

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/spotlight/internal/cache"
	"github.com/smallbiznis/spotlight/internal/clock"
	"github.com/smallbiznis/spotlight/internal/config"
	reservationdomain "github.com/smallbiznis/spotlight/internal/reservation/domain"
	slotcatalogdomain "github.com/smallbiznis/spotlight/internal/slotcatalog/domain"
	slotcatalogrepo "github.com/smallbiznis/spotlight/internal/slotcatalog/repository"
	slotcatalogservice "github.com/smallbiznis/spotlight/internal/slotcatalog/service"
	"github.com/smallbiznis/spotlight/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var today = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *gorm.DB, *clock.FakeClock) {
	t.Helper()

	db := dbtest.Open(t, &reservationdomain.Reservation{}, &slotcatalogdomain.Placement{}, &slotcatalogdomain.SlotPrice{})
	clk := clock.NewFakeClock(today)
	catalog := slotcatalogservice.NewService(slotcatalogservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		Clock: clk,
		Repo:  slotcatalogrepo.Provide(),
		Cache: cache.NewPriceCache(),
	})
	require.NoError(t, catalog.Sync(context.Background(), config.DefaultCatalogConfig()))

	return NewService(Params{DB: db, Log: zap.NewNop(), Clock: clk, Catalog: catalog}), db, clk
}

func seed(t *testing.T, db *gorm.DB, id int64, placement string, start time.Time, days int, status reservationdomain.Status) {
	t.Helper()
	require.NoError(t, db.Create(&reservationdomain.Reservation{
		ID:             snowflake.ID(id),
		AdID:           snowflake.ID(id + 1000),
		Placement:      placement,
		ScheduledStart: start,
		DurationDays:   days,
		ExpiresAt:      reservationdomain.ExpiresAt(start, days),
		Status:         status,
		CreatedBy:      reservationdomain.CreatedByAdmin,
		CreatedAt:      today,
		UpdatedAt:      today,
	}).Error)
}

func TestCountActiveIgnoresCancelledAndLapsed(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()

	seed(t, db, 1, "results", today, 15, reservationdomain.StatusActive)
	seed(t, db, 2, "results", today.Add(2*reservationdomain.Day), 7, reservationdomain.StatusPending)
	seed(t, db, 3, "results", today, 7, reservationdomain.StatusCancelled)
	// stored as active but already past its end
	seed(t, db, 4, "results", today.Add(-10*reservationdomain.Day), 7, reservationdomain.StatusActive)
	seed(t, db, 5, "homepage", today, 7, reservationdomain.StatusActive)

	count, err := svc.CountActive(ctx, "results", today, today.Add(reservationdomain.Day))
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = svc.CountActive(ctx, "results", today, today.Add(15*reservationdomain.Day))
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = svc.CountActiveTx(ctx, db, "results", today, today.Add(15*reservationdomain.Day), snowflake.ID(1))
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCountActiveBecomesFreeAfterExpiry(t *testing.T) {
	svc, db, clk := newTestService(t)
	ctx := context.Background()

	seed(t, db, 1, "results", today, 7, reservationdomain.StatusActive)
	clk.Advance(7 * reservationdomain.Day)

	count, err := svc.CountActive(ctx, "results", clk.Now(), clk.Now().Add(reservationdomain.Day))
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestCountActiveValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CountActive(ctx, "sidebar", today, today.Add(time.Hour))
	assert.ErrorIs(t, err, slotcatalogdomain.ErrInvalidPlacement)

	_, err = svc.CountActive(ctx, "results", today, today)
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestListActiveReturnsEffectiveStatus(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()

	// stored pending but started an hour ago
	seed(t, db, 1, "detail", today.Add(-time.Hour), 7, reservationdomain.StatusPending)
	seed(t, db, 2, "detail", today.Add(3*reservationdomain.Day), 7, reservationdomain.StatusPending)

	rows, err := svc.ListActive(ctx, "detail", today)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, snowflake.ID(1), rows[0].ID)
	assert.Equal(t, reservationdomain.StatusActive, rows[0].Status)
}

func TestGrid(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()

	seed(t, db, 1, "results", today, 7, reservationdomain.StatusActive)
	seed(t, db, 2, "results", today.Add(2*reservationdomain.Day), 7, reservationdomain.StatusPending)

	grid, err := svc.Grid(ctx, "results", today, today.Add(3*reservationdomain.Day))
	require.NoError(t, err)
	require.Len(t, grid, 3)

	assert.Equal(t, DayOccupancy{Date: "2025-03-01", Count: 1, Capacity: 4}, grid[0])
	assert.Equal(t, DayOccupancy{Date: "2025-03-02", Count: 1, Capacity: 4}, grid[1])
	assert.Equal(t, DayOccupancy{Date: "2025-03-03", Count: 2, Capacity: 4}, grid[2])

	_, err = svc.Grid(ctx, "results", today, today.Add(400*reservationdomain.Day))
	assert.ErrorIs(t, err, ErrInvalidRange)
}
