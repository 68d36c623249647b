package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	auditdomain "github.com/smallbiznis/spotlight/internal/audit/domain"
	"github.com/smallbiznis/spotlight/internal/audit/repository"
	auditcontext "github.com/smallbiznis/spotlight/internal/auditcontext"
	"github.com/smallbiznis/spotlight/internal/clock"
	"github.com/smallbiznis/spotlight/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (auditdomain.Service, *clock.FakeClock) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&auditdomain.AuditLog{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	svc := NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
		Clock: clk,
	})
	return svc, clk
}

func TestAuditLogResolvesActorFromContext(t *testing.T) {
	svc, _ := newTestService(t)

	ctx := auditcontext.WithActor(context.Background(), "admin", "ops")
	ctx = auditcontext.WithRequestID(ctx, "req-1")
	ctx = auditcontext.WithReservationID(ctx, "900")
	target := "900"

	err := svc.AuditLog(ctx, "", nil, "reservation.admin_override", "reservation", &target, map[string]any{
		"reason":      "launch promo",
		"admin_token": "adm_abcdef123456",
	})
	require.NoError(t, err)

	resp, err := svc.List(context.Background(), auditdomain.ListAuditLogRequest{})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)

	entry := resp.AuditLogs[0]
	assert.Equal(t, "admin", entry.ActorType)
	require.NotNil(t, entry.ActorID)
	assert.Equal(t, "ops", *entry.ActorID)
	assert.Equal(t, "req-1", entry.Metadata["request_id"])
	assert.Equal(t, "900", entry.Metadata["reservation_id"])
	assert.Equal(t, "adm_****3456", entry.Metadata["admin_token"])
}

func TestAuditLogDefaultsToSystemActor(t *testing.T) {
	svc, _ := newTestService(t)

	require.NoError(t, svc.AuditLog(context.Background(), "", nil, "reservation.expired", "reservation", nil, nil))
	require.ErrorIs(t, svc.AuditLog(context.Background(), "", nil, " ", "reservation", nil, nil), auditdomain.ErrInvalidAction)

	resp, err := svc.List(context.Background(), auditdomain.ListAuditLogRequest{})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)
	assert.Equal(t, string(auditdomain.ActorTypeSystem), resp.AuditLogs[0].ActorType)
}

func TestListPaginates(t *testing.T) {
	svc, clk := newTestService(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.AuditLog(context.Background(), "system", nil, "reservation.activated", "reservation", nil, nil))
		clk.Advance(time.Minute)
	}

	first, err := svc.List(context.Background(), auditdomain.ListAuditLogRequest{
		Pagination: pagination.Pagination{PageSize: 2},
	})
	require.NoError(t, err)
	require.Len(t, first.AuditLogs, 2)
	require.True(t, first.HasMore)

	second, err := svc.List(context.Background(), auditdomain.ListAuditLogRequest{
		Pagination: pagination.Pagination{PageSize: 2, PageToken: first.NextPageToken},
	})
	require.NoError(t, err)
	require.Len(t, second.AuditLogs, 1)
	assert.False(t, second.HasMore)

	_, err = svc.List(context.Background(), auditdomain.ListAuditLogRequest{
		Pagination: pagination.Pagination{PageToken: "garbage"},
	})
	require.ErrorIs(t, err, auditdomain.ErrInvalidPageToken)
}

func TestListFiltersByAccount(t *testing.T) {
	svc, _ := newTestService(t)

	sellerCtx := auditcontext.WithAccountID(context.Background(), "1001")
	target := "77"
	require.NoError(t, svc.AuditLog(sellerCtx, "seller", &target, "reservation.created", auditdomain.TargetReservation, &target, nil))
	require.NoError(t, svc.AuditLog(context.Background(), "", nil, "catalog.price_updated", auditdomain.TargetPlacement, nil, nil))

	resp, err := svc.List(context.Background(), auditdomain.ListAuditLogRequest{AccountID: "1001"})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)
	require.NotNil(t, resp.AuditLogs[0].AccountID)
	assert.Equal(t, "1001", *resp.AuditLogs[0].AccountID)
	assert.Equal(t, "reservation.created", resp.AuditLogs[0].Action)
}

func TestListRejectsInvertedRange(t *testing.T) {
	svc, _ := newTestService(t)

	start := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)
	end := start.Add(-time.Hour)
	_, err := svc.List(context.Background(), auditdomain.ListAuditLogRequest{StartAt: &start, EndAt: &end})
	require.ErrorIs(t, err, auditdomain.ErrInvalidTimeRange)
}
