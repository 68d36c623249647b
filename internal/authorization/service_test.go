package authorization

import (
	"context"
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	auditdomain "github.com/smallbiznis/spotlight/internal/audit/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type recordingAudit struct {
	actions []string
}

func (r *recordingAudit) AuditLog(_ context.Context, _ string, _ *string, action string, _ string, _ *string, _ map[string]any) error {
	r.actions = append(r.actions, action)
	return nil
}

func (r *recordingAudit) List(context.Context, auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	return auditdomain.ListAuditLogResponse{}, nil
}

func newTestService(t *testing.T) (Service, *recordingAudit) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	enforcer, err := NewEnforcer(db)
	require.NoError(t, err)

	audit := &recordingAudit{}
	return NewService(Params{
		Log:      zap.NewNop(),
		Enforcer: enforcer,
		AuditSvc: audit,
	}), audit
}

func TestAuthorizeSeller(t *testing.T) {
	svc, audit := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Authorize(ctx, "seller:77", ObjectReservation, ActionReservationCreate))
	require.ErrorIs(t, svc.Authorize(ctx, "seller:77", ObjectReservation, ActionReservationOverride), ErrForbidden)
	require.ErrorIs(t, svc.Authorize(ctx, "seller:abc", ObjectReservation, ActionReservationCreate), ErrInvalidActor)

	assert.Equal(t, []string{"authorization.denied", "authorization.denied"}, audit.actions)
}

func TestAuthorizeAdminAuditsSensitiveGrants(t *testing.T) {
	svc, audit := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Authorize(ctx, "admin:ops", ObjectReservation, ActionReservationOverride))
	require.NoError(t, svc.Authorize(ctx, "admin:ops", ObjectOccupancy, ActionOccupancyView))

	assert.Equal(t, []string{"authorization.granted"}, audit.actions)
}

func TestAuthorizeSystemAndValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Authorize(ctx, ActorSystem, ObjectLedger, ActionLedgerCredit))
	require.ErrorIs(t, svc.Authorize(ctx, ActorSystem, ObjectCatalog, ActionCatalogManage), ErrForbidden)
	require.ErrorIs(t, svc.Authorize(ctx, "", ObjectLedger, ActionLedgerCredit), ErrInvalidActor)
	require.ErrorIs(t, svc.Authorize(ctx, ActorSystem, "", ActionLedgerCredit), ErrInvalidObject)
	require.ErrorIs(t, svc.Authorize(ctx, ActorSystem, ObjectLedger, " "), ErrInvalidAction)
	require.ErrorIs(t, svc.Authorize(ctx, "robot:1", ObjectLedger, ActionLedgerCredit), ErrInvalidActor)
}
