package authorization

import (
	"context"
	_ "embed"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	auditdomain "github.com/smallbiznis/spotlight/internal/audit/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectReservation = "reservation"
	ObjectLedger      = "ledger"
	ObjectCatalog     = "catalog"
	ObjectAd          = "ad"
	ObjectOccupancy   = "occupancy"
	ObjectAuditLog    = "audit_log"
)

const (
	ActionReservationView     = "reservation.view"
	ActionReservationCreate   = "reservation.create"
	ActionReservationCancel   = "reservation.cancel"
	ActionReservationOverride = "reservation.override"
	ActionReservationEdit     = "reservation.edit"
	ActionReservationBulk     = "reservation.bulk_assign"
	ActionReservationSync     = "reservation.sync"

	ActionLedgerView   = "ledger.view"
	ActionLedgerCredit = "ledger.credit"

	ActionCatalogView   = "catalog.view"
	ActionCatalogManage = "catalog.manage"

	ActionAdManage = "ad.manage"

	ActionOccupancyView = "occupancy.view"

	ActionAuditLogView = "audit_log.view"
)

const (
	roleSeller = "role:seller"
	roleAdmin  = "role:admin"
	roleSystem = "role:system"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	AuditSvc auditdomain.Service `optional:"true"`
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	auditSvc auditdomain.Service
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
		auditSvc: p.AuditSvc,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, actor string, object string, action string) error {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return ErrInvalidActor
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	roleName, actorType, actorID, err := resolveActor(actor)
	if err != nil {
		s.auditDenied(ctx, actorType, actorID, object, action)
		return err
	}

	if err := s.ensureGrouping(actor, roleName); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(actor, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Debug("authorization denied",
			zap.String("actor_type", actorType),
			zap.String("object", object),
			zap.String("action", action),
		)
		s.auditDenied(ctx, actorType, actorID, object, action)
		return ErrForbidden
	}

	if shouldAuditGrant(action) {
		s.auditGranted(ctx, actorType, actorID, object, action)
	}
	return nil
}

func resolveActor(actor string) (string, string, *string, error) {
	switch {
	case actor == ActorSystem:
		return roleSystem, string(auditdomain.ActorTypeSystem), nil, nil
	case strings.HasPrefix(actor, ActorPrefixAdmin):
		adminID := strings.TrimSpace(strings.TrimPrefix(actor, ActorPrefixAdmin))
		if adminID == "" {
			return "", string(auditdomain.ActorTypeAdmin), nil, ErrInvalidActor
		}
		return roleAdmin, string(auditdomain.ActorTypeAdmin), &adminID, nil
	case strings.HasPrefix(actor, ActorPrefixSeller):
		raw := strings.TrimPrefix(actor, ActorPrefixSeller)
		accountID, err := snowflake.ParseString(strings.TrimSpace(raw))
		if err != nil || accountID <= 0 {
			return "", string(auditdomain.ActorTypeSeller), nil, ErrInvalidActor
		}
		id := accountID.String()
		return roleSeller, string(auditdomain.ActorTypeSeller), &id, nil
	}
	return "", "", nil, ErrInvalidActor
}

func (s *ServiceImpl) ensureGrouping(subject string, roleName string) error {
	has, err := s.enforcer.HasGroupingPolicy(subject, roleName)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName)
	return err
}

func (s *ServiceImpl) auditDenied(ctx context.Context, actorType string, actorID *string, object string, action string) {
	s.audit(ctx, "authorization.denied", actorType, actorID, object, action)
}

func (s *ServiceImpl) auditGranted(ctx context.Context, actorType string, actorID *string, object string, action string) {
	s.audit(ctx, "authorization.granted", actorType, actorID, object, action)
}

func (s *ServiceImpl) audit(ctx context.Context, auditAction string, actorType string, actorID *string, object string, action string) {
	if s.auditSvc == nil {
		return
	}
	if actorType == "" {
		actorType = "unknown"
	}
	targetID := "capability"
	if err := s.auditSvc.AuditLog(ctx, actorType, actorID, auditAction, auditdomain.TargetAuthorization, &targetID, map[string]any{
		"object": object,
		"action": action,
	}); err != nil {
		s.log.Warn("failed to audit authorization decision", zap.String("action", action), zap.Error(err))
	}
}

func shouldAuditGrant(action string) bool {
	switch action {
	case ActionReservationOverride, ActionLedgerCredit, ActionCatalogManage:
		return true
	default:
		return false
	}
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Sellers act on their own account; ownership is checked by the caller.
		{roleSeller, ObjectReservation, ActionReservationView},
		{roleSeller, ObjectReservation, ActionReservationCreate},
		{roleSeller, ObjectReservation, ActionReservationCancel},
		{roleSeller, ObjectLedger, ActionLedgerView},
		{roleSeller, ObjectCatalog, ActionCatalogView},
		{roleSeller, ObjectOccupancy, ActionOccupancyView},

		{roleAdmin, ObjectReservation, ActionReservationView},
		{roleAdmin, ObjectReservation, ActionReservationCancel},
		{roleAdmin, ObjectReservation, ActionReservationOverride},
		{roleAdmin, ObjectReservation, ActionReservationEdit},
		{roleAdmin, ObjectReservation, ActionReservationBulk},
		{roleAdmin, ObjectLedger, ActionLedgerView},
		{roleAdmin, ObjectLedger, ActionLedgerCredit},
		{roleAdmin, ObjectCatalog, ActionCatalogView},
		{roleAdmin, ObjectCatalog, ActionCatalogManage},
		{roleAdmin, ObjectAd, ActionAdManage},
		{roleAdmin, ObjectOccupancy, ActionOccupancyView},
		{roleAdmin, ObjectAuditLog, ActionAuditLogView},

		// Payment webhooks and background jobs.
		{roleSystem, ObjectLedger, ActionLedgerCredit},
		{roleSystem, ObjectReservation, ActionReservationSync},
		{roleSystem, ObjectReservation, ActionReservationView},
	}

	for _, policy := range policies {
		has, err := enforcer.HasPolicy(policy)
		if err != nil {
			return err
		}
		if has {
			continue
		}
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
