package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/spotlight/internal/audit/domain"
	"github.com/smallbiznis/spotlight/internal/audit/masking"
	auditcontext "github.com/smallbiznis/spotlight/internal/auditcontext"
	"github.com/smallbiznis/spotlight/internal/clock"
	"github.com/smallbiznis/spotlight/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  auditdomain.Repository
	Clock clock.Clock `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  auditdomain.Repository
	clock clock.Clock
}

func NewService(p Params) auditdomain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.NewSystemClock()
	}
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		repo:  p.Repo,
		clock: clk,
	}
}

func (s *Service) AuditLog(ctx context.Context, actorType string, actorID *string, action string, targetType string, targetID *string, metadata map[string]any) error {
	action = strings.TrimSpace(action)
	if action == "" {
		return auditdomain.ErrInvalidAction
	}
	targetType = strings.TrimSpace(targetType)
	if targetType == "" {
		targetType = "unknown"
	}

	entry := auditdomain.AuditLog{
		ID:         s.genID.Generate(),
		Action:     action,
		TargetType: targetType,
		TargetID:   trimmed(targetID),
		Metadata:   datatypes.JSONMap(s.metadata(ctx, metadata)),
		AccountID:  nonEmpty(auditcontext.AccountIDFromContext(ctx)),
		IPAddress:  nonEmpty(auditcontext.IPAddressFromContext(ctx)),
		UserAgent:  nonEmpty(auditcontext.UserAgentFromContext(ctx)),
		CreatedAt:  s.clock.Now().UTC(),
	}
	entry.ActorType, entry.ActorID = resolveActor(ctx, strings.TrimSpace(actorType), actorID)

	if err := s.repo.Insert(ctx, s.db, &entry); err != nil {
		s.log.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
		return err
	}
	return nil
}

// metadata masks secrets and stamps the request and reservation ids the
// context carries.
func (s *Service) metadata(ctx context.Context, in map[string]any) map[string]any {
	out := masking.MaskSensitive(in)
	if id := auditcontext.RequestIDFromContext(ctx); id != "" {
		out["request_id"] = id
	}
	if id := auditcontext.ReservationIDFromContext(ctx); id != "" {
		out["reservation_id"] = id
	}
	return out
}

func (s *Service) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	if req.StartAt != nil && req.EndAt != nil && req.StartAt.After(*req.EndAt) {
		return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidTimeRange
	}
	after, err := req.After()
	if err != nil {
		return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidPageToken
	}
	size := req.Size()

	logs, err := s.repo.List(ctx, s.db, auditdomain.ListFilter{
		Action:     req.Action,
		TargetType: req.TargetType,
		TargetID:   req.TargetID,
		ActorType:  req.ActorType,
		ActorID:    req.ActorID,
		AccountID:  req.AccountID,
		StartAt:    req.StartAt,
		EndAt:      req.EndAt,
		After:      after,
		Limit:      size,
	})
	if err != nil {
		return auditdomain.ListAuditLogResponse{}, err
	}

	logs, page := pagination.Trim(logs, size, func(l auditdomain.AuditLog) pagination.Keyset {
		return pagination.Keyset{ID: l.ID, CreatedAt: l.CreatedAt}
	})
	if logs == nil {
		logs = []auditdomain.AuditLog{}
	}
	return auditdomain.ListAuditLogResponse{PageInfo: page, AuditLogs: logs}, nil
}

// resolveActor falls back to the actor on the context, then to system.
func resolveActor(ctx context.Context, actorType string, actorID *string) (string, *string) {
	id := trimmed(actorID)
	if actorType == "" {
		ctxType, ctxID := auditcontext.ActorFromContext(ctx)
		actorType = ctxType
		if id == nil {
			id = nonEmpty(ctxID)
		}
	}
	if actorType == "" {
		actorType = string(auditdomain.ActorTypeSystem)
	}
	return actorType, id
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	return nonEmpty(*v)
}

func nonEmpty(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
