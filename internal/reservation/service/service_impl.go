package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	adcatalogdomain "github.com/smallbiznis/spotlight/internal/adcatalog/domain"
	auditdomain "github.com/smallbiznis/spotlight/internal/audit/domain"
	"github.com/smallbiznis/spotlight/internal/auditcontext"
	"github.com/smallbiznis/spotlight/internal/clock"
	"github.com/smallbiznis/spotlight/internal/events"
	ledgerdomain "github.com/smallbiznis/spotlight/internal/ledger/domain"
	"github.com/smallbiznis/spotlight/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/spotlight/internal/observability/metrics"
	"github.com/smallbiznis/spotlight/internal/occupancy"
	"github.com/smallbiznis/spotlight/internal/refund"
	"github.com/smallbiznis/spotlight/internal/reservation/domain"
	slotcatalogdomain "github.com/smallbiznis/spotlight/internal/slotcatalog/domain"
	"github.com/smallbiznis/spotlight/pkg/db"
	"github.com/smallbiznis/spotlight/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	maxBulkItems    = 100
	maxEditAttempts = 3
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       domain.Repository
	Catalog    slotcatalogdomain.Service
	Directory  adcatalogdomain.Directory
	Ledger     ledgerdomain.Service
	Occupancy  occupancy.Reader
	Locker     domain.PlacementLocker
	Outbox     *events.Outbox      `optional:"true"`
	AuditSvc   auditdomain.Service `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       domain.Repository
	catalog    slotcatalogdomain.Service
	directory  adcatalogdomain.Directory
	ledger     ledgerdomain.Service
	occupancy  occupancy.Reader
	locker     domain.PlacementLocker
	outbox     *events.Outbox
	auditSvc   auditdomain.Service
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) domain.Service {
	locker := p.Locker
	if locker == nil {
		locker = NewLocalLocker()
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("reservation.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		catalog:    p.Catalog,
		directory:  p.Directory,
		ledger:     p.Ledger,
		occupancy:  p.Occupancy,
		locker:     locker,
		outbox:     p.Outbox,
		auditSvc:   p.AuditSvc,
		obsMetrics: p.ObsMetrics,
	}
}

// Reserve runs the single allocation path for paid and free reservations.
// Capacity and uniqueness are checked under the placement lock in the same
// transaction that debits the ledger and inserts the row.
func (s *Service) Reserve(ctx context.Context, req domain.ReserveRequest) (*domain.Reservation, error) {
	placement := slotcatalogdomain.NormalizePlacement(req.Placement)
	auth, err := normalizeAuth(req.Auth)
	if err != nil {
		return nil, err
	}
	if req.AdID <= 0 {
		return nil, domain.ErrInvalidRequest
	}
	if !slotcatalogdomain.IsKnownPlacement(placement) {
		return nil, domain.ErrInvalidPlacement
	}

	now := s.clock.Now().UTC()
	start := req.ScheduledStart.UTC()
	if req.ScheduledStart.IsZero() {
		start = now
	}

	price, ok, err := s.catalog.PriceFor(ctx, placement, req.DurationDays)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.reject(ctx, placement, domain.ErrInvalidDuration)
	}
	expiresAt := domain.ExpiresAt(start, req.DurationDays)
	if !expiresAt.After(now) {
		return nil, s.reject(ctx, placement, domain.ErrInvalidSchedule)
	}

	eligible, err := s.directory.IsEligible(ctx, req.AdID)
	if err != nil {
		return nil, err
	}
	if !eligible {
		return nil, s.reject(ctx, placement, domain.ErrAdNotEligible)
	}

	unlock, err := s.locker.Lock(ctx, placement)
	if err != nil {
		return nil, fmt.Errorf("lock placement: %w", err)
	}
	defer unlock()

	var reservation *domain.Reservation
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now = s.clock.Now().UTC()
		row, err := s.catalog.LockPlacement(ctx, tx, placement)
		if err != nil {
			return err
		}

		if err := s.expireLapsed(ctx, tx, req.AdID, placement, now); err != nil {
			return err
		}
		existing, err := s.repo.FindLive(ctx, tx, req.AdID, placement, now, 0)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.ErrAlreadyFeatured
		}

		count, err := s.occupancy.CountActiveTx(ctx, tx, placement, start, expiresAt, 0)
		if err != nil {
			return err
		}
		if count >= row.Capacity {
			return domain.ErrCapacityExceeded
		}

		id := s.genID.Generate()
		res := &domain.Reservation{
			ID:             id,
			AdID:           req.AdID,
			Placement:      placement,
			ScheduledStart: start,
			DurationDays:   req.DurationDays,
			ExpiresAt:      expiresAt,
			Status:         domain.InitialStatus(start, now),
			ActorID:        auth.ActorID,
			Reason:         auth.Reason,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if auth.AccountID != 0 {
			accountID := auth.AccountID
			res.AccountID = &accountID
		}

		switch auth.Mode {
		case domain.ModePaid:
			res.CreatedBy = domain.CreatedByUser
			if _, err := s.ledger.DebitTx(ctx, tx, ledgerdomain.DebitRequest{
				AccountID:      auth.AccountID,
				Amount:         price.CreditCost,
				Reason:         ledgerdomain.ReasonFeaturedDebit,
				Memo:           "featured:" + placement,
				Reference:      &ledgerdomain.Reference{Type: ledgerdomain.ReferenceTypeReservation, ID: id.String()},
				IdempotencyKey: "reserve:" + id.String(),
			}); err != nil {
				return err
			}
			res.CreditConsumed = true
			res.CreditsSpent = price.CreditCost
		case domain.ModeFree:
			res.CreatedBy = domain.CreatedByAdmin
		}

		if err := s.repo.Insert(ctx, tx, res); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrAlreadyFeatured
			}
			return err
		}
		if err := s.publish(ctx, tx, events.EventReservationCreated, res, nil); err != nil {
			return err
		}
		reservation = res
		return nil
	})
	if err != nil {
		return nil, s.reject(ctx, placement, err)
	}

	s.audit(ctx, auth, "reservation.created", reservation, map[string]any{
		"ad_id":         reservation.AdID.String(),
		"placement":     reservation.Placement,
		"duration_days": reservation.DurationDays,
		"credits_spent": reservation.CreditsSpent,
		"mode":          string(auth.Mode),
	})
	s.obsMetrics.RecordReservation(ctx, placement, string(reservation.CreatedBy))
	logger.WithReservation(logger.FromContext(ctx), reservation.ID.String(), placement).Info("reservation created",
		zap.String("ad_id", reservation.AdID.String()),
		zap.String("mode", string(auth.Mode)),
		zap.Int64("credits_spent", reservation.CreditsSpent),
	)

	out := reservation.WithEffectiveStatus(s.clock.Now().UTC())
	return &out, nil
}

func (s *Service) Cancel(ctx context.Context, req domain.CancelRequest) (*domain.CancelResult, error) {
	if req.ReservationID <= 0 {
		return nil, domain.ErrInvalidRequest
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, domain.ErrReasonRequired
	}

	var (
		reservation *domain.Reservation
		refunded    refund.Result
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res, err := s.repo.Lock(ctx, tx, req.ReservationID)
		if err != nil {
			return err
		}
		if res == nil || !ownedBy(res, req.AccountID) {
			return domain.ErrReservationNotFound
		}

		now := s.clock.Now().UTC()
		switch res.EffectiveStatus(now) {
		case domain.StatusPending, domain.StatusActive:
		default:
			return domain.ErrNotCancellable
		}

		refunded = refund.Calculate(refund.Input{
			ExpiresAt:       res.ExpiresAt,
			DurationDays:    res.DurationDays,
			CreditsSpent:    res.CreditsSpent,
			CreditConsumed:  res.CreditConsumed,
			RefundRequested: req.RefundRequested,
		}, now)

		res.CancelReason = reason
		res.RefundAmount = refunded.Amount
		res.CancelledAt = &now
		res.UpdatedAt = now
		affected, err := s.repo.MarkCancelled(ctx, tx, res)
		if err != nil {
			return err
		}
		if affected == 0 {
			return domain.ErrNotCancellable
		}
		res.Status = domain.StatusCancelled

		if refunded.Amount > 0 && res.AccountID != nil {
			if _, err := s.ledger.CreditTx(ctx, tx, ledgerdomain.CreditRequest{
				AccountID:      *res.AccountID,
				Amount:         refunded.Amount,
				Reason:         ledgerdomain.ReasonRefund,
				Memo:           "refund:featured",
				Reference:      &ledgerdomain.Reference{Type: ledgerdomain.ReferenceTypeReservation, ID: res.ID.String()},
				IdempotencyKey: "refund:" + res.ID.String(),
			}); err != nil {
				return err
			}
		}

		if err := s.publish(ctx, tx, events.EventReservationCancelled, res, map[string]any{
			"refund_amount":  refunded.Amount,
			"days_remaining": refunded.DaysRemaining,
		}); err != nil {
			return err
		}
		reservation = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	auth := domain.AuthorizationContext{Mode: domain.ModeFree, ActorID: req.ActorID}
	if req.AccountID != nil {
		auth = domain.AuthorizationContext{Mode: domain.ModePaid, AccountID: *req.AccountID, ActorID: req.ActorID}
	}
	s.audit(ctx, auth, "reservation.cancelled", reservation, map[string]any{
		"reason":           reason,
		"refund_requested": req.RefundRequested,
		"refund_amount":    refunded.Amount,
		"days_remaining":   refunded.DaysRemaining,
	})
	if refunded.Amount > 0 {
		s.obsMetrics.RecordRefund(ctx, reservation.Placement, refunded.Amount)
	}
	logger.WithReservation(logger.FromContext(ctx), reservation.ID.String(), reservation.Placement).Info("reservation cancelled",
		zap.Int64("refund_amount", refunded.Amount),
	)

	return &domain.CancelResult{Reservation: reservation, RefundAmount: refunded.Amount}, nil
}

// Edit reschedules a live reservation without touching the ledger.
func (s *Service) Edit(ctx context.Context, req domain.EditRequest) (*domain.Reservation, error) {
	if req.ReservationID <= 0 {
		return nil, domain.ErrInvalidRequest
	}
	if req.ScheduledStart == nil && req.DurationDays == nil && req.Placement == nil {
		return nil, domain.ErrInvalidRequest
	}

	for attempt := 0; attempt < maxEditAttempts; attempt++ {
		current, err := s.repo.Get(ctx, s.db, req.ReservationID)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, domain.ErrReservationNotFound
		}

		res, before, err := s.editOnce(ctx, req, current)
		if errors.Is(err, errConcurrentEdit) {
			continue
		}
		if err != nil {
			return nil, err
		}

		auth := domain.AuthorizationContext{Mode: domain.ModeFree, ActorID: req.ActorID, Reason: req.Reason}
		s.audit(ctx, auth, "reservation.edited", res, map[string]any{
			"reason":             strings.TrimSpace(req.Reason),
			"from_placement":     before.Placement,
			"to_placement":       res.Placement,
			"from_start":         before.ScheduledStart.Format(time.RFC3339),
			"to_start":           res.ScheduledStart.Format(time.RFC3339),
			"from_duration_days": before.DurationDays,
			"to_duration_days":   res.DurationDays,
		})
		logger.WithReservation(logger.FromContext(ctx), res.ID.String(), res.Placement).Info("reservation edited",
			zap.Time("scheduled_start", res.ScheduledStart),
			zap.Int("duration_days", res.DurationDays),
		)
		out := res.WithEffectiveStatus(s.clock.Now().UTC())
		return &out, nil
	}
	return nil, domain.NewNotEditableError("")
}

var errConcurrentEdit = errors.New("concurrent_edit")

// editOnce validates against the snapshot read outside the transaction and
// reports errConcurrentEdit when the locked row no longer matches it.
func (s *Service) editOnce(ctx context.Context, req domain.EditRequest, current *domain.Reservation) (*domain.Reservation, domain.Reservation, error) {
	var before domain.Reservation

	lockedPlacement := current.Placement
	newPlacement := lockedPlacement
	if req.Placement != nil {
		newPlacement = slotcatalogdomain.NormalizePlacement(*req.Placement)
		if !slotcatalogdomain.IsKnownPlacement(newPlacement) {
			return nil, before, domain.ErrInvalidPlacement
		}
	}
	duration := current.DurationDays
	if req.DurationDays != nil {
		duration = *req.DurationDays
	}
	if _, ok, err := s.catalog.PriceFor(ctx, newPlacement, duration); err != nil {
		return nil, before, err
	} else if !ok {
		return nil, before, domain.ErrInvalidDuration
	}

	unlock, err := s.locker.Lock(ctx, lockedPlacement, newPlacement)
	if err != nil {
		return nil, before, fmt.Errorf("lock placement: %w", err)
	}
	defer unlock()

	var updated *domain.Reservation
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res, err := s.repo.Lock(ctx, tx, req.ReservationID)
		if err != nil {
			return err
		}
		if res == nil {
			return domain.ErrReservationNotFound
		}
		if res.Placement != current.Placement || res.DurationDays != current.DurationDays {
			return errConcurrentEdit
		}
		before = *res

		now := s.clock.Now().UTC()
		if status := res.EffectiveStatus(now); status != domain.StatusPending && status != domain.StatusActive {
			return domain.NewNotEditableError(status)
		}

		start := res.ScheduledStart
		if req.ScheduledStart != nil {
			start = req.ScheduledStart.UTC()
		}
		expiresAt := domain.ExpiresAt(start, duration)
		if !expiresAt.After(now) {
			return domain.ErrInvalidSchedule
		}

		capacity := 0
		for _, p := range stableKeys([]string{lockedPlacement, newPlacement}) {
			row, err := s.catalog.LockPlacement(ctx, tx, p)
			if err != nil {
				return err
			}
			if p == newPlacement {
				capacity = row.Capacity
			}
		}

		if newPlacement != res.Placement {
			if err := s.expireLapsed(ctx, tx, res.AdID, newPlacement, now); err != nil {
				return err
			}
			existing, err := s.repo.FindLive(ctx, tx, res.AdID, newPlacement, now, res.ID)
			if err != nil {
				return err
			}
			if existing != nil {
				return domain.ErrAlreadyFeatured
			}
		}

		count, err := s.occupancy.CountActiveTx(ctx, tx, newPlacement, start, expiresAt, res.ID)
		if err != nil {
			return err
		}
		if count >= capacity {
			return domain.ErrCapacityExceeded
		}

		res.Placement = newPlacement
		res.ScheduledStart = start
		res.DurationDays = duration
		res.ExpiresAt = expiresAt
		res.Status = domain.InitialStatus(start, now)
		res.UpdatedAt = now

		affected, err := s.repo.UpdateSchedule(ctx, tx, res)
		if err != nil {
			return err
		}
		if affected == 0 {
			return domain.NewNotEditableError(res.EffectiveStatus(now))
		}
		if err := s.publish(ctx, tx, events.EventReservationEdited, res, map[string]any{
			"previous_placement":       before.Placement,
			"previous_scheduled_start": before.ScheduledStart.Format(time.RFC3339Nano),
			"previous_duration_days":   before.DurationDays,
		}); err != nil {
			return err
		}
		updated = res
		return nil
	})
	if err != nil {
		return nil, before, err
	}
	return updated, before, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Reservation, error) {
	if id <= 0 {
		return nil, domain.ErrInvalidRequest
	}
	res, err := s.repo.Get(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, domain.ErrReservationNotFound
	}
	out := res.WithEffectiveStatus(s.clock.Now().UTC())
	return &out, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	after, err := req.After()
	if err != nil {
		return domain.ListResponse{}, domain.ErrInvalidPageToken
	}

	placement := ""
	if strings.TrimSpace(req.Placement) != "" {
		placement = slotcatalogdomain.NormalizePlacement(req.Placement)
		if !slotcatalogdomain.IsKnownPlacement(placement) {
			return domain.ListResponse{}, domain.ErrInvalidPlacement
		}
	}
	switch req.Status {
	case "", domain.StatusPending, domain.StatusActive, domain.StatusExpired, domain.StatusCancelled:
	default:
		return domain.ListResponse{}, domain.ErrInvalidRequest
	}

	size := req.Size()
	now := s.clock.Now().UTC()
	items, err := s.repo.List(ctx, s.db, domain.ListFilter{
		AdID:      req.AdID,
		AccountID: req.AccountID,
		Placement: placement,
		Status:    req.Status,
		Now:       now,
		After:     after,
		Limit:     size,
	})
	if err != nil {
		return domain.ListResponse{}, err
	}
	items, pageInfo := pagination.Trim(items, size, func(r *domain.Reservation) pagination.Keyset {
		return pagination.Keyset{ID: r.ID, CreatedAt: r.CreatedAt}
	})

	reservations := make([]domain.Reservation, 0, len(items))
	for _, item := range items {
		reservations = append(reservations, item.WithEffectiveStatus(now))
	}

	return domain.ListResponse{PageInfo: pageInfo, Reservations: reservations}, nil
}

// BulkAssign grants free reservations item by item; one failure does not
// undo the others.
func (s *Service) BulkAssign(ctx context.Context, req domain.BulkAssignRequest) ([]domain.BulkAssignResult, error) {
	if len(req.Items) == 0 || len(req.Items) > maxBulkItems {
		return nil, domain.ErrInvalidRequest
	}
	auth := req.Auth
	auth.Mode = domain.ModeFree
	auth.AccountID = 0
	if _, err := normalizeAuth(auth); err != nil {
		return nil, err
	}

	results := make([]domain.BulkAssignResult, 0, len(req.Items))
	for i, item := range req.Items {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := s.Reserve(ctx, domain.ReserveRequest{
			AdID:           item.AdID,
			Placement:      item.Placement,
			ScheduledStart: item.ScheduledStart,
			DurationDays:   item.DurationDays,
			Auth:           auth,
		})
		results = append(results, domain.BulkAssignResult{Index: i, Reservation: res, Err: err})
	}
	return results, nil
}

func (s *Service) SyncStatuses(ctx context.Context, limit int) (domain.SyncResult, error) {
	if limit <= 0 {
		limit = 100
	}
	var result domain.SyncResult
	transitions := map[[2]domain.Status]int{}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.clock.Now().UTC()
		rows, err := s.repo.ClaimStale(ctx, tx, now, limit)
		if err != nil {
			return err
		}
		for i := range rows {
			row := rows[i]
			to := row.EffectiveStatus(now)
			if to == row.Status {
				continue
			}
			affected, err := s.repo.UpdateStatus(ctx, tx, row.ID, row.Status, to, now)
			if err != nil {
				return err
			}
			if affected == 0 {
				continue
			}

			eventType := events.EventReservationActivated
			if to == domain.StatusExpired {
				eventType = events.EventReservationExpired
				result.Expired++
			} else {
				result.Activated++
			}
			transitions[[2]domain.Status{row.Status, to}]++

			row.Status = to
			row.UpdatedAt = now
			if err := s.publish(ctx, tx, eventType, &row, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.SyncResult{}, err
	}

	for key, count := range transitions {
		obsmetrics.Scheduler().AddReservationTransition(string(key[0]), string(key[1]), count)
	}
	return result, nil
}

// expireLapsed settles rows the sweeper has not reached yet so the live
// (ad, placement) unique index does not reject a new reservation.
func (s *Service) expireLapsed(ctx context.Context, tx *gorm.DB, adID snowflake.ID, placement string, now time.Time) error {
	rows, err := s.repo.FindLapsed(ctx, tx, adID, placement, now)
	if err != nil {
		return err
	}
	for i := range rows {
		row := rows[i]
		affected, err := s.repo.UpdateStatus(ctx, tx, row.ID, row.Status, domain.StatusExpired, now)
		if err != nil {
			return err
		}
		if affected == 0 {
			continue
		}
		row.Status = domain.StatusExpired
		row.UpdatedAt = now
		if err := s.publish(ctx, tx, events.EventReservationExpired, &row, nil); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) publish(ctx context.Context, tx *gorm.DB, eventType string, res *domain.Reservation, extra map[string]any) error {
	if s.outbox == nil {
		return nil
	}
	payload := map[string]any{
		"reservation_id":  res.ID.String(),
		"ad_id":           res.AdID.String(),
		"placement":       res.Placement,
		"scheduled_start": res.ScheduledStart.Format(time.RFC3339Nano),
		"expires_at":      res.ExpiresAt.Format(time.RFC3339Nano),
		"duration_days":   res.DurationDays,
		"status":          string(res.Status),
		"created_by":      string(res.CreatedBy),
	}
	if res.AccountID != nil {
		payload["account_id"] = res.AccountID.String()
	}
	for k, v := range extra {
		payload[k] = v
	}

	dedupe := eventType + ":" + res.ID.String()
	if eventType == events.EventReservationEdited {
		dedupe = ""
	}
	return s.outbox.PublishTx(ctx, tx, events.Event{Type: eventType, Payload: payload, DedupeKey: dedupe})
}

func (s *Service) audit(ctx context.Context, auth domain.AuthorizationContext, action string, res *domain.Reservation, metadata map[string]any) {
	if s.auditSvc == nil || res == nil {
		return
	}
	actorType := string(auditdomain.ActorTypeAdmin)
	if auth.Mode == domain.ModePaid {
		actorType = string(auditdomain.ActorTypeSeller)
	}
	var actorID *string
	if id := strings.TrimSpace(auth.ActorID); id != "" {
		actorID = &id
	}
	targetID := res.ID.String()
	ctx = auditcontext.WithReservationID(ctx, targetID)
	if res.AccountID != nil {
		ctx = auditcontext.WithAccountID(ctx, res.AccountID.String())
	}
	if err := s.auditSvc.AuditLog(ctx, actorType, actorID, action, auditdomain.TargetReservation, &targetID, metadata); err != nil {
		s.log.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}

// reject records business-rule rejections and passes err through.
func (s *Service) reject(ctx context.Context, placement string, err error) error {
	reason := rejectionReason(err)
	if reason != "" {
		s.obsMetrics.RecordRejection(ctx, placement, reason)
	}
	return err
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidDuration):
		return "invalid_duration"
	case errors.Is(err, domain.ErrInvalidSchedule):
		return "invalid_schedule"
	case errors.Is(err, domain.ErrAdNotEligible):
		return "ad_not_eligible"
	case errors.Is(err, domain.ErrAlreadyFeatured):
		return "already_featured"
	case errors.Is(err, domain.ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, ledgerdomain.ErrInsufficientBalance):
		return "insufficient_balance"
	default:
		return ""
	}
}

func normalizeAuth(auth domain.AuthorizationContext) (domain.AuthorizationContext, error) {
	auth.ActorID = strings.TrimSpace(auth.ActorID)
	auth.Reason = strings.TrimSpace(auth.Reason)
	switch auth.Mode {
	case domain.ModePaid:
		if auth.AccountID <= 0 {
			return auth, domain.ErrInvalidAccount
		}
	case domain.ModeFree:
		if auth.Reason == "" {
			return auth, domain.ErrReasonRequired
		}
	default:
		return auth, domain.ErrInvalidRequest
	}
	return auth, nil
}

func ownedBy(res *domain.Reservation, accountID *snowflake.ID) bool {
	if accountID == nil {
		return true
	}
	return res.AccountID != nil && *res.AccountID == *accountID
}
