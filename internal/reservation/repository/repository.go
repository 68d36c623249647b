package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/spotlight/internal/reservation/domain"
	"github.com/smallbiznis/spotlight/pkg/db/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, res *domain.Reservation) error {
	return db.WithContext(ctx).Create(res).Error
}

func (r *repo) Get(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Reservation, error) {
	var res domain.Reservation
	err := db.WithContext(ctx).Where("id = ?", id).Take(&res).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *repo) Lock(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Reservation, error) {
	var res domain.Reservation
	err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Take(&res).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *repo) FindLive(ctx context.Context, db *gorm.DB, adID snowflake.ID, placement string, now time.Time, excludeID snowflake.ID) (*domain.Reservation, error) {
	var res domain.Reservation
	stmt := db.WithContext(ctx).
		Where("ad_id = ? AND placement = ?", adID, placement).
		Where("status IN ?", domain.LiveStatuses).
		Where("expires_at > ?", now)
	if excludeID != 0 {
		stmt = stmt.Where("id <> ?", excludeID)
	}
	err := stmt.Order("created_at asc").Take(&res).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *repo) FindLapsed(ctx context.Context, db *gorm.DB, adID snowflake.ID, placement string, now time.Time) ([]domain.Reservation, error) {
	var rows []domain.Reservation
	err := db.WithContext(ctx).
		Where("ad_id = ? AND placement = ?", adID, placement).
		Where("status IN ? AND expires_at <= ?", domain.LiveStatuses, now).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// MarkCancelled only transitions rows still stored as live.
func (r *repo) MarkCancelled(ctx context.Context, db *gorm.DB, res *domain.Reservation) (int64, error) {
	result := db.WithContext(ctx).Model(&domain.Reservation{}).
		Where("id = ? AND status IN ?", res.ID, domain.LiveStatuses).
		Updates(map[string]any{
			"status":        domain.StatusCancelled,
			"cancel_reason": res.CancelReason,
			"refund_amount": res.RefundAmount,
			"cancelled_at":  res.CancelledAt,
			"updated_at":    res.UpdatedAt,
		})
	return result.RowsAffected, result.Error
}

func (r *repo) UpdateSchedule(ctx context.Context, db *gorm.DB, res *domain.Reservation) (int64, error) {
	result := db.WithContext(ctx).Model(&domain.Reservation{}).
		Where("id = ? AND status IN ?", res.ID, domain.LiveStatuses).
		Updates(map[string]any{
			"placement":       res.Placement,
			"scheduled_start": res.ScheduledStart,
			"duration_days":   res.DurationDays,
			"expires_at":      res.ExpiresAt,
			"status":          res.Status,
			"updated_at":      res.UpdatedAt,
		})
	return result.RowsAffected, result.Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.Reservation, error) {
	var rows []*domain.Reservation
	stmt := db.WithContext(ctx).Model(&domain.Reservation{})

	if filter.AdID != nil {
		stmt = stmt.Where("ad_id = ?", *filter.AdID)
	}
	if filter.AccountID != nil {
		stmt = stmt.Where("account_id = ?", *filter.AccountID)
	}
	if filter.Placement != "" {
		stmt = stmt.Where("placement = ?", filter.Placement)
	}
	stmt = applyStatusFilter(stmt, filter.Status, filter.Now).
		Scopes(pagination.Scope(filter.After, filter.Limit))

	if err := stmt.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// applyStatusFilter expresses EffectiveStatus in SQL.
func applyStatusFilter(stmt *gorm.DB, status domain.Status, now time.Time) *gorm.DB {
	switch status {
	case domain.StatusCancelled:
		return stmt.Where("status = ?", domain.StatusCancelled)
	case domain.StatusExpired:
		return stmt.Where("status = ? OR (status IN ? AND expires_at <= ?)", domain.StatusExpired, domain.LiveStatuses, now)
	case domain.StatusActive:
		return stmt.Where("status IN ? AND scheduled_start <= ? AND expires_at > ?", domain.LiveStatuses, now, now)
	case domain.StatusPending:
		return stmt.Where("status IN ? AND scheduled_start > ?", domain.LiveStatuses, now)
	default:
		return stmt
	}
}

func (r *repo) ClaimStale(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]domain.Reservation, error) {
	var rows []domain.Reservation
	err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("(status = ? AND scheduled_start <= ?) OR (status IN ? AND expires_at <= ?)",
			domain.StatusPending, now, domain.LiveStatuses, now).
		Order("expires_at asc, id asc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to domain.Status, now time.Time) (int64, error) {
	result := db.WithContext(ctx).Model(&domain.Reservation{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{
			"status":     to,
			"updated_at": now,
		})
	return result.RowsAffected, result.Error
}
