package repository

import (
	"context"
	"strings"

	"github.com/smallbiznis/spotlight/internal/audit/domain"
	"github.com/smallbiznis/spotlight/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.AuditLog) error {
	if entry == nil {
		return nil
	}
	return db.WithContext(ctx).Create(entry).Error
}

// List returns newest first. It fetches one row past Limit so the caller
// can tell whether another page exists.
func (r *repo) List(ctx context.Context, db *gorm.DB, f domain.ListFilter) ([]domain.AuditLog, error) {
	stmt := db.WithContext(ctx).Model(&domain.AuditLog{}).Scopes(
		eq("action", f.Action),
		eq("target_type", f.TargetType),
		eq("target_id", f.TargetID),
		eq("actor_type", f.ActorType),
		eq("actor_id", f.ActorID),
		eq("account_id", f.AccountID),
		createdWithin(f),
		pagination.Scope(f.After, f.Limit),
	)

	var logs []domain.AuditLog
	if err := stmt.Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

func eq(column, value string) func(*gorm.DB) *gorm.DB {
	value = strings.TrimSpace(value)
	return func(db *gorm.DB) *gorm.DB {
		if value == "" {
			return db
		}
		return db.Where(column+" = ?", value)
	}
}

func createdWithin(f domain.ListFilter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if f.StartAt != nil {
			db = db.Where("created_at >= ?", f.StartAt.UTC())
		}
		if f.EndAt != nil {
			db = db.Where("created_at <= ?", f.EndAt.UTC())
		}
		return db
	}
}
