package repository

import (
	"context"
	"errors"

	"github.com/smallbiznis/spotlight/internal/slotcatalog/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) GetPlacement(ctx context.Context, db *gorm.DB, placement string) (*domain.Placement, error) {
	var row domain.Placement
	err := db.WithContext(ctx).Where("placement = ?", placement).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repo) LockPlacement(ctx context.Context, db *gorm.DB, placement string) (*domain.Placement, error) {
	var row domain.Placement
	err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("placement = ?", placement).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repo) ListPlacements(ctx context.Context, db *gorm.DB) ([]domain.Placement, error) {
	var rows []domain.Placement
	if err := db.WithContext(ctx).Order("placement asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) UpsertPlacement(ctx context.Context, db *gorm.DB, placement *domain.Placement) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "placement"}},
		DoUpdates: clause.AssignmentColumns([]string{"capacity", "updated_at"}),
	}).Create(placement).Error
}

func (r *repo) GetPrice(ctx context.Context, db *gorm.DB, placement string, durationDays int) (*domain.SlotPrice, error) {
	var row domain.SlotPrice
	err := db.WithContext(ctx).
		Where("placement = ? AND duration_days = ?", placement, durationDays).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repo) ListPrices(ctx context.Context, db *gorm.DB) ([]domain.SlotPrice, error) {
	var rows []domain.SlotPrice
	if err := db.WithContext(ctx).Order("placement asc, duration_days asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) UpsertPrice(ctx context.Context, db *gorm.DB, price *domain.SlotPrice) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "placement"}, {Name: "duration_days"}},
		DoUpdates: clause.AssignmentColumns([]string{"credit_cost", "updated_at"}),
	}).Create(price).Error
}

func (r *repo) DeletePrice(ctx context.Context, db *gorm.DB, placement string, durationDays int) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`DELETE FROM slot_prices WHERE placement = ? AND duration_days = ?`,
		placement,
		durationDays,
	)
	return result.RowsAffected, result.Error
}
