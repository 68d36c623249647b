package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/spotlight/internal/adcatalog/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Get(ctx context.Context, db *gorm.DB, adID snowflake.ID) (*domain.Ad, error) {
	var ad domain.Ad
	err := db.WithContext(ctx).Where("id = ?", adID).Take(&ad).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ad, nil
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, ad *domain.Ad) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"account_id", "category", "status", "updated_at"}),
	}).Create(ad).Error
}
