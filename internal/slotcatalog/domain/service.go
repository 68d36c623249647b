package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/spotlight/internal/config"
	"gorm.io/gorm"
)

var (
	ErrInvalidPlacement  = errors.New("invalid_placement")
	ErrInvalidDuration   = errors.New("invalid_duration")
	ErrInvalidCapacity   = errors.New("invalid_capacity")
	ErrInvalidCreditCost = errors.New("invalid_credit_cost")
	ErrPriceNotFound     = errors.New("price_not_found")
)

type Service interface {
	// PriceFor reports false when the duration is not offered for the placement.
	PriceFor(ctx context.Context, placement string, durationDays int) (Price, bool, error)
	CapacityFor(ctx context.Context, placement string) (int, error)
	// LockPlacement takes the placement row lock inside tx and returns its current capacity.
	LockPlacement(ctx context.Context, tx *gorm.DB, placement string) (*Placement, error)
	List(ctx context.Context) (Catalog, error)
	SetCapacity(ctx context.Context, placement string, capacity int) (*Placement, error)
	SetPrice(ctx context.Context, placement string, durationDays int, creditCost int64) (*SlotPrice, error)
	DeletePrice(ctx context.Context, placement string, durationDays int) error
	Sync(ctx context.Context, cfg config.CatalogConfig) error
}

type Repository interface {
	GetPlacement(ctx context.Context, db *gorm.DB, placement string) (*Placement, error)
	LockPlacement(ctx context.Context, db *gorm.DB, placement string) (*Placement, error)
	ListPlacements(ctx context.Context, db *gorm.DB) ([]Placement, error)
	UpsertPlacement(ctx context.Context, db *gorm.DB, placement *Placement) error
	GetPrice(ctx context.Context, db *gorm.DB, placement string, durationDays int) (*SlotPrice, error)
	ListPrices(ctx context.Context, db *gorm.DB) ([]SlotPrice, error)
	UpsertPrice(ctx context.Context, db *gorm.DB, price *SlotPrice) error
	DeletePrice(ctx context.Context, db *gorm.DB, placement string, durationDays int) (int64, error)
}
