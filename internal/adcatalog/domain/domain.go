package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Status string

const (
	StatusActive  Status = "active"
	StatusPaused  Status = "paused"
	StatusPending Status = "pending_review"
	StatusRemoved Status = "removed"
)

// Ad is the local read model of a marketplace listing.
type Ad struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey;autoIncrement:false"`
	AccountID snowflake.ID `json:"account_id" gorm:"not null;index"`
	Category  string       `json:"category" gorm:"type:text;not null"`
	Status    Status       `json:"status" gorm:"type:text;not null"`
	UpdatedAt time.Time    `json:"updated_at" gorm:"not null"`
}

func (Ad) TableName() string { return "ads" }

// Eligible reports whether the ad may be featured.
func (a Ad) Eligible() bool {
	return a.Status == StatusActive && a.Category != ""
}

type UpsertRequest struct {
	AdID      snowflake.ID
	AccountID snowflake.ID
	Category  string
	Status    Status
}

// Directory answers eligibility questions about ads.
type Directory interface {
	IsEligible(ctx context.Context, adID snowflake.ID) (bool, error)
	CategoryOf(ctx context.Context, adID snowflake.ID) (string, error)
}

type Service interface {
	Directory
	Get(ctx context.Context, adID snowflake.ID) (*Ad, error)
	Upsert(ctx context.Context, req UpsertRequest) (*Ad, error)
}

type Repository interface {
	Get(ctx context.Context, db *gorm.DB, adID snowflake.ID) (*Ad, error)
	Upsert(ctx context.Context, db *gorm.DB, ad *Ad) error
}

var (
	ErrAdNotFound = errors.New("ad_not_found")
	ErrInvalidAd  = errors.New("invalid_ad")
)
