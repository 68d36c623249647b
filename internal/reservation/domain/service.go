package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/spotlight/pkg/db/pagination"
	"gorm.io/gorm"
)

type ReserveRequest struct {
	AdID           snowflake.ID
	Placement      string
	ScheduledStart time.Time
	DurationDays   int
	Auth           AuthorizationContext
}

type CancelRequest struct {
	ReservationID   snowflake.ID
	Reason          string
	RefundRequested bool
	ActorID         string
	// AccountID, when set, restricts cancellation to the owning seller.
	AccountID *snowflake.ID
}

type CancelResult struct {
	Reservation  *Reservation `json:"reservation"`
	RefundAmount int64        `json:"refund_amount"`
}

type EditRequest struct {
	ReservationID  snowflake.ID
	ScheduledStart *time.Time
	DurationDays   *int
	Placement      *string
	ActorID        string
	Reason         string
}

type ListRequest struct {
	pagination.Pagination
	AdID      *snowflake.ID
	AccountID *snowflake.ID
	Placement string
	Status    Status
}

type ListResponse struct {
	pagination.PageInfo
	Reservations []Reservation `json:"reservations"`
}

type BulkAssignItem struct {
	AdID           snowflake.ID
	Placement      string
	ScheduledStart time.Time
	DurationDays   int
}

type BulkAssignRequest struct {
	Items []BulkAssignItem
	Auth  AuthorizationContext
}

type BulkAssignResult struct {
	Index       int          `json:"index"`
	Reservation *Reservation `json:"reservation,omitempty"`
	Err         error        `json:"-"`
}

type SyncResult struct {
	Activated int
	Expired   int
}

type Service interface {
	Reserve(ctx context.Context, req ReserveRequest) (*Reservation, error)
	Cancel(ctx context.Context, req CancelRequest) (*CancelResult, error)
	Edit(ctx context.Context, req EditRequest) (*Reservation, error)
	Get(ctx context.Context, id snowflake.ID) (*Reservation, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	BulkAssign(ctx context.Context, req BulkAssignRequest) ([]BulkAssignResult, error)
	// SyncStatuses persists effective statuses for up to limit stale rows.
	SyncStatuses(ctx context.Context, limit int) (SyncResult, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, r *Reservation) error
	Get(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Reservation, error)
	Lock(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Reservation, error)
	FindLive(ctx context.Context, db *gorm.DB, adID snowflake.ID, placement string, now time.Time, excludeID snowflake.ID) (*Reservation, error)
	// FindLapsed returns rows for (adID, placement) still stored as live
	// whose window has closed.
	FindLapsed(ctx context.Context, db *gorm.DB, adID snowflake.ID, placement string, now time.Time) ([]Reservation, error)
	MarkCancelled(ctx context.Context, db *gorm.DB, r *Reservation) (int64, error)
	UpdateSchedule(ctx context.Context, db *gorm.DB, r *Reservation) (int64, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Reservation, error)
	// ClaimStale locks live-stored rows whose stored status lags now.
	ClaimStale(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]Reservation, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to Status, now time.Time) (int64, error)
}

// PlacementLocker serializes reservation writers per placement.
type PlacementLocker interface {
	Lock(ctx context.Context, placements ...string) (func(), error)
}
