package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/spotlight/pkg/db/pagination"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

// LiveStatuses are the stored statuses that may still occupy a slot.
var LiveStatuses = []Status{StatusPending, StatusActive}

type CreatedBy string

const (
	CreatedByUser  CreatedBy = "user"
	CreatedByAdmin CreatedBy = "admin"
)

// Mode selects whether a reservation is paid from the seller's balance or
// granted free by an administrator.
type Mode string

const (
	ModePaid Mode = "paid"
	ModeFree Mode = "free"
)

// AuthorizationContext carries who is reserving and how it is paid for.
type AuthorizationContext struct {
	Mode      Mode
	AccountID snowflake.ID
	ActorID   string
	Reason    string
}

const Day = 24 * time.Hour

// Reservation binds an ad to a placement for a scheduled interval.
type Reservation struct {
	ID             snowflake.ID  `json:"id" gorm:"primaryKey;autoIncrement:false"`
	AdID           snowflake.ID  `json:"ad_id" gorm:"not null;index:idx_featured_reservations_ad_placement,priority:1"`
	AccountID      *snowflake.ID `json:"account_id,omitempty" gorm:"index"`
	Placement      string        `json:"placement" gorm:"type:text;not null;index:idx_featured_reservations_ad_placement,priority:2;index:idx_featured_reservations_placement_window,priority:1"`
	ScheduledStart time.Time     `json:"scheduled_start" gorm:"not null;index:idx_featured_reservations_placement_window,priority:2"`
	DurationDays   int           `json:"duration_days" gorm:"not null"`
	ExpiresAt      time.Time     `json:"expires_at" gorm:"not null;index:idx_featured_reservations_placement_window,priority:3"`
	Status         Status        `json:"status" gorm:"type:text;not null;index"`
	CreditConsumed bool          `json:"credit_consumed" gorm:"not null;default:false"`
	CreditsSpent   int64         `json:"credits_spent" gorm:"not null;default:0"`
	CreatedBy      CreatedBy     `json:"created_by" gorm:"type:text;not null"`
	ActorID        string        `json:"actor_id,omitempty" gorm:"type:text"`
	Reason         string        `json:"reason,omitempty" gorm:"type:text"`
	CancelReason   string        `json:"cancel_reason,omitempty" gorm:"type:text"`
	RefundAmount   int64         `json:"refund_amount" gorm:"not null;default:0"`
	CancelledAt    *time.Time    `json:"cancelled_at,omitempty"`
	CreatedAt      time.Time     `json:"created_at" gorm:"not null"`
	UpdatedAt      time.Time     `json:"updated_at" gorm:"not null"`
}

func (Reservation) TableName() string { return "featured_reservations" }

// ExpiresAt is the single place the end of a reservation is derived.
func ExpiresAt(start time.Time, durationDays int) time.Time {
	return start.Add(time.Duration(durationDays) * Day)
}

// EffectiveStatus computes the status at now; the stored one may be stale.
func (r Reservation) EffectiveStatus(now time.Time) Status {
	if r.Status == StatusCancelled {
		return StatusCancelled
	}
	if r.Status == StatusExpired || !now.Before(r.ExpiresAt) {
		return StatusExpired
	}
	if !now.Before(r.ScheduledStart) {
		return StatusActive
	}
	return StatusPending
}

// IsLive reports whether the reservation occupies capacity at now.
func (r Reservation) IsLive(now time.Time) bool {
	switch r.EffectiveStatus(now) {
	case StatusPending, StatusActive:
		return true
	default:
		return false
	}
}

// Overlaps reports whether [ScheduledStart, ExpiresAt) intersects [from, to).
func (r Reservation) Overlaps(from, to time.Time) bool {
	return r.ScheduledStart.Before(to) && from.Before(r.ExpiresAt)
}

// WithEffectiveStatus returns a copy carrying the status computed at now.
func (r Reservation) WithEffectiveStatus(now time.Time) Reservation {
	r.Status = r.EffectiveStatus(now)
	return r
}

func InitialStatus(start, now time.Time) Status {
	if start.After(now) {
		return StatusPending
	}
	return StatusActive
}

type ListFilter struct {
	AdID      *snowflake.ID
	AccountID *snowflake.ID
	Placement string
	// Status filters on the effective status at Now.
	Status Status
	Now    time.Time
	After  *pagination.Keyset
	Limit  int
}
