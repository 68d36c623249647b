// Package occupancy derives placement usage from reservation storage.
package occupancy

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/spotlight/internal/clock"
	reservationdomain "github.com/smallbiznis/spotlight/internal/reservation/domain"
	slotcatalogdomain "github.com/smallbiznis/spotlight/internal/slotcatalog/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MaxGridDays bounds a single occupancy query.
const MaxGridDays = 366

var ErrInvalidRange = errors.New("invalid_range")

type DayOccupancy struct {
	Date     string `json:"date"`
	Count    int    `json:"count"`
	Capacity int    `json:"capacity"`
}

type Reader interface {
	CountActive(ctx context.Context, placement string, from, to time.Time) (int, error)
	// CountActiveTx is the gating count; it must run inside the writer's
	// transaction. excludeID skips the reservation being edited.
	CountActiveTx(ctx context.Context, tx *gorm.DB, placement string, from, to time.Time, excludeID snowflake.ID) (int, error)
	ListActive(ctx context.Context, placement string, date time.Time) ([]reservationdomain.Reservation, error)
	Grid(ctx context.Context, placement string, from, to time.Time) ([]DayOccupancy, error)
}

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	Catalog slotcatalogdomain.Service
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	catalog slotcatalogdomain.Service
}

func NewService(p Params) *Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("occupancy.service"),
		clock:   p.Clock,
		catalog: p.Catalog,
	}
}

func (s *Service) CountActive(ctx context.Context, placement string, from, to time.Time) (int, error) {
	return s.CountActiveTx(ctx, s.db, placement, from, to, 0)
}

func (s *Service) CountActiveTx(ctx context.Context, tx *gorm.DB, placement string, from, to time.Time, excludeID snowflake.ID) (int, error) {
	placement = slotcatalogdomain.NormalizePlacement(placement)
	if !slotcatalogdomain.IsKnownPlacement(placement) {
		return 0, slotcatalogdomain.ErrInvalidPlacement
	}
	if !from.Before(to) {
		return 0, ErrInvalidRange
	}

	var count int64
	query := s.liveOverlapping(tx.WithContext(ctx), placement, from, to)
	if excludeID != 0 {
		query = query.Where("id <> ?", excludeID)
	}
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// ListActive returns reservations live at now that cover any part of the
// UTC day containing date.
func (s *Service) ListActive(ctx context.Context, placement string, date time.Time) ([]reservationdomain.Reservation, error) {
	placement = slotcatalogdomain.NormalizePlacement(placement)
	if !slotcatalogdomain.IsKnownPlacement(placement) {
		return nil, slotcatalogdomain.ErrInvalidPlacement
	}
	from := startOfDay(date)
	to := from.Add(reservationdomain.Day)

	var rows []reservationdomain.Reservation
	err := s.liveOverlapping(s.db.WithContext(ctx), placement, from, to).
		Order("scheduled_start asc, id asc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	for i := range rows {
		rows[i] = rows[i].WithEffectiveStatus(now)
	}
	return rows, nil
}

// Grid reports one entry per UTC day in [from, to).
func (s *Service) Grid(ctx context.Context, placement string, from, to time.Time) ([]DayOccupancy, error) {
	placement = slotcatalogdomain.NormalizePlacement(placement)
	capacity, err := s.catalog.CapacityFor(ctx, placement)
	if err != nil {
		return nil, err
	}

	from = startOfDay(from)
	to = startOfDay(to)
	if !from.Before(to) {
		return nil, ErrInvalidRange
	}
	days := int(to.Sub(from) / reservationdomain.Day)
	if days > MaxGridDays {
		return nil, ErrInvalidRange
	}

	var rows []reservationdomain.Reservation
	err = s.liveOverlapping(s.db.WithContext(ctx), placement, from, to).
		Select("id", "scheduled_start", "expires_at").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	grid := make([]DayOccupancy, 0, days)
	for d := 0; d < days; d++ {
		dayStart := from.Add(time.Duration(d) * reservationdomain.Day)
		dayEnd := dayStart.Add(reservationdomain.Day)
		count := 0
		for _, r := range rows {
			if r.Overlaps(dayStart, dayEnd) {
				count++
			}
		}
		grid = append(grid, DayOccupancy{
			Date:     dayStart.Format(time.DateOnly),
			Count:    count,
			Capacity: capacity,
		})
	}
	return grid, nil
}

// liveOverlapping treats a row as live from its computed status, so rows the
// sweeper has not yet expired never hold capacity.
func (s *Service) liveOverlapping(db *gorm.DB, placement string, from, to time.Time) *gorm.DB {
	now := s.clock.Now().UTC()
	return db.Model(&reservationdomain.Reservation{}).
		Where("placement = ?", placement).
		Where("status IN ?", reservationdomain.LiveStatuses).
		Where("expires_at > ?", now).
		Where("scheduled_start < ? AND expires_at > ?", to.UTC(), from.UTC())
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
