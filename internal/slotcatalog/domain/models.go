package domain

import (
	"strings"
	"time"
)

const (
	PlacementHomepage = "homepage"
	PlacementResults  = "results"
	PlacementDetail   = "detail"
)

var knownPlacements = map[string]struct{}{
	PlacementHomepage: {},
	PlacementResults:  {},
	PlacementDetail:   {},
}

// AllowedDurations is the closed set of purchasable slot lengths in days.
var AllowedDurations = []int{7, 14, 15, 21, 28, 30}

// NormalizePlacement lowercases and trims a placement name.
func NormalizePlacement(placement string) string {
	return strings.ToLower(strings.TrimSpace(placement))
}

func IsKnownPlacement(placement string) bool {
	_, ok := knownPlacements[NormalizePlacement(placement)]
	return ok
}

func IsAllowedDuration(days int) bool {
	for _, allowed := range AllowedDurations {
		if allowed == days {
			return true
		}
	}
	return false
}

type Placement struct {
	Name      string    `json:"placement" gorm:"column:placement;primaryKey;type:text"`
	Capacity  int       `json:"capacity" gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null"`
}

func (Placement) TableName() string { return "placements" }

type SlotPrice struct {
	Placement    string    `json:"placement" gorm:"primaryKey;type:text"`
	DurationDays int       `json:"duration_days" gorm:"primaryKey;autoIncrement:false"`
	CreditCost   int64     `json:"credit_cost" gorm:"not null"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"not null"`
}

func (SlotPrice) TableName() string { return "slot_prices" }

// Price is the quoted cost of one slot.
type Price struct {
	Placement    string `json:"placement"`
	DurationDays int    `json:"duration_days"`
	CreditCost   int64  `json:"credit_cost"`
}

type PlacementView struct {
	Placement string  `json:"placement"`
	Capacity  int     `json:"capacity"`
	Prices    []Price `json:"prices"`
}

type Catalog struct {
	Placements []PlacementView `json:"placements"`
}
