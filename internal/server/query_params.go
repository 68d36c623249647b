package server

import (
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

// dateOnlyLayout is the calendar-day form used by occupancy and date filters.
const dateOnlyLayout = time.DateOnly

var (
	errInvalidID   = errors.New("invalid_snowflake_id")
	errInvalidTime = errors.New("invalid_time")
	errInvalidDate = errors.New("invalid_date")
)

func parseSnowflakeID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id <= 0 {
		return 0, errInvalidID
	}
	return id, nil
}

// parseOptionalSnowflakeID maps a blank value to nil.
func parseOptionalSnowflakeID(raw string) (*snowflake.ID, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	id, err := parseSnowflakeID(raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// parseOptionalTime takes RFC3339 or a bare date. A bare date means the
// start of that UTC day, or its last nanosecond when endOfDay is set.
func parseOptionalTime(raw string, endOfDay bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = t.UTC()
		return &t, nil
	}
	day, err := parseDate(raw)
	if err != nil {
		return nil, errInvalidTime
	}
	if endOfDay {
		day = day.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return &day, nil
}

func parseDate(raw string) (time.Time, error) {
	day, err := time.ParseInLocation(dateOnlyLayout, strings.TrimSpace(raw), time.UTC)
	if err != nil {
		return time.Time{}, errInvalidDate
	}
	return day, nil
}
