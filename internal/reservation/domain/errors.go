package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest      = errors.New("invalid_request")
	ErrInvalidPlacement    = errors.New("invalid_placement")
	ErrInvalidDuration     = errors.New("invalid_duration")
	ErrInvalidSchedule     = errors.New("invalid_schedule")
	ErrInvalidAccount      = errors.New("invalid_account")
	ErrReasonRequired      = errors.New("reason_required")
	ErrAdNotEligible       = errors.New("ad_not_eligible")
	ErrAlreadyFeatured     = errors.New("already_featured")
	ErrCapacityExceeded    = errors.New("capacity_exceeded")
	ErrNotCancellable      = errors.New("not_cancellable")
	ErrNotEditable         = errors.New("not_editable")
	ErrReservationNotFound = errors.New("reservation_not_found")
	ErrInvalidPageToken    = errors.New("invalid_page_token")
)

// EditError explains why an edit was refused.
type EditError struct {
	Status Status
	Err    error
}

func (e *EditError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("reservation is %s and cannot be edited", e.Status)
	}
	return e.Err.Error()
}

func (e *EditError) Unwrap() error { return e.Err }

func NewNotEditableError(status Status) error {
	return &EditError{Status: status, Err: ErrNotEditable}
}
