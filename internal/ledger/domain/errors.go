package domain

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidAccount      = errors.New("invalid_account")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInvalidReason       = errors.New("invalid_reason")
	ErrInsufficientBalance = errors.New("insufficient_balance")
	ErrIdempotencyConflict = errors.New("idempotency_conflict")
	ErrBalanceOverflow     = errors.New("balance_overflow")
	ErrInvalidPageToken    = errors.New("invalid_page_token")
)

// InsufficientBalanceError reports how many credits a debit was short.
type InsufficientBalanceError struct {
	AccountID snowflake.ID
	Balance   int64
	Requested int64
	Shortfall int64
}

func NewInsufficientBalanceError(accountID snowflake.ID, balance, requested int64) *InsufficientBalanceError {
	return &InsufficientBalanceError{
		AccountID: accountID,
		Balance:   balance,
		Requested: requested,
		Shortfall: requested - balance,
	}
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance, need %d more credits", e.Shortfall)
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}
