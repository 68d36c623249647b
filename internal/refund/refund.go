// Package refund computes proportional refunds for cancelled reservations.
package refund

import (
	"time"

	"github.com/shopspring/decimal"
)

var day = decimal.NewFromInt(int64(24 * time.Hour))

type Input struct {
	ExpiresAt       time.Time
	DurationDays    int
	CreditsSpent    int64
	CreditConsumed  bool
	RefundRequested bool
}

type Result struct {
	DaysRemaining int64 `json:"days_remaining"`
	Amount        int64 `json:"amount"`
}

// DaysRemaining rounds any partial day up and never goes below zero.
func DaysRemaining(expiresAt, now time.Time) int64 {
	left := expiresAt.Sub(now)
	if left <= 0 {
		return 0
	}
	return decimal.NewFromInt(int64(left)).Div(day).Ceil().IntPart()
}

// Calculate returns ceil(days_remaining / duration_days * credits_spent),
// capped at the credits spent. Both roundings favour the seller.
func Calculate(in Input, now time.Time) Result {
	days := DaysRemaining(in.ExpiresAt, now)
	res := Result{DaysRemaining: days}
	if !in.RefundRequested || !in.CreditConsumed || days == 0 || in.DurationDays <= 0 || in.CreditsSpent <= 0 {
		return res
	}

	amount := decimal.NewFromInt(days).
		Mul(decimal.NewFromInt(in.CreditsSpent)).
		Div(decimal.NewFromInt(int64(in.DurationDays))).
		Ceil().
		IntPart()
	if amount > in.CreditsSpent {
		amount = in.CreditsSpent
	}
	res.Amount = amount
	return res
}
