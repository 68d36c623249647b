package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/spotlight/pkg/db/pagination"
)

// Reason classifies why credits moved.
type Reason string

const (
	ReasonPurchase        Reason = "purchase"
	ReasonFeaturedDebit   Reason = "featured_debit"
	ReasonRefund          Reason = "refund"
	ReasonPromoGrant      Reason = "promo_grant"
	ReasonAdminAdjustment Reason = "admin_adjustment"
)

// ReferenceTypeReservation links entries to featured reservations.
const ReferenceTypeReservation = "featured_reservation"

// Account holds the mirrored running balance and is the per-account lock row.
type Account struct {
	ID        snowflake.ID `gorm:"primaryKey;autoIncrement:false"`
	Balance   int64        `gorm:"not null;default:0"`
	CreatedAt time.Time    `gorm:"not null"`
	UpdatedAt time.Time    `gorm:"not null"`
}

func (Account) TableName() string { return "ledger_accounts" }

// Entry is an append-only signed credit movement.
type Entry struct {
	ID             snowflake.ID `json:"id" gorm:"primaryKey;autoIncrement:false"`
	AccountID      snowflake.ID `json:"account_id" gorm:"not null;index;uniqueIndex:ux_ledger_entries_account_key,priority:1"`
	Amount         int64        `json:"amount" gorm:"not null"`
	Reason         Reason       `json:"reason" gorm:"type:text;not null"`
	Memo           string       `json:"memo,omitempty" gorm:"type:text"`
	BalanceAfter   int64        `json:"balance_after" gorm:"not null"`
	ReferenceType  *string      `json:"reference_type,omitempty" gorm:"type:text"`
	ReferenceID    *string      `json:"reference_id,omitempty" gorm:"type:text"`
	IdempotencyKey *string      `json:"idempotency_key,omitempty" gorm:"type:text;uniqueIndex:ux_ledger_entries_account_key,priority:2"`
	CreatedAt      time.Time    `json:"created_at" gorm:"not null;index"`
}

func (Entry) TableName() string { return "ledger_entries" }

// Reference points an entry at the domain object that caused it.
type Reference struct {
	Type string
	ID   string
}

type ListFilter struct {
	AccountID snowflake.ID
	After     *pagination.Keyset
	Limit     int
}
