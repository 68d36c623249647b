package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/spotlight/pkg/db/pagination"
	"gorm.io/gorm"
)

// EntryRequest describes a single posting. Amount is always positive;
// the direction comes from the operation.
type EntryRequest struct {
	AccountID      snowflake.ID
	Amount         int64
	Reason         Reason
	Memo           string
	Reference      *Reference
	IdempotencyKey string
}

type (
	DebitRequest  = EntryRequest
	CreditRequest = EntryRequest
)

type ListEntriesRequest struct {
	pagination.Pagination
	AccountID snowflake.ID
}

type ListEntriesResponse struct {
	pagination.PageInfo
	Balance int64   `json:"balance"`
	Entries []Entry `json:"entries"`
}

type Service interface {
	Debit(ctx context.Context, req DebitRequest) (*Entry, error)
	Credit(ctx context.Context, req CreditRequest) (*Entry, error)
	// DebitTx and CreditTx join the caller's transaction.
	DebitTx(ctx context.Context, tx *gorm.DB, req DebitRequest) (*Entry, error)
	CreditTx(ctx context.Context, tx *gorm.DB, req CreditRequest) (*Entry, error)
	Balance(ctx context.Context, accountID snowflake.ID) (int64, error)
	ListEntries(ctx context.Context, req ListEntriesRequest) (ListEntriesResponse, error)
}

type Repository interface {
	EnsureAccount(ctx context.Context, db *gorm.DB, account *Account) error
	LockAccount(ctx context.Context, db *gorm.DB, accountID snowflake.ID) (*Account, error)
	GetAccount(ctx context.Context, db *gorm.DB, accountID snowflake.ID) (*Account, error)
	UpdateBalance(ctx context.Context, db *gorm.DB, account *Account) error
	FindByIdempotencyKey(ctx context.Context, db *gorm.DB, accountID snowflake.ID, key string) (*Entry, error)
	InsertEntry(ctx context.Context, db *gorm.DB, entry *Entry) error
	ListEntries(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Entry, error)
}
