package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/spotlight/internal/ledger/domain"
	"github.com/smallbiznis/spotlight/pkg/db/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) EnsureAccount(ctx context.Context, db *gorm.DB, account *domain.Account) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(account).Error
}

func (r *repo) LockAccount(ctx context.Context, db *gorm.DB, accountID snowflake.ID) (*domain.Account, error) {
	var account domain.Account
	err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", accountID).
		Take(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repo) GetAccount(ctx context.Context, db *gorm.DB, accountID snowflake.ID) (*domain.Account, error) {
	var account domain.Account
	err := db.WithContext(ctx).Where("id = ?", accountID).Take(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repo) UpdateBalance(ctx context.Context, db *gorm.DB, account *domain.Account) error {
	return db.WithContext(ctx).Exec(
		`UPDATE ledger_accounts SET balance = ?, updated_at = ? WHERE id = ?`,
		account.Balance,
		account.UpdatedAt,
		account.ID,
	).Error
}

func (r *repo) FindByIdempotencyKey(ctx context.Context, db *gorm.DB, accountID snowflake.ID, key string) (*domain.Entry, error) {
	var entry domain.Entry
	err := db.WithContext(ctx).
		Where("account_id = ? AND idempotency_key = ?", accountID, key).
		Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repo) InsertEntry(ctx context.Context, db *gorm.DB, entry *domain.Entry) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO ledger_entries (
			id, account_id, amount, reason, memo, balance_after,
			reference_type, reference_id, idempotency_key, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.AccountID,
		entry.Amount,
		entry.Reason,
		entry.Memo,
		entry.BalanceAfter,
		entry.ReferenceType,
		entry.ReferenceID,
		entry.IdempotencyKey,
		entry.CreatedAt,
	).Error
}

func (r *repo) ListEntries(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.Entry, error) {
	var entries []*domain.Entry
	err := db.WithContext(ctx).Model(&domain.Entry{}).
		Where("account_id = ?", filter.AccountID).
		Scopes(pagination.Scope(filter.After, filter.Limit)).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
