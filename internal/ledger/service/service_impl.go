package service

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/spotlight/internal/clock"
	ledgerdomain "github.com/smallbiznis/spotlight/internal/ledger/domain"
	"github.com/smallbiznis/spotlight/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/spotlight/internal/observability/metrics"
	"github.com/smallbiznis/spotlight/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       ledgerdomain.Repository
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       ledgerdomain.Repository
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) ledgerdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("ledger.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) Debit(ctx context.Context, req ledgerdomain.DebitRequest) (*ledgerdomain.Entry, error) {
	var entry *ledgerdomain.Entry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		entry, err = s.DebitTx(ctx, tx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *Service) Credit(ctx context.Context, req ledgerdomain.CreditRequest) (*ledgerdomain.Entry, error) {
	var entry *ledgerdomain.Entry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		entry, err = s.CreditTx(ctx, tx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *Service) DebitTx(ctx context.Context, tx *gorm.DB, req ledgerdomain.DebitRequest) (*ledgerdomain.Entry, error) {
	return s.post(ctx, tx, req, -1)
}

func (s *Service) CreditTx(ctx context.Context, tx *gorm.DB, req ledgerdomain.CreditRequest) (*ledgerdomain.Entry, error) {
	return s.post(ctx, tx, req, 1)
}

// post appends one entry under the account row lock. sign is -1 for debits.
func (s *Service) post(ctx context.Context, tx *gorm.DB, req ledgerdomain.EntryRequest, sign int64) (*ledgerdomain.Entry, error) {
	if req.AccountID <= 0 {
		return nil, ledgerdomain.ErrInvalidAccount
	}
	if req.Amount <= 0 {
		return nil, ledgerdomain.ErrInvalidAmount
	}
	reason, err := normalizeReason(req.Reason)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	if err := s.repo.EnsureAccount(ctx, tx, &ledgerdomain.Account{
		ID:        req.AccountID,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		return nil, err
	}

	lockStart := time.Now()
	account, err := s.repo.LockAccount(ctx, tx, req.AccountID)
	if err != nil {
		return nil, err
	}
	obsmetrics.Scheduler().ObserveDBLockWait(obsmetrics.LockResourceLedgerAccount, time.Since(lockStart))

	amount := sign * req.Amount
	key := strings.TrimSpace(req.IdempotencyKey)
	if key != "" {
		existing, err := s.repo.FindByIdempotencyKey(ctx, tx, req.AccountID, key)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			if existing.Amount != amount || existing.Reason != reason {
				return nil, ledgerdomain.ErrIdempotencyConflict
			}
			logger.WithAccount(s.log, req.AccountID.String()).Debug("ledger entry replayed",
				zap.String("idempotency_key", key),
			)
			return existing, nil
		}
	}

	if sign > 0 && account.Balance > math.MaxInt64-req.Amount {
		return nil, ledgerdomain.ErrBalanceOverflow
	}
	balanceAfter := account.Balance + amount
	if sign < 0 && balanceAfter < 0 {
		return nil, ledgerdomain.NewInsufficientBalanceError(req.AccountID, account.Balance, req.Amount)
	}

	entry := &ledgerdomain.Entry{
		ID:           s.genID.Generate(),
		AccountID:    req.AccountID,
		Amount:       amount,
		Reason:       reason,
		Memo:         strings.TrimSpace(req.Memo),
		BalanceAfter: balanceAfter,
		CreatedAt:    now,
	}
	if key != "" {
		entry.IdempotencyKey = &key
	}
	if req.Reference != nil {
		refType := strings.TrimSpace(req.Reference.Type)
		refID := strings.TrimSpace(req.Reference.ID)
		entry.ReferenceType = &refType
		entry.ReferenceID = &refID
	}

	if err := s.repo.InsertEntry(ctx, tx, entry); err != nil {
		return nil, err
	}

	account.Balance = balanceAfter
	account.UpdatedAt = now
	if err := s.repo.UpdateBalance(ctx, tx, account); err != nil {
		return nil, err
	}

	logger.WithAccount(s.log, req.AccountID.String()).Info("ledger entry posted",
		zap.String("entry_id", entry.ID.String()),
		zap.String("reason", string(reason)),
		zap.Int64("amount", amount),
		zap.Int64("balance_after", balanceAfter),
	)
	s.obsMetrics.RecordLedgerEntry(ctx, string(reason))
	return entry, nil
}

func (s *Service) Balance(ctx context.Context, accountID snowflake.ID) (int64, error) {
	if accountID <= 0 {
		return 0, ledgerdomain.ErrInvalidAccount
	}
	account, err := s.repo.GetAccount(ctx, s.db, accountID)
	if err != nil {
		return 0, err
	}
	if account == nil {
		return 0, nil
	}
	return account.Balance, nil
}

func (s *Service) ListEntries(ctx context.Context, req ledgerdomain.ListEntriesRequest) (ledgerdomain.ListEntriesResponse, error) {
	if req.AccountID <= 0 {
		return ledgerdomain.ListEntriesResponse{}, ledgerdomain.ErrInvalidAccount
	}

	after, err := req.After()
	if err != nil {
		return ledgerdomain.ListEntriesResponse{}, ledgerdomain.ErrInvalidPageToken
	}
	size := req.Size()

	items, err := s.repo.ListEntries(ctx, s.db, ledgerdomain.ListFilter{
		AccountID: req.AccountID,
		After:     after,
		Limit:     size,
	})
	if err != nil {
		return ledgerdomain.ListEntriesResponse{}, err
	}
	items, pageInfo := pagination.Trim(items, size, func(e *ledgerdomain.Entry) pagination.Keyset {
		return pagination.Keyset{ID: e.ID, CreatedAt: e.CreatedAt}
	})

	balance, err := s.Balance(ctx, req.AccountID)
	if err != nil {
		return ledgerdomain.ListEntriesResponse{}, err
	}

	entries := make([]ledgerdomain.Entry, 0, len(items))
	for _, item := range items {
		entries = append(entries, *item)
	}

	return ledgerdomain.ListEntriesResponse{PageInfo: pageInfo, Balance: balance, Entries: entries}, nil
}

func normalizeReason(reason ledgerdomain.Reason) (ledgerdomain.Reason, error) {
	switch ledgerdomain.Reason(strings.ToLower(strings.TrimSpace(string(reason)))) {
	case ledgerdomain.ReasonPurchase:
		return ledgerdomain.ReasonPurchase, nil
	case ledgerdomain.ReasonFeaturedDebit:
		return ledgerdomain.ReasonFeaturedDebit, nil
	case ledgerdomain.ReasonRefund:
		return ledgerdomain.ReasonRefund, nil
	case ledgerdomain.ReasonPromoGrant:
		return ledgerdomain.ReasonPromoGrant, nil
	case ledgerdomain.ReasonAdminAdjustment:
		return ledgerdomain.ReasonAdminAdjustment, nil
	default:
		return "", ledgerdomain.ErrInvalidReason
	}
}
