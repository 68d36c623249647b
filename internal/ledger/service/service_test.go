package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/spotlight/internal/clock"
	ledgerdomain "github.com/smallbiznis/spotlight/internal/ledger/domain"
	"github.com/smallbiznis/spotlight/internal/ledger/repository"
	"github.com/smallbiznis/spotlight/pkg/db/dbtest"
	"github.com/smallbiznis/spotlight/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testAccount = snowflake.ID(7001)

func newTestService(t *testing.T) (ledgerdomain.Service, *gorm.DB, *clock.FakeClock) {
	t.Helper()

	db := dbtest.Open(t, &ledgerdomain.Account{}, &ledgerdomain.Entry{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))

	svc := NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  repository.Provide(),
	})
	return svc, db, clk
}

func TestCreditThenDebit(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	balance, err := svc.Balance(ctx, testAccount)
	require.NoError(t, err)
	assert.Zero(t, balance)

	entry, err := svc.Credit(ctx, ledgerdomain.CreditRequest{
		AccountID: testAccount,
		Amount:    5,
		Reason:    ledgerdomain.ReasonPurchase,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), entry.Amount)
	assert.Equal(t, int64(5), entry.BalanceAfter)

	entry, err = svc.Debit(ctx, ledgerdomain.DebitRequest{
		AccountID: testAccount,
		Amount:    2,
		Reason:    ledgerdomain.ReasonFeaturedDebit,
		Memo:      "featured:results",
		Reference: &ledgerdomain.Reference{Type: ledgerdomain.ReferenceTypeReservation, ID: "42"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(-2), entry.Amount)
	assert.Equal(t, int64(3), entry.BalanceAfter)
	assert.Equal(t, "featured:results", entry.Memo)

	balance, err = svc.Balance(ctx, testAccount)
	require.NoError(t, err)
	assert.Equal(t, int64(3), balance)
}

func TestDebitInsufficientBalance(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Credit(ctx, ledgerdomain.CreditRequest{AccountID: testAccount, Amount: 1, Reason: ledgerdomain.ReasonPromoGrant})
	require.NoError(t, err)

	_, err = svc.Debit(ctx, ledgerdomain.DebitRequest{AccountID: testAccount, Amount: 3, Reason: ledgerdomain.ReasonFeaturedDebit})
	require.ErrorIs(t, err, ledgerdomain.ErrInsufficientBalance)

	var insufficient *ledgerdomain.InsufficientBalanceError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, int64(1), insufficient.Balance)
	assert.Equal(t, int64(3), insufficient.Requested)
	assert.Equal(t, int64(2), insufficient.Shortfall)
	assert.Equal(t, "insufficient balance, need 2 more credits", err.Error())

	var count int64
	require.NoError(t, db.Model(&ledgerdomain.Entry{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestDebitFromUnknownAccountFails(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Debit(context.Background(), ledgerdomain.DebitRequest{AccountID: testAccount, Amount: 1, Reason: ledgerdomain.ReasonFeaturedDebit})
	require.ErrorIs(t, err, ledgerdomain.ErrInsufficientBalance)
}

func TestValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Credit(ctx, ledgerdomain.CreditRequest{Amount: 1, Reason: ledgerdomain.ReasonPurchase})
	require.ErrorIs(t, err, ledgerdomain.ErrInvalidAccount)

	_, err = svc.Credit(ctx, ledgerdomain.CreditRequest{AccountID: testAccount, Amount: 0, Reason: ledgerdomain.ReasonPurchase})
	require.ErrorIs(t, err, ledgerdomain.ErrInvalidAmount)

	_, err = svc.Credit(ctx, ledgerdomain.CreditRequest{AccountID: testAccount, Amount: 1, Reason: "gift"})
	require.ErrorIs(t, err, ledgerdomain.ErrInvalidReason)
}

func TestIdempotentCredit(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	req := ledgerdomain.CreditRequest{
		AccountID:      testAccount,
		Amount:         10,
		Reason:         ledgerdomain.ReasonPurchase,
		IdempotencyKey: "topup:evt_1",
	}
	first, err := svc.Credit(ctx, req)
	require.NoError(t, err)
	second, err := svc.Credit(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	balance, err := svc.Balance(ctx, testAccount)
	require.NoError(t, err)
	assert.Equal(t, int64(10), balance)

	req.Amount = 11
	_, err = svc.Credit(ctx, req)
	require.ErrorIs(t, err, ledgerdomain.ErrIdempotencyConflict)
}

func TestConcurrentDebitsNeverOverdraw(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Credit(ctx, ledgerdomain.CreditRequest{AccountID: testAccount, Amount: 5, Reason: ledgerdomain.ReasonPurchase})
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Debit(ctx, ledgerdomain.DebitRequest{AccountID: testAccount, Amount: 2, Reason: ledgerdomain.ReasonFeaturedDebit})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
				return
			}
			if errors.Is(err, ledgerdomain.ErrInsufficientBalance) {
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 2, succeeded)
	assert.Equal(t, 6, rejected)

	balance, err := svc.Balance(ctx, testAccount)
	require.NoError(t, err)
	assert.Equal(t, int64(1), balance)
}

func TestDebitTxRollsBackWithCaller(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Credit(ctx, ledgerdomain.CreditRequest{AccountID: testAccount, Amount: 4, Reason: ledgerdomain.ReasonPurchase})
	require.NoError(t, err)

	boom := errors.New("insert failed")
	err = db.Transaction(func(tx *gorm.DB) error {
		if _, err := svc.DebitTx(ctx, tx, ledgerdomain.DebitRequest{AccountID: testAccount, Amount: 2, Reason: ledgerdomain.ReasonFeaturedDebit}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	balance, err := svc.Balance(ctx, testAccount)
	require.NoError(t, err)
	assert.Equal(t, int64(4), balance)
}

func TestListEntriesRunningBalance(t *testing.T) {
	svc, _, clk := newTestService(t)
	ctx := context.Background()

	amounts := []int64{5, 3, 2}
	for _, amount := range amounts {
		_, err := svc.Credit(ctx, ledgerdomain.CreditRequest{AccountID: testAccount, Amount: amount, Reason: ledgerdomain.ReasonPurchase})
		require.NoError(t, err)
		clk.Advance(time.Minute)
	}
	_, err := svc.Debit(ctx, ledgerdomain.DebitRequest{AccountID: testAccount, Amount: 4, Reason: ledgerdomain.ReasonFeaturedDebit})
	require.NoError(t, err)

	first, err := svc.ListEntries(ctx, ledgerdomain.ListEntriesRequest{
		AccountID:  testAccount,
		Pagination: pagination.Pagination{PageSize: 3},
	})
	require.NoError(t, err)
	require.Len(t, first.Entries, 3)
	assert.True(t, first.HasMore)
	assert.Equal(t, int64(6), first.Balance)
	assert.Equal(t, int64(6), first.Entries[0].BalanceAfter)

	second, err := svc.ListEntries(ctx, ledgerdomain.ListEntriesRequest{
		AccountID:  testAccount,
		Pagination: pagination.Pagination{PageSize: 3, PageToken: first.NextPageToken},
	})
	require.NoError(t, err)
	require.Len(t, second.Entries, 1)
	assert.Equal(t, int64(5), second.Entries[0].BalanceAfter)

	var running int64
	all := append(append([]ledgerdomain.Entry{}, second.Entries...), reverse(first.Entries)...)
	for _, entry := range all {
		running += entry.Amount
		assert.Equal(t, running, entry.BalanceAfter)
	}
}

func reverse(entries []ledgerdomain.Entry) []ledgerdomain.Entry {
	out := make([]ledgerdomain.Entry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		out = append(out, entries[i])
	}
	return out
}

func TestCreditRejectsBalanceOverflow(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Credit(ctx, ledgerdomain.CreditRequest{AccountID: testAccount, Amount: 1, Reason: ledgerdomain.ReasonPurchase})
	require.NoError(t, err)

	_, err = svc.Credit(ctx, ledgerdomain.CreditRequest{
		AccountID: testAccount,
		Amount:    math.MaxInt64,
		Reason:    ledgerdomain.ReasonPromoGrant,
	})
	require.ErrorIs(t, err, ledgerdomain.ErrBalanceOverflow)

	balance, err := svc.Balance(ctx, testAccount)
	require.NoError(t, err)
	assert.Equal(t, int64(1), balance)

	var entries int64
	require.NoError(t, db.Model(&ledgerdomain.Entry{}).Where("account_id = ?", testAccount).Count(&entries).Error)
	assert.Equal(t, int64(1), entries)

	entry, err := svc.Credit(ctx, ledgerdomain.CreditRequest{
		AccountID: testAccount,
		Amount:    math.MaxInt64 - 1,
		Reason:    ledgerdomain.ReasonPromoGrant,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), entry.BalanceAfter)
}
