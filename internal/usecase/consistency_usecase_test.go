package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iho/badbank/internal/domain"
	"github.com/iho/badbank/internal/infrastructure/metrics"
	"github.com/iho/badbank/internal/usecase"
)

func TestConsistencyUseCase_CheckAccount(t *testing.T) {
	e := newEngine(t, nil)
	e.seed("u1", 0, 0)
	ctx := context.Background()

	_, err := e.uc.Deposit(ctx, usecase.DepositInput{UserID: "u1", AccountType: domain.AccountTypeChecking, Amount: decimal.NewFromInt(100)})
	require.NoError(t, err)
	_, err = e.uc.Transfer(ctx, usecase.TransferInput{UserID: "u1", FromAccount: domain.AccountTypeChecking, ToAccount: domain.AccountTypeSavings, Amount: decimal.NewFromInt(30)})
	require.NoError(t, err)
	_, err = e.uc.Withdraw(ctx, usecase.WithdrawInput{UserID: "u1", AccountType: domain.AccountTypeSavings, Amount: decimal.NewFromInt(5)})
	require.NoError(t, err)

	uc := usecase.NewConsistencyUseCase(e.accounts, e.records, nil)

	result, err := uc.CheckAccount(ctx, "u1")
	require.NoError(t, err)
	require.True(t, result.Consistent)
	require.EqualValues(t, 3, result.TransactionCount)
	require.True(t, result.Derived.Checking.Equal(decimal.NewFromInt(70)))
	require.True(t, result.Derived.Savings.Equal(decimal.NewFromInt(25)))
}

func TestConsistencyUseCase_DetectsDrift(t *testing.T) {
	e := newEngine(t, nil)
	e.seed("u1", 0, 0)
	ctx := context.Background()

	_, err := e.uc.Deposit(ctx, usecase.DepositInput{UserID: "u1", AccountType: domain.AccountTypeChecking, Amount: decimal.NewFromInt(10)})
	require.NoError(t, err)

	// Simulate a balance written outside the engine.
	e.accounts.Seed(&domain.Account{UserID: "u1", Checking: decimal.NewFromInt(12), Version: 1})

	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	uc := usecase.NewConsistencyUseCase(e.accounts, e.records, m)

	report, err := uc.CheckAll(ctx)
	require.NoError(t, err)
	require.False(t, report.Consistent())
	require.Equal(t, 1, report.TotalAccounts)
	require.Len(t, report.Discrepancies, 1)
	require.True(t, report.Discrepancies[0].CheckingDiff.Equal(decimal.NewFromInt(2)))
	require.Equal(t, float64(1), testutil.ToFloat64(m.InconsistentAccounts))
}

func TestConsistencyUseCase_CheckAllPages(t *testing.T) {
	e := newEngine(t, nil)
	for i := range 1200 {
		e.seed(fmt.Sprintf("user-%04d", i), 0, 0)
	}

	uc := usecase.NewConsistencyUseCase(e.accounts, e.records, nil)
	report, err := uc.CheckAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1200, report.TotalAccounts)
	require.Equal(t, 1200, report.ConsistentAccounts)
	require.True(t, report.Consistent())
}

func TestConsistencyUseCase_UnknownUser(t *testing.T) {
	e := newEngine(t, nil)
	uc := usecase.NewConsistencyUseCase(e.accounts, e.records, nil)

	_, err := uc.CheckAccount(context.Background(), "ghost")
	require.True(t, errors.Is(err, domain.ErrAccountNotFound))
}

// racingAccounts commits a deposit right after every read it serves while
// remaining > 0, like a writer landing between the balance read and the
// log replay.
type racingAccounts struct {
	usecase.AccountRepository
	e         *engine
	remaining int
}

func (r *racingAccounts) GetByUserID(ctx context.Context, userID string) (*domain.Account, error) {
	account, err := r.AccountRepository.GetByUserID(ctx, userID)
	if err != nil || r.remaining == 0 {
		return account, err
	}
	r.remaining--

	_, depErr := r.e.uc.Deposit(ctx, usecase.DepositInput{UserID: userID, AccountType: domain.AccountTypeChecking, Amount: decimal.NewFromInt(5)})
	if depErr != nil {
		return nil, depErr
	}
	return account, nil
}

func TestConsistencyUseCase_ConcurrentDepositIsNotDrift(t *testing.T) {
	e := newEngine(t, nil)
	e.seed("u1", 0, 0)
	ctx := context.Background()

	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	uc := usecase.NewConsistencyUseCase(&racingAccounts{AccountRepository: e.accounts, e: e, remaining: 1}, e.records, m)

	result, err := uc.CheckAccount(ctx, "u1")
	require.NoError(t, err)
	require.True(t, result.Consistent)
	require.True(t, result.Recorded.Checking.Equal(decimal.NewFromInt(5)))
	require.True(t, result.Derived.Checking.Equal(decimal.NewFromInt(5)))
	require.EqualValues(t, 1, result.TransactionCount)
	require.Equal(t, float64(0), testutil.ToFloat64(m.ConsistencyChecks.WithLabelValues("inconsistent")))
}

func TestConsistencyUseCase_AccountThatKeepsChanging(t *testing.T) {
	e := newEngine(t, nil)
	e.seed("u1", 0, 0)
	e.seed("u2", 0, 0)
	ctx := context.Background()

	accounts := &racingAccounts{AccountRepository: e.accounts, e: e, remaining: 100}
	uc := usecase.NewConsistencyUseCase(accounts, e.records, nil)

	_, err := uc.CheckAccount(ctx, "u1")
	require.ErrorIs(t, err, domain.ErrBusy)

	// CheckAll skips busy accounts instead of reporting them as drift.
	report, err := uc.CheckAll(ctx)
	require.NoError(t, err)
	require.True(t, report.Consistent())
	require.Equal(t, 2, report.Skipped)
	require.Equal(t, 0, report.TotalAccounts)
}
