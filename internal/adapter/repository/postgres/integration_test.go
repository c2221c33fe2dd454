package postgres_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iho/badbank/internal/adapter/lock"
	"github.com/iho/badbank/internal/adapter/repository/postgres"
	"github.com/iho/badbank/internal/domain"
	pginfra "github.com/iho/badbank/internal/infrastructure/postgres"
	"github.com/iho/badbank/internal/usecase"
)

type integrationEnv struct {
	pool     *pgxpool.Pool
	txMgr    *postgres.TxManager
	users    *postgres.UserRepository
	accounts *postgres.AccountRepository
	records  *postgres.TransactionRepository
	outbox   *postgres.OutboxRepository
	engine   *usecase.BalanceUseCase
}

func setupIntegration(t *testing.T) *integrationEnv {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	require.NoError(t, pginfra.RunMigrations(dbURL, ""))

	ctx := context.Background()
	pool, err := pginfra.NewPoolWithConfig(ctx, pginfra.PoolConfig{DatabaseURL: dbURL, MaxConns: 20})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, "TRUNCATE outbox_events, transactions, accounts, users")
	require.NoError(t, err)

	env := &integrationEnv{
		pool:     pool,
		txMgr:    postgres.NewTxManager(pool, postgres.WithLockTimeout(2*time.Second)),
		users:    postgres.NewUserRepository(pool),
		accounts: postgres.NewAccountRepository(pool),
		records:  postgres.NewTransactionRepository(pool),
		outbox:   postgres.NewOutboxRepository(pool),
	}
	env.engine = usecase.NewBalanceUseCase(
		env.txMgr, env.accounts, env.records, env.outbox,
		lock.NewMemoryLocker(), postgres.NewRetrier(), postgres.NewULIDGenerator(),
	)
	return env
}

func (e *integrationEnv) openAccount(t *testing.T, username string) string {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	user := &domain.User{
		ID:           postgres.NewUUIDGenerator().Generate(),
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	tx, err := e.txMgr.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, e.users.CreateTx(ctx, tx, user))
	require.NoError(t, e.accounts.CreateTx(ctx, tx, domain.NewAccount(user.ID, now)))
	require.NoError(t, tx.Commit(ctx))

	return user.ID
}

func TestIntegration_BalanceLifecycle(t *testing.T) {
	env := setupIntegration(t)
	ctx := context.Background()
	userID := env.openAccount(t, "alice")

	_, err := env.engine.Deposit(ctx, usecase.DepositInput{UserID: userID, AccountType: domain.AccountTypeChecking, Amount: decimal.NewFromInt(100)})
	require.NoError(t, err)
	_, err = env.engine.Transfer(ctx, usecase.TransferInput{UserID: userID, FromAccount: domain.AccountTypeChecking, ToAccount: domain.AccountTypeSavings, Amount: decimal.NewFromInt(30)})
	require.NoError(t, err)

	_, err = env.engine.Withdraw(ctx, usecase.WithdrawInput{UserID: userID, AccountType: domain.AccountTypeSavings, Amount: decimal.NewFromInt(50)})
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	balances, err := env.engine.GetBalances(ctx, userID)
	require.NoError(t, err)
	require.True(t, balances.Checking.Equal(decimal.NewFromInt(70)))
	require.True(t, balances.Savings.Equal(decimal.NewFromInt(30)))

	records, err := env.engine.ListTransactions(ctx, usecase.ListTransactionsInput{UserID: userID})
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, domain.TransactionKindTransfer, records[0].Kind)
	require.Greater(t, records[0].Seq, records[1].Seq)

	derived, count, err := env.records.DerivedBalances(ctx, userID)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)
	require.True(t, derived.Checking.Equal(balances.Checking))
	require.True(t, derived.Savings.Equal(balances.Savings))

	events, err := env.outbox.GetUnpublished(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
}

func TestIntegration_ConcurrentDeposits(t *testing.T) {
	env := setupIntegration(t)
	ctx := context.Background()
	userID := env.openAccount(t, "bob")

	const workers = 50
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.engine.Deposit(ctx, usecase.DepositInput{UserID: userID, AccountType: domain.AccountTypeSavings, Amount: decimal.RequireFromString("1.25")})
			if err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("deposit failed: %v", err)
	}

	balances, err := env.engine.GetBalances(ctx, userID)
	require.NoError(t, err)
	require.True(t, balances.Savings.Equal(decimal.RequireFromString("62.5")), "got %s", balances.Savings)

	records, err := env.records.ListByUser(ctx, userID, 0, 0)
	require.NoError(t, err)
	require.Len(t, records, workers)
}

func TestIntegration_DuplicateSignupRejected(t *testing.T) {
	env := setupIntegration(t)
	ctx := context.Background()
	env.openAccount(t, "carol")

	now := time.Now().UTC()
	tx, err := env.txMgr.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback(ctx) }()

	err = env.users.CreateTx(ctx, tx, &domain.User{
		ID: "other", Username: "carol2", Email: "carol@example.com", PasswordHash: "x", CreatedAt: now, UpdatedAt: now,
	})
	require.True(t, errors.Is(err, domain.ErrUserExists), "got %v", err)
}

func TestIntegration_UnknownAccount(t *testing.T) {
	env := setupIntegration(t)

	_, err := env.engine.Deposit(context.Background(), usecase.DepositInput{UserID: "ghost", AccountType: domain.AccountTypeChecking, Amount: decimal.NewFromInt(1)})
	require.ErrorIs(t, err, domain.ErrAccountNotFound)
}
