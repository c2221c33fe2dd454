package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/iho/badbank/internal/domain"
	"github.com/iho/badbank/internal/infrastructure/postgres/generated"
	"github.com/iho/badbank/internal/usecase"
)

// AccountRepository implements usecase.AccountRepository.
type AccountRepository struct {
	queries *generated.Queries
}

// NewAccountRepository creates a new AccountRepository. db is usually a
// *pgxpool.Pool.
func NewAccountRepository(db generated.DBTX) *AccountRepository {
	return &AccountRepository{
		queries: generated.New(db),
	}
}

// CreateTx inserts a zero-version account inside tx.
func (r *AccountRepository) CreateTx(ctx context.Context, tx usecase.Transaction, account *domain.Account) error {
	pgxTx, err := unwrapTx(tx)
	if err != nil {
		return err
	}

	return r.queries.WithTx(pgxTx).CreateAccount(ctx, generated.CreateAccountParams{
		UserID:    account.UserID,
		Checking:  decimalToNumeric(account.Checking),
		Savings:   decimalToNumeric(account.Savings),
		Version:   account.Version,
		CreatedAt: timeToPgTimestamptz(account.CreatedAt),
		UpdatedAt: timeToPgTimestamptz(account.UpdatedAt),
	})
}

// GetByUserID reads the committed account of userID.
func (r *AccountRepository) GetByUserID(ctx context.Context, userID string) (*domain.Account, error) {
	row, err := r.queries.GetAccountByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}

		return nil, err
	}

	return rowToAccount(row), nil
}

// GetByUserIDForUpdate reads the account of userID and locks its row until
// tx ends.
func (r *AccountRepository) GetByUserIDForUpdate(ctx context.Context, tx usecase.Transaction, userID string) (*domain.Account, error) {
	pgxTx, err := unwrapTx(tx)
	if err != nil {
		return nil, err
	}

	row, err := r.queries.WithTx(pgxTx).GetAccountByUserIDForUpdate(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}

		return nil, err
	}

	return rowToAccount(row), nil
}

// UpdateBalances writes both balances guarded by expectedVersion. The stored
// version is bumped by one.
func (r *AccountRepository) UpdateBalances(ctx context.Context, tx usecase.Transaction, account *domain.Account, expectedVersion int64) error {
	pgxTx, err := unwrapTx(tx)
	if err != nil {
		return err
	}

	n, err := r.queries.WithTx(pgxTx).UpdateAccountBalances(ctx, generated.UpdateAccountBalancesParams{
		UserID:          account.UserID,
		Checking:        decimalToNumeric(account.Checking),
		Savings:         decimalToNumeric(account.Savings),
		UpdatedAt:       timeToPgTimestamptz(account.UpdatedAt),
		ExpectedVersion: expectedVersion,
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrVersionConflict
	}

	return nil
}

// List lists accounts ordered by user ID.
func (r *AccountRepository) List(ctx context.Context, limit, offset int) ([]*domain.Account, error) {
	rows, err := r.queries.ListAccounts(ctx, generated.ListAccountsParams{
		Limit:  int32(limit),
		Offset: int32(offset),
	})
	if err != nil {
		return nil, err
	}

	accounts := make([]*domain.Account, 0, len(rows))
	for _, row := range rows {
		accounts = append(accounts, rowToAccount(row))
	}

	return accounts, nil
}

// Count returns the number of accounts.
func (r *AccountRepository) Count(ctx context.Context) (int64, error) {
	return r.queries.CountAccounts(ctx)
}

func rowToAccount(row generated.Account) *domain.Account {
	return &domain.Account{
		UserID:    row.UserID,
		Checking:  numericToDecimal(row.Checking),
		Savings:   numericToDecimal(row.Savings),
		Version:   row.Version,
		CreatedAt: row.CreatedAt.Time,
		UpdatedAt: row.UpdatedAt.Time,
	}
}

// Type conversion helpers.
func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.Int == nil || n.NaN {
		return decimal.Zero
	}

	return decimal.NewFromBigInt(n.Int, n.Exp)
}

func timeToPgTimestamptz(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}
