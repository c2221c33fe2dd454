package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/iho/badbank/internal/domain"
	"github.com/iho/badbank/internal/infrastructure/postgres/generated"
	"github.com/iho/badbank/internal/usecase"
)

// TransactionRepository implements usecase.TransactionRepository over the
// append-only transactions table.
type TransactionRepository struct {
	queries *generated.Queries
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(db generated.DBTX) *TransactionRepository {
	return &TransactionRepository{
		queries: generated.New(db),
	}
}

// Create appends record inside tx and stores the assigned sequence on it.
func (r *TransactionRepository) Create(ctx context.Context, tx usecase.Transaction, record *domain.Transaction) error {
	pgxTx, err := unwrapTx(tx)
	if err != nil {
		return err
	}

	seq, err := r.queries.WithTx(pgxTx).CreateTransaction(ctx, generated.CreateTransactionParams{
		ID:          record.ID,
		UserID:      record.UserID,
		Kind:        string(record.Kind),
		Amount:      decimalToNumeric(record.Amount),
		AccountType: string(record.AccountType),
		FromAccount: accountTypeToText(record.FromAccount),
		ToAccount:   accountTypeToText(record.ToAccount),
		CreatedAt:   timeToPgTimestamptz(record.CreatedAt),
	})
	if err != nil {
		return err
	}

	record.Seq = seq
	return nil
}

// ListByUser returns userID's records, newest first. A zero limit returns all.
func (r *TransactionRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.Transaction, error) {
	params := generated.ListTransactionsByUserParams{
		UserID: userID,
		Offset: int32(offset),
	}
	if limit > 0 {
		params.Limit = pgtype.Int4{Int32: int32(limit), Valid: true}
	}

	rows, err := r.queries.ListTransactionsByUser(ctx, params)
	if err != nil {
		return nil, err
	}

	records := make([]*domain.Transaction, 0, len(rows))
	for _, row := range rows {
		record, err := rowToTransaction(row)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, nil
}

// DerivedBalances sums the user's log into balances and returns the number of
// records folded.
func (r *TransactionRepository) DerivedBalances(ctx context.Context, userID string) (domain.Balances, int64, error) {
	row, err := r.queries.GetDerivedBalances(ctx, userID)
	if err != nil {
		return domain.Balances{}, 0, err
	}

	return domain.Balances{
		Checking: numericToDecimal(row.Checking),
		Savings:  numericToDecimal(row.Savings),
	}, row.TransactionCount, nil
}

func rowToTransaction(row generated.Transaction) (*domain.Transaction, error) {
	record := &domain.Transaction{
		ID:          row.ID,
		Seq:         row.Seq,
		UserID:      row.UserID,
		Kind:        domain.TransactionKind(row.Kind),
		Amount:      numericToDecimal(row.Amount),
		AccountType: domain.AccountType(row.AccountType),
		FromAccount: textToAccountType(row.FromAccount),
		ToAccount:   textToAccountType(row.ToAccount),
		CreatedAt:   row.CreatedAt.Time,
	}
	if err := record.Validate(); err != nil {
		return nil, fmt.Errorf("stored transaction %s: %w", row.ID, err)
	}

	return record, nil
}

func accountTypeToText(t *domain.AccountType) pgtype.Text {
	if t == nil {
		return pgtype.Text{}
	}
	return pgtype.Text{String: string(*t), Valid: true}
}

func textToAccountType(t pgtype.Text) *domain.AccountType {
	if !t.Valid {
		return nil
	}
	at := domain.AccountType(t.String)
	return &at
}
