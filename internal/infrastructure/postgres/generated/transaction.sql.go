package generated

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const countTransactionsByUser = `-- name: CountTransactionsByUser :one
SELECT COUNT(*) FROM transactions WHERE user_id = $1
`

func (q *Queries) CountTransactionsByUser(ctx context.Context, userID string) (int64, error) {
	row := q.db.QueryRow(ctx, countTransactionsByUser, userID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const createTransaction = `-- name: CreateTransaction :one
INSERT INTO transactions (id, user_id, kind, amount, account_type, from_account, to_account, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING seq
`

type CreateTransactionParams struct {
	ID          string             `json:"id"`
	UserID      string             `json:"user_id"`
	Kind        string             `json:"kind"`
	Amount      pgtype.Numeric     `json:"amount"`
	AccountType string             `json:"account_type"`
	FromAccount pgtype.Text        `json:"from_account"`
	ToAccount   pgtype.Text        `json:"to_account"`
	CreatedAt   pgtype.Timestamptz `json:"created_at"`
}

func (q *Queries) CreateTransaction(ctx context.Context, arg CreateTransactionParams) (int64, error) {
	row := q.db.QueryRow(ctx, createTransaction,
		arg.ID,
		arg.UserID,
		arg.Kind,
		arg.Amount,
		arg.AccountType,
		arg.FromAccount,
		arg.ToAccount,
		arg.CreatedAt,
	)
	var seq int64
	err := row.Scan(&seq)
	return seq, err
}

const getDerivedBalances = `-- name: GetDerivedBalances :one
SELECT
    COALESCE(SUM(CASE
        WHEN kind = 'Deposit' AND account_type = 'checking' THEN amount
        WHEN kind = 'Withdraw' AND account_type = 'checking' THEN -amount
        WHEN kind = 'Transfer' AND from_account = 'checking' THEN -amount
        WHEN kind = 'Transfer' AND to_account = 'checking' THEN amount
        ELSE 0
    END), 0)::numeric AS checking,
    COALESCE(SUM(CASE
        WHEN kind = 'Deposit' AND account_type = 'savings' THEN amount
        WHEN kind = 'Withdraw' AND account_type = 'savings' THEN -amount
        WHEN kind = 'Transfer' AND from_account = 'savings' THEN -amount
        WHEN kind = 'Transfer' AND to_account = 'savings' THEN amount
        ELSE 0
    END), 0)::numeric AS savings,
    COUNT(*) AS transaction_count
FROM transactions
WHERE user_id = $1
`

type GetDerivedBalancesRow struct {
	Checking         pgtype.Numeric `json:"checking"`
	Savings          pgtype.Numeric `json:"savings"`
	TransactionCount int64          `json:"transaction_count"`
}

func (q *Queries) GetDerivedBalances(ctx context.Context, userID string) (GetDerivedBalancesRow, error) {
	row := q.db.QueryRow(ctx, getDerivedBalances, userID)
	var i GetDerivedBalancesRow
	err := row.Scan(&i.Checking, &i.Savings, &i.TransactionCount)
	return i, err
}

const listTransactionsByUser = `-- name: ListTransactionsByUser :many
SELECT seq, id, user_id, kind, amount, account_type, from_account, to_account, created_at FROM transactions
WHERE user_id = $1
ORDER BY created_at DESC, seq DESC
LIMIT $3 OFFSET $2
`

type ListTransactionsByUserParams struct {
	UserID string      `json:"user_id"`
	Offset int32       `json:"offset"`
	Limit  pgtype.Int4 `json:"limit"`
}

func (q *Queries) ListTransactionsByUser(ctx context.Context, arg ListTransactionsByUserParams) ([]Transaction, error) {
	rows, err := q.db.Query(ctx, listTransactionsByUser, arg.UserID, arg.Offset, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Transaction{}
	for rows.Next() {
		var i Transaction
		if err := rows.Scan(
			&i.Seq,
			&i.ID,
			&i.UserID,
			&i.Kind,
			&i.Amount,
			&i.AccountType,
			&i.FromAccount,
			&i.ToAccount,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
