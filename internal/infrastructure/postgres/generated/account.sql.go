package generated

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const countAccounts = `-- name: CountAccounts :one
SELECT COUNT(*) FROM accounts
`

func (q *Queries) CountAccounts(ctx context.Context) (int64, error) {
	row := q.db.QueryRow(ctx, countAccounts)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const createAccount = `-- name: CreateAccount :exec
INSERT INTO accounts (user_id, checking, savings, version, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
`

type CreateAccountParams struct {
	UserID    string             `json:"user_id"`
	Checking  pgtype.Numeric     `json:"checking"`
	Savings   pgtype.Numeric     `json:"savings"`
	Version   int64              `json:"version"`
	CreatedAt pgtype.Timestamptz `json:"created_at"`
	UpdatedAt pgtype.Timestamptz `json:"updated_at"`
}

func (q *Queries) CreateAccount(ctx context.Context, arg CreateAccountParams) error {
	_, err := q.db.Exec(ctx, createAccount,
		arg.UserID,
		arg.Checking,
		arg.Savings,
		arg.Version,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	return err
}

const getAccountByUserID = `-- name: GetAccountByUserID :one
SELECT user_id, checking, savings, version, created_at, updated_at FROM accounts WHERE user_id = $1
`

func (q *Queries) GetAccountByUserID(ctx context.Context, userID string) (Account, error) {
	row := q.db.QueryRow(ctx, getAccountByUserID, userID)
	var i Account
	err := row.Scan(
		&i.UserID,
		&i.Checking,
		&i.Savings,
		&i.Version,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getAccountByUserIDForUpdate = `-- name: GetAccountByUserIDForUpdate :one
SELECT user_id, checking, savings, version, created_at, updated_at FROM accounts WHERE user_id = $1 FOR UPDATE
`

func (q *Queries) GetAccountByUserIDForUpdate(ctx context.Context, userID string) (Account, error) {
	row := q.db.QueryRow(ctx, getAccountByUserIDForUpdate, userID)
	var i Account
	err := row.Scan(
		&i.UserID,
		&i.Checking,
		&i.Savings,
		&i.Version,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listAccounts = `-- name: ListAccounts :many
SELECT user_id, checking, savings, version, created_at, updated_at FROM accounts ORDER BY user_id LIMIT $1 OFFSET $2
`

type ListAccountsParams struct {
	Limit  int32 `json:"limit"`
	Offset int32 `json:"offset"`
}

func (q *Queries) ListAccounts(ctx context.Context, arg ListAccountsParams) ([]Account, error) {
	rows, err := q.db.Query(ctx, listAccounts, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Account{}
	for rows.Next() {
		var i Account
		if err := rows.Scan(
			&i.UserID,
			&i.Checking,
			&i.Savings,
			&i.Version,
			&i.CreatedAt,
			&i.UpdatedAt,
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

const updateAccountBalances = `-- name: UpdateAccountBalances :execrows
UPDATE accounts
SET checking = $2, savings = $3, version = version + 1, updated_at = $4
WHERE user_id = $1 AND version = $5
`

type UpdateAccountBalancesParams struct {
	UserID          string             `json:"user_id"`
	Checking        pgtype.Numeric     `json:"checking"`
	Savings         pgtype.Numeric     `json:"savings"`
	UpdatedAt       pgtype.Timestamptz `json:"updated_at"`
	ExpectedVersion int64              `json:"expected_version"`
}

func (q *Queries) UpdateAccountBalances(ctx context.Context, arg UpdateAccountBalancesParams) (int64, error) {
	result, err := q.db.Exec(ctx, updateAccountBalances,
		arg.UserID,
		arg.Checking,
		arg.Savings,
		arg.UpdatedAt,
		arg.ExpectedVersion,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
