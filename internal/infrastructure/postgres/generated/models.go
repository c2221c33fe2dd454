package generated

import (
	"github.com/jackc/pgx/v5/pgtype"
)

type Account struct {
	UserID    string             `json:"user_id"`
	Checking  pgtype.Numeric     `json:"checking"`
	Savings   pgtype.Numeric     `json:"savings"`
	Version   int64              `json:"version"`
	CreatedAt pgtype.Timestamptz `json:"created_at"`
	UpdatedAt pgtype.Timestamptz `json:"updated_at"`
}

type OutboxEvent struct {
	ID            string             `json:"id"`
	AggregateID   string             `json:"aggregate_id"`
	AggregateType string             `json:"aggregate_type"`
	EventType     string             `json:"event_type"`
	Payload       []byte             `json:"payload"`
	CreatedAt     pgtype.Timestamptz `json:"created_at"`
	PublishedAt   pgtype.Timestamptz `json:"published_at"`
	Published     bool               `json:"published"`
}

type Transaction struct {
	Seq         int64              `json:"seq"`
	ID          string             `json:"id"`
	UserID      string             `json:"user_id"`
	Kind        string             `json:"kind"`
	Amount      pgtype.Numeric     `json:"amount"`
	AccountType string             `json:"account_type"`
	FromAccount pgtype.Text        `json:"from_account"`
	ToAccount   pgtype.Text        `json:"to_account"`
	CreatedAt   pgtype.Timestamptz `json:"created_at"`
}

type User struct {
	ID           string             `json:"id"`
	Username     string             `json:"username"`
	Email        string             `json:"email"`
	PasswordHash string             `json:"password_hash"`
	CreatedAt    pgtype.Timestamptz `json:"created_at"`
	UpdatedAt    pgtype.Timestamptz `json:"updated_at"`
}
