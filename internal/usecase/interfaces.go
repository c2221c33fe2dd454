package usecase

import (
	"context"
	"time"

	"github.com/iho/badbank/internal/domain"
)

// AccountRepository defines data access for accounts.
type AccountRepository interface {
	CreateTx(ctx context.Context, tx Transaction, account *domain.Account) error
	GetByUserID(ctx context.Context, userID string) (*domain.Account, error)
	GetByUserIDForUpdate(ctx context.Context, tx Transaction, userID string) (*domain.Account, error)
	// UpdateBalances writes both balances if the stored version still equals
	// expectedVersion, otherwise it returns domain.ErrVersionConflict.
	UpdateBalances(ctx context.Context, tx Transaction, account *domain.Account, expectedVersion int64) error
	List(ctx context.Context, limit, offset int) ([]*domain.Account, error)
}

// TransactionRepository defines data access for the append-only transaction log.
type TransactionRepository interface {
	// Create appends record and fills in its store-assigned Seq.
	Create(ctx context.Context, tx Transaction, record *domain.Transaction) error
	// ListByUser returns records newest first. A zero limit returns all of them.
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.Transaction, error)
	// DerivedBalances replays the user's log into balances.
	DerivedBalances(ctx context.Context, userID string) (domain.Balances, int64, error)
}

// UserRepository defines data access for users.
type UserRepository interface {
	CreateTx(ctx context.Context, tx Transaction, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
}

// OutboxRepository defines data access for outbox events.
type OutboxRepository interface {
	Create(ctx context.Context, tx Transaction, event *domain.OutboxEvent) error
	GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
	DeletePublished(ctx context.Context, before time.Time) error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// Retrier re-runs an operation on transient storage conflicts.
// It returns domain.ErrBusy once its budget is spent.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// Locker serializes work per key.
type Locker interface {
	// Acquire blocks until key is held or ctx is done. The returned release
	// func must be called exactly once.
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// PasswordHasher hashes and verifies user passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// TokenIssuer issues session tokens for authenticated users.
type TokenIssuer interface {
	Generate(userID, username string) (string, error)
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
	// Release drops a key so the request can be retried.
	Release(ctx context.Context, key string) error
}
