package usecase

import "time"

const (
	// DefaultTransactionTimeout is the maximum duration for a database transaction
	// This prevents long-running transactions from blocking tables
	DefaultTransactionTimeout = 10 * time.Second

	// DefaultLockWait bounds how long a mutation waits for its user's lock.
	DefaultLockWait = 5 * time.Second

	// IdempotencyKeyTTL is how long idempotency keys are cached
	IdempotencyKeyTTL = 24 * time.Hour

	// consistencyPageSize is the page size used when walking all accounts.
	consistencyPageSize = 500

	// consistencyAttempts bounds the re-reads of an account that keeps
	// changing while its log is replayed.
	consistencyAttempts = 3
)
