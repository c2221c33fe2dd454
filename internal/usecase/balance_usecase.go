package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/badbank/internal/domain"
	"github.com/iho/badbank/internal/infrastructure/metrics"
)

// Operation names used for locking, logging and metrics.
const (
	OpDeposit  = "deposit"
	OpWithdraw = "withdraw"
	OpTransfer = "transfer"
)

// BalanceUseCase applies balance mutations. Mutations of one user are
// serialized by the Locker and by a row lock inside the database transaction;
// different users never wait on each other.
type BalanceUseCase struct {
	txManager   TransactionManager
	accountRepo AccountRepository
	txRepo      TransactionRepository
	outboxRepo  OutboxRepository
	locker      Locker
	retrier     Retrier
	idGen       IDGenerator
	metrics     *metrics.Metrics
	lockWait    time.Duration
	txTimeout   time.Duration
	now         func() time.Time
}

// BalanceOption configures a BalanceUseCase.
type BalanceOption func(*BalanceUseCase)

// WithMetrics records operation metrics on m.
func WithMetrics(m *metrics.Metrics) BalanceOption {
	return func(uc *BalanceUseCase) { uc.metrics = m }
}

// WithLockWait bounds how long a mutation waits for the user's lock.
func WithLockWait(d time.Duration) BalanceOption {
	return func(uc *BalanceUseCase) {
		if d > 0 {
			uc.lockWait = d
		}
	}
}

// WithTransactionTimeout bounds the database work of one attempt.
func WithTransactionTimeout(d time.Duration) BalanceOption {
	return func(uc *BalanceUseCase) {
		if d > 0 {
			uc.txTimeout = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) BalanceOption {
	return func(uc *BalanceUseCase) { uc.now = now }
}

// NewBalanceUseCase creates a new BalanceUseCase.
func NewBalanceUseCase(
	txManager TransactionManager,
	accountRepo AccountRepository,
	txRepo TransactionRepository,
	outboxRepo OutboxRepository,
	locker Locker,
	retrier Retrier,
	idGen IDGenerator,
	opts ...BalanceOption,
) *BalanceUseCase {
	uc := &BalanceUseCase{
		txManager:   txManager,
		accountRepo: accountRepo,
		txRepo:      txRepo,
		outboxRepo:  outboxRepo,
		locker:      locker,
		retrier:     retrier,
		idGen:       idGen,
		lockWait:    DefaultLockWait,
		txTimeout:   DefaultTransactionTimeout,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// DepositInput represents input for a deposit.
type DepositInput struct {
	UserID      string
	AccountType domain.AccountType
	Amount      decimal.Decimal
}

// WithdrawInput represents input for a withdrawal.
type WithdrawInput struct {
	UserID      string
	AccountType domain.AccountType
	Amount      decimal.Decimal
}

// TransferInput represents input for a move between the user's sub-accounts.
type TransferInput struct {
	UserID      string
	FromAccount domain.AccountType
	ToAccount   domain.AccountType
	Amount      decimal.Decimal
}

// ListTransactionsInput represents input for listing a user's log.
// A zero Limit returns every record.
type ListTransactionsInput struct {
	UserID string
	Limit  int
	Offset int
}

// mutation is one validated balance change. apply mutates the locked
// account and returns the record to append.
type mutation struct {
	op     string
	userID string
	amount decimal.Decimal
	apply  func(acc *domain.Account, id string, now time.Time) (*domain.Transaction, error)
}

// Deposit adds Amount to the given sub-account.
func (uc *BalanceUseCase) Deposit(ctx context.Context, input DepositInput) (*domain.Balances, error) {
	if err := domain.ValidateAmount(input.Amount); err != nil {
		return nil, uc.reject(OpDeposit, err)
	}
	accountType, err := domain.ParseAccountType(string(input.AccountType))
	if err != nil {
		return nil, uc.reject(OpDeposit, err)
	}

	return uc.execute(ctx, mutation{
		op:     OpDeposit,
		userID: input.UserID,
		amount: input.Amount,
		apply: func(acc *domain.Account, id string, now time.Time) (*domain.Transaction, error) {
			if err := acc.ApplyCredit(accountType, input.Amount); err != nil {
				return nil, err
			}
			return domain.NewDeposit(id, acc.UserID, accountType, input.Amount, now), nil
		},
	})
}

// Withdraw removes Amount from the given sub-account if it holds enough.
func (uc *BalanceUseCase) Withdraw(ctx context.Context, input WithdrawInput) (*domain.Balances, error) {
	if err := domain.ValidateAmount(input.Amount); err != nil {
		return nil, uc.reject(OpWithdraw, err)
	}
	accountType, err := domain.ParseAccountType(string(input.AccountType))
	if err != nil {
		return nil, uc.reject(OpWithdraw, err)
	}

	return uc.execute(ctx, mutation{
		op:     OpWithdraw,
		userID: input.UserID,
		amount: input.Amount,
		apply: func(acc *domain.Account, id string, now time.Time) (*domain.Transaction, error) {
			if err := acc.ApplyDebit(accountType, input.Amount); err != nil {
				return nil, err
			}
			return domain.NewWithdraw(id, acc.UserID, accountType, input.Amount, now), nil
		},
	})
}

// Transfer moves Amount from one sub-account to the other. Both legs and
// the log record commit together.
func (uc *BalanceUseCase) Transfer(ctx context.Context, input TransferInput) (*domain.Balances, error) {
	if input.FromAccount == input.ToAccount {
		return nil, uc.reject(OpTransfer, domain.ErrSameAccount)
	}
	if err := domain.ValidateAmount(input.Amount); err != nil {
		return nil, uc.reject(OpTransfer, err)
	}
	from, err := domain.ParseAccountType(string(input.FromAccount))
	if err != nil {
		return nil, uc.reject(OpTransfer, err)
	}
	to, err := domain.ParseAccountType(string(input.ToAccount))
	if err != nil {
		return nil, uc.reject(OpTransfer, err)
	}

	return uc.execute(ctx, mutation{
		op:     OpTransfer,
		userID: input.UserID,
		amount: input.Amount,
		apply: func(acc *domain.Account, id string, now time.Time) (*domain.Transaction, error) {
			if err := acc.ApplyTransfer(from, to, input.Amount); err != nil {
				return nil, err
			}
			return domain.NewTransfer(id, acc.UserID, from, to, input.Amount, now), nil
		},
	})
}

// GetBalances returns the last committed balances of the user.
func (uc *BalanceUseCase) GetBalances(ctx context.Context, userID string) (*domain.Balances, error) {
	if userID == "" {
		return nil, domain.ErrAccountNotFound
	}

	account, err := uc.accountRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, uc.translate(ctx, "get balances", err)
	}

	balances := account.Balances()
	return &balances, nil
}

// ListTransactions returns the user's log newest first, ties broken by
// insertion order.
func (uc *BalanceUseCase) ListTransactions(ctx context.Context, input ListTransactionsInput) ([]*domain.Transaction, error) {
	if input.UserID == "" {
		return nil, domain.ErrAccountNotFound
	}

	if _, err := uc.accountRepo.GetByUserID(ctx, input.UserID); err != nil {
		return nil, uc.translate(ctx, "list transactions", err)
	}

	limit, offset := domain.ValidatePagination(input.Limit, input.Offset)
	records, err := uc.txRepo.ListByUser(ctx, input.UserID, limit, offset)
	if err != nil {
		return nil, uc.translate(ctx, "list transactions", err)
	}

	return records, nil
}

func (uc *BalanceUseCase) execute(ctx context.Context, m mutation) (*domain.Balances, error) {
	start := time.Now()

	balances, err := uc.run(ctx, m)

	uc.observe(m, time.Since(start), err)
	return balances, err
}

func (uc *BalanceUseCase) run(ctx context.Context, m mutation) (*domain.Balances, error) {
	if m.userID == "" {
		return nil, domain.ErrAccountNotFound
	}

	release, err := uc.acquire(ctx, m)
	if err != nil {
		return nil, err
	}
	defer release()

	var balances *domain.Balances
	attempt := 0
	err = uc.retrier.Retry(ctx, func() error {
		attempt++
		if attempt > 1 && uc.metrics != nil {
			uc.metrics.Retries.Inc()
		}

		b, err := uc.applyOnce(ctx, m)
		if err != nil {
			return err
		}
		balances = b
		return nil
	})
	if err != nil {
		return nil, uc.translate(ctx, m.op, err)
	}

	return balances, nil
}

// acquire takes the user's lock, waiting at most lockWait.
func (uc *BalanceUseCase) acquire(ctx context.Context, m mutation) (func(), error) {
	waitCtx, cancel := context.WithTimeout(ctx, uc.lockWait)
	defer cancel()

	start := time.Now()
	release, err := uc.locker.Acquire(waitCtx, lockKey(m.userID))
	if uc.metrics != nil {
		uc.metrics.LockWait.Observe(time.Since(start).Seconds())
	}
	if err == nil {
		return release, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, domain.ErrBusy) {
		return nil, domain.ErrBusy
	}
	return nil, uc.translate(ctx, "lock "+m.op, err)
}

// applyOnce runs one attempt of m in its own database transaction.
func (uc *BalanceUseCase) applyOnce(ctx context.Context, m mutation) (*domain.Balances, error) {
	txCtx, cancel := context.WithTimeout(ctx, uc.txTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	account, err := uc.accountRepo.GetByUserIDForUpdate(txCtx, tx, m.userID)
	if err != nil {
		return nil, err
	}

	expectedVersion := account.Version
	now := uc.now()

	record, err := m.apply(account, uc.idGen.Generate(), now)
	if err != nil {
		return nil, err
	}
	if err := record.Validate(); err != nil {
		return nil, err
	}

	account.Version++
	account.UpdatedAt = now

	if err := uc.accountRepo.UpdateBalances(txCtx, tx, account, expectedVersion); err != nil {
		return nil, err
	}
	if err := uc.txRepo.Create(txCtx, tx, record); err != nil {
		return nil, err
	}

	balances := account.Balances()
	event := domain.NewTransactionRecordedEvent(uc.idGen.Generate(), record, balances)
	if err := uc.outboxRepo.Create(txCtx, tx, event); err != nil {
		return nil, err
	}

	// Last point at which the caller can still abandon the mutation.
	if err := txCtx.Err(); err != nil {
		return nil, err
	}

	commitCtx, commitCancel := context.WithTimeout(context.WithoutCancel(ctx), uc.txTimeout)
	defer commitCancel()
	if err := tx.Commit(commitCtx); err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Debug().
		Str("operation", m.op).
		Str("user_id", m.userID).
		Str("transaction_id", record.ID).
		Str("amount", m.amount.String()).
		Msg("balance mutation committed")

	return &balances, nil
}

// translate keeps domain errors as they are and hides everything else
// behind a StorageError.
func (uc *BalanceUseCase) translate(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if domain.IsDomainError(err) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}

	zerolog.Ctx(ctx).Error().Err(err).Str("operation", op).Msg("storage failure")
	return &domain.StorageError{Op: op, Err: err}
}

func (uc *BalanceUseCase) reject(op string, err error) error {
	if uc.metrics != nil {
		uc.metrics.Operations.WithLabelValues(op, metrics.ResultRejected).Inc()
	}
	return err
}

func (uc *BalanceUseCase) observe(m mutation, elapsed time.Duration, err error) {
	if uc.metrics == nil {
		return
	}

	uc.metrics.OperationDuration.WithLabelValues(m.op).Observe(elapsed.Seconds())

	result := metrics.ResultSuccess
	switch domain.Classify(err) {
	case domain.ClassUnknown:
		if err != nil {
			result = metrics.ResultError
		}
	case domain.ClassValidation, domain.ClassState:
		result = metrics.ResultRejected
	case domain.ClassConcurrency:
		result = metrics.ResultBusy
		uc.metrics.BusyRejections.WithLabelValues(m.op).Inc()
	default:
		result = metrics.ResultError
	}
	uc.metrics.Operations.WithLabelValues(m.op, result).Inc()

	if err == nil {
		amount, _ := m.amount.Float64()
		uc.metrics.OperationAmount.WithLabelValues(m.op).Observe(amount)
	}
}

func lockKey(userID string) string {
	return "account:" + userID
}
