// Package mocks provides in-memory fakes of the usecase interfaces.
// Writes made through a *MockTransaction are staged and only become
// visible on Commit, so rollback and atomicity can be tested.
package mocks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iho/badbank/internal/domain"
	"github.com/iho/badbank/internal/usecase"
)

// commitMu makes each MockTransaction commit atomic across repositories.
var commitMu sync.Mutex

type stagedOp struct {
	check func() error
	apply func()
}

// stage queues op on tx, or runs it at once when tx is not a MockTransaction.
func stage(tx usecase.Transaction, op stagedOp) error {
	if mt, ok := tx.(*MockTransaction); ok {
		mt.stage(op)
		return nil
	}
	if op.check != nil {
		if err := op.check(); err != nil {
			return err
		}
	}
	op.apply()
	return nil
}

// MockAccountRepository is a mock implementation of AccountRepository.
type MockAccountRepository struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account

	CreateTxFunc             func(ctx context.Context, tx usecase.Transaction, account *domain.Account) error
	GetByUserIDFunc          func(ctx context.Context, userID string) (*domain.Account, error)
	GetByUserIDForUpdateFunc func(ctx context.Context, tx usecase.Transaction, userID string) (*domain.Account, error)
	UpdateBalancesFunc       func(ctx context.Context, tx usecase.Transaction, account *domain.Account, expectedVersion int64) error
	ListFunc                 func(ctx context.Context, limit, offset int) ([]*domain.Account, error)
}

func NewMockAccountRepository() *MockAccountRepository {
	return &MockAccountRepository{
		accounts: make(map[string]*domain.Account),
	}
}

// Seed stores account directly, bypassing transactions.
func (m *MockAccountRepository) Seed(account *domain.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *account
	m.accounts[account.UserID] = &cp
}

func (m *MockAccountRepository) CreateTx(ctx context.Context, tx usecase.Transaction, account *domain.Account) error {
	if m.CreateTxFunc != nil {
		return m.CreateTxFunc(ctx, tx, account)
	}
	cp := *account
	return stage(tx, stagedOp{
		apply: func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			m.accounts[cp.UserID] = &cp
		},
	})
}

func (m *MockAccountRepository) GetByUserID(ctx context.Context, userID string) (*domain.Account, error) {
	if m.GetByUserIDFunc != nil {
		return m.GetByUserIDFunc(ctx, userID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if acc, ok := m.accounts[userID]; ok {
		cp := *acc
		return &cp, nil
	}
	return nil, domain.ErrAccountNotFound
}

func (m *MockAccountRepository) GetByUserIDForUpdate(ctx context.Context, tx usecase.Transaction, userID string) (*domain.Account, error) {
	if m.GetByUserIDForUpdateFunc != nil {
		return m.GetByUserIDForUpdateFunc(ctx, tx, userID)
	}
	return m.GetByUserID(ctx, userID)
}

func (m *MockAccountRepository) UpdateBalances(ctx context.Context, tx usecase.Transaction, account *domain.Account, expectedVersion int64) error {
	if m.UpdateBalancesFunc != nil {
		return m.UpdateBalancesFunc(ctx, tx, account, expectedVersion)
	}

	check := func() error {
		m.mu.RLock()
		defer m.mu.RUnlock()
		stored, ok := m.accounts[account.UserID]
		if !ok {
			return domain.ErrAccountNotFound
		}
		if stored.Version != expectedVersion {
			return domain.ErrVersionConflict
		}
		return nil
	}
	if err := check(); err != nil {
		return err
	}

	cp := *account
	return stage(tx, stagedOp{
		check: check,
		apply: func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			m.accounts[cp.UserID] = &cp
		},
	})
}

func (m *MockAccountRepository) List(ctx context.Context, limit, offset int) ([]*domain.Account, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit, offset)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	accounts := make([]*domain.Account, 0, len(m.accounts))
	for _, acc := range m.accounts {
		cp := *acc
		accounts = append(accounts, &cp)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].UserID < accounts[j].UserID })
	return page(accounts, limit, offset), nil
}

// MockTransactionRepository is a mock implementation of TransactionRepository.
type MockTransactionRepository struct {
	mu      sync.RWMutex
	records []*domain.Transaction
	seq     int64

	CreateFunc          func(ctx context.Context, tx usecase.Transaction, record *domain.Transaction) error
	ListByUserFunc      func(ctx context.Context, userID string, limit, offset int) ([]*domain.Transaction, error)
	DerivedBalancesFunc func(ctx context.Context, userID string) (domain.Balances, int64, error)
}

func NewMockTransactionRepository() *MockTransactionRepository {
	return &MockTransactionRepository{}
}

func (m *MockTransactionRepository) Create(ctx context.Context, tx usecase.Transaction, record *domain.Transaction) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, record)
	}
	cp := *record
	return stage(tx, stagedOp{
		apply: func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			m.seq++
			cp.Seq = m.seq
			m.records = append(m.records, &cp)
		},
	})
}

func (m *MockTransactionRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.Transaction, error) {
	if m.ListByUserFunc != nil {
		return m.ListByUserFunc(ctx, userID, limit, offset)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var records []*domain.Transaction
	for _, r := range m.records {
		if r.UserID == userID {
			cp := *r
			records = append(records, &cp)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.After(records[j].CreatedAt)
		}
		return records[i].Seq > records[j].Seq
	})
	return page(records, limit, offset), nil
}

func (m *MockTransactionRepository) DerivedBalances(ctx context.Context, userID string) (domain.Balances, int64, error) {
	if m.DerivedBalancesFunc != nil {
		return m.DerivedBalancesFunc(ctx, userID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var b domain.Balances
	var n int64
	for _, r := range m.records {
		if r.UserID == userID {
			r.ApplyTo(&b)
			n++
		}
	}
	return b, n, nil
}

// All returns every committed record in insertion order.
func (m *MockTransactionRepository) All() []*domain.Transaction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Transaction, len(m.records))
	copy(out, m.records)
	return out
}

// MockUserRepository is a mock implementation of UserRepository.
type MockUserRepository struct {
	mu    sync.RWMutex
	users map[string]*domain.User

	CreateTxFunc      func(ctx context.Context, tx usecase.Transaction, user *domain.User) error
	GetByIDFunc       func(ctx context.Context, id string) (*domain.User, error)
	GetByEmailFunc    func(ctx context.Context, email string) (*domain.User, error)
	GetByUsernameFunc func(ctx context.Context, username string) (*domain.User, error)
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		users: make(map[string]*domain.User),
	}
}

func (m *MockUserRepository) CreateTx(ctx context.Context, tx usecase.Transaction, user *domain.User) error {
	if m.CreateTxFunc != nil {
		return m.CreateTxFunc(ctx, tx, user)
	}
	cp := *user
	return stage(tx, stagedOp{
		check: func() error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			for _, u := range m.users {
				if u.Email == cp.Email {
					return domain.ErrUserExists
				}
				if u.Username == cp.Username {
					return domain.ErrUsernameTaken
				}
			}
			return nil
		},
		apply: func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			m.users[cp.ID] = &cp
		},
	})
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return m.find(func(u *domain.User) bool { return u.ID == id })
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return m.find(func(u *domain.User) bool { return u.Email == email })
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	if m.GetByUsernameFunc != nil {
		return m.GetByUsernameFunc(ctx, username)
	}
	return m.find(func(u *domain.User) bool { return u.Username == username })
}

func (m *MockUserRepository) find(match func(*domain.User) bool) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

// MockOutboxRepository is a mock implementation of OutboxRepository.
type MockOutboxRepository struct {
	mu     sync.RWMutex
	events []*domain.OutboxEvent

	CreateFunc func(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error
}

func NewMockOutboxRepository() *MockOutboxRepository {
	return &MockOutboxRepository{}
}

func (m *MockOutboxRepository) Create(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, event)
	}
	cp := *event
	return stage(tx, stagedOp{
		apply: func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			m.events = append(m.events, &cp)
		},
	})
}

func (m *MockOutboxRepository) GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.OutboxEvent
	for _, e := range m.events {
		if !e.Published {
			out = append(out, e)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MockOutboxRepository) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events {
		if e.ID == id {
			e.Published = true
			e.PublishedAt = &publishedAt
		}
	}
	return nil
}

func (m *MockOutboxRepository) DeletePublished(ctx context.Context, before time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.events[:0]
	for _, e := range m.events {
		if !e.Published || e.PublishedAt == nil || !e.PublishedAt.Before(before) {
			kept = append(kept, e)
		}
	}
	m.events = kept
	return nil
}

// Events returns every committed event.
func (m *MockOutboxRepository) Events() []*domain.OutboxEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.OutboxEvent, len(m.events))
	copy(out, m.events)
	return out
}

// MockTransactionManager is a mock implementation of TransactionManager.
type MockTransactionManager struct {
	BeginFunc func(ctx context.Context) (usecase.Transaction, error)

	begun atomic.Int64
}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func (m *MockTransactionManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	m.begun.Add(1)
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx)
	}
	return &MockTransaction{}, nil
}

// Begun returns how many transactions were started.
func (m *MockTransactionManager) Begun() int64 {
	return m.begun.Load()
}

// MockTransaction is a mock implementation of Transaction.
type MockTransaction struct {
	CommitFunc   func(ctx context.Context) error
	RollbackFunc func(ctx context.Context) error

	mu         sync.Mutex
	ops        []stagedOp
	committed  bool
	rolledBack bool
}

func (m *MockTransaction) stage(op stagedOp) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = append(m.ops, op)
}

func (m *MockTransaction) Commit(ctx context.Context) error {
	if m.CommitFunc != nil {
		if err := m.CommitFunc(ctx); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.committed || m.rolledBack {
		return errors.New("mock: transaction already closed")
	}

	commitMu.Lock()
	defer commitMu.Unlock()
	for _, op := range m.ops {
		if op.check != nil {
			if err := op.check(); err != nil {
				m.ops = nil
				m.rolledBack = true
				return err
			}
		}
	}
	for _, op := range m.ops {
		op.apply()
	}
	m.ops = nil
	m.committed = true
	return nil
}

func (m *MockTransaction) Rollback(ctx context.Context) error {
	if m.RollbackFunc != nil {
		return m.RollbackFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.committed || m.rolledBack {
		return nil
	}
	m.ops = nil
	m.rolledBack = true
	return nil
}

// Committed reports whether Commit succeeded.
func (m *MockTransaction) Committed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.committed
}

// RolledBack reports whether the transaction ended without committing.
func (m *MockTransaction) RolledBack() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rolledBack
}

// MockRetrier re-runs an operation on domain.ErrVersionConflict.
type MockRetrier struct {
	RetryFunc   func(ctx context.Context, operation func() error) error
	MaxAttempts int
}

func (m *MockRetrier) Retry(ctx context.Context, operation func() error) error {
	if m.RetryFunc != nil {
		return m.RetryFunc(ctx, operation)
	}
	attempts := m.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	for range attempts {
		err := operation()
		if !errors.Is(err, domain.ErrVersionConflict) {
			return err
		}
	}
	return domain.ErrBusy
}

// MockLocker is a mock implementation of Locker.
type MockLocker struct {
	AcquireFunc func(ctx context.Context, key string) (func(), error)

	acquired atomic.Int64
	released atomic.Int64
}

func (m *MockLocker) Acquire(ctx context.Context, key string) (func(), error) {
	if m.AcquireFunc != nil {
		release, err := m.AcquireFunc(ctx, key)
		if err != nil {
			return nil, err
		}
		m.acquired.Add(1)
		return func() { m.released.Add(1); release() }, nil
	}
	m.acquired.Add(1)
	return func() { m.released.Add(1) }, nil
}

// Held returns how many acquired locks were not released yet.
func (m *MockLocker) Held() int64 {
	return m.acquired.Load() - m.released.Load()
}

// MockIDGenerator is a mock implementation of IDGenerator.
type MockIDGenerator struct {
	GenerateFunc func() string
	Prefix       string
	counter      atomic.Int64
}

func NewMockIDGenerator() *MockIDGenerator {
	return &MockIDGenerator{Prefix: "mock-id-"}
}

func (m *MockIDGenerator) Generate() string {
	if m.GenerateFunc != nil {
		return m.GenerateFunc()
	}
	return fmt.Sprintf("%s%d", m.Prefix, m.counter.Add(1))
}

// MockIdempotencyStore is a mock implementation of IdempotencyStore.
type MockIdempotencyStore struct {
	mu   sync.RWMutex
	data map[string][]byte

	CheckAndSetFunc func(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	UpdateFunc      func(ctx context.Context, key string, response []byte, ttl time.Duration) error
}

func NewMockIdempotencyStore() *MockIdempotencyStore {
	return &MockIdempotencyStore{
		data: make(map[string][]byte),
	}
}

func (m *MockIdempotencyStore) CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
	if m.CheckAndSetFunc != nil {
		return m.CheckAndSetFunc(ctx, key, response, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.data[key]; ok {
		return true, existing, nil
	}
	if response != nil {
		m.data[key] = response
	} else {
		m.data[key] = []byte("processing")
	}
	return false, nil, nil
}

func (m *MockIdempotencyStore) Update(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, key, response, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = response
	return nil
}

func (m *MockIdempotencyStore) Release(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Get returns the stored value for key.
func (m *MockIdempotencyStore) Get(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
