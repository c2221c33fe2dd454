package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionKind is the operation a Transaction records.
type TransactionKind string

const (
	TransactionKindDeposit  TransactionKind = "Deposit"
	TransactionKindWithdraw TransactionKind = "Withdraw"
	TransactionKindTransfer TransactionKind = "Transfer"
)

// IsValid reports whether k is a known kind.
func (k TransactionKind) IsValid() bool {
	switch k {
	case TransactionKindDeposit, TransactionKindWithdraw, TransactionKindTransfer:
		return true
	}
	return false
}

var ErrInvalidTransaction = errors.New("invalid transaction record")

// Transaction is an immutable record of a committed balance mutation.
type Transaction struct {
	ID     string
	Seq    int64 // assigned by the store, breaks CreatedAt ties
	UserID string
	Kind   TransactionKind
	Amount decimal.Decimal
	// AccountType is the sub-account touched; for transfers it is the source.
	AccountType AccountType
	FromAccount *AccountType
	ToAccount   *AccountType
	CreatedAt   time.Time
}

// NewDeposit builds the record for a deposit into t.
func NewDeposit(id, userID string, t AccountType, amount decimal.Decimal, at time.Time) *Transaction {
	return &Transaction{
		ID:          id,
		UserID:      userID,
		Kind:        TransactionKindDeposit,
		Amount:      amount,
		AccountType: t,
		CreatedAt:   at,
	}
}

// NewWithdraw builds the record for a withdrawal from t.
func NewWithdraw(id, userID string, t AccountType, amount decimal.Decimal, at time.Time) *Transaction {
	return &Transaction{
		ID:          id,
		UserID:      userID,
		Kind:        TransactionKindWithdraw,
		Amount:      amount,
		AccountType: t,
		CreatedAt:   at,
	}
}

// NewTransfer builds the record for a move from one sub-account to the other.
func NewTransfer(id, userID string, from, to AccountType, amount decimal.Decimal, at time.Time) *Transaction {
	return &Transaction{
		ID:          id,
		UserID:      userID,
		Kind:        TransactionKindTransfer,
		Amount:      amount,
		AccountType: from,
		FromAccount: &from,
		ToAccount:   &to,
		CreatedAt:   at,
	}
}

// Validate checks the record's shape before it is persisted.
func (t *Transaction) Validate() error {
	if t.ID == "" || t.UserID == "" {
		return fmt.Errorf("%w: id and user id are required", ErrInvalidTransaction)
	}
	if !t.Kind.IsValid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidTransaction, t.Kind)
	}
	if !t.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidTransaction)
	}
	if !t.AccountType.IsValid() {
		return fmt.Errorf("%w: unknown account type %q", ErrInvalidTransaction, t.AccountType)
	}

	isTransfer := t.Kind == TransactionKindTransfer
	hasLegs := t.FromAccount != nil && t.ToAccount != nil
	if isTransfer != hasLegs || (!isTransfer && (t.FromAccount != nil || t.ToAccount != nil)) {
		return fmt.Errorf("%w: from/to accounts are set only for transfers", ErrInvalidTransaction)
	}
	if isTransfer {
		if *t.FromAccount == *t.ToAccount {
			return fmt.Errorf("%w: %w", ErrInvalidTransaction, ErrSameAccount)
		}
		if !t.FromAccount.IsValid() || !t.ToAccount.IsValid() {
			return fmt.Errorf("%w: unknown transfer leg", ErrInvalidTransaction)
		}
		if *t.FromAccount != t.AccountType {
			return fmt.Errorf("%w: account type must be the transfer source", ErrInvalidTransaction)
		}
	}
	return nil
}

// ApplyTo replays the record onto b.
func (t *Transaction) ApplyTo(b *Balances) {
	switch t.Kind {
	case TransactionKindDeposit:
		addTo(b, t.AccountType, t.Amount)
	case TransactionKindWithdraw:
		addTo(b, t.AccountType, t.Amount.Neg())
	case TransactionKindTransfer:
		addTo(b, *t.FromAccount, t.Amount.Neg())
		addTo(b, *t.ToAccount, t.Amount)
	}
}

func addTo(b *Balances, at AccountType, delta decimal.Decimal) {
	if at == AccountTypeSavings {
		b.Savings = b.Savings.Add(delta)
		return
	}
	b.Checking = b.Checking.Add(delta)
}
