package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// AccountType names one of the two sub-accounts every user holds.
type AccountType string

const (
	AccountTypeChecking AccountType = "checking"
	AccountTypeSavings  AccountType = "savings"
)

// ParseAccountType converts raw input into an AccountType.
func ParseAccountType(s string) (AccountType, error) {
	switch t := AccountType(s); t {
	case AccountTypeChecking, AccountTypeSavings:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidAccountType, s)
	}
}

// IsValid reports whether t is a known sub-account.
func (t AccountType) IsValid() bool {
	return t == AccountTypeChecking || t == AccountTypeSavings
}

func (t AccountType) String() string {
	return string(t)
}

// MaxBalance is the largest balance the NUMERIC(20,2) columns can store.
const MaxBalance = "999999999999999999.99"

var maxBalance = decimal.RequireFromString(MaxBalance)

// Balances is a snapshot of both sub-account balances.
type Balances struct {
	Checking decimal.Decimal
	Savings  decimal.Decimal
}

// Account holds a user's two balances. Both are never negative.
type Account struct {
	UserID    string
	Checking  decimal.Decimal
	Savings   decimal.Decimal
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewAccount returns a zero-balance account for userID.
func NewAccount(userID string, now time.Time) *Account {
	return &Account{
		UserID:    userID,
		Checking:  decimal.Zero,
		Savings:   decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Balance returns the balance of the given sub-account.
func (a *Account) Balance(t AccountType) decimal.Decimal {
	if t == AccountTypeSavings {
		return a.Savings
	}
	return a.Checking
}

// Balances returns a snapshot of the account balances.
func (a *Account) Balances() Balances {
	return Balances{Checking: a.Checking, Savings: a.Savings}
}

func (a *Account) setBalance(t AccountType, v decimal.Decimal) {
	if t == AccountTypeSavings {
		a.Savings = v
		return
	}
	a.Checking = v
}

// ValidateDebit checks that amount can be taken from sub-account t.
func (a *Account) ValidateDebit(t AccountType, amount decimal.Decimal) error {
	if !t.IsValid() {
		return ErrInvalidAccountType
	}
	if a.Balance(t).LessThan(amount) {
		return fmt.Errorf("%w: %s balance is %s, requested %s",
			ErrInsufficientFunds, t, a.Balance(t).StringFixed(2), amount.String())
	}
	return nil
}

// ValidateCredit checks that sub-account t can take amount without
// exceeding MaxBalance.
func (a *Account) ValidateCredit(t AccountType, amount decimal.Decimal) error {
	if !t.IsValid() {
		return ErrInvalidAccountType
	}
	if a.Balance(t).Add(amount).GreaterThan(maxBalance) {
		return fmt.Errorf("%w: %s balance would exceed %s", ErrInvalidAmount, t, MaxBalance)
	}
	return nil
}

// ApplyCredit adds amount to sub-account t.
func (a *Account) ApplyCredit(t AccountType, amount decimal.Decimal) error {
	if err := a.ValidateCredit(t, amount); err != nil {
		return err
	}
	a.setBalance(t, a.Balance(t).Add(amount))
	return nil
}

// ApplyDebit removes amount from sub-account t.
func (a *Account) ApplyDebit(t AccountType, amount decimal.Decimal) error {
	if err := a.ValidateDebit(t, amount); err != nil {
		return err
	}
	a.setBalance(t, a.Balance(t).Sub(amount))
	return nil
}

// ApplyTransfer moves amount between two different sub-accounts.
// Either both legs apply or neither does.
func (a *Account) ApplyTransfer(from, to AccountType, amount decimal.Decimal) error {
	if from == to {
		return ErrSameAccount
	}
	if err := a.ValidateCredit(to, amount); err != nil {
		return err
	}
	if err := a.ApplyDebit(from, amount); err != nil {
		return err
	}
	a.setBalance(to, a.Balance(to).Add(amount))
	return nil
}
