package dto

import (
	"bytes"
	"encoding/json"

	"github.com/iho/badbank/internal/domain"
	"github.com/iho/badbank/internal/usecase"
)

// Amount is a money amount as sent by clients: either a JSON number or a
// JSON string. Parsing is deferred to domain.ParseAmount so that every
// malformed value surfaces as domain.ErrInvalidAmount.
type Amount string

// UnmarshalJSON accepts 12.5, "12.5" and null.
func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*a = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = Amount(s)
		return nil
	}
	*a = Amount(b)
	return nil
}

// SignupRequest represents a request to register a user.
type SignupRequest struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// ToUseCaseInput converts to use case input.
func (r *SignupRequest) ToUseCaseInput() usecase.SignupInput {
	return usecase.SignupInput{
		Username: r.Username,
		Email:    r.Email,
		Password: r.Password,
	}
}

// LoginRequest represents a login request.
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// ToUseCaseInput converts to use case input.
func (r *LoginRequest) ToUseCaseInput() usecase.LoginInput {
	return usecase.LoginInput{Email: r.Email, Password: r.Password}
}

// DepositRequest represents a deposit into one sub-account.
type DepositRequest struct {
	Amount      Amount `json:"amount"`
	AccountType string `json:"accountType" validate:"required"`
}

// ToUseCaseInput converts to use case input.
func (r *DepositRequest) ToUseCaseInput(userID string) (usecase.DepositInput, error) {
	amount, err := domain.ParseAmount(string(r.Amount))
	if err != nil {
		return usecase.DepositInput{}, err
	}
	return usecase.DepositInput{
		UserID:      userID,
		AccountType: domain.AccountType(r.AccountType),
		Amount:      amount,
	}, nil
}

// WithdrawRequest represents a withdrawal from one sub-account.
type WithdrawRequest struct {
	Amount      Amount `json:"amount"`
	AccountType string `json:"accountType" validate:"required"`
}

// ToUseCaseInput converts to use case input.
func (r *WithdrawRequest) ToUseCaseInput(userID string) (usecase.WithdrawInput, error) {
	amount, err := domain.ParseAmount(string(r.Amount))
	if err != nil {
		return usecase.WithdrawInput{}, err
	}
	return usecase.WithdrawInput{
		UserID:      userID,
		AccountType: domain.AccountType(r.AccountType),
		Amount:      amount,
	}, nil
}

// TransferRequest represents a move between the caller's sub-accounts.
type TransferRequest struct {
	Amount      Amount `json:"amount"`
	FromAccount string `json:"fromAccount" validate:"required"`
	ToAccount   string `json:"toAccount" validate:"required"`
}

// ToUseCaseInput converts to use case input. A transfer onto the same
// sub-account is rejected before the amount is looked at.
func (r *TransferRequest) ToUseCaseInput(userID string) (usecase.TransferInput, error) {
	if r.FromAccount == r.ToAccount {
		return usecase.TransferInput{}, domain.ErrSameAccount
	}
	amount, err := domain.ParseAmount(string(r.Amount))
	if err != nil {
		return usecase.TransferInput{}, err
	}
	return usecase.TransferInput{
		UserID:      userID,
		FromAccount: domain.AccountType(r.FromAccount),
		ToAccount:   domain.AccountType(r.ToAccount),
		Amount:      amount,
	}, nil
}
