package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/badbank/internal/domain"
	"github.com/iho/badbank/internal/usecase"
)

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// NotFoundResponse is returned for unknown routes.
type NotFoundResponse struct {
	Message   string    `json:"message"`
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
}

// BalancesResponse represents both sub-account balances.
type BalancesResponse struct {
	Checking decimal.Decimal `json:"checking"`
	Savings  decimal.Decimal `json:"savings"`
}

// BalancesFromDomain converts domain balances to response.
func BalancesFromDomain(b *domain.Balances) BalancesResponse {
	return BalancesResponse{
		Checking: b.Checking.Round(domain.MaxAmountScale),
		Savings:  b.Savings.Round(domain.MaxAmountScale),
	}
}

// BalanceResponse wraps the balances returned by GET /balance.
type BalanceResponse struct {
	Balances BalancesResponse `json:"balances"`
}

// OperationResponse is returned by deposit, withdraw and transfer.
type OperationResponse struct {
	Message  string           `json:"message"`
	Balances BalancesResponse `json:"balances"`
}

// NewOperationResponse builds an OperationResponse.
func NewOperationResponse(message string, b *domain.Balances) OperationResponse {
	return OperationResponse{Message: message, Balances: BalancesFromDomain(b)}
}

// TransactionResponse represents a log record in API responses.
type TransactionResponse struct {
	ID          string          `json:"id"`
	UserID      string          `json:"userId"`
	Type        string          `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	AccountType string          `json:"accountType"`
	FromAccount string          `json:"fromAccount,omitempty"`
	ToAccount   string          `json:"toAccount,omitempty"`
	Date        time.Time       `json:"date"`
}

// TransactionFromDomain converts a domain record to response.
func TransactionFromDomain(t *domain.Transaction) *TransactionResponse {
	resp := &TransactionResponse{
		ID:          t.ID,
		UserID:      t.UserID,
		Type:        string(t.Kind),
		Amount:      t.Amount,
		AccountType: t.AccountType.String(),
		Date:        t.CreatedAt,
	}
	if t.FromAccount != nil {
		resp.FromAccount = t.FromAccount.String()
	}
	if t.ToAccount != nil {
		resp.ToAccount = t.ToAccount.String()
	}
	return resp
}

// TransactionsFromDomain converts domain records to responses.
func TransactionsFromDomain(records []*domain.Transaction) []*TransactionResponse {
	result := make([]*TransactionResponse, len(records))
	for i, t := range records {
		result[i] = TransactionFromDomain(t)
	}
	return result
}

// SignupResponse is returned after a successful signup.
type SignupResponse struct {
	Message string `json:"message"`
	UserID  string `json:"user_id"`
}

// LoginResponse carries the session token.
type LoginResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	UserID   string `json:"user_id"`
}

// UserResponse represents the authenticated user.
type UserResponse struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// UserFromDomain converts a domain user to response.
func UserFromDomain(u *domain.User) *UserResponse {
	return &UserResponse{
		UserID:    u.ID,
		Username:  u.Username,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
}

// ConsistencyResponse represents the result of a ledger consistency check.
type ConsistencyResponse struct {
	UserID           string           `json:"user_id"`
	Consistent       bool             `json:"consistent"`
	Recorded         BalancesResponse `json:"recorded"`
	Derived          BalancesResponse `json:"derived"`
	CheckingDiff     decimal.Decimal  `json:"checking_diff"`
	SavingsDiff      decimal.Decimal  `json:"savings_diff"`
	TransactionCount int64            `json:"transaction_count"`
	CheckedAt        time.Time        `json:"checked_at"`
}

// ConsistencyFromUseCase converts a consistency result to response.
func ConsistencyFromUseCase(r *usecase.ConsistencyResult) *ConsistencyResponse {
	return &ConsistencyResponse{
		UserID:           r.UserID,
		Consistent:       r.Consistent,
		Recorded:         BalancesFromDomain(&r.Recorded),
		Derived:          BalancesFromDomain(&r.Derived),
		CheckingDiff:     r.CheckingDiff,
		SavingsDiff:      r.SavingsDiff,
		TransactionCount: r.TransactionCount,
		CheckedAt:        r.CheckedAt,
	}
}

// HealthResponse represents the health endpoints' payload.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}
