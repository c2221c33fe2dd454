package handler

import (
	"context"
	"net/http"

	"github.com/iho/badbank/internal/adapter/http/dto"
	"github.com/iho/badbank/internal/adapter/http/middleware"
	"github.com/iho/badbank/internal/domain"
	"github.com/iho/badbank/internal/usecase"
)

// BalanceService is the balance engine as seen by the HTTP layer.
type BalanceService interface {
	Deposit(ctx context.Context, input usecase.DepositInput) (*domain.Balances, error)
	Withdraw(ctx context.Context, input usecase.WithdrawInput) (*domain.Balances, error)
	Transfer(ctx context.Context, input usecase.TransferInput) (*domain.Balances, error)
	GetBalances(ctx context.Context, userID string) (*domain.Balances, error)
	ListTransactions(ctx context.Context, input usecase.ListTransactionsInput) ([]*domain.Transaction, error)
}

// BalanceHandler handles balance-related HTTP requests for the caller.
type BalanceHandler struct {
	balances BalanceService
}

// NewBalanceHandler creates a new BalanceHandler.
func NewBalanceHandler(balances BalanceService) *BalanceHandler {
	return &BalanceHandler{balances: balances}
}

// Balance returns the caller's balances.
func (h *BalanceHandler) Balance(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	balances, err := h.balances.GetBalances(r.Context(), userID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.BalanceResponse{Balances: dto.BalancesFromDomain(balances)})
}

// Deposit credits one of the caller's sub-accounts.
func (h *BalanceHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req dto.DepositRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	input, err := req.ToUseCaseInput(userID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	balances, err := h.balances.Deposit(r.Context(), input)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.NewOperationResponse("Deposit successful", balances))
}

// Withdraw debits one of the caller's sub-accounts.
func (h *BalanceHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req dto.WithdrawRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	input, err := req.ToUseCaseInput(userID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	balances, err := h.balances.Withdraw(r.Context(), input)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.NewOperationResponse("Withdrawal successful", balances))
}

// Transfer moves money between the caller's sub-accounts.
func (h *BalanceHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req dto.TransferRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	input, err := req.ToUseCaseInput(userID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	balances, err := h.balances.Transfer(r.Context(), input)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.NewOperationResponse("Transfer successful", balances))
}

// Transactions lists the caller's log, newest first. Without a limit
// parameter every record is returned.
func (h *BalanceHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	records, err := h.balances.ListTransactions(r.Context(), usecase.ListTransactionsInput{
		UserID: userID,
		Limit:  parseIntQuery(r, "limit", 0),
		Offset: parseIntQuery(r, "offset", 0),
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.TransactionsFromDomain(records))
}

// callerID returns the authenticated user ID or writes a 401.
func callerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok || p.UserID == "" {
		respondError(w, r, domain.ErrUnauthorized)
		return "", false
	}
	return p.UserID, true
}
