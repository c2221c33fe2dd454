package handler

import (
	"context"
	"net/http"

	"github.com/iho/badbank/internal/adapter/http/dto"
	"github.com/iho/badbank/internal/usecase"
)

// ConsistencyChecker compares stored balances with the replayed log.
type ConsistencyChecker interface {
	CheckAccount(ctx context.Context, userID string) (*usecase.ConsistencyResult, error)
}

// LedgerHandler handles ledger-wide operations.
type LedgerHandler struct {
	checker ConsistencyChecker
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(checker ConsistencyChecker) *LedgerHandler {
	return &LedgerHandler{checker: checker}
}

// CheckConsistency checks the caller's balances against their log.
// An inconsistent account is answered with 409.
func (h *LedgerHandler) CheckConsistency(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	result, err := h.checker.CheckAccount(r.Context(), userID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	status := http.StatusOK
	if !result.Consistent {
		status = http.StatusConflict
	}
	writeJSON(w, status, dto.ConsistencyFromUseCase(result))
}
