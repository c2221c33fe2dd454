package dto

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/badbank/internal/domain"
	"github.com/iho/badbank/internal/usecase"
)

func TestBalancesFromDomain(t *testing.T) {
	resp := BalancesFromDomain(&domain.Balances{
		Checking: decimal.RequireFromString("10.5"),
		Savings:  decimal.Zero,
	})

	body, err := json.Marshal(BalanceResponse{Balances: resp})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(body) != `{"balances":{"checking":"10.5","savings":"0"}}` {
		t.Fatalf("unexpected body %s", body)
	}
}

func TestTransactionFromDomain(t *testing.T) {
	now := time.Now()

	deposit := domain.NewDeposit("tx-1", "u1", domain.AccountTypeSavings, decimal.NewFromInt(3), now)
	resp := TransactionFromDomain(deposit)
	if resp.Type != "Deposit" || resp.AccountType != "savings" || resp.FromAccount != "" || resp.ToAccount != "" {
		t.Fatalf("unexpected deposit response %+v", resp)
	}

	transfer := domain.NewTransfer("tx-2", "u1", domain.AccountTypeChecking, domain.AccountTypeSavings, decimal.NewFromInt(1), now)
	list := TransactionsFromDomain([]*domain.Transaction{deposit, transfer})
	if len(list) != 2 || list[1].FromAccount != "checking" || list[1].ToAccount != "savings" {
		t.Fatalf("unexpected list %+v", list)
	}

	body, err := json.Marshal(list[0])
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := fields["fromAccount"]; ok {
		t.Fatalf("deposit must omit fromAccount: %s", body)
	}
}

func TestConsistencyFromUseCase(t *testing.T) {
	result := &usecase.ConsistencyResult{
		UserID:           "u1",
		Recorded:         domain.Balances{Checking: decimal.NewFromInt(12)},
		Derived:          domain.Balances{Checking: decimal.NewFromInt(10)},
		CheckingDiff:     decimal.NewFromInt(2),
		TransactionCount: 1,
	}

	resp := ConsistencyFromUseCase(result)
	if resp.Consistent || !resp.CheckingDiff.Equal(decimal.NewFromInt(2)) || resp.TransactionCount != 1 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestUserFromDomain(t *testing.T) {
	resp := UserFromDomain(&domain.User{ID: "u1", Username: "alice", Email: "a@b.co", PasswordHash: "secret"})
	body, _ := json.Marshal(resp)
	if string(body) == "" || resp.UserID != "u1" {
		t.Fatalf("unexpected response %+v", resp)
	}
}
