package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestTransaction_Validate(t *testing.T) {
	now := time.Now().UTC()
	checking := AccountTypeChecking
	savings := AccountTypeSavings

	tests := []struct {
		name    string
		tx      *Transaction
		wantErr bool
	}{
		{
			name: "deposit",
			tx:   NewDeposit("tx-1", "user-1", AccountTypeChecking, decimal.NewFromInt(10), now),
		},
		{
			name: "withdraw",
			tx:   NewWithdraw("tx-2", "user-1", AccountTypeSavings, decimal.NewFromInt(10), now),
		},
		{
			name: "transfer",
			tx:   NewTransfer("tx-3", "user-1", AccountTypeChecking, AccountTypeSavings, decimal.NewFromInt(10), now),
		},
		{
			name:    "missing id",
			tx:      NewDeposit("", "user-1", AccountTypeChecking, decimal.NewFromInt(10), now),
			wantErr: true,
		},
		{
			name:    "zero amount",
			tx:      NewDeposit("tx-4", "user-1", AccountTypeChecking, decimal.Zero, now),
			wantErr: true,
		},
		{
			name: "deposit with transfer legs",
			tx: &Transaction{
				ID: "tx-5", UserID: "user-1", Kind: TransactionKindDeposit,
				Amount: decimal.NewFromInt(1), AccountType: checking,
				FromAccount: &checking, ToAccount: &savings,
			},
			wantErr: true,
		},
		{
			name: "transfer without legs",
			tx: &Transaction{
				ID: "tx-6", UserID: "user-1", Kind: TransactionKindTransfer,
				Amount: decimal.NewFromInt(1), AccountType: checking,
			},
			wantErr: true,
		},
		{
			name:    "transfer to same account",
			tx:      NewTransfer("tx-7", "user-1", AccountTypeSavings, AccountTypeSavings, decimal.NewFromInt(1), now),
			wantErr: true,
		},
		{
			name: "unknown kind",
			tx: &Transaction{
				ID: "tx-8", UserID: "user-1", Kind: "Interest",
				Amount: decimal.NewFromInt(1), AccountType: checking,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.tx.Validate()
			if tt.wantErr && !errors.Is(err, ErrInvalidTransaction) {
				t.Fatalf("expected ErrInvalidTransaction, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestTransaction_ApplyTo(t *testing.T) {
	now := time.Now().UTC()
	log := []*Transaction{
		NewDeposit("1", "u", AccountTypeChecking, decimal.NewFromInt(100), now),
		NewTransfer("2", "u", AccountTypeChecking, AccountTypeSavings, decimal.NewFromInt(40), now),
		NewWithdraw("3", "u", AccountTypeSavings, decimal.NewFromInt(15), now),
	}

	var b Balances
	for _, tx := range log {
		tx.ApplyTo(&b)
	}

	if !b.Checking.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("expected checking 60, got %s", b.Checking)
	}
	if !b.Savings.Equal(decimal.NewFromInt(25)) {
		t.Fatalf("expected savings 25, got %s", b.Savings)
	}
}

func TestNewTransactionRecordedEvent(t *testing.T) {
	tx := NewTransfer("tx-1", "user-1", AccountTypeChecking, AccountTypeSavings, decimal.NewFromInt(5), time.Now())
	ev := NewTransactionRecordedEvent("ev-1", tx, Balances{Checking: decimal.NewFromInt(1), Savings: decimal.NewFromInt(5)})

	if ev.EventType != EventTypeTransactionRecorded || ev.AggregateID != "user-1" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.Payload["from_account"] != "checking" || ev.Payload["to_account"] != "savings" {
		t.Fatalf("transfer legs missing from payload: %v", ev.Payload)
	}
	if ev.Payload["amount"] != "5" {
		t.Fatalf("unexpected amount %v", ev.Payload["amount"])
	}
}

func TestOutboxEvent_Validate(t *testing.T) {
	user := &User{ID: "user-1", Username: "alice", CreatedAt: time.Now()}
	if err := NewAccountOpenedEvent("ev-1", user).Validate(); err != nil {
		t.Fatalf("account opened event must be valid: %v", err)
	}

	invalid := []*OutboxEvent{
		{AggregateID: "user-1", AggregateType: AggregateTypeAccount, EventType: EventTypeAccountOpened},
		{ID: "ev-1", AggregateType: AggregateTypeAccount, EventType: EventTypeAccountOpened},
		{ID: "ev-1", AggregateID: "user-1", AggregateType: "hold", EventType: EventTypeAccountOpened},
		{ID: "ev-1", AggregateID: "user-1", AggregateType: AggregateTypeAccount, EventType: "transfer.created"},
	}
	for _, ev := range invalid {
		if err := ev.Validate(); !errors.Is(err, ErrInvalidEvent) {
			t.Fatalf("expected ErrInvalidEvent for %+v, got %v", ev, err)
		}
	}

	if IsKnownEventType("ledger.entry") {
		t.Fatal("ledger.entry must not be a known event type")
	}
}
