package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidEvent is returned for an outbox event the system does not emit.
var ErrInvalidEvent = errors.New("invalid outbox event")

// Event types
const (
	EventTypeTransactionRecorded = "transaction.recorded"
	EventTypeAccountOpened       = "account.opened"
)

// Aggregate types
const (
	AggregateTypeAccount = "account"
)

// EventTypes lists every event type written to the outbox.
var EventTypes = []string{EventTypeTransactionRecorded, EventTypeAccountOpened}

// IsKnownEventType reports whether t is one of EventTypes.
func IsKnownEventType(t string) bool {
	for _, known := range EventTypes {
		if t == known {
			return true
		}
	}
	return false
}

// OutboxEvent represents an event to be published
type OutboxEvent struct {
	ID            string
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       map[string]any
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Published     bool
}

// Validate checks that e is an account event of a known type.
func (e *OutboxEvent) Validate() error {
	switch {
	case e.ID == "":
		return fmt.Errorf("%w: id is required", ErrInvalidEvent)
	case e.AggregateID == "":
		return fmt.Errorf("%w: aggregate id is required", ErrInvalidEvent)
	case e.AggregateType != AggregateTypeAccount:
		return fmt.Errorf("%w: aggregate type %q", ErrInvalidEvent, e.AggregateType)
	case !IsKnownEventType(e.EventType):
		return fmt.Errorf("%w: event type %q", ErrInvalidEvent, e.EventType)
	}
	return nil
}

// NewTransactionRecordedEvent builds the outbox event for a committed record.
func NewTransactionRecordedEvent(id string, tx *Transaction, after Balances) *OutboxEvent {
	payload := map[string]any{
		"transaction_id": tx.ID,
		"user_id":        tx.UserID,
		"kind":           string(tx.Kind),
		"amount":         tx.Amount.String(),
		"account_type":   string(tx.AccountType),
		"checking":       after.Checking.String(),
		"savings":        after.Savings.String(),
		"event_at":       tx.CreatedAt.Format(time.RFC3339Nano),
	}
	if tx.FromAccount != nil {
		payload["from_account"] = string(*tx.FromAccount)
	}
	if tx.ToAccount != nil {
		payload["to_account"] = string(*tx.ToAccount)
	}

	return &OutboxEvent{
		ID:            id,
		AggregateID:   tx.UserID,
		AggregateType: AggregateTypeAccount,
		EventType:     EventTypeTransactionRecorded,
		Payload:       payload,
		CreatedAt:     tx.CreatedAt,
	}
}

// NewAccountOpenedEvent builds the outbox event emitted at signup.
func NewAccountOpenedEvent(id string, user *User) *OutboxEvent {
	return &OutboxEvent{
		ID:            id,
		AggregateID:   user.ID,
		AggregateType: AggregateTypeAccount,
		EventType:     EventTypeAccountOpened,
		Payload: map[string]any{
			"user_id":  user.ID,
			"username": user.Username,
		},
		CreatedAt: user.CreatedAt,
	}
}
