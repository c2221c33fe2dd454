package postgres

import (
	"context"
	"time"

	"github.com/iho/badbank/internal/domain"
	"github.com/iho/badbank/internal/usecase"
)

// NullOutboxRepository is wired in when event publishing is disabled.
// Events are still validated, then dropped, so a malformed event fails the
// same way with publishing on or off.
type NullOutboxRepository struct{}

// NewNullOutboxRepository creates a new NullOutboxRepository.
func NewNullOutboxRepository() *NullOutboxRepository {
	return &NullOutboxRepository{}
}

func (NullOutboxRepository) Create(_ context.Context, _ usecase.Transaction, event *domain.OutboxEvent) error {
	return event.Validate()
}

func (NullOutboxRepository) GetUnpublished(context.Context, int) ([]*domain.OutboxEvent, error) {
	return nil, nil
}

// PendingByType reports an empty backlog for every known type.
func (NullOutboxRepository) PendingByType(context.Context) (map[string]int64, error) {
	pending := make(map[string]int64, len(domain.EventTypes))
	for _, t := range domain.EventTypes {
		pending[t] = 0
	}
	return pending, nil
}

func (NullOutboxRepository) MarkPublished(context.Context, string, time.Time) error {
	return nil
}

func (NullOutboxRepository) DeletePublished(context.Context, time.Time) error {
	return nil
}
