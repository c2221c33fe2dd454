package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iho/badbank/internal/domain"
)

func TestStreamPublisher_Publish(t *testing.T) {
	_, client := newRedis(t)

	pub := NewStreamPublisher(client, "badbank:events", 0)
	ctx := context.Background()

	err := pub.Publish(ctx, &domain.OutboxEvent{
		ID:            "evt-1",
		AggregateID:   "u1",
		AggregateType: domain.AggregateTypeAccount,
		EventType:     domain.EventTypeTransactionRecorded,
		Payload:       map[string]any{"amount": "12.5"},
		CreatedAt:     time.Now(),
	})
	require.NoError(t, err)

	entries, err := client.XRange(ctx, "badbank:events", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "evt-1", entries[0].Values["event_id"])
	require.Equal(t, domain.EventTypeTransactionRecorded, entries[0].Values["event_type"])
	require.JSONEq(t, `{"amount":"12.5"}`, entries[0].Values["payload"].(string))
}
