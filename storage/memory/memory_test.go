package memory

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rootedhq/stripehook/pkg/webhook"
)

func TestStore_ResolveCustomer(t *testing.T) {
	store := New()
	ctx := context.Background()

	_, err := store.ResolveCustomer(ctx, "cus_missing")
	assert.ErrorIs(t, err, webhook.ErrCustomerNotFound)

	store.AddCustomer("cus_123", "user-1")
	userID, err := store.ResolveCustomer(ctx, "cus_123")
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}

func TestStore_IngestEventIdempotent(t *testing.T) {
	store := New()
	ctx := context.Background()

	ev := &webhook.IngestEvent{
		EventID:     "evt_1",
		EventType:   "invoice.paid",
		CustomerRef: "cus_123",
		Status:      "active",
		PriceRef:    "price_abc",
		UserID:      "user-1",
		Payload:     json.RawMessage(`{"id":"evt_1"}`),
	}

	require.NoError(t, store.IngestEvent(ctx, ev))
	require.NoError(t, store.IngestEvent(ctx, ev))
	require.NoError(t, store.IngestEvent(ctx, ev))

	assert.Equal(t, 1, store.EventCount())

	stored := store.Event("evt_1")
	require.NotNil(t, stored)
	assert.Equal(t, "user-1", stored.UserID)
}

func TestStore_IngestEventInvalid(t *testing.T) {
	store := New()
	ctx := context.Background()

	assert.Error(t, store.IngestEvent(ctx, nil))
	assert.Error(t, store.IngestEvent(ctx, &webhook.IngestEvent{}))
}

func TestStore_EventReturnsCopy(t *testing.T) {
	store := New()
	ctx := context.Background()

	require.NoError(t, store.IngestEvent(ctx, &webhook.IngestEvent{EventID: "evt_1", UserID: "user-1"}))

	got := store.Event("evt_1")
	got.UserID = "mutated"

	assert.Equal(t, "user-1", store.Event("evt_1").UserID)
}
