package webhook

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v83"
)

func rawEvent(t *testing.T, eventType string, raw string) *stripe.Event {
	t.Helper()
	return &stripe.Event{
		ID:   "evt_test",
		Type: stripe.EventType(eventType),
		Data: &stripe.EventData{Raw: json.RawMessage(raw)},
	}
}

func TestNormalize_SubscriptionUpdated(t *testing.T) {
	event := rawEvent(t, "customer.subscription.updated", `{
		"id": "sub_42",
		"customer": "cus_123",
		"status": "active",
		"items": {"data": [{"price": {"id": "price_abc"}}]}
	}`)

	rec, err := Normalize(event)
	require.NoError(t, err)

	assert.Equal(t, Record{
		CustomerRef:     "cus_123",
		SubscriptionRef: "sub_42",
		PriceRef:        "price_abc",
		Status:          "active",
	}, rec)
	assert.True(t, rec.Complete())
}

func TestNormalize_SubscriptionCustomerExpanded(t *testing.T) {
	event := rawEvent(t, "customer.subscription.deleted", `{
		"id": "sub_42",
		"customer": {"id": "cus_123", "email": "x@example.com"},
		"status": "canceled",
		"items": {"data": [{"price": {"id": "price_abc"}}]}
	}`)

	rec, err := Normalize(event)
	require.NoError(t, err)

	assert.Equal(t, "cus_123", rec.CustomerRef)
	assert.Equal(t, "canceled", rec.Status)
}

func TestNormalize_SubscriptionFirstItemWins(t *testing.T) {
	event := rawEvent(t, "customer.subscription.created", `{
		"id": "sub_42",
		"customer": "cus_123",
		"status": "trialing",
		"items": {"data": [
			{"price": {"id": "price_first"}},
			{"price": {"id": "price_second"}}
		]}
	}`)

	rec, err := Normalize(event)
	require.NoError(t, err)
	assert.Equal(t, "price_first", rec.PriceRef)
}

func TestNormalize_SubscriptionNoItems(t *testing.T) {
	event := rawEvent(t, "customer.subscription.updated", `{
		"id": "sub_42",
		"customer": "cus_123",
		"status": "active",
		"items": {"data": []}
	}`)

	rec, err := Normalize(event)
	require.NoError(t, err)
	assert.Empty(t, rec.PriceRef)
	assert.False(t, rec.Complete())
}

func TestNormalize_InvoicePaid_LegacyPriceID(t *testing.T) {
	// No subscription field, legacy flat price_id only: still eligible
	// for dispatch because the subscription ref is optional.
	event := rawEvent(t, "invoice.paid", `{
		"customer": "cus_123",
		"lines": {"data": [{"price_id": "price_legacy"}]}
	}`)

	rec, err := Normalize(event)
	require.NoError(t, err)

	assert.Equal(t, Record{
		CustomerRef: "cus_123",
		PriceRef:    "price_legacy",
		Status:      "active",
	}, rec)
	assert.Empty(t, rec.SubscriptionRef)
	assert.True(t, rec.Complete())
}

func TestNormalize_InvoicePaymentFailed(t *testing.T) {
	event := rawEvent(t, "invoice.payment_failed", `{
		"customer": {"id": "cus_123"},
		"subscription": {"id": "sub_42"},
		"lines": {"data": [{"price": {"id": "price_abc"}}]}
	}`)

	rec, err := Normalize(event)
	require.NoError(t, err)

	assert.Equal(t, "past_due", rec.Status)
	assert.Equal(t, "sub_42", rec.SubscriptionRef)
	assert.Equal(t, "cus_123", rec.CustomerRef)
}

func TestNormalize_InvoicePriceFallbackOrder(t *testing.T) {
	tests := []struct {
		name string
		line string
		want string
	}{
		{
			name: "price object wins over everything",
			line: `{"price": {"id": "price_new"}, "pricing": {"price_details": {"price": "price_mid"}}, "price_id": "price_old"}`,
			want: "price_new",
		},
		{
			name: "pricing details wins over legacy",
			line: `{"pricing": {"price_details": {"price": "price_mid"}}, "price_id": "price_old"}`,
			want: "price_mid",
		},
		{
			name: "legacy flat field as last resort",
			line: `{"price_id": "price_old"}`,
			want: "price_old",
		},
		{
			name: "non-string legacy value is ignored",
			line: `{"price_id": 123}`,
			want: "",
		},
		{
			name: "no price anywhere",
			line: `{"amount": 999}`,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var line invoiceLine
			require.NoError(t, json.Unmarshal([]byte(tt.line), &line))
			assert.Equal(t, tt.want, linePriceRef(line))
		})
	}
}

func TestNormalize_Deterministic(t *testing.T) {
	event := rawEvent(t, "invoice.paid", `{
		"customer": "cus_123",
		"subscription": "sub_42",
		"lines": {"data": [{"pricing": {"price_details": {"price": "price_abc"}}}]}
	}`)

	first, err := Normalize(event)
	require.NoError(t, err)
	second, err := Normalize(event)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestNormalize_MalformedPayload(t *testing.T) {
	event := rawEvent(t, "customer.subscription.updated", `{"items": "not-an-object"}`)

	_, err := Normalize(event)
	assert.Error(t, err)
}

func TestRecord_Complete(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
		want bool
	}{
		{"all fields", Record{CustomerRef: "c", SubscriptionRef: "s", PriceRef: "p", Status: "active"}, true},
		{"subscription ref optional", Record{CustomerRef: "c", PriceRef: "p", Status: "active"}, true},
		{"missing customer", Record{PriceRef: "p", Status: "active"}, false},
		{"missing price", Record{CustomerRef: "c", Status: "active"}, false},
		{"missing status", Record{CustomerRef: "c", PriceRef: "p"}, false},
		{"empty", Record{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rec.Complete())
		})
	}
}
