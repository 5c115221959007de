package webhook

import (
	"context"
	"encoding/json"
	"fmt"
)

// CustomerResolver maps a Stripe customer id to an internal user id using
// the billing-customer mapping. Implementations return
// ErrCustomerNotFound when no mapping exists; any other error is treated
// as an infrastructure failure and surfaced as a 500 so Stripe retries.
type CustomerResolver interface {
	ResolveCustomer(ctx context.Context, stripeCustomerID string) (userID string, err error)
}

// Ingestor hands a fully-formed event to the downstream ingest procedure.
// The procedure is idempotent on EventID: submitting the same event more
// than once must not duplicate effects. This service never enforces that
// itself; it only guarantees it forwards the provider-assigned EventID
// unmodified.
type Ingestor interface {
	IngestEvent(ctx context.Context, ev *IngestEvent) error
}

// IngestEvent is the payload handed to the downstream ingest procedure.
type IngestEvent struct {
	EventID         string          `json:"event_id"`
	EventType       string          `json:"event_type"`
	CustomerRef     string          `json:"stripe_customer_id"`
	Status          string          `json:"subscription_status"`
	PriceRef        string          `json:"stripe_price_id"`
	UserID          string          `json:"user_id"`
	SubscriptionRef string          `json:"stripe_subscription_id,omitempty"`
	Payload         json.RawMessage `json:"payload"`
}

// canonicalSnapshot round-trips the raw webhook body through the JSON
// object model. The result is a clean serializable copy of the event for
// audit/replay storage, independent of whatever the SDK layered on top of
// the parsed envelope.
func canonicalSnapshot(body []byte) (json.RawMessage, error) {
	var v interface{}
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, fmt.Errorf("snapshot event payload: %w", err)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("snapshot event payload: %w", err)
	}
	return out, nil
}
