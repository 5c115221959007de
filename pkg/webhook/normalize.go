package webhook

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v83"
)

// Record is the canonical reduction of a Stripe event. All fields are
// opaque Stripe identifiers except Status, which is either a native
// subscription status or one of the invoice defaults ("active",
// "past_due"). Empty string means absent.
type Record struct {
	CustomerRef     string `json:"stripe_customer_id,omitempty"`
	SubscriptionRef string `json:"stripe_subscription_id,omitempty"`
	PriceRef        string `json:"stripe_price_id,omitempty"`
	Status          string `json:"subscription_status,omitempty"`
}

// Complete reports whether the record carries everything dispatch needs.
// SubscriptionRef is deliberately not required: invoice events for
// one-off or deleted subscriptions legitimately lack it.
func (r Record) Complete() bool {
	return r.CustomerRef != "" && r.PriceRef != "" && r.Status != ""
}

// Statuses assigned when an invoice event arrives without a subscription
// branch having set one first.
const (
	statusActive  = "active"
	statusPastDue = "past_due"
)

// Normalize reduces an allow-listed event to a Record. It is pure: same
// event in, same record out, no I/O. The subscription branch runs first;
// the invoice branch only fills fields the subscription branch left
// absent, so the layered defaulting survives any future overlap between
// the two families.
//
// Only the first subscription item / invoice line is considered. The
// billing model assumes one plan per customer; multi-item subscriptions
// would need a different canonical shape entirely.
func Normalize(event *stripe.Event) (Record, error) {
	var rec Record

	if event == nil || event.Data == nil {
		return rec, fmt.Errorf("normalize: event carries no data object")
	}

	if strings.HasPrefix(string(event.Type), "customer.subscription.") {
		var sub subscriptionPayload
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return rec, fmt.Errorf("normalize: decode subscription: %w", err)
		}

		rec.SubscriptionRef = sub.ID
		rec.CustomerRef = sub.Customer.String()
		rec.Status = sub.Status
		if len(sub.Items.Data) > 0 {
			rec.PriceRef = sub.Items.Data[0].Price.ID
		}
	}

	if event.Type == EventInvoicePaid || event.Type == EventInvoicePaymentFail {
		var inv invoicePayload
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return rec, fmt.Errorf("normalize: decode invoice: %w", err)
		}

		setIfAbsent(&rec.CustomerRef, inv.Customer.String())
		setIfAbsent(&rec.SubscriptionRef, inv.Subscription.String())

		if len(inv.Lines.Data) > 0 {
			setIfAbsent(&rec.PriceRef, linePriceRef(inv.Lines.Data[0]))
		}

		if event.Type == EventInvoicePaid {
			setIfAbsent(&rec.Status, statusActive)
		} else {
			setIfAbsent(&rec.Status, statusPastDue)
		}
	}

	return rec, nil
}

// linePriceExtractors lists every location a price id has lived at on an
// invoice line, newest API shape first. The first non-empty hit wins.
var linePriceExtractors = []func(invoiceLine) string{
	func(l invoiceLine) string {
		if l.Price != nil {
			return l.Price.ID
		}
		return ""
	},
	func(l invoiceLine) string {
		if l.Pricing != nil && l.Pricing.PriceDetails != nil {
			return l.Pricing.PriceDetails.Price
		}
		return ""
	},
	func(l invoiceLine) string {
		return string(l.LegacyPriceID)
	},
}

func linePriceRef(line invoiceLine) string {
	for _, extract := range linePriceExtractors {
		if id := extract(line); id != "" {
			return id
		}
	}
	return ""
}

func setIfAbsent(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}
