package webhook

import (
	"encoding/json"

	"github.com/stripe/stripe-go/v83"
)

// Subscription lifecycle event types this service acts on. Stripe sends
// many more; everything outside this set is acknowledged and dropped so
// Stripe does not keep retrying events we will never process.
const (
	EventSubscriptionCreated stripe.EventType = "customer.subscription.created"
	EventSubscriptionUpdated stripe.EventType = "customer.subscription.updated"
	EventSubscriptionDeleted stripe.EventType = "customer.subscription.deleted"
	EventInvoicePaid         stripe.EventType = "invoice.paid"
	EventInvoicePaymentFail  stripe.EventType = "invoice.payment_failed"
)

var allowedEvents = map[stripe.EventType]struct{}{
	EventSubscriptionCreated: {},
	EventSubscriptionUpdated: {},
	EventSubscriptionDeleted: {},
	EventInvoicePaid:         {},
	EventInvoicePaymentFail:  {},
}

// EventInScope reports whether the event type is on the processing
// allow-list.
func EventInScope(t stripe.EventType) bool {
	_, ok := allowedEvents[t]
	return ok
}

// Ref is an expandable Stripe reference. Depending on the API version and
// expand parameters the same field arrives either as a bare id string
// ("cus_123") or as an expanded object carrying an "id" field. Either way
// Ref resolves to the id; anything else resolves to empty.
type Ref string

// UnmarshalJSON implements json.Unmarshaler. It never fails: an
// unrecognized shape yields an empty reference, which the completeness
// gate downstream treats as absent.
func (r *Ref) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*r = Ref(s)
		return nil
	}

	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		*r = Ref(obj.ID)
		return nil
	}

	*r = ""
	return nil
}

func (r Ref) String() string { return string(r) }

// subscriptionPayload is the subset of a Stripe subscription object the
// normalizer reads. It decodes event.Data.Raw for all
// customer.subscription.* events.
type subscriptionPayload struct {
	ID       string `json:"id"`
	Customer Ref    `json:"customer"`
	Status   string `json:"status"`
	Items    struct {
		Data []subscriptionItem `json:"data"`
	} `json:"items"`
}

type subscriptionItem struct {
	Price struct {
		ID string `json:"id"`
	} `json:"price"`
}

// invoicePayload is the subset of a Stripe invoice object the normalizer
// reads, for invoice.paid and invoice.payment_failed events.
type invoicePayload struct {
	Customer     Ref `json:"customer"`
	Subscription Ref `json:"subscription"`
	Lines        struct {
		Data []invoiceLine `json:"data"`
	} `json:"lines"`
}

// invoiceLine carries every location a price id has historically lived at
// on an invoice line. Which one is populated depends on the Stripe API
// version that produced the event.
type invoiceLine struct {
	Price *struct {
		ID string `json:"id"`
	} `json:"price"`
	Pricing *struct {
		PriceDetails *struct {
			Price string `json:"price"`
		} `json:"price_details"`
	} `json:"pricing"`
	LegacyPriceID looseString `json:"price_id"`
}

// looseString decodes a JSON string and maps any other type to empty.
// Legacy flat fields occasionally carry non-string values in old payloads.
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		*s = ""
		return nil
	}
	*s = looseString(v)
	return nil
}
