package webhook

import "errors"

var (
	// ErrCustomerNotFound is returned by a CustomerResolver when no
	// billing-customer mapping exists for the Stripe customer id. This is
	// an expected steady-state case (test events, customers not yet
	// provisioned) and is acknowledged, not retried.
	ErrCustomerNotFound = errors.New("billing customer mapping not found")

	// ErrNotConfigured is returned when a handler is constructed without
	// its required collaborators.
	ErrNotConfigured = errors.New("webhook handler not configured")
)
