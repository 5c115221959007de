// Package firestore provides a Firestore implementation of the
// webhook.CustomerResolver interface, for deployments that keep the
// billing-customer mapping in Google Cloud Firestore instead of
// PostgreSQL. Documents are keyed by the Stripe customer id.
package firestore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rootedhq/stripehook/pkg/webhook"
)

// Resolver implements webhook.CustomerResolver using Google Cloud Firestore.
type Resolver struct {
	client     *firestore.Client
	collection string
}

// Config holds Firestore resolver configuration.
type Config struct {
	// Collection is the Firestore collection holding the mapping.
	// Default: "billing_customers".
	Collection string
}

// New creates a new Firestore resolver.
func New(client *firestore.Client, config Config) (*Resolver, error) {
	if client == nil {
		return nil, fmt.Errorf("firestore client is required")
	}

	if config.Collection == "" {
		config.Collection = "billing_customers"
	}

	return &Resolver{client: client, collection: config.Collection}, nil
}

type customerDoc struct {
	UserID string `firestore:"user_id"`
}

// ResolveCustomer implements webhook.CustomerResolver.
func (r *Resolver) ResolveCustomer(ctx context.Context, stripeCustomerID string) (string, error) {
	snap, err := r.client.Collection(r.collection).Doc(stripeCustomerID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return "", webhook.ErrCustomerNotFound
		}
		return "", fmt.Errorf("failed to look up billing customer: %w", err)
	}

	var doc customerDoc
	if err := snap.DataTo(&doc); err != nil {
		return "", fmt.Errorf("failed to decode billing customer: %w", err)
	}
	if doc.UserID == "" {
		return "", webhook.ErrCustomerNotFound
	}

	return doc.UserID, nil
}
