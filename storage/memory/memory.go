// Package memory provides in-memory implementations of the
// webhook.CustomerResolver and webhook.Ingestor interfaces. It is
// primarily intended for testing and development, and implements the
// same idempotency contract the production ingest procedure carries:
// redelivery of an event id never duplicates effects.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/rootedhq/stripehook/pkg/webhook"
)

// Store implements webhook.CustomerResolver and webhook.Ingestor using
// in-memory maps.
type Store struct {
	mu        sync.RWMutex
	customers map[string]string
	events    map[string]*webhook.IngestEvent
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		customers: make(map[string]string),
		events:    make(map[string]*webhook.IngestEvent),
	}
}

// AddCustomer registers a billing-customer mapping.
func (s *Store) AddCustomer(stripeCustomerID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers[stripeCustomerID] = userID
}

// ResolveCustomer implements webhook.CustomerResolver.
func (s *Store) ResolveCustomer(_ context.Context, stripeCustomerID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userID, ok := s.customers[stripeCustomerID]
	if !ok {
		return "", webhook.ErrCustomerNotFound
	}
	return userID, nil
}

// IngestEvent implements webhook.Ingestor. Events are keyed by EventID;
// redelivery overwrites the stored copy (last write wins) without
// creating a second record.
func (s *Store) IngestEvent(_ context.Context, ev *webhook.IngestEvent) error {
	if ev == nil || ev.EventID == "" {
		return fmt.Errorf("invalid ingest event")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Store a copy to prevent external mutations.
	evCopy := *ev
	s.events[ev.EventID] = &evCopy
	return nil
}

// Event returns the stored ingest record for an event id, or nil.
func (s *Store) Event(eventID string) *webhook.IngestEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ev, ok := s.events[eventID]
	if !ok {
		return nil
	}
	evCopy := *ev
	return &evCopy
}

// EventCount returns the number of distinct ingested event ids.
func (s *Store) EventCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}
