// Package postgres implements the billing-customer resolver and the
// downstream ingest dispatcher on PostgreSQL. The resolver reads the
// billing_customers mapping; the dispatcher calls the
// service_stripe_ingest_event_v1 stored procedure, which owns all state
// mutation and deduplicates by event id.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rootedhq/stripehook/pkg/webhook"
)

// Store implements webhook.CustomerResolver and webhook.Ingestor using a
// pgx connection pool.
type Store struct {
	pool   *pgxpool.Pool
	config Config
}

// Config holds PostgreSQL store configuration.
type Config struct {
	// ConnectionString is the PostgreSQL connection string.
	ConnectionString string

	// Pool configuration
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration

	// IngestProcedure overrides the ingest procedure name.
	// Default: "public.service_stripe_ingest_event_v1".
	IngestProcedure string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxConns:        10,
		MinConns:        2,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
		IngestProcedure: "public.service_stripe_ingest_event_v1",
	}
}

// New creates a new PostgreSQL store.
func New(ctx context.Context, config Config) (*Store, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required")
	}
	if config.IngestProcedure == "" {
		config.IngestProcedure = "public.service_stripe_ingest_event_v1"
	}

	poolConfig, err := pgxpool.ParseConfig(config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	if config.MaxConns > 0 {
		poolConfig.MaxConns = config.MaxConns
	}
	if config.MinConns > 0 {
		poolConfig.MinConns = config.MinConns
	}
	if config.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = config.MaxConnLifetime
	}
	if config.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = config.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{pool: pool, config: config}, nil
}

// Close closes the connection pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// ResolveCustomer implements webhook.CustomerResolver.
func (s *Store) ResolveCustomer(ctx context.Context, stripeCustomerID string) (string, error) {
	var userID string

	err := s.pool.QueryRow(ctx,
		`SELECT user_id FROM billing_customers WHERE stripe_customer_id = $1`,
		stripeCustomerID).Scan(&userID)

	if errors.Is(err, pgx.ErrNoRows) {
		return "", webhook.ErrCustomerNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up billing customer: %w", err)
	}

	return userID, nil
}

// IngestEvent implements webhook.Ingestor by invoking the ingest stored
// procedure. Idempotency lives in the procedure: it conflicts on the
// event id and tolerates concurrent or out-of-order redelivery.
func (s *Store) IngestEvent(ctx context.Context, ev *webhook.IngestEvent) error {
	if ev == nil || ev.EventID == "" {
		return fmt.Errorf("invalid ingest event")
	}

	// The subscription id is nullable downstream.
	var subscriptionID *string
	if ev.SubscriptionRef != "" {
		subscriptionID = &ev.SubscriptionRef
	}

	_, err := s.pool.Exec(ctx,
		fmt.Sprintf(`SELECT %s($1, $2, $3, $4, $5, $6, $7, $8)`, s.config.IngestProcedure),
		ev.EventID,
		ev.EventType,
		ev.CustomerRef,
		ev.Status,
		ev.PriceRef,
		ev.UserID,
		subscriptionID,
		ev.Payload,
	)
	if err != nil {
		return fmt.Errorf("failed to ingest event %s: %w", ev.EventID, err)
	}

	return nil
}
