// Package redis provides a read-through Redis cache over a
// webhook.CustomerResolver. Billing-customer mappings are immutable once
// provisioned, so positive lookups are cached with a TTL; misses are
// never cached, because a customer may be provisioned between retries of
// the same event.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rootedhq/stripehook/pkg/webhook"
)

// Resolver implements webhook.CustomerResolver with a Redis cache in
// front of another resolver.
type Resolver struct {
	client redis.UniversalClient
	next   webhook.CustomerResolver
	config Config
}

// Config holds Redis cache configuration.
type Config struct {
	// KeyPrefix is prepended to all Redis keys (default: "stripehook:cus:").
	KeyPrefix string

	// TTL is the lifetime of cached mappings (default: 24h).
	TTL time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		KeyPrefix: "stripehook:cus:",
		TTL:       24 * time.Hour,
	}
}

// New creates a new caching resolver. The client can be *redis.Client,
// *redis.ClusterClient, or *redis.Ring.
func New(client redis.UniversalClient, next webhook.CustomerResolver, config Config) (*Resolver, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if next == nil {
		return nil, fmt.Errorf("next resolver is required")
	}

	if config.KeyPrefix == "" {
		config.KeyPrefix = "stripehook:cus:"
	}
	if config.TTL <= 0 {
		config.TTL = 24 * time.Hour
	}

	return &Resolver{client: client, next: next, config: config}, nil
}

// ResolveCustomer implements webhook.CustomerResolver. Cache failures
// degrade to the underlying resolver; only the underlying resolver's
// errors propagate to the caller.
func (r *Resolver) ResolveCustomer(ctx context.Context, stripeCustomerID string) (string, error) {
	key := r.config.KeyPrefix + stripeCustomerID

	userID, err := r.client.Get(ctx, key).Result()
	if err == nil && userID != "" {
		return userID, nil
	}
	// A miss (redis.Nil) and an unavailable cache both fall through to
	// the source of truth.

	userID, err = r.next.ResolveCustomer(ctx, stripeCustomerID)
	if err != nil {
		return "", err
	}

	// Best effort: a failed SET only costs the next request a lookup.
	_ = r.client.Set(ctx, key, userID, r.config.TTL).Err()

	return userID, nil
}
