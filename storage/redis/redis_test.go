package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rootedhq/stripehook/pkg/webhook"
	"github.com/rootedhq/stripehook/storage/memory"
)

// setupTestRedis creates a Redis client for testing.
// Requires Redis running on localhost:6379.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // Use DB 15 for testing
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test database: %v", err)
	}

	return client
}

// countingResolver wraps a resolver and counts pass-throughs.
type countingResolver struct {
	next  webhook.CustomerResolver
	calls int
}

func (c *countingResolver) ResolveCustomer(ctx context.Context, id string) (string, error) {
	c.calls++
	return c.next.ResolveCustomer(ctx, id)
}

func TestNew_Validation(t *testing.T) {
	store := memory.New()

	_, err := New(nil, store, DefaultConfig())
	assert.Error(t, err)

	_, err = New(redis.NewClient(&redis.Options{}), nil, DefaultConfig())
	assert.Error(t, err)
}

func TestResolver_ReadThrough(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()
	ctx := context.Background()

	store := memory.New()
	store.AddCustomer("cus_123", "user-1")
	source := &countingResolver{next: store}

	resolver, err := New(client, source, Config{KeyPrefix: "test:cus:", TTL: time.Minute})
	require.NoError(t, err)

	// First lookup hits the source and populates the cache.
	userID, err := resolver.ResolveCustomer(ctx, "cus_123")
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
	assert.Equal(t, 1, source.calls)

	// Second lookup is served from the cache.
	userID, err = resolver.ResolveCustomer(ctx, "cus_123")
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
	assert.Equal(t, 1, source.calls)
}

func TestResolver_MissNotCached(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()
	ctx := context.Background()

	store := memory.New()
	source := &countingResolver{next: store}

	resolver, err := New(client, source, DefaultConfig())
	require.NoError(t, err)

	_, err = resolver.ResolveCustomer(ctx, "cus_unknown")
	assert.True(t, errors.Is(err, webhook.ErrCustomerNotFound))
	assert.Equal(t, 1, source.calls)

	// A later provisioning must be visible on the next lookup.
	store.AddCustomer("cus_unknown", "user-2")
	userID, err := resolver.ResolveCustomer(ctx, "cus_unknown")
	require.NoError(t, err)
	assert.Equal(t, "user-2", userID)
	assert.Equal(t, 2, source.calls)
}
