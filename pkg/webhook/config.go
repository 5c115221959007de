package webhook

import (
	"fmt"
	"time"
)

const (
	defaultMaxBodyBytes      = 256 * 1024
	defaultRateLimitRequests = 100
	defaultRateLimitWindow   = time.Minute
)

// Config holds the collaborators and tuning knobs for the webhook handler.
type Config struct {
	// SigningSecret is the Stripe webhook signing secret (whsec_...) used
	// to verify the Stripe-Signature header over the raw request body.
	// An empty secret is tolerated at construction time so a misdeployed
	// process still answers requests; verification then fails with 400 on
	// every delivery and Stripe reports the endpoint as failing.
	SigningSecret string

	// Resolver maps Stripe customer ids to internal user ids (required).
	Resolver CustomerResolver

	// Ingestor is the downstream idempotent ingest procedure (required).
	Ingestor Ingestor

	// Logger is an optional structured logger. If nil, logging is a no-op.
	Logger Logger

	// Metrics is an optional metrics collector. If nil, metrics are
	// silently ignored.
	Metrics Metrics

	// MaxBodyBytes caps the request body size. Defaults to 256 KiB;
	// Stripe webhook payloads are small.
	MaxBodyBytes int64

	// RateLimitRequests / RateLimitWindow bound per-IP request volume.
	// Defaults: 100 requests per minute.
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Resolver == nil {
		return fmt.Errorf("%w: customer resolver is required", ErrNotConfigured)
	}
	if c.Ingestor == nil {
		return fmt.Errorf("%w: ingestor is required", ErrNotConfigured)
	}
	return nil
}
