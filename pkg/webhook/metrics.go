package webhook

import "time"

// Metrics defines the interface for tracking webhook processing.
// All methods are optional - the handler gracefully handles nil metrics.
type Metrics interface {
	// RecordEvent records a verified webhook event.
	// status: "processed", "ignored" or "error"
	RecordEvent(eventType, status string)

	// RecordProcessingDuration records how long an event took end to end.
	RecordProcessingDuration(eventType string, duration time.Duration)

	// RecordError records a processing failure.
	// errorType: "auth_failed", "invalid_payload", "lookup_failed",
	// "ingest_failed", "payload_too_large"
	RecordError(errorType string)

	// RecordLookup records a billing-customer mapping lookup.
	// status: "hit", "miss" or "error"
	RecordLookup(status string)

	// RecordIngest records a call to the downstream ingest procedure.
	// status: "success" or "error"
	RecordIngest(status string)
}

// NoopMetrics is a no-op implementation of the Metrics interface.
type NoopMetrics struct{}

func (n *NoopMetrics) RecordEvent(_, _ string) {}
func (n *NoopMetrics) RecordProcessingDuration(_ string, _ time.Duration) {}
func (n *NoopMetrics) RecordError(_ string) {}
func (n *NoopMetrics) RecordLookup(_ string) {}
func (n *NoopMetrics) RecordIngest(_ string) {}
