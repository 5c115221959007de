// Package webhook implements the Stripe subscription webhook endpoint:
// signature verification over the raw body, an event-type allow-list,
// normalization to a canonical record, billing-customer resolution and
// idempotent dispatch to the downstream ingest procedure.
//
// The endpoint never mutates subscription or entitlement state itself;
// all persistence is delegated to the Ingestor. The handler's one
// operational rule is the status-code contract: 2xx means "understood,
// do not retry" (processed or deliberately ignored), 5xx means
// "infrastructure failure, retry".
package webhook

import (
	"errors"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v83"

	"github.com/rootedhq/stripehook/pkg/webhook/internal"
)

// response is the JSON body returned for every request. The canonical
// fields are echoed only on the "missing canonical fields" path, for
// offline diagnostics.
type response struct {
	OK        bool   `json:"ok"`
	Ignored   bool   `json:"ignored,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Error     string `json:"error,omitempty"`
	EventID   string `json:"event_id,omitempty"`
	EventType string `json:"event_type,omitempty"`

	CustomerRef     string `json:"stripe_customer_id,omitempty"`
	SubscriptionRef string `json:"stripe_subscription_id,omitempty"`
	PriceRef        string `json:"stripe_price_id,omitempty"`
	Status          string `json:"subscription_status,omitempty"`
}

// Handler processes Stripe webhook deliveries. Construct once at startup
// with NewHandler and mount via WebhookHandler; it is safe for concurrent
// use, holds no per-request state, and performs no retries of its own.
type Handler struct {
	signingSecret string
	resolver      CustomerResolver
	ingestor      Ingestor
	logger        Logger
	metrics       Metrics
	maxBodyBytes  int64
	limiter       *internal.RateLimiter
}

// NewHandler creates a webhook handler from the given configuration.
func NewHandler(cfg Config) (*Handler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = &NoopLogger{}
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = &NoopMetrics{}
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}
	limit := cfg.RateLimitRequests
	if limit <= 0 {
		limit = defaultRateLimitRequests
	}
	window := cfg.RateLimitWindow
	if window <= 0 {
		window = defaultRateLimitWindow
	}

	if cfg.SigningSecret == "" {
		logger.Error("webhook signing secret is empty; all deliveries will fail verification")
	}

	return &Handler{
		signingSecret: cfg.SigningSecret,
		resolver:      cfg.Resolver,
		ingestor:      cfg.Ingestor,
		logger:        logger,
		metrics:       metrics,
		maxBodyBytes:  maxBody,
		limiter:       internal.NewRateLimiter(limit, window),
	}, nil
}

// WebhookHandler returns the HTTP handler for the endpoint, wrapped with
// per-IP rate limiting.
func (h *Handler) WebhookHandler() http.Handler {
	return h.limiter.Middleware(http.HandlerFunc(h.handleWebhook))
}

func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	setSecurityHeaders(w)

	if r.Method != http.MethodPost {
		h.respond(w, http.StatusMethodNotAllowed, response{OK: false, Error: "method not allowed"})
		return
	}

	body, err := internal.ReadRawBody(w, r, h.maxBodyBytes)
	if err != nil {
		if errors.Is(err, internal.ErrPayloadTooLarge) {
			h.metrics.RecordError("payload_too_large")
			h.respond(w, http.StatusRequestEntityTooLarge, response{OK: false, Error: "payload too large"})
			return
		}
		h.metrics.RecordError("invalid_payload")
		h.respond(w, http.StatusBadRequest, response{OK: false, Error: "invalid payload"})
		return
	}

	sig := r.Header.Get("Stripe-Signature")
	if sig == "" {
		sig = r.Header.Get("stripe-signature")
	}
	if sig == "" {
		// Cheap reject: no point running HMAC on an unsigned request,
		// and the body must never be parsed before verification.
		h.logger.Warn("missing stripe-signature header",
			Field{Key: "remote_ip", Value: internal.ClientIP(r)})
		h.metrics.RecordError("auth_failed")
		h.respond(w, http.StatusBadRequest, response{OK: false, Error: "missing stripe-signature"})
		return
	}

	event, err := stripe.ConstructEvent(body, sig, h.signingSecret)
	if err != nil {
		h.logger.Warn("signature verification failed",
			Field{Key: "error", Value: err.Error()},
			Field{Key: "remote_ip", Value: internal.ClientIP(r)})
		h.metrics.RecordError("auth_failed")
		h.respond(w, http.StatusBadRequest, response{OK: false, Error: "invalid signature"})
		return
	}

	eventType := string(event.Type)

	if !EventInScope(event.Type) {
		h.metrics.RecordEvent(eventType, "ignored")
		h.respond(w, http.StatusOK, response{
			OK:        true,
			Ignored:   true,
			EventID:   event.ID,
			EventType: eventType,
		})
		return
	}

	rec, err := Normalize(&event)
	if err != nil {
		// A payload we cannot decode will never become processable;
		// fall through to the completeness gate so it is acknowledged,
		// not retried forever.
		h.logger.Warn("event normalization failed",
			Field{Key: "event_id", Value: event.ID},
			Field{Key: "event_type", Value: eventType},
			Field{Key: "error", Value: err.Error()})
	}

	if !rec.Complete() {
		h.logger.Info("event ignored: missing canonical fields",
			Field{Key: "event_id", Value: event.ID},
			Field{Key: "event_type", Value: eventType},
			Field{Key: "record", Value: rec})
		h.metrics.RecordEvent(eventType, "ignored")
		h.respond(w, http.StatusOK, response{
			OK:              true,
			Ignored:         true,
			Reason:          "missing canonical fields",
			EventID:         event.ID,
			EventType:       eventType,
			CustomerRef:     rec.CustomerRef,
			SubscriptionRef: rec.SubscriptionRef,
			PriceRef:        rec.PriceRef,
			Status:          rec.Status,
		})
		return
	}

	ctx := r.Context()

	userID, err := h.resolver.ResolveCustomer(ctx, rec.CustomerRef)
	switch {
	case errors.Is(err, ErrCustomerNotFound):
		h.logger.Info("event ignored: unknown customer reference",
			Field{Key: "event_id", Value: event.ID},
			Field{Key: "stripe_customer_id", Value: rec.CustomerRef})
		h.metrics.RecordLookup("miss")
		h.metrics.RecordEvent(eventType, "ignored")
		h.respond(w, http.StatusOK, response{
			OK:          true,
			Ignored:     true,
			Reason:      "unknown customer reference",
			EventID:     event.ID,
			CustomerRef: rec.CustomerRef,
		})
		return
	case err != nil:
		h.logger.Error("billing customer lookup failed",
			Field{Key: "event_id", Value: event.ID},
			Field{Key: "stripe_customer_id", Value: rec.CustomerRef},
			Field{Key: "error", Value: err.Error()})
		h.metrics.RecordLookup("error")
		h.metrics.RecordError("lookup_failed")
		h.metrics.RecordEvent(eventType, "error")
		h.respond(w, http.StatusInternalServerError, response{OK: false, Error: "customer lookup failed", EventID: event.ID})
		return
	}
	h.metrics.RecordLookup("hit")

	payload, err := canonicalSnapshot(body)
	if err != nil {
		// Unreachable in practice: ConstructEvent already parsed the body.
		h.logger.Error("payload snapshot failed",
			Field{Key: "event_id", Value: event.ID},
			Field{Key: "error", Value: err.Error()})
		h.metrics.RecordError("invalid_payload")
		h.respond(w, http.StatusInternalServerError, response{OK: false, Error: "payload snapshot failed", EventID: event.ID})
		return
	}

	ingest := &IngestEvent{
		EventID:         event.ID,
		EventType:       eventType,
		CustomerRef:     rec.CustomerRef,
		Status:          rec.Status,
		PriceRef:        rec.PriceRef,
		UserID:          userID,
		SubscriptionRef: rec.SubscriptionRef,
		Payload:         payload,
	}

	if err := h.ingestor.IngestEvent(ctx, ingest); err != nil {
		h.logger.Error("event ingest failed",
			Field{Key: "event_id", Value: event.ID},
			Field{Key: "event_type", Value: eventType},
			Field{Key: "error", Value: err.Error()})
		h.metrics.RecordIngest("error")
		h.metrics.RecordError("ingest_failed")
		h.metrics.RecordEvent(eventType, "error")
		h.respond(w, http.StatusInternalServerError, response{OK: false, Error: "ingest failed", EventID: event.ID})
		return
	}

	h.logger.Info("event ingested",
		Field{Key: "event_id", Value: event.ID},
		Field{Key: "event_type", Value: eventType},
		Field{Key: "user_id", Value: userID})
	h.metrics.RecordIngest("success")
	h.metrics.RecordEvent(eventType, "processed")
	h.metrics.RecordProcessingDuration(eventType, time.Since(start))
	h.respond(w, http.StatusOK, response{OK: true, EventID: event.ID, EventType: eventType})
}

func (h *Handler) respond(w http.ResponseWriter, code int, resp response) {
	if err := internal.WriteJSON(w, code, resp); err != nil {
		h.logger.Error("response write failed", Field{Key: "error", Value: err.Error()})
	}
}

func setSecurityHeaders(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")
}
