package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/fluteatelier/api/internal/platform/httpx"
	"github.com/fluteatelier/api/internal/services"
)

// Stripe caps event payloads at 64KiB.
const maxWebhookBodySize = 64 * 1024

// WebhookHandlers receives asynchronous PSP notifications. Signature
// verification happens here; order confirmation is delegated to the
// checkout service so replayed events stay idempotent.
type WebhookHandlers struct {
	svc           services.CheckoutService
	signingSecret string
	construct     func(payload []byte, header string, secret string) (stripe.Event, error)
}

// WebhookOption customises webhook handler construction.
type WebhookOption func(*WebhookHandlers)

// WithWebhookConstructor overrides event verification, used in tests.
func WithWebhookConstructor(fn func(payload []byte, header string, secret string) (stripe.Event, error)) WebhookOption {
	return func(h *WebhookHandlers) {
		if fn != nil {
			h.construct = fn
		}
	}
}

// NewWebhookHandlers constructs the PSP webhook handlers.
func NewWebhookHandlers(svc services.CheckoutService, signingSecret string, opts ...WebhookOption) *WebhookHandlers {
	h := &WebhookHandlers{
		svc:           svc,
		signingSecret: strings.TrimSpace(signingSecret),
		construct:     webhook.ConstructEvent,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes wires the /webhooks endpoints onto the provided router.
func (h *WebhookHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/stripe", h.handleStripeEvent)
}

func (h *WebhookHandlers) handleStripeEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.svc == nil || h.signingSecret == "" {
		httpx.WriteError(ctx, w, httpx.NewError("webhook_unavailable", "webhook processing is unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxWebhookBodySize)
	if err != nil {
		writeBodyError(w, r, err)
		return
	}

	event, err := h.construct(body, r.Header.Get("Stripe-Signature"), h.signingSecret)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_signature", "webhook signature verification failed", http.StatusBadRequest))
		return
	}

	switch event.Type {
	case "payment_intent.succeeded":
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil || intent.ID == "" {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "malformed payment intent payload", http.StatusBadRequest))
			return
		}
		if _, err := h.svc.ConfirmGatewayPayment(ctx, intent.ID); err != nil {
			writeWebhookConfirmError(ctx, w, err)
			return
		}
	default:
		// Unhandled event types are acknowledged so the PSP stops retrying.
	}

	writeJSONResponse(w, http.StatusOK, map[string]bool{"received": true})
}

// writeWebhookConfirmError maps confirmation failures onto webhook response
// codes. Unknown references are acknowledged with 200 so the PSP does not
// retry events for intents this store never opened; transient failures
// return 5xx so the PSP retries later.
func writeWebhookConfirmError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCheckoutOrderNotFound):
		writeJSONResponse(w, http.StatusOK, map[string]bool{"received": true})
	case errors.Is(err, services.ErrCheckoutAmountMismatch):
		httpx.WriteError(ctx, w, httpx.NewError("amount_mismatch", "paid amount does not match the order total", http.StatusConflict))
	case errors.Is(err, services.ErrCheckoutInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("webhook_unavailable", "order confirmation failed", http.StatusServiceUnavailable))
	}
}
