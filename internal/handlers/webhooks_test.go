package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stripe/stripe-go/v78"

	"github.com/fluteatelier/api/internal/services"
)

func stubStripeEvent(t *testing.T, eventType string, payload any) func([]byte, string, string) (stripe.Event, error) {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal event payload: %v", err)
	}
	return func(body []byte, header, secret string) (stripe.Event, error) {
		return stripe.Event{
			Type: stripe.EventType(eventType),
			Data: &stripe.EventData{Raw: raw},
		}, nil
	}
}

func TestWebhookPaymentSucceeded(t *testing.T) {
	confirmed := ""
	service := &stubCheckoutService{
		confirmFunc: func(ctx context.Context, paymentRef string) (services.Order, error) {
			confirmed = paymentRef
			return services.Order{ID: "order-1", PaymentRef: paymentRef}, nil
		},
	}
	handler := NewWebhookHandlers(service, "whsec_test",
		WithWebhookConstructor(stubStripeEvent(t, "payment_intent.succeeded", map[string]any{"id": "pi_123"})))
	router := chi.NewRouter()
	router.Route("/webhooks", handler.Routes)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(`{}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=sig")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if confirmed != "pi_123" {
		t.Fatalf("expected intent pi_123 confirmed, got %q", confirmed)
	}
	var resp map[string]bool
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp["received"] {
		t.Fatalf("expected received ack, got %+v", resp)
	}
}

func TestWebhookBadSignature(t *testing.T) {
	called := false
	service := &stubCheckoutService{
		confirmFunc: func(ctx context.Context, paymentRef string) (services.Order, error) {
			called = true
			return services.Order{}, nil
		},
	}
	handler := NewWebhookHandlers(service, "whsec_test",
		WithWebhookConstructor(func(body []byte, header, secret string) (stripe.Event, error) {
			return stripe.Event{}, errors.New("signature mismatch")
		}))
	router := chi.NewRouter()
	router.Route("/webhooks", handler.Routes)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	if called {
		t.Fatal("confirmation must not run on signature failure")
	}
}

func TestWebhookUnknownIntentAcknowledged(t *testing.T) {
	service := &stubCheckoutService{
		confirmFunc: func(ctx context.Context, paymentRef string) (services.Order, error) {
			return services.Order{}, services.ErrCheckoutOrderNotFound
		},
	}
	handler := NewWebhookHandlers(service, "whsec_test",
		WithWebhookConstructor(stubStripeEvent(t, "payment_intent.succeeded", map[string]any{"id": "pi_unknown"})))
	router := chi.NewRouter()
	router.Route("/webhooks", handler.Routes)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	// 200 so the PSP stops retrying intents this store never opened.
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestWebhookAmountMismatchConflict(t *testing.T) {
	service := &stubCheckoutService{
		confirmFunc: func(ctx context.Context, paymentRef string) (services.Order, error) {
			return services.Order{}, services.ErrCheckoutAmountMismatch
		},
	}
	handler := NewWebhookHandlers(service, "whsec_test",
		WithWebhookConstructor(stubStripeEvent(t, "payment_intent.succeeded", map[string]any{"id": "pi_123"})))
	router := chi.NewRouter()
	router.Route("/webhooks", handler.Routes)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestWebhookIgnoresUnhandledEventTypes(t *testing.T) {
	handler := NewWebhookHandlers(&stubCheckoutService{}, "whsec_test",
		WithWebhookConstructor(stubStripeEvent(t, "charge.refunded", map[string]any{"id": "ch_1"})))
	router := chi.NewRouter()
	router.Route("/webhooks", handler.Routes)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestWebhookMissingSecretUnavailable(t *testing.T) {
	handler := NewWebhookHandlers(&stubCheckoutService{}, "  ")
	router := chi.NewRouter()
	router.Route("/webhooks", handler.Routes)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d: %s", rec.Code, rec.Body.String())
	}
}
