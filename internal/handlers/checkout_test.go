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

	"github.com/fluteatelier/api/internal/domain"
	"github.com/fluteatelier/api/internal/platform/auth"
	"github.com/fluteatelier/api/internal/services"
)

func TestCheckoutHandlersCreateIntentSuccess(t *testing.T) {
	service := &stubCheckoutService{
		createIntentFunc: func(ctx context.Context, userID string) (services.CheckoutIntent, error) {
			if userID != "user-4" {
				t.Fatalf("unexpected user id %q", userID)
			}
			return services.CheckoutIntent{
				PaymentRef:   "pi_123",
				ClientSecret: "pi_123_secret",
				Amount:       4050,
				Currency:     "inr",
				Quote: services.Quote{
					Subtotal:       4500,
					CouponDiscount: 450,
					GrandTotal:     4050,
				},
			}, nil
		},
	}

	handler := NewCheckoutHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/checkout", handler.Routes)

	req := httptest.NewRequest(http.MethodPost, "/checkout/intent", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "user-4"}))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rr.Code)
	}

	var resp checkoutIntentResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.PaymentRef != "pi_123" || resp.ClientSecret != "pi_123_secret" {
		t.Fatalf("unexpected intent payload %#v", resp)
	}
	if resp.Currency != "INR" {
		t.Fatalf("expected currency INR, got %q", resp.Currency)
	}
	if resp.Quote.GrandTotal != 4050 {
		t.Fatalf("expected quote grand total 4050, got %d", resp.Quote.GrandTotal)
	}
}

func TestCheckoutHandlersCreateIntentCartEmpty(t *testing.T) {
	service := &stubCheckoutService{
		createIntentFunc: func(ctx context.Context, userID string) (services.CheckoutIntent, error) {
			return services.CheckoutIntent{}, services.ErrCheckoutCartEmpty
		},
	}

	handler := NewCheckoutHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/checkout", handler.Routes)

	req := httptest.NewRequest(http.MethodPost, "/checkout/intent", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "user-4"}))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", rr.Code)
	}
}

func TestCheckoutHandlersPlaceOrderCard(t *testing.T) {
	var captured services.PlaceOrderCommand
	service := &stubCheckoutService{
		placeOrderFunc: func(ctx context.Context, cmd services.PlaceOrderCommand) (services.Order, error) {
			captured = cmd
			return services.Order{
				ID:          "order-1",
				OrderNumber: "FL-2026-000042",
				UserID:      cmd.UserID,
				Currency:    "INR",
				Status:      domain.OrderStatusPlaced,
			}, nil
		},
	}

	handler := NewCheckoutHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/checkout", handler.Routes)

	body := `{"paymentMethod":"Card","paymentRef":" pi_123 ","contactEmail":"a@b.c"}`
	req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "user-9"}))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rr.Code)
	}
	if captured.PaymentMethod != domain.PaymentMethodCard {
		t.Fatalf("expected card payment method, got %q", captured.PaymentMethod)
	}
	if captured.PaymentRef != "pi_123" {
		t.Fatalf("expected trimmed payment ref, got %q", captured.PaymentRef)
	}

	var resp map[string]orderPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["order"].OrderNumber != "FL-2026-000042" {
		t.Fatalf("expected order number in response, got %#v", resp["order"])
	}
}

func TestCheckoutHandlersPlaceOrderCODDisabled(t *testing.T) {
	handler := NewCheckoutHandlers(nil, &stubCheckoutService{}, WithCashOnDelivery(false))
	router := chi.NewRouter()
	router.Route("/checkout", handler.Routes)

	req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(`{"paymentMethod":"cod"}`))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "user-9"}))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", rr.Code)
	}
}

func TestCheckoutHandlersPlaceOrderUnsupportedMethod(t *testing.T) {
	handler := NewCheckoutHandlers(nil, &stubCheckoutService{})
	router := chi.NewRouter()
	router.Route("/checkout", handler.Routes)

	req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(`{"paymentMethod":"barter"}`))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "user-9"}))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestCheckoutHandlersPlaceOrderAmountMismatch(t *testing.T) {
	service := &stubCheckoutService{
		placeOrderFunc: func(ctx context.Context, cmd services.PlaceOrderCommand) (services.Order, error) {
			return services.Order{}, services.ErrCheckoutAmountMismatch
		},
	}

	handler := NewCheckoutHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/checkout", handler.Routes)

	req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(`{"paymentMethod":"card","paymentRef":"pi_1"}`))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "user-9"}))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}
}

type stubCheckoutService struct {
	createIntentFunc func(ctx context.Context, userID string) (services.CheckoutIntent, error)
	placeOrderFunc   func(ctx context.Context, cmd services.PlaceOrderCommand) (services.Order, error)
	confirmFunc      func(ctx context.Context, paymentRef string) (services.Order, error)
}

func (s *stubCheckoutService) CreatePaymentIntent(ctx context.Context, userID string) (services.CheckoutIntent, error) {
	if s.createIntentFunc != nil {
		return s.createIntentFunc(ctx, userID)
	}
	return services.CheckoutIntent{}, errors.New("not implemented")
}

func (s *stubCheckoutService) PlaceOrder(ctx context.Context, cmd services.PlaceOrderCommand) (services.Order, error) {
	if s.placeOrderFunc != nil {
		return s.placeOrderFunc(ctx, cmd)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubCheckoutService) ConfirmGatewayPayment(ctx context.Context, paymentRef string) (services.Order, error) {
	if s.confirmFunc != nil {
		return s.confirmFunc(ctx, paymentRef)
	}
	return services.Order{}, errors.New("not implemented")
}
