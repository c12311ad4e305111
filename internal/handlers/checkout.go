package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/fluteatelier/api/internal/domain"
	"github.com/fluteatelier/api/internal/platform/auth"
	"github.com/fluteatelier/api/internal/platform/httpx"
	"github.com/fluteatelier/api/internal/services"
)

const maxCheckoutBodySize = 8 * 1024

// CheckoutHandlers turns a priced cart into an order. Card checkouts open a
// gateway payment intent first; cash-on-delivery orders place immediately.
type CheckoutHandlers struct {
	authn    *auth.Authenticator
	svc      services.CheckoutService
	allowCOD bool
}

// CheckoutOption customises checkout handler construction.
type CheckoutOption func(*CheckoutHandlers)

// WithCashOnDelivery toggles whether cash-on-delivery orders are accepted.
func WithCashOnDelivery(enabled bool) CheckoutOption {
	return func(h *CheckoutHandlers) {
		h.allowCOD = enabled
	}
}

// NewCheckoutHandlers constructs the checkout handlers.
func NewCheckoutHandlers(authn *auth.Authenticator, svc services.CheckoutService, opts ...CheckoutOption) *CheckoutHandlers {
	h := &CheckoutHandlers{authn: authn, svc: svc, allowCOD: true}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes wires the /checkout endpoints onto the provided router.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	group := r
	if h.authn != nil {
		group = r.With(h.authn.RequireFirebaseAuth())
	}
	group.Post("/intent", h.createIntent)
	group.Post("/", h.placeOrder)
}

type checkoutIntentResponse struct {
	PaymentRef   string              `json:"paymentRef"`
	ClientSecret string              `json:"clientSecret"`
	Amount       int64               `json:"amount"`
	Currency     string              `json:"currency"`
	Quote        cartEstimatePayload `json:"quote"`
}

func (h *CheckoutHandlers) createIntent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}

	intent, err := h.svc.CreatePaymentIntent(ctx, uid)
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, checkoutIntentResponse{
		PaymentRef:   intent.PaymentRef,
		ClientSecret: intent.ClientSecret,
		Amount:       intent.Amount,
		Currency:     strings.ToUpper(intent.Currency),
		Quote: cartEstimatePayload{
			Subtotal:        intent.Quote.Subtotal,
			TotalMRP:        intent.Quote.TotalMRP,
			ProductDiscount: intent.Quote.ProductDiscount,
			ShippingFee:     intent.Quote.ShippingFee,
			CouponDiscount:  intent.Quote.CouponDiscount,
			GrandTotal:      intent.Quote.GrandTotal,
		},
	})
}

type placeOrderRequest struct {
	PaymentMethod string `json:"paymentMethod"`
	PaymentRef    string `json:"paymentRef"`
	ContactEmail  string `json:"contactEmail"`
	ContactPhone  string `json:"contactPhone"`
	Notes         string `json:"notes"`
}

func (h *CheckoutHandlers) placeOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}

	var req placeOrderRequest
	if err := decodeJSONBody(r, maxCheckoutBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	method := domain.PaymentMethod(strings.ToLower(strings.TrimSpace(req.PaymentMethod)))
	switch method {
	case domain.PaymentMethodCard:
	case domain.PaymentMethodCOD:
		if !h.allowCOD {
			httpx.WriteError(ctx, w, httpx.NewError("payment_method_disabled", "cash on delivery is not available", http.StatusUnprocessableEntity))
			return
		}
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unsupported payment method", http.StatusBadRequest))
		return
	}

	order, err := h.svc.PlaceOrder(ctx, services.PlaceOrderCommand{
		UserID:        uid,
		PaymentMethod: method,
		PaymentRef:    strings.TrimSpace(req.PaymentRef),
		ContactEmail:  strings.TrimSpace(req.ContactEmail),
		ContactPhone:  strings.TrimSpace(req.ContactPhone),
		Notes:         strings.TrimSpace(req.Notes),
	})
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, map[string]orderPayload{"order": buildOrderPayload(order)})
}

func (h *CheckoutHandlers) requireUser(ctx context.Context, w http.ResponseWriter) (string, bool) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return "", false
	}
	if h.svc == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service is unavailable", http.StatusServiceUnavailable))
		return "", false
	}
	return identity.UID, true
}

func writeCheckoutError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCheckoutCartEmpty):
		httpx.WriteError(ctx, w, httpx.NewError("cart_empty", "cart has no items", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrCheckoutCartNotReady):
		httpx.WriteError(ctx, w, httpx.NewError("cart_not_ready", "cart is missing a shipping address or has stale pricing", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrCheckoutAmountMismatch):
		httpx.WriteError(ctx, w, httpx.NewError("amount_mismatch", "authorised amount no longer matches the cart total", http.StatusConflict))
	case errors.Is(err, services.ErrCheckoutPaymentFailed):
		httpx.WriteError(ctx, w, httpx.NewError("payment_failed", "payment could not be processed", http.StatusBadGateway))
	case errors.Is(err, services.ErrCheckoutOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCheckoutInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrPricingUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("pricing_unavailable", "pricing is temporarily unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service is unavailable", http.StatusServiceUnavailable))
	}
}
