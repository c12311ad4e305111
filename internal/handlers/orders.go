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

const maxOrderBodySize = 8 * 1024

// OrderHandlers serves the customer's own order history: listing, detail,
// cancellation, and invoice retrieval.
type OrderHandlers struct {
	authn *auth.Authenticator
	svc   services.OrderService
}

// NewOrderHandlers constructs the customer order handlers.
func NewOrderHandlers(authn *auth.Authenticator, svc services.OrderService) *OrderHandlers {
	return &OrderHandlers{authn: authn, svc: svc}
}

// Routes wires the /orders endpoints onto the provided router.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	group := r
	if h.authn != nil {
		group = r.With(h.authn.RequireFirebaseAuth())
	}
	group.Get("/", h.listOrders)
	group.Get("/{orderID}", h.getOrder)
	group.Post("/{orderID}/cancel", h.cancelOrder)
	group.Get("/{orderID}/invoice", h.getInvoice)
}

type orderListResponse struct {
	Orders        []orderPayload `json:"orders"`
	NextPageToken string         `json:"nextPageToken,omitempty"`
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}

	pager, err := parsePager(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	filter := services.OrderListFilter{
		UserID: uid,
		Status: domain.OrderStatus(strings.TrimSpace(r.URL.Query().Get("status"))),
		Sort:   domain.SortDesc,
		Pager:  pager,
	}

	page, err := h.svc.ListOrders(ctx, filter)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	resp := orderListResponse{Orders: make([]orderPayload, 0, len(page.Items)), NextPageToken: page.NextPageToken}
	for _, order := range page.Items {
		resp.Orders = append(resp.Orders, buildOrderPayload(order))
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}

	order, err := h.svc.GetOrder(ctx, chi.URLParam(r, "orderID"), services.OrderReadOptions{UserID: uid})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]orderPayload{"order": buildOrderPayload(order)})
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}

	var req cancelOrderRequest
	if err := decodeJSONBody(r, maxOrderBodySize, &req); err != nil && !errors.Is(err, errEmptyBody) {
		writeBodyError(w, r, err)
		return
	}

	order, err := h.svc.Cancel(ctx, services.CancelOrderCommand{
		OrderID: chi.URLParam(r, "orderID"),
		UserID:  uid,
		Reason:  strings.TrimSpace(req.Reason),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]orderPayload{"order": buildOrderPayload(order)})
}

type invoiceResponse struct {
	InvoiceNo   string       `json:"invoiceNo"`
	IssuedAt    string       `json:"issuedAt"`
	SellerName  string       `json:"sellerName,omitempty"`
	SellerTaxID string       `json:"sellerTaxId,omitempty"`
	Order       orderPayload `json:"order"`
}

func (h *OrderHandlers) getInvoice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}

	invoice, err := h.svc.Invoice(ctx, chi.URLParam(r, "orderID"), services.OrderReadOptions{UserID: uid})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, invoiceResponse{
		InvoiceNo:   invoice.InvoiceNo,
		IssuedAt:    formatTime(invoice.IssuedAt),
		SellerName:  invoice.SellerName,
		SellerTaxID: invoice.SellerTaxID,
		Order:       buildOrderPayload(invoice.Order),
	})
}

func (h *OrderHandlers) requireUser(ctx context.Context, w http.ResponseWriter) (string, bool) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return "", false
	}
	if h.svc == nil {
		httpx.WriteError(ctx, w, httpx.NewError("orders_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return "", false
	}
	return identity.UID, true
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderTransitionDenied):
		httpx.WriteError(ctx, w, httpx.NewError("transition_denied", "order status transition not allowed", http.StatusConflict))
	case errors.Is(err, services.ErrOrderCancelDenied):
		httpx.WriteError(ctx, w, httpx.NewError("cancel_denied", "order can no longer be cancelled", http.StatusConflict))
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("orders_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
	}
}
