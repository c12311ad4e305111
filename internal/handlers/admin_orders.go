package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fluteatelier/api/internal/domain"
	"github.com/fluteatelier/api/internal/platform/auth"
	"github.com/fluteatelier/api/internal/platform/httpx"
	"github.com/fluteatelier/api/internal/services"
)

const maxAdminOrderBodySize = 8 * 1024

// AdminOrderHandlers gives operators order search, status management, and
// the revenue dashboard.
type AdminOrderHandlers struct {
	authn *auth.Authenticator
	svc   services.OrderService
	clock func() time.Time
}

// AdminOrderOption customises admin order handler construction.
type AdminOrderOption func(*AdminOrderHandlers)

// WithAdminOrderClock overrides the time source used for dashboard defaults.
func WithAdminOrderClock(clock func() time.Time) AdminOrderOption {
	return func(h *AdminOrderHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// NewAdminOrderHandlers constructs the admin order handlers.
func NewAdminOrderHandlers(authn *auth.Authenticator, svc services.OrderService, opts ...AdminOrderOption) *AdminOrderHandlers {
	h := &AdminOrderHandlers{authn: authn, svc: svc, clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes wires the admin order endpoints onto the provided router.
func (h *AdminOrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	group := r
	if h.authn != nil {
		group = r.With(h.authn.RequireFirebaseAuth(auth.RoleAdmin))
	}
	group.Get("/orders", h.listOrders)
	group.Get("/orders/{orderID}", h.getOrder)
	group.Post("/orders/{orderID}/status", h.transitionStatus)
	group.Get("/dashboard/stats", h.dashboardStats)
}

func (h *AdminOrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := h.requireAdmin(ctx, w); !ok {
		return
	}

	pager, err := parsePager(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	filter := services.OrderListFilter{
		UserID: strings.TrimSpace(r.URL.Query().Get("userId")),
		Status: domain.OrderStatus(strings.TrimSpace(r.URL.Query().Get("status"))),
		Sort:   domain.SortDesc,
		Pager:  pager,
	}
	if v := strings.TrimSpace(r.URL.Query().Get("placedFrom")); v != "" {
		t, err := parseRFC3339(v)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "placedFrom must be RFC 3339", http.StatusBadRequest))
			return
		}
		filter.PlacedFrom = &t
	}
	if v := strings.TrimSpace(r.URL.Query().Get("placedUntil")); v != "" {
		t, err := parseRFC3339(v)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "placedUntil must be RFC 3339", http.StatusBadRequest))
			return
		}
		filter.PlacedUntil = &t
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

func (h *AdminOrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := h.requireAdmin(ctx, w); !ok {
		return
	}

	order, err := h.svc.GetOrder(ctx, chi.URLParam(r, "orderID"), services.OrderReadOptions{Admin: true})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]orderPayload{"order": buildOrderPayload(order)})
}

type transitionStatusRequest struct {
	Status  string `json:"status"`
	Comment string `json:"comment"`
}

func (h *AdminOrderHandlers) transitionStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireAdmin(ctx, w)
	if !ok {
		return
	}

	var req transitionStatusRequest
	if err := decodeJSONBody(r, maxAdminOrderBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	order, err := h.svc.TransitionStatus(ctx, services.OrderStatusTransitionCommand{
		OrderID: chi.URLParam(r, "orderID"),
		Actor:   actor,
		Next:    domain.OrderStatus(strings.ToLower(strings.TrimSpace(req.Status))),
		Comment: strings.TrimSpace(req.Comment),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]orderPayload{"order": buildOrderPayload(order)})
}

type dashboardBucketPayload struct {
	Day     string `json:"day"`
	Orders  int    `json:"orders"`
	Revenue int64  `json:"revenue"`
}

type dashboardStatsResponse struct {
	From         string                   `json:"from"`
	Until        string                   `json:"until"`
	TotalOrders  int                      `json:"totalOrders"`
	TotalRevenue int64                    `json:"totalRevenue"`
	Buckets      []dashboardBucketPayload `json:"buckets"`
}

func buildDashboardStatsResponse(stats services.DashboardStats) dashboardStatsResponse {
	resp := dashboardStatsResponse{
		From:         formatTime(stats.From),
		Until:        formatTime(stats.Until),
		TotalOrders:  stats.TotalOrders,
		TotalRevenue: stats.TotalRevenue,
		Buckets:      make([]dashboardBucketPayload, 0, len(stats.Buckets)),
	}
	for _, bucket := range stats.Buckets {
		resp.Buckets = append(resp.Buckets, dashboardBucketPayload{
			Day:     bucket.Day.UTC().Format("2006-01-02"),
			Orders:  bucket.Orders,
			Revenue: bucket.Revenue,
		})
	}
	return resp
}

func (h *AdminOrderHandlers) dashboardStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := h.requireAdmin(ctx, w); !ok {
		return
	}

	until := h.clock().UTC()
	from := until.AddDate(0, 0, -30)
	if v := strings.TrimSpace(r.URL.Query().Get("from")); v != "" {
		t, err := parseRFC3339(v)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "from must be RFC 3339", http.StatusBadRequest))
			return
		}
		from = t
	}
	if v := strings.TrimSpace(r.URL.Query().Get("until")); v != "" {
		t, err := parseRFC3339(v)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "until must be RFC 3339", http.StatusBadRequest))
			return
		}
		until = t
	}
	if !from.Before(until) {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "from must precede until", http.StatusBadRequest))
		return
	}

	stats, err := h.svc.DashboardStats(ctx, from, until)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildDashboardStatsResponse(stats))
}

func (h *AdminOrderHandlers) requireAdmin(ctx context.Context, w http.ResponseWriter) (string, bool) {
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
