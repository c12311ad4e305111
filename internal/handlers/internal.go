package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fluteatelier/api/internal/platform/httpx"
	"github.com/fluteatelier/api/internal/services"
)

// InternalHandlers serves scheduler-invoked endpoints. The /internal group
// is guarded by OIDC middleware at the router, so these handlers trust the
// caller and only validate inputs.
type InternalHandlers struct {
	orders services.OrderService
	clock  func() time.Time
}

// InternalOption customises internal handler construction.
type InternalOption func(*InternalHandlers)

// WithInternalClock overrides the time source used for report windows.
func WithInternalClock(clock func() time.Time) InternalOption {
	return func(h *InternalHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// NewInternalHandlers constructs the internal scheduler handlers.
func NewInternalHandlers(orders services.OrderService, opts ...InternalOption) *InternalHandlers {
	h := &InternalHandlers{orders: orders, clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes wires the /internal endpoints onto the provided router.
func (h *InternalHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/reports/daily", h.dailyReport)
}

// dailyReport aggregates the previous UTC day's orders. Cloud Scheduler
// invokes it shortly after midnight; the response body doubles as the
// report payload for the invoking job's logs.
func (h *InternalHandlers) dailyReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("orders_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	now := h.clock().UTC()
	until := now.Truncate(24 * time.Hour)
	from := until.AddDate(0, 0, -1)

	stats, err := h.orders.DashboardStats(ctx, from, until)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildDashboardStatsResponse(stats))
}
