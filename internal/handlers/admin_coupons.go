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

const maxAdminCouponBodySize = 16 * 1024

// AdminCouponHandlers manages the coupon catalogue, hidden codes included.
type AdminCouponHandlers struct {
	authn *auth.Authenticator
	svc   services.CouponService
}

// NewAdminCouponHandlers constructs the admin coupon handlers.
func NewAdminCouponHandlers(authn *auth.Authenticator, svc services.CouponService) *AdminCouponHandlers {
	return &AdminCouponHandlers{authn: authn, svc: svc}
}

// Routes wires the admin coupon endpoints onto the provided router.
func (h *AdminCouponHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	group := r
	if h.authn != nil {
		group = r.With(h.authn.RequireFirebaseAuth(auth.RoleAdmin))
	}
	group.Get("/coupons", h.listCoupons)
	group.Post("/coupons", h.createCoupon)
	group.Put("/coupons/{couponID}", h.updateCoupon)
	group.Delete("/coupons/{couponID}", h.deleteCoupon)
}

func (h *AdminCouponHandlers) listCoupons(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := h.requireAdmin(ctx, w); !ok {
		return
	}

	pager, err := parsePager(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	page, err := h.svc.ListCoupons(ctx, services.CouponListFilter{
		IncludeHidden:   true,
		IncludeInactive: true,
		Pager:           pager,
	})
	if err != nil {
		writeAdminCouponError(ctx, w, err)
		return
	}

	resp := couponListResponse{Coupons: make([]couponPayload, 0, len(page.Items)), NextPageToken: page.NextPageToken}
	for _, coupon := range page.Items {
		resp.Coupons = append(resp.Coupons, buildCouponPayload(coupon))
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

type upsertCouponRequest struct {
	Code           string `json:"code"`
	Description    string `json:"description"`
	DiscountType   string `json:"discountType"`
	DiscountValue  int64  `json:"discountValue"`
	MinOrderAmount int64  `json:"minOrderAmount"`
	MaxUsesPerUser int    `json:"maxUsesPerUser"`
	ValidFrom      string `json:"validFrom"`
	ValidUntil     string `json:"validUntil"`
	IsActive       bool   `json:"isActive"`
	IsHidden       bool   `json:"isHidden"`
}

func (req upsertCouponRequest) command(couponID, actor string) (services.UpsertCouponCommand, error) {
	cmd := services.UpsertCouponCommand{
		CouponID:       couponID,
		Actor:          actor,
		Code:           strings.TrimSpace(req.Code),
		Description:    req.Description,
		DiscountType:   domain.DiscountType(strings.TrimSpace(req.DiscountType)),
		DiscountValue:  req.DiscountValue,
		MinOrderAmount: req.MinOrderAmount,
		MaxUsesPerUser: req.MaxUsesPerUser,
		IsActive:       req.IsActive,
		IsHidden:       req.IsHidden,
	}
	if v := strings.TrimSpace(req.ValidFrom); v != "" {
		t, err := parseRFC3339(v)
		if err != nil {
			return services.UpsertCouponCommand{}, errors.New("validFrom must be RFC 3339")
		}
		cmd.ValidFrom = &t
	}
	if v := strings.TrimSpace(req.ValidUntil); v != "" {
		t, err := parseRFC3339(v)
		if err != nil {
			return services.UpsertCouponCommand{}, errors.New("validUntil must be RFC 3339")
		}
		cmd.ValidUntil = &t
	}
	return cmd, nil
}

func (h *AdminCouponHandlers) createCoupon(w http.ResponseWriter, r *http.Request) {
	h.upsertCoupon(w, r, "")
}

func (h *AdminCouponHandlers) updateCoupon(w http.ResponseWriter, r *http.Request) {
	h.upsertCoupon(w, r, chi.URLParam(r, "couponID"))
}

func (h *AdminCouponHandlers) upsertCoupon(w http.ResponseWriter, r *http.Request, couponID string) {
	ctx := r.Context()
	actor, ok := h.requireAdmin(ctx, w)
	if !ok {
		return
	}

	var req upsertCouponRequest
	if err := decodeJSONBody(r, maxAdminCouponBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	cmd, err := req.command(couponID, actor)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	var coupon services.Coupon
	if couponID == "" {
		coupon, err = h.svc.CreateCoupon(ctx, cmd)
	} else {
		coupon, err = h.svc.UpdateCoupon(ctx, cmd)
	}
	if err != nil {
		writeAdminCouponError(ctx, w, err)
		return
	}

	status := http.StatusOK
	if couponID == "" {
		status = http.StatusCreated
	}
	writeJSONResponse(w, status, map[string]couponPayload{"coupon": buildCouponPayload(coupon)})
}

func (h *AdminCouponHandlers) deleteCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireAdmin(ctx, w)
	if !ok {
		return
	}

	if err := h.svc.DeleteCoupon(ctx, chi.URLParam(r, "couponID"), actor); err != nil {
		writeAdminCouponError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminCouponHandlers) requireAdmin(ctx context.Context, w http.ResponseWriter) (string, bool) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return "", false
	}
	if h.svc == nil {
		httpx.WriteError(ctx, w, httpx.NewError("coupons_unavailable", "coupon service is unavailable", http.StatusServiceUnavailable))
		return "", false
	}
	return identity.UID, true
}

func writeAdminCouponError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCouponNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("coupon_not_found", "coupon not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCouponExists):
		httpx.WriteError(ctx, w, httpx.NewError("coupon_exists", "coupon code already exists", http.StatusConflict))
	case errors.Is(err, services.ErrCouponInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("coupons_unavailable", "coupon service is unavailable", http.StatusServiceUnavailable))
	}
}
