package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/fluteatelier/api/internal/domain"
	"github.com/fluteatelier/api/internal/platform/auth"
	"github.com/fluteatelier/api/internal/platform/httpx"
	"github.com/fluteatelier/api/internal/services"
)

const maxAdminReviewBodySize = 8 * 1024

// AdminReviewHandlers runs the review moderation queue and store replies.
type AdminReviewHandlers struct {
	authn *auth.Authenticator
	svc   services.ReviewService
}

// NewAdminReviewHandlers constructs the admin review handlers.
func NewAdminReviewHandlers(authn *auth.Authenticator, svc services.ReviewService) *AdminReviewHandlers {
	return &AdminReviewHandlers{authn: authn, svc: svc}
}

// Routes wires the admin review endpoints onto the provided router.
func (h *AdminReviewHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	group := r
	if h.authn != nil {
		group = r.With(h.authn.RequireFirebaseAuth(auth.RoleAdmin))
	}
	group.Get("/reviews", h.listReviews)
	group.Post("/reviews/{reviewID}/moderate", h.moderateReview)
	group.Put("/reviews/{reviewID}/reply", h.storeReply)
}

func (h *AdminReviewHandlers) listReviews(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := h.requireAdmin(ctx, w); !ok {
		return
	}

	pager, err := parsePager(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	page, err := h.svc.List(ctx, services.ReviewListFilter{
		ProductID: strings.TrimSpace(r.URL.Query().Get("productId")),
		UserID:    strings.TrimSpace(r.URL.Query().Get("userId")),
		Status:    domain.ReviewStatus(strings.TrimSpace(r.URL.Query().Get("status"))),
		Pager:     pager,
	})
	if err != nil {
		writeReviewError(ctx, w, err)
		return
	}

	resp := reviewListResponse{Reviews: make([]reviewPayload, 0, len(page.Items)), NextPageToken: page.NextPageToken}
	for _, review := range page.Items {
		resp.Reviews = append(resp.Reviews, buildReviewPayload(review))
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

type moderateReviewRequest struct {
	Approve bool `json:"approve"`
}

func (h *AdminReviewHandlers) moderateReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireAdmin(ctx, w)
	if !ok {
		return
	}

	var req moderateReviewRequest
	if err := decodeJSONBody(r, maxAdminReviewBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	review, err := h.svc.Moderate(ctx, services.ModerateReviewCommand{
		ReviewID: chi.URLParam(r, "reviewID"),
		Actor:    actor,
		Approve:  req.Approve,
	})
	if err != nil {
		writeReviewError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]reviewPayload{"review": buildReviewPayload(review)})
}

type reviewReplyRequest struct {
	Message string `json:"message"`
	Visible bool   `json:"visible"`
}

func (h *AdminReviewHandlers) storeReply(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireAdmin(ctx, w)
	if !ok {
		return
	}

	var req reviewReplyRequest
	if err := decodeJSONBody(r, maxAdminReviewBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	review, err := h.svc.StoreReply(ctx, services.ReviewReplyCommand{
		ReviewID: chi.URLParam(r, "reviewID"),
		Actor:    actor,
		Message:  req.Message,
		Visible:  req.Visible,
	})
	if err != nil {
		writeReviewError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]reviewPayload{"review": buildReviewPayload(review)})
}

func (h *AdminReviewHandlers) requireAdmin(ctx context.Context, w http.ResponseWriter) (string, bool) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return "", false
	}
	if h.svc == nil {
		httpx.WriteError(ctx, w, httpx.NewError("reviews_unavailable", "review service is unavailable", http.StatusServiceUnavailable))
		return "", false
	}
	return identity.UID, true
}
