package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/fluteatelier/api/internal/platform/auth"
	"github.com/fluteatelier/api/internal/platform/httpx"
	"github.com/fluteatelier/api/internal/services"
)

const maxReviewBodySize = 8 * 1024

// ReviewHandlers accepts customer reviews for delivered orders. Reviews enter
// the moderation queue pending and only surface publicly once approved.
type ReviewHandlers struct {
	authn *auth.Authenticator
	svc   services.ReviewService
}

// NewReviewHandlers constructs the customer review handlers.
func NewReviewHandlers(authn *auth.Authenticator, svc services.ReviewService) *ReviewHandlers {
	return &ReviewHandlers{authn: authn, svc: svc}
}

// Routes wires the /reviews endpoints onto the provided router.
func (h *ReviewHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	group := r
	if h.authn != nil {
		group = r.With(h.authn.RequireFirebaseAuth())
	}
	group.Post("/", h.createReview)
	group.Get("/mine", h.listMine)
}

type createReviewRequest struct {
	OrderID   string `json:"orderId"`
	ProductID string `json:"productId"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
}

func (h *ReviewHandlers) createReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}

	var req createReviewRequest
	if err := decodeJSONBody(r, maxReviewBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	review, err := h.svc.Create(ctx, services.CreateReviewCommand{
		UserID:    uid,
		OrderID:   strings.TrimSpace(req.OrderID),
		ProductID: strings.TrimSpace(req.ProductID),
		Rating:    req.Rating,
		Comment:   req.Comment,
	})
	if err != nil {
		writeReviewError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, map[string]reviewPayload{"review": buildReviewPayload(review)})
}

func (h *ReviewHandlers) listMine(w http.ResponseWriter, r *http.Request) {
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

	page, err := h.svc.List(ctx, services.ReviewListFilter{UserID: uid, Pager: pager})
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

func (h *ReviewHandlers) requireUser(ctx context.Context, w http.ResponseWriter) (string, bool) {
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

func writeReviewError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrReviewNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("review_not_found", "review not found", http.StatusNotFound))
	case errors.Is(err, services.ErrReviewNotEligible):
		httpx.WriteError(ctx, w, httpx.NewError("review_not_eligible", "only delivered purchases can be reviewed", http.StatusForbidden))
	case errors.Is(err, services.ErrReviewAlreadyExists):
		httpx.WriteError(ctx, w, httpx.NewError("review_exists", "product already reviewed for this order", http.StatusConflict))
	case errors.Is(err, services.ErrReviewInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("reviews_unavailable", "review service is unavailable", http.StatusServiceUnavailable))
	}
}
