package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/fluteatelier/api/internal/platform/auth"
	"github.com/fluteatelier/api/internal/platform/httpx"
	"github.com/fluteatelier/api/internal/services"
)

const maxAdminUserBodySize = 4 * 1024

// AdminUserHandlers lets operators browse customers and suspend accounts.
type AdminUserHandlers struct {
	authn *auth.Authenticator
	svc   services.UserService
}

// NewAdminUserHandlers constructs the admin user handlers.
func NewAdminUserHandlers(authn *auth.Authenticator, svc services.UserService) *AdminUserHandlers {
	return &AdminUserHandlers{authn: authn, svc: svc}
}

// Routes wires the admin user endpoints onto the provided router.
func (h *AdminUserHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	group := r
	if h.authn != nil {
		group = r.With(h.authn.RequireFirebaseAuth(auth.RoleAdmin))
	}
	group.Get("/users", h.listUsers)
	group.Get("/users/{userID}", h.getUser)
	group.Post("/users/{userID}/active", h.setActive)
}

type userListResponse struct {
	Users         []userProfilePayload `json:"users"`
	NextPageToken string               `json:"nextPageToken,omitempty"`
}

func (h *AdminUserHandlers) listUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := h.requireAdmin(ctx, w); !ok {
		return
	}

	pager, err := parsePager(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	page, err := h.svc.ListUsers(ctx, services.UserListFilter{
		OnlyActive: r.URL.Query().Get("onlyActive") == "true",
		Search:     strings.TrimSpace(r.URL.Query().Get("q")),
		Pager:      pager,
	})
	if err != nil {
		writeUserError(ctx, w, err)
		return
	}

	resp := userListResponse{Users: make([]userProfilePayload, 0, len(page.Items)), NextPageToken: page.NextPageToken}
	for _, profile := range page.Items {
		resp.Users = append(resp.Users, buildUserProfilePayload(profile))
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

func (h *AdminUserHandlers) getUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := h.requireAdmin(ctx, w); !ok {
		return
	}

	profile, err := h.svc.GetProfile(ctx, chi.URLParam(r, "userID"))
	if err != nil {
		writeUserError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]userProfilePayload{"profile": buildUserProfilePayload(profile)})
}

type setUserActiveRequest struct {
	Active bool `json:"active"`
}

func (h *AdminUserHandlers) setActive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireAdmin(ctx, w)
	if !ok {
		return
	}

	var req setUserActiveRequest
	if err := decodeJSONBody(r, maxAdminUserBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	profile, err := h.svc.SetUserActive(ctx, services.SetUserActiveCommand{
		UserID: chi.URLParam(r, "userID"),
		Actor:  actor,
		Active: req.Active,
	})
	if err != nil {
		writeUserError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]userProfilePayload{"profile": buildUserProfilePayload(profile)})
}

func (h *AdminUserHandlers) requireAdmin(ctx context.Context, w http.ResponseWriter) (string, bool) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return "", false
	}
	if h.svc == nil {
		httpx.WriteError(ctx, w, httpx.NewError("users_unavailable", "user service is unavailable", http.StatusServiceUnavailable))
		return "", false
	}
	return identity.UID, true
}
