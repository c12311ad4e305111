package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/fluteatelier/api/internal/domain"
	"github.com/fluteatelier/api/internal/platform/auth"
	"github.com/fluteatelier/api/internal/platform/httpx"
	"github.com/fluteatelier/api/internal/services"
)

const maxProfileBodySize = 8 * 1024

// MeHandlers serves the authenticated caller's profile and address book.
type MeHandlers struct {
	authn *auth.Authenticator
	svc   services.UserService
}

// NewMeHandlers constructs the /me handlers.
func NewMeHandlers(authn *auth.Authenticator, svc services.UserService) *MeHandlers {
	return &MeHandlers{authn: authn, svc: svc}
}

// Routes wires the /me endpoints onto the provided router.
func (h *MeHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	group := r
	if h.authn != nil {
		group = r.With(h.authn.RequireFirebaseAuth())
	}
	group.Get("/", h.getProfile)
	group.Patch("/", h.updateProfile)
	group.Get("/addresses", h.listAddresses)
	group.Post("/addresses", h.createAddress)
	group.Put("/addresses/{addressID}", h.updateAddress)
	group.Delete("/addresses/{addressID}", h.deleteAddress)
}

func (h *MeHandlers) getProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}

	profile, err := h.svc.GetProfile(ctx, uid)
	if err != nil {
		writeUserError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]userProfilePayload{"profile": buildUserProfilePayload(profile)})
}

// updateProfileRequest distinguishes absent fields from explicit clears, so
// a PATCH that omits displayName leaves it untouched.
type updateProfileRequest struct {
	DisplayName       *string         `json:"displayName"`
	PhoneNumber       *string         `json:"phoneNumber"`
	PreferredLanguage *string         `json:"preferredLanguage"`
	NotificationPrefs map[string]bool `json:"notificationPrefs"`
}

func (h *MeHandlers) updateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxProfileBodySize)
	if err != nil {
		writeBodyError(w, r, err)
		return
	}
	var req updateProfileRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	profile, err := h.svc.UpdateProfile(ctx, services.UpdateProfileCommand{
		UserID:            uid,
		DisplayName:       req.DisplayName,
		PhoneNumber:       req.PhoneNumber,
		PreferredLanguage: req.PreferredLanguage,
		NotificationPrefs: domain.NotificationPreferences(req.NotificationPrefs),
	})
	if err != nil {
		writeUserError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]userProfilePayload{"profile": buildUserProfilePayload(profile)})
}

func (h *MeHandlers) requireUser(ctx context.Context, w http.ResponseWriter) (string, bool) {
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

func writeUserError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrUserNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("user_not_found", "not found", http.StatusNotFound))
	case errors.Is(err, services.ErrUserInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("users_unavailable", "user service is unavailable", http.StatusServiceUnavailable))
	}
}

func (h *MeHandlers) listAddresses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}

	addresses, err := h.svc.ListAddresses(ctx, uid)
	if err != nil {
		writeUserError(ctx, w, err)
		return
	}

	payload := make([]addressPayload, 0, len(addresses))
	for _, addr := range addresses {
		payload = append(payload, buildAddressPayload(addr))
	}
	writeJSONResponse(w, http.StatusOK, map[string][]addressPayload{"addresses": payload})
}

func (h *MeHandlers) createAddress(w http.ResponseWriter, r *http.Request) {
	h.upsertAddress(w, r, "")
}

func (h *MeHandlers) updateAddress(w http.ResponseWriter, r *http.Request) {
	h.upsertAddress(w, r, chi.URLParam(r, "addressID"))
}

func (h *MeHandlers) upsertAddress(w http.ResponseWriter, r *http.Request, addressID string) {
	ctx := r.Context()
	uid, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}

	var req addressPayload
	if err := decodeJSONBody(r, maxProfileBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	addr, err := h.svc.UpsertAddress(ctx, services.UpsertAddressCommand{
		UserID:    uid,
		AddressID: strings.TrimSpace(addressID),
		Address:   addressFromPayload(req),
	})
	if err != nil {
		writeUserError(ctx, w, err)
		return
	}

	status := http.StatusOK
	if addressID == "" {
		status = http.StatusCreated
	}
	writeJSONResponse(w, status, map[string]addressPayload{"address": buildAddressPayload(addr)})
}

func (h *MeHandlers) deleteAddress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}

	if err := h.svc.DeleteAddress(ctx, uid, chi.URLParam(r, "addressID")); err != nil {
		writeUserError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
