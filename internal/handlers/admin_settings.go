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

const maxAdminSettingsBodySize = 64 * 1024

// AdminSettingsHandlers manages the store configuration: the shipping rule,
// customization definitions, and homepage sections.
type AdminSettingsHandlers struct {
	authn *auth.Authenticator
	svc   services.SettingsService
}

// NewAdminSettingsHandlers constructs the admin settings handlers.
func NewAdminSettingsHandlers(authn *auth.Authenticator, svc services.SettingsService) *AdminSettingsHandlers {
	return &AdminSettingsHandlers{authn: authn, svc: svc}
}

// Routes wires the admin settings endpoints onto the provided router.
func (h *AdminSettingsHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	group := r
	if h.authn != nil {
		group = r.With(h.authn.RequireFirebaseAuth(auth.RoleAdmin))
	}
	group.Get("/settings", h.getSettings)
	group.Put("/settings/shipping", h.updateShippingRule)
	group.Get("/customizations", h.listCustomizations)
	group.Post("/customizations", h.createCustomization)
	group.Put("/customizations/{configID}", h.updateCustomization)
	group.Delete("/customizations/{configID}", h.deleteCustomization)
	group.Get("/sections", h.listSections)
	group.Post("/sections", h.createSection)
	group.Put("/sections/{sectionID}", h.updateSection)
	group.Delete("/sections/{sectionID}", h.deleteSection)
}

type storeSettingsPayload struct {
	Currency              string `json:"currency"`
	DefaultShippingRate   int64  `json:"defaultShippingRate"`
	FreeShippingThreshold int64  `json:"freeShippingThreshold"`
	UpdatedAt             string `json:"updatedAt,omitempty"`
}

func buildStoreSettingsPayload(settings services.StoreSettings) storeSettingsPayload {
	payload := storeSettingsPayload{
		Currency:              strings.ToUpper(settings.Currency),
		DefaultShippingRate:   settings.ShippingRule.DefaultRate,
		FreeShippingThreshold: settings.ShippingRule.FreeShippingThreshold,
	}
	if !settings.UpdatedAt.IsZero() {
		payload.UpdatedAt = formatTime(settings.UpdatedAt)
	}
	return payload
}

func (h *AdminSettingsHandlers) getSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := h.requireAdmin(ctx, w); !ok {
		return
	}

	settings, err := h.svc.GetStoreSettings(ctx)
	if err != nil {
		writeAdminSettingsError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]storeSettingsPayload{"settings": buildStoreSettingsPayload(settings)})
}

type updateShippingRuleRequest struct {
	DefaultRate           int64 `json:"defaultRate"`
	FreeShippingThreshold int64 `json:"freeShippingThreshold"`
}

func (h *AdminSettingsHandlers) updateShippingRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireAdmin(ctx, w)
	if !ok {
		return
	}

	var req updateShippingRuleRequest
	if err := decodeJSONBody(r, maxAdminSettingsBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	settings, err := h.svc.UpdateShippingRule(ctx, services.UpdateShippingRuleCommand{
		Actor:                 actor,
		DefaultRate:           req.DefaultRate,
		FreeShippingThreshold: req.FreeShippingThreshold,
	})
	if err != nil {
		writeAdminSettingsError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]storeSettingsPayload{"settings": buildStoreSettingsPayload(settings)})
}

func (h *AdminSettingsHandlers) listCustomizations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := h.requireAdmin(ctx, w); !ok {
		return
	}

	configs, err := h.svc.ListCustomizations(ctx)
	if err != nil {
		writeAdminSettingsError(ctx, w, err)
		return
	}

	payload := make([]customizationPayload, 0, len(configs))
	for _, cfg := range configs {
		payload = append(payload, buildCustomizationPayload(cfg))
	}
	writeJSONResponse(w, http.StatusOK, map[string][]customizationPayload{"customizations": payload})
}

type upsertCustomizationRequest struct {
	Label        string                       `json:"label"`
	Type         string                       `json:"type"`
	Options      []customizationOptionPayload `json:"options"`
	ProductTypes []string                     `json:"productTypes"`
	Position     int                          `json:"position"`
}

func (req upsertCustomizationRequest) command(configID, actor string) services.UpsertCustomizationCommand {
	cmd := services.UpsertCustomizationCommand{
		ConfigID:     configID,
		Actor:        actor,
		Label:        strings.TrimSpace(req.Label),
		Type:         domain.CustomizationType(strings.TrimSpace(req.Type)),
		ProductTypes: req.ProductTypes,
		Position:     req.Position,
	}
	for _, opt := range req.Options {
		cmd.Options = append(cmd.Options, domain.CustomizationOption{
			Value:       opt.Value,
			Label:       opt.Label,
			PriceChange: opt.PriceChange,
		})
	}
	return cmd
}

func (h *AdminSettingsHandlers) createCustomization(w http.ResponseWriter, r *http.Request) {
	h.upsertCustomization(w, r, "")
}

func (h *AdminSettingsHandlers) updateCustomization(w http.ResponseWriter, r *http.Request) {
	h.upsertCustomization(w, r, chi.URLParam(r, "configID"))
}

func (h *AdminSettingsHandlers) upsertCustomization(w http.ResponseWriter, r *http.Request, configID string) {
	ctx := r.Context()
	actor, ok := h.requireAdmin(ctx, w)
	if !ok {
		return
	}

	var req upsertCustomizationRequest
	if err := decodeJSONBody(r, maxAdminSettingsBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	cfg, err := h.svc.UpsertCustomization(ctx, req.command(configID, actor))
	if err != nil {
		writeAdminSettingsError(ctx, w, err)
		return
	}

	status := http.StatusOK
	if configID == "" {
		status = http.StatusCreated
	}
	writeJSONResponse(w, status, map[string]customizationPayload{"customization": buildCustomizationPayload(cfg)})
}

func (h *AdminSettingsHandlers) deleteCustomization(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireAdmin(ctx, w)
	if !ok {
		return
	}

	if err := h.svc.DeleteCustomization(ctx, chi.URLParam(r, "configID"), actor); err != nil {
		writeAdminSettingsError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminSettingsHandlers) listSections(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := h.requireAdmin(ctx, w); !ok {
		return
	}

	sections, err := h.svc.ListHomepageSections(ctx, false)
	if err != nil {
		writeAdminSettingsError(ctx, w, err)
		return
	}

	payload := make([]homepageSectionPayload, 0, len(sections))
	for _, section := range sections {
		payload = append(payload, buildHomepageSectionPayload(section))
	}
	writeJSONResponse(w, http.StatusOK, map[string][]homepageSectionPayload{"sections": payload})
}

type upsertSectionRequest struct {
	Title      string   `json:"title"`
	Kind       string   `json:"kind"`
	BodyHTML   string   `json:"bodyHtml"`
	ProductIDs []string `json:"productIds"`
	Position   int      `json:"position"`
	IsVisible  bool     `json:"isVisible"`
}

func (h *AdminSettingsHandlers) createSection(w http.ResponseWriter, r *http.Request) {
	h.upsertSection(w, r, "")
}

func (h *AdminSettingsHandlers) updateSection(w http.ResponseWriter, r *http.Request) {
	h.upsertSection(w, r, chi.URLParam(r, "sectionID"))
}

func (h *AdminSettingsHandlers) upsertSection(w http.ResponseWriter, r *http.Request, sectionID string) {
	ctx := r.Context()
	actor, ok := h.requireAdmin(ctx, w)
	if !ok {
		return
	}

	var req upsertSectionRequest
	if err := decodeJSONBody(r, maxAdminSettingsBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	section, err := h.svc.UpsertHomepageSection(ctx, services.UpsertHomepageSectionCommand{
		SectionID:  sectionID,
		Actor:      actor,
		Title:      strings.TrimSpace(req.Title),
		Kind:       strings.TrimSpace(req.Kind),
		BodyHTML:   req.BodyHTML,
		ProductIDs: req.ProductIDs,
		Position:   req.Position,
		IsVisible:  req.IsVisible,
	})
	if err != nil {
		writeAdminSettingsError(ctx, w, err)
		return
	}

	status := http.StatusOK
	if sectionID == "" {
		status = http.StatusCreated
	}
	writeJSONResponse(w, status, map[string]homepageSectionPayload{"section": buildHomepageSectionPayload(section)})
}

func (h *AdminSettingsHandlers) deleteSection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireAdmin(ctx, w)
	if !ok {
		return
	}

	if err := h.svc.DeleteHomepageSection(ctx, chi.URLParam(r, "sectionID"), actor); err != nil {
		writeAdminSettingsError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminSettingsHandlers) requireAdmin(ctx context.Context, w http.ResponseWriter) (string, bool) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return "", false
	}
	if h.svc == nil {
		httpx.WriteError(ctx, w, httpx.NewError("settings_unavailable", "settings service is unavailable", http.StatusServiceUnavailable))
		return "", false
	}
	return identity.UID, true
}

func writeAdminSettingsError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrSettingsNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("settings_not_found", "not found", http.StatusNotFound))
	case errors.Is(err, services.ErrSettingsInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("settings_unavailable", "settings service is unavailable", http.StatusServiceUnavailable))
	}
}
