package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/fluteatelier/api/internal/platform/httpx"
	"github.com/fluteatelier/api/internal/services"
)

// PublicHandlers serves the unauthenticated storefront surface: catalog,
// homepage sections, visible coupons, and customization definitions.
type PublicHandlers struct {
	catalog  services.CatalogService
	settings services.SettingsService
	coupons  services.CouponService
	reviews  services.ReviewService
}

// NewPublicHandlers constructs the public storefront handlers.
func NewPublicHandlers(catalog services.CatalogService, settings services.SettingsService, coupons services.CouponService, reviews services.ReviewService) *PublicHandlers {
	return &PublicHandlers{
		catalog:  catalog,
		settings: settings,
		coupons:  coupons,
		reviews:  reviews,
	}
}

// Routes wires the /public endpoints onto the provided router.
func (h *PublicHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/products", h.listProducts)
	r.Get("/products/{slug}", h.getProduct)
	r.Get("/products/{slug}/reviews", h.listProductReviews)
	r.Get("/sections", h.listSections)
	r.Get("/coupons", h.listCoupons)
	r.Get("/customizations", h.listCustomizations)
}

type productListResponse struct {
	Products      []productPayload `json:"products"`
	NextPageToken string           `json:"nextPageToken,omitempty"`
}

func (h *PublicHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	pager, err := parsePager(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	filter := services.ProductListFilter{
		ProductType: strings.TrimSpace(r.URL.Query().Get("type")),
		Search:      strings.TrimSpace(r.URL.Query().Get("q")),
		Pager:       pager,
	}

	page, err := h.catalog.ListProducts(ctx, filter)
	if err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}

	resp := productListResponse{Products: make([]productPayload, 0, len(page.Items)), NextPageToken: page.NextPageToken}
	for _, product := range page.Items {
		resp.Products = append(resp.Products, buildProductPayload(product))
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

func (h *PublicHandlers) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	slug := strings.TrimSpace(chi.URLParam(r, "slug"))
	product, err := h.catalog.GetProductBySlug(ctx, slug)
	if err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}
	if !product.IsActive {
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]productPayload{"product": buildProductPayload(product)})
}

type reviewListResponse struct {
	Reviews       []reviewPayload `json:"reviews"`
	NextPageToken string          `json:"nextPageToken,omitempty"`
}

func (h *PublicHandlers) listProductReviews(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil || h.reviews == nil {
		httpx.WriteError(ctx, w, httpx.NewError("reviews_unavailable", "review service is unavailable", http.StatusServiceUnavailable))
		return
	}

	slug := strings.TrimSpace(chi.URLParam(r, "slug"))
	product, err := h.catalog.GetProductBySlug(ctx, slug)
	if err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}

	pager, err := parsePager(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	page, err := h.reviews.ListApprovedByProduct(ctx, product.ID, pager)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("reviews_unavailable", "failed to list reviews", http.StatusServiceUnavailable))
		return
	}

	resp := reviewListResponse{Reviews: make([]reviewPayload, 0, len(page.Items)), NextPageToken: page.NextPageToken}
	for _, review := range page.Items {
		resp.Reviews = append(resp.Reviews, buildReviewPayload(review))
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

func (h *PublicHandlers) listSections(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.settings == nil {
		httpx.WriteError(ctx, w, httpx.NewError("settings_unavailable", "settings service is unavailable", http.StatusServiceUnavailable))
		return
	}

	sections, err := h.settings.ListHomepageSections(ctx, true)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("settings_unavailable", "failed to list sections", http.StatusServiceUnavailable))
		return
	}

	payload := make([]homepageSectionPayload, 0, len(sections))
	for _, section := range sections {
		payload = append(payload, buildHomepageSectionPayload(section))
	}
	writeJSONResponse(w, http.StatusOK, map[string][]homepageSectionPayload{"sections": payload})
}

type couponListResponse struct {
	Coupons       []couponPayload `json:"coupons"`
	NextPageToken string          `json:"nextPageToken,omitempty"`
}

func (h *PublicHandlers) listCoupons(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.coupons == nil {
		httpx.WriteError(ctx, w, httpx.NewError("coupons_unavailable", "coupon service is unavailable", http.StatusServiceUnavailable))
		return
	}

	pager, err := parsePager(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	page, err := h.coupons.ListPublicCoupons(ctx, pager)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("coupons_unavailable", "failed to list coupons", http.StatusServiceUnavailable))
		return
	}

	resp := couponListResponse{Coupons: make([]couponPayload, 0, len(page.Items)), NextPageToken: page.NextPageToken}
	for _, coupon := range page.Items {
		resp.Coupons = append(resp.Coupons, buildCouponPayload(coupon))
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

func (h *PublicHandlers) listCustomizations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.settings == nil {
		httpx.WriteError(ctx, w, httpx.NewError("settings_unavailable", "settings service is unavailable", http.StatusServiceUnavailable))
		return
	}

	productType := strings.TrimSpace(r.URL.Query().Get("productType"))
	var (
		configs []services.CustomizationConfig
		err     error
	)
	if productType != "" {
		configs, err = h.settings.ListCustomizationsFor(ctx, productType)
	} else {
		configs, err = h.settings.ListCustomizations(ctx)
	}
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("settings_unavailable", "failed to list customizations", http.StatusServiceUnavailable))
		return
	}

	payload := make([]customizationPayload, 0, len(configs))
	for _, cfg := range configs {
		payload = append(payload, buildCustomizationPayload(cfg))
	}
	writeJSONResponse(w, http.StatusOK, map[string][]customizationPayload{"customizations": payload})
}

func (h *PublicHandlers) writeCatalogError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCatalogInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
	}
}
