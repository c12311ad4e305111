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

const maxAdminCatalogBodySize = 32 * 1024

// AdminCatalogHandlers exposes product management to admin operators,
// including signed upload URLs for product imagery.
type AdminCatalogHandlers struct {
	authn *auth.Authenticator
	svc   services.CatalogService
}

// NewAdminCatalogHandlers constructs the admin catalog handlers.
func NewAdminCatalogHandlers(authn *auth.Authenticator, svc services.CatalogService) *AdminCatalogHandlers {
	return &AdminCatalogHandlers{authn: authn, svc: svc}
}

// Routes wires the admin catalog endpoints onto the provided router.
func (h *AdminCatalogHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	group := r
	if h.authn != nil {
		group = r.With(h.authn.RequireFirebaseAuth(auth.RoleAdmin))
	}
	group.Get("/products", h.listProducts)
	group.Post("/products", h.createProduct)
	group.Get("/products/{productID}", h.getProduct)
	group.Put("/products/{productID}", h.updateProduct)
	group.Delete("/products/{productID}", h.deleteProduct)
	group.Post("/products/{productID}/images", h.issueImageUpload)
}

func (h *AdminCatalogHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := h.requireAdmin(ctx, w); !ok {
		return
	}

	pager, err := parsePager(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	page, err := h.svc.ListProducts(ctx, services.ProductListFilter{
		ProductType:   strings.TrimSpace(r.URL.Query().Get("type")),
		Search:        strings.TrimSpace(r.URL.Query().Get("q")),
		IncludeHidden: true,
		Pager:         pager,
	})
	if err != nil {
		writeAdminCatalogError(ctx, w, err)
		return
	}

	resp := productListResponse{Products: make([]productPayload, 0, len(page.Items)), NextPageToken: page.NextPageToken}
	for _, product := range page.Items {
		resp.Products = append(resp.Products, buildProductPayload(product))
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

func (h *AdminCatalogHandlers) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := h.requireAdmin(ctx, w); !ok {
		return
	}

	product, err := h.svc.GetProduct(ctx, chi.URLParam(r, "productID"))
	if err != nil {
		writeAdminCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]productPayload{"product": buildProductPayload(product)})
}

type upsertProductRequest struct {
	Slug                 string   `json:"slug"`
	Name                 string   `json:"name"`
	Description          string   `json:"description"`
	ProductType          string   `json:"productType"`
	Price                int64    `json:"price"`
	MRP                  int64    `json:"mrp"`
	ShippingCostOverride int64    `json:"shippingCostOverride"`
	Images               []string `json:"images"`
	Stock                int      `json:"stock"`
	IsActive             bool     `json:"isActive"`
}

func (req upsertProductRequest) command(productID, actor string) services.UpsertProductCommand {
	return services.UpsertProductCommand{
		ProductID:            productID,
		Actor:                actor,
		Slug:                 strings.TrimSpace(req.Slug),
		Name:                 strings.TrimSpace(req.Name),
		Description:          req.Description,
		ProductType:          strings.TrimSpace(req.ProductType),
		Price:                req.Price,
		MRP:                  req.MRP,
		ShippingCostOverride: req.ShippingCostOverride,
		Images:               req.Images,
		Stock:                req.Stock,
		IsActive:             req.IsActive,
	}
}

func (h *AdminCatalogHandlers) createProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireAdmin(ctx, w)
	if !ok {
		return
	}

	var req upsertProductRequest
	if err := decodeJSONBody(r, maxAdminCatalogBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	product, err := h.svc.CreateProduct(ctx, req.command("", actor))
	if err != nil {
		writeAdminCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, map[string]productPayload{"product": buildProductPayload(product)})
}

func (h *AdminCatalogHandlers) updateProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireAdmin(ctx, w)
	if !ok {
		return
	}

	var req upsertProductRequest
	if err := decodeJSONBody(r, maxAdminCatalogBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	product, err := h.svc.UpdateProduct(ctx, req.command(chi.URLParam(r, "productID"), actor))
	if err != nil {
		writeAdminCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]productPayload{"product": buildProductPayload(product)})
}

func (h *AdminCatalogHandlers) deleteProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireAdmin(ctx, w)
	if !ok {
		return
	}

	if err := h.svc.DeleteProduct(ctx, chi.URLParam(r, "productID"), actor); err != nil {
		writeAdminCatalogError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type imageUploadRequest struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
}

type imageUploadResponse struct {
	URL       string            `json:"url"`
	ObjectKey string            `json:"objectKey"`
	ExpiresAt string            `json:"expiresAt"`
	Headers   map[string]string `json:"headers,omitempty"`
}

func (h *AdminCatalogHandlers) issueImageUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireAdmin(ctx, w)
	if !ok {
		return
	}

	var req imageUploadRequest
	if err := decodeJSONBody(r, maxAdminCatalogBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	upload, err := h.svc.IssueImageUpload(ctx, services.ProductImageUploadCommand{
		ProductID:   chi.URLParam(r, "productID"),
		Actor:       actor,
		FileName:    strings.TrimSpace(req.FileName),
		ContentType: strings.TrimSpace(req.ContentType),
	})
	if err != nil {
		writeAdminCatalogError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, imageUploadResponse{
		URL:       upload.URL,
		ObjectKey: upload.ObjectKey,
		ExpiresAt: formatTime(upload.ExpiresAt),
		Headers:   upload.Headers,
	})
}

func (h *AdminCatalogHandlers) requireAdmin(ctx context.Context, w http.ResponseWriter) (string, bool) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return "", false
	}
	if h.svc == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return "", false
	}
	return identity.UID, true
}

func writeAdminCatalogError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
	case errors.Is(err, services.ErrProductSlugTaken):
		httpx.WriteError(ctx, w, httpx.NewError("slug_taken", "slug already in use", http.StatusConflict))
	case errors.Is(err, services.ErrCatalogInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
	}
}
