package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fluteatelier/api/internal/domain"
	"github.com/fluteatelier/api/internal/platform/auth"
	"github.com/fluteatelier/api/internal/services"
)

func TestAdminListProductsIncludesHidden(t *testing.T) {
	service := &stubCatalogService{
		listFunc: func(ctx context.Context, filter services.ProductListFilter) (domain.CursorPage[services.Product], error) {
			if !filter.IncludeHidden {
				t.Fatal("admin listing must include hidden products")
			}
			return domain.CursorPage[services.Product]{
				Items: []services.Product{
					{ID: "prod-1", Slug: "bansuri-c", Name: "Bansuri in C", IsActive: true},
					{ID: "prod-2", Slug: "headjoint-ag", Name: "Silver Headjoint", IsActive: false},
				},
			}, nil
		},
	}
	handler := NewAdminCatalogHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/admin", handler.Routes)

	req := httptest.NewRequest(http.MethodGet, "/admin/products", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "admin-1"}))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp productListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Products) != 2 {
		t.Fatalf("expected inactive products in admin listing, got %d", len(resp.Products))
	}
}

func TestAdminCreateProduct(t *testing.T) {
	var captured services.UpsertProductCommand
	service := &stubCatalogService{
		createFunc: func(ctx context.Context, cmd services.UpsertProductCommand) (services.Product, error) {
			captured = cmd
			return services.Product{
				ID:    "prod-9",
				Slug:  cmd.Slug,
				Name:  cmd.Name,
				Price: cmd.Price,
				MRP:   cmd.MRP,
			}, nil
		},
	}
	handler := NewAdminCatalogHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/admin", handler.Routes)

	body := `{"slug":" bansuri-e ","name":"Bansuri in E","productType":"flute","price":450000,"mrp":500000,"stock":4,"isActive":true}`
	req := httptest.NewRequest(http.MethodPost, "/admin/products", strings.NewReader(body))
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "admin-1"}))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.ProductID != "" || captured.Actor != "admin-1" {
		t.Fatalf("unexpected command %+v", captured)
	}
	if captured.Slug != "bansuri-e" {
		t.Fatalf("slug must be trimmed, got %q", captured.Slug)
	}
	var resp map[string]productPayload
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["product"].ID != "prod-9" || resp["product"].Price != 450000 {
		t.Fatalf("unexpected product %+v", resp["product"])
	}
}

func TestAdminCreateProductSlugTaken(t *testing.T) {
	service := &stubCatalogService{
		createFunc: func(ctx context.Context, cmd services.UpsertProductCommand) (services.Product, error) {
			return services.Product{}, services.ErrProductSlugTaken
		},
	}
	handler := NewAdminCatalogHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/admin", handler.Routes)

	body := `{"slug":"bansuri-c","name":"Bansuri in C","productType":"flute","price":450000,"mrp":500000}`
	req := httptest.NewRequest(http.MethodPost, "/admin/products", strings.NewReader(body))
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "admin-1"}))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAdminUpdateProductCarriesID(t *testing.T) {
	service := &stubCatalogService{
		updateFunc: func(ctx context.Context, cmd services.UpsertProductCommand) (services.Product, error) {
			if cmd.ProductID != "prod-2" {
				t.Fatalf("expected path id on update, got %q", cmd.ProductID)
			}
			return services.Product{ID: cmd.ProductID, Name: cmd.Name}, nil
		},
	}
	handler := NewAdminCatalogHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/admin", handler.Routes)

	body := `{"slug":"headjoint-ag","name":"Silver Headjoint","productType":"accessory","price":120000,"mrp":120000}`
	req := httptest.NewRequest(http.MethodPut, "/admin/products/prod-2", strings.NewReader(body))
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "admin-1"}))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAdminDeleteProduct(t *testing.T) {
	deleted := ""
	service := &stubCatalogService{
		deleteFunc: func(ctx context.Context, productID, actor string) error {
			if actor != "admin-1" {
				t.Fatalf("unexpected actor %q", actor)
			}
			deleted = productID
			return nil
		},
	}
	handler := NewAdminCatalogHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/admin", handler.Routes)

	req := httptest.NewRequest(http.MethodDelete, "/admin/products/prod-2", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "admin-1"}))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}
	if deleted != "prod-2" {
		t.Fatalf("expected prod-2 deleted, got %q", deleted)
	}
}

func TestAdminIssueImageUpload(t *testing.T) {
	expires := time.Date(2026, 8, 29, 13, 0, 0, 0, time.UTC)
	service := &stubCatalogService{
		imageUploadFunc: func(ctx context.Context, cmd services.ProductImageUploadCommand) (services.ProductImageUpload, error) {
			if cmd.ProductID != "prod-2" || cmd.FileName != "front.jpg" || cmd.ContentType != "image/jpeg" {
				t.Fatalf("unexpected command %+v", cmd)
			}
			return services.ProductImageUpload{
				URL:       "https://storage.example.com/signed",
				ObjectKey: "products/prod-2/front.jpg",
				ExpiresAt: expires,
				Headers:   map[string]string{"Content-Type": "image/jpeg"},
			}, nil
		},
	}
	handler := NewAdminCatalogHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/admin", handler.Routes)

	body := `{"fileName":" front.jpg ","contentType":"image/jpeg"}`
	req := httptest.NewRequest(http.MethodPost, "/admin/products/prod-2/images", strings.NewReader(body))
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "admin-1"}))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp imageUploadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ObjectKey != "products/prod-2/front.jpg" || resp.URL == "" {
		t.Fatalf("unexpected upload response %+v", resp)
	}
	if resp.Headers["Content-Type"] != "image/jpeg" {
		t.Fatalf("expected content type header echoed, got %+v", resp.Headers)
	}
}

func TestAdminCatalogUnauthenticated(t *testing.T) {
	handler := NewAdminCatalogHandlers(nil, &stubCatalogService{})
	router := chi.NewRouter()
	router.Route("/admin", handler.Routes)

	req := httptest.NewRequest(http.MethodGet, "/admin/products", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", rec.Code, rec.Body.String())
	}
}
