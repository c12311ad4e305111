package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/fluteatelier/api/internal/domain"
	"github.com/fluteatelier/api/internal/services"
)

func TestPublicHandlersListProducts(t *testing.T) {
	service := &stubCatalogService{
		listFunc: func(ctx context.Context, filter services.ProductListFilter) (domain.CursorPage[services.Product], error) {
			if filter.ProductType != "flute" {
				t.Fatalf("expected type filter flute, got %q", filter.ProductType)
			}
			if filter.Search != "bansuri" {
				t.Fatalf("expected search bansuri, got %q", filter.Search)
			}
			if filter.IncludeHidden {
				t.Fatalf("public listing must not include hidden products")
			}
			return domain.CursorPage[services.Product]{
				Items: []services.Product{
					{ID: "prod-1", Slug: "bansuri-e-base", Name: "Bansuri E Base", ProductType: "flute", Price: 4500, IsActive: true},
				},
				NextPageToken: "tok-next",
			}, nil
		},
	}

	handler := NewPublicHandlers(service, nil, nil, nil)
	router := chi.NewRouter()
	router.Route("/public", handler.Routes)

	req := httptest.NewRequest(http.MethodGet, "/public/products?type=flute&q=bansuri", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp productListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Products) != 1 || resp.Products[0].Slug != "bansuri-e-base" {
		t.Fatalf("unexpected products %#v", resp.Products)
	}
	if resp.NextPageToken != "tok-next" {
		t.Fatalf("expected next page token, got %q", resp.NextPageToken)
	}
}

func TestPublicHandlersGetProductHidesInactive(t *testing.T) {
	service := &stubCatalogService{
		getBySlugFunc: func(ctx context.Context, slug string) (services.Product, error) {
			return services.Product{ID: "prod-1", Slug: slug, Name: "Retired Flute", IsActive: false}, nil
		},
	}

	handler := NewPublicHandlers(service, nil, nil, nil)
	router := chi.NewRouter()
	router.Route("/public", handler.Routes)

	req := httptest.NewRequest(http.MethodGet, "/public/products/retired-flute", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 for inactive product, got %d", rr.Code)
	}
}

func TestPublicHandlersGetProductNotFound(t *testing.T) {
	service := &stubCatalogService{
		getBySlugFunc: func(ctx context.Context, slug string) (services.Product, error) {
			return services.Product{}, services.ErrProductNotFound
		},
	}

	handler := NewPublicHandlers(service, nil, nil, nil)
	router := chi.NewRouter()
	router.Route("/public", handler.Routes)

	req := httptest.NewRequest(http.MethodGet, "/public/products/missing", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestPublicHandlersListProductReviews(t *testing.T) {
	catalog := &stubCatalogService{
		getBySlugFunc: func(ctx context.Context, slug string) (services.Product, error) {
			return services.Product{ID: "prod-9", Slug: slug, IsActive: true}, nil
		},
	}
	reviews := &stubReviewService{
		listApprovedFunc: func(ctx context.Context, productID string, pager services.Pagination) (domain.CursorPage[services.Review], error) {
			if productID != "prod-9" {
				t.Fatalf("expected slug resolved to prod-9, got %q", productID)
			}
			return domain.CursorPage[services.Review]{
				Items: []services.Review{{ID: "rev-1", ProductID: productID, Rating: 5, Comment: "lovely tone"}},
			}, nil
		},
	}

	handler := NewPublicHandlers(catalog, nil, nil, reviews)
	router := chi.NewRouter()
	router.Route("/public", handler.Routes)

	req := httptest.NewRequest(http.MethodGet, "/public/products/bansuri-e-base/reviews", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp reviewListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Reviews) != 1 || resp.Reviews[0].Rating != 5 {
		t.Fatalf("unexpected reviews %#v", resp.Reviews)
	}
}

func TestPublicHandlersListSectionsOnlyVisible(t *testing.T) {
	settings := &stubSettingsService{
		listSectionsFunc: func(ctx context.Context, onlyVisible bool) ([]services.HomepageSection, error) {
			if !onlyVisible {
				t.Fatalf("public sections must request visible only")
			}
			return []services.HomepageSection{{ID: "sec-1", Title: "New arrivals", Kind: "product_grid", IsVisible: true}}, nil
		},
	}

	handler := NewPublicHandlers(nil, settings, nil, nil)
	router := chi.NewRouter()
	router.Route("/public", handler.Routes)

	req := httptest.NewRequest(http.MethodGet, "/public/sections", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
}

func TestPublicHandlersListCustomizationsByType(t *testing.T) {
	settings := &stubSettingsService{
		listCustomizationsForFn: func(ctx context.Context, productType string) ([]services.CustomizationConfig, error) {
			if productType != "flute" {
				t.Fatalf("expected product type flute, got %q", productType)
			}
			return []services.CustomizationConfig{{ID: "cfg-1", Label: "Engraving"}}, nil
		},
	}

	handler := NewPublicHandlers(nil, settings, nil, nil)
	router := chi.NewRouter()
	router.Route("/public", handler.Routes)

	req := httptest.NewRequest(http.MethodGet, "/public/customizations?productType=flute", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
}

func TestPublicHandlersCatalogUnavailable(t *testing.T) {
	handler := NewPublicHandlers(nil, nil, nil, nil)
	router := chi.NewRouter()
	router.Route("/public", handler.Routes)

	req := httptest.NewRequest(http.MethodGet, "/public/products", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}

type stubCatalogService struct {
	getFunc         func(ctx context.Context, productID string) (services.Product, error)
	getBySlugFunc   func(ctx context.Context, slug string) (services.Product, error)
	listFunc        func(ctx context.Context, filter services.ProductListFilter) (domain.CursorPage[services.Product], error)
	createFunc      func(ctx context.Context, cmd services.UpsertProductCommand) (services.Product, error)
	updateFunc      func(ctx context.Context, cmd services.UpsertProductCommand) (services.Product, error)
	deleteFunc      func(ctx context.Context, productID string, actor string) error
	imageUploadFunc func(ctx context.Context, cmd services.ProductImageUploadCommand) (services.ProductImageUpload, error)
}

func (s *stubCatalogService) GetProduct(ctx context.Context, productID string) (services.Product, error) {
	if s.getFunc != nil {
		return s.getFunc(ctx, productID)
	}
	return services.Product{}, errors.New("not implemented")
}

func (s *stubCatalogService) GetProductBySlug(ctx context.Context, slug string) (services.Product, error) {
	if s.getBySlugFunc != nil {
		return s.getBySlugFunc(ctx, slug)
	}
	return services.Product{}, errors.New("not implemented")
}

func (s *stubCatalogService) ListProducts(ctx context.Context, filter services.ProductListFilter) (domain.CursorPage[services.Product], error) {
	if s.listFunc != nil {
		return s.listFunc(ctx, filter)
	}
	return domain.CursorPage[services.Product]{}, errors.New("not implemented")
}

func (s *stubCatalogService) CreateProduct(ctx context.Context, cmd services.UpsertProductCommand) (services.Product, error) {
	if s.createFunc != nil {
		return s.createFunc(ctx, cmd)
	}
	return services.Product{}, errors.New("not implemented")
}

func (s *stubCatalogService) UpdateProduct(ctx context.Context, cmd services.UpsertProductCommand) (services.Product, error) {
	if s.updateFunc != nil {
		return s.updateFunc(ctx, cmd)
	}
	return services.Product{}, errors.New("not implemented")
}

func (s *stubCatalogService) DeleteProduct(ctx context.Context, productID string, actor string) error {
	if s.deleteFunc != nil {
		return s.deleteFunc(ctx, productID, actor)
	}
	return errors.New("not implemented")
}

func (s *stubCatalogService) IssueImageUpload(ctx context.Context, cmd services.ProductImageUploadCommand) (services.ProductImageUpload, error) {
	if s.imageUploadFunc != nil {
		return s.imageUploadFunc(ctx, cmd)
	}
	return services.ProductImageUpload{}, errors.New("not implemented")
}

type stubSettingsService struct {
	getSettingsFunc         func(ctx context.Context) (services.StoreSettings, error)
	updateShippingFunc      func(ctx context.Context, cmd services.UpdateShippingRuleCommand) (services.StoreSettings, error)
	listCustomizationsFunc  func(ctx context.Context) ([]services.CustomizationConfig, error)
	listCustomizationsForFn func(ctx context.Context, productType string) ([]services.CustomizationConfig, error)
	upsertCustomizationFunc func(ctx context.Context, cmd services.UpsertCustomizationCommand) (services.CustomizationConfig, error)
	deleteCustomizationFunc func(ctx context.Context, configID string, actor string) error
	listSectionsFunc        func(ctx context.Context, onlyVisible bool) ([]services.HomepageSection, error)
	upsertSectionFunc       func(ctx context.Context, cmd services.UpsertHomepageSectionCommand) (services.HomepageSection, error)
	deleteSectionFunc       func(ctx context.Context, sectionID string, actor string) error
}

func (s *stubSettingsService) GetStoreSettings(ctx context.Context) (services.StoreSettings, error) {
	if s.getSettingsFunc != nil {
		return s.getSettingsFunc(ctx)
	}
	return services.StoreSettings{}, errors.New("not implemented")
}

func (s *stubSettingsService) UpdateShippingRule(ctx context.Context, cmd services.UpdateShippingRuleCommand) (services.StoreSettings, error) {
	if s.updateShippingFunc != nil {
		return s.updateShippingFunc(ctx, cmd)
	}
	return services.StoreSettings{}, errors.New("not implemented")
}

func (s *stubSettingsService) ListCustomizations(ctx context.Context) ([]services.CustomizationConfig, error) {
	if s.listCustomizationsFunc != nil {
		return s.listCustomizationsFunc(ctx)
	}
	return nil, errors.New("not implemented")
}

func (s *stubSettingsService) ListCustomizationsFor(ctx context.Context, productType string) ([]services.CustomizationConfig, error) {
	if s.listCustomizationsForFn != nil {
		return s.listCustomizationsForFn(ctx, productType)
	}
	return nil, errors.New("not implemented")
}

func (s *stubSettingsService) UpsertCustomization(ctx context.Context, cmd services.UpsertCustomizationCommand) (services.CustomizationConfig, error) {
	if s.upsertCustomizationFunc != nil {
		return s.upsertCustomizationFunc(ctx, cmd)
	}
	return services.CustomizationConfig{}, errors.New("not implemented")
}

func (s *stubSettingsService) DeleteCustomization(ctx context.Context, configID string, actor string) error {
	if s.deleteCustomizationFunc != nil {
		return s.deleteCustomizationFunc(ctx, configID, actor)
	}
	return errors.New("not implemented")
}

func (s *stubSettingsService) ListHomepageSections(ctx context.Context, onlyVisible bool) ([]services.HomepageSection, error) {
	if s.listSectionsFunc != nil {
		return s.listSectionsFunc(ctx, onlyVisible)
	}
	return nil, errors.New("not implemented")
}

func (s *stubSettingsService) UpsertHomepageSection(ctx context.Context, cmd services.UpsertHomepageSectionCommand) (services.HomepageSection, error) {
	if s.upsertSectionFunc != nil {
		return s.upsertSectionFunc(ctx, cmd)
	}
	return services.HomepageSection{}, errors.New("not implemented")
}

func (s *stubSettingsService) DeleteHomepageSection(ctx context.Context, sectionID string, actor string) error {
	if s.deleteSectionFunc != nil {
		return s.deleteSectionFunc(ctx, sectionID, actor)
	}
	return errors.New("not implemented")
}

type stubReviewService struct {
	createFunc       func(ctx context.Context, cmd services.CreateReviewCommand) (services.Review, error)
	listApprovedFunc func(ctx context.Context, productID string, pager services.Pagination) (domain.CursorPage[services.Review], error)
	listFunc         func(ctx context.Context, filter services.ReviewListFilter) (domain.CursorPage[services.Review], error)
	moderateFunc     func(ctx context.Context, cmd services.ModerateReviewCommand) (services.Review, error)
	replyFunc        func(ctx context.Context, cmd services.ReviewReplyCommand) (services.Review, error)
}

func (s *stubReviewService) Create(ctx context.Context, cmd services.CreateReviewCommand) (services.Review, error) {
	if s.createFunc != nil {
		return s.createFunc(ctx, cmd)
	}
	return services.Review{}, errors.New("not implemented")
}

func (s *stubReviewService) ListApprovedByProduct(ctx context.Context, productID string, pager services.Pagination) (domain.CursorPage[services.Review], error) {
	if s.listApprovedFunc != nil {
		return s.listApprovedFunc(ctx, productID, pager)
	}
	return domain.CursorPage[services.Review]{}, errors.New("not implemented")
}

func (s *stubReviewService) List(ctx context.Context, filter services.ReviewListFilter) (domain.CursorPage[services.Review], error) {
	if s.listFunc != nil {
		return s.listFunc(ctx, filter)
	}
	return domain.CursorPage[services.Review]{}, errors.New("not implemented")
}

func (s *stubReviewService) Moderate(ctx context.Context, cmd services.ModerateReviewCommand) (services.Review, error) {
	if s.moderateFunc != nil {
		return s.moderateFunc(ctx, cmd)
	}
	return services.Review{}, errors.New("not implemented")
}

func (s *stubReviewService) StoreReply(ctx context.Context, cmd services.ReviewReplyCommand) (services.Review, error) {
	if s.replyFunc != nil {
		return s.replyFunc(ctx, cmd)
	}
	return services.Review{}, errors.New("not implemented")
}
