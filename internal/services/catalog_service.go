package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"

	"github.com/fluteatelier/api/internal/domain"
	"github.com/fluteatelier/api/internal/platform/storage"
	"github.com/fluteatelier/api/internal/repositories"
)

var (
	// ErrCatalogInvalidInput indicates the caller supplied invalid input.
	ErrCatalogInvalidInput = errors.New("catalog service: invalid input")
	// ErrCatalogUnavailable indicates the catalog backend cannot be reached.
	ErrCatalogUnavailable = errors.New("catalog service: unavailable")
	// ErrProductNotFound indicates the requested product does not exist.
	ErrProductNotFound = errors.New("catalog service: product not found")
	// ErrProductSlugTaken indicates the slug is already used by another product.
	ErrProductSlugTaken = errors.New("catalog service: slug already in use")
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

var allowedImageContentTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

type imageUploadSigner interface {
	SignUpload(ctx context.Context, object string, contentType string) (ProductImageUpload, error)
}

// CatalogServiceDeps wires persistence and media signing behind the catalog.
type CatalogServiceDeps struct {
	Products    repositories.ProductRepository
	Uploads     imageUploadSigner
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type catalogService struct {
	products  repositories.ProductRepository
	uploads   imageUploadSigner
	now       func() time.Time
	newID     func() string
	logger    func(ctx context.Context, event string, fields map[string]any)
	sanitizer *bluemonday.Policy
}

// NewCatalogService constructs a CatalogService validating its dependencies.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Products == nil {
		return nil, errors.New("catalog service: product repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &catalogService{
		products:  deps.Products,
		uploads:   deps.Uploads,
		now:       func() time.Time { return clock().UTC() },
		newID:     idGen,
		logger:    logger,
		sanitizer: bluemonday.UGCPolicy(),
	}, nil
}

// GetProduct loads a product by ID.
func (s *catalogService) GetProduct(ctx context.Context, productID string) (Product, error) {
	if s == nil || s.products == nil {
		return Product{}, ErrCatalogUnavailable
	}
	id := strings.TrimSpace(productID)
	if id == "" {
		return Product{}, ErrCatalogInvalidInput
	}
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return Product{}, s.translateRepoError(err)
	}
	return product, nil
}

// GetProductBySlug loads a product by its storefront slug.
func (s *catalogService) GetProductBySlug(ctx context.Context, slug string) (Product, error) {
	if s == nil || s.products == nil {
		return Product{}, ErrCatalogUnavailable
	}
	normalized := strings.ToLower(strings.TrimSpace(slug))
	if normalized == "" {
		return Product{}, ErrCatalogInvalidInput
	}
	product, err := s.products.FindBySlug(ctx, normalized)
	if err != nil {
		return Product{}, s.translateRepoError(err)
	}
	return product, nil
}

// ListProducts lists products. Non-admin callers only see active products.
func (s *catalogService) ListProducts(ctx context.Context, filter ProductListFilter) (domain.CursorPage[Product], error) {
	if s == nil || s.products == nil {
		return domain.CursorPage[Product]{}, ErrCatalogUnavailable
	}
	page, err := s.products.List(ctx, repositories.ProductListFilter{
		ProductType: strings.TrimSpace(filter.ProductType),
		OnlyActive:  !filter.IncludeHidden,
		Search:      strings.TrimSpace(filter.Search),
		Sort:        filter.Sort,
		Pager:       filter.Pager,
	})
	if err != nil {
		return domain.CursorPage[Product]{}, s.translateRepoError(err)
	}
	return page, nil
}

// CreateProduct persists a new product after validation.
func (s *catalogService) CreateProduct(ctx context.Context, cmd UpsertProductCommand) (Product, error) {
	if s == nil || s.products == nil {
		return Product{}, ErrCatalogUnavailable
	}
	product, err := s.productFromCommand(cmd)
	if err != nil {
		return Product{}, err
	}
	if err := s.ensureSlugFree(ctx, product.Slug, ""); err != nil {
		return Product{}, err
	}

	now := s.now()
	product.ID = firstNonEmpty(cmd.ProductID, s.newID())
	product.CreatedAt = now
	product.UpdatedAt = now
	if err := s.products.Insert(ctx, product); err != nil {
		if isRepoConflict(err) {
			return Product{}, ErrProductSlugTaken
		}
		return Product{}, ErrCatalogUnavailable
	}

	s.logger(ctx, "catalog.product_created", map[string]any{"productId": product.ID, "actor": cmd.Actor})
	return product, nil
}

// UpdateProduct replaces an existing product definition.
func (s *catalogService) UpdateProduct(ctx context.Context, cmd UpsertProductCommand) (Product, error) {
	if s == nil || s.products == nil {
		return Product{}, ErrCatalogUnavailable
	}
	id := strings.TrimSpace(cmd.ProductID)
	if id == "" {
		return Product{}, ErrCatalogInvalidInput
	}
	product, err := s.productFromCommand(cmd)
	if err != nil {
		return Product{}, err
	}

	existing, err := s.products.FindByID(ctx, id)
	if err != nil {
		return Product{}, s.translateRepoError(err)
	}
	if product.Slug != existing.Slug {
		if err := s.ensureSlugFree(ctx, product.Slug, id); err != nil {
			return Product{}, err
		}
	}

	product.ID = existing.ID
	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = s.now()
	if err := s.products.Update(ctx, product); err != nil {
		return Product{}, s.translateRepoError(err)
	}

	s.logger(ctx, "catalog.product_updated", map[string]any{"productId": product.ID, "actor": cmd.Actor})
	return product, nil
}

// DeleteProduct removes a product from the catalog. Orders keep their frozen
// line items; carts referencing the product surface it as missing.
func (s *catalogService) DeleteProduct(ctx context.Context, productID string, actor string) error {
	if s == nil || s.products == nil {
		return ErrCatalogUnavailable
	}
	id := strings.TrimSpace(productID)
	if id == "" {
		return ErrCatalogInvalidInput
	}
	if err := s.products.Delete(ctx, id); err != nil {
		return s.translateRepoError(err)
	}
	s.logger(ctx, "catalog.product_deleted", map[string]any{"productId": id, "actor": actor})
	return nil
}

// IssueImageUpload returns a signed URL the admin client uploads a product
// image to directly. The object key is server-chosen.
func (s *catalogService) IssueImageUpload(ctx context.Context, cmd ProductImageUploadCommand) (ProductImageUpload, error) {
	if s == nil || s.products == nil {
		return ProductImageUpload{}, ErrCatalogUnavailable
	}
	if s.uploads == nil {
		return ProductImageUpload{}, ErrCatalogUnavailable
	}
	productID := strings.TrimSpace(cmd.ProductID)
	contentType := strings.ToLower(strings.TrimSpace(cmd.ContentType))
	if productID == "" {
		return ProductImageUpload{}, ErrCatalogInvalidInput
	}
	ext, ok := allowedImageContentTypes[contentType]
	if !ok {
		return ProductImageUpload{}, fmt.Errorf("%w: unsupported content type %q", ErrCatalogInvalidInput, cmd.ContentType)
	}

	if _, err := s.products.FindByID(ctx, productID); err != nil {
		return ProductImageUpload{}, s.translateRepoError(err)
	}

	object, err := storage.BuildObjectPath(storage.PurposeProductImage, storage.PathParams{
		ProductID: productID,
		FileName:  s.newID() + ext,
	})
	if err != nil {
		return ProductImageUpload{}, fmt.Errorf("%w: %v", ErrCatalogInvalidInput, err)
	}
	upload, err := s.uploads.SignUpload(ctx, object, contentType)
	if err != nil {
		return ProductImageUpload{}, ErrCatalogUnavailable
	}
	s.logger(ctx, "catalog.image_upload_issued", map[string]any{
		"productId": productID,
		"object":    object,
		"actor":     cmd.Actor,
	})
	return upload, nil
}

func (s *catalogService) productFromCommand(cmd UpsertProductCommand) (domain.Product, error) {
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return domain.Product{}, fmt.Errorf("%w: name is required", ErrCatalogInvalidInput)
	}
	slug := strings.ToLower(strings.TrimSpace(cmd.Slug))
	if !slugPattern.MatchString(slug) {
		return domain.Product{}, fmt.Errorf("%w: slug must be lowercase letters, digits, and hyphens", ErrCatalogInvalidInput)
	}
	productType := strings.TrimSpace(cmd.ProductType)
	if productType == "" {
		return domain.Product{}, fmt.Errorf("%w: product type is required", ErrCatalogInvalidInput)
	}
	if cmd.Price <= 0 {
		return domain.Product{}, fmt.Errorf("%w: price must be positive", ErrCatalogInvalidInput)
	}
	if cmd.MRP < 0 || (cmd.MRP > 0 && cmd.MRP < cmd.Price) {
		return domain.Product{}, fmt.Errorf("%w: mrp must be zero or at least the price", ErrCatalogInvalidInput)
	}
	if cmd.ShippingCostOverride < 0 {
		return domain.Product{}, fmt.Errorf("%w: shipping override cannot be negative", ErrCatalogInvalidInput)
	}
	if cmd.Stock < 0 {
		return domain.Product{}, fmt.Errorf("%w: stock cannot be negative", ErrCatalogInvalidInput)
	}

	images := make([]string, 0, len(cmd.Images))
	for _, image := range cmd.Images {
		if trimmed := strings.TrimSpace(image); trimmed != "" {
			images = append(images, trimmed)
		}
	}

	return domain.Product{
		Slug:                 slug,
		Name:                 name,
		Description:          s.sanitizer.Sanitize(strings.TrimSpace(cmd.Description)),
		ProductType:          productType,
		Price:                cmd.Price,
		MRP:                  cmd.MRP,
		ShippingCostOverride: cmd.ShippingCostOverride,
		Images:               images,
		Stock:                cmd.Stock,
		IsActive:             cmd.IsActive,
	}, nil
}

func (s *catalogService) ensureSlugFree(ctx context.Context, slug string, selfID string) error {
	existing, err := s.GetProductBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return nil
		}
		return err
	}
	if existing.ID == selfID {
		return nil
	}
	return ErrProductSlugTaken
}

func (s *catalogService) translateRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case isRepoNotFound(err):
		return ErrProductNotFound
	default:
		return ErrCatalogUnavailable
	}
}
