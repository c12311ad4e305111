package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/fluteatelier/api/internal/domain"
	pfirestore "github.com/fluteatelier/api/internal/platform/firestore"
	"github.com/fluteatelier/api/internal/repositories"
)

const productCollection = "products"

// firestoreInBatch is the maximum number of values Firestore accepts for an
// "in" clause.
const firestoreInBatch = 30

// ProductRepository persists catalog products in Firestore.
type ProductRepository struct {
	coll     *pfirestore.Collection[productDocument]
	provider *pfirestore.Provider
}

// NewProductRepository constructs a Firestore-backed product repository.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	return &ProductRepository{
		coll:     pfirestore.NewCollection[productDocument](provider, productCollection),
		provider: provider,
	}, nil
}

// Insert creates a new product document. Inserting an existing ID is a
// conflict.
func (r *ProductRepository) Insert(ctx context.Context, product domain.Product) error {
	ref, err := r.coll.Doc(ctx, strings.TrimSpace(product.ID))
	if err != nil {
		return err
	}
	if _, err := ref.Create(ctx, encodeProductDocument(product)); err != nil {
		return pfirestore.WrapError("products.insert", err)
	}
	return nil
}

// Update replaces an existing product document.
func (r *ProductRepository) Update(ctx context.Context, product domain.Product) error {
	id := strings.TrimSpace(product.ID)
	if id == "" {
		return errors.New("product repository: product id is required")
	}
	if _, err := r.coll.Get(ctx, id); err != nil {
		return err
	}
	if _, err := r.coll.Set(ctx, id, encodeProductDocument(product)); err != nil {
		return err
	}
	return nil
}

// Delete removes a product document.
func (r *ProductRepository) Delete(ctx context.Context, productID string) error {
	return r.coll.Delete(ctx, strings.TrimSpace(productID))
}

// FindByID loads a product by document ID.
func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	doc, err := r.coll.Get(ctx, strings.TrimSpace(productID))
	if err != nil {
		return domain.Product{}, err
	}
	return decodeProductDocument(doc.ID, doc.Data), nil
}

// FindBySlug loads a product by its unique slug.
func (r *ProductRepository) FindBySlug(ctx context.Context, slug string) (domain.Product, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		return domain.Product{}, pfirestore.NotFoundError("products.findBySlug", errors.New("slug is required"))
	}
	docs, err := r.coll.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("slug", "==", slug).Limit(1)
	})
	if err != nil {
		return domain.Product{}, err
	}
	if len(docs) == 0 {
		return domain.Product{}, pfirestore.NotFoundError("products.findBySlug", fmt.Errorf("slug %q not found", slug))
	}
	return decodeProductDocument(docs[0].ID, docs[0].Data), nil
}

// FindByIDs loads the given products in one round trip per "in" batch.
// Missing IDs are silently omitted; callers decide how to treat gaps.
func (r *ProductRepository) FindByIDs(ctx context.Context, productIDs []string) ([]domain.Product, error) {
	ids := make([]string, 0, len(productIDs))
	seen := make(map[string]struct{}, len(productIDs))
	for _, id := range productIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	var products []domain.Product
	for start := 0; start < len(ids); start += firestoreInBatch {
		end := start + firestoreInBatch
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]
		docs, err := r.coll.Query(ctx, func(q firestore.Query) firestore.Query {
			return q.Where(firestore.DocumentID, "in", batch)
		})
		if err != nil {
			return nil, err
		}
		for _, doc := range docs {
			products = append(products, decodeProductDocument(doc.ID, doc.Data))
		}
	}
	return products, nil
}

// List pages through the catalog ordered by creation time, newest first by
// default. Search matches case-insensitive name prefixes.
func (r *ProductRepository) List(ctx context.Context, filter repositories.ProductListFilter) (domain.CursorPage[domain.Product], error) {
	limit := filter.Pager.PageSize
	if limit < 0 {
		limit = 0
	}
	fetchLimit := limit
	if limit > 0 {
		fetchLimit = limit + 1
	}

	var startAfter []any
	if token := strings.TrimSpace(filter.Pager.PageToken); token != "" {
		ts, id, err := decodeListToken(token)
		if err != nil {
			return domain.CursorPage[domain.Product]{}, fmt.Errorf("product repository: invalid page token: %w", err)
		}
		startAfter = []any{ts, id}
	}

	direction := firestore.Desc
	if filter.Sort == domain.SortAsc {
		direction = firestore.Asc
	}
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	productType := strings.TrimSpace(filter.ProductType)

	docs, err := r.coll.Query(ctx, func(q firestore.Query) firestore.Query {
		if filter.OnlyActive {
			q = q.Where("isActive", "==", true)
		}
		if productType != "" {
			q = q.Where("productType", "==", productType)
		}
		if search != "" {
			q = q.Where("nameLower", ">=", search).
				Where("nameLower", "<", search+"").
				OrderBy("nameLower", firestore.Asc)
		}
		q = q.OrderBy("createdAt", direction).OrderBy(firestore.DocumentID, direction)
		if len(startAfter) == 2 && search == "" {
			q = q.StartAfter(startAfter...)
		}
		if fetchLimit > 0 {
			q = q.Limit(fetchLimit)
		}
		return q
	})
	if err != nil {
		return domain.CursorPage[domain.Product]{}, err
	}

	nextToken := ""
	if limit > 0 && len(docs) == fetchLimit {
		last := docs[len(docs)-1]
		nextToken = encodeListToken(last.Data.CreatedAt, last.ID)
		docs = docs[:len(docs)-1]
	}

	items := make([]domain.Product, 0, len(docs))
	for _, doc := range docs {
		items = append(items, decodeProductDocument(doc.ID, doc.Data))
	}
	return domain.CursorPage[domain.Product]{Items: items, NextPageToken: nextToken}, nil
}

type productDocument struct {
	Slug                 string    `firestore:"slug"`
	Name                 string    `firestore:"name"`
	NameLower            string    `firestore:"nameLower"`
	Description          string    `firestore:"description,omitempty"`
	ProductType          string    `firestore:"productType"`
	Price                int64     `firestore:"price"`
	MRP                  int64     `firestore:"mrp,omitempty"`
	ShippingCostOverride int64     `firestore:"shippingCostOverride,omitempty"`
	Images               []string  `firestore:"images,omitempty"`
	Stock                int       `firestore:"stock"`
	IsActive             bool      `firestore:"isActive"`
	CreatedAt            time.Time `firestore:"createdAt"`
	UpdatedAt            time.Time `firestore:"updatedAt"`
}

func encodeProductDocument(product domain.Product) productDocument {
	return productDocument{
		Slug:                 strings.ToLower(strings.TrimSpace(product.Slug)),
		Name:                 product.Name,
		NameLower:            strings.ToLower(product.Name),
		Description:          product.Description,
		ProductType:          product.ProductType,
		Price:                product.Price,
		MRP:                  product.MRP,
		ShippingCostOverride: product.ShippingCostOverride,
		Images:               product.Images,
		Stock:                product.Stock,
		IsActive:             product.IsActive,
		CreatedAt:            product.CreatedAt.UTC(),
		UpdatedAt:            product.UpdatedAt.UTC(),
	}
}

func decodeProductDocument(id string, doc productDocument) domain.Product {
	return domain.Product{
		ID:                   id,
		Slug:                 doc.Slug,
		Name:                 doc.Name,
		Description:          doc.Description,
		ProductType:          doc.ProductType,
		Price:                doc.Price,
		MRP:                  doc.MRP,
		ShippingCostOverride: doc.ShippingCostOverride,
		Images:               doc.Images,
		Stock:                doc.Stock,
		IsActive:             doc.IsActive,
		CreatedAt:            doc.CreatedAt,
		UpdatedAt:            doc.UpdatedAt,
	}
}

var _ repositories.ProductRepository = (*ProductRepository)(nil)
