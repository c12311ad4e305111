package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/fluteatelier/api/internal/domain"
	pfirestore "github.com/fluteatelier/api/internal/platform/firestore"
	"github.com/fluteatelier/api/internal/repositories"
)

const homepageSectionCollection = "homepageSections"

// HomepageSectionRepository persists storefront landing-page blocks.
type HomepageSectionRepository struct {
	coll *pfirestore.Collection[homepageSectionDocument]
}

// NewHomepageSectionRepository constructs the Firestore-backed repository.
func NewHomepageSectionRepository(provider *pfirestore.Provider) (*HomepageSectionRepository, error) {
	if provider == nil {
		return nil, errors.New("homepage section repository requires firestore provider")
	}
	return &HomepageSectionRepository{
		coll: pfirestore.NewCollection[homepageSectionDocument](provider, homepageSectionCollection),
	}, nil
}

// Upsert writes the section document under its ID.
func (r *HomepageSectionRepository) Upsert(ctx context.Context, section domain.HomepageSection) (domain.HomepageSection, error) {
	id := strings.TrimSpace(section.ID)
	if id == "" {
		return domain.HomepageSection{}, errors.New("homepage section repository: section id is required")
	}
	result, err := r.coll.Set(ctx, id, encodeHomepageSectionDocument(section))
	if err != nil {
		return domain.HomepageSection{}, err
	}
	saved := section
	saved.UpdatedAt = result.UpdateTime
	return saved, nil
}

// Delete removes a section document. The document must exist.
func (r *HomepageSectionRepository) Delete(ctx context.Context, sectionID string) error {
	id := strings.TrimSpace(sectionID)
	if id == "" {
		return errors.New("homepage section repository: section id is required")
	}
	if _, err := r.coll.Get(ctx, id); err != nil {
		return err
	}
	return r.coll.Delete(ctx, id)
}

// FindByID loads a section by document ID.
func (r *HomepageSectionRepository) FindByID(ctx context.Context, sectionID string) (domain.HomepageSection, error) {
	doc, err := r.coll.Get(ctx, strings.TrimSpace(sectionID))
	if err != nil {
		return domain.HomepageSection{}, err
	}
	return decodeHomepageSectionDocument(doc.ID, doc.Data), nil
}

// List returns sections ordered by display position.
func (r *HomepageSectionRepository) List(ctx context.Context, onlyVisible bool) ([]domain.HomepageSection, error) {
	docs, err := r.coll.Query(ctx, func(q firestore.Query) firestore.Query {
		if onlyVisible {
			q = q.Where("isVisible", "==", true)
		}
		return q.OrderBy("position", firestore.Asc).OrderBy(firestore.DocumentID, firestore.Asc)
	})
	if err != nil {
		return nil, err
	}
	sections := make([]domain.HomepageSection, 0, len(docs))
	for _, doc := range docs {
		sections = append(sections, decodeHomepageSectionDocument(doc.ID, doc.Data))
	}
	return sections, nil
}

type homepageSectionDocument struct {
	Title      string    `firestore:"title"`
	Kind       string    `firestore:"kind"`
	BodyHTML   string    `firestore:"bodyHtml,omitempty"`
	ProductIDs []string  `firestore:"productIds,omitempty"`
	Position   int       `firestore:"position"`
	IsVisible  bool      `firestore:"isVisible"`
	CreatedAt  time.Time `firestore:"createdAt"`
	UpdatedAt  time.Time `firestore:"updatedAt"`
}

func encodeHomepageSectionDocument(section domain.HomepageSection) homepageSectionDocument {
	createdAt := section.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = section.UpdatedAt.UTC()
	}
	return homepageSectionDocument{
		Title:      section.Title,
		Kind:       section.Kind,
		BodyHTML:   section.BodyHTML,
		ProductIDs: section.ProductIDs,
		Position:   section.Position,
		IsVisible:  section.IsVisible,
		CreatedAt:  createdAt,
		UpdatedAt:  section.UpdatedAt.UTC(),
	}
}

func decodeHomepageSectionDocument(id string, doc homepageSectionDocument) domain.HomepageSection {
	return domain.HomepageSection{
		ID:         id,
		Title:      doc.Title,
		Kind:       doc.Kind,
		BodyHTML:   doc.BodyHTML,
		ProductIDs: doc.ProductIDs,
		Position:   doc.Position,
		IsVisible:  doc.IsVisible,
		CreatedAt:  doc.CreatedAt,
		UpdatedAt:  doc.UpdatedAt,
	}
}

var _ repositories.HomepageSectionRepository = (*HomepageSectionRepository)(nil)
