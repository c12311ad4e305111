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

const customizationCollection = "customizationConfigs"

// CustomizationConfigRepository persists customization definitions.
type CustomizationConfigRepository struct {
	coll *pfirestore.Collection[customizationDocument]
}

// NewCustomizationConfigRepository constructs the Firestore-backed repository.
func NewCustomizationConfigRepository(provider *pfirestore.Provider) (*CustomizationConfigRepository, error) {
	if provider == nil {
		return nil, errors.New("customization repository requires firestore provider")
	}
	return &CustomizationConfigRepository{
		coll: pfirestore.NewCollection[customizationDocument](provider, customizationCollection),
	}, nil
}

// Upsert writes the config document under its ID.
func (r *CustomizationConfigRepository) Upsert(ctx context.Context, cfg domain.CustomizationConfig) (domain.CustomizationConfig, error) {
	id := strings.TrimSpace(cfg.ID)
	if id == "" {
		return domain.CustomizationConfig{}, errors.New("customization repository: config id is required")
	}
	doc := encodeCustomizationDocument(cfg)
	result, err := r.coll.Set(ctx, id, doc)
	if err != nil {
		return domain.CustomizationConfig{}, err
	}
	saved := cfg
	saved.UpdatedAt = result.UpdateTime
	return saved, nil
}

// Delete removes a config document. The document must exist.
func (r *CustomizationConfigRepository) Delete(ctx context.Context, configID string) error {
	id := strings.TrimSpace(configID)
	if id == "" {
		return errors.New("customization repository: config id is required")
	}
	if _, err := r.coll.Get(ctx, id); err != nil {
		return err
	}
	return r.coll.Delete(ctx, id)
}

// List returns all configs ordered by display position.
func (r *CustomizationConfigRepository) List(ctx context.Context) ([]domain.CustomizationConfig, error) {
	docs, err := r.coll.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.OrderBy("position", firestore.Asc).OrderBy(firestore.DocumentID, firestore.Asc)
	})
	if err != nil {
		return nil, err
	}
	configs := make([]domain.CustomizationConfig, 0, len(docs))
	for _, doc := range docs {
		configs = append(configs, decodeCustomizationDocument(doc.ID, doc.Data))
	}
	return configs, nil
}

type customizationDocument struct {
	Label        string                          `firestore:"label"`
	Type         string                          `firestore:"type"`
	Options      []customizationOptionDocument   `firestore:"options,omitempty"`
	ProductTypes []string                        `firestore:"productTypes,omitempty"`
	Position     int                             `firestore:"position"`
	CreatedAt    time.Time                       `firestore:"createdAt"`
	UpdatedAt    time.Time                       `firestore:"updatedAt"`
}

type customizationOptionDocument struct {
	Value       string `firestore:"value"`
	Label       string `firestore:"label"`
	PriceChange int64  `firestore:"priceChange,omitempty"`
}

func encodeCustomizationDocument(cfg domain.CustomizationConfig) customizationDocument {
	options := make([]customizationOptionDocument, 0, len(cfg.Options))
	for _, opt := range cfg.Options {
		options = append(options, customizationOptionDocument{
			Value:       opt.Value,
			Label:       opt.Label,
			PriceChange: opt.PriceChange,
		})
	}
	createdAt := cfg.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = cfg.UpdatedAt.UTC()
	}
	return customizationDocument{
		Label:        cfg.Label,
		Type:         string(cfg.Type),
		Options:      options,
		ProductTypes: cfg.ProductTypes,
		Position:     cfg.Position,
		CreatedAt:    createdAt,
		UpdatedAt:    cfg.UpdatedAt.UTC(),
	}
}

func decodeCustomizationDocument(id string, doc customizationDocument) domain.CustomizationConfig {
	options := make([]domain.CustomizationOption, 0, len(doc.Options))
	for _, opt := range doc.Options {
		options = append(options, domain.CustomizationOption{
			Value:       opt.Value,
			Label:       opt.Label,
			PriceChange: opt.PriceChange,
		})
	}
	return domain.CustomizationConfig{
		ID:           id,
		Label:        doc.Label,
		Type:         domain.CustomizationType(doc.Type),
		Options:      options,
		ProductTypes: doc.ProductTypes,
		Position:     doc.Position,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
	}
}

var _ repositories.CustomizationConfigRepository = (*CustomizationConfigRepository)(nil)
