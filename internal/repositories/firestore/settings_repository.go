package firestore

import (
	"context"
	"errors"
	"time"

	"github.com/fluteatelier/api/internal/domain"
	pfirestore "github.com/fluteatelier/api/internal/platform/firestore"
	"github.com/fluteatelier/api/internal/repositories"
)

const (
	settingsCollection = "settings"
	settingsDocID      = "store"
)

// SettingsRepository persists the singleton store settings document.
type SettingsRepository struct {
	coll *pfirestore.Collection[settingsDocument]
}

// NewSettingsRepository constructs the Firestore-backed settings repository.
func NewSettingsRepository(provider *pfirestore.Provider) (*SettingsRepository, error) {
	if provider == nil {
		return nil, errors.New("settings repository requires firestore provider")
	}
	return &SettingsRepository{
		coll: pfirestore.NewCollection[settingsDocument](provider, settingsCollection),
	}, nil
}

// Get loads the store settings document.
func (r *SettingsRepository) Get(ctx context.Context) (domain.StoreSettings, error) {
	doc, err := r.coll.Get(ctx, settingsDocID)
	if err != nil {
		return domain.StoreSettings{}, err
	}
	return domain.StoreSettings{
		Currency: doc.Data.Currency,
		ShippingRule: domain.ShippingRule{
			DefaultRate:           doc.Data.ShippingDefaultRate,
			FreeShippingThreshold: doc.Data.FreeShippingThreshold,
		},
		UpdatedAt: doc.Data.UpdatedAt,
	}, nil
}

// Save replaces the store settings document.
func (r *SettingsRepository) Save(ctx context.Context, settings domain.StoreSettings) (domain.StoreSettings, error) {
	doc := settingsDocument{
		Currency:              settings.Currency,
		ShippingDefaultRate:   settings.ShippingRule.DefaultRate,
		FreeShippingThreshold: settings.ShippingRule.FreeShippingThreshold,
		UpdatedAt:             settings.UpdatedAt.UTC(),
	}
	result, err := r.coll.Set(ctx, settingsDocID, doc)
	if err != nil {
		return domain.StoreSettings{}, err
	}
	saved := settings
	saved.UpdatedAt = result.UpdateTime
	return saved, nil
}

type settingsDocument struct {
	Currency              string    `firestore:"currency"`
	ShippingDefaultRate   int64     `firestore:"shippingDefaultRate"`
	FreeShippingThreshold int64     `firestore:"freeShippingThreshold"`
	UpdatedAt             time.Time `firestore:"updatedAt"`
}

var _ repositories.SettingsRepository = (*SettingsRepository)(nil)
