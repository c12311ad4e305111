package firestore

import (
	"context"
	"errors"

	pfirestore "github.com/fluteatelier/api/internal/platform/firestore"
	"github.com/fluteatelier/api/internal/repositories"
)

// Registry bundles all Firestore-backed repositories over one shared
// provider. It satisfies repositories.Registry for dependency injection.
type Registry struct {
	provider *pfirestore.Provider

	products         *ProductRepository
	customizations   *CustomizationConfigRepository
	settings         *SettingsRepository
	homepageSections *HomepageSectionRepository
	coupons          *CouponRepository
	couponUsage      *CouponUsageRepository
	carts            *CartRepository
	orders           *OrderRepository
	reviews          *ReviewRepository
	users            *UserRepository
	addresses        *AddressRepository
	health           *HealthRepository
}

// NewRegistry constructs every repository against the shared provider.
func NewRegistry(provider *pfirestore.Provider) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry requires firestore provider")
	}
	registry := &Registry{provider: provider}

	var err error
	if registry.products, err = NewProductRepository(provider); err != nil {
		return nil, err
	}
	if registry.customizations, err = NewCustomizationConfigRepository(provider); err != nil {
		return nil, err
	}
	if registry.settings, err = NewSettingsRepository(provider); err != nil {
		return nil, err
	}
	if registry.homepageSections, err = NewHomepageSectionRepository(provider); err != nil {
		return nil, err
	}
	if registry.coupons, err = NewCouponRepository(provider); err != nil {
		return nil, err
	}
	if registry.couponUsage, err = NewCouponUsageRepository(provider); err != nil {
		return nil, err
	}
	if registry.carts, err = NewCartRepository(provider); err != nil {
		return nil, err
	}
	if registry.orders, err = NewOrderRepository(provider); err != nil {
		return nil, err
	}
	if registry.reviews, err = NewReviewRepository(provider); err != nil {
		return nil, err
	}
	if registry.users, err = NewUserRepository(provider); err != nil {
		return nil, err
	}
	if registry.addresses, err = NewAddressRepository(provider); err != nil {
		return nil, err
	}
	if registry.health, err = NewHealthRepository(provider); err != nil {
		return nil, err
	}
	return registry, nil
}

// Close releases the underlying Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close()
}

func (r *Registry) Products() repositories.ProductRepository { return r.products }

func (r *Registry) CustomizationConfigs() repositories.CustomizationConfigRepository {
	return r.customizations
}

func (r *Registry) Settings() repositories.SettingsRepository { return r.settings }

func (r *Registry) HomepageSections() repositories.HomepageSectionRepository {
	return r.homepageSections
}

func (r *Registry) Coupons() repositories.CouponRepository { return r.coupons }

func (r *Registry) CouponUsage() repositories.CouponUsageRepository { return r.couponUsage }

func (r *Registry) Carts() repositories.CartRepository { return r.carts }

func (r *Registry) Orders() repositories.OrderRepository { return r.orders }

func (r *Registry) Reviews() repositories.ReviewRepository { return r.reviews }

func (r *Registry) Users() repositories.UserRepository { return r.users }

func (r *Registry) Addresses() repositories.AddressRepository { return r.addresses }

func (r *Registry) Health() repositories.HealthRepository { return r.health }

var _ repositories.Registry = (*Registry)(nil)
