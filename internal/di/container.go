package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fluteatelier/api/internal/domain"
	"github.com/fluteatelier/api/internal/payments"
	"github.com/fluteatelier/api/internal/platform/config"
	"github.com/fluteatelier/api/internal/platform/storage"
	"github.com/fluteatelier/api/internal/repositories"
	"github.com/fluteatelier/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Catalog  services.CatalogService
	Settings services.SettingsService
	Coupons  services.CouponService
	Cart     services.CartService
	Checkout services.CheckoutService
	Orders   services.OrderService
	Reviews  services.ReviewService
	Users    services.UserService
	System   services.SystemService
}

// Dependencies carries the external adapters the container cannot build on
// its own: payment gateway, event publisher, and media signing. Any field may
// be nil; the affected services degrade accordingly (for example a nil
// Gateway limits checkout to cash on delivery).
type Dependencies struct {
	Gateway payments.Gateway
	Events  services.OrderEventPublisher
	Media   *storage.MediaSigner
	Build   services.BuildInfo
	Health  map[string]func(ctx context.Context) domain.SystemHealthCheck
	Logger  func(ctx context.Context, event string, fields map[string]any)
}

// Container wires repositories and services for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// NewContainer constructs the runtime dependencies. Production wiring provides
// a Firestore-backed registry, while tests can supply in-memory registries.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, deps Dependencies) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	svc, err := buildServices(ctx, reg, cfg, deps)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
	}, nil
}

// Close releases resources such as repository clients.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(_ context.Context, reg repositories.Registry, cfg config.Config, deps Dependencies) (Services, error) {
	var svc Services

	couponSvc, err := services.NewCouponService(services.CouponServiceDeps{
		Coupons: reg.Coupons(),
		Usage:   reg.CouponUsage(),
		Clock:   time.Now,
		Logger:  deps.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build coupon service: %w", err)
	}
	svc.Coupons = couponSvc

	pricer, err := services.NewCartPricer(services.CartPricerDeps{
		Products:       reg.Products(),
		Customizations: reg.CustomizationConfigs(),
		Settings:       reg.Settings(),
		Coupons:        couponSvc,
		Clock:          time.Now,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build cart pricer: %w", err)
	}

	userSvc, err := services.NewUserService(services.UserServiceDeps{
		Users:     reg.Users(),
		Addresses: reg.Addresses(),
		Clock:     time.Now,
		Logger:    deps.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build user service: %w", err)
	}
	svc.Users = userSvc

	cartSvc, err := services.NewCartService(services.CartServiceDeps{
		Repository:      reg.Carts(),
		Pricer:          pricer,
		Addresses:       userSvc,
		Coupons:         couponSvc,
		Clock:           time.Now,
		DefaultCurrency: cfg.Store.Currency,
		Logger:          deps.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build cart service: %w", err)
	}
	svc.Cart = cartSvc

	catalogDeps := services.CatalogServiceDeps{
		Products: reg.Products(),
		Clock:    time.Now,
		Logger:   deps.Logger,
	}
	if deps.Media != nil {
		catalogDeps.Uploads = mediaUploadSigner{signer: deps.Media}
	}
	catalogSvc, err := services.NewCatalogService(catalogDeps)
	if err != nil {
		return Services{}, fmt.Errorf("build catalog service: %w", err)
	}
	svc.Catalog = catalogSvc

	settingsSvc, err := services.NewSettingsService(services.SettingsServiceDeps{
		Settings:        reg.Settings(),
		Customizations:  reg.CustomizationConfigs(),
		Sections:        reg.HomepageSections(),
		Clock:           time.Now,
		DefaultCurrency: cfg.Store.Currency,
		Logger:          deps.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build settings service: %w", err)
	}
	svc.Settings = settingsSvc

	checkoutSvc, err := services.NewCheckoutService(services.CheckoutServiceDeps{
		Carts:           reg.Carts(),
		Orders:          reg.Orders(),
		Pricer:          pricer,
		Gateway:         deps.Gateway,
		Coupons:         couponSvc,
		Events:          deps.Events,
		Clock:           time.Now,
		DefaultCurrency: cfg.Store.Currency,
		Logger:          deps.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build checkout service: %w", err)
	}
	svc.Checkout = checkoutSvc

	orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:      reg.Orders(),
		Gateway:     deps.Gateway,
		Events:      deps.Events,
		Clock:       time.Now,
		SellerName:  cfg.Store.SellerName,
		SellerTaxID: cfg.Store.SellerTaxID,
		Logger:      deps.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orderSvc

	reviewSvc, err := services.NewReviewService(services.ReviewServiceDeps{
		Reviews: reg.Reviews(),
		Orders:  reg.Orders(),
		Clock:   time.Now,
		Logger:  deps.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build review service: %w", err)
	}
	svc.Reviews = reviewSvc

	systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
		Firestore: reg.Health(),
		Extra:     deps.Health,
		Clock:     time.Now,
		Build:     deps.Build,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build system service: %w", err)
	}
	svc.System = systemSvc

	return svc, nil
}

// mediaUploadSigner adapts the Cloud Storage media signer to the catalog's
// upload contract.
type mediaUploadSigner struct {
	signer *storage.MediaSigner
}

func (m mediaUploadSigner) SignUpload(ctx context.Context, object string, contentType string) (services.ProductImageUpload, error) {
	res, err := m.signer.SignImageUpload(ctx, object, contentType)
	if err != nil {
		return services.ProductImageUpload{}, err
	}
	return services.ProductImageUpload{
		URL:       res.URL,
		ObjectKey: object,
		ExpiresAt: res.ExpiresAt,
		Headers:   res.Headers,
	}, nil
}
