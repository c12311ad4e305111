package repositories

import (
	"context"
	"time"

	"github.com/fluteatelier/api/internal/domain"
)

// RepositoryError wraps low-level persistence failures with the
// categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// Registry exposes typed repository accessors and lifecycle hooks for
// dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Products() ProductRepository
	CustomizationConfigs() CustomizationConfigRepository
	Settings() SettingsRepository
	HomepageSections() HomepageSectionRepository
	Coupons() CouponRepository
	CouponUsage() CouponUsageRepository
	Carts() CartRepository
	Orders() OrderRepository
	Reviews() ReviewRepository
	Users() UserRepository
	Addresses() AddressRepository
	Health() HealthRepository
}

// ProductListFilter narrows product listings.
type ProductListFilter struct {
	ProductType string
	OnlyActive  bool
	Search      string
	Sort        domain.SortOrder
	Pager       domain.Pagination
}

// ProductRepository persists catalog products.
type ProductRepository interface {
	Insert(ctx context.Context, product domain.Product) error
	Update(ctx context.Context, product domain.Product) error
	Delete(ctx context.Context, productID string) error
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	FindBySlug(ctx context.Context, slug string) (domain.Product, error)
	FindByIDs(ctx context.Context, productIDs []string) ([]domain.Product, error)
	List(ctx context.Context, filter ProductListFilter) (domain.CursorPage[domain.Product], error)
}

// CustomizationConfigRepository persists admin-managed customization
// definitions. List returns configs ordered by position.
type CustomizationConfigRepository interface {
	Upsert(ctx context.Context, cfg domain.CustomizationConfig) (domain.CustomizationConfig, error)
	Delete(ctx context.Context, configID string) error
	List(ctx context.Context) ([]domain.CustomizationConfig, error)
}

// SettingsRepository persists the singleton store settings document.
type SettingsRepository interface {
	Get(ctx context.Context) (domain.StoreSettings, error)
	Save(ctx context.Context, settings domain.StoreSettings) (domain.StoreSettings, error)
}

// HomepageSectionRepository persists landing-page CMS blocks.
type HomepageSectionRepository interface {
	Upsert(ctx context.Context, section domain.HomepageSection) (domain.HomepageSection, error)
	Delete(ctx context.Context, sectionID string) error
	FindByID(ctx context.Context, sectionID string) (domain.HomepageSection, error)
	List(ctx context.Context, onlyVisible bool) ([]domain.HomepageSection, error)
}

// CouponListFilter narrows coupon listings.
type CouponListFilter struct {
	IncludeHidden   bool
	IncludeInactive bool
	Pager           domain.Pagination
}

// CouponRepository persists coupon definitions keyed by normalised code.
type CouponRepository interface {
	Insert(ctx context.Context, coupon domain.Coupon) error
	Update(ctx context.Context, coupon domain.Coupon) error
	Delete(ctx context.Context, couponID string) error
	FindByCode(ctx context.Context, code string) (domain.Coupon, error)
	List(ctx context.Context, filter CouponListFilter) (domain.CursorPage[domain.Coupon], error)
}

// CouponUsageRepository tracks per-user redemption counts.
type CouponUsageRepository interface {
	Count(ctx context.Context, code string, userID string) (int, error)
	Record(ctx context.Context, code string, userID string, usedAt time.Time) error
}

// CartRepository persists cart documents keyed by user ID. UpsertCart
// enforces optimistic concurrency when expectedUpdate is supplied.
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (domain.Cart, error)
	UpsertCart(ctx context.Context, cart domain.Cart, expectedUpdate *time.Time) (domain.Cart, error)
	DeleteCart(ctx context.Context, userID string) error
}

// OrderListFilter narrows order listings for customer and admin surfaces.
type OrderListFilter struct {
	UserID      string
	Status      domain.OrderStatus
	PlacedFrom  *time.Time
	PlacedUntil *time.Time
	Sort        domain.SortOrder
	Pager       domain.Pagination
}

// OrderRepository persists orders. AppendStatusHistory atomically sets the
// new status and appends the history entry; history is never rewritten.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) (domain.Order, error)
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	FindByPaymentRef(ctx context.Context, paymentRef string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
	ListPlacedBetween(ctx context.Context, from, until time.Time) ([]domain.Order, error)
	AppendStatusHistory(ctx context.Context, orderID string, status domain.OrderStatus, entry domain.StatusHistoryEntry, cancelReason *string) (domain.Order, error)
}

// ReviewListFilter narrows review listings.
type ReviewListFilter struct {
	ProductID  string
	UserID     string
	Status     domain.ReviewStatus
	OnlyPublic bool
	Pager      domain.Pagination
}

// ReviewRepository persists product reviews and moderation state.
type ReviewRepository interface {
	Insert(ctx context.Context, review domain.Review) error
	Update(ctx context.Context, review domain.Review) error
	FindByID(ctx context.Context, reviewID string) (domain.Review, error)
	FindByOrderAndProduct(ctx context.Context, orderID string, productID string) (domain.Review, error)
	List(ctx context.Context, filter ReviewListFilter) (domain.CursorPage[domain.Review], error)
}

// UserListFilter narrows admin user listings.
type UserListFilter struct {
	OnlyActive bool
	Search     string
	Pager      domain.Pagination
}

// UserRepository persists user profile projections.
type UserRepository interface {
	Upsert(ctx context.Context, profile domain.UserProfile) (domain.UserProfile, error)
	FindByID(ctx context.Context, userID string) (domain.UserProfile, error)
	List(ctx context.Context, filter UserListFilter) (domain.CursorPage[domain.UserProfile], error)
	SetActive(ctx context.Context, userID string, active bool, updatedAt time.Time) (domain.UserProfile, error)
}

// AddressRepository persists per-user address books.
type AddressRepository interface {
	Upsert(ctx context.Context, userID string, address domain.Address) (domain.Address, error)
	Delete(ctx context.Context, userID string, addressID string) error
	FindByID(ctx context.Context, userID string, addressID string) (domain.Address, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Address, error)
}

// HealthRepository probes backing-store connectivity for readiness checks.
type HealthRepository interface {
	Ping(ctx context.Context) domain.SystemHealthCheck
}
