// Package services hosts the application services bridging HTTP handlers and
// repositories. Services own validation, normalisation, and orchestration;
// all monetary arithmetic is delegated to the pricing engine.
package services

import (
	"context"
	"time"

	"github.com/fluteatelier/api/internal/domain"
	"github.com/fluteatelier/api/internal/pricing"
)

// Aliases keep handler signatures terse without re-exporting the domain package.
type (
	Pagination          = domain.Pagination
	SortOrder           = domain.SortOrder
	Product             = domain.Product
	CustomizationConfig = domain.CustomizationConfig
	Cart                = domain.Cart
	CartLineItem        = domain.CartLineItem
	CartCoupon          = domain.CartCoupon
	CartEstimate        = domain.CartEstimate
	Coupon              = domain.Coupon
	StoreSettings       = domain.StoreSettings
	ShippingRule        = domain.ShippingRule
	HomepageSection     = domain.HomepageSection
	Order               = domain.Order
	OrderStatus         = domain.OrderStatus
	OrderLineItem       = domain.OrderLineItem
	OrderSummary        = domain.OrderSummary
	StatusHistoryEntry  = domain.StatusHistoryEntry
	Review              = domain.Review
	UserProfile         = domain.UserProfile
	Address             = domain.Address
	Quote               = pricing.Quote
)

// ProductListFilter narrows public and admin product listings.
type ProductListFilter struct {
	ProductType   string
	Search        string
	IncludeHidden bool
	Sort          SortOrder
	Pager         Pagination
}

// UpsertProductCommand creates or updates a catalog product.
type UpsertProductCommand struct {
	ProductID            string
	Actor                string
	Slug                 string
	Name                 string
	Description          string
	ProductType          string
	Price                int64
	MRP                  int64
	ShippingCostOverride int64
	Images               []string
	Stock                int
	IsActive             bool
}

// ProductImageUploadCommand requests a signed upload URL for a product image.
type ProductImageUploadCommand struct {
	ProductID   string
	Actor       string
	FileName    string
	ContentType string
}

// ProductImageUpload carries the signed URL issued for an image upload.
type ProductImageUpload struct {
	URL       string
	ObjectKey string
	ExpiresAt time.Time
	Headers   map[string]string
}

// CatalogService manages storefront products.
type CatalogService interface {
	GetProduct(ctx context.Context, productID string) (Product, error)
	GetProductBySlug(ctx context.Context, slug string) (Product, error)
	ListProducts(ctx context.Context, filter ProductListFilter) (domain.CursorPage[Product], error)
	CreateProduct(ctx context.Context, cmd UpsertProductCommand) (Product, error)
	UpdateProduct(ctx context.Context, cmd UpsertProductCommand) (Product, error)
	DeleteProduct(ctx context.Context, productID string, actor string) error
	IssueImageUpload(ctx context.Context, cmd ProductImageUploadCommand) (ProductImageUpload, error)
}

// UpsertCustomizationCommand creates or updates a customization definition.
type UpsertCustomizationCommand struct {
	ConfigID     string
	Actor        string
	Label        string
	Type         domain.CustomizationType
	Options      []domain.CustomizationOption
	ProductTypes []string
	Position     int
}

// UpdateShippingRuleCommand replaces the store shipping rule.
type UpdateShippingRuleCommand struct {
	Actor                 string
	DefaultRate           int64
	FreeShippingThreshold int64
}

// UpsertHomepageSectionCommand creates or updates a landing-page block.
type UpsertHomepageSectionCommand struct {
	SectionID  string
	Actor      string
	Title      string
	Kind       string
	BodyHTML   string
	ProductIDs []string
	Position   int
	IsVisible  bool
}

// SettingsService manages the admin-editable store configuration: shipping
// rule, customization definitions, and homepage sections. Pricing call sites
// receive snapshots from here explicitly; there is no ambient settings state.
type SettingsService interface {
	GetStoreSettings(ctx context.Context) (StoreSettings, error)
	UpdateShippingRule(ctx context.Context, cmd UpdateShippingRuleCommand) (StoreSettings, error)
	ListCustomizations(ctx context.Context) ([]CustomizationConfig, error)
	ListCustomizationsFor(ctx context.Context, productType string) ([]CustomizationConfig, error)
	UpsertCustomization(ctx context.Context, cmd UpsertCustomizationCommand) (CustomizationConfig, error)
	DeleteCustomization(ctx context.Context, configID string, actor string) error
	ListHomepageSections(ctx context.Context, onlyVisible bool) ([]HomepageSection, error)
	UpsertHomepageSection(ctx context.Context, cmd UpsertHomepageSectionCommand) (HomepageSection, error)
	DeleteHomepageSection(ctx context.Context, sectionID string, actor string) error
}

// CouponListFilter narrows coupon listings.
type CouponListFilter struct {
	IncludeHidden   bool
	IncludeInactive bool
	Pager           Pagination
}

// UpsertCouponCommand creates or updates a coupon definition.
type UpsertCouponCommand struct {
	CouponID       string
	Actor          string
	Code           string
	Description    string
	DiscountType   domain.DiscountType
	DiscountValue  int64
	MinOrderAmount int64
	MaxUsesPerUser int
	ValidFrom      *time.Time
	ValidUntil     *time.Time
	IsActive       bool
	IsHidden       bool
}

// CouponValidation reports the outcome of validating a code for a user and
// subtotal. On success DiscountAmount carries the computed discount.
type CouponValidation struct {
	Coupon         Coupon
	DiscountAmount int64
}

// CouponService owns coupon lifecycle and application-time validation.
// Validate evaluates the full rule set (existence, active flag, validity
// window, minimum subtotal, per-user usage cap) fresh on every call.
type CouponService interface {
	Validate(ctx context.Context, code string, subtotal int64, userID string) (CouponValidation, error)
	RecordUsage(ctx context.Context, code string, userID string) error
	ListPublicCoupons(ctx context.Context, pager Pagination) (domain.CursorPage[Coupon], error)
	ListCoupons(ctx context.Context, filter CouponListFilter) (domain.CursorPage[Coupon], error)
	CreateCoupon(ctx context.Context, cmd UpsertCouponCommand) (Coupon, error)
	UpdateCoupon(ctx context.Context, cmd UpsertCouponCommand) (Coupon, error)
	DeleteCoupon(ctx context.Context, couponID string, actor string) error
}

// UpsertCartItemCommand adds a line item or updates an existing one.
type UpsertCartItemCommand struct {
	UserID         string
	ItemID         *string
	ProductID      string
	Quantity       int
	Customizations domain.CustomizationSelection
}

// RemoveCartItemCommand removes a line item from the user's cart.
type RemoveCartItemCommand struct {
	UserID string
	ItemID string
}

// SetCartQuantityCommand sets the quantity of an existing line item.
type SetCartQuantityCommand struct {
	UserID   string
	ItemID   string
	Quantity int
}

// CartCouponCommand applies a coupon code to the user's cart.
type CartCouponCommand struct {
	UserID string
	Code   string
}

// SetCartAddressCommand selects a shipping address from the user's book.
type SetCartAddressCommand struct {
	UserID            string
	ShippingAddressID string
}

// CartService owns the mutable cart. Every mutation reprices the cart
// through the pricing engine with a fresh settings snapshot, and an applied
// coupon is re-validated whenever the subtotal changes.
type CartService interface {
	GetOrCreateCart(ctx context.Context, userID string) (Cart, error)
	AddOrUpdateItem(ctx context.Context, cmd UpsertCartItemCommand) (Cart, error)
	SetItemQuantity(ctx context.Context, cmd SetCartQuantityCommand) (Cart, error)
	RemoveItem(ctx context.Context, cmd RemoveCartItemCommand) (Cart, error)
	ApplyCoupon(ctx context.Context, cmd CartCouponCommand) (Cart, error)
	RemoveCoupon(ctx context.Context, userID string) (Cart, error)
	SetShippingAddress(ctx context.Context, cmd SetCartAddressCommand) (Cart, error)
	ClearCart(ctx context.Context, userID string) error
}

// PlaceOrderCommand finalises the user's cart into an order.
type PlaceOrderCommand struct {
	UserID        string
	PaymentMethod domain.PaymentMethod
	PaymentRef    string
	ContactEmail  string
	ContactPhone  string
	Notes         string
}

// CheckoutIntent carries gateway session data for card payments.
type CheckoutIntent struct {
	PaymentRef   string
	ClientSecret string
	Amount       int64
	Currency     string
	Quote        Quote
}

// CheckoutService freezes the cart's quote into an order. For card payments
// it first opens a gateway payment intent; cash on delivery places directly.
type CheckoutService interface {
	CreatePaymentIntent(ctx context.Context, userID string) (CheckoutIntent, error)
	PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (Order, error)
	ConfirmGatewayPayment(ctx context.Context, paymentRef string) (Order, error)
}

// OrderListFilter narrows order listings.
type OrderListFilter struct {
	UserID      string
	Status      OrderStatus
	PlacedFrom  *time.Time
	PlacedUntil *time.Time
	Sort        SortOrder
	Pager       Pagination
}

// OrderReadOptions controls access checks for order reads.
type OrderReadOptions struct {
	UserID string
	Admin  bool
}

// OrderStatusTransitionCommand moves an order along the lifecycle.
type OrderStatusTransitionCommand struct {
	OrderID string
	Actor   string
	Next    OrderStatus
	Comment string
}

// CancelOrderCommand is a customer-initiated cancellation.
type CancelOrderCommand struct {
	OrderID string
	UserID  string
	Reason  string
}

// InvoicePayload is the printable-invoice projection of an order. All
// monetary fields come from the frozen summary, never from recomputation.
type InvoicePayload struct {
	Order       Order
	IssuedAt    time.Time
	InvoiceNo   string
	SellerName  string
	SellerTaxID string
}

// DashboardBucket aggregates orders and revenue for one day.
type DashboardBucket struct {
	Day     time.Time
	Orders  int
	Revenue int64
}

// DashboardStats summarises order activity over a date range.
type DashboardStats struct {
	From         time.Time
	Until        time.Time
	TotalOrders  int
	TotalRevenue int64
	Buckets      []DashboardBucket
}

// OrderService owns order reads, lifecycle transitions, cancellation,
// invoices, and admin dashboard aggregation.
type OrderService interface {
	GetOrder(ctx context.Context, orderID string, opts OrderReadOptions) (Order, error)
	ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error)
	TransitionStatus(ctx context.Context, cmd OrderStatusTransitionCommand) (Order, error)
	Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error)
	Invoice(ctx context.Context, orderID string, opts OrderReadOptions) (InvoicePayload, error)
	DashboardStats(ctx context.Context, from, until time.Time) (DashboardStats, error)
}

// CreateReviewCommand submits a review for a purchased product.
type CreateReviewCommand struct {
	UserID    string
	OrderID   string
	ProductID string
	Rating    int
	Comment   string
}

// ModerateReviewCommand approves or rejects a pending review.
type ModerateReviewCommand struct {
	ReviewID string
	Actor    string
	Approve  bool
}

// ReviewReplyCommand stores a staff reply under a review.
type ReviewReplyCommand struct {
	ReviewID string
	Actor    string
	Message  string
	Visible  bool
}

// ReviewListFilter narrows review listings.
type ReviewListFilter struct {
	ProductID string
	UserID    string
	Status    domain.ReviewStatus
	Pager     Pagination
}

// ReviewService coordinates review creation and moderation.
type ReviewService interface {
	Create(ctx context.Context, cmd CreateReviewCommand) (Review, error)
	ListApprovedByProduct(ctx context.Context, productID string, pager Pagination) (domain.CursorPage[Review], error)
	List(ctx context.Context, filter ReviewListFilter) (domain.CursorPage[Review], error)
	Moderate(ctx context.Context, cmd ModerateReviewCommand) (Review, error)
	StoreReply(ctx context.Context, cmd ReviewReplyCommand) (Review, error)
}

// UpdateProfileCommand mutates the caller's profile fields.
type UpdateProfileCommand struct {
	UserID            string
	DisplayName       *string
	PhoneNumber       *string
	PreferredLanguage *string
	NotificationPrefs domain.NotificationPreferences
}

// UpsertAddressCommand creates or updates an address-book entry.
type UpsertAddressCommand struct {
	UserID    string
	AddressID string
	Address   Address
}

// UserListFilter narrows admin user listings.
type UserListFilter struct {
	OnlyActive bool
	Search     string
	Pager      Pagination
}

// SetUserActiveCommand toggles a user's active flag.
type SetUserActiveCommand struct {
	UserID string
	Actor  string
	Active bool
}

// UserService manages profiles and address books.
type UserService interface {
	GetProfile(ctx context.Context, userID string) (UserProfile, error)
	UpdateProfile(ctx context.Context, cmd UpdateProfileCommand) (UserProfile, error)
	ListAddresses(ctx context.Context, userID string) ([]Address, error)
	UpsertAddress(ctx context.Context, cmd UpsertAddressCommand) (Address, error)
	DeleteAddress(ctx context.Context, userID string, addressID string) error
	ListUsers(ctx context.Context, filter UserListFilter) (domain.CursorPage[UserProfile], error)
	SetUserActive(ctx context.Context, cmd SetUserActiveCommand) (UserProfile, error)
}

// OrderEventPublisher broadcasts order lifecycle events to interested
// consumers (notifications, analytics). Publishing is best effort; failures
// are logged, never surfaced to the customer.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) (string, error)
}

// OrderEvent is the message published on order placement and transitions.
type OrderEvent struct {
	Type        string
	OrderID     string
	OrderNumber string
	UserID      string
	Status      OrderStatus
	Previous    OrderStatus
	GrandTotal  int64
	OccurredAt  time.Time
}

// SystemService aggregates dependency health for readiness endpoints.
type SystemService interface {
	Health(ctx context.Context) domain.SystemHealthReport
}
