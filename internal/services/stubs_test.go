package services

import (
	"context"
	"time"

	"github.com/fluteatelier/api/internal/domain"
	"github.com/fluteatelier/api/internal/payments"
	"github.com/fluteatelier/api/internal/repositories"
)

// repositoryErrorStub satisfies repositories.RepositoryError for tests.
type repositoryErrorStub struct {
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *repositoryErrorStub) Error() string {
	switch {
	case e.notFound:
		return "stub: not found"
	case e.conflict:
		return "stub: conflict"
	default:
		return "stub: unavailable"
	}
}

func (e *repositoryErrorStub) IsNotFound() bool    { return e.notFound }
func (e *repositoryErrorStub) IsConflict() bool    { return e.conflict }
func (e *repositoryErrorStub) IsUnavailable() bool { return e.unavailable }

type stubCartRepository struct {
	getFunc    func(ctx context.Context, userID string) (domain.Cart, error)
	upsertFunc func(ctx context.Context, cart domain.Cart, expected *time.Time) (domain.Cart, error)
	deleteFunc func(ctx context.Context, userID string) error
}

func (s *stubCartRepository) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	if s.getFunc == nil {
		return domain.Cart{}, &repositoryErrorStub{notFound: true}
	}
	return s.getFunc(ctx, userID)
}

func (s *stubCartRepository) UpsertCart(ctx context.Context, cart domain.Cart, expected *time.Time) (domain.Cart, error) {
	if s.upsertFunc == nil {
		return cart, nil
	}
	return s.upsertFunc(ctx, cart, expected)
}

func (s *stubCartRepository) DeleteCart(ctx context.Context, userID string) error {
	if s.deleteFunc == nil {
		return nil
	}
	return s.deleteFunc(ctx, userID)
}

type stubCartPricer struct {
	calculateFunc func(ctx context.Context, cmd PriceCartCommand) (PriceCartResult, error)
}

func (s *stubCartPricer) Calculate(ctx context.Context, cmd PriceCartCommand) (PriceCartResult, error) {
	if s.calculateFunc == nil {
		return PriceCartResult{}, nil
	}
	return s.calculateFunc(ctx, cmd)
}

type stubProductRepository struct {
	insertFunc     func(ctx context.Context, product domain.Product) error
	updateFunc     func(ctx context.Context, product domain.Product) error
	deleteFunc     func(ctx context.Context, productID string) error
	findByIDFunc   func(ctx context.Context, productID string) (domain.Product, error)
	findBySlugFunc func(ctx context.Context, slug string) (domain.Product, error)
	findByIDsFunc  func(ctx context.Context, productIDs []string) ([]domain.Product, error)
	listFunc       func(ctx context.Context, filter repositories.ProductListFilter) (domain.CursorPage[domain.Product], error)
}

func (s *stubProductRepository) Insert(ctx context.Context, product domain.Product) error {
	if s.insertFunc == nil {
		return nil
	}
	return s.insertFunc(ctx, product)
}

func (s *stubProductRepository) Update(ctx context.Context, product domain.Product) error {
	if s.updateFunc == nil {
		return nil
	}
	return s.updateFunc(ctx, product)
}

func (s *stubProductRepository) Delete(ctx context.Context, productID string) error {
	if s.deleteFunc == nil {
		return nil
	}
	return s.deleteFunc(ctx, productID)
}

func (s *stubProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if s.findByIDFunc == nil {
		return domain.Product{}, &repositoryErrorStub{notFound: true}
	}
	return s.findByIDFunc(ctx, productID)
}

func (s *stubProductRepository) FindBySlug(ctx context.Context, slug string) (domain.Product, error) {
	if s.findBySlugFunc == nil {
		return domain.Product{}, &repositoryErrorStub{notFound: true}
	}
	return s.findBySlugFunc(ctx, slug)
}

func (s *stubProductRepository) FindByIDs(ctx context.Context, productIDs []string) ([]domain.Product, error) {
	if s.findByIDsFunc == nil {
		return nil, nil
	}
	return s.findByIDsFunc(ctx, productIDs)
}

func (s *stubProductRepository) List(ctx context.Context, filter repositories.ProductListFilter) (domain.CursorPage[domain.Product], error) {
	if s.listFunc == nil {
		return domain.CursorPage[domain.Product]{}, nil
	}
	return s.listFunc(ctx, filter)
}

type stubCustomizationRepository struct {
	upsertFunc func(ctx context.Context, cfg domain.CustomizationConfig) (domain.CustomizationConfig, error)
	deleteFunc func(ctx context.Context, configID string) error
	listFunc   func(ctx context.Context) ([]domain.CustomizationConfig, error)
}

func (s *stubCustomizationRepository) Upsert(ctx context.Context, cfg domain.CustomizationConfig) (domain.CustomizationConfig, error) {
	if s.upsertFunc == nil {
		return cfg, nil
	}
	return s.upsertFunc(ctx, cfg)
}

func (s *stubCustomizationRepository) Delete(ctx context.Context, configID string) error {
	if s.deleteFunc == nil {
		return nil
	}
	return s.deleteFunc(ctx, configID)
}

func (s *stubCustomizationRepository) List(ctx context.Context) ([]domain.CustomizationConfig, error) {
	if s.listFunc == nil {
		return nil, nil
	}
	return s.listFunc(ctx)
}

type stubSettingsRepository struct {
	getFunc  func(ctx context.Context) (domain.StoreSettings, error)
	saveFunc func(ctx context.Context, settings domain.StoreSettings) (domain.StoreSettings, error)
}

func (s *stubSettingsRepository) Get(ctx context.Context) (domain.StoreSettings, error) {
	if s.getFunc == nil {
		return domain.StoreSettings{}, &repositoryErrorStub{notFound: true}
	}
	return s.getFunc(ctx)
}

func (s *stubSettingsRepository) Save(ctx context.Context, settings domain.StoreSettings) (domain.StoreSettings, error) {
	if s.saveFunc == nil {
		return settings, nil
	}
	return s.saveFunc(ctx, settings)
}

type stubSectionRepository struct {
	upsertFunc   func(ctx context.Context, section domain.HomepageSection) (domain.HomepageSection, error)
	deleteFunc   func(ctx context.Context, sectionID string) error
	findByIDFunc func(ctx context.Context, sectionID string) (domain.HomepageSection, error)
	listFunc     func(ctx context.Context, onlyVisible bool) ([]domain.HomepageSection, error)
}

func (s *stubSectionRepository) Upsert(ctx context.Context, section domain.HomepageSection) (domain.HomepageSection, error) {
	if s.upsertFunc == nil {
		return section, nil
	}
	return s.upsertFunc(ctx, section)
}

func (s *stubSectionRepository) Delete(ctx context.Context, sectionID string) error {
	if s.deleteFunc == nil {
		return nil
	}
	return s.deleteFunc(ctx, sectionID)
}

func (s *stubSectionRepository) FindByID(ctx context.Context, sectionID string) (domain.HomepageSection, error) {
	if s.findByIDFunc == nil {
		return domain.HomepageSection{}, &repositoryErrorStub{notFound: true}
	}
	return s.findByIDFunc(ctx, sectionID)
}

func (s *stubSectionRepository) List(ctx context.Context, onlyVisible bool) ([]domain.HomepageSection, error) {
	if s.listFunc == nil {
		return nil, nil
	}
	return s.listFunc(ctx, onlyVisible)
}

type stubCouponRepository struct {
	insertFunc     func(ctx context.Context, coupon domain.Coupon) error
	updateFunc     func(ctx context.Context, coupon domain.Coupon) error
	deleteFunc     func(ctx context.Context, couponID string) error
	findByCodeFunc func(ctx context.Context, code string) (domain.Coupon, error)
	listFunc       func(ctx context.Context, filter repositories.CouponListFilter) (domain.CursorPage[domain.Coupon], error)
}

func (s *stubCouponRepository) Insert(ctx context.Context, coupon domain.Coupon) error {
	if s.insertFunc == nil {
		return nil
	}
	return s.insertFunc(ctx, coupon)
}

func (s *stubCouponRepository) Update(ctx context.Context, coupon domain.Coupon) error {
	if s.updateFunc == nil {
		return nil
	}
	return s.updateFunc(ctx, coupon)
}

func (s *stubCouponRepository) Delete(ctx context.Context, couponID string) error {
	if s.deleteFunc == nil {
		return nil
	}
	return s.deleteFunc(ctx, couponID)
}

func (s *stubCouponRepository) FindByCode(ctx context.Context, code string) (domain.Coupon, error) {
	if s.findByCodeFunc == nil {
		return domain.Coupon{}, &repositoryErrorStub{notFound: true}
	}
	return s.findByCodeFunc(ctx, code)
}

func (s *stubCouponRepository) List(ctx context.Context, filter repositories.CouponListFilter) (domain.CursorPage[domain.Coupon], error) {
	if s.listFunc == nil {
		return domain.CursorPage[domain.Coupon]{}, nil
	}
	return s.listFunc(ctx, filter)
}

type stubCouponUsageRepository struct {
	countFunc  func(ctx context.Context, code string, userID string) (int, error)
	recordFunc func(ctx context.Context, code string, userID string, usedAt time.Time) error
}

func (s *stubCouponUsageRepository) Count(ctx context.Context, code string, userID string) (int, error) {
	if s.countFunc == nil {
		return 0, nil
	}
	return s.countFunc(ctx, code, userID)
}

func (s *stubCouponUsageRepository) Record(ctx context.Context, code string, userID string, usedAt time.Time) error {
	if s.recordFunc == nil {
		return nil
	}
	return s.recordFunc(ctx, code, userID, usedAt)
}

type stubCouponValidator struct {
	validateFunc func(ctx context.Context, code string, subtotal int64, userID string) (CouponValidation, error)
}

func (s *stubCouponValidator) Validate(ctx context.Context, code string, subtotal int64, userID string) (CouponValidation, error) {
	if s.validateFunc == nil {
		return CouponValidation{}, ErrCouponNotFound
	}
	return s.validateFunc(ctx, code, subtotal, userID)
}

type stubOrderRepository struct {
	insertFunc            func(ctx context.Context, order domain.Order) (domain.Order, error)
	findByIDFunc          func(ctx context.Context, orderID string) (domain.Order, error)
	findByPaymentRefFunc  func(ctx context.Context, paymentRef string) (domain.Order, error)
	listFunc              func(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error)
	listPlacedBetweenFunc func(ctx context.Context, from, until time.Time) ([]domain.Order, error)
	appendFunc            func(ctx context.Context, orderID string, status domain.OrderStatus, entry domain.StatusHistoryEntry, cancelReason *string) (domain.Order, error)
}

func (s *stubOrderRepository) Insert(ctx context.Context, order domain.Order) (domain.Order, error) {
	if s.insertFunc == nil {
		return order, nil
	}
	return s.insertFunc(ctx, order)
}

func (s *stubOrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if s.findByIDFunc == nil {
		return domain.Order{}, &repositoryErrorStub{notFound: true}
	}
	return s.findByIDFunc(ctx, orderID)
}

func (s *stubOrderRepository) FindByPaymentRef(ctx context.Context, paymentRef string) (domain.Order, error) {
	if s.findByPaymentRefFunc == nil {
		return domain.Order{}, &repositoryErrorStub{notFound: true}
	}
	return s.findByPaymentRefFunc(ctx, paymentRef)
}

func (s *stubOrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if s.listFunc == nil {
		return domain.CursorPage[domain.Order]{}, nil
	}
	return s.listFunc(ctx, filter)
}

func (s *stubOrderRepository) ListPlacedBetween(ctx context.Context, from, until time.Time) ([]domain.Order, error) {
	if s.listPlacedBetweenFunc == nil {
		return nil, nil
	}
	return s.listPlacedBetweenFunc(ctx, from, until)
}

func (s *stubOrderRepository) AppendStatusHistory(ctx context.Context, orderID string, status domain.OrderStatus, entry domain.StatusHistoryEntry, cancelReason *string) (domain.Order, error) {
	if s.appendFunc == nil {
		return domain.Order{}, &repositoryErrorStub{notFound: true}
	}
	return s.appendFunc(ctx, orderID, status, entry, cancelReason)
}

type stubReviewRepository struct {
	insertFunc                func(ctx context.Context, review domain.Review) error
	updateFunc                func(ctx context.Context, review domain.Review) error
	findByIDFunc              func(ctx context.Context, reviewID string) (domain.Review, error)
	findByOrderAndProductFunc func(ctx context.Context, orderID string, productID string) (domain.Review, error)
	listFunc                  func(ctx context.Context, filter repositories.ReviewListFilter) (domain.CursorPage[domain.Review], error)
}

func (s *stubReviewRepository) Insert(ctx context.Context, review domain.Review) error {
	if s.insertFunc == nil {
		return nil
	}
	return s.insertFunc(ctx, review)
}

func (s *stubReviewRepository) Update(ctx context.Context, review domain.Review) error {
	if s.updateFunc == nil {
		return nil
	}
	return s.updateFunc(ctx, review)
}

func (s *stubReviewRepository) FindByID(ctx context.Context, reviewID string) (domain.Review, error) {
	if s.findByIDFunc == nil {
		return domain.Review{}, &repositoryErrorStub{notFound: true}
	}
	return s.findByIDFunc(ctx, reviewID)
}

func (s *stubReviewRepository) FindByOrderAndProduct(ctx context.Context, orderID string, productID string) (domain.Review, error) {
	if s.findByOrderAndProductFunc == nil {
		return domain.Review{}, &repositoryErrorStub{notFound: true}
	}
	return s.findByOrderAndProductFunc(ctx, orderID, productID)
}

func (s *stubReviewRepository) List(ctx context.Context, filter repositories.ReviewListFilter) (domain.CursorPage[domain.Review], error) {
	if s.listFunc == nil {
		return domain.CursorPage[domain.Review]{}, nil
	}
	return s.listFunc(ctx, filter)
}

type stubUserRepository struct {
	upsertFunc    func(ctx context.Context, profile domain.UserProfile) (domain.UserProfile, error)
	findByIDFunc  func(ctx context.Context, userID string) (domain.UserProfile, error)
	listFunc      func(ctx context.Context, filter repositories.UserListFilter) (domain.CursorPage[domain.UserProfile], error)
	setActiveFunc func(ctx context.Context, userID string, active bool, updatedAt time.Time) (domain.UserProfile, error)
}

func (s *stubUserRepository) Upsert(ctx context.Context, profile domain.UserProfile) (domain.UserProfile, error) {
	if s.upsertFunc == nil {
		return profile, nil
	}
	return s.upsertFunc(ctx, profile)
}

func (s *stubUserRepository) FindByID(ctx context.Context, userID string) (domain.UserProfile, error) {
	if s.findByIDFunc == nil {
		return domain.UserProfile{}, &repositoryErrorStub{notFound: true}
	}
	return s.findByIDFunc(ctx, userID)
}

func (s *stubUserRepository) List(ctx context.Context, filter repositories.UserListFilter) (domain.CursorPage[domain.UserProfile], error) {
	if s.listFunc == nil {
		return domain.CursorPage[domain.UserProfile]{}, nil
	}
	return s.listFunc(ctx, filter)
}

func (s *stubUserRepository) SetActive(ctx context.Context, userID string, active bool, updatedAt time.Time) (domain.UserProfile, error) {
	if s.setActiveFunc == nil {
		return domain.UserProfile{}, &repositoryErrorStub{notFound: true}
	}
	return s.setActiveFunc(ctx, userID, active, updatedAt)
}

type stubAddressRepository struct {
	upsertFunc     func(ctx context.Context, userID string, address domain.Address) (domain.Address, error)
	deleteFunc     func(ctx context.Context, userID string, addressID string) error
	findByIDFunc   func(ctx context.Context, userID string, addressID string) (domain.Address, error)
	listByUserFunc func(ctx context.Context, userID string) ([]domain.Address, error)
}

func (s *stubAddressRepository) Upsert(ctx context.Context, userID string, address domain.Address) (domain.Address, error) {
	if s.upsertFunc == nil {
		return address, nil
	}
	return s.upsertFunc(ctx, userID, address)
}

func (s *stubAddressRepository) Delete(ctx context.Context, userID string, addressID string) error {
	if s.deleteFunc == nil {
		return nil
	}
	return s.deleteFunc(ctx, userID, addressID)
}

func (s *stubAddressRepository) FindByID(ctx context.Context, userID string, addressID string) (domain.Address, error) {
	if s.findByIDFunc == nil {
		return domain.Address{}, &repositoryErrorStub{notFound: true}
	}
	return s.findByIDFunc(ctx, userID, addressID)
}

func (s *stubAddressRepository) ListByUser(ctx context.Context, userID string) ([]domain.Address, error) {
	if s.listByUserFunc == nil {
		return nil, nil
	}
	return s.listByUserFunc(ctx, userID)
}

type stubPaymentGateway struct {
	createFunc   func(ctx context.Context, req payments.IntentRequest) (payments.Intent, error)
	retrieveFunc func(ctx context.Context, intentID string) (payments.Intent, error)
	refundFunc   func(ctx context.Context, intentID string, reason string) (payments.Intent, error)
}

func (s *stubPaymentGateway) CreateIntent(ctx context.Context, req payments.IntentRequest) (payments.Intent, error) {
	if s.createFunc == nil {
		return payments.Intent{}, payments.ErrGatewayUnavailable
	}
	return s.createFunc(ctx, req)
}

func (s *stubPaymentGateway) RetrieveIntent(ctx context.Context, intentID string) (payments.Intent, error) {
	if s.retrieveFunc == nil {
		return payments.Intent{}, payments.ErrIntentNotFound
	}
	return s.retrieveFunc(ctx, intentID)
}

func (s *stubPaymentGateway) RefundIntent(ctx context.Context, intentID string, reason string) (payments.Intent, error) {
	if s.refundFunc == nil {
		return payments.Intent{}, payments.ErrGatewayUnavailable
	}
	return s.refundFunc(ctx, intentID, reason)
}

type stubEventPublisher struct {
	publishFunc func(ctx context.Context, event OrderEvent) (string, error)
	events      []OrderEvent
}

func (s *stubEventPublisher) PublishOrderEvent(ctx context.Context, event OrderEvent) (string, error) {
	s.events = append(s.events, event)
	if s.publishFunc == nil {
		return "msg-1", nil
	}
	return s.publishFunc(ctx, event)
}
