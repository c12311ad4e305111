package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/fluteatelier/api/internal/domain"
	"github.com/fluteatelier/api/internal/repositories"
)

var (
	errCartRepositoryRequired = errors.New("cart service: repository is required")
	errCartPricerRequired     = errors.New("cart service: pricer is required")
)

const (
	maxCartLineItems    = 50
	maxCartItemQuantity = 20
)

// ErrCartInvalidInput indicates the caller supplied invalid input.
var ErrCartInvalidInput = errors.New("cart service: invalid input")

// ErrCartUnavailable indicates the cart backend cannot fulfil the request.
var ErrCartUnavailable = errors.New("cart service: unavailable")

// ErrCartNotFound indicates the requested cart or line item does not exist.
var ErrCartNotFound = errors.New("cart service: not found")

// ErrCartConflict indicates a concurrent modification clashed with this one.
var ErrCartConflict = errors.New("cart service: conflict")

type cartAddressProvider interface {
	ListAddresses(ctx context.Context, userID string) ([]Address, error)
}

// CartServiceDeps wires the repository and pricing dependencies for cart
// operations.
type CartServiceDeps struct {
	Repository      repositories.CartRepository
	Pricer          CartPricer
	Addresses       cartAddressProvider
	Coupons         couponValidator
	Clock           func() time.Time
	DefaultCurrency string
	Logger          func(context.Context, string, map[string]any)
	IDGenerator     func() string
}

type cartService struct {
	repo      repositories.CartRepository
	pricer    CartPricer
	addresses cartAddressProvider
	coupons   couponValidator
	newID     func() string
	now       func() time.Time
	currency  string
	logger    func(context.Context, string, map[string]any)
}

// NewCartService constructs a CartService enforcing dependency validation.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Repository == nil {
		return nil, errCartRepositoryRequired
	}
	if deps.Pricer == nil {
		return nil, errCartPricerRequired
	}

	currency := strings.ToUpper(strings.TrimSpace(deps.DefaultCurrency))
	if currency == "" {
		currency = "INR"
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}

	return &cartService{
		repo:      deps.Repository,
		pricer:    deps.Pricer,
		addresses: deps.Addresses,
		coupons:   deps.Coupons,
		newID:     idGen,
		now:       func() time.Time { return clock().UTC() },
		currency:  currency,
		logger:    logger,
	}, nil
}

// GetOrCreateCart loads the active cart for the user, creating an empty cart
// when absent, and returns it with a fresh pricing estimate.
func (s *cartService) GetOrCreateCart(ctx context.Context, userID string) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return Cart{}, ErrCartInvalidInput
	}

	cart, err := s.repo.GetCart(ctx, uid)
	if err != nil {
		if !isRepoNotFound(err) {
			return Cart{}, s.translateRepoError(err)
		}
		saved, err := s.repo.UpsertCart(ctx, s.newCart(uid), nil)
		if err != nil {
			return Cart{}, s.translateRepoError(err)
		}
		cart = saved
	}

	cart = s.normaliseCart(cart, uid)
	return s.reprice(ctx, cart)
}

// AddOrUpdateItem adds a line item or, when the product and customizations
// match an existing line, merges into it. Passing ItemID replaces that line's
// quantity and customizations instead.
func (s *cartService) AddOrUpdateItem(ctx context.Context, cmd UpsertCartItemCommand) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}
	uid := strings.TrimSpace(cmd.UserID)
	productID := strings.TrimSpace(cmd.ProductID)
	if uid == "" || productID == "" {
		return Cart{}, ErrCartInvalidInput
	}
	if cmd.Quantity < 1 || cmd.Quantity > maxCartItemQuantity {
		return Cart{}, fmt.Errorf("%w: quantity must be between 1 and %d", ErrCartInvalidInput, maxCartItemQuantity)
	}

	return s.mutate(ctx, uid, func(cart *domain.Cart) error {
		now := s.now()

		if cmd.ItemID != nil {
			idx := indexOfCartItem(cart.Items, *cmd.ItemID)
			if idx < 0 {
				return ErrCartNotFound
			}
			cart.Items[idx].ProductID = productID
			cart.Items[idx].Quantity = cmd.Quantity
			cart.Items[idx].Customizations = cmd.Customizations.Clone()
			cart.Items[idx].UpdatedAt = &now
			return nil
		}

		fingerprint := cmd.Customizations.Fingerprint()
		for i, item := range cart.Items {
			if item.ProductID == productID && item.Customizations.Fingerprint() == fingerprint {
				merged := item.Quantity + cmd.Quantity
				if merged > maxCartItemQuantity {
					merged = maxCartItemQuantity
				}
				cart.Items[i].Quantity = merged
				cart.Items[i].UpdatedAt = &now
				return nil
			}
		}

		if len(cart.Items) >= maxCartLineItems {
			return fmt.Errorf("%w: cart holds at most %d line items", ErrCartInvalidInput, maxCartLineItems)
		}
		cart.Items = append(cart.Items, domain.CartLineItem{
			ID:             s.newID(),
			ProductID:      productID,
			Quantity:       cmd.Quantity,
			Customizations: cmd.Customizations.Clone(),
			AddedAt:        now,
		})
		return nil
	})
}

// SetItemQuantity sets the quantity of an existing line item. Quantity zero
// removes the line.
func (s *cartService) SetItemQuantity(ctx context.Context, cmd SetCartQuantityCommand) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}
	uid := strings.TrimSpace(cmd.UserID)
	itemID := strings.TrimSpace(cmd.ItemID)
	if uid == "" || itemID == "" {
		return Cart{}, ErrCartInvalidInput
	}
	if cmd.Quantity < 0 || cmd.Quantity > maxCartItemQuantity {
		return Cart{}, fmt.Errorf("%w: quantity must be between 0 and %d", ErrCartInvalidInput, maxCartItemQuantity)
	}

	return s.mutate(ctx, uid, func(cart *domain.Cart) error {
		idx := indexOfCartItem(cart.Items, itemID)
		if idx < 0 {
			return ErrCartNotFound
		}
		if cmd.Quantity == 0 {
			cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
			return nil
		}
		now := s.now()
		cart.Items[idx].Quantity = cmd.Quantity
		cart.Items[idx].UpdatedAt = &now
		return nil
	})
}

// RemoveItem deletes a line item from the cart.
func (s *cartService) RemoveItem(ctx context.Context, cmd RemoveCartItemCommand) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}
	uid := strings.TrimSpace(cmd.UserID)
	itemID := strings.TrimSpace(cmd.ItemID)
	if uid == "" || itemID == "" {
		return Cart{}, ErrCartInvalidInput
	}

	return s.mutate(ctx, uid, func(cart *domain.Cart) error {
		idx := indexOfCartItem(cart.Items, itemID)
		if idx < 0 {
			return ErrCartNotFound
		}
		cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
		return nil
	})
}

// ApplyCoupon validates the code against the current subtotal and stores it
// on the cart. Subsequent mutations re-validate it automatically.
func (s *cartService) ApplyCoupon(ctx context.Context, cmd CartCouponCommand) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}
	if s.coupons == nil {
		return Cart{}, ErrCartUnavailable
	}
	uid := strings.TrimSpace(cmd.UserID)
	code := strings.ToUpper(strings.TrimSpace(cmd.Code))
	if uid == "" || code == "" {
		return Cart{}, ErrCartInvalidInput
	}

	cart, err := s.loadCart(ctx, uid)
	if err != nil {
		return Cart{}, err
	}

	// Price without the new code first so validation sees the real subtotal.
	bare := cart
	bare.Coupon = nil
	priced, err := s.pricer.Calculate(ctx, PriceCartCommand{Cart: bare})
	if err != nil {
		return Cart{}, s.translatePricingError(ctx, uid, err)
	}

	validation, err := s.coupons.Validate(ctx, code, priced.Estimate.Subtotal, uid)
	if err != nil {
		return Cart{}, err
	}

	cart.Coupon = &domain.CartCoupon{
		Code:           validation.Coupon.Code,
		DiscountAmount: validation.DiscountAmount,
		Applied:        true,
	}
	saved, err := s.persist(ctx, cart)
	if err != nil {
		return Cart{}, err
	}
	s.logger(ctx, "cart.coupon_applied", map[string]any{"userID": uid, "code": code})
	return saved, nil
}

// RemoveCoupon clears any applied coupon.
func (s *cartService) RemoveCoupon(ctx context.Context, userID string) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return Cart{}, ErrCartInvalidInput
	}

	return s.mutate(ctx, uid, func(cart *domain.Cart) error {
		cart.Coupon = nil
		return nil
	})
}

// SetShippingAddress selects an entry from the user's address book as the
// cart's shipping destination.
func (s *cartService) SetShippingAddress(ctx context.Context, cmd SetCartAddressCommand) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}
	uid := strings.TrimSpace(cmd.UserID)
	addressID := strings.TrimSpace(cmd.ShippingAddressID)
	if uid == "" {
		return Cart{}, ErrCartInvalidInput
	}

	var selected *domain.Address
	if addressID != "" {
		if s.addresses == nil {
			return Cart{}, ErrCartUnavailable
		}
		book, err := s.addresses.ListAddresses(ctx, uid)
		if err != nil {
			return Cart{}, ErrCartUnavailable
		}
		for i := range book {
			if strings.TrimSpace(book[i].ID) == addressID {
				selected = &book[i]
				break
			}
		}
		if selected == nil {
			return Cart{}, fmt.Errorf("%w: unknown address %q", ErrCartInvalidInput, addressID)
		}
	}

	return s.mutate(ctx, uid, func(cart *domain.Cart) error {
		cart.ShippingAddressID = addressID
		cart.ShippingAddress = cloneAddress(selected)
		return nil
	})
}

// ClearCart empties the cart after checkout or on explicit request.
func (s *cartService) ClearCart(ctx context.Context, userID string) error {
	if s == nil || s.repo == nil {
		return ErrCartUnavailable
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return ErrCartInvalidInput
	}
	if err := s.repo.DeleteCart(ctx, uid); err != nil && !isRepoNotFound(err) {
		return s.translateRepoError(err)
	}
	return nil
}

// mutate loads the cart, applies the change, reprices, and persists under
// optimistic concurrency against the loaded revision.
func (s *cartService) mutate(ctx context.Context, userID string, apply func(*domain.Cart) error) (Cart, error) {
	cart, err := s.loadCart(ctx, userID)
	if err != nil {
		return Cart{}, err
	}
	if err := apply(&cart); err != nil {
		return Cart{}, err
	}
	return s.persist(ctx, cart)
}

func (s *cartService) loadCart(ctx context.Context, userID string) (domain.Cart, error) {
	cart, err := s.repo.GetCart(ctx, userID)
	if err != nil {
		if isRepoNotFound(err) {
			return s.newCart(userID), nil
		}
		return domain.Cart{}, s.translateRepoError(err)
	}
	return s.normaliseCart(cart, userID), nil
}

func (s *cartService) persist(ctx context.Context, cart domain.Cart) (Cart, error) {
	previous := cart.UpdatedAt

	priced, err := s.pricer.Calculate(ctx, PriceCartCommand{Cart: cart})
	if err != nil {
		return Cart{}, s.translatePricingError(ctx, cart.UserID, err)
	}
	if priced.CouponError != nil && cart.Coupon != nil {
		s.logger(ctx, "cart.coupon_dropped", map[string]any{
			"userID": cart.UserID,
			"code":   cart.Coupon.Code,
			"reason": priced.CouponError.Error(),
		})
		cart.Coupon = nil
	}
	if cart.Coupon != nil {
		cart.Coupon.DiscountAmount = priced.Estimate.CouponDiscount
	}
	estimate := priced.Estimate
	cart.Estimate = &estimate

	cart.UpdatedAt = s.now()
	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = cart.UpdatedAt
	}

	var expected *time.Time
	if !previous.IsZero() {
		ts := previous.UTC()
		expected = &ts
	}
	saved, err := s.repo.UpsertCart(ctx, cart, expected)
	if err != nil {
		return Cart{}, s.translateRepoError(err)
	}
	return s.normaliseCart(saved, cart.UserID), nil
}

// reprice refreshes the estimate on a read path without persisting.
func (s *cartService) reprice(ctx context.Context, cart domain.Cart) (Cart, error) {
	priced, err := s.pricer.Calculate(ctx, PriceCartCommand{Cart: cart})
	if err != nil {
		return Cart{}, s.translatePricingError(ctx, cart.UserID, err)
	}
	if priced.CouponError != nil && cart.Coupon != nil {
		cart.Coupon = &domain.CartCoupon{Code: cart.Coupon.Code, Applied: false}
	} else if cart.Coupon != nil {
		cart.Coupon.DiscountAmount = priced.Estimate.CouponDiscount
	}
	estimate := priced.Estimate
	cart.Estimate = &estimate
	return cart, nil
}

func (s *cartService) newCart(userID string) domain.Cart {
	now := s.now()
	return domain.Cart{
		ID:        userID,
		UserID:    userID,
		Currency:  s.currency,
		Items:     []domain.CartLineItem{},
		Metadata:  map[string]any{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *cartService) normaliseCart(cart domain.Cart, userID string) domain.Cart {
	if cart.ID = strings.TrimSpace(cart.ID); cart.ID == "" {
		cart.ID = userID
	}
	cart.UserID = firstNonEmpty(cart.UserID, userID)
	cart.Currency = strings.ToUpper(strings.TrimSpace(firstNonEmpty(cart.Currency, s.currency)))
	cart.Items = cloneCartItems(cart.Items)
	if cart.Metadata == nil {
		cart.Metadata = map[string]any{}
	}
	if cart.Coupon != nil {
		coupon := *cart.Coupon
		coupon.Code = strings.ToUpper(strings.TrimSpace(coupon.Code))
		if coupon.Code == "" {
			cart.Coupon = nil
		} else {
			cart.Coupon = &coupon
		}
	}
	cart.ShippingAddressID = strings.TrimSpace(cart.ShippingAddressID)
	cart.ShippingAddress = cloneAddress(cart.ShippingAddress)
	return cart
}

func (s *cartService) translateRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case isRepoNotFound(err):
		return ErrCartNotFound
	case isRepoConflict(err):
		return ErrCartConflict
	default:
		return ErrCartUnavailable
	}
}

func (s *cartService) translatePricingError(ctx context.Context, userID string, err error) error {
	s.logger(ctx, "cart.pricing_failed", map[string]any{
		"userID": userID,
		"error":  err.Error(),
	})
	if errors.Is(err, ErrPricingUnavailable) {
		return ErrCartUnavailable
	}
	return err
}
