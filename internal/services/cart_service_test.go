package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fluteatelier/api/internal/domain"
)

func newTestCartService(t *testing.T, repo *stubCartRepository, pricer *stubCartPricer, opts CartServiceDeps) CartService {
	t.Helper()
	opts.Repository = repo
	opts.Pricer = pricer
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC) }
	}
	if opts.IDGenerator == nil {
		counter := 0
		opts.IDGenerator = func() string {
			counter++
			return "line-" + string(rune('a'+counter-1))
		}
	}
	service, err := NewCartService(opts)
	if err != nil {
		t.Fatalf("unexpected error constructing cart service: %v", err)
	}
	return service
}

func TestCartServiceGetOrCreateCartReturnsExisting(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	estimate := domain.CartEstimate{Subtotal: 2000, GrandTotal: 2000}

	repo := &stubCartRepository{
		getFunc: func(ctx context.Context, userID string) (domain.Cart, error) {
			if userID != "user-123" {
				t.Fatalf("unexpected user id %q", userID)
			}
			return domain.Cart{
				ID:       "user-123",
				UserID:   "user-123",
				Currency: "inr",
				Items: []domain.CartLineItem{
					{ID: "item-1", ProductID: "prod-1", Quantity: 2, AddedAt: now.Add(-time.Hour)},
				},
				UpdatedAt: now.Add(-time.Hour),
			}, nil
		},
	}
	pricer := &stubCartPricer{
		calculateFunc: func(ctx context.Context, cmd PriceCartCommand) (PriceCartResult, error) {
			if len(cmd.Cart.Items) != 1 {
				t.Fatalf("expected 1 item, got %d", len(cmd.Cart.Items))
			}
			return PriceCartResult{Estimate: estimate}, nil
		},
	}

	service := newTestCartService(t, repo, pricer, CartServiceDeps{DefaultCurrency: "INR"})

	cart, err := service.GetOrCreateCart(context.Background(), " user-123 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cart.Currency != "INR" {
		t.Fatalf("expected currency uppercased INR, got %q", cart.Currency)
	}
	if cart.Estimate == nil || cart.Estimate.GrandTotal != 2000 {
		t.Fatalf("expected estimate grand total 2000, got %+v", cart.Estimate)
	}
}

func TestCartServiceGetOrCreateCartLazyCreates(t *testing.T) {
	var upserted domain.Cart
	repo := &stubCartRepository{
		getFunc: func(ctx context.Context, userID string) (domain.Cart, error) {
			return domain.Cart{}, &repositoryErrorStub{notFound: true}
		},
		upsertFunc: func(ctx context.Context, cart domain.Cart, expected *time.Time) (domain.Cart, error) {
			upserted = cart
			return cart, nil
		},
	}
	service := newTestCartService(t, repo, &stubCartPricer{}, CartServiceDeps{DefaultCurrency: "usd"})

	cart, err := service.GetOrCreateCart(context.Background(), "guest-5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if upserted.ID != "guest-5" {
		t.Fatalf("expected upserted cart id guest-5, got %q", upserted.ID)
	}
	if cart.Currency != "USD" {
		t.Fatalf("expected default currency USD, got %q", cart.Currency)
	}
	if len(cart.Items) != 0 {
		t.Fatalf("expected empty items")
	}
}

func TestCartServiceAddItemMergesMatchingLine(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	existing := domain.Cart{
		ID:     "user-1",
		UserID: "user-1",
		Items: []domain.CartLineItem{{
			ID:             "line-1",
			ProductID:      "prod-1",
			Quantity:       1,
			Customizations: domain.CustomizationSelection{"Key": "C"},
			AddedAt:        now.Add(-time.Hour),
		}},
		UpdatedAt: now.Add(-time.Hour),
	}

	var saved domain.Cart
	repo := &stubCartRepository{
		getFunc: func(ctx context.Context, userID string) (domain.Cart, error) { return existing, nil },
		upsertFunc: func(ctx context.Context, cart domain.Cart, expected *time.Time) (domain.Cart, error) {
			if expected == nil || !expected.Equal(existing.UpdatedAt) {
				t.Fatalf("expected optimistic concurrency against %v, got %v", existing.UpdatedAt, expected)
			}
			saved = cart
			return cart, nil
		},
	}
	service := newTestCartService(t, repo, &stubCartPricer{}, CartServiceDeps{})

	cart, err := service.AddOrUpdateItem(context.Background(), UpsertCartItemCommand{
		UserID:         "user-1",
		ProductID:      "prod-1",
		Quantity:       2,
		Customizations: domain.CustomizationSelection{"Key": "C"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(saved.Items) != 1 {
		t.Fatalf("expected merge into single line, got %d lines", len(saved.Items))
	}
	if saved.Items[0].Quantity != 3 {
		t.Fatalf("expected merged quantity 3, got %d", saved.Items[0].Quantity)
	}
	if len(cart.Items) != 1 {
		t.Fatalf("expected returned cart with 1 line, got %d", len(cart.Items))
	}
}

func TestCartServiceAddItemDistinctCustomizationsNewLine(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	existing := domain.Cart{
		ID:     "user-1",
		UserID: "user-1",
		Items: []domain.CartLineItem{{
			ID:             "line-1",
			ProductID:      "prod-1",
			Quantity:       1,
			Customizations: domain.CustomizationSelection{"Key": "C"},
			AddedAt:        now.Add(-time.Hour),
		}},
		UpdatedAt: now.Add(-time.Hour),
	}

	var saved domain.Cart
	repo := &stubCartRepository{
		getFunc: func(ctx context.Context, userID string) (domain.Cart, error) { return existing, nil },
		upsertFunc: func(ctx context.Context, cart domain.Cart, expected *time.Time) (domain.Cart, error) {
			saved = cart
			return cart, nil
		},
	}
	service := newTestCartService(t, repo, &stubCartPricer{}, CartServiceDeps{})

	if _, err := service.AddOrUpdateItem(context.Background(), UpsertCartItemCommand{
		UserID:         "user-1",
		ProductID:      "prod-1",
		Quantity:       1,
		Customizations: domain.CustomizationSelection{"Key": "D"},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(saved.Items) != 2 {
		t.Fatalf("expected two distinct lines, got %d", len(saved.Items))
	}
}

func TestCartServiceAddItemRejectsBadQuantity(t *testing.T) {
	service := newTestCartService(t, &stubCartRepository{}, &stubCartPricer{}, CartServiceDeps{})

	for _, qty := range []int{0, -1, maxCartItemQuantity + 1} {
		_, err := service.AddOrUpdateItem(context.Background(), UpsertCartItemCommand{
			UserID:    "user-1",
			ProductID: "prod-1",
			Quantity:  qty,
		})
		if !errors.Is(err, ErrCartInvalidInput) {
			t.Fatalf("quantity %d: expected ErrCartInvalidInput, got %v", qty, err)
		}
	}
}

func TestCartServiceSetItemQuantityZeroRemovesLine(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	existing := domain.Cart{
		ID:        "user-1",
		UserID:    "user-1",
		Items:     []domain.CartLineItem{{ID: "line-1", ProductID: "prod-1", Quantity: 2, AddedAt: now}},
		UpdatedAt: now.Add(-time.Minute),
	}

	var saved domain.Cart
	repo := &stubCartRepository{
		getFunc: func(ctx context.Context, userID string) (domain.Cart, error) { return existing, nil },
		upsertFunc: func(ctx context.Context, cart domain.Cart, expected *time.Time) (domain.Cart, error) {
			saved = cart
			return cart, nil
		},
	}
	service := newTestCartService(t, repo, &stubCartPricer{}, CartServiceDeps{})

	if _, err := service.SetItemQuantity(context.Background(), SetCartQuantityCommand{
		UserID: "user-1", ItemID: "line-1", Quantity: 0,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(saved.Items) != 0 {
		t.Fatalf("expected line removed, got %d lines", len(saved.Items))
	}
}

func TestCartServiceSetItemQuantityUnknownLine(t *testing.T) {
	repo := &stubCartRepository{
		getFunc: func(ctx context.Context, userID string) (domain.Cart, error) {
			return domain.Cart{ID: "user-1", UserID: "user-1", UpdatedAt: time.Now()}, nil
		},
	}
	service := newTestCartService(t, repo, &stubCartPricer{}, CartServiceDeps{})

	_, err := service.SetItemQuantity(context.Background(), SetCartQuantityCommand{
		UserID: "user-1", ItemID: "missing", Quantity: 1,
	})
	if !errors.Is(err, ErrCartNotFound) {
		t.Fatalf("expected ErrCartNotFound, got %v", err)
	}
}

func TestCartServiceApplyCouponValidatesAgainstSubtotal(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	existing := domain.Cart{
		ID:        "user-1",
		UserID:    "user-1",
		Items:     []domain.CartLineItem{{ID: "line-1", ProductID: "prod-1", Quantity: 1, AddedAt: now}},
		UpdatedAt: now.Add(-time.Minute),
	}

	var saved domain.Cart
	repo := &stubCartRepository{
		getFunc: func(ctx context.Context, userID string) (domain.Cart, error) { return existing, nil },
		upsertFunc: func(ctx context.Context, cart domain.Cart, expected *time.Time) (domain.Cart, error) {
			saved = cart
			return cart, nil
		},
	}
	pricer := &stubCartPricer{
		calculateFunc: func(ctx context.Context, cmd PriceCartCommand) (PriceCartResult, error) {
			estimate := domain.CartEstimate{Subtotal: 5000, GrandTotal: 5000}
			if cmd.Cart.Coupon != nil {
				estimate.CouponDiscount = 500
				estimate.GrandTotal = 4500
			}
			return PriceCartResult{Estimate: estimate}, nil
		},
	}
	validator := &stubCouponValidator{
		validateFunc: func(ctx context.Context, code string, subtotal int64, userID string) (CouponValidation, error) {
			if code != "SAVE10" {
				t.Fatalf("unexpected code %q", code)
			}
			if subtotal != 5000 {
				t.Fatalf("expected validation against subtotal 5000, got %d", subtotal)
			}
			return CouponValidation{
				Coupon:         domain.Coupon{Code: "SAVE10", DiscountType: domain.DiscountTypePercentage, DiscountValue: 10, IsActive: true},
				DiscountAmount: 500,
			}, nil
		},
	}

	service := newTestCartService(t, repo, pricer, CartServiceDeps{Coupons: validator})

	cart, err := service.ApplyCoupon(context.Background(), CartCouponCommand{UserID: "user-1", Code: " save10 "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if saved.Coupon == nil || saved.Coupon.Code != "SAVE10" {
		t.Fatalf("expected coupon persisted, got %+v", saved.Coupon)
	}
	if cart.Coupon == nil || cart.Coupon.DiscountAmount != 500 {
		t.Fatalf("expected coupon discount 500, got %+v", cart.Coupon)
	}
	if cart.Estimate == nil || cart.Estimate.GrandTotal != 4500 {
		t.Fatalf("expected grand total 4500, got %+v", cart.Estimate)
	}
}

func TestCartServiceApplyCouponRejectionSurfaces(t *testing.T) {
	now := time.Now().UTC()
	repo := &stubCartRepository{
		getFunc: func(ctx context.Context, userID string) (domain.Cart, error) {
			return domain.Cart{ID: "user-1", UserID: "user-1", UpdatedAt: now}, nil
		},
	}
	validator := &stubCouponValidator{
		validateFunc: func(ctx context.Context, code string, subtotal int64, userID string) (CouponValidation, error) {
			return CouponValidation{}, ErrCouponNotFound
		},
	}
	service := newTestCartService(t, repo, &stubCartPricer{}, CartServiceDeps{Coupons: validator})

	_, err := service.ApplyCoupon(context.Background(), CartCouponCommand{UserID: "user-1", Code: "NOPE"})
	if !errors.Is(err, ErrCouponNotFound) {
		t.Fatalf("expected ErrCouponNotFound, got %v", err)
	}
}

func TestCartServiceMutationDropsStaleCoupon(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	existing := domain.Cart{
		ID:     "user-1",
		UserID: "user-1",
		Items: []domain.CartLineItem{
			{ID: "line-1", ProductID: "prod-1", Quantity: 2, AddedAt: now},
		},
		Coupon:    &domain.CartCoupon{Code: "SAVE10", DiscountAmount: 500, Applied: true},
		UpdatedAt: now.Add(-time.Minute),
	}

	var saved domain.Cart
	repo := &stubCartRepository{
		getFunc: func(ctx context.Context, userID string) (domain.Cart, error) { return existing, nil },
		upsertFunc: func(ctx context.Context, cart domain.Cart, expected *time.Time) (domain.Cart, error) {
			saved = cart
			return cart, nil
		},
	}
	// Dropping to one unit pushes the subtotal below the coupon minimum.
	pricer := &stubCartPricer{
		calculateFunc: func(ctx context.Context, cmd PriceCartCommand) (PriceCartResult, error) {
			return PriceCartResult{
				Estimate:    domain.CartEstimate{Subtotal: 500, GrandTotal: 550},
				CouponError: ErrCouponNotFound,
			}, nil
		},
	}
	service := newTestCartService(t, repo, pricer, CartServiceDeps{})

	cart, err := service.SetItemQuantity(context.Background(), SetCartQuantityCommand{
		UserID: "user-1", ItemID: "line-1", Quantity: 1,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if saved.Coupon != nil {
		t.Fatalf("expected stale coupon removed before persisting, got %+v", saved.Coupon)
	}
	if cart.Coupon != nil {
		t.Fatalf("expected no coupon on returned cart, got %+v", cart.Coupon)
	}
}

func TestCartServiceSetShippingAddressRequiresBookEntry(t *testing.T) {
	now := time.Now().UTC()
	repo := &stubCartRepository{
		getFunc: func(ctx context.Context, userID string) (domain.Cart, error) {
			return domain.Cart{ID: "user-1", UserID: "user-1", UpdatedAt: now}, nil
		},
	}
	addresses := &stubAddressProvider{
		listFunc: func(ctx context.Context, userID string) ([]Address, error) {
			return []Address{{ID: "addr-1", Recipient: "A", Line1: "1 Main St", City: "Pune", PostalCode: "411001", Country: "IN"}}, nil
		},
	}
	service := newTestCartService(t, repo, &stubCartPricer{}, CartServiceDeps{Addresses: addresses})

	if _, err := service.SetShippingAddress(context.Background(), SetCartAddressCommand{
		UserID: "user-1", ShippingAddressID: "addr-2",
	}); !errors.Is(err, ErrCartInvalidInput) {
		t.Fatalf("expected ErrCartInvalidInput for unknown address, got %v", err)
	}

	cart, err := service.SetShippingAddress(context.Background(), SetCartAddressCommand{
		UserID: "user-1", ShippingAddressID: "addr-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cart.ShippingAddressID != "addr-1" || cart.ShippingAddress == nil {
		t.Fatalf("expected shipping address selected, got %q %+v", cart.ShippingAddressID, cart.ShippingAddress)
	}
}

func TestCartServiceConflictTranslated(t *testing.T) {
	now := time.Now().UTC()
	repo := &stubCartRepository{
		getFunc: func(ctx context.Context, userID string) (domain.Cart, error) {
			return domain.Cart{
				ID: "user-1", UserID: "user-1",
				Items:     []domain.CartLineItem{{ID: "line-1", ProductID: "prod-1", Quantity: 1, AddedAt: now}},
				UpdatedAt: now,
			}, nil
		},
		upsertFunc: func(ctx context.Context, cart domain.Cart, expected *time.Time) (domain.Cart, error) {
			return domain.Cart{}, &repositoryErrorStub{conflict: true}
		},
	}
	service := newTestCartService(t, repo, &stubCartPricer{}, CartServiceDeps{})

	_, err := service.RemoveItem(context.Background(), RemoveCartItemCommand{UserID: "user-1", ItemID: "line-1"})
	if !errors.Is(err, ErrCartConflict) {
		t.Fatalf("expected ErrCartConflict, got %v", err)
	}
}

type stubAddressProvider struct {
	listFunc func(ctx context.Context, userID string) ([]Address, error)
}

func (s *stubAddressProvider) ListAddresses(ctx context.Context, userID string) ([]Address, error) {
	if s.listFunc == nil {
		return nil, nil
	}
	return s.listFunc(ctx, userID)
}
