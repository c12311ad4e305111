package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fluteatelier/api/internal/domain"
	"github.com/fluteatelier/api/internal/payments"
	"github.com/fluteatelier/api/internal/pricing"
)

func checkoutTestCart(now time.Time) domain.Cart {
	return domain.Cart{
		ID:     "user-1",
		UserID: "user-1",
		Items: []domain.CartLineItem{
			{ID: "line-1", ProductID: "prod-1", Quantity: 2, AddedAt: now},
		},
		Currency:          "INR",
		ShippingAddressID: "addr-1",
		ShippingAddress:   &domain.Address{ID: "addr-1", Recipient: "A", Line1: "1 Main St", City: "Pune", PostalCode: "411001", Country: "IN"},
		UpdatedAt:         now.Add(-time.Minute),
	}
}

func checkoutTestResult() PriceCartResult {
	quote := pricing.Quote{Subtotal: 5000, TotalMRP: 6000, ProductDiscount: 1000, ShippingFee: 0, CouponDiscount: 500, CouponCode: "SAVE10", TotalDiscount: 1500, GrandTotal: 4500}
	return PriceCartResult{
		Estimate: domain.CartEstimate{Subtotal: 5000, TotalMRP: 6000, ProductDiscount: 1000, CouponDiscount: 500, GrandTotal: 4500},
		Quote:    quote,
		Lines: []domain.OrderLineItem{
			{ProductID: "prod-1", Name: "Bamboo flute", Quantity: 2, UnitPrice: 2500, UnitMRP: 3000, Total: 5000},
		},
	}
}

func newTestCheckoutService(t *testing.T, deps CheckoutServiceDeps) CheckoutService {
	t.Helper()
	if deps.Clock == nil {
		deps.Clock = func() time.Time { return time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC) }
	}
	if deps.IDGenerator == nil {
		deps.IDGenerator = func() string { return "01JTESTORDERID00000000" }
	}
	service, err := NewCheckoutService(deps)
	if err != nil {
		t.Fatalf("unexpected error constructing checkout service: %v", err)
	}
	return service
}

func TestCheckoutCreatePaymentIntent(t *testing.T) {
	now := time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC)
	cart := checkoutTestCart(now)

	var requested payments.IntentRequest
	gateway := &stubPaymentGateway{
		createFunc: func(ctx context.Context, req payments.IntentRequest) (payments.Intent, error) {
			requested = req
			return payments.Intent{ID: "pi_1", ClientSecret: "pi_1_secret", Status: payments.StatusPending, Amount: req.Amount, Currency: "INR"}, nil
		},
	}
	service := newTestCheckoutService(t, CheckoutServiceDeps{
		Carts: &stubCartRepository{
			getFunc: func(ctx context.Context, userID string) (domain.Cart, error) { return cart, nil },
		},
		Orders: &stubOrderRepository{},
		Pricer: &stubCartPricer{
			calculateFunc: func(ctx context.Context, cmd PriceCartCommand) (PriceCartResult, error) {
				return checkoutTestResult(), nil
			},
		},
		Gateway: gateway,
		Clock:   func() time.Time { return now },
	})

	intent, err := service.CreatePaymentIntent(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if requested.Amount != 4500 {
		t.Fatalf("expected intent for grand total 4500, got %d", requested.Amount)
	}
	if requested.IdempotencyKey == "" {
		t.Fatalf("expected idempotency key set")
	}
	if intent.PaymentRef != "pi_1" || intent.ClientSecret != "pi_1_secret" {
		t.Fatalf("unexpected intent %+v", intent)
	}
	if intent.Quote.GrandTotal != 4500 {
		t.Fatalf("expected quote carried through, got %+v", intent.Quote)
	}
}

func TestCheckoutPlaceOrderCardFreezesSummary(t *testing.T) {
	now := time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC)
	cart := checkoutTestCart(now)

	var inserted domain.Order
	var cartCleared bool
	var usageCode string
	publisher := &stubEventPublisher{}

	service := newTestCheckoutService(t, CheckoutServiceDeps{
		Carts: &stubCartRepository{
			getFunc: func(ctx context.Context, userID string) (domain.Cart, error) { return cart, nil },
			deleteFunc: func(ctx context.Context, userID string) error {
				cartCleared = true
				return nil
			},
		},
		Orders: &stubOrderRepository{
			insertFunc: func(ctx context.Context, order domain.Order) (domain.Order, error) {
				inserted = order
				return order, nil
			},
		},
		Pricer: &stubCartPricer{
			calculateFunc: func(ctx context.Context, cmd PriceCartCommand) (PriceCartResult, error) {
				return checkoutTestResult(), nil
			},
		},
		Gateway: &stubPaymentGateway{
			retrieveFunc: func(ctx context.Context, intentID string) (payments.Intent, error) {
				if intentID != "pi_1" {
					t.Fatalf("unexpected intent id %q", intentID)
				}
				return payments.Intent{ID: "pi_1", Status: payments.StatusSucceeded, Amount: 4500, Currency: "INR"}, nil
			},
		},
		Coupons: &stubUsageRecorder{recordFunc: func(ctx context.Context, code, userID string) error {
			usageCode = code
			return nil
		}},
		Events: publisher,
		Clock:  func() time.Time { return now },
	})

	order, err := service.PlaceOrder(context.Background(), PlaceOrderCommand{
		UserID:        "user-1",
		PaymentMethod: domain.PaymentMethodCard,
		PaymentRef:    "pi_1",
		ContactEmail:  "customer@example.com",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if order.Status != domain.OrderStatusPlaced {
		t.Fatalf("expected placed status, got %s", order.Status)
	}
	if len(order.StatusHistory) != 1 || order.StatusHistory[0].Status != domain.OrderStatusPlaced {
		t.Fatalf("expected single placed history entry, got %+v", order.StatusHistory)
	}
	want := domain.OrderSummary{
		Subtotal:        5000,
		TotalMRP:        6000,
		ProductDiscount: 1000,
		ShippingFee:     0,
		CouponDiscount:  500,
		CouponCode:      "SAVE10",
		TotalDiscount:   1500,
		GrandTotal:      4500,
		PaymentMethod:   domain.PaymentMethodCard,
	}
	if inserted.Summary != want {
		t.Fatalf("frozen summary mismatch:\n got %+v\nwant %+v", inserted.Summary, want)
	}
	if inserted.PaymentRef != "pi_1" {
		t.Fatalf("expected payment ref recorded, got %q", inserted.PaymentRef)
	}
	if !cartCleared {
		t.Fatalf("expected cart cleared after placing order")
	}
	if usageCode != "SAVE10" {
		t.Fatalf("expected coupon usage recorded, got %q", usageCode)
	}
	if len(publisher.events) != 1 || publisher.events[0].Type != "order.placed" {
		t.Fatalf("expected order.placed event, got %+v", publisher.events)
	}
}

func TestCheckoutPlaceOrderCardRequiresCapturedPayment(t *testing.T) {
	now := time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC)
	cart := checkoutTestCart(now)
	service := newTestCheckoutService(t, CheckoutServiceDeps{
		Carts: &stubCartRepository{
			getFunc: func(ctx context.Context, userID string) (domain.Cart, error) { return cart, nil },
		},
		Orders: &stubOrderRepository{},
		Pricer: &stubCartPricer{
			calculateFunc: func(ctx context.Context, cmd PriceCartCommand) (PriceCartResult, error) {
				return checkoutTestResult(), nil
			},
		},
		Gateway: &stubPaymentGateway{
			retrieveFunc: func(ctx context.Context, intentID string) (payments.Intent, error) {
				return payments.Intent{ID: intentID, Status: payments.StatusPending, Amount: 4500}, nil
			},
		},
	})

	_, err := service.PlaceOrder(context.Background(), PlaceOrderCommand{
		UserID:        "user-1",
		PaymentMethod: domain.PaymentMethodCard,
		PaymentRef:    "pi_1",
		ContactEmail:  "customer@example.com",
	})
	if !errors.Is(err, ErrCheckoutPaymentFailed) {
		t.Fatalf("expected ErrCheckoutPaymentFailed, got %v", err)
	}
}

func TestCheckoutPlaceOrderAmountMismatch(t *testing.T) {
	now := time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC)
	cart := checkoutTestCart(now)
	service := newTestCheckoutService(t, CheckoutServiceDeps{
		Carts: &stubCartRepository{
			getFunc: func(ctx context.Context, userID string) (domain.Cart, error) { return cart, nil },
		},
		Orders: &stubOrderRepository{},
		Pricer: &stubCartPricer{
			calculateFunc: func(ctx context.Context, cmd PriceCartCommand) (PriceCartResult, error) {
				return checkoutTestResult(), nil
			},
		},
		Gateway: &stubPaymentGateway{
			retrieveFunc: func(ctx context.Context, intentID string) (payments.Intent, error) {
				// Cart repriced cheaper since the intent was opened.
				return payments.Intent{ID: intentID, Status: payments.StatusSucceeded, Amount: 5000}, nil
			},
		},
	})

	_, err := service.PlaceOrder(context.Background(), PlaceOrderCommand{
		UserID:        "user-1",
		PaymentMethod: domain.PaymentMethodCard,
		PaymentRef:    "pi_1",
		ContactEmail:  "customer@example.com",
	})
	if !errors.Is(err, ErrCheckoutAmountMismatch) {
		t.Fatalf("expected ErrCheckoutAmountMismatch, got %v", err)
	}
}

func TestCheckoutPlaceOrderLogsCapturedPaymentOnInsertFailure(t *testing.T) {
	now := time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC)
	cart := checkoutTestCart(now)

	type logged struct {
		event  string
		fields map[string]any
	}
	var events []logged

	service := newTestCheckoutService(t, CheckoutServiceDeps{
		Carts: &stubCartRepository{
			getFunc: func(ctx context.Context, userID string) (domain.Cart, error) { return cart, nil },
		},
		Orders: &stubOrderRepository{
			insertFunc: func(ctx context.Context, order domain.Order) (domain.Order, error) {
				return domain.Order{}, &repositoryErrorStub{unavailable: true}
			},
		},
		Pricer: &stubCartPricer{
			calculateFunc: func(ctx context.Context, cmd PriceCartCommand) (PriceCartResult, error) {
				return checkoutTestResult(), nil
			},
		},
		Gateway: &stubPaymentGateway{
			retrieveFunc: func(ctx context.Context, intentID string) (payments.Intent, error) {
				return payments.Intent{ID: intentID, Status: payments.StatusSucceeded, Amount: 4500, Currency: "INR"}, nil
			},
		},
		Clock: func() time.Time { return now },
		Logger: func(ctx context.Context, event string, fields map[string]any) {
			events = append(events, logged{event: event, fields: fields})
		},
	})

	_, err := service.PlaceOrder(context.Background(), PlaceOrderCommand{
		UserID:        "user-1",
		PaymentMethod: domain.PaymentMethodCard,
		PaymentRef:    "pi_1",
		ContactEmail:  "customer@example.com",
	})
	if !errors.Is(err, ErrCheckoutUnavailable) {
		t.Fatalf("expected ErrCheckoutUnavailable, got %v", err)
	}

	if len(events) != 1 || events[0].event != "checkout.order_persist_failed" {
		t.Fatalf("expected a single order_persist_failed event, got %+v", events)
	}
	fields := events[0].fields
	if fields["severity"] != "critical" {
		t.Fatalf("expected critical severity, got %v", fields["severity"])
	}
	if fields["paymentRef"] != "pi_1" {
		t.Fatalf("expected captured payment reference logged, got %v", fields["paymentRef"])
	}
	if fields["amount"] != int64(4500) {
		t.Fatalf("expected captured amount logged, got %v", fields["amount"])
	}
}

func TestCheckoutPlaceOrderCODSkipsGateway(t *testing.T) {
	now := time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC)
	cart := checkoutTestCart(now)
	var inserted domain.Order
	service := newTestCheckoutService(t, CheckoutServiceDeps{
		Carts: &stubCartRepository{
			getFunc: func(ctx context.Context, userID string) (domain.Cart, error) { return cart, nil },
		},
		Orders: &stubOrderRepository{
			insertFunc: func(ctx context.Context, order domain.Order) (domain.Order, error) {
				inserted = order
				return order, nil
			},
		},
		Pricer: &stubCartPricer{
			calculateFunc: func(ctx context.Context, cmd PriceCartCommand) (PriceCartResult, error) {
				return checkoutTestResult(), nil
			},
		},
	})

	order, err := service.PlaceOrder(context.Background(), PlaceOrderCommand{
		UserID:        "user-1",
		PaymentMethod: domain.PaymentMethodCOD,
		PaymentRef:    "should-be-ignored",
		ContactEmail:  "customer@example.com",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inserted.PaymentRef != "" {
		t.Fatalf("expected empty payment ref for cod, got %q", inserted.PaymentRef)
	}
	if order.Summary.PaymentMethod != domain.PaymentMethodCOD {
		t.Fatalf("expected cod frozen into summary, got %s", order.Summary.PaymentMethod)
	}
}

func TestCheckoutPlaceOrderGuards(t *testing.T) {
	now := time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC)

	t.Run("empty cart", func(t *testing.T) {
		service := newTestCheckoutService(t, CheckoutServiceDeps{
			Carts: &stubCartRepository{
				getFunc: func(ctx context.Context, userID string) (domain.Cart, error) {
					return domain.Cart{ID: "user-1", UserID: "user-1"}, nil
				},
			},
			Orders: &stubOrderRepository{},
			Pricer: &stubCartPricer{},
		})
		_, err := service.PlaceOrder(context.Background(), PlaceOrderCommand{
			UserID: "user-1", PaymentMethod: domain.PaymentMethodCOD, ContactEmail: "a@b.cz",
		})
		if !errors.Is(err, ErrCheckoutCartEmpty) {
			t.Fatalf("expected ErrCheckoutCartEmpty, got %v", err)
		}
	})

	t.Run("missing product", func(t *testing.T) {
		cart := checkoutTestCart(now)
		service := newTestCheckoutService(t, CheckoutServiceDeps{
			Carts: &stubCartRepository{
				getFunc: func(ctx context.Context, userID string) (domain.Cart, error) { return cart, nil },
			},
			Orders: &stubOrderRepository{},
			Pricer: &stubCartPricer{
				calculateFunc: func(ctx context.Context, cmd PriceCartCommand) (PriceCartResult, error) {
					return PriceCartResult{MissingProducts: []string{"prod-1"}}, nil
				},
			},
		})
		_, err := service.PlaceOrder(context.Background(), PlaceOrderCommand{
			UserID: "user-1", PaymentMethod: domain.PaymentMethodCOD, ContactEmail: "a@b.cz",
		})
		if !errors.Is(err, ErrCheckoutCartNotReady) {
			t.Fatalf("expected ErrCheckoutCartNotReady, got %v", err)
		}
	})

	t.Run("no shipping address", func(t *testing.T) {
		cart := checkoutTestCart(now)
		cart.ShippingAddressID = ""
		cart.ShippingAddress = nil
		service := newTestCheckoutService(t, CheckoutServiceDeps{
			Carts: &stubCartRepository{
				getFunc: func(ctx context.Context, userID string) (domain.Cart, error) { return cart, nil },
			},
			Orders: &stubOrderRepository{},
			Pricer: &stubCartPricer{
				calculateFunc: func(ctx context.Context, cmd PriceCartCommand) (PriceCartResult, error) {
					return checkoutTestResult(), nil
				},
			},
		})
		_, err := service.PlaceOrder(context.Background(), PlaceOrderCommand{
			UserID: "user-1", PaymentMethod: domain.PaymentMethodCOD, ContactEmail: "a@b.cz",
		})
		if !errors.Is(err, ErrCheckoutCartNotReady) {
			t.Fatalf("expected ErrCheckoutCartNotReady, got %v", err)
		}
	})

	t.Run("bad email", func(t *testing.T) {
		service := newTestCheckoutService(t, CheckoutServiceDeps{
			Carts:  &stubCartRepository{},
			Orders: &stubOrderRepository{},
			Pricer: &stubCartPricer{},
		})
		_, err := service.PlaceOrder(context.Background(), PlaceOrderCommand{
			UserID: "user-1", PaymentMethod: domain.PaymentMethodCOD, ContactEmail: "not-an-email",
		})
		if !errors.Is(err, ErrCheckoutInvalidInput) {
			t.Fatalf("expected ErrCheckoutInvalidInput, got %v", err)
		}
	})
}

func TestCheckoutConfirmGatewayPayment(t *testing.T) {
	now := time.Date(2026, 5, 2, 9, 30, 0, 0, time.UTC)
	order := domain.Order{
		ID:         "ord-1",
		UserID:     "user-1",
		Status:     domain.OrderStatusPlaced,
		PaymentRef: "pi_1",
		Summary:    domain.OrderSummary{GrandTotal: 4500, PaymentMethod: domain.PaymentMethodCard},
	}
	publisher := &stubEventPublisher{}

	service := newTestCheckoutService(t, CheckoutServiceDeps{
		Carts: &stubCartRepository{},
		Orders: &stubOrderRepository{
			findByPaymentRefFunc: func(ctx context.Context, ref string) (domain.Order, error) {
				if ref != "pi_1" {
					return domain.Order{}, &repositoryErrorStub{notFound: true}
				}
				return order, nil
			},
			appendFunc: func(ctx context.Context, orderID string, status domain.OrderStatus, entry domain.StatusHistoryEntry, cancelReason *string) (domain.Order, error) {
				if status != domain.OrderStatusProcessing {
					t.Fatalf("expected transition to processing, got %s", status)
				}
				updated := order
				updated.Status = status
				updated.StatusHistory = append(updated.StatusHistory, entry)
				return updated, nil
			},
		},
		Pricer: &stubCartPricer{},
		Events: publisher,
		Clock:  func() time.Time { return now },
	})

	updated, err := service.ConfirmGatewayPayment(context.Background(), "pi_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != domain.OrderStatusProcessing {
		t.Fatalf("expected processing, got %s", updated.Status)
	}
	if len(publisher.events) != 1 || publisher.events[0].Previous != domain.OrderStatusPlaced {
		t.Fatalf("expected status change event with previous placed, got %+v", publisher.events)
	}

	// A duplicate notification for an already-progressed order is a no-op.
	order.Status = domain.OrderStatusProcessing
	again, err := service.ConfirmGatewayPayment(context.Background(), "pi_1")
	if err != nil {
		t.Fatalf("unexpected error on duplicate: %v", err)
	}
	if again.Status != domain.OrderStatusProcessing {
		t.Fatalf("expected idempotent confirm, got %s", again.Status)
	}

	if _, err := service.ConfirmGatewayPayment(context.Background(), "pi_unknown"); !errors.Is(err, ErrCheckoutOrderNotFound) {
		t.Fatalf("expected ErrCheckoutOrderNotFound, got %v", err)
	}
}

type stubUsageRecorder struct {
	recordFunc func(ctx context.Context, code string, userID string) error
}

func (s *stubUsageRecorder) RecordUsage(ctx context.Context, code string, userID string) error {
	if s.recordFunc == nil {
		return nil
	}
	return s.recordFunc(ctx, code, userID)
}
