package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/fluteatelier/api/internal/domain"
	"github.com/fluteatelier/api/internal/payments"
	"github.com/fluteatelier/api/internal/repositories"
)

const maxOrderNotesLength = 2000

var (
	// ErrCheckoutInvalidInput indicates the caller supplied invalid input.
	ErrCheckoutInvalidInput = errors.New("checkout service: invalid input")
	// ErrCheckoutUnavailable indicates checkout dependencies are down.
	ErrCheckoutUnavailable = errors.New("checkout service: unavailable")
	// ErrCheckoutCartEmpty indicates the cart has no purchasable items.
	ErrCheckoutCartEmpty = errors.New("checkout service: cart is empty")
	// ErrCheckoutCartNotReady indicates the cart is missing data required to
	// place an order, such as a shipping address or a still-listed product.
	ErrCheckoutCartNotReady = errors.New("checkout service: cart not ready")
	// ErrCheckoutPaymentFailed indicates the gateway payment is absent or not
	// in a captured state.
	ErrCheckoutPaymentFailed = errors.New("checkout service: payment failed")
	// ErrCheckoutAmountMismatch indicates the captured amount no longer
	// matches the cart's grand total.
	ErrCheckoutAmountMismatch = errors.New("checkout service: paid amount does not match cart total")
	// ErrCheckoutOrderNotFound indicates no order references the payment.
	ErrCheckoutOrderNotFound = errors.New("checkout service: order not found")
)

type couponUsageRecorder interface {
	RecordUsage(ctx context.Context, code string, userID string) error
}

// CheckoutServiceDeps wires the dependencies required to freeze carts into
// orders.
type CheckoutServiceDeps struct {
	Carts           repositories.CartRepository
	Orders          repositories.OrderRepository
	Pricer          CartPricer
	Gateway         payments.Gateway
	Coupons         couponUsageRecorder
	Events          OrderEventPublisher
	Clock           func() time.Time
	IDGenerator     func() string
	DefaultCurrency string
	Logger          func(ctx context.Context, event string, fields map[string]any)
}

type checkoutService struct {
	carts    repositories.CartRepository
	orders   repositories.OrderRepository
	pricer   CartPricer
	gateway  payments.Gateway
	coupons  couponUsageRecorder
	events   OrderEventPublisher
	now      func() time.Time
	newID    func() string
	currency string
	logger   func(ctx context.Context, event string, fields map[string]any)
}

// NewCheckoutService constructs a CheckoutService validating required
// dependencies. The gateway may be nil when only cash on delivery is offered.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Carts == nil {
		return nil, errors.New("checkout service: cart repository is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("checkout service: order repository is required")
	}
	if deps.Pricer == nil {
		return nil, errors.New("checkout service: pricer is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	currency := strings.ToUpper(strings.TrimSpace(deps.DefaultCurrency))
	if currency == "" {
		currency = "INR"
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &checkoutService{
		carts:    deps.Carts,
		orders:   deps.Orders,
		pricer:   deps.Pricer,
		gateway:  deps.Gateway,
		coupons:  deps.Coupons,
		events:   deps.Events,
		now:      func() time.Time { return clock().UTC() },
		newID:    idGen,
		currency: currency,
		logger:   logger,
	}, nil
}

// CreatePaymentIntent prices the cart and opens a gateway payment intent for
// the grand total. The intent ID doubles as the payment reference the client
// sends back with PlaceOrder.
func (s *checkoutService) CreatePaymentIntent(ctx context.Context, userID string) (CheckoutIntent, error) {
	if s == nil || s.carts == nil {
		return CheckoutIntent{}, ErrCheckoutUnavailable
	}
	if s.gateway == nil {
		return CheckoutIntent{}, ErrCheckoutUnavailable
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return CheckoutIntent{}, ErrCheckoutInvalidInput
	}

	cart, priced, err := s.loadPricedCart(ctx, uid)
	if err != nil {
		return CheckoutIntent{}, err
	}
	if priced.Estimate.GrandTotal <= 0 {
		return CheckoutIntent{}, fmt.Errorf("%w: nothing to charge", ErrCheckoutCartNotReady)
	}

	intent, err := s.gateway.CreateIntent(ctx, payments.IntentRequest{
		Amount:   priced.Estimate.GrandTotal,
		Currency: firstNonEmpty(cart.Currency, s.currency),
		Metadata: map[string]string{"userId": uid},
		// One intent per cart revision: retries for an unchanged cart
		// return the same intent instead of stacking charges.
		IdempotencyKey: fmt.Sprintf("cart-%s-%d-%d", uid, cart.UpdatedAt.Unix(), priced.Estimate.GrandTotal),
	})
	if err != nil {
		s.logger(ctx, "checkout.intent_failed", map[string]any{"userID": uid, "error": err.Error()})
		return CheckoutIntent{}, ErrCheckoutPaymentFailed
	}

	return CheckoutIntent{
		PaymentRef:   intent.ID,
		ClientSecret: intent.ClientSecret,
		Amount:       intent.Amount,
		Currency:     intent.Currency,
		Quote:        priced.Quote,
	}, nil
}

// PlaceOrder freezes the cart's current quote into an order. Card orders
// require a captured gateway payment matching the grand total; cash on
// delivery places directly. The cart is cleared on success.
func (s *checkoutService) PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (Order, error) {
	if s == nil || s.carts == nil || s.orders == nil {
		return Order{}, ErrCheckoutUnavailable
	}
	uid := strings.TrimSpace(cmd.UserID)
	if uid == "" {
		return Order{}, ErrCheckoutInvalidInput
	}
	if cmd.PaymentMethod != domain.PaymentMethodCard && cmd.PaymentMethod != domain.PaymentMethodCOD {
		return Order{}, fmt.Errorf("%w: unknown payment method %q", ErrCheckoutInvalidInput, cmd.PaymentMethod)
	}
	email := strings.TrimSpace(cmd.ContactEmail)
	if email == "" {
		return Order{}, fmt.Errorf("%w: contact email is required", ErrCheckoutInvalidInput)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return Order{}, fmt.Errorf("%w: invalid contact email", ErrCheckoutInvalidInput)
	}
	notes := strings.TrimSpace(cmd.Notes)
	if len(notes) > maxOrderNotesLength {
		return Order{}, fmt.Errorf("%w: notes must be %d characters or fewer", ErrCheckoutInvalidInput, maxOrderNotesLength)
	}

	cart, priced, err := s.loadPricedCart(ctx, uid)
	if err != nil {
		return Order{}, err
	}
	if strings.TrimSpace(cart.ShippingAddressID) == "" || cart.ShippingAddress == nil {
		return Order{}, fmt.Errorf("%w: shipping address is required", ErrCheckoutCartNotReady)
	}

	paymentRef := strings.TrimSpace(cmd.PaymentRef)
	if cmd.PaymentMethod == domain.PaymentMethodCard {
		if err := s.verifyCardPayment(ctx, paymentRef, priced.Estimate.GrandTotal); err != nil {
			return Order{}, err
		}
	} else {
		paymentRef = ""
	}

	now := s.now()
	summary := priced.Quote.Summary(cmd.PaymentMethod)
	order := domain.Order{
		ID:          s.newID(),
		OrderNumber: s.orderNumber(now),
		UserID:      uid,
		Currency:    firstNonEmpty(cart.Currency, s.currency),
		Status:      domain.OrderStatusPlaced,
		StatusHistory: []domain.StatusHistoryEntry{{
			Status: domain.OrderStatusPlaced,
			At:     now,
		}},
		Items:           priced.Lines,
		Summary:         summary,
		ShippingAddress: cloneAddress(cart.ShippingAddress),
		Contact: &domain.OrderContact{
			Email: email,
			Phone: strings.TrimSpace(cmd.ContactPhone),
		},
		PaymentRef: paymentRef,
		Notes:      notes,
		PlacedAt:   now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	saved, err := s.orders.Insert(ctx, order)
	if err != nil {
		if cmd.PaymentMethod == domain.PaymentMethodCard {
			// The payment is captured but no order records it. Flag for
			// manual reconciliation before the customer disputes the charge.
			s.logger(ctx, "checkout.order_persist_failed", map[string]any{
				"severity":   "critical",
				"userID":     uid,
				"paymentRef": paymentRef,
				"amount":     priced.Estimate.GrandTotal,
				"currency":   order.Currency,
				"error":      err.Error(),
			})
		} else {
			s.logger(ctx, "checkout.order_persist_failed", map[string]any{
				"userID": uid,
				"error":  err.Error(),
			})
		}
		return Order{}, ErrCheckoutUnavailable
	}

	if summary.CouponCode != "" && s.coupons != nil {
		if err := s.coupons.RecordUsage(ctx, summary.CouponCode, uid); err != nil {
			s.logger(ctx, "checkout.coupon_usage_failed", map[string]any{
				"orderID": saved.ID,
				"code":    summary.CouponCode,
				"error":   err.Error(),
			})
		}
	}

	if err := s.carts.DeleteCart(ctx, uid); err != nil && !isRepoNotFound(err) {
		s.logger(ctx, "checkout.cart_clear_failed", map[string]any{"orderID": saved.ID, "error": err.Error()})
	}

	s.publish(ctx, "order.placed", saved, "")
	s.logger(ctx, "checkout.order_placed", map[string]any{
		"orderID":     saved.ID,
		"orderNumber": saved.OrderNumber,
		"userID":      uid,
		"grandTotal":  summary.GrandTotal,
		"method":      string(cmd.PaymentMethod),
	})
	return saved, nil
}

// ConfirmGatewayPayment handles the asynchronous capture notification. The
// order referencing the intent moves to processing; an unknown reference is
// reported so the webhook can be retried after PlaceOrder lands.
func (s *checkoutService) ConfirmGatewayPayment(ctx context.Context, paymentRef string) (Order, error) {
	if s == nil || s.orders == nil {
		return Order{}, ErrCheckoutUnavailable
	}
	ref := strings.TrimSpace(paymentRef)
	if ref == "" {
		return Order{}, ErrCheckoutInvalidInput
	}

	order, err := s.orders.FindByPaymentRef(ctx, ref)
	if err != nil {
		if isRepoNotFound(err) {
			return Order{}, ErrCheckoutOrderNotFound
		}
		return Order{}, ErrCheckoutUnavailable
	}

	if order.Status != domain.OrderStatusPlaced {
		// Already progressed; the notification is a duplicate.
		return order, nil
	}

	now := s.now()
	updated, err := s.orders.AppendStatusHistory(ctx, order.ID, domain.OrderStatusProcessing, domain.StatusHistoryEntry{
		Status:  domain.OrderStatusProcessing,
		At:      now,
		Comment: "payment confirmed",
	}, nil)
	if err != nil {
		return Order{}, ErrCheckoutUnavailable
	}

	s.publish(ctx, "order.status_changed", updated, order.Status)
	return updated, nil
}

func (s *checkoutService) loadPricedCart(ctx context.Context, userID string) (domain.Cart, PriceCartResult, error) {
	cart, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		if isRepoNotFound(err) {
			return domain.Cart{}, PriceCartResult{}, ErrCheckoutCartEmpty
		}
		return domain.Cart{}, PriceCartResult{}, ErrCheckoutUnavailable
	}
	if len(cart.Items) == 0 {
		return domain.Cart{}, PriceCartResult{}, ErrCheckoutCartEmpty
	}

	priced, err := s.pricer.Calculate(ctx, PriceCartCommand{Cart: cart})
	if err != nil {
		return domain.Cart{}, PriceCartResult{}, ErrCheckoutUnavailable
	}
	if len(priced.MissingProducts) > 0 {
		return domain.Cart{}, PriceCartResult{}, fmt.Errorf("%w: products no longer available: %s",
			ErrCheckoutCartNotReady, strings.Join(priced.MissingProducts, ", "))
	}
	if len(priced.Lines) == 0 {
		return domain.Cart{}, PriceCartResult{}, ErrCheckoutCartEmpty
	}
	return cart, priced, nil
}

func (s *checkoutService) verifyCardPayment(ctx context.Context, paymentRef string, grandTotal int64) error {
	if paymentRef == "" {
		return fmt.Errorf("%w: payment reference is required for card orders", ErrCheckoutInvalidInput)
	}
	if s.gateway == nil {
		return ErrCheckoutUnavailable
	}
	intent, err := s.gateway.RetrieveIntent(ctx, paymentRef)
	if err != nil {
		return ErrCheckoutPaymentFailed
	}
	if !intent.Succeeded() {
		return ErrCheckoutPaymentFailed
	}
	if intent.Amount != grandTotal {
		return ErrCheckoutAmountMismatch
	}
	return nil
}

func (s *checkoutService) orderNumber(now time.Time) string {
	id := s.newID()
	if len(id) > 8 {
		id = id[len(id)-8:]
	}
	return fmt.Sprintf("FA-%s-%s", now.Format("20060102"), strings.ToUpper(id))
}

func (s *checkoutService) publish(ctx context.Context, eventType string, order domain.Order, previous domain.OrderStatus) {
	if s.events == nil {
		return
	}
	if _, err := s.events.PublishOrderEvent(ctx, OrderEvent{
		Type:        eventType,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Status:      order.Status,
		Previous:    previous,
		GrandTotal:  order.Summary.GrandTotal,
		OccurredAt:  s.now(),
	}); err != nil {
		s.logger(ctx, "checkout.event_publish_failed", map[string]any{"orderID": order.ID, "error": err.Error()})
	}
}
