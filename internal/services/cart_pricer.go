package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fluteatelier/api/internal/domain"
	"github.com/fluteatelier/api/internal/pricing"
	"github.com/fluteatelier/api/internal/repositories"
)

// ErrPricingUnavailable indicates a dependency needed to price the cart is down.
var ErrPricingUnavailable = errors.New("cart pricer: unavailable")

// PriceCartCommand requests a full pricing pass over the cart snapshot.
type PriceCartCommand struct {
	Cart domain.Cart
}

// PriceCartResult is the consolidated pricing output every surface consumes.
type PriceCartResult struct {
	Estimate domain.CartEstimate
	Quote    pricing.Quote
	// Lines carries order-shaped line items with effective unit prices,
	// ready to be frozen at checkout.
	Lines []domain.OrderLineItem
	// Coupon is the validated coupon applied to the quote, if any.
	Coupon *domain.Coupon
	// CouponError is set when an applied code failed re-validation against
	// the current subtotal; the quote then carries no coupon discount.
	CouponError error
	// MissingProducts lists cart product IDs absent from the catalog. Their
	// lines contribute nothing; checkout refuses carts with missing products.
	MissingProducts []string
}

// CartPricer is the one pricing call site shared by the cart, checkout,
// order, and display surfaces so their amounts can never drift apart.
type CartPricer interface {
	Calculate(ctx context.Context, cmd PriceCartCommand) (PriceCartResult, error)
}

type couponValidator interface {
	Validate(ctx context.Context, code string, subtotal int64, userID string) (CouponValidation, error)
}

// CartPricerDeps wires the catalog and settings lookups behind the pricer.
type CartPricerDeps struct {
	Products       repositories.ProductRepository
	Customizations repositories.CustomizationConfigRepository
	Settings       repositories.SettingsRepository
	Coupons        couponValidator
	Clock          func() time.Time
}

type cartPricer struct {
	products       repositories.ProductRepository
	customizations repositories.CustomizationConfigRepository
	settings       repositories.SettingsRepository
	coupons        couponValidator
	now            func() time.Time
}

// NewCartPricer constructs the pricing coordinator.
func NewCartPricer(deps CartPricerDeps) (CartPricer, error) {
	if deps.Products == nil {
		return nil, errors.New("cart pricer: product repository is required")
	}
	if deps.Customizations == nil {
		return nil, errors.New("cart pricer: customization repository is required")
	}
	if deps.Settings == nil {
		return nil, errors.New("cart pricer: settings repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &cartPricer{
		products:       deps.Products,
		customizations: deps.Customizations,
		settings:       deps.Settings,
		coupons:        deps.Coupons,
		now:            func() time.Time { return clock().UTC() },
	}, nil
}

// Calculate loads the catalog records and settings snapshot for the cart and
// runs the pricing engine over them. The applied coupon, when present, is
// re-validated against the freshly computed subtotal; a stale discount amount
// stored on the cart is never trusted.
func (p *cartPricer) Calculate(ctx context.Context, cmd PriceCartCommand) (PriceCartResult, error) {
	if p == nil || p.products == nil {
		return PriceCartResult{}, ErrPricingUnavailable
	}
	cart := cmd.Cart

	settings, err := p.settings.Get(ctx)
	if err != nil && !isRepoNotFound(err) {
		return PriceCartResult{}, fmt.Errorf("%w: load settings: %v", ErrPricingUnavailable, err)
	}

	configs, err := p.customizations.List(ctx)
	if err != nil {
		return PriceCartResult{}, fmt.Errorf("%w: load customizations: %v", ErrPricingUnavailable, err)
	}

	items, lines, missing, err := p.resolveLineItems(ctx, cart.Items, configs)
	if err != nil {
		return PriceCartResult{}, err
	}

	agg := pricing.AggregateCart(items, configs)

	var (
		appliedCoupon *domain.Coupon
		couponErr     error
	)
	if cart.Coupon != nil && strings.TrimSpace(cart.Coupon.Code) != "" && p.coupons != nil {
		validation, err := p.coupons.Validate(ctx, cart.Coupon.Code, agg.Subtotal, cart.UserID)
		if err != nil {
			couponErr = err
		} else {
			coupon := validation.Coupon
			appliedCoupon = &coupon
		}
	}

	quote := pricing.ComputeQuote(pricing.QuoteInput{
		Items:        items,
		Configs:      configs,
		ShippingRule: settings.ShippingRule,
		Coupon:       appliedCoupon,
	})

	return PriceCartResult{
		Estimate: domain.CartEstimate{
			Subtotal:        quote.Subtotal,
			TotalMRP:        quote.TotalMRP,
			ProductDiscount: quote.ProductDiscount,
			ShippingFee:     quote.ShippingFee,
			CouponDiscount:  quote.CouponDiscount,
			GrandTotal:      quote.GrandTotal,
		},
		Quote:           quote,
		Lines:           lines,
		Coupon:          appliedCoupon,
		CouponError:     couponErr,
		MissingProducts: missing,
	}, nil
}

func (p *cartPricer) resolveLineItems(ctx context.Context, cartItems []domain.CartLineItem, configs []domain.CustomizationConfig) ([]pricing.LineItem, []domain.OrderLineItem, []string, error) {
	ids := make([]string, 0, len(cartItems))
	seen := make(map[string]struct{}, len(cartItems))
	for _, item := range cartItems {
		id := strings.TrimSpace(item.ProductID)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, nil, nil, nil
	}

	products, err := p.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: load products: %v", ErrPricingUnavailable, err)
	}
	byID := make(map[string]domain.Product, len(products))
	for _, product := range products {
		byID[product.ID] = product
	}

	var (
		items   []pricing.LineItem
		lines   []domain.OrderLineItem
		missing []string
	)
	for _, cartItem := range cartItems {
		if cartItem.Quantity <= 0 {
			continue
		}
		product, ok := byID[strings.TrimSpace(cartItem.ProductID)]
		if !ok {
			missing = append(missing, cartItem.ProductID)
			continue
		}
		items = append(items, pricing.LineItem{
			Product:        product,
			Quantity:       cartItem.Quantity,
			Customizations: cartItem.Customizations,
		})

		unit := pricing.ResolveItemPrice(product, cartItem.Customizations, configs)
		unitMRP := product.Price
		if product.HasMRP() {
			unitMRP = product.MRP
		}
		unitMRP += unit - product.Price
		lines = append(lines, domain.OrderLineItem{
			ProductID:      product.ID,
			Name:           product.Name,
			ProductType:    product.ProductType,
			Quantity:       cartItem.Quantity,
			UnitPrice:      unit,
			UnitMRP:        unitMRP,
			Customizations: cartItem.Customizations.Clone(),
			Total:          unit * int64(cartItem.Quantity),
		})
	}
	return items, lines, missing, nil
}
