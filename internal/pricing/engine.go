// Package pricing implements the cart/order pricing resolution engine: the
// single place that turns selected products, customizations, shipping rules,
// and an optional coupon into a payable total. Every display and persistence
// surface (cart, checkout, order detail, admin order detail, invoice) goes
// through this package rather than re-deriving the arithmetic.
//
// All functions are pure and deterministic, perform no I/O, and never mutate
// their inputs, so they are safe to call concurrently without coordination.
package pricing

import (
	"fmt"

	"github.com/fluteatelier/api/internal/domain"
)

// LineItem pairs a product record with the quantity and customizations
// selected for it.
type LineItem struct {
	Product        domain.Product
	Quantity       int
	Customizations domain.CustomizationSelection
}

// CartAggregate holds the cart-level sums produced by AggregateCart.
type CartAggregate struct {
	Subtotal        int64
	TotalMRP        int64
	ProductDiscount int64
	Warnings        []string
}

// Quote is the full pricing breakdown for a cart snapshot. At checkout it is
// persisted verbatim into the order summary and never recomputed.
type Quote struct {
	Subtotal        int64
	TotalMRP        int64
	ProductDiscount int64
	ShippingFee     int64
	CouponDiscount  int64
	CouponCode      string
	TotalDiscount   int64
	GrandTotal      int64
	Warnings        []string
}

// QuoteInput carries everything a full pricing pass needs. Settings are
// passed explicitly per call; the engine holds no ambient configuration.
// Coupon, when set, must already have been validated by the caller.
type QuoteInput struct {
	Items        []LineItem
	Configs      []domain.CustomizationConfig
	ShippingRule domain.ShippingRule
	Coupon       *domain.Coupon
}

// ResolveItemPrice computes the effective unit price for a product with the
// given customization selection. Only options-bearing customization types
// (radio/select) contribute price deltas; checkbox, free-text, and multi-slot
// selections never do. Unknown labels and unmatched option values contribute
// zero rather than failing, so completed historical orders tolerate stale
// customization configs.
func ResolveItemPrice(product domain.Product, customizations domain.CustomizationSelection, configs []domain.CustomizationConfig) int64 {
	price := product.Price
	if len(customizations) == 0 {
		return price
	}

	byLabel := indexConfigs(configs)
	for label, selected := range customizations {
		cfg, ok := byLabel[label]
		if !ok || !cfg.Type.CarriesOptions() {
			continue
		}
		value, ok := selected.(string)
		if !ok {
			continue
		}
		if opt, ok := cfg.FindOption(value); ok {
			price += opt.PriceChange
		}
	}
	return price
}

// AggregateCart sums effective prices and list prices across line items.
// TotalMRP falls back to the effective price when a product has no MRP set,
// so the product-level discount is zero for such items. The product discount
// is clamped at zero; a negative value indicates bad catalog data and is
// reported as a warning rather than an error, since pricing must never fail
// a checkout flow.
func AggregateCart(items []LineItem, configs []domain.CustomizationConfig) CartAggregate {
	var agg CartAggregate
	for _, item := range items {
		if item.Quantity <= 0 {
			continue
		}
		qty := int64(item.Quantity)

		unit := ResolveItemPrice(item.Product, item.Customizations, configs)
		if item.Product.Price <= 0 {
			agg.Warnings = append(agg.Warnings, fmt.Sprintf("product %s has no positive price", item.Product.ID))
		}
		if unit < 0 {
			agg.Warnings = append(agg.Warnings, fmt.Sprintf("product %s resolved to a negative price", item.Product.ID))
			unit = 0
		}
		agg.Subtotal += unit * qty

		// The same customization deltas apply to the list price so the
		// struck-through amount moves with the configured options.
		delta := unit - item.Product.Price
		base := item.Product.Price
		if item.Product.HasMRP() {
			base = item.Product.MRP
		}
		unitMRP := base + delta
		if unitMRP < 0 {
			unitMRP = 0
		}
		agg.TotalMRP += unitMRP * qty
	}

	agg.ProductDiscount = agg.TotalMRP - agg.Subtotal
	if agg.ProductDiscount < 0 {
		agg.Warnings = append(agg.Warnings, "total MRP below subtotal; product discount clamped to zero")
		agg.ProductDiscount = 0
	}
	return agg
}

// CalculateShipping evaluates the store shipping rule against a cart.
// An empty cart ships free. Subtotals at or above a positive free-shipping
// threshold ship free regardless of per-item overrides. When any item carries
// a positive shipping cost override, shipping is the sum of the overrides of
// only those items and the default rate is not charged for the rest; this
// override-replaces-default behaviour is preserved from the shipping policy
// in force, pending product-owner confirmation (see the ambiguity test).
func CalculateShipping(items []LineItem, subtotal int64, rule domain.ShippingRule) int64 {
	if subtotal == 0 {
		return 0
	}
	if rule.FreeShippingThreshold > 0 && subtotal >= rule.FreeShippingThreshold {
		return 0
	}

	var overrideTotal int64
	hasOverride := false
	for _, item := range items {
		if item.Quantity <= 0 {
			continue
		}
		if item.Product.ShippingCostOverride > 0 {
			hasOverride = true
			overrideTotal += item.Product.ShippingCostOverride * int64(item.Quantity)
		}
	}
	if hasOverride {
		return overrideTotal
	}
	if rule.DefaultRate < 0 {
		return 0
	}
	return rule.DefaultRate
}

// ComposeTotal combines the aggregates into the grand total, floored at zero
// so a discount can never produce a negative payable amount.
func ComposeTotal(subtotal, shippingFee, couponDiscount int64) int64 {
	total := subtotal + shippingFee - couponDiscount
	if total < 0 {
		return 0
	}
	return total
}

// ComputeQuote runs the full pricing pass over a cart snapshot and returns
// the tuple persisted into the frozen order summary.
func ComputeQuote(input QuoteInput) Quote {
	agg := AggregateCart(input.Items, input.Configs)
	shipping := CalculateShipping(input.Items, agg.Subtotal, input.ShippingRule)

	var couponDiscount int64
	couponCode := ""
	if input.Coupon != nil {
		couponDiscount = CouponDiscount(*input.Coupon, agg.Subtotal)
		couponCode = input.Coupon.Code
	}

	return Quote{
		Subtotal:        agg.Subtotal,
		TotalMRP:        agg.TotalMRP,
		ProductDiscount: agg.ProductDiscount,
		ShippingFee:     shipping,
		CouponDiscount:  couponDiscount,
		CouponCode:      couponCode,
		TotalDiscount:   agg.ProductDiscount + couponDiscount,
		GrandTotal:      ComposeTotal(agg.Subtotal, shipping, couponDiscount),
		Warnings:        agg.Warnings,
	}
}

// Summary converts the quote into the order summary frozen at checkout.
func (q Quote) Summary(method domain.PaymentMethod) domain.OrderSummary {
	return domain.OrderSummary{
		Subtotal:        q.Subtotal,
		TotalMRP:        q.TotalMRP,
		ProductDiscount: q.ProductDiscount,
		ShippingFee:     q.ShippingFee,
		CouponDiscount:  q.CouponDiscount,
		CouponCode:      q.CouponCode,
		TotalDiscount:   q.TotalDiscount,
		GrandTotal:      q.GrandTotal,
		PaymentMethod:   method,
	}
}

func indexConfigs(configs []domain.CustomizationConfig) map[string]domain.CustomizationConfig {
	byLabel := make(map[string]domain.CustomizationConfig, len(configs))
	for _, cfg := range configs {
		byLabel[cfg.Label] = cfg
	}
	return byLabel
}
