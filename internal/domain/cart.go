package domain

import (
	"encoding/json"
	"sort"
	"time"
)

// CustomizationSelection maps a customization label to the value the shopper
// chose. Values are scalars for single inputs or nested maps for multi-slot
// selectors. Labels without a matching CustomizationConfig are tolerated and
// simply carry no price effect.
type CustomizationSelection map[string]any

// Clone returns a shallow-per-key copy of the selection.
func (s CustomizationSelection) Clone() CustomizationSelection {
	if len(s) == 0 {
		return nil
	}
	out := make(CustomizationSelection, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Fingerprint returns a canonical serialisation of the selection used for
// line-item identity. Keys are sorted so equal selections always produce the
// same fingerprint.
func (s CustomizationSelection) Fingerprint() string {
	if len(s) == 0 {
		return ""
	}
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	ordered := make([]any, 0, len(keys)*2)
	for _, k := range keys {
		ordered = append(ordered, k, s[k])
	}
	raw, err := json.Marshal(ordered)
	if err != nil {
		return ""
	}
	return string(raw)
}

// CartLineItem stores a single product entry within a cart. Two entries with
// the same product but different customizations are distinct line items.
type CartLineItem struct {
	ID             string
	ProductID      string
	Quantity       int
	Customizations CustomizationSelection
	AddedAt        time.Time
	UpdatedAt      *time.Time
}

// CartCoupon captures the coupon applied to a cart. DiscountAmount is a
// display snapshot only; it is recomputed whenever the subtotal changes.
type CartCoupon struct {
	Code           string
	DiscountAmount int64
	Applied        bool
}

// CartEstimate summarizes totals calculated for the cart by the pricing
// engine. Fields mirror the frozen OrderSummary tuple.
type CartEstimate struct {
	Subtotal        int64
	TotalMRP        int64
	ProductDiscount int64
	ShippingFee     int64
	CouponDiscount  int64
	GrandTotal      int64
}

// Cart aggregates the mutable shopping cart state for a user.
type Cart struct {
	ID                string
	UserID            string
	Currency          string
	Items             []CartLineItem
	Coupon            *CartCoupon
	ShippingAddressID string
	ShippingAddress   *Address
	Estimate          *CartEstimate
	Metadata          map[string]any
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
