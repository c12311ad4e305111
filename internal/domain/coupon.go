package domain

import "time"

// DiscountType enumerates how a coupon's value is interpreted.
type DiscountType string

const (
	// DiscountTypePercentage discounts a percentage of the order subtotal.
	DiscountTypePercentage DiscountType = "percentage"
	// DiscountTypeFixedAmount discounts a fixed amount, capped at the subtotal.
	DiscountTypeFixedAmount DiscountType = "fixed_amount"
)

// Coupon is a code-activated discount rule with eligibility constraints.
// Codes are stored uppercase and matched case-insensitively. For percentage
// coupons DiscountValue is a percentage; for fixed-amount coupons it is an
// amount in the smallest currency unit.
type Coupon struct {
	ID             string
	Code           string
	Description    string
	DiscountType   DiscountType
	DiscountValue  int64
	MinOrderAmount int64
	MaxUsesPerUser int
	ValidFrom      *time.Time
	ValidUntil     *time.Time
	IsActive       bool
	IsHidden       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CouponUsage aggregates per-user redemption counts for a coupon code.
type CouponUsage struct {
	Code     string
	UserID   string
	Times    int
	LastUsed time.Time
}
