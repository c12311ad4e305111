package pricing

import (
	"errors"
	"strings"
	"time"

	"github.com/fluteatelier/api/internal/domain"
)

// Coupon rejection reasons. Each maps to a distinct user-facing message;
// a generic failure is never surfaced for an eligibility miss. Lookup
// (not found) and per-user usage caps require persisted state and are
// enforced by the coupon service on top of these checks.
var (
	// ErrCouponCodeRequired indicates an empty code was submitted.
	ErrCouponCodeRequired = errors.New("pricing: coupon code is required")
	// ErrCouponInactive indicates the coupon exists but is switched off.
	ErrCouponInactive = errors.New("pricing: coupon is not active")
	// ErrCouponNotStarted indicates the coupon validity window has not opened.
	ErrCouponNotStarted = errors.New("pricing: coupon is not valid yet")
	// ErrCouponExpired indicates the coupon validity window has closed.
	ErrCouponExpired = errors.New("pricing: coupon has expired")
	// ErrCouponBelowMinimum indicates the subtotal is under the coupon minimum.
	ErrCouponBelowMinimum = errors.New("pricing: order subtotal is below the coupon minimum")
)

// NormalizeCouponCode trims and uppercases a submitted code. Codes are stored
// uppercase and matched case-insensitively.
func NormalizeCouponCode(code string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return "", ErrCouponCodeRequired
	}
	return normalized, nil
}

// EvaluateCoupon checks a coupon's stateless eligibility rules against the
// order subtotal at the supplied instant. Validity is always evaluated fresh
// at application time, never cached.
func EvaluateCoupon(coupon domain.Coupon, subtotal int64, now time.Time) error {
	if !coupon.IsActive {
		return ErrCouponInactive
	}
	if coupon.ValidFrom != nil && now.Before(*coupon.ValidFrom) {
		return ErrCouponNotStarted
	}
	if coupon.ValidUntil != nil && now.After(*coupon.ValidUntil) {
		return ErrCouponExpired
	}
	if subtotal < coupon.MinOrderAmount {
		return ErrCouponBelowMinimum
	}
	return nil
}

// CouponDiscount computes the discount amount for an eligible coupon.
// Percentage coupons discount a share of the subtotal; fixed-amount coupons
// are capped at the subtotal so the discount can never exceed it.
func CouponDiscount(coupon domain.Coupon, subtotal int64) int64 {
	if subtotal <= 0 || coupon.DiscountValue <= 0 {
		return 0
	}
	switch coupon.DiscountType {
	case domain.DiscountTypePercentage:
		return subtotal * coupon.DiscountValue / 100
	case domain.DiscountTypeFixedAmount:
		if coupon.DiscountValue > subtotal {
			return subtotal
		}
		return coupon.DiscountValue
	default:
		return 0
	}
}
