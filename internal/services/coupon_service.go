package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/fluteatelier/api/internal/domain"
	"github.com/fluteatelier/api/internal/pricing"
	"github.com/fluteatelier/api/internal/repositories"
)

var (
	// ErrCouponInvalidInput indicates the caller supplied invalid input.
	ErrCouponInvalidInput = errors.New("coupon service: invalid input")
	// ErrCouponUnavailable indicates the coupon backend cannot be reached.
	ErrCouponUnavailable = errors.New("coupon service: unavailable")
	// ErrCouponNotFound indicates no coupon exists for the submitted code.
	ErrCouponNotFound = errors.New("coupon service: coupon not found")
	// ErrCouponExists indicates a coupon with the same code already exists.
	ErrCouponExists = errors.New("coupon service: coupon code already exists")
	// ErrCouponUsageLimitReached indicates the per-user usage cap is exhausted.
	ErrCouponUsageLimitReached = errors.New("coupon service: usage limit reached")
)

// CouponServiceDeps wires persistence behind the coupon service.
type CouponServiceDeps struct {
	Coupons     repositories.CouponRepository
	Usage       repositories.CouponUsageRepository
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type couponService struct {
	coupons repositories.CouponRepository
	usage   repositories.CouponUsageRepository
	now     func() time.Time
	newID   func() string
	logger  func(ctx context.Context, event string, fields map[string]any)
}

// NewCouponService constructs a CouponService validating its dependencies.
func NewCouponService(deps CouponServiceDeps) (CouponService, error) {
	if deps.Coupons == nil {
		return nil, errors.New("coupon service: coupon repository is required")
	}
	if deps.Usage == nil {
		return nil, errors.New("coupon service: usage repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &couponService{
		coupons: deps.Coupons,
		usage:   deps.Usage,
		now:     func() time.Time { return clock().UTC() },
		newID:   idGen,
		logger:  logger,
	}, nil
}

// Validate runs the full application-time rule set for a code. Eligibility
// is evaluated fresh on every call so quantity edits after an apply can
// never reuse a stale decision.
func (s *couponService) Validate(ctx context.Context, code string, subtotal int64, userID string) (CouponValidation, error) {
	if s == nil || s.coupons == nil {
		return CouponValidation{}, ErrCouponUnavailable
	}

	normalized, err := pricing.NormalizeCouponCode(code)
	if err != nil {
		return CouponValidation{}, err
	}

	coupon, err := s.coupons.FindByCode(ctx, normalized)
	if err != nil {
		if isRepoNotFound(err) {
			return CouponValidation{}, ErrCouponNotFound
		}
		return CouponValidation{}, ErrCouponUnavailable
	}

	if err := pricing.EvaluateCoupon(coupon, subtotal, s.now()); err != nil {
		return CouponValidation{}, err
	}

	if coupon.MaxUsesPerUser > 0 && strings.TrimSpace(userID) != "" {
		used, err := s.usage.Count(ctx, normalized, strings.TrimSpace(userID))
		if err != nil {
			return CouponValidation{}, ErrCouponUnavailable
		}
		if used >= coupon.MaxUsesPerUser {
			return CouponValidation{}, ErrCouponUsageLimitReached
		}
	}

	return CouponValidation{
		Coupon:         coupon,
		DiscountAmount: pricing.CouponDiscount(coupon, subtotal),
	}, nil
}

// RecordUsage increments the per-user redemption counter after an order is
// placed with the coupon applied.
func (s *couponService) RecordUsage(ctx context.Context, code string, userID string) error {
	if s == nil || s.usage == nil {
		return ErrCouponUnavailable
	}
	normalized, err := pricing.NormalizeCouponCode(code)
	if err != nil {
		return err
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return ErrCouponInvalidInput
	}
	if err := s.usage.Record(ctx, normalized, uid, s.now()); err != nil {
		return ErrCouponUnavailable
	}
	return nil
}

// ListPublicCoupons lists active, non-hidden coupons for storefront display.
func (s *couponService) ListPublicCoupons(ctx context.Context, pager Pagination) (domain.CursorPage[Coupon], error) {
	return s.list(ctx, repositories.CouponListFilter{Pager: pager})
}

// ListCoupons lists coupons for the admin surface.
func (s *couponService) ListCoupons(ctx context.Context, filter CouponListFilter) (domain.CursorPage[Coupon], error) {
	return s.list(ctx, repositories.CouponListFilter{
		IncludeHidden:   filter.IncludeHidden,
		IncludeInactive: filter.IncludeInactive,
		Pager:           filter.Pager,
	})
}

func (s *couponService) list(ctx context.Context, filter repositories.CouponListFilter) (domain.CursorPage[Coupon], error) {
	if s == nil || s.coupons == nil {
		return domain.CursorPage[Coupon]{}, ErrCouponUnavailable
	}
	page, err := s.coupons.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[Coupon]{}, ErrCouponUnavailable
	}
	return page, nil
}

// CreateCoupon persists a new coupon definition under its normalised code.
func (s *couponService) CreateCoupon(ctx context.Context, cmd UpsertCouponCommand) (Coupon, error) {
	if s == nil || s.coupons == nil {
		return Coupon{}, ErrCouponUnavailable
	}
	coupon, err := s.couponFromCommand(cmd)
	if err != nil {
		return Coupon{}, err
	}

	if _, err := s.coupons.FindByCode(ctx, coupon.Code); err == nil {
		return Coupon{}, ErrCouponExists
	} else if !isRepoNotFound(err) {
		return Coupon{}, ErrCouponUnavailable
	}

	now := s.now()
	coupon.ID = firstNonEmpty(cmd.CouponID, s.newID())
	coupon.CreatedAt = now
	coupon.UpdatedAt = now
	if err := s.coupons.Insert(ctx, coupon); err != nil {
		if isRepoConflict(err) {
			return Coupon{}, ErrCouponExists
		}
		return Coupon{}, ErrCouponUnavailable
	}

	s.logger(ctx, "coupon.created", map[string]any{"code": coupon.Code, "actor": cmd.Actor})
	return coupon, nil
}

// UpdateCoupon replaces an existing coupon definition.
func (s *couponService) UpdateCoupon(ctx context.Context, cmd UpsertCouponCommand) (Coupon, error) {
	if s == nil || s.coupons == nil {
		return Coupon{}, ErrCouponUnavailable
	}
	coupon, err := s.couponFromCommand(cmd)
	if err != nil {
		return Coupon{}, err
	}

	existing, err := s.coupons.FindByCode(ctx, coupon.Code)
	if err != nil {
		if isRepoNotFound(err) {
			return Coupon{}, ErrCouponNotFound
		}
		return Coupon{}, ErrCouponUnavailable
	}

	coupon.ID = existing.ID
	coupon.CreatedAt = existing.CreatedAt
	coupon.UpdatedAt = s.now()
	if err := s.coupons.Update(ctx, coupon); err != nil {
		if isRepoNotFound(err) {
			return Coupon{}, ErrCouponNotFound
		}
		return Coupon{}, ErrCouponUnavailable
	}

	s.logger(ctx, "coupon.updated", map[string]any{"code": coupon.Code, "actor": cmd.Actor})
	return coupon, nil
}

// DeleteCoupon removes a coupon definition. Historical orders keep their
// frozen discounts regardless.
func (s *couponService) DeleteCoupon(ctx context.Context, couponID string, actor string) error {
	if s == nil || s.coupons == nil {
		return ErrCouponUnavailable
	}
	id := strings.TrimSpace(couponID)
	if id == "" {
		return ErrCouponInvalidInput
	}
	if err := s.coupons.Delete(ctx, id); err != nil {
		if isRepoNotFound(err) {
			return ErrCouponNotFound
		}
		return ErrCouponUnavailable
	}
	s.logger(ctx, "coupon.deleted", map[string]any{"couponId": id, "actor": actor})
	return nil
}

func (s *couponService) couponFromCommand(cmd UpsertCouponCommand) (domain.Coupon, error) {
	code, err := pricing.NormalizeCouponCode(cmd.Code)
	if err != nil {
		return domain.Coupon{}, fmt.Errorf("%w: code is required", ErrCouponInvalidInput)
	}
	if cmd.DiscountType != domain.DiscountTypePercentage && cmd.DiscountType != domain.DiscountTypeFixedAmount {
		return domain.Coupon{}, fmt.Errorf("%w: unknown discount type %q", ErrCouponInvalidInput, cmd.DiscountType)
	}
	if cmd.DiscountValue <= 0 {
		return domain.Coupon{}, fmt.Errorf("%w: discount value must be positive", ErrCouponInvalidInput)
	}
	if cmd.DiscountType == domain.DiscountTypePercentage && cmd.DiscountValue > 100 {
		return domain.Coupon{}, fmt.Errorf("%w: percentage discount cannot exceed 100", ErrCouponInvalidInput)
	}
	if cmd.MinOrderAmount < 0 {
		return domain.Coupon{}, fmt.Errorf("%w: minimum order amount cannot be negative", ErrCouponInvalidInput)
	}
	if cmd.MaxUsesPerUser < 1 {
		return domain.Coupon{}, fmt.Errorf("%w: max uses per user must be at least 1", ErrCouponInvalidInput)
	}
	if cmd.ValidFrom != nil && cmd.ValidUntil != nil && cmd.ValidUntil.Before(*cmd.ValidFrom) {
		return domain.Coupon{}, fmt.Errorf("%w: validity window ends before it starts", ErrCouponInvalidInput)
	}

	return domain.Coupon{
		Code:           code,
		Description:    strings.TrimSpace(cmd.Description),
		DiscountType:   cmd.DiscountType,
		DiscountValue:  cmd.DiscountValue,
		MinOrderAmount: cmd.MinOrderAmount,
		MaxUsesPerUser: cmd.MaxUsesPerUser,
		ValidFrom:      cloneTimePointer(cmd.ValidFrom),
		ValidUntil:     cloneTimePointer(cmd.ValidUntil),
		IsActive:       cmd.IsActive,
		IsHidden:       cmd.IsHidden,
	}, nil
}
