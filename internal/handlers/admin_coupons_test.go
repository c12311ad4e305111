package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/fluteatelier/api/internal/domain"
	"github.com/fluteatelier/api/internal/platform/auth"
	"github.com/fluteatelier/api/internal/services"
)

func TestAdminListCouponsIncludesHiddenAndInactive(t *testing.T) {
	service := &stubCouponService{
		listFunc: func(ctx context.Context, filter services.CouponListFilter) (domain.CursorPage[services.Coupon], error) {
			if !filter.IncludeHidden || !filter.IncludeInactive {
				t.Fatalf("admin listing must include hidden and inactive coupons, got %+v", filter)
			}
			return domain.CursorPage[services.Coupon]{
				Items: []services.Coupon{
					{ID: "cpn-1", Code: "FLUTE10", DiscountType: domain.DiscountTypePercentage, DiscountValue: 10, IsActive: true},
					{ID: "cpn-2", Code: "VIP500", DiscountType: domain.DiscountTypeFixedAmount, DiscountValue: 50000, IsHidden: true},
				},
				NextPageToken: "tok-3",
			}, nil
		},
	}
	handler := NewAdminCouponHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/admin", handler.Routes)

	req := httptest.NewRequest(http.MethodGet, "/admin/coupons", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "admin-1"}))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp couponListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Coupons) != 2 || resp.NextPageToken != "tok-3" {
		t.Fatalf("unexpected listing %+v", resp)
	}
	if !resp.Coupons[1].IsHidden {
		t.Fatalf("hidden flag must survive, got %+v", resp.Coupons[1])
	}
}

func TestAdminCreateCoupon(t *testing.T) {
	var captured services.UpsertCouponCommand
	service := &stubCouponService{
		createFunc: func(ctx context.Context, cmd services.UpsertCouponCommand) (services.Coupon, error) {
			captured = cmd
			return services.Coupon{
				ID:            "cpn-9",
				Code:          cmd.Code,
				DiscountType:  cmd.DiscountType,
				DiscountValue: cmd.DiscountValue,
				IsActive:      cmd.IsActive,
			}, nil
		},
	}
	handler := NewAdminCouponHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/admin", handler.Routes)

	body := `{"code":" DIWALI25 ","discountType":"percentage","discountValue":25,"minOrderAmount":100000,"maxUsesPerUser":1,"validUntil":"2026-11-15T00:00:00Z","isActive":true}`
	req := httptest.NewRequest(http.MethodPost, "/admin/coupons", strings.NewReader(body))
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "admin-1"}))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.CouponID != "" || captured.Actor != "admin-1" {
		t.Fatalf("unexpected command %+v", captured)
	}
	if captured.Code != "DIWALI25" {
		t.Fatalf("code must be trimmed, got %q", captured.Code)
	}
	if captured.ValidUntil == nil {
		t.Fatal("expected validUntil parsed")
	}
	if captured.ValidFrom != nil {
		t.Fatalf("omitted validFrom must stay nil, got %v", captured.ValidFrom)
	}
}

func TestAdminCreateCouponBadWindow(t *testing.T) {
	handler := NewAdminCouponHandlers(nil, &stubCouponService{})
	router := chi.NewRouter()
	router.Route("/admin", handler.Routes)

	body := `{"code":"DIWALI25","discountType":"percentage","discountValue":25,"validFrom":"next tuesday"}`
	req := httptest.NewRequest(http.MethodPost, "/admin/coupons", strings.NewReader(body))
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "admin-1"}))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAdminUpdateCouponDuplicateCode(t *testing.T) {
	service := &stubCouponService{
		updateFunc: func(ctx context.Context, cmd services.UpsertCouponCommand) (services.Coupon, error) {
			if cmd.CouponID != "cpn-2" {
				t.Fatalf("unexpected coupon id %q", cmd.CouponID)
			}
			return services.Coupon{}, services.ErrCouponExists
		},
	}
	handler := NewAdminCouponHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/admin", handler.Routes)

	body := `{"code":"FLUTE10","discountType":"percentage","discountValue":10}`
	req := httptest.NewRequest(http.MethodPut, "/admin/coupons/cpn-2", strings.NewReader(body))
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "admin-1"}))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAdminDeleteCouponNotFound(t *testing.T) {
	service := &stubCouponService{
		deleteFunc: func(ctx context.Context, couponID, actor string) error {
			return services.ErrCouponNotFound
		},
	}
	handler := NewAdminCouponHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/admin", handler.Routes)

	req := httptest.NewRequest(http.MethodDelete, "/admin/coupons/cpn-404", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "admin-1"}))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

type stubCouponService struct {
	validateFunc   func(ctx context.Context, code string, subtotal int64, userID string) (services.CouponValidation, error)
	recordFunc     func(ctx context.Context, code string, userID string) error
	listPublicFunc func(ctx context.Context, pager services.Pagination) (domain.CursorPage[services.Coupon], error)
	listFunc       func(ctx context.Context, filter services.CouponListFilter) (domain.CursorPage[services.Coupon], error)
	createFunc     func(ctx context.Context, cmd services.UpsertCouponCommand) (services.Coupon, error)
	updateFunc     func(ctx context.Context, cmd services.UpsertCouponCommand) (services.Coupon, error)
	deleteFunc     func(ctx context.Context, couponID string, actor string) error
}

func (s *stubCouponService) Validate(ctx context.Context, code string, subtotal int64, userID string) (services.CouponValidation, error) {
	if s.validateFunc != nil {
		return s.validateFunc(ctx, code, subtotal, userID)
	}
	return services.CouponValidation{}, errors.New("not implemented")
}

func (s *stubCouponService) RecordUsage(ctx context.Context, code string, userID string) error {
	if s.recordFunc != nil {
		return s.recordFunc(ctx, code, userID)
	}
	return errors.New("not implemented")
}

func (s *stubCouponService) ListPublicCoupons(ctx context.Context, pager services.Pagination) (domain.CursorPage[services.Coupon], error) {
	if s.listPublicFunc != nil {
		return s.listPublicFunc(ctx, pager)
	}
	return domain.CursorPage[services.Coupon]{}, errors.New("not implemented")
}

func (s *stubCouponService) ListCoupons(ctx context.Context, filter services.CouponListFilter) (domain.CursorPage[services.Coupon], error) {
	if s.listFunc != nil {
		return s.listFunc(ctx, filter)
	}
	return domain.CursorPage[services.Coupon]{}, errors.New("not implemented")
}

func (s *stubCouponService) CreateCoupon(ctx context.Context, cmd services.UpsertCouponCommand) (services.Coupon, error) {
	if s.createFunc != nil {
		return s.createFunc(ctx, cmd)
	}
	return services.Coupon{}, errors.New("not implemented")
}

func (s *stubCouponService) UpdateCoupon(ctx context.Context, cmd services.UpsertCouponCommand) (services.Coupon, error) {
	if s.updateFunc != nil {
		return s.updateFunc(ctx, cmd)
	}
	return services.Coupon{}, errors.New("not implemented")
}

func (s *stubCouponService) DeleteCoupon(ctx context.Context, couponID string, actor string) error {
	if s.deleteFunc != nil {
		return s.deleteFunc(ctx, couponID, actor)
	}
	return errors.New("not implemented")
}
