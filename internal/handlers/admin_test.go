package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/storelane/api/internal/domain"
	"github.com/storelane/api/internal/repositories"
	"github.com/storelane/api/internal/services"
)

type stubCouponService struct {
	validateFn func(ctx context.Context, code string, orderValue int64) (services.CouponDiscount, error)
	commitFn   func(ctx context.Context, couponID string) error
	createFn   func(ctx context.Context, cmd services.UpsertCouponCommand) (domain.Coupon, error)
	listFn     func(ctx context.Context, pager domain.Pagination) (domain.CursorPage[domain.Coupon], error)
}

func (s *stubCouponService) Validate(ctx context.Context, code string, orderValue int64) (services.CouponDiscount, error) {
	if s.validateFn == nil {
		return services.CouponDiscount{}, errors.New("validate not stubbed")
	}
	return s.validateFn(ctx, code, orderValue)
}

func (s *stubCouponService) CommitUsage(ctx context.Context, couponID string) error {
	if s.commitFn == nil {
		return nil
	}
	return s.commitFn(ctx, couponID)
}

func (s *stubCouponService) Create(ctx context.Context, cmd services.UpsertCouponCommand) (domain.Coupon, error) {
	if s.createFn == nil {
		return domain.Coupon{}, errors.New("create not stubbed")
	}
	return s.createFn(ctx, cmd)
}

func (s *stubCouponService) List(ctx context.Context, pager domain.Pagination) (domain.CursorPage[domain.Coupon], error) {
	if s.listFn == nil {
		return domain.CursorPage[domain.Coupon]{}, errors.New("list not stubbed")
	}
	return s.listFn(ctx, pager)
}

func TestAdminHandlersCreateCoupon(t *testing.T) {
	router := chi.NewRouter()
	var captured services.UpsertCouponCommand
	coupons := &stubCouponService{
		createFn: func(ctx context.Context, cmd services.UpsertCouponCommand) (domain.Coupon, error) {
			captured = cmd
			maxUses := int64(100)
			return domain.Coupon{
				ID:            "cpn-1",
				Code:          cmd.Code,
				Type:          cmd.Type,
				Value:         cmd.Value,
				MaxUses:       &maxUses,
				ValidFrom:     cmd.ValidFrom,
				ValidTo:       cmd.ValidTo,
				MinOrderValue: cmd.MinOrderValue,
				IsActive:      cmd.IsActive,
			}, nil
		},
	}
	NewAdminHandlers(coupons, &stubOrderService{}).Routes(router)

	payload := `{"code":"SAVE10","type":"percent","value":10,"maxUses":100,"validFrom":"2025-07-01T00:00:00Z","validTo":"2025-08-01T00:00:00Z","minOrderValue":500000,"isActive":true}`
	req := withUser(httptest.NewRequest(http.MethodPost, "/coupons", bytes.NewBufferString(payload)), "staff-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.Code != "SAVE10" || captured.Type != domain.CouponTypePercent || captured.Value != 10 {
		t.Fatalf("unexpected command %+v", captured)
	}
	if captured.MaxUses == nil || *captured.MaxUses != 100 {
		t.Fatalf("expected max uses 100, got %v", captured.MaxUses)
	}
	wantFrom := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	if !captured.ValidFrom.Equal(wantFrom) {
		t.Fatalf("expected valid from %v, got %v", wantFrom, captured.ValidFrom)
	}
	if captured.MinOrderValue != 500000 || !captured.IsActive {
		t.Fatalf("unexpected command %+v", captured)
	}

	var resp couponResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Coupon.ID != "cpn-1" || resp.Coupon.Code != "SAVE10" {
		t.Fatalf("unexpected coupon payload %+v", resp.Coupon)
	}
}

func TestAdminHandlersCreateCouponRejectsBadType(t *testing.T) {
	router := chi.NewRouter()
	NewAdminHandlers(&stubCouponService{}, &stubOrderService{}).Routes(router)

	payload := `{"code":"SAVE10","type":"bogus","value":10,"validFrom":"2025-07-01T00:00:00Z","validTo":"2025-08-01T00:00:00Z"}`
	req := withUser(httptest.NewRequest(http.MethodPost, "/coupons", bytes.NewBufferString(payload)), "staff-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestAdminHandlersCreateCouponRejectsBadTimestamp(t *testing.T) {
	router := chi.NewRouter()
	NewAdminHandlers(&stubCouponService{}, &stubOrderService{}).Routes(router)

	payload := `{"code":"SAVE10","type":"fixed","value":10000,"validFrom":"July 1st","validTo":"2025-08-01T00:00:00Z"}`
	req := withUser(httptest.NewRequest(http.MethodPost, "/coupons", bytes.NewBufferString(payload)), "staff-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestAdminHandlersCreateCouponMapsConflict(t *testing.T) {
	router := chi.NewRouter()
	coupons := &stubCouponService{
		createFn: func(context.Context, services.UpsertCouponCommand) (domain.Coupon, error) {
			return domain.Coupon{}, services.ErrCouponConflict
		},
	}
	NewAdminHandlers(coupons, &stubOrderService{}).Routes(router)

	payload := `{"code":"SAVE10","type":"fixed","value":10000,"validFrom":"2025-07-01T00:00:00Z","validTo":"2025-08-01T00:00:00Z"}`
	req := withUser(httptest.NewRequest(http.MethodPost, "/coupons", bytes.NewBufferString(payload)), "staff-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}
}

func TestAdminHandlersListCoupons(t *testing.T) {
	router := chi.NewRouter()
	coupons := &stubCouponService{
		listFn: func(ctx context.Context, pager domain.Pagination) (domain.CursorPage[domain.Coupon], error) {
			if pager.PageSize != 10 {
				t.Fatalf("expected page size 10, got %d", pager.PageSize)
			}
			return domain.CursorPage[domain.Coupon]{
				Items: []domain.Coupon{{
					ID:       "cpn-1",
					Code:     "SAVE10",
					Type:     domain.CouponTypePercent,
					Value:    10,
					IsActive: true,
				}},
				NextPageToken: "tok-1",
			}, nil
		},
	}
	NewAdminHandlers(coupons, &stubOrderService{}).Routes(router)

	req := withUser(httptest.NewRequest(http.MethodGet, "/coupons?page_size=10", nil), "staff-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var resp couponListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].Code != "SAVE10" {
		t.Fatalf("unexpected items %+v", resp.Items)
	}
	if resp.NextPageToken != "tok-1" {
		t.Fatalf("expected next page token tok-1, got %s", resp.NextPageToken)
	}
}

func TestAdminHandlersListAllOrdersWithFilter(t *testing.T) {
	router := chi.NewRouter()
	var captured repositories.OrderListFilter
	orders := &stubOrderService{
		listAllFn: func(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
			captured = filter
			return domain.CursorPage[domain.Order]{Items: []domain.Order{sampleOrder()}}, nil
		},
	}
	NewAdminHandlers(&stubCouponService{}, orders).Routes(router)

	req := withUser(httptest.NewRequest(http.MethodGet, "/orders?status=shipping&created_after=2025-07-01T00:00:00Z&page_size=20", nil), "staff-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.Status == nil || *captured.Status != domain.OrderStatusShipping {
		t.Fatalf("expected shipping filter, got %v", captured.Status)
	}
	if captured.CreatedAfter == nil || !captured.CreatedAfter.Equal(time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected created_after filter, got %v", captured.CreatedAfter)
	}
	if captured.Pagination.PageSize != 20 {
		t.Fatalf("expected page size 20, got %d", captured.Pagination.PageSize)
	}
}

func TestAdminHandlersListAllOrdersRejectsUnknownStatus(t *testing.T) {
	router := chi.NewRouter()
	NewAdminHandlers(&stubCouponService{}, &stubOrderService{}).Routes(router)

	req := withUser(httptest.NewRequest(http.MethodGet, "/orders?status=teleported", nil), "staff-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestAdminHandlersListAllOrdersRejectsInvertedWindow(t *testing.T) {
	router := chi.NewRouter()
	NewAdminHandlers(&stubCouponService{}, &stubOrderService{}).Routes(router)

	req := withUser(httptest.NewRequest(http.MethodGet, "/orders?created_after=2025-08-01T00:00:00Z&created_before=2025-07-01T00:00:00Z", nil), "staff-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}
