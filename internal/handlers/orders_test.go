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
	"github.com/storelane/api/internal/platform/requestctx"
	"github.com/storelane/api/internal/repositories"
	"github.com/storelane/api/internal/services"
)

type stubOrderService struct {
	checkoutFn   func(ctx context.Context, cmd services.CheckoutCommand) (domain.Order, error)
	getFn        func(ctx context.Context, orderID string, opts services.OrderReadOptions) (domain.Order, error)
	listFn       func(ctx context.Context, userID string, pager domain.Pagination) (domain.CursorPage[domain.Order], error)
	listAllFn    func(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error)
	transitionFn func(ctx context.Context, cmd services.OrderStatusTransitionCommand) (domain.Order, error)
	cancelFn     func(ctx context.Context, cmd services.CancelOrderCommand) (domain.Order, error)
	legalNextFn  func(order domain.Order) []domain.OrderStatus
	notifyFn     func(ctx context.Context, cmd services.PaymentNotificationCommand) (services.PaymentNotificationResult, error)
}

func (s *stubOrderService) Checkout(ctx context.Context, cmd services.CheckoutCommand) (domain.Order, error) {
	if s.checkoutFn == nil {
		return domain.Order{}, errors.New("checkout not stubbed")
	}
	return s.checkoutFn(ctx, cmd)
}

func (s *stubOrderService) GetOrder(ctx context.Context, orderID string, opts services.OrderReadOptions) (domain.Order, error) {
	if s.getFn == nil {
		return domain.Order{}, errors.New("get not stubbed")
	}
	return s.getFn(ctx, orderID, opts)
}

func (s *stubOrderService) ListOrders(ctx context.Context, userID string, pager domain.Pagination) (domain.CursorPage[domain.Order], error) {
	if s.listFn == nil {
		return domain.CursorPage[domain.Order]{}, errors.New("list not stubbed")
	}
	return s.listFn(ctx, userID, pager)
}

func (s *stubOrderService) ListAllOrders(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if s.listAllFn == nil {
		return domain.CursorPage[domain.Order]{}, errors.New("list all not stubbed")
	}
	return s.listAllFn(ctx, filter)
}

func (s *stubOrderService) TransitionStatus(ctx context.Context, cmd services.OrderStatusTransitionCommand) (domain.Order, error) {
	if s.transitionFn == nil {
		return domain.Order{}, errors.New("transition not stubbed")
	}
	return s.transitionFn(ctx, cmd)
}

func (s *stubOrderService) CancelByUser(ctx context.Context, cmd services.CancelOrderCommand) (domain.Order, error) {
	if s.cancelFn == nil {
		return domain.Order{}, errors.New("cancel not stubbed")
	}
	return s.cancelFn(ctx, cmd)
}

func (s *stubOrderService) LegalNextStatuses(order domain.Order) []domain.OrderStatus {
	if s.legalNextFn == nil {
		return nil
	}
	return s.legalNextFn(order)
}

func (s *stubOrderService) HandlePaymentNotification(ctx context.Context, cmd services.PaymentNotificationCommand) (services.PaymentNotificationResult, error) {
	if s.notifyFn == nil {
		return services.PaymentNotificationResult{}, errors.New("notification not stubbed")
	}
	return s.notifyFn(ctx, cmd)
}

func withUser(req *http.Request, userID string) *http.Request {
	return req.WithContext(requestctx.WithUserID(req.Context(), userID))
}

func sampleOrder() domain.Order {
	created := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)
	return domain.Order{
		ID:     "ord-1",
		Code:   "SL-240701-ABCD",
		UserID: "user-1",
		Items: []domain.OrderLineItem{
			{ProductID: "prod-1", Name: "Ceramic Mug", UnitPrice: 400000, PreSalePrice: 400000, Quantity: 2, Variant: "black"},
		},
		Totals: domain.OrderTotals{
			SubTotal:    800000,
			Total:       800000,
			ShippingFee: 30000,
			GrandTotal:  830000,
		},
		Status:        domain.OrderStatusPending,
		PaymentMethod: domain.PaymentMethodCOD,
		PaymentStatus: domain.PaymentStatusUnpaid,
		Shipping: domain.ShippingInfo{
			FullName: "Tran Thi B",
			Phone:    "0901234567",
			Address:  "12 Nguyen Trai, District 1",
		},
		StatusHistory: []domain.StatusEntry{
			{Status: domain.OrderStatusPending, UpdatedAt: created},
		},
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestOrderHandlersListScopedToUser(t *testing.T) {
	router := chi.NewRouter()
	service := &stubOrderService{
		listFn: func(ctx context.Context, userID string, pager domain.Pagination) (domain.CursorPage[domain.Order], error) {
			if userID != "user-1" {
				t.Fatalf("expected user-1, got %s", userID)
			}
			if pager.PageSize != 5 || pager.PageToken != "tok-1" {
				t.Fatalf("unexpected pagination %+v", pager)
			}
			return domain.CursorPage[domain.Order]{
				Items:         []domain.Order{sampleOrder()},
				NextPageToken: "tok-2",
			}, nil
		},
	}
	NewOrderHandlers(service).Routes(router)

	req := withUser(httptest.NewRequest(http.MethodGet, "/?page_size=5&page_token=tok-1", nil), "user-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp orderListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].Code != "SL-240701-ABCD" {
		t.Fatalf("unexpected items %+v", resp.Items)
	}
	if resp.NextPageToken != "tok-2" {
		t.Fatalf("expected next page token tok-2, got %s", resp.NextPageToken)
	}
}

func TestOrderHandlersListRejectsBadPageSize(t *testing.T) {
	router := chi.NewRouter()
	NewOrderHandlers(&stubOrderService{}).Routes(router)

	req := withUser(httptest.NewRequest(http.MethodGet, "/?page_size=abc", nil), "user-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestOrderHandlersGetRequiresUser(t *testing.T) {
	router := chi.NewRouter()
	NewOrderHandlers(&stubOrderService{}).Routes(router)

	req := httptest.NewRequest(http.MethodGet, "/ord-1", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
}

func TestOrderHandlersGetReturnsOrder(t *testing.T) {
	router := chi.NewRouter()
	service := &stubOrderService{
		getFn: func(ctx context.Context, orderID string, opts services.OrderReadOptions) (domain.Order, error) {
			if orderID != "ord-1" {
				t.Fatalf("expected ord-1, got %s", orderID)
			}
			if opts.UserID != "user-1" {
				t.Fatalf("expected owner scope user-1, got %s", opts.UserID)
			}
			return sampleOrder(), nil
		},
	}
	NewOrderHandlers(service).Routes(router)

	req := withUser(httptest.NewRequest(http.MethodGet, "/ord-1", nil), "user-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp orderResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Order.ID != "ord-1" || resp.Order.Totals.GrandTotal != 830000 {
		t.Fatalf("unexpected order payload %+v", resp.Order)
	}
	if len(resp.Order.Items) != 1 || resp.Order.Items[0].LineTotal != 800000 {
		t.Fatalf("unexpected items %+v", resp.Order.Items)
	}
}

func TestOrderHandlersGetNotFound(t *testing.T) {
	router := chi.NewRouter()
	service := &stubOrderService{
		getFn: func(context.Context, string, services.OrderReadOptions) (domain.Order, error) {
			return domain.Order{}, services.ErrOrderNotFound
		},
	}
	NewOrderHandlers(service).Routes(router)

	req := withUser(httptest.NewRequest(http.MethodGet, "/ord-missing", nil), "user-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestOrderHandlersListTransitions(t *testing.T) {
	router := chi.NewRouter()
	service := &stubOrderService{
		getFn: func(context.Context, string, services.OrderReadOptions) (domain.Order, error) {
			return sampleOrder(), nil
		},
		legalNextFn: func(order domain.Order) []domain.OrderStatus {
			return []domain.OrderStatus{domain.OrderStatusProcessing, domain.OrderStatusCancelled}
		},
	}
	NewOrderHandlers(service).Routes(router)

	req := withUser(httptest.NewRequest(http.MethodGet, "/ord-1/transitions", nil), "user-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var resp orderTransitionsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "pending" {
		t.Fatalf("expected current status pending, got %s", resp.Status)
	}
	if len(resp.Transitions) != 2 || resp.Transitions[0] != "processing" || resp.Transitions[1] != "cancelled" {
		t.Fatalf("unexpected transitions %v", resp.Transitions)
	}
}

func TestOrderHandlersUpdateStatus(t *testing.T) {
	router := chi.NewRouter()
	var captured services.OrderStatusTransitionCommand
	service := &stubOrderService{
		transitionFn: func(ctx context.Context, cmd services.OrderStatusTransitionCommand) (domain.Order, error) {
			captured = cmd
			order := sampleOrder()
			order.Status = domain.OrderStatusProcessing
			return order, nil
		},
	}
	NewOrderHandlers(service).Routes(router)

	payload := `{"status":"processing","note":"packed"}`
	req := withUser(httptest.NewRequest(http.MethodPost, "/ord-1/status", bytes.NewBufferString(payload)), "staff-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.OrderID != "ord-1" || captured.Target != domain.OrderStatusProcessing {
		t.Fatalf("unexpected command %+v", captured)
	}
	if captured.Note != "packed" || captured.ActorID != "staff-1" {
		t.Fatalf("expected note and actor propagated, got %+v", captured)
	}
}

func TestOrderHandlersUpdateStatusRequiresStatus(t *testing.T) {
	router := chi.NewRouter()
	NewOrderHandlers(&stubOrderService{}).Routes(router)

	req := withUser(httptest.NewRequest(http.MethodPost, "/ord-1/status", bytes.NewBufferString(`{"note":"x"}`)), "staff-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestOrderHandlersUpdateStatusMapsInvalidState(t *testing.T) {
	router := chi.NewRouter()
	service := &stubOrderService{
		transitionFn: func(context.Context, services.OrderStatusTransitionCommand) (domain.Order, error) {
			return domain.Order{}, services.ErrOrderInvalidState
		},
	}
	NewOrderHandlers(service).Routes(router)

	req := withUser(httptest.NewRequest(http.MethodPost, "/ord-1/status", bytes.NewBufferString(`{"status":"received"}`)), "staff-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}
}

func TestOrderHandlersCancelWithoutBody(t *testing.T) {
	router := chi.NewRouter()
	var captured services.CancelOrderCommand
	service := &stubOrderService{
		cancelFn: func(ctx context.Context, cmd services.CancelOrderCommand) (domain.Order, error) {
			captured = cmd
			order := sampleOrder()
			order.Status = domain.OrderStatusCancelled
			return order, nil
		},
	}
	NewOrderHandlers(service).Routes(router)

	req := withUser(httptest.NewRequest(http.MethodPost, "/ord-1/cancel", nil), "user-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.OrderID != "ord-1" || captured.UserID != "user-1" || captured.Reason != "" {
		t.Fatalf("unexpected command %+v", captured)
	}
	var resp orderResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Order.Status != "cancelled" {
		t.Fatalf("expected cancelled order, got %s", resp.Order.Status)
	}
}

func TestOrderHandlersCancelPropagatesReason(t *testing.T) {
	router := chi.NewRouter()
	var captured services.CancelOrderCommand
	service := &stubOrderService{
		cancelFn: func(ctx context.Context, cmd services.CancelOrderCommand) (domain.Order, error) {
			captured = cmd
			return sampleOrder(), nil
		},
	}
	NewOrderHandlers(service).Routes(router)

	req := withUser(httptest.NewRequest(http.MethodPost, "/ord-1/cancel", bytes.NewBufferString(`{"reason":"ordered twice"}`)), "user-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if captured.Reason != "ordered twice" {
		t.Fatalf("expected reason propagated, got %q", captured.Reason)
	}
}

func TestOrderHandlersCancelMapsInvalidState(t *testing.T) {
	router := chi.NewRouter()
	service := &stubOrderService{
		cancelFn: func(context.Context, services.CancelOrderCommand) (domain.Order, error) {
			return domain.Order{}, services.ErrOrderInvalidState
		},
	}
	NewOrderHandlers(service).Routes(router)

	req := withUser(httptest.NewRequest(http.MethodPost, "/ord-1/cancel", nil), "user-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}
}
