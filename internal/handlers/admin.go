package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	domain "github.com/storelane/api/internal/domain"
	"github.com/storelane/api/internal/platform/httpx"
	"github.com/storelane/api/internal/repositories"
	"github.com/storelane/api/internal/services"
)

const maxCouponRequestBody = 8 * 1024

// AdminHandlers exposes the staff surface: coupon management and the
// storewide order listing. Route-level access control sits in front of this
// group; handlers only record the acting user.
type AdminHandlers struct {
	coupons  services.CouponService
	orders   services.OrderService
	validate *validator.Validate
}

// NewAdminHandlers constructs the admin handler group.
func NewAdminHandlers(coupons services.CouponService, orders services.OrderService) *AdminHandlers {
	return &AdminHandlers{
		coupons:  coupons,
		orders:   orders,
		validate: validator.New(),
	}
}

// Routes registers the admin endpoints under the provided router.
func (h *AdminHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/coupons", h.createCoupon)
	r.Get("/coupons", h.listCoupons)
	r.Get("/orders", h.listAllOrders)
}

type createCouponRequest struct {
	Code          string `json:"code" validate:"required,max=40"`
	Type          string `json:"type" validate:"required,oneof=fixed percent"`
	Value         int64  `json:"value" validate:"required,gt=0"`
	MaxUses       *int64 `json:"maxUses" validate:"omitempty,gt=0"`
	ValidFrom     string `json:"validFrom" validate:"required"`
	ValidTo       string `json:"validTo" validate:"required"`
	MinOrderValue int64  `json:"minOrderValue" validate:"gte=0"`
	IsActive      bool   `json:"isActive"`
}

func (h *AdminHandlers) createCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.coupons == nil {
		httpx.WriteError(ctx, w, httpx.NewError("coupon_service_unavailable", "coupon service unavailable", http.StatusServiceUnavailable))
		return
	}

	if _, ok := requireUser(ctx, w); !ok {
		return
	}

	body, err := readLimitedBody(r, maxCouponRequestBody)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), status))
		return
	}

	var req createCouponRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("validation_failed", "request validation failed", http.StatusBadRequest).
			WithDetails(map[string]any{"fields": validationFieldErrors(err)}))
		return
	}

	validFrom, err := parseTimeParam(req.ValidFrom)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "validFrom must be an RFC 3339 timestamp", http.StatusBadRequest))
		return
	}
	validTo, err := parseTimeParam(req.ValidTo)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "validTo must be an RFC 3339 timestamp", http.StatusBadRequest))
		return
	}

	coupon, err := h.coupons.Create(ctx, services.UpsertCouponCommand{
		Code:          strings.TrimSpace(req.Code),
		Type:          domain.CouponType(req.Type),
		Value:         req.Value,
		MaxUses:       req.MaxUses,
		ValidFrom:     validFrom,
		ValidTo:       validTo,
		MinOrderValue: req.MinOrderValue,
		IsActive:      req.IsActive,
	})
	if err != nil {
		writeCouponError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, couponResponse{Coupon: buildCouponPayload(coupon)})
}

func (h *AdminHandlers) listCoupons(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.coupons == nil {
		httpx.WriteError(ctx, w, httpx.NewError("coupon_service_unavailable", "coupon service unavailable", http.StatusServiceUnavailable))
		return
	}

	if _, ok := requireUser(ctx, w); !ok {
		return
	}

	pager, err := parsePagination(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	page, err := h.coupons.List(ctx, pager)
	if err != nil {
		writeCouponError(ctx, w, err)
		return
	}

	items := make([]couponPayload, 0, len(page.Items))
	for _, coupon := range page.Items {
		items = append(items, buildCouponPayload(coupon))
	}
	writeJSONResponse(w, http.StatusOK, couponListResponse{
		Items:         items,
		NextPageToken: page.NextPageToken,
	})
}

func (h *AdminHandlers) listAllOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	if _, ok := requireUser(ctx, w); !ok {
		return
	}

	filter, err := parseOrderListFilter(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	page, err := h.orders.ListAllOrders(ctx, filter)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildOrderListResponse(page))
}

func parseOrderListFilter(r *http.Request) (repositories.OrderListFilter, error) {
	pager, err := parsePagination(r)
	if err != nil {
		return repositories.OrderListFilter{}, err
	}
	filter := repositories.OrderListFilter{Pagination: pager}

	query := r.URL.Query()
	if raw := strings.TrimSpace(query.Get("status")); raw != "" {
		status := domain.OrderStatus(raw)
		if !knownOrderStatus(status) {
			return repositories.OrderListFilter{}, errors.New("unknown order status " + raw)
		}
		filter.Status = &status
	}
	if raw := strings.TrimSpace(query.Get("created_after")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			return repositories.OrderListFilter{}, errors.New("created_after must be an RFC 3339 timestamp")
		}
		filter.CreatedAfter = &ts
	}
	if raw := strings.TrimSpace(query.Get("created_before")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			return repositories.OrderListFilter{}, errors.New("created_before must be an RFC 3339 timestamp")
		}
		filter.CreatedBefore = &ts
	}
	if filter.CreatedAfter != nil && filter.CreatedBefore != nil && filter.CreatedBefore.Before(*filter.CreatedAfter) {
		return repositories.OrderListFilter{}, errors.New("created_before must not precede created_after")
	}
	return filter, nil
}

func knownOrderStatus(status domain.OrderStatus) bool {
	switch status {
	case domain.OrderStatusPending, domain.OrderStatusProcessing, domain.OrderStatusHandover,
		domain.OrderStatusShipping, domain.OrderStatusDelivered, domain.OrderStatusReceived,
		domain.OrderStatusCancelled:
		return true
	}
	return false
}

type couponResponse struct {
	Coupon couponPayload `json:"coupon"`
}

type couponListResponse struct {
	Items         []couponPayload `json:"items"`
	NextPageToken string          `json:"next_page_token,omitempty"`
}

type couponPayload struct {
	ID            string `json:"id"`
	Code          string `json:"code"`
	Type          string `json:"type"`
	Value         int64  `json:"value"`
	MaxUses       *int64 `json:"max_uses,omitempty"`
	UsedCount     int64  `json:"used_count"`
	ValidFrom     string `json:"valid_from"`
	ValidTo       string `json:"valid_to"`
	MinOrderValue int64  `json:"min_order_value"`
	IsActive      bool   `json:"is_active"`
}

func buildCouponPayload(coupon domain.Coupon) couponPayload {
	return couponPayload{
		ID:            coupon.ID,
		Code:          coupon.Code,
		Type:          string(coupon.Type),
		Value:         coupon.Value,
		MaxUses:       coupon.MaxUses,
		UsedCount:     coupon.UsedCount,
		ValidFrom:     formatTime(coupon.ValidFrom),
		ValidTo:       formatTime(coupon.ValidTo),
		MinOrderValue: coupon.MinOrderValue,
		IsActive:      coupon.IsActive,
	}
}

func writeCouponError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrCouponInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCouponNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("coupon_not_found", "coupon not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCouponConflict):
		httpx.WriteError(ctx, w, httpx.NewError("coupon_conflict", err.Error(), http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("coupon_error", "failed to process coupon request", http.StatusInternalServerError))
	}
}
