package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/storelane/api/internal/domain"
	"github.com/storelane/api/internal/platform/httpx"
	"github.com/storelane/api/internal/services"
)

const maxOrderActionBodySize = 4 * 1024

// OrderHandlers exposes order reads and lifecycle endpoints.
type OrderHandlers struct {
	orders services.OrderService
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(orders services.OrderService) *OrderHandlers {
	return &OrderHandlers{orders: orders}
}

// Routes registers the /orders endpoints. The status endpoint is reserved for
// staff; the fronting gateway scopes who can reach it.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listOrders)
	r.Get("/{orderID}", h.getOrder)
	r.Get("/{orderID}/transitions", h.listTransitions)
	r.Post("/{orderID}/status", h.updateStatus)
	r.Post("/{orderID}/cancel", h.cancelOrder)
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	userID, ok := requireUser(ctx, w)
	if !ok {
		return
	}

	pager, err := parsePagination(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	page, err := h.orders.ListOrders(ctx, userID, pager)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildOrderListResponse(page))
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	userID, ok := requireUser(ctx, w)
	if !ok {
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.GetOrder(ctx, orderID, services.OrderReadOptions{UserID: userID})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) listTransitions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	userID, ok := requireUser(ctx, w)
	if !ok {
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.GetOrder(ctx, orderID, services.OrderReadOptions{UserID: userID})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	next := h.orders.LegalNextStatuses(order)
	statuses := make([]string, 0, len(next))
	for _, status := range next {
		statuses = append(statuses, string(status))
	}

	writeJSONResponse(w, http.StatusOK, orderTransitionsResponse{
		Status:      string(order.Status),
		Transitions: statuses,
	})
}

type updateStatusRequest struct {
	Status string `json:"status"`
	Note   string `json:"note"`
}

func (h *OrderHandlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	actorID, ok := requireUser(ctx, w)
	if !ok {
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	var req updateStatusRequest
	body, err := readLimitedBody(r, maxOrderActionBodySize)
	if err != nil {
		switch {
		case errors.Is(err, errBodyTooLarge):
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		}
		return
	}
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}
	if strings.TrimSpace(req.Status) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status is required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.TransitionStatus(ctx, services.OrderStatusTransitionCommand{
		OrderID: orderID,
		Target:  domain.OrderStatus(strings.TrimSpace(req.Status)),
		Note:    strings.TrimSpace(req.Note),
		ActorID: actorID,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	userID, ok := requireUser(ctx, w)
	if !ok {
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	var req cancelOrderRequest
	body, err := readLimitedBody(r, maxOrderActionBodySize)
	if err != nil && !errors.Is(err, errEmptyBody) {
		switch {
		case errors.Is(err, errBodyTooLarge):
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		}
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
			return
		}
	}

	order, err := h.orders.CancelByUser(ctx, services.CancelOrderCommand{
		OrderID: orderID,
		UserID:  userID,
		Reason:  strings.TrimSpace(req.Reason),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func parsePagination(r *http.Request) (domain.Pagination, error) {
	query := r.URL.Query()
	pager := domain.Pagination{
		PageToken: strings.TrimSpace(query.Get("page_token")),
	}
	if sizeRaw := strings.TrimSpace(query.Get("page_size")); sizeRaw != "" {
		size, err := strconv.Atoi(sizeRaw)
		if err != nil {
			return domain.Pagination{}, errors.New("page_size must be an integer")
		}
		pager.PageSize = size
	}
	return pager, nil
}

type orderListResponse struct {
	Items         []orderSummaryPayload `json:"items"`
	NextPageToken string                `json:"next_page_token,omitempty"`
}

type orderSummaryPayload struct {
	ID            string `json:"id"`
	Code          string `json:"code"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
	GrandTotal    int64  `json:"grand_total"`
	CreatedAt     string `json:"created_at"`
}

type orderResponse struct {
	Order orderPayload `json:"order"`
}

type orderTransitionsResponse struct {
	Status      string   `json:"status"`
	Transitions []string `json:"transitions"`
}

type orderPayload struct {
	ID            string               `json:"id"`
	Code          string               `json:"code"`
	UserID        string               `json:"user_id"`
	Status        string               `json:"status"`
	PaymentMethod string               `json:"payment_method"`
	PaymentStatus string               `json:"payment_status"`
	PaymentRef    string               `json:"payment_ref,omitempty"`
	Totals        orderTotalsPayload   `json:"totals"`
	Items         []orderItemPayload   `json:"items"`
	Shipping      shippingPayload      `json:"shipping"`
	CouponID      string               `json:"coupon_id,omitempty"`
	StatusHistory []statusEntryPayload `json:"status_history"`
	CreatedAt     string               `json:"created_at"`
	UpdatedAt     string               `json:"updated_at,omitempty"`
}

type orderTotalsPayload struct {
	SubTotal    int64 `json:"sub_total"`
	Total       int64 `json:"total"`
	Savings     int64 `json:"savings"`
	ShippingFee int64 `json:"shipping_fee"`
	Discount    int64 `json:"discount"`
	GrandTotal  int64 `json:"grand_total"`
}

type orderItemPayload struct {
	ProductID    string `json:"product_id"`
	Name         string `json:"name"`
	Image        string `json:"image,omitempty"`
	UnitPrice    int64  `json:"unit_price"`
	PreSalePrice int64  `json:"pre_sale_price"`
	Quantity     int64  `json:"quantity"`
	Variant      string `json:"variant,omitempty"`
	LineTotal    int64  `json:"line_total"`
}

type shippingPayload struct {
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	Note     string `json:"note,omitempty"`
}

type statusEntryPayload struct {
	Status    string `json:"status"`
	Note      string `json:"note,omitempty"`
	UpdatedBy string `json:"updated_by,omitempty"`
	UpdatedAt string `json:"updated_at"`
}

func buildOrderListResponse(page domain.CursorPage[domain.Order]) orderListResponse {
	items := make([]orderSummaryPayload, 0, len(page.Items))
	for _, order := range page.Items {
		items = append(items, orderSummaryPayload{
			ID:            order.ID,
			Code:          order.Code,
			Status:        string(order.Status),
			PaymentStatus: string(order.PaymentStatus),
			GrandTotal:    order.Totals.GrandTotal,
			CreatedAt:     formatTime(order.CreatedAt),
		})
	}
	return orderListResponse{
		Items:         items,
		NextPageToken: page.NextPageToken,
	}
}

func buildOrderPayload(order domain.Order) orderPayload {
	items := make([]orderItemPayload, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemPayload{
			ProductID:    item.ProductID,
			Name:         item.Name,
			Image:        item.Image,
			UnitPrice:    item.UnitPrice,
			PreSalePrice: item.PreSalePrice,
			Quantity:     item.Quantity,
			Variant:      item.Variant,
			LineTotal:    item.LineTotal(),
		})
	}

	history := make([]statusEntryPayload, 0, len(order.StatusHistory))
	for _, entry := range order.StatusHistory {
		history = append(history, statusEntryPayload{
			Status:    string(entry.Status),
			Note:      entry.Note,
			UpdatedBy: entry.UpdatedBy,
			UpdatedAt: formatTime(entry.UpdatedAt),
		})
	}

	return orderPayload{
		ID:            order.ID,
		Code:          order.Code,
		UserID:        order.UserID,
		Status:        string(order.Status),
		PaymentMethod: string(order.PaymentMethod),
		PaymentStatus: string(order.PaymentStatus),
		PaymentRef:    order.PaymentRef,
		Totals: orderTotalsPayload{
			SubTotal:    order.Totals.SubTotal,
			Total:       order.Totals.Total,
			Savings:     order.Totals.Savings,
			ShippingFee: order.Totals.ShippingFee,
			Discount:    order.Totals.Discount,
			GrandTotal:  order.Totals.GrandTotal,
		},
		Items: items,
		Shipping: shippingPayload{
			FullName: order.Shipping.FullName,
			Phone:    order.Shipping.Phone,
			Address:  order.Shipping.Address,
			Note:     order.Shipping.Note,
		},
		CouponID:      order.CouponID,
		StatusHistory: history,
		CreatedAt:     formatTime(order.CreatedAt),
		UpdatedAt:     formatTime(order.UpdatedAt),
	}
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrInvalidShipping),
		errors.Is(err, services.ErrEmptyCart),
		errors.Is(err, services.ErrNoValidItems),
		errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrStockInsufficient),
		errors.Is(err, services.ErrStockUnknownVariant),
		errors.Is(err, services.ErrStockProductInactive),
		errors.Is(err, services.ErrStockProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("insufficient_stock", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("order_invalid_state", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderCodeExhausted):
		httpx.WriteError(ctx, w, httpx.NewError("order_unavailable", "could not place the order, try again", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to process order request", http.StatusInternalServerError))
	}
}
