package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	domain "github.com/storelane/api/internal/domain"
	"github.com/storelane/api/internal/platform/httpx"
	"github.com/storelane/api/internal/services"
)

const maxCheckoutRequestBody = 8 * 1024

// CheckoutHandlers exposes the order placement endpoint.
type CheckoutHandlers struct {
	orders   services.OrderService
	validate *validator.Validate
}

// NewCheckoutHandlers constructs checkout handlers with request validation.
func NewCheckoutHandlers(orders services.OrderService) *CheckoutHandlers {
	return &CheckoutHandlers{
		orders:   orders,
		validate: validator.New(),
	}
}

// Routes registers the checkout endpoint under the provided router.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/checkout", h.checkout)
}

type checkoutRequest struct {
	FullName      string `json:"fullName" validate:"required,max=120"`
	Phone         string `json:"phone" validate:"required,max=20"`
	Address       string `json:"address" validate:"required,max=500"`
	Note          string `json:"note" validate:"max=500"`
	PaymentMethod string `json:"paymentMethod" validate:"omitempty,oneof=cod momo bank_transfer"`
	CouponCode    string `json:"couponCode" validate:"omitempty,max=40"`
}

func (h *CheckoutHandlers) checkout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	userID, ok := requireUser(ctx, w)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxCheckoutRequestBody)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), status))
		return
	}

	var req checkoutRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("validation_failed", "request validation failed", http.StatusBadRequest).
			WithDetails(map[string]any{"fields": validationFieldErrors(err)}))
		return
	}

	order, err := h.orders.Checkout(ctx, services.CheckoutCommand{
		UserID: userID,
		Shipping: domain.ShippingInfo{
			FullName: strings.TrimSpace(req.FullName),
			Phone:    strings.TrimSpace(req.Phone),
			Address:  strings.TrimSpace(req.Address),
			Note:     strings.TrimSpace(req.Note),
		},
		PaymentMethod: strings.TrimSpace(req.PaymentMethod),
		CouponCode:    strings.TrimSpace(req.CouponCode),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(order)})
}

func validationFieldErrors(err error) map[string]string {
	fields := map[string]string{}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			fields[strings.ToLower(fe.Field())] = fe.Tag()
		}
		return fields
	}
	fields["request"] = err.Error()
	return fields
}
