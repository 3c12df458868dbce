package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/storelane/api/internal/platform/requestctx"
	"github.com/storelane/api/internal/services"
)

const maxWebhookBodySize = 256 * 1024

// WebhookHandlers receives asynchronous payment notifications. Providers
// retry aggressively on non-success responses, so every decoded request is
// acknowledged with the provider's expected status regardless of how the
// notification was processed; failures are logged and resolved out of band.
type WebhookHandlers struct {
	orders services.OrderService
}

// NewWebhookHandlers constructs a new WebhookHandlers instance.
func NewWebhookHandlers(orders services.OrderService) *WebhookHandlers {
	return &WebhookHandlers{orders: orders}
}

// Routes registers the payment notification endpoint.
func (h *WebhookHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/payments/{provider}", h.paymentNotification)
}

func (h *WebhookHandlers) paymentNotification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := requestctx.Logger(ctx)
	provider := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "provider")))

	body, err := readLimitedBody(r, maxWebhookBodySize)
	if err != nil {
		logger.Warn("payment notification body rejected",
			zap.String("provider", provider),
			zap.Error(err),
		)
		writeWebhookAck(w, provider)
		return
	}

	if h.orders == nil {
		logger.Error("payment notification dropped, order service unavailable",
			zap.String("provider", provider),
		)
		writeWebhookAck(w, provider)
		return
	}

	result, err := h.orders.HandlePaymentNotification(ctx, services.PaymentNotificationCommand{
		Provider: provider,
		Body:     body,
		Headers:  r.Header,
	})
	if err != nil {
		logger.Error("payment notification processing failed",
			zap.String("provider", provider),
			zap.Error(err),
		)
		writeWebhookAck(w, provider)
		return
	}

	logger.Info("payment notification handled",
		zap.String("provider", provider),
		zap.String("transaction_id", result.TransactionID),
		zap.String("order_id", result.OrderID),
		zap.Bool("paid", result.Paid),
		zap.Bool("duplicate", result.Duplicate),
	)
	writeWebhookAck(w, provider)
}

// writeWebhookAck responds with the status the provider expects: MoMo treats
// 204 as final, the rest accept a 200 receipt body.
func writeWebhookAck(w http.ResponseWriter, provider string) {
	if provider == "momo" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"received": true})
}
