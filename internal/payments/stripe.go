package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/storelane/api/internal/platform/config"
)

const stripeProviderName = "stripe"

// StripeProvider verifies Stripe webhook events using the endpoint signing secret.
type StripeProvider struct {
	webhookSecret string
}

// NewStripeProvider constructs a StripeProvider.
func NewStripeProvider(cfg config.StripeConfig) (*StripeProvider, error) {
	if strings.TrimSpace(cfg.WebhookSecret) == "" {
		return nil, fmt.Errorf("payments: stripe webhook secret is required")
	}
	return &StripeProvider{webhookSecret: cfg.WebhookSecret}, nil
}

// Name implements Provider.
func (p *StripeProvider) Name() string { return stripeProviderName }

// VerifyNotification validates the Stripe-Signature header and normalises
// supported event types. Events that do not settle a payment are reported
// with Success false so the caller can acknowledge without mutating orders.
func (p *StripeProvider) VerifyNotification(ctx context.Context, req IPNRequest) (Notification, error) {
	signature := ""
	if req.Headers != nil {
		signature = req.Headers.Get("Stripe-Signature")
	}

	event, err := webhook.ConstructEvent(req.Body, signature, p.webhookSecret)
	if err != nil {
		return Notification{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	switch event.Type {
	case "payment_intent.succeeded", "checkout.session.completed":
	default:
		return Notification{
			Provider: stripeProviderName,
			Success:  false,
			Message:  string(event.Type),
			Raw:      map[string]any{"eventId": event.ID},
		}, nil
	}

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return Notification{}, fmt.Errorf("%w: %v", ErrMalformedNotification, err)
	}

	orderCode := intent.Metadata["order_code"]
	if orderCode == "" {
		orderCode = intent.Metadata["orderCode"]
	}

	raw := map[string]any{"eventId": event.ID}
	// The storefront mirrors the checkout intent into intent metadata, the
	// same role extraData plays for MoMo callbacks.
	if intent.Metadata["userId"] != "" {
		extra := make(map[string]any, len(intent.Metadata))
		for key, value := range intent.Metadata {
			extra[key] = value
		}
		raw["extraData"] = extra
	}

	return Notification{
		Provider:      stripeProviderName,
		OrderCode:     orderCode,
		TransactionID: intent.ID,
		Amount:        intent.Amount,
		Success:       true,
		Message:       string(event.Type),
		Raw:           raw,
	}, nil
}
