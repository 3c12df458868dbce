package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	env := map[string]string{
		"API_FIRESTORE_PROJECT_ID": "storelane-dev",
	}

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.Firestore.ProjectID != "storelane-dev" {
		t.Errorf("unexpected firestore project: %s", cfg.Firestore.ProjectID)
	}
	if cfg.PubSub.ProjectID != "storelane-dev" {
		t.Errorf("expected pubsub project to default to firestore project, got %s", cfg.PubSub.ProjectID)
	}
	if cfg.PubSub.Topic != "order-events" {
		t.Errorf("unexpected default topic: %s", cfg.PubSub.Topic)
	}
	if cfg.PubSub.Enabled {
		t.Errorf("expected pubsub disabled by default")
	}
	if cfg.Checkout.ShippingFee != 30000 {
		t.Errorf("unexpected default shipping fee: %d", cfg.Checkout.ShippingFee)
	}
	if cfg.Checkout.CodeAttempts != 3 {
		t.Errorf("unexpected default code attempts: %d", cfg.Checkout.CodeAttempts)
	}
	if cfg.Checkout.CodeRetryBackoff != 50*time.Millisecond {
		t.Errorf("unexpected default code retry backoff: %s", cfg.Checkout.CodeRetryBackoff)
	}
	if cfg.Checkout.AtomicStock {
		t.Errorf("expected atomic stock disabled by default")
	}
	if cfg.Payments.MoMo.IPNTolerance != 15*time.Minute {
		t.Errorf("unexpected default IPN tolerance: %s", cfg.Payments.MoMo.IPNTolerance)
	}
}

func TestLoadWithOverridesAndSecrets(t *testing.T) {
	env := map[string]string{
		"API_SERVER_PORT":                    "9090",
		"API_SERVER_IDLE_TIMEOUT":            "2m",
		"API_FIRESTORE_PROJECT_ID":           "storelane-prod",
		"API_PUBSUB_PROJECT_ID":              "storelane-events",
		"API_PUBSUB_ORDER_EVENTS_TOPIC":      "orders-prod",
		"API_PUBSUB_ENABLED":                 "true",
		"API_PAYMENTS_MOMO_PARTNER_CODE":     "MOMO123",
		"API_PAYMENTS_MOMO_ACCESS_KEY":       "access-key",
		"API_PAYMENTS_MOMO_SECRET_KEY":       "sm://momo/secret",
		"API_PAYMENTS_STRIPE_WEBHOOK_SECRET": "secret://stripe/webhook",
		"API_CHECKOUT_SHIPPING_FEE":          "45000",
		"API_CHECKOUT_CODE_ATTEMPTS":         "5",
		"API_CHECKOUT_CODE_RETRY_BACKOFF":    "100ms",
		"API_CHECKOUT_ATOMIC_STOCK":          "true",
	}

	secrets := map[string]string{
		"secret://momo/secret":    "momo-secret",
		"secret://stripe/webhook": "whsec_test",
	}

	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if v, ok := secrets[ref]; ok {
			return v, nil
		}
		return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
	})

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""), WithSecretResolver(resolver))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Server.IdleTimeout != 2*time.Minute {
		t.Errorf("unexpected idle timeout: %s", cfg.Server.IdleTimeout)
	}
	if cfg.PubSub.ProjectID != "storelane-events" {
		t.Errorf("unexpected pubsub project: %s", cfg.PubSub.ProjectID)
	}
	if cfg.PubSub.Topic != "orders-prod" {
		t.Errorf("unexpected topic: %s", cfg.PubSub.Topic)
	}
	if !cfg.PubSub.Enabled {
		t.Errorf("expected pubsub enabled")
	}
	if cfg.Payments.MoMo.SecretKey != "momo-secret" {
		t.Errorf("expected resolved momo secret, got %s", cfg.Payments.MoMo.SecretKey)
	}
	if cfg.Payments.Stripe.WebhookSecret != "whsec_test" {
		t.Errorf("expected resolved stripe webhook secret, got %s", cfg.Payments.Stripe.WebhookSecret)
	}
	if cfg.Checkout.ShippingFee != 45000 {
		t.Errorf("unexpected shipping fee: %d", cfg.Checkout.ShippingFee)
	}
	if cfg.Checkout.CodeAttempts != 5 {
		t.Errorf("unexpected code attempts: %d", cfg.Checkout.CodeAttempts)
	}
	if cfg.Checkout.CodeRetryBackoff != 100*time.Millisecond {
		t.Errorf("unexpected code retry backoff: %s", cfg.Checkout.CodeRetryBackoff)
	}
	if !cfg.Checkout.AtomicStock {
		t.Errorf("expected atomic stock enabled")
	}
}

func TestLoadDotEnvFallback(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "API_SERVER_PORT=7070\nAPI_FIRESTORE_PROJECT_ID=storelane-dot\n# comment\nexport API_CHECKOUT_SHIPPING_FEE=\"25000\"\n"
	if err := os.WriteFile(envPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write dotenv file: %v", err)
	}

	cfg, err := Load(context.Background(), WithEnvFile(envPath), WithoutSystemEnv())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "7070" {
		t.Errorf("expected port from dotenv 7070, got %s", cfg.Server.Port)
	}
	if cfg.Firestore.ProjectID != "storelane-dot" {
		t.Errorf("expected firestore project from dotenv, got %s", cfg.Firestore.ProjectID)
	}
	if cfg.Checkout.ShippingFee != 25000 {
		t.Errorf("expected quoted dotenv value parsed, got %d", cfg.Checkout.ShippingFee)
	}
}

func TestLoadValidation(t *testing.T) {
	env := map[string]string{
		"API_CHECKOUT_CODE_ATTEMPTS": "0",
	}

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatalf("expected validation error")
	}

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	fields := vErr.Fields()
	if len(fields) != 2 {
		t.Fatalf("expected two invalid fields, got %v", fields)
	}
}

func TestLoadSecretResolutionFailure(t *testing.T) {
	env := map[string]string{
		"API_FIRESTORE_PROJECT_ID":     "storelane-dev",
		"API_PAYMENTS_MOMO_SECRET_KEY": "sm://momo/missing",
	}

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatalf("expected secret error")
	}

	var sErr *SecretError
	if !errors.As(err, &sErr) {
		t.Fatalf("expected SecretError, got %T", err)
	}
	if sErr.Ref != "secret://momo/missing" {
		t.Errorf("expected normalised secret ref, got %s", sErr.Ref)
	}
}
