package payments

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrUnsupportedProvider is returned when the registry cannot locate a provider.
var ErrUnsupportedProvider = errors.New("payments: unsupported provider")

// ErrInvalidSignature indicates a notification failed signature verification.
var ErrInvalidSignature = errors.New("payments: invalid signature")

// ErrMalformedNotification indicates the notification payload could not be parsed.
var ErrMalformedNotification = errors.New("payments: malformed notification")

// IPNRequest carries the raw inbound notification for verification.
type IPNRequest struct {
	Body    []byte
	Headers http.Header
}

// Notification is the normalised result of a verified provider callback.
type Notification struct {
	Provider      string
	OrderCode     string
	TransactionID string
	Amount        int64
	Success       bool
	Message       string
	Raw           map[string]any
}

// Provider verifies inbound payment notifications for a single PSP.
type Provider interface {
	Name() string
	VerifyNotification(ctx context.Context, req IPNRequest) (Notification, error)
}

// Registry holds the configured notification providers keyed by name.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry constructs a Registry over the supplied providers.
func NewRegistry(providers ...Provider) (*Registry, error) {
	if len(providers) == 0 {
		return nil, errors.New("payments: at least one provider is required")
	}
	byName := make(map[string]Provider, len(providers))
	for _, p := range providers {
		if p == nil {
			return nil, errors.New("payments: nil provider registration")
		}
		key := strings.TrimSpace(strings.ToLower(p.Name()))
		if key == "" {
			return nil, errors.New("payments: provider with empty name")
		}
		if _, exists := byName[key]; exists {
			return nil, fmt.Errorf("payments: duplicate provider registration for %q", key)
		}
		byName[key] = p
	}
	return &Registry{providers: byName}, nil
}

// Lookup returns the provider registered under the given name.
func (r *Registry) Lookup(name string) (Provider, error) {
	if r == nil || len(r.providers) == 0 {
		return nil, ErrUnsupportedProvider
	}
	p, ok := r.providers[strings.TrimSpace(strings.ToLower(name))]
	if !ok {
		return nil, ErrUnsupportedProvider
	}
	return p, nil
}
