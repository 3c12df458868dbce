package secrets

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type fakeSecretClient struct {
	mu     sync.Mutex
	values map[string]string
	errs   map[string]error
	calls  map[string]int
}

func newFakeSecretClient() *fakeSecretClient {
	return &fakeSecretClient{
		values: make(map[string]string),
		errs:   make(map[string]error),
		calls:  make(map[string]int),
	}
}

func (c *fakeSecretClient) AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, _ ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[req.GetName()]++
	if err, ok := c.errs[req.GetName()]; ok {
		return nil, err
	}
	value, ok := c.values[req.GetName()]
	if !ok {
		return nil, status.Error(codes.NotFound, "secret not found")
	}
	return &secretmanagerpb.AccessSecretVersionResponse{
		Payload: &secretmanagerpb.SecretPayload{Data: []byte(value)},
	}, nil
}

func (c *fakeSecretClient) Close() error { return nil }

func (c *fakeSecretClient) callCount(resource string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[resource]
}

func TestResolveCachesRemoteSecret(t *testing.T) {
	ctx := context.Background()

	client := newFakeSecretClient()
	resource := "projects/test/secrets/momo_secret_key/versions/latest"
	client.values[resource] = "remote-secret"

	fetcher, err := NewFetcher(ctx,
		WithSecretManagerClient(client),
		WithProject("test"),
		WithLogger(zap.NewNop()),
	)
	if err != nil {
		t.Fatalf("NewFetcher returned error: %v", err)
	}
	defer fetcher.Close()

	got, err := fetcher.Resolve(ctx, "secret://momo_secret_key")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if got != "remote-secret" {
		t.Fatalf("expected remote-secret, got %s", got)
	}

	got, err = fetcher.Resolve(ctx, "secret://momo_secret_key")
	if err != nil {
		t.Fatalf("Resolve second call returned error: %v", err)
	}
	if got != "remote-secret" {
		t.Fatalf("expected cached remote-secret, got %s", got)
	}

	if calls := client.callCount(resource); calls != 1 {
		t.Fatalf("expected a single remote fetch, got %d", calls)
	}
}

func TestResolveProjectOverrideAndVersion(t *testing.T) {
	ctx := context.Background()

	client := newFakeSecretClient()
	client.values["projects/other/secrets/stripe_webhook_secret/versions/3"] = "v3-secret"

	fetcher, err := NewFetcher(ctx,
		WithSecretManagerClient(client),
		WithProject("test"),
	)
	if err != nil {
		t.Fatalf("NewFetcher returned error: %v", err)
	}
	defer fetcher.Close()

	got, err := fetcher.Resolve(ctx, "secret://stripe_webhook_secret?project=other&version=3")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if got != "v3-secret" {
		t.Fatalf("expected v3-secret, got %s", got)
	}
}

func TestResolveFallsBackWhenSecretManagerUnavailable(t *testing.T) {
	ctx := context.Background()

	dir := t.TempDir()
	fallback := filepath.Join(dir, ".secrets.local")
	contents := "# local development secrets\nsecret://momo_secret_key=local-secret\n"
	if err := os.WriteFile(fallback, []byte(contents), 0o600); err != nil {
		t.Fatalf("write fallback file: %v", err)
	}

	client := newFakeSecretClient()
	client.errs["projects/test/secrets/momo_secret_key/versions/latest"] = status.Error(codes.Unavailable, "secret manager down")

	fetcher, err := NewFetcher(ctx,
		WithSecretManagerClient(client),
		WithProject("test"),
		WithFallbackFile(fallback),
	)
	if err != nil {
		t.Fatalf("NewFetcher returned error: %v", err)
	}
	defer fetcher.Close()

	got, err := fetcher.Resolve(ctx, "secret://momo_secret_key")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if got != "local-secret" {
		t.Fatalf("expected fallback value, got %s", got)
	}
}

func TestResolveRejectsUnknownScheme(t *testing.T) {
	ctx := context.Background()

	fetcher, err := NewFetcher(ctx, WithSecretManagerClient(newFakeSecretClient()))
	if err != nil {
		t.Fatalf("NewFetcher returned error: %v", err)
	}
	defer fetcher.Close()

	if _, err := fetcher.Resolve(ctx, "vault://momo_secret_key"); err == nil {
		t.Fatalf("expected error for unsupported scheme")
	}
}

func TestResolveSurfacesNotFound(t *testing.T) {
	ctx := context.Background()

	fetcher, err := NewFetcher(ctx,
		WithSecretManagerClient(newFakeSecretClient()),
		WithProject("test"),
		WithFallbackFile(filepath.Join(t.TempDir(), "missing")),
	)
	if err != nil {
		t.Fatalf("NewFetcher returned error: %v", err)
	}
	defer fetcher.Close()

	if _, err := fetcher.Resolve(ctx, "secret://absent_key"); err == nil {
		t.Fatalf("expected error for missing secret")
	}
}
