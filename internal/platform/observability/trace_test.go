package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/storelane/api/internal/platform/requestctx"
)

func TestTraceMiddlewarePropagatesCloudTraceContext(t *testing.T) {
	var info requestctx.TraceInfo
	var found bool
	handler := TraceMiddleware("proj-1")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info, found = requestctx.Trace(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req.Header.Set("X-Cloud-Trace-Context", "105445aa7843bc8bf206b12000100000/1;o=1")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if !found {
		t.Fatalf("expected trace info on request context")
	}
	if info.TraceID != "105445aa7843bc8bf206b12000100000" {
		t.Fatalf("unexpected trace id %q", info.TraceID)
	}
	if !info.Sampled {
		t.Fatalf("expected sampled flag from o=1")
	}
	if info.ProjectID != "proj-1" {
		t.Fatalf("unexpected project id %q", info.ProjectID)
	}
}

func TestParseCloudTraceHeader(t *testing.T) {
	cases := []struct {
		name   string
		header string
		ok     bool
		spanID string
	}{
		{name: "hex span", header: "105445aa7843bc8bf206b12000100000/0000000000000001", ok: true, spanID: "0000000000000001"},
		{name: "short hex span padded", header: "105445aa7843bc8bf206b12000100000/ab", ok: true, spanID: "00000000000000ab"},
		{name: "decimal span", header: "105445aa7843bc8bf206b12000100000/18446744073709551615", ok: true, spanID: "ffffffffffffffff"},
		{name: "missing span", header: "105445aa7843bc8bf206b12000100000", ok: false},
		{name: "short trace id", header: "105445aa/1", ok: false},
		{name: "empty", header: "", ok: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			spanCtx, ok := parseCloudTraceHeader(tc.header)
			if ok != tc.ok {
				t.Fatalf("expected ok=%v, got %v", tc.ok, ok)
			}
			if !tc.ok {
				return
			}
			if got := spanCtx.SpanID().String(); got != tc.spanID {
				t.Fatalf("expected span id %s, got %s", tc.spanID, got)
			}
			if !spanCtx.IsRemote() {
				t.Fatalf("expected remote span context")
			}
		})
	}
}
