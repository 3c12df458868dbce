package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/storelane/api/internal/platform/httpx"
	"github.com/storelane/api/internal/platform/requestctx"
)

// userIDHeader carries the caller identity resolved by the fronting gateway.
const userIDHeader = "X-User-ID"

// IdentityMiddleware copies the gateway-asserted user id into the request
// context. Requests without the header stay anonymous; individual handlers
// decide whether that is acceptable.
func IdentityMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if userID := strings.TrimSpace(r.Header.Get(userIDHeader)); userID != "" {
				r = r.WithContext(requestctx.WithUserID(r.Context(), userID))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requireUser extracts the caller identity or writes a 401 and reports false.
func requireUser(ctx context.Context, w http.ResponseWriter) (string, bool) {
	userID := strings.TrimSpace(requestctx.UserID(ctx))
	if userID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return "", false
	}
	return userID, true
}
