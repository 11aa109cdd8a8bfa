package identity

import (
	"context"
	"net/http"
	"strings"
	"time"

	"carteira/cmd/internal/httpapi"
)

type claimsKey struct{}

// SessionFromContext returns the verified session claims attached by RequireSession.
func SessionFromContext(ctx context.Context) (SessionClaims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(SessionClaims)
	return claims, ok
}

// RequireSession wraps a handler with bearer session-token verification.
// Requests without a valid token are rejected with 401 before the handler runs.
func RequireSession(verifier *Verifier, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := BearerToken(r)
		if token == "" {
			httpapi.WriteError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}

		claims, err := verifier.Verify(token, time.Now().UTC())
		if err != nil {
			httpapi.WriteError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
	})
}

// BearerToken extracts the bearer token from the Authorization header.
func BearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	parts := strings.SplitN(raw, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
