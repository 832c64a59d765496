package auth

import (
	"context"
	"net/http"
	"strings"

	"api-harness/internal/envelope"
)

type bearerKey struct{}

// BearerToken returns the token Middleware accepted for this request.
func BearerToken(ctx context.Context) string {
	token, _ := ctx.Value(bearerKey{}).(string)
	return token
}

// Middleware requires an Authorization: Bearer header. With a nil verifier
// any non-empty token passes, matching the mock catalog's behavior.
func Middleware(verifier TokenVerifier, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		if header == "" {
			envelope.Write(w, envelope.Fail(http.StatusUnauthorized, "missing authorization token"))
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			envelope.Write(w, envelope.Fail(http.StatusUnauthorized, "invalid authorization format"))
			return
		}

		tokenStr := strings.TrimSpace(parts[1])
		if tokenStr == "" {
			envelope.Write(w, envelope.Fail(http.StatusUnauthorized, "invalid authorization token"))
			return
		}

		if verifier != nil {
			if _, err := verifier.Verify(tokenStr); err != nil {
				envelope.Write(w, envelope.Fail(http.StatusUnauthorized, "invalid or expired token"))
				return
			}
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), bearerKey{}, tokenStr)))
	})
}
