package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/kudisafe/escrow/internal/domain"
	"github.com/kudisafe/escrow/internal/identity"
)

type contextKey string

// claimsKey carries the verified token claims through the request context.
const claimsKey contextKey = "claims"

// RequireAdmin rejects requests that do not carry a valid bearer token with
// the admin role.
func RequireAdmin(tokens *identity.TokenIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			claims, err := tokens.Parse(token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			if claims.Role != string(domain.RoleAdmin) {
				writeError(w, http.StatusForbidden, "admin role required")
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return "", false
	}
	token := strings.TrimSpace(auth[len(prefix):])
	return token, token != ""
}
