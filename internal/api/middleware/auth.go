package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/mcoot/playeraccounts/internal/api/apierr"
	"github.com/mcoot/playeraccounts/internal/model"
	"github.com/mcoot/playeraccounts/internal/services/token"
)

type contextKey string

const (
	claimsContextKey contextKey = "claims"
	actorContextKey  contextKey = "actor"
)

// Verifier validates player bearer tokens
type Verifier interface {
	Verify(raw string) (*token.Claims, error)
}

// Auth creates authentication middleware
func Auth(verifier Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := extractToken(r)
			if raw == "" {
				apierr.WriteError(w, apierr.NewUnauthorizedError())
				return
			}

			claims, err := verifier.Verify(raw)
			if err != nil {
				apierr.WriteError(w, apierr.NewUnauthorizedError())
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth extracts claims if present but doesn't require them
func OptionalAuth(verifier Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if raw := extractToken(r); raw != "" {
				if claims, err := verifier.Verify(raw); err == nil {
					r = r.WithContext(context.WithValue(r.Context(), claimsContextKey, claims))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// extractToken extracts the bearer token from the request
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

// GetClaims returns the verified token claims from the request context
func GetClaims(ctx context.Context) *token.Claims {
	claims, _ := ctx.Value(claimsContextKey).(*token.Claims)
	return claims
}

// AccountID returns the authenticated account, or "" for anonymous requests
func AccountID(ctx context.Context) model.PlayerID {
	if claims := GetClaims(ctx); claims != nil {
		return claims.PlayerID()
	}
	return ""
}

// MustGetClaims returns the verified claims or panics
func MustGetClaims(ctx context.Context) *token.Claims {
	claims := GetClaims(ctx)
	if claims == nil {
		panic("no claims in context - auth middleware not applied?")
	}
	return claims
}
