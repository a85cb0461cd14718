package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/mcoot/playeraccounts/internal/api/apierr"
	"github.com/mcoot/playeraccounts/internal/middleware"
)

// RequestIDHeader is echoed on every API response
const RequestIDHeader = middleware.RequestIDHeader

// ClientIP returns the caller's address
func ClientIP(r *http.Request) string {
	return middleware.ClientIP(r)
}

// GetRequestID returns the id tagged on the request
func GetRequestID(ctx context.Context) string {
	return middleware.GetRequestID(ctx)
}

// Recovery answers a panicking request with a 500 INTERNAL_ERROR body
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return middleware.Recovery(logger, func(w http.ResponseWriter, _ *http.Request, _ any) {
		apierr.WriteError(w, apierr.NewInternalError())
	})
}
