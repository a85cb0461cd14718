package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/playeraccounts/internal/api/handler"
	"github.com/mcoot/playeraccounts/internal/api/middleware"
	"github.com/mcoot/playeraccounts/internal/api/response"
	httpmw "github.com/mcoot/playeraccounts/internal/middleware"
	"github.com/mcoot/playeraccounts/internal/services/account"
	"github.com/mcoot/playeraccounts/internal/services/confirmation"
	"github.com/mcoot/playeraccounts/internal/services/login"
	"github.com/mcoot/playeraccounts/internal/services/token"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger            *slog.Logger
	Orchestrator      *login.Orchestrator
	Resolver          *account.Resolver
	Confirmation      *confirmation.Service
	Verifier          middleware.Verifier
	OneTimePasswords  token.OneTimePasswords
	ConfirmationPages handler.ConfirmationPages
	// AdminKeyHash is the bcrypt hash of the admin key; empty disables admin routes
	AdminKeyHash     []byte
	ErasePlaceholder string
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	// Create handlers
	playerHandler := handler.NewPlayerHandler(cfg.Orchestrator)
	accountHandler := handler.NewAccountHandler(cfg.Resolver, cfg.Confirmation, cfg.OneTimePasswords, cfg.ConfirmationPages, cfg.Logger)
	adminHandler := handler.NewAdminHandler(cfg.Resolver, cfg.ErasePlaceholder)

	// Create middleware
	authMiddleware := middleware.Auth(cfg.Verifier)
	optionalAuthMiddleware := middleware.OptionalAuth(cfg.Verifier)
	adminMiddleware := middleware.AdminKey(cfg.AdminKeyHash)

	// API subrouter with common middleware
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(httpmw.RequestID)
	api.Use(middleware.Recovery(cfg.Logger))
	api.Use(httpmw.Logging(cfg.Logger))

	api.HandleFunc("/health", healthHandler).Methods(http.MethodGet)

	// Login and device-bound routes
	api.HandleFunc("/player/login", playerHandler.Login).Methods(http.MethodPost)
	api.HandleFunc("/player/account/google", playerHandler.AttachGoogle).Methods(http.MethodPatch)
	api.HandleFunc("/player/account/apple", playerHandler.AttachApple).Methods(http.MethodPatch)
	api.HandleFunc("/player/account/plarium", playerHandler.AttachPlarium).Methods(http.MethodPatch)

	// Emailed links and password recovery
	api.HandleFunc("/player/account/confirm", accountHandler.Confirm).Methods(http.MethodGet)
	api.HandleFunc("/player/account/recover", accountHandler.Recover).Methods(http.MethodPatch)
	api.HandleFunc("/player/account/reset", accountHandler.Reset).Methods(http.MethodPatch)

	// Routes that use a token when one is supplied
	optional := api.PathPrefix("/player/account").Subrouter()
	optional.Use(optionalAuthMiddleware)
	optional.HandleFunc("/rumble", playerHandler.AttachRumble).Methods(http.MethodPatch)
	optional.HandleFunc("/password", accountHandler.Password).Methods(http.MethodPatch)

	// Routes that require a token
	protected := api.PathPrefix("/player/account").Subrouter()
	protected.Use(authMiddleware)
	protected.HandleFunc("/twoFactor", accountHandler.TwoFactor).Methods(http.MethodPatch)
	protected.HandleFunc("/adopt", accountHandler.Adopt).Methods(http.MethodPatch)
	protected.HandleFunc("/refresh", playerHandler.Refresh).Methods(http.MethodGet)

	// Operator routes
	admin := api.PathPrefix("/admin/account").Subrouter()
	admin.Use(adminMiddleware)
	admin.HandleFunc("/link", adminHandler.Link).Methods(http.MethodPatch)
	admin.HandleFunc("/screenname", adminHandler.Screenname).Methods(http.MethodPatch)
	admin.HandleFunc("/erase", adminHandler.Erase).Methods(http.MethodPost)

	return r
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, http.StatusOK, response.Health{Status: "ok"})
}
