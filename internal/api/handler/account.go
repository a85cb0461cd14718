package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/mcoot/playeraccounts/internal/api/middleware"
	"github.com/mcoot/playeraccounts/internal/api/request"
	"github.com/mcoot/playeraccounts/internal/api/response"
	"github.com/mcoot/playeraccounts/internal/model"
	"github.com/mcoot/playeraccounts/internal/services/account"
	"github.com/mcoot/playeraccounts/internal/services/confirmation"
	"github.com/mcoot/playeraccounts/internal/services/token"
)

// Reasons carried by the confirmation failure page
const (
	ReasonConfirmed   = "confirmed"
	ReasonInvalidCode = "invalidCode"
	ReasonOTPFailure  = "otpFailure"
)

// ConfirmationPages are the web pages a followed confirmation link lands on.
// Success contains an {otp} placeholder and Failure a {reason} placeholder.
type ConfirmationPages struct {
	Success string
	Failure string
}

func (p ConfirmationPages) success(otp string) string {
	return strings.ReplaceAll(p.Success, "{otp}", url.PathEscape(otp))
}

func (p ConfirmationPages) failure(reason string) string {
	return strings.ReplaceAll(p.Failure, "{reason}", reason)
}

// AccountHandler handles Rumble account lifecycle and linking endpoints
type AccountHandler struct {
	resolver     *account.Resolver
	confirmation *confirmation.Service
	otp          token.OneTimePasswords
	pages        ConfirmationPages
	logger       *slog.Logger
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(
	resolver *account.Resolver,
	confirmation *confirmation.Service,
	otp token.OneTimePasswords,
	pages ConfirmationPages,
	logger *slog.Logger,
) *AccountHandler {
	return &AccountHandler{
		resolver:     resolver,
		confirmation: confirmation,
		otp:          otp,
		pages:        pages,
		logger:       logger,
	}
}

// Confirm handles GET /api/v1/player/account/confirm.
// It always answers 200; the outcome is encoded in the redirect url.
func (h *AccountHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	redirect := h.confirm(r.Context(), model.PlayerID(q.Get("id")), q.Get("code"), middleware.ClientIP(r))
	response.JSON(w, http.StatusOK, response.Redirect{URL: redirect})
}

func (h *AccountHandler) confirm(ctx context.Context, id model.PlayerID, code, ip string) string {
	if id == "" || code == "" {
		return h.pages.failure(ReasonInvalidCode)
	}

	confirmed, err := h.confirmation.IsConfirmed(ctx, id)
	if err != nil {
		h.logger.Error("unable to check confirmation state", slog.String("player_id", string(id)), slog.Any("error", err))
		return h.pages.failure(ReasonInvalidCode)
	}
	if confirmed {
		return h.pages.failure(ReasonConfirmed)
	}

	player, err := h.confirmation.UseConfirmationCode(ctx, id, code)
	if err != nil {
		if !errors.Is(err, model.ErrConfirmationNotAccepted) {
			h.logger.Error("unable to confirm account", slog.String("player_id", string(id)), slog.Any("error", err))
		}
		return h.pages.failure(ReasonInvalidCode)
	}

	if err := h.resolver.IssueToken(ctx, player, ip); err != nil {
		h.logger.Error("unable to issue token for confirmed account", slog.String("player_id", string(id)), slog.Any("error", err))
		return h.pages.failure(ReasonOTPFailure)
	}
	otp, err := h.otp.OneTimePassword(ctx, player.Token)
	if err != nil {
		h.logger.Error("unable to generate one-time password", slog.String("player_id", string(id)), slog.Any("error", err))
		return h.pages.failure(ReasonOTPFailure)
	}
	return h.pages.success(otp)
}

// TwoFactor handles PATCH /api/v1/player/account/twoFactor
func (h *AccountHandler) TwoFactor(w http.ResponseWriter, r *http.Request) {
	claims := middleware.MustGetClaims(r.Context())

	var req request.TwoFactorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}
	if req.Code == "" {
		WriteError(w, NewInvalidRequestError("code is required"))
		return
	}

	player, err := h.confirmation.UseTwoFactorCode(r.Context(), claims.PlayerID(), req.Code)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, player.Prune())
}

// Recover handles PATCH /api/v1/player/account/recover
func (h *AccountHandler) Recover(w http.ResponseWriter, r *http.Request) {
	var req request.RecoverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}
	if req.Email == "" {
		WriteError(w, NewInvalidRequestError("email is required"))
		return
	}

	player, err := h.confirmation.BeginReset(r.Context(), req.Email)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, player.Prune())
}

// Reset handles PATCH /api/v1/player/account/reset
func (h *AccountHandler) Reset(w http.ResponseWriter, r *http.Request) {
	var req request.ResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}
	if req.Username == "" || req.Code == "" {
		WriteError(w, NewInvalidRequestError("username and code are required"))
		return
	}

	actor := middleware.AccountID(r.Context())
	if actor == "" {
		actor = model.PlayerID(strings.TrimSpace(req.AccountID))
	}

	player, err := h.confirmation.CompleteReset(r.Context(), req.Username, req.Code, actor)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, player.Prune())
}

// Password handles PATCH /api/v1/player/account/password
func (h *AccountHandler) Password(w http.ResponseWriter, r *http.Request) {
	var req request.PasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}
	if req.Username == "" {
		WriteError(w, NewInvalidRequestError("username is required"))
		return
	}

	player, err := h.confirmation.UpdateHash(r.Context(), req.Username, req.OldHash, req.NewHash, middleware.AccountID(r.Context()))
	if err != nil {
		WriteError(w, err)
		return
	}
	if err := h.resolver.IssueToken(r.Context(), player, middleware.ClientIP(r)); err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, player.Prune())
}

// Adopt handles PATCH /api/v1/player/account/adopt.
// The caller becomes the parent of every account sharing its link code.
func (h *AccountHandler) Adopt(w http.ResponseWriter, r *http.Request) {
	claims := middleware.MustGetClaims(r.Context())

	player, err := h.resolver.LinkAccounts(r.Context(), claims.PlayerID(), middleware.ClientIP(r))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, player.Prune())
}
