package handler

import (
	"encoding/json"
	"net/http"

	"github.com/mcoot/playeraccounts/internal/api/middleware"
	"github.com/mcoot/playeraccounts/internal/api/request"
	"github.com/mcoot/playeraccounts/internal/api/response"
	"github.com/mcoot/playeraccounts/internal/model"
	"github.com/mcoot/playeraccounts/internal/services/login"
)

// PlayerHandler handles login and SSO attach endpoints
type PlayerHandler struct {
	orchestrator *login.Orchestrator
}

// NewPlayerHandler creates a new player handler
func NewPlayerHandler(orchestrator *login.Orchestrator) *PlayerHandler {
	return &PlayerHandler{
		orchestrator: orchestrator,
	}
}

// Login handles POST /api/v1/player/login
func (h *PlayerHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req request.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	result := h.orchestrator.Login(r.Context(), login.Request{
		Device:      req.Device,
		Credentials: req.SSO,
		Location:    req.Location,
		IPAddress:   middleware.ClientIP(r),
		Web:         req.Device == nil,
	})

	requestID := middleware.GetRequestID(r.Context())
	switch result.Kind {
	case login.KindSuccess:
		response.JSON(w, http.StatusOK, response.Login{
			RequestID: requestID,
			Player:    result.Player,
		})
	case login.KindTwoFactorRequired, login.KindAccountConflict:
		response.JSON(w, http.StatusBadRequest, response.LoginConflict{
			ErrorCode: string(result.Kind),
			RequestID: requestID,
			Player:    result.Player,
			Rumble:    result.Rumble,
			Conflicts: result.Conflicts,
		})
	default:
		WriteError(w, result.Err)
	}
}

// AttachGoogle handles PATCH /api/v1/player/account/google
func (h *PlayerHandler) AttachGoogle(w http.ResponseWriter, r *http.Request) {
	var req request.AttachGoogleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}
	if req.Device == nil {
		WriteError(w, model.ErrDeviceRequired)
		return
	}
	if req.GoogleToken == "" {
		WriteError(w, NewInvalidRequestError("google_token is required"))
		return
	}

	player, err := h.orchestrator.AttachGoogle(r.Context(), req.Device, req.GoogleToken, middleware.ClientIP(r))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, player)
}

// AttachApple handles PATCH /api/v1/player/account/apple
func (h *PlayerHandler) AttachApple(w http.ResponseWriter, r *http.Request) {
	var req request.AttachAppleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}
	if req.Device == nil {
		WriteError(w, model.ErrDeviceRequired)
		return
	}
	if req.AppleToken == "" {
		WriteError(w, NewInvalidRequestError("apple_token is required"))
		return
	}

	player, err := h.orchestrator.AttachApple(r.Context(), req.Device, req.AppleToken, req.Nonce, middleware.ClientIP(r))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, player)
}

// AttachPlarium handles PATCH /api/v1/player/account/plarium
func (h *PlayerHandler) AttachPlarium(w http.ResponseWriter, r *http.Request) {
	var req request.AttachPlariumRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}
	if req.Device == nil {
		WriteError(w, model.ErrDeviceRequired)
		return
	}
	if req.Code == "" && req.Token == "" {
		WriteError(w, NewInvalidRequestError("code or token is required"))
		return
	}

	player, err := h.orchestrator.AttachPlarium(r.Context(), req.Device, req.Code, req.Token, middleware.ClientIP(r))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, player)
}

// AttachRumble handles PATCH /api/v1/player/account/rumble.
// Authenticated callers attach to their own account; others are found by device.
func (h *PlayerHandler) AttachRumble(w http.ResponseWriter, r *http.Request) {
	var req request.AttachRumbleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}
	if req.Rumble == nil || req.Rumble.Email == "" || req.Rumble.Hash == "" {
		WriteError(w, NewInvalidRequestError("rumble email and hash are required"))
		return
	}

	accountID := middleware.AccountID(r.Context())
	player, err := h.orchestrator.AttachRumble(r.Context(), accountID, req.Device, req.Rumble, middleware.ClientIP(r))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, player)
}

// Refresh handles GET /api/v1/player/account/refresh
func (h *PlayerHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	claims := middleware.MustGetClaims(r.Context())

	player, err := h.orchestrator.Refresh(r.Context(), claims.PlayerID(), middleware.ClientIP(r))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, player)
}
