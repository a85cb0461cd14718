package handler

import (
	"encoding/json"
	"net/http"

	"github.com/mcoot/playeraccounts/internal/api/middleware"
	"github.com/mcoot/playeraccounts/internal/api/request"
	"github.com/mcoot/playeraccounts/internal/api/response"
	"github.com/mcoot/playeraccounts/internal/model"
	"github.com/mcoot/playeraccounts/internal/services/account"
)

// DefaultErasePlaceholder replaces erased emails when the request names none
const DefaultErasePlaceholder = "erased@deleted.invalid"

// AdminHandler handles operator endpoints
type AdminHandler struct {
	resolver    *account.Resolver
	placeholder string
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(resolver *account.Resolver, placeholder string) *AdminHandler {
	if placeholder == "" {
		placeholder = DefaultErasePlaceholder
	}
	return &AdminHandler{
		resolver:    resolver,
		placeholder: placeholder,
	}
}

// Link handles PATCH /api/v1/admin/account/link
func (h *AdminHandler) Link(w http.ResponseWriter, r *http.Request) {
	var req request.LinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}
	if req.ChildID == "" || req.ParentID == "" {
		WriteError(w, NewInvalidRequestError("child_id and parent_id are required"))
		return
	}

	player, err := h.resolver.LinkPlayerAccounts(r.Context(),
		model.PlayerID(req.ChildID),
		model.PlayerID(req.ParentID),
		req.Force,
		middleware.GetActor(r.Context()),
	)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, player.Prune())
}

// Screenname handles PATCH /api/v1/admin/account/screenname
func (h *AdminHandler) Screenname(w http.ResponseWriter, r *http.Request) {
	var req request.ScreennameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}
	if req.AccountID == "" || req.Screenname == "" {
		WriteError(w, NewInvalidRequestError("account_id and screenname are required"))
		return
	}

	affected, err := h.resolver.SyncScreenname(r.Context(), model.PlayerID(req.AccountID), req.Screenname)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.Screenname{
		Screenname: req.Screenname,
		Affected:   affected,
	})
}

// Erase handles POST /api/v1/admin/account/erase
func (h *AdminHandler) Erase(w http.ResponseWriter, r *http.Request) {
	var req request.EraseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}
	if req.AccountID == "" {
		WriteError(w, NewInvalidRequestError("account_id is required"))
		return
	}
	placeholder := req.Placeholder
	if placeholder == "" {
		placeholder = h.placeholder
	}

	player, scrubbed, err := h.resolver.Erase(r.Context(), model.PlayerID(req.AccountID), placeholder)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.Erase{
		Player:              player.Prune(),
		LockoutLogsScrubbed: scrubbed,
	})
}
