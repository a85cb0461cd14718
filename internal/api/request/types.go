package request

import (
	"github.com/mcoot/playeraccounts/internal/model"
	"github.com/mcoot/playeraccounts/internal/services/identity"
)

// LoginRequest is the request body for logging in. Requests without a device come from the web portal.
type LoginRequest struct {
	Device   *model.DeviceInfo    `json:"device,omitempty"`
	SSO      identity.Credentials `json:"sso"`
	Location *model.Location      `json:"location,omitempty"`
}

// AttachGoogleRequest is the request body for linking a Google account
type AttachGoogleRequest struct {
	Device      *model.DeviceInfo `json:"device"`
	GoogleToken string            `json:"google_token"`
}

// AttachAppleRequest is the request body for linking an Apple account
type AttachAppleRequest struct {
	Device     *model.DeviceInfo `json:"device"`
	AppleToken string            `json:"apple_token"`
	Nonce      string            `json:"nonce"`
}

// AttachPlariumRequest is the request body for linking a Plarium account
type AttachPlariumRequest struct {
	Device *model.DeviceInfo `json:"device"`
	Code   string            `json:"code,omitempty"`
	Token  string            `json:"token,omitempty"`
}

// AttachRumbleRequest is the request body for linking an email account
type AttachRumbleRequest struct {
	Device *model.DeviceInfo           `json:"device,omitempty"`
	Rumble *identity.RumbleCredentials `json:"rumble"`
}

// TwoFactorRequest is the request body for verifying a two-factor code
type TwoFactorRequest struct {
	Code string `json:"code"`
}

// RecoverRequest is the request body for starting a password reset
type RecoverRequest struct {
	Email string `json:"email"`
}

// ResetRequest is the request body for completing a password reset
type ResetRequest struct {
	Username  string `json:"username"`
	Code      string `json:"code"`
	AccountID string `json:"account_id,omitempty"`
}

// PasswordRequest is the request body for changing a password. OldHash may be
// omitted after a completed reset.
type PasswordRequest struct {
	Username string `json:"username"`
	OldHash  string `json:"old_hash,omitempty"`
	NewHash  string `json:"new_hash"`
}

// LinkRequest is the admin request body for parenting one account under another
type LinkRequest struct {
	ChildID  string `json:"child_id"`
	ParentID string `json:"parent_id"`
	Force    bool   `json:"force,omitempty"`
}

// ScreennameRequest is the admin request body for renaming an account
type ScreennameRequest struct {
	AccountID  string `json:"account_id"`
	Screenname string `json:"screenname"`
}

// EraseRequest is the admin request body for erasing an account's personal data
type EraseRequest struct {
	AccountID   string `json:"account_id"`
	Placeholder string `json:"placeholder,omitempty"`
}
