package model

import (
	"fmt"
	"slices"
	"time"
)

// RumbleStatus is the lifecycle state of a first-party email/password account.
// Values are ordered: every state from Confirmed upward is a usable login.
type RumbleStatus int

const (
	RumbleNone RumbleStatus = iota
	RumbleEmailInvalid
	RumbleNeedsConfirmation
	RumbleConfirmed
	RumbleResetRequested
	RumbleResetPrimed
	RumbleNeedsTwoFactor
)

var rumbleStatusNames = map[RumbleStatus]string{
	RumbleNone:              "none",
	RumbleEmailInvalid:      "emailInvalid",
	RumbleNeedsConfirmation: "needsConfirmation",
	RumbleConfirmed:         "confirmed",
	RumbleResetRequested:    "resetRequested",
	RumbleResetPrimed:       "resetPrimed",
	RumbleNeedsTwoFactor:    "needsTwoFactor",
}

func (s RumbleStatus) String() string {
	if name, ok := rumbleStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("RumbleStatus(%d)", int(s))
}

// MarshalText encodes the status by name for JSON
func (s RumbleStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name
func (s *RumbleStatus) UnmarshalText(text []byte) error {
	for status, name := range rumbleStatusNames {
		if name == string(text) {
			*s = status
			return nil
		}
	}
	return fmt.Errorf("unknown rumble status %q", string(text))
}

// IsConfirmed reports whether the account is in the confirmed family
func (s RumbleStatus) IsConfirmed() bool {
	return s >= RumbleConfirmed
}

// AwaitingConfirmation reports whether the confirmation email is still outstanding
func (s RumbleStatus) AwaitingConfirmation() bool {
	return s == RumbleNeedsConfirmation || s == RumbleEmailInvalid
}

// RumbleEvent names a state machine transition
type RumbleEvent string

const (
	EventAttach              RumbleEvent = "attach"
	EventConfirmationFailed  RumbleEvent = "confirmationFailed"
	EventUseConfirmationCode RumbleEvent = "useConfirmationCode"
	EventBeginReset          RumbleEvent = "beginReset"
	EventCompleteReset       RumbleEvent = "completeReset"
	EventUpdateHash          RumbleEvent = "updateHash"
	EventSendTwoFactor       RumbleEvent = "sendTwoFactor"
	EventUseTwoFactorCode    RumbleEvent = "useTwoFactorCode"
)

var confirmedFamily = []RumbleStatus{
	RumbleConfirmed,
	RumbleResetRequested,
	RumbleResetPrimed,
	RumbleNeedsTwoFactor,
}

// rumbleTransitions lists the states each event may start from
var rumbleTransitions = map[RumbleEvent][]RumbleStatus{
	EventAttach:              {RumbleNone, RumbleEmailInvalid, RumbleNeedsConfirmation},
	EventConfirmationFailed:  {RumbleNeedsConfirmation},
	EventUseConfirmationCode: {RumbleNone, RumbleEmailInvalid, RumbleNeedsConfirmation},
	EventBeginReset:          confirmedFamily,
	EventCompleteReset:       {RumbleResetRequested, RumbleNeedsTwoFactor},
	EventUpdateHash:          confirmedFamily,
	EventSendTwoFactor:       confirmedFamily,
	EventUseTwoFactorCode:    confirmedFamily,
}

// CanTransition reports whether the event is valid from the status
func (s RumbleStatus) CanTransition(event RumbleEvent) bool {
	return slices.Contains(rumbleTransitions[event], s)
}

// StatusesFor returns the states an event may start from
func StatusesFor(event RumbleEvent) []RumbleStatus {
	return slices.Clone(rumbleTransitions[event])
}

// MaxConfirmedIDs bounds RumbleAccount.ConfirmedIDs; the newest are kept
const MaxConfirmedIDs = 20

// RumbleAccount is a first-party email/password identity. Username is the
// lower-cased email.
type RumbleAccount struct {
	Email            string       `json:"email" bson:"email"`
	Username         string       `json:"username" bson:"username"`
	Hash             string       `json:"hash,omitempty" bson:"hash,omitempty"`
	Status           RumbleStatus `json:"status" bson:"status"`
	ConfirmationCode string       `json:"code,omitempty" bson:"code,omitempty"`
	CodeExpiration   time.Time    `json:"expiration,omitempty" bson:"exp,omitempty"`
	ConfirmedIDs     []PlayerID   `json:"associated_accounts,omitempty" bson:"verified,omitempty"`

	ValidationStats `bson:",inline"`
}

func (r *RumbleAccount) Provider() Provider   { return ProviderRumble }
func (r *RumbleAccount) Subject() string      { return r.Email }
func (r *RumbleAccount) EmailAddress() string { return r.Email }

// HasLiveCode reports whether the account holds the given code and it has not expired
func (r *RumbleAccount) HasLiveCode(code string, now time.Time) bool {
	return code != "" && r.ConfirmationCode == code && r.CodeExpiration.After(now)
}

// AddConfirmedID appends the id if absent, keeping at most MaxConfirmedIDs
func (r *RumbleAccount) AddConfirmedID(id PlayerID) {
	if id == "" || slices.Contains(r.ConfirmedIDs, id) {
		return
	}
	r.ConfirmedIDs = append(r.ConfirmedIDs, id)
	if len(r.ConfirmedIDs) > MaxConfirmedIDs {
		r.ConfirmedIDs = r.ConfirmedIDs[len(r.ConfirmedIDs)-MaxConfirmedIDs:]
	}
}

// IsConfirmedFor reports whether the id has already completed a confirmation or 2FA
func (r *RumbleAccount) IsConfirmedFor(id PlayerID) bool {
	return slices.Contains(r.ConfirmedIDs, id)
}
