package model

import (
	"errors"
	"fmt"
)

// Common errors used across the application
var (
	// Record errors
	ErrPlayerNotFound  = errors.New("player not found")
	ErrRecordNotFound  = errors.New("record not found")
	ErrRecordsFound    = errors.New("unexpected number of records found")
	ErrNoAccountFound  = errors.New("no account found")
	ErrDeviceMismatch  = errors.New("device key mismatch")
	ErrDeviceRequired  = errors.New("device information is required")
	ErrAccountBanned   = errors.New("account is banned")
	ErrMaintenance     = errors.New("service is under maintenance")
	ErrInvalidIdentity = errors.New("identity is invalid")

	// Linking errors
	ErrAlreadyLinked    = errors.New("identity is already linked to this account")
	ErrAccountOwnership = errors.New("identity is linked to another account")
	ErrUnlinked         = errors.New("identity is not linked to any account")
	ErrLinkExpired      = errors.New("link code has expired")
	ErrLinkCodeMissing  = errors.New("no link code has been issued")
	ErrHasParent        = errors.New("account is already linked to a different parent")
	ErrHasSso           = errors.New("account has SSO identities attached")

	// Rumble account errors
	ErrNotConfirmed            = errors.New("email address has not been confirmed")
	ErrCodeExpired             = errors.New("code has expired")
	ErrCodeInvalid             = errors.New("code is invalid")
	ErrPasswordInvalid         = errors.New("password is invalid")
	ErrInvalidPassword         = errors.New("new password is empty or unchanged")
	ErrConfirmationNotAccepted = errors.New("confirmation code was not accepted")
	ErrInvalidTransition       = errors.New("invalid account status transition")

	// Lockout
	ErrLockedOut = errors.New("too many failed login attempts")

	// Collaborators
	ErrTokenAuthorityUnavailable = errors.New("token authority unavailable")
	ErrIdentityValidation        = errors.New("sso credential failed validation")
)

// AlreadyLinkedError is returned when an identity is already attached to the requesting account
type AlreadyLinkedError struct {
	Provider Provider
}

func (e *AlreadyLinkedError) Error() string {
	return fmt.Sprintf("%s account is already linked to this player", e.Provider)
}

func (e *AlreadyLinkedError) Is(target error) bool { return target == ErrAlreadyLinked }

// OwnershipError is returned when an identity belongs to a different account
type OwnershipError struct {
	Provider     Provider
	RequestingID PlayerID
	OwnerID      PlayerID
}

func (e *OwnershipError) Error() string {
	return fmt.Sprintf("%s account is owned by %s, not %s", e.Provider, e.OwnerID, e.RequestingID)
}

func (e *OwnershipError) Is(target error) bool { return target == ErrAccountOwnership }

// UnlinkedError is returned when an SSO identity resolves to no account
type UnlinkedError struct {
	Provider Provider
}

func (e *UnlinkedError) Error() string {
	return fmt.Sprintf("%s account is not linked to any player", e.Provider)
}

func (e *UnlinkedError) Is(target error) bool { return target == ErrUnlinked }

// RecordsFoundError signals an integrity violation: a lookup expected a bounded
// number of matches and found a different number.
type RecordsFoundError struct {
	Expected int
	Found    int
	Reason   string
}

func (e *RecordsFoundError) Error() string {
	msg := fmt.Sprintf("expected %d record(s), found %d", e.Expected, e.Found)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *RecordsFoundError) Is(target error) bool { return target == ErrRecordsFound }

// LockoutError is returned while an (email, ip) pair is cooling down
type LockoutError struct {
	Email            string
	IPAddress        string
	SecondsRemaining int64
}

func (e *LockoutError) Error() string {
	return fmt.Sprintf("too many failed login attempts; retry in %d seconds", e.SecondsRemaining)
}

func (e *LockoutError) Is(target error) bool { return target == ErrLockedOut }

// ValidationError is returned when a provider rejects an SSO credential
type ValidationError struct {
	Provider Provider
	Err      error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s credential validation failed: %v", e.Provider, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func (e *ValidationError) Is(target error) bool { return target == ErrIdentityValidation }
