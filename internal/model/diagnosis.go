package model

import (
	"errors"
)

// LoginDiagnosis is the client-facing explanation of a failed login.
// Flags are independent; Other is set when nothing else applied.
type LoginDiagnosis struct {
	EmailNotLinked    bool `json:"email_not_linked,omitempty"`
	EmailNotConfirmed bool `json:"email_not_confirmed,omitempty"`
	EmailCodeExpired  bool `json:"email_code_expired,omitempty"`
	EmailInUse        bool `json:"email_in_use,omitempty"`
	PasswordInvalid   bool `json:"password_invalid,omitempty"`
	CodeInvalid       bool `json:"code_invalid,omitempty"`
	DeviceMismatch    bool `json:"device_mismatch,omitempty"`
	Locked            bool `json:"locked,omitempty"`
	Banned            bool `json:"banned,omitempty"`
	Maintenance       bool `json:"maintenance,omitempty"`
	Other             bool `json:"other,omitempty"`

	Code             string `json:"code"`
	Message          string `json:"message"`
	SecondsRemaining int64  `json:"seconds_remaining,omitempty"`
}

// Diagnosis codes
const (
	CodeEmailNotLinked    = "emailNotLinked"
	CodeEmailNotConfirmed = "emailNotConfirmed"
	CodeEmailCodeExpired  = "emailCodeExpired"
	CodeEmailInUse        = "emailInUse"
	CodePasswordInvalid   = "passwordInvalid"
	CodeCodeInvalid       = "codeInvalid"
	CodeDeviceMismatch    = "deviceMismatch"
	CodeLocked            = "lockout"
	CodeBanned            = "accountBanned"
	CodeMaintenance       = "maintenance"
	CodeUnlinked          = "accountNotLinked"
	CodeNoAccount         = "accountNotFound"
	CodeAlreadyLinked     = "alreadyLinked"
	CodeInvalidCredential = "ssoInvalid"
	CodeUnavailable       = "tokenAuthorityUnavailable"
	CodeOther             = "unknown"
)

// Fixed messages for failures whose error text is not meant for the caller
const (
	MessageOther       = "Unable to complete the request"
	MessageUnavailable = "Token service unavailable"
)

// DiagnoseError maps an error onto a LoginDiagnosis. Integrity violations
// such as ErrRecordsFound and unknown errors reduce to Other with
// MessageOther; their detail belongs in the server log only.
func DiagnoseError(err error) LoginDiagnosis {
	d := LoginDiagnosis{Message: err.Error()}

	var lockout *LockoutError
	var ownership *OwnershipError
	var unlinked *UnlinkedError

	switch {
	case errors.As(err, &lockout):
		d.Locked = true
		d.Code = CodeLocked
		d.SecondsRemaining = lockout.SecondsRemaining
	case errors.Is(err, ErrMaintenance):
		d.Maintenance = true
		d.Code = CodeMaintenance
	case errors.Is(err, ErrAccountBanned):
		d.Banned = true
		d.Code = CodeBanned
	case errors.Is(err, ErrDeviceMismatch):
		d.DeviceMismatch = true
		d.Code = CodeDeviceMismatch
	case errors.Is(err, ErrPasswordInvalid):
		d.PasswordInvalid = true
		d.Code = CodePasswordInvalid
	case errors.Is(err, ErrCodeInvalid):
		d.CodeInvalid = true
		d.Code = CodeCodeInvalid
	case errors.Is(err, ErrCodeExpired):
		d.EmailCodeExpired = true
		d.Code = CodeEmailCodeExpired
	case errors.Is(err, ErrNotConfirmed):
		d.EmailNotConfirmed = true
		d.Code = CodeEmailNotConfirmed
	case errors.As(err, &unlinked) && unlinked.Provider == ProviderRumble:
		d.EmailNotLinked = true
		d.Code = CodeEmailNotLinked
	case errors.As(err, &ownership) && ownership.Provider == ProviderRumble:
		d.EmailInUse = true
		d.Code = CodeEmailInUse
	case errors.Is(err, ErrUnlinked):
		d.Code = CodeUnlinked
	case errors.Is(err, ErrAccountOwnership), errors.Is(err, ErrAlreadyLinked):
		d.Code = CodeAlreadyLinked
	case errors.Is(err, ErrNoAccountFound):
		d.Code = CodeNoAccount
	case errors.Is(err, ErrIdentityValidation):
		d.Code = CodeInvalidCredential
	case errors.Is(err, ErrTokenAuthorityUnavailable):
		d.Code = CodeUnavailable
		d.Message = MessageUnavailable
	default:
		d.Other = true
		d.Code = CodeOther
		d.Message = MessageOther
	}
	return d
}

// IsClassified reports whether the diagnosis identified a known failure
func (d LoginDiagnosis) IsClassified() bool {
	return !d.Other
}
