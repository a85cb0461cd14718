package model

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiagnoseError(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		code  string
		check func(LoginDiagnosis) bool
	}{
		{"password", fmt.Errorf("login: %w", ErrPasswordInvalid), CodePasswordInvalid, func(d LoginDiagnosis) bool { return d.PasswordInvalid }},
		{"not linked", &UnlinkedError{Provider: ProviderRumble}, CodeEmailNotLinked, func(d LoginDiagnosis) bool { return d.EmailNotLinked }},
		{"google not linked", &UnlinkedError{Provider: ProviderGoogle}, CodeUnlinked, func(d LoginDiagnosis) bool { return !d.EmailNotLinked && !d.Other }},
		{"email in use", &OwnershipError{Provider: ProviderRumble}, CodeEmailInUse, func(d LoginDiagnosis) bool { return d.EmailInUse }},
		{"integrity", &RecordsFoundError{Expected: 1, Found: 2, Reason: "shared by a@b.com"}, CodeOther, func(d LoginDiagnosis) bool { return d.Other }},
		{"expired", ErrCodeExpired, CodeEmailCodeExpired, func(d LoginDiagnosis) bool { return d.EmailCodeExpired }},
		{"banned", ErrAccountBanned, CodeBanned, func(d LoginDiagnosis) bool { return d.Banned }},
		{"other", errors.New("boom"), CodeOther, func(d LoginDiagnosis) bool { return d.Other }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := DiagnoseError(tt.err)
			assert.Equal(t, tt.code, d.Code)
			assert.True(t, tt.check(d))
		})
	}
}

func TestDiagnoseLockoutCarriesRemaining(t *testing.T) {
	d := DiagnoseError(&LockoutError{Email: "a@b.com", IPAddress: "1.2.3.4", SecondsRemaining: 120})
	assert.True(t, d.Locked)
	assert.Equal(t, int64(120), d.SecondsRemaining)
}

func TestDiagnoseIntegrityViolationIsGeneric(t *testing.T) {
	err := fmt.Errorf("link: %w", &RecordsFoundError{Expected: 1, Found: 2, Reason: "confirmed rumble accounts share a@b.com"})

	d := DiagnoseError(err)
	assert.True(t, d.Other)
	assert.False(t, d.IsClassified())
	assert.Equal(t, MessageOther, d.Message)
	assert.NotContains(t, d.Message, "a@b.com")
}

func TestDiagnoseUnavailableHidesDetail(t *testing.T) {
	d := DiagnoseError(fmt.Errorf("dial tcp 10.1.2.3:443: %w", ErrTokenAuthorityUnavailable))
	assert.Equal(t, CodeUnavailable, d.Code)
	assert.Equal(t, MessageUnavailable, d.Message)
}
