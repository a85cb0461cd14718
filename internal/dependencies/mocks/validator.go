package mocks

import (
	"context"
	"sync"

	"github.com/mcoot/playeraccounts/internal/model"
	"github.com/mcoot/playeraccounts/internal/services/identity"
)

// MockValidator resolves credentials from registered tokens.
// Rumble credentials are normalized the same way the real validator does.
type MockValidator struct {
	mu      sync.Mutex
	google  map[string]*model.GoogleAccount
	apple   map[string]*model.AppleAccount
	plarium map[string]*model.PlariumAccount
	calls   int
}

// Ensure MockValidator implements Validator
var _ identity.Validator = (*MockValidator)(nil)

// NewMockValidator creates a new MockValidator
func NewMockValidator() *MockValidator {
	return &MockValidator{
		google:  make(map[string]*model.GoogleAccount),
		apple:   make(map[string]*model.AppleAccount),
		plarium: make(map[string]*model.PlariumAccount),
	}
}

// AddGoogle makes token validate to the given Google account
func (v *MockValidator) AddGoogle(token string, acct *model.GoogleAccount) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.google[token] = acct
}

// AddApple makes token validate to the given Apple account
func (v *MockValidator) AddApple(token string, acct *model.AppleAccount) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.apple[token] = acct
}

// AddPlarium makes token validate to the given Plarium account
func (v *MockValidator) AddPlarium(token string, acct *model.PlariumAccount) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.plarium[token] = acct
}

// Calls returns how many times Validate ran
func (v *MockValidator) Calls() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls
}

func (v *MockValidator) Validate(_ context.Context, creds identity.Credentials) (model.SsoIdentities, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls++

	var out model.SsoIdentities
	if creds.GoogleToken != "" {
		acct, ok := v.google[creds.GoogleToken]
		if !ok {
			return out, &model.ValidationError{Provider: model.ProviderGoogle, Err: model.ErrInvalidIdentity}
		}
		c := *acct
		out.Google = &c
	}
	if creds.AppleToken != "" {
		acct, ok := v.apple[creds.AppleToken]
		if !ok {
			return out, &model.ValidationError{Provider: model.ProviderApple, Err: model.ErrInvalidIdentity}
		}
		c := *acct
		out.Apple = &c
	}
	if token := creds.PlariumToken + creds.PlariumCode; token != "" {
		acct, ok := v.plarium[token]
		if !ok {
			return out, &model.ValidationError{Provider: model.ProviderPlarium, Err: model.ErrInvalidIdentity}
		}
		c := *acct
		out.Plarium = &c
	}
	out.Rumble = identity.NormalizeRumble(creds.Rumble)
	return out, nil
}
