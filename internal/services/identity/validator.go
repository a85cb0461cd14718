package identity

import (
	"context"
	"errors"
	"strings"

	"github.com/mcoot/playeraccounts/internal/model"
)

var errNotConfigured = errors.New("provider is not configured")

// RumbleCredentials is a first-party email and password hash
type RumbleCredentials struct {
	Email string `json:"email"`
	Hash  string `json:"hash"`
}

// Credentials is the set of SSO proofs presented in one request. Empty fields are skipped.
type Credentials struct {
	GoogleToken  string             `json:"google_token,omitempty"`
	AppleToken   string             `json:"apple_token,omitempty"`
	AppleNonce   string             `json:"apple_nonce,omitempty"`
	PlariumCode  string             `json:"plarium_code,omitempty"`
	PlariumToken string             `json:"plarium_token,omitempty"`
	Rumble       *RumbleCredentials `json:"rumble,omitempty"`
}

// RumbleEmail returns the normalized Rumble email, or "" when no usable Rumble credential is present
func (c Credentials) RumbleEmail() string {
	if c.Rumble == nil || c.Rumble.Hash == "" {
		return ""
	}
	return normalizeEmail(c.Rumble.Email)
}

// Validator turns credentials into verified identities
type Validator interface {
	Validate(ctx context.Context, creds Credentials) (model.SsoIdentities, error)
}

// Service validates every credential against its provider
type Service struct {
	google  *GoogleValidator
	apple   *AppleValidator
	plarium *PlariumValidator
}

var _ Validator = (*Service)(nil)

// New creates a Service. A nil provider validator rejects that provider's credentials.
func New(google *GoogleValidator, apple *AppleValidator, plarium *PlariumValidator) *Service {
	return &Service{google: google, apple: apple, plarium: plarium}
}

// Validate checks each supplied credential. Any failure aborts the whole set.
// A Rumble credential without a hash is dropped.
func (s *Service) Validate(ctx context.Context, creds Credentials) (model.SsoIdentities, error) {
	var out model.SsoIdentities

	if creds.GoogleToken != "" {
		if s.google == nil {
			return out, notConfigured(model.ProviderGoogle)
		}
		g, err := s.google.Validate(ctx, creds.GoogleToken)
		if err != nil {
			return out, err
		}
		out.Google = g
	}

	if creds.AppleToken != "" {
		if s.apple == nil {
			return out, notConfigured(model.ProviderApple)
		}
		a, err := s.apple.Validate(ctx, creds.AppleToken, creds.AppleNonce)
		if err != nil {
			return out, err
		}
		out.Apple = a
	}

	if creds.PlariumCode != "" || creds.PlariumToken != "" {
		if s.plarium == nil {
			return out, notConfigured(model.ProviderPlarium)
		}
		p, err := s.plarium.Validate(ctx, creds.PlariumCode, creds.PlariumToken)
		if err != nil {
			return out, err
		}
		out.Plarium = p
	}

	out.Rumble = NormalizeRumble(creds.Rumble)
	return out, nil
}

// NormalizeRumble builds a RumbleAccount from credentials, or nil when the hash is empty
func NormalizeRumble(creds *RumbleCredentials) *model.RumbleAccount {
	if creds == nil || creds.Hash == "" {
		return nil
	}
	email := normalizeEmail(creds.Email)
	if email == "" {
		return nil
	}
	return &model.RumbleAccount{
		Email:    email,
		Username: email,
		Hash:     creds.Hash,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func notConfigured(provider model.Provider) error {
	return &model.ValidationError{Provider: provider, Err: errNotConfigured}
}
