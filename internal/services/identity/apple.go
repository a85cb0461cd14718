package identity

import (
	"context"
	"fmt"
	"strings"

	"github.com/mcoot/playeraccounts/internal/dependencies/clock"
	"github.com/mcoot/playeraccounts/internal/model"
	"github.com/mcoot/playeraccounts/internal/services/outbound"
)

const (
	defaultAppleJWKSURL = "https://appleid.apple.com/auth/keys"
	appleIssuer         = "https://appleid.apple.com"
)

// AppleConfig configures Sign in with Apple validation
type AppleConfig struct {
	JWKSURL   string
	ClientIDs []string
}

// AppleValidator validates Sign in with Apple identity tokens
type AppleValidator struct {
	verifier *idTokenVerifier
}

// NewAppleValidator creates an AppleValidator
func NewAppleValidator(cfg AppleConfig, client *outbound.Client, clock clock.Clock) *AppleValidator {
	url := cfg.JWKSURL
	if url == "" {
		url = defaultAppleJWKSURL
	}
	return &AppleValidator{verifier: &idTokenVerifier{
		keys:      NewKeySet(url, client, clock),
		issuers:   []string{appleIssuer},
		audiences: cfg.ClientIDs,
		clock:     clock,
	}}
}

// Validate returns the account described by the token. The token's nonce
// claim must equal nonce.
func (a *AppleValidator) Validate(ctx context.Context, token, nonce string) (*model.AppleAccount, error) {
	claims, err := a.verifier.verify(ctx, token)
	if err != nil {
		return nil, &model.ValidationError{Provider: model.ProviderApple, Err: err}
	}
	if stringClaim(claims, "nonce") != strings.TrimSpace(nonce) {
		return nil, &model.ValidationError{Provider: model.ProviderApple, Err: fmt.Errorf("nonce mismatch")}
	}
	return &model.AppleAccount{
		ID:    stringClaim(claims, "sub"),
		Email: strings.ToLower(stringClaim(claims, "email")),
	}, nil
}
