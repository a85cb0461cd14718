package identity

import (
	"context"
	"strings"

	"github.com/mcoot/playeraccounts/internal/dependencies/clock"
	"github.com/mcoot/playeraccounts/internal/model"
	"github.com/mcoot/playeraccounts/internal/services/outbound"
)

const defaultGoogleJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"

var googleIssuers = []string{"https://accounts.google.com", "accounts.google.com"}

// GoogleConfig configures Google ID token validation
type GoogleConfig struct {
	JWKSURL   string
	ClientIDs []string
}

// GoogleValidator validates Google Sign-In ID tokens
type GoogleValidator struct {
	verifier *idTokenVerifier
}

// NewGoogleValidator creates a GoogleValidator
func NewGoogleValidator(cfg GoogleConfig, client *outbound.Client, clock clock.Clock) *GoogleValidator {
	url := cfg.JWKSURL
	if url == "" {
		url = defaultGoogleJWKSURL
	}
	return &GoogleValidator{verifier: &idTokenVerifier{
		keys:      NewKeySet(url, client, clock),
		issuers:   googleIssuers,
		audiences: cfg.ClientIDs,
		clock:     clock,
	}}
}

// Validate returns the account described by the token
func (g *GoogleValidator) Validate(ctx context.Context, token string) (*model.GoogleAccount, error) {
	claims, err := g.verifier.verify(ctx, token)
	if err != nil {
		return nil, &model.ValidationError{Provider: model.ProviderGoogle, Err: err}
	}
	return &model.GoogleAccount{
		ID:            stringClaim(claims, "sub"),
		Email:         strings.ToLower(stringClaim(claims, "email")),
		EmailVerified: boolClaim(claims["email_verified"]),
		Name:          stringClaim(claims, "name"),
		Picture:       stringClaim(claims, "picture"),
	}, nil
}
