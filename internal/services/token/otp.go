package token

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mcoot/playeraccounts/internal/services/outbound"
)

// OTPTTL bounds how long a locally minted one-time password is accepted
const OTPTTL = 5 * time.Minute

const otpAudience = "otp"

// OneTimePasswords exchanges a player's bearer token for a one-time password
// that a web page can redeem once.
type OneTimePasswords interface {
	OneTimePassword(ctx context.Context, bearer string) (string, error)
}

var (
	_ OneTimePasswords = (*Signer)(nil)
	_ OneTimePasswords = (*AuthorityClient)(nil)
)

// OneTimePassword verifies bearer and signs a short-lived token scoped to the otp audience
func (s *Signer) OneTimePassword(_ context.Context, bearer string) (string, error) {
	claims, err := s.Verify(bearer)
	if err != nil {
		return "", err
	}

	now := s.clock.Now()
	otp := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		AccountID:     claims.AccountID,
		Screenname:    claims.Screenname,
		Discriminator: claims.Discriminator,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   claims.AccountID,
			Issuer:    s.cfg.Issuer,
			Audience:  jwt.ClaimStrings{otpAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(OTPTTL)),
		},
	})
	signed, err := otp.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign one-time password: %w", err)
	}
	return signed, nil
}

type otpResponse struct {
	OTP string `json:"otp"`
}

// OneTimePassword asks the authority to mint a one-time password for the bearer
func (a *AuthorityClient) OneTimePassword(ctx context.Context, bearer string) (string, error) {
	var resp otpResponse
	err := a.client.Do(ctx, outbound.Request{
		Method:  http.MethodPost,
		URL:     strings.TrimRight(a.cfg.BaseURL, "/") + "/dmz/otp/token",
		Headers: map[string]string{"Authorization": "Bearer " + bearer},
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("failed to generate one-time password: %w", err)
	}
	if resp.OTP == "" {
		return "", fmt.Errorf("%w: empty otp in response", ErrInvalidToken)
	}
	return resp.OTP, nil
}
