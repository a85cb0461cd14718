package token

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mcoot/playeraccounts/internal/dependencies/clock"
	"github.com/mcoot/playeraccounts/internal/model"
)

// ErrInvalidToken is returned when a bearer token fails verification
var ErrInvalidToken = errors.New("invalid token")

// SignerConfig configures locally signed tokens
type SignerConfig struct {
	Secret    string
	Issuer    string
	TTL       time.Duration
	Audiences []string
}

// Claims is the payload of a player token
type Claims struct {
	AccountID     string `json:"aid"`
	Screenname    string `json:"sn"`
	Discriminator int    `json:"d"`
	Email         string `json:"email,omitempty"`
	IPAddress     string `json:"ip,omitempty"`
	jwt.RegisteredClaims
}

// PlayerID returns the account the token was issued to
func (c *Claims) PlayerID() model.PlayerID {
	return model.PlayerID(c.AccountID)
}

// Signer issues and verifies HS256 player tokens
type Signer struct {
	secret []byte
	cfg    SignerConfig
	clock  clock.Clock
}

var _ Issuer = (*Signer)(nil)

// NewSigner creates a Signer
func NewSigner(cfg SignerConfig, clock clock.Clock) (*Signer, error) {
	if cfg.Secret == "" {
		return nil, errors.New("token secret is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	return &Signer{
		secret: []byte(cfg.Secret),
		cfg:    cfg,
		clock:  clock,
	}, nil
}

// Issue signs a token for the request
func (s *Signer) Issue(_ context.Context, req Request) (string, error) {
	if req.AccountID == "" || req.Discriminator < 0 {
		return "", fmt.Errorf("cannot issue token for %q#%d: %w", req.AccountID, req.Discriminator, model.ErrInvalidIdentity)
	}
	audiences := req.Audiences
	if len(audiences) == 0 {
		audiences = s.cfg.Audiences
	}

	now := s.clock.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		AccountID:     string(req.AccountID),
		Screenname:    req.Screenname,
		Discriminator: req.Discriminator,
		Email:         req.Email,
		IPAddress:     req.IPAddress,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   string(req.AccountID),
			Issuer:    s.cfg.Issuer,
			Audience:  audiences,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TTL)),
		},
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token
func (s *Signer) Verify(raw string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(30 * time.Second),
		jwt.WithTimeFunc(s.clock.Now),
		jwt.WithExpirationRequired(),
	}
	if s.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.cfg.Issuer))
	}

	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.AccountID == "" {
		return nil, ErrInvalidToken
	}
	if slices.Contains(claims.Audience, otpAudience) {
		return nil, fmt.Errorf("%w: one-time password used as bearer", ErrInvalidToken)
	}
	return claims, nil
}
