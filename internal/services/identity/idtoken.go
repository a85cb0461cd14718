package identity

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mcoot/playeraccounts/internal/dependencies/clock"
)

// idTokenVerifier checks RS256 OpenID Connect ID tokens against a KeySet
type idTokenVerifier struct {
	keys      *KeySet
	issuers   []string
	audiences []string
	clock     clock.Clock
}

func (v *idTokenVerifier) verify(ctx context.Context, raw string) (jwt.MapClaims, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("empty id_token")
	}
	if len(v.audiences) == 0 {
		return nil, fmt.Errorf("provider is not configured (missing client ids)")
	}

	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		kid, _ := token.Header["kid"].(string)
		return v.keys.Key(ctx, strings.TrimSpace(kid))
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30*time.Second),
		jwt.WithTimeFunc(v.clock.Now),
	)
	if err != nil {
		return nil, fmt.Errorf("validate id_token: %w", err)
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("invalid id_token")
	}

	iss, _ := claims.GetIssuer()
	if !slices.Contains(v.issuers, iss) {
		return nil, fmt.Errorf("unexpected issuer: %s", iss)
	}
	aud, _ := claims.GetAudience()
	if !slices.ContainsFunc(aud, func(a string) bool { return slices.Contains(v.audiences, a) }) {
		return nil, fmt.Errorf("unexpected audience: %v", aud)
	}
	if sub, _ := claims.GetSubject(); strings.TrimSpace(sub) == "" {
		return nil, fmt.Errorf("id_token missing sub")
	}
	return claims, nil
}

func stringClaim(claims jwt.MapClaims, key string) string {
	s, _ := claims[key].(string)
	return strings.TrimSpace(s)
}

func boolClaim(raw any) bool {
	switch v := raw.(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes":
			return true
		}
	}
	return false
}
