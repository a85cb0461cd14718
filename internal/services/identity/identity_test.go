package identity_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/playeraccounts/internal/dependencies/mocks"
	"github.com/mcoot/playeraccounts/internal/model"
	"github.com/mcoot/playeraccounts/internal/services/identity"
	"github.com/mcoot/playeraccounts/internal/services/outbound"
	"github.com/mcoot/playeraccounts/internal/testutil"
)

type IdentitySuite struct {
	suite.Suite
	ctx    context.Context
	clock  *mocks.MockClock
	client *outbound.Client

	mu        sync.Mutex
	keys      map[string]*rsa.PrivateKey
	jwksCalls atomic.Int32
	jwks      *httptest.Server
}

func TestIdentitySuite(t *testing.T) {
	suite.Run(t, new(IdentitySuite))
}

func (s *IdentitySuite) SetupTest() {
	s.ctx = context.Background()
	s.clock = mocks.NewMockClock(time.Now().UTC().Truncate(time.Second))
	cfg := outbound.DefaultConfig()
	cfg.Retries = 0
	s.client = outbound.New(cfg, testutil.NopLogger())

	s.keys = map[string]*rsa.PrivateKey{"k1": s.newKey()}
	s.jwksCalls.Store(0)
	s.jwks = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.jwksCalls.Add(1)
		s.mu.Lock()
		defer s.mu.Unlock()
		var keys []map[string]string
		for kid, key := range s.keys {
			keys = append(keys, map[string]string{
				"kty": "RSA",
				"kid": kid,
				"alg": "RS256",
				"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
			})
		}
		doc := map[string]any{"keys": keys}
		_ = json.NewEncoder(w).Encode(doc)
	}))
	s.T().Cleanup(s.jwks.Close)
}

func (s *IdentitySuite) newKey() *rsa.PrivateKey {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	s.Require().NoError(err)
	return key
}

func (s *IdentitySuite) sign(kid string, claims jwt.MapClaims) string {
	s.mu.Lock()
	key := s.keys[kid]
	s.mu.Unlock()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	raw, err := token.SignedString(key)
	s.Require().NoError(err)
	return raw
}

func (s *IdentitySuite) claims(iss, aud string) jwt.MapClaims {
	now := s.clock.Now()
	return jwt.MapClaims{
		"iss":            iss,
		"aud":            aud,
		"sub":            "subject-1",
		"email":          "Player@Example.com",
		"email_verified": true,
		"name":           "Player One",
		"iat":            now.Unix(),
		"exp":            now.Add(time.Hour).Unix(),
	}
}

func (s *IdentitySuite) google() *identity.GoogleValidator {
	return identity.NewGoogleValidator(identity.GoogleConfig{JWKSURL: s.jwks.URL, ClientIDs: []string{"client-a", "client-b"}}, s.client, s.clock)
}

func (s *IdentitySuite) apple() *identity.AppleValidator {
	return identity.NewAppleValidator(identity.AppleConfig{JWKSURL: s.jwks.URL, ClientIDs: []string{"com.game"}}, s.client, s.clock)
}

func (s *IdentitySuite) TestGoogleValidToken() {
	raw := s.sign("k1", s.claims("https://accounts.google.com", "client-b"))

	acct, err := s.google().Validate(s.ctx, raw)
	s.Require().NoError(err)
	s.Equal("subject-1", acct.ID)
	s.Equal("player@example.com", acct.Email)
	s.True(acct.EmailVerified)
	s.Equal("Player One", acct.Name)
}

func (s *IdentitySuite) TestGoogleWrongAudience() {
	raw := s.sign("k1", s.claims("https://accounts.google.com", "someone-else"))

	_, err := s.google().Validate(s.ctx, raw)
	s.ErrorIs(err, model.ErrIdentityValidation)
	var ve *model.ValidationError
	s.Require().ErrorAs(err, &ve)
	s.Equal(model.ProviderGoogle, ve.Provider)
}

func (s *IdentitySuite) TestGoogleWrongIssuer() {
	raw := s.sign("k1", s.claims("https://appleid.apple.com", "client-a"))

	_, err := s.google().Validate(s.ctx, raw)
	s.ErrorIs(err, model.ErrIdentityValidation)
}

func (s *IdentitySuite) TestExpiredToken() {
	raw := s.sign("k1", s.claims("accounts.google.com", "client-a"))
	s.clock.Advance(2 * time.Hour)

	_, err := s.google().Validate(s.ctx, raw)
	s.ErrorIs(err, model.ErrIdentityValidation)
}

func (s *IdentitySuite) TestKeysAreCachedAndRotatedKeysRefetched() {
	v := s.google()

	_, err := v.Validate(s.ctx, s.sign("k1", s.claims("accounts.google.com", "client-a")))
	s.Require().NoError(err)
	_, err = v.Validate(s.ctx, s.sign("k1", s.claims("accounts.google.com", "client-a")))
	s.Require().NoError(err)
	s.Equal(int32(1), s.jwksCalls.Load())

	s.mu.Lock()
	s.keys["k2"] = s.newKey()
	s.mu.Unlock()

	_, err = v.Validate(s.ctx, s.sign("k2", s.claims("accounts.google.com", "client-a")))
	s.Require().NoError(err)
	s.Equal(int32(2), s.jwksCalls.Load())
}

func (s *IdentitySuite) TestUnconfiguredClientIDsReject() {
	v := identity.NewGoogleValidator(identity.GoogleConfig{JWKSURL: s.jwks.URL}, s.client, s.clock)

	_, err := v.Validate(s.ctx, s.sign("k1", s.claims("accounts.google.com", "client-a")))
	s.ErrorIs(err, model.ErrIdentityValidation)
}

func (s *IdentitySuite) TestAppleNonce() {
	claims := s.claims("https://appleid.apple.com", "com.game")
	claims["nonce"] = "n-1"
	raw := s.sign("k1", claims)

	acct, err := s.apple().Validate(s.ctx, raw, "n-1")
	s.Require().NoError(err)
	s.Equal("subject-1", acct.ID)
	s.Equal("player@example.com", acct.Email)

	_, err = s.apple().Validate(s.ctx, raw, "other")
	s.ErrorIs(err, model.ErrIdentityValidation)
}

func (s *IdentitySuite) TestPlariumCodeExchange() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.Equal("game", r.Header.Get("game_id"))
		s.Equal("secret", r.Header.Get("secret_key"))
		switch r.URL.Path {
		case "/token":
			var body map[string]any
			s.Require().NoError(json.NewDecoder(r.Body).Decode(&body))
			s.Equal("the-code", body["code"])
			s.Equal("authorization_code", body["grantType"])
			_, _ = w.Write([]byte(`"auth-token"`))
		case "/auth":
			var body map[string]string
			s.Require().NoError(json.NewDecoder(r.Body).Decode(&body))
			s.Equal("auth-token", body["auth_token"])
			_, _ = w.Write([]byte(`{"plid":"pl-1","login":"Someone@Plarium.com"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	v := identity.NewPlariumValidator(identity.PlariumConfig{
		TokenURL: srv.URL + "/token",
		AuthURL:  srv.URL + "/auth",
		GameID:   "game",
		Secret:   "secret",
	}, s.client)

	acct, err := v.Validate(s.ctx, "the-code", "")
	s.Require().NoError(err)
	s.Equal("pl-1", acct.ID)
	s.Equal("someone@plarium.com", acct.Email)
}

func (s *IdentitySuite) TestPlariumRejection() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	v := identity.NewPlariumValidator(identity.PlariumConfig{AuthURL: srv.URL}, s.client)
	_, err := v.Validate(s.ctx, "", "bad")
	var ve *model.ValidationError
	s.Require().ErrorAs(err, &ve)
	s.Equal(model.ProviderPlarium, ve.Provider)
}

func (s *IdentitySuite) TestServiceNormalizesRumble() {
	svc := identity.New(nil, nil, nil)

	ids, err := svc.Validate(s.ctx, identity.Credentials{Rumble: &identity.RumbleCredentials{Email: "  Mixed@Case.COM ", Hash: "h"}})
	s.Require().NoError(err)
	s.Require().NotNil(ids.Rumble)
	s.Equal("mixed@case.com", ids.Rumble.Email)
	s.Equal("mixed@case.com", ids.Rumble.Username)
	s.Equal(model.RumbleNone, ids.Rumble.Status)

	ids, err = svc.Validate(s.ctx, identity.Credentials{Rumble: &identity.RumbleCredentials{Email: "a@b.com"}})
	s.Require().NoError(err)
	s.Nil(ids.Rumble)
	s.False(ids.HasAny())
}

func (s *IdentitySuite) TestServiceCombinesProviders() {
	svc := identity.New(s.google(), s.apple(), nil)
	appleClaims := s.claims("https://appleid.apple.com", "com.game")
	appleClaims["sub"] = "apple-sub"

	ids, err := svc.Validate(s.ctx, identity.Credentials{
		GoogleToken: s.sign("k1", s.claims("accounts.google.com", "client-a")),
		AppleToken:  s.sign("k1", appleClaims),
		Rumble:      &identity.RumbleCredentials{Email: "a@b.com", Hash: "h"},
	})
	s.Require().NoError(err)
	s.Equal("subject-1", ids.Google.ID)
	s.Equal("apple-sub", ids.Apple.ID)
	s.NotNil(ids.Rumble)
	s.True(ids.SkipTwoFactor())
}

func (s *IdentitySuite) TestServiceRejectsUnconfiguredProvider() {
	svc := identity.New(nil, nil, nil)

	_, err := svc.Validate(s.ctx, identity.Credentials{PlariumToken: "x"})
	var ve *model.ValidationError
	s.Require().ErrorAs(err, &ve)
	s.Equal(model.ProviderPlarium, ve.Provider)
}

func (s *IdentitySuite) TestCredentialsRumbleEmail() {
	s.Equal("", identity.Credentials{}.RumbleEmail())
	s.Equal("", identity.Credentials{Rumble: &identity.RumbleCredentials{Email: "a@b.com"}}.RumbleEmail())
	s.Equal("a@b.com", identity.Credentials{Rumble: &identity.RumbleCredentials{Email: "A@B.com", Hash: "h"}}.RumbleEmail())
}
