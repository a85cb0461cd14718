package token_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/playeraccounts/internal/dependencies/mocks"
	"github.com/mcoot/playeraccounts/internal/model"
	"github.com/mcoot/playeraccounts/internal/services/token"
)

type SignerSuite struct {
	suite.Suite
	clock  *mocks.MockClock
	signer *token.Signer
	ctx    context.Context
}

func TestSignerSuite(t *testing.T) {
	suite.Run(t, new(SignerSuite))
}

func (s *SignerSuite) SetupTest() {
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	signer, err := token.NewSigner(token.SignerConfig{
		Secret:    "test-secret",
		Issuer:    "player-service",
		TTL:       time.Hour,
		Audiences: []string{"game"},
	}, s.clock)
	s.Require().NoError(err)
	s.signer = signer
	s.ctx = context.Background()
}

func (s *SignerSuite) TestIssueAndVerify() {
	raw, err := s.signer.Issue(s.ctx, token.Request{
		AccountID:     "abc123",
		Screenname:    "Brave Bear",
		Discriminator: 42,
		Email:         "a@b.com",
	})
	s.Require().NoError(err)

	claims, err := s.signer.Verify(raw)
	s.Require().NoError(err)
	s.Equal(model.PlayerID("abc123"), claims.PlayerID())
	s.Equal("Brave Bear", claims.Screenname)
	s.Equal(42, claims.Discriminator)
	s.Equal("a@b.com", claims.Email)
	s.Equal([]string{"game"}, []string(claims.Audience))
}

func (s *SignerSuite) TestRequestAudiencesOverrideDefault() {
	raw, err := s.signer.Issue(s.ctx, token.Request{AccountID: "abc", Audiences: []string{"chat", "mail"}})
	s.Require().NoError(err)

	claims, err := s.signer.Verify(raw)
	s.Require().NoError(err)
	s.Equal([]string{"chat", "mail"}, []string(claims.Audience))
}

func (s *SignerSuite) TestExpiredTokenRejected() {
	raw, err := s.signer.Issue(s.ctx, token.Request{AccountID: "abc"})
	s.Require().NoError(err)

	s.clock.Advance(2 * time.Hour)
	_, err = s.signer.Verify(raw)
	s.ErrorIs(err, token.ErrInvalidToken)
}

func (s *SignerSuite) TestWrongSecretRejected() {
	other, err := token.NewSigner(token.SignerConfig{Secret: "other", Issuer: "player-service"}, s.clock)
	s.Require().NoError(err)
	raw, err := other.Issue(s.ctx, token.Request{AccountID: "abc"})
	s.Require().NoError(err)

	_, err = s.signer.Verify(raw)
	s.ErrorIs(err, token.ErrInvalidToken)
}

func (s *SignerSuite) TestWrongIssuerRejected() {
	other, err := token.NewSigner(token.SignerConfig{Secret: "test-secret", Issuer: "someone-else"}, s.clock)
	s.Require().NoError(err)
	raw, err := other.Issue(s.ctx, token.Request{AccountID: "abc"})
	s.Require().NoError(err)

	_, err = s.signer.Verify(raw)
	s.ErrorIs(err, token.ErrInvalidToken)
}

func (s *SignerSuite) TestGarbageRejected() {
	_, err := s.signer.Verify("not-a-token")
	s.ErrorIs(err, token.ErrInvalidToken)
}

func (s *SignerSuite) TestMissingAccountRejected() {
	_, err := s.signer.Issue(s.ctx, token.Request{})
	s.ErrorIs(err, model.ErrInvalidIdentity)
}

func (s *SignerSuite) TestSecretRequired() {
	_, err := token.NewSigner(token.SignerConfig{}, s.clock)
	s.Error(err)
}

func (s *SignerSuite) TestRequestForPrefersConfirmedRumbleEmail() {
	d := 7
	p := &model.Player{
		ID:            "child",
		ParentID:      "parent",
		Screenname:    "Calm Cat",
		Discriminator: &d,
		Google:        &model.GoogleAccount{ID: "g", Email: "g@x.com"},
		Rumble:        &model.RumbleAccount{Email: "r@x.com", Status: model.RumbleConfirmed},
	}

	req := token.RequestFor(p, "1.2.3.4", nil)
	s.Equal(model.PlayerID("parent"), req.AccountID)
	s.Equal(7, req.Discriminator)
	s.Equal("r@x.com", req.Email)

	p.Rumble.Status = model.RumbleNeedsConfirmation
	s.Equal("g@x.com", token.RequestFor(p, "", nil).Email)
}

func (s *SignerSuite) TestOneTimePassword() {
	raw, err := s.signer.Issue(s.ctx, token.Request{AccountID: "abc", Screenname: "Calm Cat", Discriminator: 3})
	s.Require().NoError(err)

	otp, err := s.signer.OneTimePassword(s.ctx, raw)
	s.Require().NoError(err)
	s.NotEqual(raw, otp)

	_, err = s.signer.Verify(otp)
	s.ErrorIs(err, token.ErrInvalidToken)
}

func (s *SignerSuite) TestOneTimePasswordNeedsValidBearer() {
	_, err := s.signer.OneTimePassword(s.ctx, "garbage")
	s.ErrorIs(err, token.ErrInvalidToken)
}
