package login

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/playeraccounts/internal/dependencies/mocks"
	"github.com/mcoot/playeraccounts/internal/dependencies/random"
	"github.com/mcoot/playeraccounts/internal/model"
	"github.com/mcoot/playeraccounts/internal/services/account"
	"github.com/mcoot/playeraccounts/internal/services/confirmation"
	"github.com/mcoot/playeraccounts/internal/services/discriminator"
	"github.com/mcoot/playeraccounts/internal/services/identity"
	"github.com/mcoot/playeraccounts/internal/services/lockout"
	"github.com/mcoot/playeraccounts/internal/services/names"
	"github.com/mcoot/playeraccounts/internal/services/notify"
	"github.com/mcoot/playeraccounts/internal/services/token"
	"github.com/mcoot/playeraccounts/internal/storage/memory"
	"github.com/mcoot/playeraccounts/internal/testutil"
)

type OrchestratorSuite struct {
	suite.Suite
	storage      *memory.Storage
	clock        *mocks.MockClock
	notifier     *mocks.MockNotifier
	issuer       *mocks.MockIssuer
	validator    *mocks.MockValidator
	confirmation *confirmation.Service
	resolver     *account.Resolver
	orchestrator *Orchestrator
	ctx          context.Context
}

func TestOrchestratorSuite(t *testing.T) {
	suite.Run(t, new(OrchestratorSuite))
}

func (s *OrchestratorSuite) SetupTest() {
	s.storage = memory.New()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.notifier = mocks.NewMockNotifier()
	s.issuer = mocks.NewMockIssuer()
	s.validator = mocks.NewMockValidator()
	s.ctx = context.Background()
	s.build(Config{})
}

func (s *OrchestratorSuite) build(cfg Config) {
	rng := random.New()
	logger := testutil.NopLogger()
	assigner := discriminator.New(s.storage, rng, logger)
	generator := names.New(rng)
	guard := lockout.New(s.storage, s.clock, lockout.DefaultConfig(), logger)
	s.confirmation = confirmation.New(s.storage, s.notifier, s.clock, rng, logger)
	s.resolver = account.New(s.storage, assigner, generator, s.confirmation, guard, s.issuer, s.clock, account.Config{}, logger)
	s.orchestrator = New(s.resolver, s.confirmation, s.validator, guard, assigner, generator, s.storage, s.notifier, s.clock, cfg, logger)
}

func (s *OrchestratorSuite) get(id model.PlayerID) *model.Player {
	p, err := s.storage.GetPlayer(s.ctx, id)
	s.Require().NoError(err)
	return p
}

func (s *OrchestratorSuite) device(install string) *model.DeviceInfo {
	return &model.DeviceInfo{InstallID: install, Type: "ios"}
}

func (s *OrchestratorSuite) loginDevice(install string) *model.Player {
	result := s.orchestrator.Login(s.ctx, Request{Device: s.device(install), IPAddress: "10.0.0.1"})
	s.Require().Equal(KindSuccess, result.Kind, "login failed: %v", result.Err)
	return result.Player
}

// confirmRumble attaches and confirms a Rumble account on the player
func (s *OrchestratorSuite) confirmRumble(id model.PlayerID, email, hash string) {
	_, err := s.orchestrator.AttachRumble(s.ctx, id, nil, &identity.RumbleCredentials{Email: email, Hash: hash}, "")
	s.Require().NoError(err)
	msg, ok := s.notifier.Last(notify.KindConfirmation)
	s.Require().True(ok)
	_, err = s.confirmation.UseConfirmationCode(s.ctx, id, msg.Code)
	s.Require().NoError(err)
}

func (s *OrchestratorSuite) TestNewDeviceLogin() {
	result := s.orchestrator.Login(s.ctx, Request{
		Device:    s.device("install-1"),
		Location:  &model.Location{CountryCode: "NZ"},
		IPAddress: "10.0.0.1",
	})
	s.Require().Equal(KindSuccess, result.Kind)
	s.True(result.OK())

	p := result.Player
	s.NotEmpty(p.Token)
	s.NotEmpty(p.Screenname)
	s.True(p.HasDiscriminator())
	s.NotEmpty(p.Device.PrivateKey)

	stored := s.get(p.ID)
	s.Equal(int64(1), stored.SessionCount)
	s.Equal("NZ", stored.Location.CountryCode)
	s.Equal(s.clock.Now(), stored.LastLogin)
}

// onNextIssue runs fn once, while the next token is being issued
func (s *OrchestratorSuite) onNextIssue(fn func(ctx context.Context)) {
	var fired bool
	s.issuer.OnIssue = func(ctx context.Context, _ token.Request) {
		if fired {
			return
		}
		fired = true
		fn(ctx)
	}
}

func (s *OrchestratorSuite) TestConfirmationDuringLoginSurvives() {
	first := s.loginDevice("install-1")
	_, err := s.orchestrator.AttachRumble(s.ctx, first.ID, nil, &identity.RumbleCredentials{Email: "a@b.com", Hash: "h"}, "")
	s.Require().NoError(err)
	msg, ok := s.notifier.Last(notify.KindConfirmation)
	s.Require().True(ok)

	s.onNextIssue(func(ctx context.Context) {
		_, err := s.confirmation.UseConfirmationCode(ctx, first.ID, msg.Code)
		s.Require().NoError(err)
	})
	second := s.loginDevice("install-1")

	stored := s.get(first.ID)
	s.Require().NotNil(stored.Rumble)
	s.Equal(model.RumbleConfirmed, stored.Rumble.Status)
	s.Empty(stored.Rumble.ConfirmationCode)
	s.Equal(int64(2), stored.SessionCount)
	s.Equal(model.RumbleConfirmed, second.Rumble.Status)
	s.NotEmpty(second.Token)
}

func (s *OrchestratorSuite) TestLinkCodeSetDuringLoginSurvives() {
	first := s.loginDevice("install-1")

	var code string
	s.onNextIssue(func(ctx context.Context) {
		var err error
		code, err = s.resolver.SetLinkCode(ctx, []model.PlayerID{first.ID})
		s.Require().NoError(err)
	})
	s.loginDevice("install-1")

	stored := s.get(first.ID)
	s.Equal(code, stored.LinkCode)
	s.True(stored.HasLiveLinkCode(s.clock.Now()))
}

func (s *OrchestratorSuite) TestLoginClearsExpiredLinkCode() {
	first := s.loginDevice("install-1")
	_, err := s.resolver.SetLinkCode(s.ctx, []model.PlayerID{first.ID})
	s.Require().NoError(err)

	s.clock.Advance(account.LinkCodeTTL + time.Minute)
	s.loginDevice("install-1")
	s.Empty(s.get(first.ID).LinkCode)
}

func (s *OrchestratorSuite) TestRepeatLoginCountsSessions() {
	first := s.loginDevice("install-1")
	s.clock.Advance(time.Hour)
	second := s.loginDevice("install-1")

	s.Equal(first.ID, second.ID)
	s.Equal(first.DiscriminatorValue(), second.DiscriminatorValue())
	s.Equal(int64(2), s.get(first.ID).SessionCount)
}

func (s *OrchestratorSuite) TestMaintenance() {
	s.build(Config{Maintenance: true})

	result := s.orchestrator.Login(s.ctx, Request{Device: s.device("install-1")})
	s.Equal(KindMaintenance, result.Kind)
	s.Require().NotNil(result.Diagnosis)
	s.True(result.Diagnosis.Maintenance)
	s.Zero(s.validator.Calls())
}

func (s *OrchestratorSuite) TestRumbleNotLinked() {
	result := s.orchestrator.Login(s.ctx, Request{
		Device:      s.device("install-1"),
		Credentials: identity.Credentials{Rumble: &identity.RumbleCredentials{Email: "nobody@x.com", Hash: "h"}},
	})
	s.Equal(KindFailed, result.Kind)
	s.Require().NotNil(result.Diagnosis)
	s.True(result.Diagnosis.EmailNotLinked)
	s.Equal(model.CodeEmailNotLinked, result.Diagnosis.Code)
}

func (s *OrchestratorSuite) TestWebLoginWithoutMatch() {
	result := s.orchestrator.Login(s.ctx, Request{Web: true})
	s.Equal(KindFailed, result.Kind)
	s.True(result.Diagnosis.Other)
	s.Equal(model.MessageOther, result.Diagnosis.Message)
	s.ErrorIs(result.Err, model.ErrRecordsFound)
}

func (s *OrchestratorSuite) TestWebLoginWithGoogle() {
	owner := s.loginDevice("install-1")
	s.validator.AddGoogle("google-token", &model.GoogleAccount{ID: "g1", Email: "g@x.com"})
	_, err := s.orchestrator.AttachGoogle(s.ctx, s.device("install-1"), "google-token", "")
	s.Require().NoError(err)

	result := s.orchestrator.Login(s.ctx, Request{
		Credentials: identity.Credentials{GoogleToken: "google-token"},
		IPAddress:   "10.0.0.2",
		Web:         true,
	})
	s.Require().Equal(KindSuccess, result.Kind, "login failed: %v", result.Err)
	s.Equal(owner.ID, result.Player.ID)

	stored := s.get(owner.ID)
	s.Equal(int64(1), stored.Google.WebValidationCount)
	s.Equal("10.0.0.2", stored.Google.IPAddress)
}

func (s *OrchestratorSuite) TestOwnRumbleLoginSucceeds() {
	owner := s.loginDevice("install-1")
	s.confirmRumble(owner.ID, "A@B.com", "H1")

	result := s.orchestrator.Login(s.ctx, Request{
		Device:      s.device("install-1"),
		Credentials: identity.Credentials{Rumble: &identity.RumbleCredentials{Email: "a@b.com", Hash: "H1"}},
	})
	s.Require().Equal(KindSuccess, result.Kind, "login failed: %v", result.Err)
	s.Equal(owner.ID, result.Player.ID)
	s.Empty(result.Player.Rumble.Hash, "hash is pruned")
}

func (s *OrchestratorSuite) TestTwoDeviceConflictRequiresTwoFactor() {
	p1 := s.loginDevice("install-1")
	s.confirmRumble(p1.ID, "a@b.com", "H1")
	p2 := s.loginDevice("install-2")

	result := s.orchestrator.Login(s.ctx, Request{
		Device:      s.device("install-2"),
		Credentials: identity.Credentials{Rumble: &identity.RumbleCredentials{Email: "a@b.com", Hash: "H1"}},
	})
	s.Require().Equal(KindTwoFactorRequired, result.Kind, "unexpected result: %v", result.Err)
	s.Equal(p2.ID, result.Player.ID)
	s.NotEmpty(result.Player.Token)
	s.Require().NotNil(result.Rumble)
	s.Empty(result.Rumble.Hash)
	s.Empty(result.Rumble.ConfirmationCode)

	msg, ok := s.notifier.Last(notify.KindTwoFactor)
	s.Require().True(ok)
	s.Equal("a@b.com", msg.Email)

	first, second := s.get(p1.ID), s.get(p2.ID)
	s.NotEmpty(first.LinkCode)
	s.Equal(first.LinkCode, second.LinkCode)
	s.Equal(model.RumbleNeedsTwoFactor, first.Rumble.Status)
	s.Empty(second.ParentID, "conflicting accounts are not merged automatically")

	// verifying the code and adopting merges the accounts
	_, err := s.confirmation.UseTwoFactorCode(s.ctx, p2.ID, msg.Code)
	s.Require().NoError(err)
	merged, err := s.resolver.LinkAccounts(s.ctx, p2.ID, "")
	s.Require().NoError(err)
	s.Equal(p2.ID, merged.ID)
	s.Require().NotNil(merged.Rumble)
	s.True(merged.Rumble.IsConfirmedFor(p2.ID))
	s.Equal(p2.ID, s.get(p1.ID).ParentID)

	// the old device now resolves to the merged account
	again := s.loginDevice("install-1")
	s.Equal(p2.ID, again.ID)
}

func (s *OrchestratorSuite) TestConflictWithGoogleSkipsTwoFactor() {
	p1 := s.loginDevice("install-1")
	s.validator.AddGoogle("google-token", &model.GoogleAccount{ID: "g1", Email: "g@x.com"})
	_, err := s.orchestrator.AttachGoogle(s.ctx, s.device("install-1"), "google-token", "")
	s.Require().NoError(err)
	s.confirmRumble(p1.ID, "a@b.com", "H1")
	p2 := s.loginDevice("install-2")

	result := s.orchestrator.Login(s.ctx, Request{
		Device:      s.device("install-2"),
		Credentials: identity.Credentials{GoogleToken: "google-token"},
	})
	s.Require().Equal(KindAccountConflict, result.Kind, "unexpected result: %v", result.Err)
	s.Equal(p2.ID, result.Player.ID)
	s.Require().Len(result.Conflicts, 1)
	s.Equal(p1.ID, result.Conflicts[0].ID)
	s.NotEmpty(result.Conflicts[0].Token)

	var emails []string
	for _, m := range s.notifier.Messages(notify.KindLogin) {
		emails = append(emails, m.Email)
		s.Equal("ios", m.Device)
	}
	s.ElementsMatch([]string{"g@x.com", "a@b.com"}, emails)
	s.NotEmpty(s.get(p1.ID).LinkCode)
	s.Equal(s.get(p1.ID).LinkCode, s.get(p2.ID).LinkCode)
}

func (s *OrchestratorSuite) TestLockoutAfterRepeatedFailures() {
	owner := s.loginDevice("install-1")
	s.confirmRumble(owner.ID, "a@b.com", "H1")

	for i := range 10 {
		result := s.orchestrator.Login(s.ctx, Request{
			Device:      s.device("install-1"),
			Credentials: identity.Credentials{Rumble: &identity.RumbleCredentials{Email: "a@b.com", Hash: "wrong"}},
			IPAddress:   "10.0.0.9",
		})
		s.Require().Equal(KindFailed, result.Kind)
		if i < lockout.DefaultConfig().Threshold {
			s.True(result.Diagnosis.PasswordInvalid, "attempt %d", i+1)
			continue
		}
		s.True(result.Diagnosis.Locked, "attempt %d", i+1)
		s.Positive(result.Diagnosis.SecondsRemaining)
	}

	// a different address is unaffected
	result := s.orchestrator.Login(s.ctx, Request{
		Device:      s.device("install-1"),
		Credentials: identity.Credentials{Rumble: &identity.RumbleCredentials{Email: "a@b.com", Hash: "H1"}},
		IPAddress:   "10.0.0.10",
	})
	s.Equal(KindSuccess, result.Kind, "unexpected result: %v", result.Err)
}

func (s *OrchestratorSuite) TestDeviceMismatch() {
	first := s.loginDevice("install-1")
	s.loginDeviceWithKey("install-1", first.Device.PrivateKey)

	result := s.orchestrator.Login(s.ctx, Request{Device: &model.DeviceInfo{InstallID: "install-1", Type: "ios", PrivateKey: "forged"}})
	s.Equal(KindFailed, result.Kind)
	s.True(result.Diagnosis.DeviceMismatch)
}

func (s *OrchestratorSuite) loginDeviceWithKey(install, key string) {
	device := s.device(install)
	device.PrivateKey = key
	result := s.orchestrator.Login(s.ctx, Request{Device: device})
	s.Require().Equal(KindSuccess, result.Kind, "login failed: %v", result.Err)
}

func (s *OrchestratorSuite) TestRepairsMissingScreenname() {
	s.Require().NoError(s.storage.SavePlayer(s.ctx, &model.Player{
		ID:     "legacy",
		Device: &model.DeviceInfo{InstallID: "install-legacy"},
	}))

	p := s.loginDevice("install-legacy")
	s.NotEmpty(p.Screenname)
	s.Equal(p.Screenname, s.get("legacy").Screenname)
}

// Attach use cases

func (s *OrchestratorSuite) TestAttachGoogleOwnership() {
	s.validator.AddGoogle("google-token", &model.GoogleAccount{ID: "g1"})
	s.loginDevice("install-1")
	s.loginDevice("install-2")

	attached, err := s.orchestrator.AttachGoogle(s.ctx, s.device("install-1"), "google-token", "")
	s.Require().NoError(err)
	s.NotEmpty(attached.Token)
	s.Require().NotNil(attached.Google)

	_, err = s.orchestrator.AttachGoogle(s.ctx, s.device("install-1"), "google-token", "")
	s.ErrorIs(err, model.ErrAlreadyLinked)

	_, err = s.orchestrator.AttachGoogle(s.ctx, s.device("install-2"), "google-token", "")
	s.ErrorIs(err, model.ErrAccountOwnership)
}

func (s *OrchestratorSuite) TestAttachAppleAndPlarium() {
	s.validator.AddApple("apple-token", &model.AppleAccount{ID: "a1"})
	s.validator.AddPlarium("plarium-tokencode", &model.PlariumAccount{ID: "pl1"})
	p := s.loginDevice("install-1")

	_, err := s.orchestrator.AttachApple(s.ctx, s.device("install-1"), "apple-token", "nonce", "")
	s.Require().NoError(err)
	_, err = s.orchestrator.AttachPlarium(s.ctx, s.device("install-1"), "code", "plarium-token", "")
	s.Require().NoError(err)

	stored := s.get(p.ID)
	s.Equal("a1", stored.Apple.ID)
	s.Equal("pl1", stored.Plarium.ID)
}

func (s *OrchestratorSuite) TestAttachRejectsInvalidCredential() {
	s.loginDevice("install-1")

	_, err := s.orchestrator.AttachGoogle(s.ctx, s.device("install-1"), "bogus", "")
	s.ErrorIs(err, model.ErrIdentityValidation)

	_, err = s.orchestrator.AttachGoogle(s.ctx, s.device("install-1"), "", "")
	s.ErrorIs(err, model.ErrIdentityValidation)
}

func (s *OrchestratorSuite) TestAttachRumble() {
	p := s.loginDevice("install-1")

	attached, err := s.orchestrator.AttachRumble(s.ctx, "", s.device("install-1"), &identity.RumbleCredentials{Email: "A@B.com", Hash: "H1"}, "")
	s.Require().NoError(err)
	s.Equal(p.ID, attached.ID)
	s.Equal(model.RumbleNeedsConfirmation, attached.Rumble.Status)
	s.Empty(attached.Rumble.ConfirmationCode)
	s.Empty(attached.Rumble.Hash)

	stored := s.get(p.ID)
	s.Equal("a@b.com", stored.Rumble.Email)
	s.Equal(s.clock.Now().Add(confirmation.CodeTTL), stored.Rumble.CodeExpiration)

	msg, ok := s.notifier.Last(notify.KindConfirmation)
	s.Require().True(ok)
	s.Equal(stored.Rumble.ConfirmationCode, msg.Code)
}

func (s *OrchestratorSuite) TestAttachRumbleRejectsConfirmedAccount() {
	p := s.loginDevice("install-1")
	s.confirmRumble(p.ID, "a@b.com", "H1")

	_, err := s.orchestrator.AttachRumble(s.ctx, p.ID, nil, &identity.RumbleCredentials{Email: "c@d.com", Hash: "H2"}, "")
	s.ErrorIs(err, model.ErrAlreadyLinked)
}

func (s *OrchestratorSuite) TestAttachRumbleEmailInUse() {
	p1 := s.loginDevice("install-1")
	s.confirmRumble(p1.ID, "a@b.com", "H1")
	s.loginDevice("install-2")

	_, err := s.orchestrator.AttachRumble(s.ctx, "", s.device("install-2"), &identity.RumbleCredentials{Email: "a@b.com", Hash: "H1"}, "")
	s.ErrorIs(err, model.ErrAccountOwnership)
	s.True(model.DiagnoseError(err).EmailInUse)
}

func (s *OrchestratorSuite) TestAttachRumbleNeedsCaller() {
	_, err := s.orchestrator.AttachRumble(s.ctx, "", nil, &identity.RumbleCredentials{Email: "a@b.com", Hash: "H1"}, "")
	s.ErrorIs(err, model.ErrDeviceRequired)
}

func (s *OrchestratorSuite) TestRefresh() {
	p := s.loginDevice("install-1")

	refreshed, err := s.orchestrator.Refresh(s.ctx, p.ID, "")
	s.Require().NoError(err)
	s.NotEmpty(refreshed.Token)
	s.NotEqual(p.Token, refreshed.Token)

	_, err = s.orchestrator.Refresh(s.ctx, "missing", "")
	s.ErrorIs(err, model.ErrRecordNotFound)
}
