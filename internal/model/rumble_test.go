package model

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type RumbleSuite struct {
	suite.Suite
	now time.Time
}

func TestRumbleSuite(t *testing.T) {
	suite.Run(t, new(RumbleSuite))
}

func (s *RumbleSuite) SetupTest() {
	s.now = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
}

func (s *RumbleSuite) TestStatusOrdering() {
	s.False(RumbleNeedsConfirmation.IsConfirmed())
	s.False(RumbleEmailInvalid.IsConfirmed())
	s.True(RumbleConfirmed.IsConfirmed())
	s.True(RumbleResetRequested.IsConfirmed())
	s.True(RumbleResetPrimed.IsConfirmed())
	s.True(RumbleNeedsTwoFactor.IsConfirmed())

	s.True(RumbleEmailInvalid.AwaitingConfirmation())
	s.True(RumbleNeedsConfirmation.AwaitingConfirmation())
	s.False(RumbleConfirmed.AwaitingConfirmation())
}

func (s *RumbleSuite) TestTransitions() {
	s.True(RumbleNeedsConfirmation.CanTransition(EventUseConfirmationCode))
	s.False(RumbleConfirmed.CanTransition(EventUseConfirmationCode))
	s.True(RumbleResetRequested.CanTransition(EventCompleteReset))
	s.True(RumbleNeedsTwoFactor.CanTransition(EventCompleteReset))
	s.False(RumbleConfirmed.CanTransition(EventCompleteReset))
	s.False(RumbleNeedsConfirmation.CanTransition(EventBeginReset))
	s.True(RumbleResetPrimed.CanTransition(EventUpdateHash))
}

func (s *RumbleSuite) TestStatusJSONUsesNames() {
	data, err := json.Marshal(RumbleAccount{Email: "a@b.com", Status: RumbleResetPrimed})
	s.Require().NoError(err)
	s.Contains(string(data), `"status":"resetPrimed"`)

	var decoded RumbleAccount
	s.Require().NoError(json.Unmarshal(data, &decoded))
	s.Equal(RumbleResetPrimed, decoded.Status)
}

func (s *RumbleSuite) TestAddConfirmedIDKeepsNewest() {
	r := &RumbleAccount{}
	for i := 0; i < MaxConfirmedIDs+5; i++ {
		r.AddConfirmedID(PlayerID(fmt.Sprintf("p%d", i)))
	}
	r.AddConfirmedID("p24")

	s.Len(r.ConfirmedIDs, MaxConfirmedIDs)
	s.Equal(PlayerID("p5"), r.ConfirmedIDs[0])
	s.Equal(PlayerID("p24"), r.ConfirmedIDs[MaxConfirmedIDs-1])
}

func (s *RumbleSuite) TestHasLiveCode() {
	r := &RumbleAccount{ConfirmationCode: "123", CodeExpiration: s.now.Add(time.Minute)}
	s.True(r.HasLiveCode("123", s.now))
	s.False(r.HasLiveCode("124", s.now))
	s.False(r.HasLiveCode("123", s.now.Add(2*time.Minute)))
	s.False(r.HasLiveCode("", s.now))
}
