package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/playeraccounts/internal/model"
)

type StorageSuite struct {
	suite.Suite
	mini    *miniredis.Miniredis
	storage *Storage
	ctx     context.Context
	now     time.Time
}

func TestStorageSuite(t *testing.T) {
	suite.Run(t, new(StorageSuite))
}

func (s *StorageSuite) SetupTest() {
	s.mini = miniredis.RunT(s.T())

	client := redis.NewClient(&redis.Options{
		Addr: s.mini.Addr(),
	})

	cfg := DefaultConfig()
	cfg.LockoutTTL = time.Hour

	s.storage = NewWithClient(client, cfg)
	s.ctx = context.Background()
	s.now = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
}

func (s *StorageSuite) TearDownTest() {
	if s.storage != nil {
		_ = s.storage.Close()
	}
	if s.mini != nil {
		s.mini.Close()
	}
}

func (s *StorageSuite) TestRecentFailuresEmpty() {
	got, err := s.storage.RecentFailures(s.ctx, "a@b.com", "1.1.1.1")
	s.Require().NoError(err)
	s.Empty(got)
}

func (s *StorageSuite) TestRecordFailureNewestFirst() {
	s.Require().NoError(s.storage.RecordFailure(s.ctx, "a@b.com", "1.1.1.1", s.now, 10))
	s.Require().NoError(s.storage.RecordFailure(s.ctx, "a@b.com", "1.1.1.1", s.now.Add(time.Second), 10))

	got, err := s.storage.RecentFailures(s.ctx, "a@b.com", "1.1.1.1")
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.True(got[0].Equal(s.now.Add(time.Second)))
	s.True(got[1].Equal(s.now))
}

func (s *StorageSuite) TestRecordFailureTrims() {
	for i := range 8 {
		s.Require().NoError(s.storage.RecordFailure(s.ctx, "a@b.com", "1.1.1.1", s.now.Add(time.Duration(i)*time.Second), 5))
	}

	got, _ := s.storage.RecentFailures(s.ctx, "a@b.com", "1.1.1.1")
	s.Len(got, 5)
	s.True(got[0].Equal(s.now.Add(7 * time.Second)))
}

func (s *StorageSuite) TestRecordFailureSetsTTL() {
	_ = s.storage.RecordFailure(s.ctx, "a@b.com", "1.1.1.1", s.now, 5)

	ttl := s.mini.TTL(lockoutKey("a@b.com", "1.1.1.1"))
	s.Equal(time.Hour, ttl)
}

func (s *StorageSuite) TestLogsAreScopedByIP() {
	_ = s.storage.RecordFailure(s.ctx, "a@b.com", "1.1.1.1", s.now, 5)

	got, _ := s.storage.RecentFailures(s.ctx, "a@b.com", "2.2.2.2")
	s.Empty(got)
}

func (s *StorageSuite) TestEraseEmail() {
	_ = s.storage.RecordFailure(s.ctx, "a@b.com", "1.1.1.1", s.now, 5)
	_ = s.storage.RecordFailure(s.ctx, "a@b.com", "2.2.2.2", s.now, 5)
	_ = s.storage.RecordFailure(s.ctx, "other@b.com", "1.1.1.1", s.now, 5)

	n, err := s.storage.EraseEmail(s.ctx, "a@b.com", "erased@example.invalid")
	s.Require().NoError(err)
	s.Equal(int64(2), n)

	s.False(s.mini.Exists(lockoutKey("a@b.com", "1.1.1.1")))
	merged, _ := s.storage.RecentFailures(s.ctx, "erased@example.invalid", model.ErasedIPAddress)
	s.Len(merged, 2)
	other, _ := s.storage.RecentFailures(s.ctx, "other@b.com", "1.1.1.1")
	s.Len(other, 1)
}

func (s *StorageSuite) TestLockoutPatternEscapesGlob() {
	s.Equal(`playeracct:lockout:a\*b@c.com:*`, lockoutPattern("a*b@c.com"))
}
