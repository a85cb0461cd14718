package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/playeraccounts/internal/services/outbound"
	"github.com/mcoot/playeraccounts/internal/testutil"
)

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
	closed   bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

type NotifierSuite struct {
	suite.Suite
	ctx     context.Context
	expires time.Time
}

func TestNotifierSuite(t *testing.T) {
	suite.Run(t, new(NotifierSuite))
}

func (s *NotifierSuite) SetupTest() {
	s.ctx = context.Background()
	s.expires = time.Date(2024, 1, 1, 12, 15, 0, 0, time.UTC)
}

func (s *NotifierSuite) TestHTTPSenderPostsToKindPath() {
	var paths []string
	var bodies []Message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.Equal("Bearer admin", r.Header.Get("Authorization"))
		var msg Message
		s.Require().NoError(json.NewDecoder(r.Body).Decode(&msg))
		paths = append(paths, r.URL.Path)
		bodies = append(bodies, msg)
	}))
	defer srv.Close()

	client := outbound.New(outbound.DefaultConfig(), testutil.NopLogger())
	svc := New(NewHTTPSender(client, HTTPConfig{BaseURL: srv.URL, AdminToken: "admin"}))

	s.Require().NoError(svc.SendConfirmation(s.ctx, "a@b.com", "p1", "123456", s.expires))
	s.Require().NoError(svc.SendWelcome(s.ctx, "a@b.com"))
	s.Require().NoError(svc.SendTwoFactor(s.ctx, "a@b.com", "987", s.expires))
	s.Require().NoError(svc.SendReset(s.ctx, "a@b.com", "p1", "654", s.expires))
	s.Require().NoError(svc.SendLoginNotification(s.ctx, "a@b.com", "ios"))

	s.Equal([]string{
		"/dmz/player/account/confirmation",
		"/dmz/player/account/welcome",
		"/dmz/player/account/2fa",
		"/dmz/player/account/reset",
		"/dmz/player/account/notification",
	}, paths)
	s.Equal("123456", bodies[0].Code)
	s.Equal(s.expires.Unix(), bodies[0].Expiration)
	s.Equal("ios", bodies[4].Device)
}

func (s *NotifierSuite) TestHTTPSenderSurfacesRejection() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client := outbound.New(outbound.DefaultConfig(), testutil.NopLogger())
	svc := New(NewHTTPSender(client, HTTPConfig{BaseURL: srv.URL}))

	err := svc.SendWelcome(s.ctx, "a@b.com")
	var statusErr *outbound.StatusError
	s.Require().ErrorAs(err, &statusErr)
	s.Equal(http.StatusBadRequest, statusErr.StatusCode)
}

func (s *NotifierSuite) TestKafkaSenderKeysByEmail() {
	writer := &fakeWriter{}
	sender := &KafkaSender{writer: writer, topic: "player-mail"}
	svc := New(sender)

	s.Require().NoError(svc.SendReset(s.ctx, "a@b.com", "p1", "654", s.expires))

	s.Require().Len(writer.messages, 1)
	m := writer.messages[0]
	s.Equal("player-mail", m.Topic)
	s.Equal("a@b.com", string(m.Key))
	s.Equal("reset", string(m.Headers[0].Value))

	var msg Message
	s.Require().NoError(json.Unmarshal(m.Value, &msg))
	s.Equal(KindReset, msg.Kind)
	s.Equal("654", msg.Code)

	s.Require().NoError(sender.Close())
	s.True(writer.closed)
}

func (s *NotifierSuite) TestKafkaSenderWrapsWriteFailure() {
	writer := &fakeWriter{err: errors.New("broker down")}
	svc := New(&KafkaSender{writer: writer, topic: "t"})

	err := svc.SendWelcome(s.ctx, "a@b.com")
	s.ErrorContains(err, "broker down")
	s.ErrorContains(err, "welcome")
}

func (s *NotifierSuite) TestKafkaSenderRequiresBrokersAndTopic() {
	_, err := NewKafkaSender(nil, "t")
	s.Error(err)
	_, err = NewKafkaSender([]string{"localhost:9092"}, "")
	s.Error(err)
}

func (s *NotifierSuite) TestLogSenderWritesCode() {
	logger, logs := testutil.CaptureLogger()
	svc := New(NewLogSender(logger))

	s.Require().NoError(svc.SendTwoFactor(s.ctx, "a@b.com", "111222", s.expires))
	s.Contains(logs.String(), `"code":"111222"`)
	s.Contains(logs.String(), `"kind":"2fa"`)
}

func (s *NotifierSuite) TestMissingEmailIsRejected() {
	writer := &fakeWriter{}
	svc := New(&KafkaSender{writer: writer, topic: "t"})

	s.Error(svc.SendWelcome(s.ctx, ""))
	s.Empty(writer.messages)
}
