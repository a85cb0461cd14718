package outbound

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/playeraccounts/internal/testutil"
)

type ClientSuite struct {
	suite.Suite
	calls  atomic.Int32
	client *Client
	ctx    context.Context
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}

func (s *ClientSuite) SetupTest() {
	s.calls.Store(0)
	cfg := DefaultConfig()
	cfg.BaseDelay = time.Millisecond
	cfg.MaxDelay = 5 * time.Millisecond
	s.client = New(cfg, testutil.NopLogger())
	s.ctx = context.Background()
}

func (s *ClientSuite) server(handler func(w http.ResponseWriter, r *http.Request)) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.calls.Add(1)
		handler(w, r)
	}))
	s.T().Cleanup(srv.Close)
	return srv
}

func (s *ClientSuite) TestSuccessDecodesBody() {
	srv := s.server(func(w http.ResponseWriter, r *http.Request) {
		s.Equal("Bearer abc", r.Header.Get("Authorization"))
		var body map[string]string
		s.Require().NoError(json.NewDecoder(r.Body).Decode(&body))
		s.Equal("value", body["key"])
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	var out struct {
		OK bool `json:"ok"`
	}
	err := s.client.Do(s.ctx, Request{
		Method:  http.MethodPost,
		URL:     srv.URL,
		Headers: map[string]string{"Authorization": "Bearer abc"},
		Body:    map[string]string{"key": "value"},
	}, &out)
	s.Require().NoError(err)
	s.True(out.OK)
	s.Equal(int32(1), s.calls.Load())
}

func (s *ClientSuite) TestServerErrorsAreRetried() {
	srv := s.server(func(w http.ResponseWriter, r *http.Request) {
		if s.calls.Load() < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	err := s.client.Do(s.ctx, Request{Method: http.MethodGet, URL: srv.URL}, nil)
	s.Require().NoError(err)
	s.Equal(int32(3), s.calls.Load())
}

func (s *ClientSuite) TestRetriesAreBounded() {
	srv := s.server(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	err := s.client.Do(s.ctx, Request{Method: http.MethodGet, URL: srv.URL}, nil)
	var statusErr *StatusError
	s.Require().ErrorAs(err, &statusErr)
	s.Equal(http.StatusServiceUnavailable, statusErr.StatusCode)
	s.Equal(int32(7), s.calls.Load())
}

func (s *ClientSuite) TestClientErrorsAreNotRetried() {
	srv := s.server(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("banned"))
	})

	err := s.client.Do(s.ctx, Request{Method: http.MethodGet, URL: srv.URL}, nil)
	var statusErr *StatusError
	s.Require().ErrorAs(err, &statusErr)
	s.Equal(http.StatusForbidden, statusErr.StatusCode)
	s.Equal("banned", string(statusErr.Body))
	s.Equal(int32(1), s.calls.Load())
}

func (s *ClientSuite) TestCancelledContextStops() {
	srv := s.server(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	err := s.client.Do(ctx, Request{Method: http.MethodGet, URL: srv.URL}, nil)
	s.Error(err)
	s.LessOrEqual(s.calls.Load(), int32(1))
}

func (s *ClientSuite) TestRawResultReceivesBody() {
	srv := s.server(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("plain-token"))
	})

	var raw []byte
	s.Require().NoError(s.client.Do(s.ctx, Request{Method: http.MethodPost, URL: srv.URL}, &raw))
	s.Equal("plain-token", string(raw))
}
