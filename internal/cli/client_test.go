package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientSendsAdminHeadersOnlyToAdminRoutes(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]http.Header{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		seen[r.URL.Path] = r.Header.Clone()
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "tok")
	c.SetAdmin("key", "ops")

	require.NoError(t, c.Get("/api/v1/player/account/refresh", nil))
	require.NoError(t, c.Patch("/api/v1/admin/account/link", map[string]string{}, nil))

	mu.Lock()
	defer mu.Unlock()
	player := seen["/api/v1/player/account/refresh"]
	assert.Equal(t, "Bearer tok", player.Get("Authorization"))
	assert.Empty(t, player.Get(adminKeyHeader))

	admin := seen["/api/v1/admin/account/link"]
	assert.Equal(t, "key", admin.Get(adminKeyHeader))
	assert.Equal(t, "ops", admin.Get(adminActorHeader))
	assert.Equal(t, "application/json", admin.Get("Content-Type"))
}

func TestClientResponseError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"LOGIN_FAILED","message":"login failed"},"error_code":"emailNotLinked"}`))
	}))
	defer srv.Close()

	err := NewClient(srv.URL, "").Post("/api/v1/player/login", map[string]any{}, nil)
	require.Error(t, err)

	var respErr *ResponseError
	require.True(t, errors.As(err, &respErr))
	assert.Equal(t, http.StatusBadRequest, respErr.StatusCode)
	assert.Equal(t, "emailNotLinked", respErr.ErrorCode)
	assert.Equal(t, "LOGIN_FAILED", respErr.API.Code)
	assert.Equal(t, "HTTP 400: login failed (LOGIN_FAILED) [emailNotLinked]", err.Error())
}

func TestClientResponseErrorWithoutJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, "").Get("/api/v1/health", nil)

	var respErr *ResponseError
	require.True(t, errors.As(err, &respErr))
	assert.Equal(t, http.StatusBadGateway, respErr.StatusCode)
	assert.Contains(t, err.Error(), "upstream down")
}

func TestParseConflict(t *testing.T) {
	body, err := json.Marshal(map[string]any{
		"error_code": "verificationRequired",
		"player":     map[string]any{"id": "p2", "token": "t2"},
		"conflicts":  []map[string]any{{"id": "p1", "screenname": "Alice", "discriminator": 7}},
	})
	require.NoError(t, err)

	conflict, err := parseConflict(&ResponseError{StatusCode: http.StatusBadRequest, Body: body})
	require.NoError(t, err)
	assert.Equal(t, "p2", conflict.Player.ID)
	assert.Equal(t, "t2", conflict.Player.Token)
	require.Len(t, conflict.Conflicts, 1)
	assert.Equal(t, "Alice#0007", conflict.Conflicts[0].DisplayName())
}

func TestOutputText(t *testing.T) {
	var buf bytes.Buffer
	out := &Output{format: "text", w: &buf}

	disc := 42
	out.Print(Player{
		ID:            "p1",
		Screenname:    "Alice",
		Discriminator: &disc,
		Device:        &Device{InstallID: "D1"},
		Google:        &SSO{ID: "g"},
		Plarium:       &SSO{ID: "pl"},
		Rumble:        &Rumble{Email: "a@b.com", Status: "confirmed"},
	})

	assert.Equal(t, "Player: Alice#0042 (p1)\n"+
		"Device: D1\n"+
		"Linked: google, plarium\n"+
		"Email: a@b.com [confirmed]\n", buf.String())
}

func TestOutputJSON(t *testing.T) {
	var buf bytes.Buffer
	out := &Output{format: "json", w: &buf}

	out.Print(Redirect{URL: "https://example.test/x"})

	var got Redirect
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "https://example.test/x", got.URL)
}

func TestConfigTokenRoundTrip(t *testing.T) {
	c := &Config{TokenFile: filepath.Join(t.TempDir(), "nested", "token")}

	require.NoError(t, c.LoadToken())
	assert.Empty(t, c.Token)

	require.NoError(t, c.SaveToken("abc"))

	loaded := &Config{TokenFile: c.TokenFile}
	require.NoError(t, loaded.LoadToken())
	assert.Equal(t, "abc", loaded.Token)
}
