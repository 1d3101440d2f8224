// Copyright 2025 Takhin Data, Inc.

package adminapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamcap/throttle/pkg/throttle"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	group, err := throttle.NewGroup(throttle.Config{
		TicksPerSecond:             10,
		MaxBufferSize:              1024 * 1024,
		ThroughputSampleIntervalMs: 1000,
		ThroughputSampleSize:       10,
	})
	require.NoError(t, err)
	t.Cleanup(group.Destroy)

	cfg := Config{
		Addr:           ":0",
		GroupID:        "default",
		OperatorSecret: "test-secret",
		JWTKey:         "test-jwt-key",
		TokenTTL:       time.Hour,
		AllowedOrigins: []string{"*"},
	}
	s, err := NewServer(cfg, group, nil, nil, nil)
	require.NoError(t, err)
	return s
}

func login(t *testing.T, s *Server) string {
	t.Helper()
	body, _ := json.Marshal(loginRequest{Secret: "test-secret"})
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", bytes.NewReader(body))
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp loginResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp.Token
}

func TestServer_HealthzIsPublic(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/healthz", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServer_Login(t *testing.T) {
	s := newTestServer(t)
	token := login(t, s)
	assert.NotEmpty(t, token)
}

func TestServer_LoginInvalidSecret(t *testing.T) {
	s := newTestServer(t)
	body, _ := json.Marshal(loginRequest{Secret: "wrong-secret"})
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", bytes.NewReader(body))
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestServer_StatsRequiresAuth(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/groups/default/stats", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestServer_StatsUnknownGroup(t *testing.T) {
	s := newTestServer(t)
	token := login(t, s)

	req := httptest.NewRequest(http.MethodGet, "/v1/groups/other/stats", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_StatsAndConfigure(t *testing.T) {
	s := newTestServer(t)
	token := login(t, s)

	req := httptest.NewRequest(http.MethodGet, "/v1/groups/default/stats", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var stats groupStats
	require.NoError(t, json.NewDecoder(w.Body).Decode(&stats))
	assert.Equal(t, "default", stats.GroupID)
	assert.False(t, stats.Throttled)

	rate := 65536
	body, _ := json.Marshal(configureRequest{BytesPerSecond: &rate})
	req = httptest.NewRequest(http.MethodPatch, "/v1/groups/default/config", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, json.NewDecoder(w.Body).Decode(&stats))
	assert.Equal(t, rate, stats.BytesPerSecond)
}

func TestServer_HandleProfile(t *testing.T) {
	s := newTestServer(t)
	token := login(t, s)

	body, _ := json.Marshal(profileRequest{Type: "goroutine", DurationMs: 10})
	req := httptest.NewRequest(http.MethodPost, "/v1/debug/profile", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp profileResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.NotEmpty(t, resp.Path)
	assert.NotNil(t, resp.Stats)
}

func TestLoginLimiter_Allow(t *testing.T) {
	lim := newLoginLimiter()
	host := "10.0.0.1:4000"

	allowed := 0
	for i := 0; i < 10; i++ {
		if lim.allow(host) {
			allowed++
		}
	}
	assert.Equal(t, lim.burst, allowed, "only the configured burst should pass before throttling kicks in")

	other := "10.0.0.2:4000"
	assert.True(t, lim.allow(other), fmt.Sprintf("a different source (%s) must have its own bucket", other))
}
