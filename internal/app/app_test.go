package app

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mx-space/wiki/internal/config"
	pkgredis "github.com/mx-space/wiki/internal/pkg/redis"
	"github.com/mx-space/wiki/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	cfg := &config.AppConfig{
		Port:      2333,
		Env:       "development",
		Storage:   config.StorageConfig{Buckets: config.StorageBuckets{Images: "wiki_images", Avatars: "avatars"}},
		Wiki:      config.WikiConfig{DefaultFolder: "General", PaletteLimit: 10, HistoryLimit: 10},
		JWTSecret: "test-secret",
	}
	a := build(nil, cfg, testutil.DB(t), pkgredis.NewMemory(), nil)
	t.Cleanup(func() {
		a.cancel()
		a.sched.Wait()
	})
	return a
}

func call(a *App, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var rd *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.Router().ServeHTTP(w, req)
	return w
}

func TestEndToEnd(t *testing.T) {
	a := newTestApp(t)

	w := call(a, http.MethodPost, "/api/auth/register", "", map[string]string{"username": "alice", "password": "secret42"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var reg struct {
		Token string `json:"token"`
		User  struct {
			Role string `json:"role"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reg))
	assert.Equal(t, "admin", reg.User.Role)

	w = call(a, http.MethodPost, "/api/posts", reg.Token, map[string]interface{}{
		"title":   "Réseaux Linux",
		"folder":  "Dev/Ops",
		"content": "Voir [[Docker]].",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = call(a, http.MethodGet, "/api/wiki/reseaux-linux", "", nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = call(a, http.MethodGet, "/api/wiki/tree", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "reseaux-linux")

	assert.Equal(t, http.StatusUnauthorized, call(a, http.MethodGet, "/api/dashboard", "", nil).Code)
	assert.Equal(t, http.StatusOK, call(a, http.MethodGet, "/api/dashboard", reg.Token, nil).Code)

	w = call(a, http.MethodGet, "/api/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = call(a, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "wiki_http_requests_total")
}

func TestAIDisabledWithoutKey(t *testing.T) {
	a := newTestApp(t)
	w := call(a, http.MethodPost, "/api/auth/register", "", map[string]string{"username": "alice", "password": "secret42"})
	var reg struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reg))

	w = call(a, http.MethodPost, "/api/ai/generate", reg.Token, map[string][]string{"titles": {"Docker"}})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code, w.Body.String())
}

func TestCORSOriginPatterns(t *testing.T) {
	cfg := &config.AppConfig{Env: "production", AllowedOrigins: []string{"*.example.com", "localhost:*"}}
	allow := corsConfig(cfg).AllowOriginFunc

	assert.True(t, allow("https://wiki.example.com"))
	assert.True(t, allow("http://localhost:5173"))
	assert.False(t, allow("https://example.org"))

	assert.False(t, allow("http://localhost.evil.test:80"))

	dev := corsConfig(&config.AppConfig{Env: "development", AllowedOrigins: []string{"a.com"}})
	assert.True(t, dev.AllowOriginFunc("https://anything.test"))
}

func TestOriginMatcher(t *testing.T) {
	m := newOriginMatcher([]string{" https://Wiki.Example.com ", "docs.test:8080", "", "*.internal.test", "127.0.0.1:*"})

	for origin, want := range map[string]bool{
		"https://wiki.example.com":  true,
		"https://WIKI.example.com":  true,
		"http://docs.test:8080":     true,
		"http://docs.test:9090":     false,
		"https://a.b.internal.test": true,
		"https://internal.test":     false,
		"http://127.0.0.1:3000":     true,
		"http://127.0.0.10:3000":    false,
		"https://example.com":       false,
		"wiki.example.com":          true,
	} {
		assert.Equal(t, want, m.allows(origin), origin)
	}
}

func TestHumanizeDuration(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want string
	}{
		{"42.7s", "42s"},
		{"3m20s", "3m0s"},
		{"5h12m", "5h0m0s"},
		{"50h", "48h0m0s"},
	} {
		d, err := time.ParseDuration(tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.want, humanizeDuration(d), tc.in)
	}
	assert.True(t, strings.HasPrefix(humanizeDuration(0), "0"))
}
