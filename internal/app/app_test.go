package app

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailhook/internal/config"
)

const adminToken = "admin-token-0123456789"

type receivedHook struct {
	header http.Header
	body   map[string]string
}

type hookReceiver struct {
	mu   sync.Mutex
	hits []receivedHook
}

func (rcv *hookReceiver) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body map[string]string
	_ = json.NewDecoder(r.Body).Decode(&body)
	rcv.mu.Lock()
	rcv.hits = append(rcv.hits, receivedHook{header: r.Header.Clone(), body: body})
	rcv.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (rcv *hookReceiver) all() []receivedHook {
	rcv.mu.Lock()
	defer rcv.mu.Unlock()
	return append([]receivedHook(nil), rcv.hits...)
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	for _, k := range []string{"WEBHOOK_URL", "WEBHOOK_PATTERNS", "WEBHOOK_AUTH_TYPE", "WEBHOOK_AUTH_FIELD", "WEBHOOK_SECURITY_KEY", "WEBHOOK_MATCH_CASE"} {
		t.Setenv(k, "")
	}

	cfg := &config.Config{
		Port:                  "0",
		Env:                   "development",
		DatabaseURL:           filepath.Join(t.TempDir(), "mailhook.db"),
		SettingsEncryptionKey: "0123456789abcdef0123456789abcdef",
		AdminToken:            adminToken,
		AdminRatePerMinute:    600,
		AdminRateBurst:        50,
		LogFile:               filepath.Join(t.TempDir(), "mailhook.log"),
		LogMaxSizeMB:          1,
	}
	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

func do(t *testing.T, srv *httptest.Server, method, path, token, body string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(raw)
}

func TestHealthAndMetrics(t *testing.T) {
	srv := httptest.NewServer(newTestApp(t).routes())
	defer srv.Close()

	resp, body := do(t, srv, http.MethodGet, "/api/health", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, body)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))

	resp, body = do(t, srv, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "mailhook_webhook_dispatch_seconds")
}

func TestAdminRoutesRequireToken(t *testing.T) {
	srv := httptest.NewServer(newTestApp(t).routes())
	defer srv.Close()

	routes := []struct{ method, path string }{
		{http.MethodGet, "/api/admin/settings"},
		{http.MethodPut, "/api/admin/settings"},
		{http.MethodPost, "/api/admin/settings/validate"},
		{http.MethodPost, "/api/admin/settings/test-webhook"},
		{http.MethodPost, "/api/mail/send"},
	}
	for _, rt := range routes {
		resp, _ := do(t, srv, rt.method, rt.path, "wrong-token", "{}")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "%s %s", rt.method, rt.path)
	}

	resp, body := do(t, srv, http.MethodGet, "/admin/settings", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Triggering patterns")
}

func TestMailTriggersWebhook(t *testing.T) {
	rcv := &hookReceiver{}
	hookSrv := httptest.NewServer(rcv)
	defer hookSrv.Close()

	srv := httptest.NewServer(newTestApp(t).routes())
	defer srv.Close()

	settings := `{"webhook_url":"` + hookSrv.URL + `","triggering_patterns":"urgent\n[invalid(","auth_type":"header","auth_field":"X-Key","security_key":"abc"}`
	resp, body := do(t, srv, http.MethodPut, "/api/admin/settings", adminToken, settings)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Contains(t, body, `"line":2`)

	resp, body = do(t, srv, http.MethodGet, "/api/admin/settings", adminToken, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"triggering_patterns":"urgent"`)
	assert.NotContains(t, body, `"abc"`)

	// SMTP is not configured, so the send itself fails; the hook still runs
	// before transmission.
	resp, _ = do(t, srv, http.MethodPost, "/api/mail/send", adminToken, `{"to":["ops@example.org"],"subject":"URGENT: disk full","body":"db-1"}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, _ = do(t, srv, http.MethodPost, "/api/mail/send", adminToken, `{"to":["ops@example.org"],"subject":"weekly report","body":"all fine"}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	hits := rcv.all()
	require.Len(t, hits, 1)
	assert.Equal(t, "abc", hits[0].header.Get("X-Key"))
	assert.Equal(t, "application/json", hits[0].header.Get("Content-Type"))
	assert.Equal(t, map[string]string{"subject": "URGENT: disk full", "body": "db-1"}, hits[0].body)

	resp, body = do(t, srv, http.MethodPost, "/api/admin/settings/test-webhook", adminToken, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.JSONEq(t, `{"status_code":204}`, body)
	assert.Len(t, rcv.all(), 2)
}

func TestStartStopsOnCancel(t *testing.T) {
	a := newTestApp(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- a.Start(ctx) }()
	cancel()

	require.NoError(t, <-done)
}

func TestAdminRateLimit(t *testing.T) {
	a := newTestApp(t)
	a.config.AdminRatePerMinute = 1
	a.config.AdminRateBurst = 2
	srv := httptest.NewServer(a.routes())
	defer srv.Close()

	var codes []int
	for i := 0; i < 3; i++ {
		resp, _ := do(t, srv, http.MethodGet, "/api/admin/settings", "wrong-token", "")
		codes = append(codes, resp.StatusCode)
	}
	assert.Equal(t, []int{http.StatusUnauthorized, http.StatusUnauthorized, http.StatusTooManyRequests}, codes)

	// Health is not throttled.
	resp, _ := do(t, srv, http.MethodGet, "/api/health", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
