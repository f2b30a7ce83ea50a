package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestRequireAdminToken(t *testing.T) {
	h := RequireAdminToken("admin-token-0123456789")(okHandler)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid token", "Bearer admin-token-0123456789", http.StatusOK},
		{"lower case scheme", "bearer admin-token-0123456789", http.StatusOK},
		{"wrong token", "Bearer nope", http.StatusUnauthorized},
		{"missing header", "", http.StatusUnauthorized},
		{"basic auth", "Basic YWRtaW46YWRtaW4=", http.StatusUnauthorized},
		{"empty bearer", "Bearer ", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/admin/settings", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rec.Code)
			}
			if tt.want == http.StatusUnauthorized && rec.Header().Get("Content-Type") != "application/json" {
				t.Errorf("expected JSON error, got %q", rec.Header().Get("Content-Type"))
			}
		})
	}
}

func TestRequireAdminTokenRejectsEverythingWhenUnset(t *testing.T) {
	h := RequireAdminToken("")(okHandler)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer ")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SecurityHeaders(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	for _, k := range []string{"Strict-Transport-Security", "X-Content-Type-Options", "X-Frame-Options", "Cache-Control"} {
		if rec.Header().Get(k) == "" {
			t.Errorf("expected %s header to be set", k)
		}
	}
}

func TestRateLimitPerClient(t *testing.T) {
	h := RateLimit(rate.Every(time.Hour), 2)(okHandler)

	send := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/settings", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	// Different source ports of one host share a bucket.
	if got := send("192.0.2.1:1000"); got != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", got)
	}
	if got := send("192.0.2.1:1001"); got != http.StatusOK {
		t.Fatalf("second request: expected 200, got %d", got)
	}
	if got := send("192.0.2.1:1002"); got != http.StatusTooManyRequests {
		t.Fatalf("third request: expected 429, got %d", got)
	}
	if got := send("198.51.100.7:1000"); got != http.StatusOK {
		t.Fatalf("other client: expected 200, got %d", got)
	}
}

func TestIPLimiterEvictsIdleClients(t *testing.T) {
	il := newIPLimiter(rate.Every(time.Hour), 1)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	il.now = func() time.Time { return now }

	il.get("192.0.2.1")
	now = now.Add(2 * idleLimiterTTL)
	il.get("198.51.100.7")

	if _, ok := il.limiters["192.0.2.1"]; ok {
		t.Errorf("expected idle limiter to be evicted")
	}
	if len(il.limiters) != 1 {
		t.Errorf("expected 1 limiter, got %d", len(il.limiters))
	}
}
