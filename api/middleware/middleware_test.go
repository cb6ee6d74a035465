package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/anvisa/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(identityKey))
	})
	return r
}

func do(r http.Handler, method string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/ping", nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth(t *testing.T) {
	r := newEngine(Auth([]string{"k1", "", "k2"}))

	tests := []struct {
		name   string
		header map[string]string
		want   int
	}{
		{"missing", nil, http.StatusUnauthorized},
		{"invalid", map[string]string{"X-API-Key": "nope"}, http.StatusUnauthorized},
		{"x-api-key", map[string]string{"X-API-Key": "k1"}, http.StatusOK},
		{"bearer", map[string]string{"Authorization": "Bearer k2"}, http.StatusOK},
		{"other scheme", map[string]string{"Authorization": "Basic k2"}, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := do(r, http.MethodGet, tt.header); w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestAuth_StoresIdentity(t *testing.T) {
	r := newEngine(Auth([]string{"k1"}))
	w := do(r, http.MethodGet, map[string]string{"X-API-Key": "k1"})
	if w.Body.String() != "k1" {
		t.Errorf("identity = %q, want %q", w.Body.String(), "k1")
	}
}

func TestAuth_NoKeysIsOpen(t *testing.T) {
	r := newEngine(Auth([]string{""}))
	if w := do(r, http.MethodGet, nil); w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestRateLimit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := newEngine(Auth([]string{"a", "b"}), RateLimit(ctx, config.RateLimitConfig{RequestsPerSecond: 0.01, Burst: 2}))

	for i := 0; i < 2; i++ {
		if w := do(r, http.MethodGet, map[string]string{"X-API-Key": "a"}); w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want %d", i, w.Code, http.StatusOK)
		}
	}

	w := do(r, http.MethodGet, map[string]string{"X-API-Key": "a"})
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header missing")
	}

	// Buckets are per identity.
	if w := do(r, http.MethodGet, map[string]string{"X-API-Key": "b"}); w.Code != http.StatusOK {
		t.Errorf("other key: status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestLimiterStore_Evict(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := newLimiterStore(config.RateLimitConfig{RequestsPerSecond: 1, Burst: 1})
	s.now = func() time.Time { return now }

	s.get("old")
	now = now.Add(2 * time.Hour)
	s.get("new")

	s.evict(now.Add(-limiterIdleTTL))
	if s.len() != 1 {
		t.Fatalf("len = %d, want 1", s.len())
	}
	if _, ok := s.limiters["new"]; !ok {
		t.Error("recent bucket was evicted")
	}
}

func TestCORS(t *testing.T) {
	r := newEngine(CORS())

	w := do(r, http.MethodOptions, map[string]string{
		"Origin":                         "https://example.org",
		"Access-Control-Request-Headers": "Content-Type",
	})
	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if got := w.Header().Get("Access-Control-Allow-Headers"); got != "Content-Type" {
		t.Errorf("Allow-Headers = %q, want %q", got, "Content-Type")
	}

	w = do(r, http.MethodGet, nil)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q, want *", got)
	}
}
