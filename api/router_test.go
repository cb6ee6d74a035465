package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/use-agent/anvisa/config"
	"github.com/use-agent/anvisa/models"
)

type stubSearcher struct{}

func (stubSearcher) Search(context.Context, models.Query, models.SearchOptions) (*models.SearchResult, error) {
	return &models.SearchResult{Records: []models.ProductRecord{}, Status: models.StatusComplete}, nil
}

func (stubSearcher) Active() int   { return 0 }
func (stubSearcher) Capacity() int { return 1 }

func testConfig(auth bool) *config.Config {
	cfg := &config.Config{}
	cfg.Server.Mode = "test"
	cfg.Auth = config.AuthConfig{Enabled: auth, APIKeys: []string{"secret"}}
	cfg.RateLimit = config.RateLimitConfig{RequestsPerSecond: 100, Burst: 100}
	return cfg
}

func serve(t *testing.T, auth bool, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	r := NewRouter(ctx, stubSearcher{}, testConfig(auth), time.Now())
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRouter_Routes(t *testing.T) {
	tests := []struct {
		method, path, body string
		want               int
	}{
		{http.MethodGet, "/", "", http.StatusOK},
		{http.MethodGet, "/health", "", http.StatusOK},
		{http.MethodGet, "/api/v1/health", "", http.StatusOK},
		{http.MethodGet, "/metrics", "", http.StatusOK},
		{http.MethodPost, "/api/v1/search", `{"substance":"darolutamide"}`, http.StatusOK},
		{http.MethodPost, "/anvisa/search", `{"substance":"darolutamide"}`, http.StatusOK},
		{http.MethodGet, "/nope", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			if w := serve(t, false, tt.method, tt.path, tt.body, nil); w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestRouter_AuthGuardsSearchOnly(t *testing.T) {
	body := `{"substance":"darolutamide"}`
	if w := serve(t, true, http.MethodPost, "/api/v1/search", body, nil); w.Code != http.StatusUnauthorized {
		t.Errorf("search without key: status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	if w := serve(t, true, http.MethodPost, "/anvisa/search", body, map[string]string{"X-API-Key": "secret"}); w.Code != http.StatusOK {
		t.Errorf("search with key: status = %d, want %d", w.Code, http.StatusOK)
	}
	if w := serve(t, true, http.MethodGet, "/api/v1/health", "", nil); w.Code != http.StatusOK {
		t.Errorf("health: status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestRouter_CORSPreflight(t *testing.T) {
	w := serve(t, false, http.MethodOptions, "/api/v1/search", "", map[string]string{"Origin": "https://example.org"})
	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("Access-Control-Allow-Origin missing")
	}
}
