package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/you/crossfeed/internal/config"
	"github.com/you/crossfeed/internal/rawlog"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store, err := rawlog.Open(filepath.Join(t.TempDir(), "raw.db"))
	if err != nil {
		t.Fatalf("open rawlog: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if err := store.Write("tiktok", "chat", map[string]any{"comment": "hi"}); err != nil {
		t.Fatalf("seed rawlog: %v", err)
	}

	cfg := config.Normalize(map[string]any{
		"obs":    map[string]any{"enabled": true, "password": "hunter2"},
		"twitch": map[string]any{"clientId": "secret-id"},
	})
	return New(Options{
		Addr:   "127.0.0.1:0",
		Build:  BuildInfo{Version: "test"},
		Config: cfg,
		Raw:    store,
	})
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	rec := get(t, newTestServer(t), "/healthz")
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz = %d %q", rec.Code, rec.Body.String())
	}
}

func TestConfigEndpointRedactsSecrets(t *testing.T) {
	rec := get(t, newTestServer(t), "/api/config")
	if rec.Code != http.StatusOK {
		t.Fatalf("config endpoint status %d", rec.Code)
	}
	body := rec.Body.String()
	if strings.Contains(body, "hunter2") || strings.Contains(body, "secret-id") {
		t.Fatalf("secrets leaked through /api/config: %s", body)
	}
	if !strings.Contains(body, "***REDACTED***") {
		t.Fatalf("redaction marker missing: %s", body)
	}
}

func TestRawEndpoint(t *testing.T) {
	rec := get(t, newTestServer(t), "/api/raw?platform=tiktok&limit=10")
	if rec.Code != http.StatusOK {
		t.Fatalf("raw endpoint status %d", rec.Code)
	}
	var entries []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("raw response not JSON: %v", err)
	}
	if len(entries) != 1 || entries[0]["platform"] != "tiktok" {
		t.Fatalf("unexpected raw listing: %v", entries)
	}
}

func TestInfoEndpoint(t *testing.T) {
	rec := get(t, newTestServer(t), "/api/info")
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("info response not JSON: %v", err)
	}
	if resp["version"] != "test" || resp["go"] == "" {
		t.Fatalf("info response wrong: %v", resp)
	}
}

func TestRateLimiter(t *testing.T) {
	srv := newTestServer(t)
	srv.limiter = newIPRateLimiter(1, 1)

	first := get(t, srv, "/healthz")
	second := get(t, srv, "/healthz")
	if first.Code != http.StatusOK {
		t.Fatalf("first request should pass: %d", first.Code)
	}
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second request should be limited: %d", second.Code)
	}
}

func TestMetricsEndpointServes(t *testing.T) {
	rec := get(t, newTestServer(t), "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status %d", rec.Code)
	}
	srv := newTestServer(t)
	get(t, srv, "/healthz")
	rec = get(t, srv, "/metrics")
	if !strings.Contains(rec.Body.String(), "crossfeed_http_requests_total") {
		t.Fatalf("request counter missing from scrape")
	}
}
