package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prepvoice/prepvoice/pkg/gateway/config"
)

func testConfig() config.Config {
	return config.Config{
		Addr:                ":0",
		APIKeys:             map[string]struct{}{},
		CORSAllowedOrigins:  map[string]struct{}{},
		RealtimeAPIKey:      "sk-test",
		RealtimeModel:       "gpt-realtime",
		RealtimeBaseURL:     "https://example.test/v1/realtime/calls",
		RealtimeTokenURL:    "https://example.test/v1/realtime/client_secrets",
		RealtimeVoice:       "alloy",
		TokenRequestTimeout: 5 * time.Second,
		SummaryTimeout:      5 * time.Second,
		LiveWriteTimeout:    time.Second,
		LivePingInterval:    time.Second,
		LiveMaxObserverQueue: 8,
		LiveMaxSnapshotBytes: 1 << 16,
		LiveSessionTTL:       time.Minute,
		MaxBodyBytes:         1 << 20,
	}
}

func TestHealthz(t *testing.T) {
	s := New(testConfig(), Options{Logger: slog.New(slog.DiscardHandler)})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestReadyzReportsAuthAndStore(t *testing.T) {
	s := New(testConfig(), Options{Logger: slog.New(slog.DiscardHandler)})

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		OK           bool `json:"ok"`
		AuthEnabled  bool `json:"auth_enabled"`
		StoreEnabled bool `json:"store_enabled"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.OK || resp.AuthEnabled || resp.StoreEnabled {
		t.Errorf("readyz = %+v", resp)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := New(testConfig(), Options{Logger: slog.New(slog.DiscardHandler)})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "prepvoice_tokens_minted_total") {
		t.Error("metrics output missing gateway instruments")
	}
}

func TestAuthRejectsAPIWithoutKey(t *testing.T) {
	cfg := testConfig()
	cfg.APIKeys = map[string]struct{}{"secret-key": {}}
	s := New(cfg, Options{Logger: slog.New(slog.DiscardHandler)})

	req := httptest.NewRequest(http.MethodPost, "/v1/summary", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	// Probes stay open.
	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rec.Code)
	}
}

func TestStoreEndpointsUnavailableWithoutDatabase(t *testing.T) {
	s := New(testConfig(), Options{Logger: slog.New(slog.DiscardHandler)})

	req := httptest.NewRequest(http.MethodGet, "/v1/questions", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestUnknownRouteIs404(t *testing.T) {
	s := New(testConfig(), Options{Logger: slog.New(slog.DiscardHandler)})

	req := httptest.NewRequest(http.MethodGet, "/v1/nope", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestRequestIDHeaderSet(t *testing.T) {
	s := New(testConfig(), Options{Logger: slog.New(slog.DiscardHandler)})

	req := httptest.NewRequest(http.MethodPost, "/v1/summary", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}
