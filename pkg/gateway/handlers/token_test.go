package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/prepvoice/prepvoice/pkg/core/realtime"
	"github.com/prepvoice/prepvoice/pkg/gateway/config"
	"github.com/prepvoice/prepvoice/pkg/gateway/metrics"
	"github.com/prepvoice/prepvoice/pkg/gateway/store"
)

type fakeQuestions struct {
	category  string
	questions []store.Question
	err       error
}

func (f *fakeQuestions) ListQuestions(ctx context.Context, category string) ([]store.Question, error) {
	f.category = category
	return f.questions, f.err
}

func testConfig() config.Config {
	return config.Config{
		Addr:                ":0",
		RealtimeAPIKey:      "sk-test",
		RealtimeModel:       "gpt-realtime",
		RealtimeVoice:       "alloy",
		TokenRequestTimeout: 5 * time.Second,
		SummaryTimeout:      5 * time.Second,
		MaxBodyBytes:        1 << 20,
	}
}

func newTokenHandler(t *testing.T, upstream http.HandlerFunc, questions QuestionSource) *TokenHandler {
	t.Helper()
	srv := httptest.NewServer(upstream)
	t.Cleanup(srv.Close)

	cfg := testConfig()
	cfg.RealtimeTokenURL = srv.URL
	cfg.RealtimeBaseURL = "https://example.test/v1/realtime/calls"

	return &TokenHandler{
		Config:    cfg,
		Client:    srv.Client(),
		Logger:    slog.New(slog.DiscardHandler),
		Metrics:   metrics.New(prometheus.NewRegistry()),
		Questions: questions,
	}
}

func TestTokenHandlerMintsCredential(t *testing.T) {
	var upstreamBody []byte
	var upstreamAuth string
	upstream := func(w http.ResponseWriter, r *http.Request) {
		upstreamAuth = r.Header.Get("Authorization")
		upstreamBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"value":"ek_123","expires_at":1756000000}`))
	}
	questions := &fakeQuestions{questions: []store.Question{
		{ID: 1, Prompt: "Describe a system you designed."},
		{ID: 2, Prompt: "How do you handle conflicting priorities?"},
	}}
	h := newTokenHandler(t, upstream, questions)

	req := httptest.NewRequest(http.MethodPost, "/v1/realtime/token",
		strings.NewReader(`{"category":"behavioral","resume":"Five years of backend work."}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if upstreamAuth != "Bearer sk-test" {
		t.Errorf("upstream auth = %q", upstreamAuth)
	}
	if questions.category != "behavioral" {
		t.Errorf("question category = %q, want behavioral", questions.category)
	}

	var cred realtime.Credential
	if err := json.Unmarshal(rec.Body.Bytes(), &cred); err != nil {
		t.Fatalf("decode credential: %v", err)
	}
	if cred.ClientSecret != "ek_123" {
		t.Errorf("clientSecret = %q", cred.ClientSecret)
	}
	if cred.Model != "gpt-realtime" {
		t.Errorf("model = %q", cred.Model)
	}
	if cred.BaseURL != "https://example.test/v1/realtime/calls" {
		t.Errorf("baseUrl = %q", cred.BaseURL)
	}
	if !strings.Contains(cred.Instructions, "Describe a system you designed.") {
		t.Error("instructions missing question script")
	}
	if !strings.Contains(cred.Instructions, "Five years of backend work.") {
		t.Error("instructions missing resume text")
	}
	if !strings.Contains(cred.Instructions, realtime.Sentinel) {
		t.Error("instructions missing completion marker contract")
	}

	var payload struct {
		Session struct {
			Model        string `json:"model"`
			Instructions string `json:"instructions"`
		} `json:"session"`
	}
	if err := json.Unmarshal(upstreamBody, &payload); err != nil {
		t.Fatalf("decode upstream payload: %v", err)
	}
	if payload.Session.Model != "gpt-realtime" {
		t.Errorf("upstream model = %q", payload.Session.Model)
	}
	if payload.Session.Instructions != cred.Instructions {
		t.Error("upstream instructions differ from returned credential")
	}
}

func TestTokenHandlerEmptyBody(t *testing.T) {
	upstream := func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"value":"ek_456","expires_at":1756000000}`))
	}
	h := newTokenHandler(t, upstream, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/realtime/token", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestTokenHandlerUpstreamFailure(t *testing.T) {
	upstream := func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"quota exceeded"}}`, http.StatusTooManyRequests)
	}
	h := newTokenHandler(t, upstream, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/realtime/token", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	var envelope struct {
		Error struct {
			Type string `json:"type"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if envelope.Error.Type != "upstream_error" {
		t.Errorf("error type = %q", envelope.Error.Type)
	}
}

func TestTokenHandlerRejectsBadJSON(t *testing.T) {
	h := newTokenHandler(t, func(w http.ResponseWriter, r *http.Request) {}, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/realtime/token", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
