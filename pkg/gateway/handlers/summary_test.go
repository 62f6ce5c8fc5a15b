package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/prepvoice/prepvoice/pkg/core/realtime"
	"github.com/prepvoice/prepvoice/pkg/gateway/metrics"
)

type fakeSummarizer struct {
	turns   []realtime.Turn
	summary string
	err     error
}

func (f *fakeSummarizer) Summarize(ctx context.Context, turns []realtime.Turn) (string, error) {
	f.turns = turns
	return f.summary, f.err
}

func newSummaryHandler(s realtime.Summarizer) *SummaryHandler {
	return &SummaryHandler{
		Config:     testConfig(),
		Summarizer: s,
		Logger:     slog.New(slog.DiscardHandler),
		Metrics:    metrics.New(prometheus.NewRegistry()),
	}
}

func TestSummaryHandler(t *testing.T) {
	fake := &fakeSummarizer{summary: "Strong answers, slow pacing."}
	h := newSummaryHandler(fake)

	body := `{"conversation":[{"role":"user","content":"I led the migration."},{"role":"assistant","content":"Tell me more."}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/summary", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp summaryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Summary != "Strong answers, slow pacing." {
		t.Errorf("summary = %q", resp.Summary)
	}
	if len(fake.turns) != 2 {
		t.Errorf("summarizer saw %d turns, want 2", len(fake.turns))
	}
}

func TestSummaryHandlerEmptyConversation(t *testing.T) {
	h := newSummaryHandler(&fakeSummarizer{})

	req := httptest.NewRequest(http.MethodPost, "/v1/summary", strings.NewReader(`{"conversation":[]}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSummaryHandlerFailure(t *testing.T) {
	h := newSummaryHandler(&fakeSummarizer{err: errors.New("model unavailable")})

	body := `{"conversation":[{"role":"user","content":"hello"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/summary", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestSummaryHandlerDisabled(t *testing.T) {
	h := newSummaryHandler(nil)

	body := `{"conversation":[{"role":"user","content":"hello"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/summary", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}
