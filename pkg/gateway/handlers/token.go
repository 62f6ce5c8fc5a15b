// Package handlers holds the gateway's HTTP endpoint implementations.
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prepvoice/prepvoice/pkg/core/realtime"
	"github.com/prepvoice/prepvoice/pkg/gateway/apierror"
	"github.com/prepvoice/prepvoice/pkg/gateway/config"
	"github.com/prepvoice/prepvoice/pkg/gateway/metrics"
	"github.com/prepvoice/prepvoice/pkg/gateway/mw"
	"github.com/prepvoice/prepvoice/pkg/gateway/store"
)

// QuestionSource supplies the question bank used to script an interview.
// *store.Store satisfies it; it is an interface so the handler works
// without a database.
type QuestionSource interface {
	ListQuestions(ctx context.Context, category string) ([]store.Question, error)
}

// TokenHandler mints an ephemeral realtime credential for one interview.
// The gateway holds the long-lived upstream API key; clients only ever see
// the short-lived client secret.
type TokenHandler struct {
	Config    config.Config
	Client    *http.Client
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	Questions QuestionSource
}

type tokenRequest struct {
	// Category scopes the question script; empty means the whole bank.
	Category string `json:"category,omitempty"`

	// Resume is optional background text the interviewer tailors
	// questions to.
	Resume string `json:"resume,omitempty"`
}

// Upstream client secret response. Only the fields we forward.
type clientSecretResponse struct {
	Value     string `json:"value"`
	ExpiresAt int64  `json:"expires_at"`
}

func (h *TokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID, _ := mw.RequestIDFrom(r.Context())

	var req tokenRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, h.Config.MaxBodyBytes))
	if err != nil {
		apierror.Write(w, apierror.BadRequest("unreadable request body"), requestID)
		return
	}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			apierror.Write(w, apierror.BadRequest("invalid JSON body"), requestID)
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Config.TokenRequestTimeout)
	defer cancel()

	instructions, err := h.buildInstructions(ctx, req)
	if err != nil {
		h.Metrics.TokenMintFailures.Inc()
		apierror.Write(w, err, requestID)
		return
	}

	secret, err := h.mint(ctx, instructions)
	if err != nil {
		h.Metrics.TokenMintFailures.Inc()
		h.Logger.Error("token mint failed", "error", err, "request_id", requestID)
		apierror.Write(w, err, requestID)
		return
	}
	h.Metrics.TokensMinted.Inc()

	cred := realtime.Credential{
		ClientSecret: secret.Value,
		ExpiresAt:    time.Unix(secret.ExpiresAt, 0).UTC(),
		Model:        h.Config.RealtimeModel,
		BaseURL:      h.Config.RealtimeBaseURL,
		Instructions: instructions,
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(cred)
}

// buildInstructions composes the interviewer persona, the question script,
// and the completion marker contract into one system prompt.
func (h *TokenHandler) buildInstructions(ctx context.Context, req tokenRequest) (string, error) {
	var b strings.Builder
	b.WriteString("You are a professional interviewer running a spoken mock interview. ")
	b.WriteString("Ask one question at a time, listen to the full answer, and probe with short follow-ups before moving on. ")
	b.WriteString("Keep your own turns brief.\n")

	if h.Questions != nil {
		questions, err := h.Questions.ListQuestions(ctx, req.Category)
		if err != nil {
			return "", fmt.Errorf("load questions: %w", err)
		}
		if len(questions) > 0 {
			b.WriteString("\nWork through these questions in order:\n")
			for i, q := range questions {
				fmt.Fprintf(&b, "%d. %s\n", i+1, q.Prompt)
			}
		}
	}

	if resume := strings.TrimSpace(req.Resume); resume != "" {
		b.WriteString("\nThe candidate's background, for tailoring follow-ups:\n")
		b.WriteString(resume)
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\nWhen every question has been covered, thank the candidate and end your final message with the exact phrase %s.\n", realtime.Sentinel)
	return b.String(), nil
}

// mint exchanges the gateway's API key for a short-lived client secret.
func (h *TokenHandler) mint(ctx context.Context, instructions string) (clientSecretResponse, error) {
	payload := map[string]any{
		"session": map[string]any{
			"type":         "realtime",
			"model":        h.Config.RealtimeModel,
			"instructions": instructions,
			"audio": map[string]any{
				"output": map[string]any{"voice": h.Config.RealtimeVoice},
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return clientSecretResponse{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.Config.RealtimeTokenURL, bytes.NewReader(body))
	if err != nil {
		return clientSecretResponse{}, err
	}
	req.Header.Set("Authorization", "Bearer "+h.Config.RealtimeAPIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.Client.Do(req)
	if err != nil {
		return clientSecretResponse{}, fmt.Errorf("upstream request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return clientSecretResponse{}, fmt.Errorf("read upstream response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return clientSecretResponse{}, &apierror.HTTPError{
			Status:  http.StatusBadGateway,
			Type:    "upstream_error",
			Message: fmt.Sprintf("token endpoint returned %d", resp.StatusCode),
		}
	}

	var secret clientSecretResponse
	if err := json.Unmarshal(raw, &secret); err != nil {
		return clientSecretResponse{}, fmt.Errorf("decode upstream response: %w", err)
	}
	if secret.Value == "" {
		return clientSecretResponse{}, fmt.Errorf("upstream response missing client secret")
	}
	return secret, nil
}
