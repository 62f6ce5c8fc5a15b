// Package summarize produces the post-interview coaching summary from a
// finished transcript.
package summarize

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/prepvoice/prepvoice/pkg/core/realtime"
)

const systemPrompt = `You are an interview coach. You are given the full
transcript of a mock interview. Write a concise coaching summary for the
candidate: overall impression, two or three concrete strengths, two or three
concrete areas to improve with examples quoted from their answers, and one
piece of advice for their next interview. Address the candidate directly.`

// Summarizer generates coaching summaries with the Gemini API. It
// implements realtime.Summarizer.
type Summarizer struct {
	client *genai.Client
	model  string
}

// New builds a Summarizer for the given API key and model.
func New(ctx context.Context, apiKey, model string) (*Summarizer, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("init genai client: %w", err)
	}
	return &Summarizer{client: client, model: model}, nil
}

// Summarize renders the transcript as a prompt and returns the model's
// coaching summary.
func (s *Summarizer) Summarize(ctx context.Context, turns []realtime.Turn) (string, error) {
	if len(turns) == 0 {
		return "", fmt.Errorf("empty transcript")
	}

	resp, err := s.client.Models.GenerateContent(ctx, s.model,
		genai.Text(renderTranscript(turns)),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		},
	)
	if err != nil {
		return "", fmt.Errorf("generate summary: %w", err)
	}

	summary := strings.TrimSpace(resp.Text())
	if summary == "" {
		return "", fmt.Errorf("model returned an empty summary")
	}
	return summary, nil
}

// renderTranscript flattens turns into labelled lines. The interviewer is
// the assistant role; the candidate is the user.
func renderTranscript(turns []realtime.Turn) string {
	var b strings.Builder
	for _, turn := range turns {
		label := "Candidate"
		if turn.Role == string(realtime.RoleAssistant) {
			label = "Interviewer"
		}
		fmt.Fprintf(&b, "%s: %s\n", label, turn.Content)
	}
	return b.String()
}
