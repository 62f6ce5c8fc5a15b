package realtime

import (
	"log/slog"
	"time"
)

// Credential is the short-lived, single-session token bundle obtained from
// the gateway's token endpoint. It is never persisted and is discarded on
// teardown.
type Credential struct {
	// ClientSecret is the bearer token for the signaling exchange.
	ClientSecret string `json:"clientSecret"`

	// ExpiresAt is advisory; the remote endpoint enforces expiry.
	ExpiresAt time.Time `json:"expiresAt"`

	// Model identifies the remote conversational model.
	Model string `json:"model"`

	// BaseURL is the signaling endpoint.
	BaseURL string `json:"baseUrl"`

	// Instructions is the interviewer persona and question script sent as
	// the remote system prompt.
	Instructions string `json:"instructions"`
}

// Config holds session tuning knobs.
type Config struct {
	// GatherTimeout bounds ICE candidate gathering. Gathering normally
	// completes well within a second; exceeding this fails the session
	// with ErrNegotiationTimeout instead of hanging.
	GatherTimeout time.Duration

	// SignalTimeout bounds the SDP offer/answer HTTP exchange.
	SignalTimeout time.Duration

	// OpeningPrompt is the synthetic user message injected once the event
	// transport opens.
	OpeningPrompt string

	// Logger receives session-level diagnostics. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() Config {
	return Config{
		GatherTimeout: 5 * time.Second,
		SignalTimeout: 15 * time.Second,
		OpeningPrompt: "Begin the interview now.",
	}
}

func (c Config) withDefaults() Config {
	if c.GatherTimeout <= 0 {
		c.GatherTimeout = 5 * time.Second
	}
	if c.SignalTimeout <= 0 {
		c.SignalTimeout = 15 * time.Second
	}
	if c.OpeningPrompt == "" {
		c.OpeningPrompt = "Begin the interview now."
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}
