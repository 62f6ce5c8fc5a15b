package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the gateway's environment-driven configuration.
type Config struct {
	Addr string

	// APIKeys is the optional static key allowlist; empty disables auth.
	APIKeys map[string]struct{}

	// CORS
	CORSAllowedOrigins map[string]struct{} // empty => disabled

	// DatabaseURL is the postgres connection string for the question bank
	// and interview history store.
	DatabaseURL string

	// Realtime token minting.
	RealtimeAPIKey      string
	RealtimeModel       string
	RealtimeBaseURL     string
	RealtimeTokenURL    string
	RealtimeVoice       string
	TokenRequestTimeout time.Duration

	// Summarizer.
	GeminiAPIKey   string
	SummaryModel   string
	SummaryTimeout time.Duration

	// Live transcript relay.
	LiveWriteTimeout     time.Duration
	LivePingInterval     time.Duration
	LiveMaxObserverQueue int
	LiveMaxSnapshotBytes int64

	// LiveSessionTTL is how long a session with no publisher and no
	// observers is retained before eviction.
	LiveSessionTTL time.Duration

	// Operational defaults.
	ReadHeaderTimeout   time.Duration
	ReadTimeout         time.Duration
	ShutdownGracePeriod time.Duration
	MaxBodyBytes        int64
}

// LoadFromEnv builds a Config from environment variables, falling back to
// production defaults.
func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                 envOr("PREPVOICE_ADDR", ":8080"),
		APIKeys:              make(map[string]struct{}),
		CORSAllowedOrigins:   make(map[string]struct{}),
		DatabaseURL:          os.Getenv("PREPVOICE_DATABASE_URL"),
		RealtimeAPIKey:       os.Getenv("PREPVOICE_REALTIME_API_KEY"),
		RealtimeModel:        envOr("PREPVOICE_REALTIME_MODEL", "gpt-realtime"),
		RealtimeBaseURL:      envOr("PREPVOICE_REALTIME_BASE_URL", "https://api.openai.com/v1/realtime/calls"),
		RealtimeTokenURL:     envOr("PREPVOICE_REALTIME_TOKEN_URL", "https://api.openai.com/v1/realtime/client_secrets"),
		RealtimeVoice:        envOr("PREPVOICE_REALTIME_VOICE", "alloy"),
		TokenRequestTimeout:  envDurationOr("PREPVOICE_TOKEN_TIMEOUT", 15*time.Second),
		GeminiAPIKey:         os.Getenv("PREPVOICE_GEMINI_API_KEY"),
		SummaryModel:         envOr("PREPVOICE_SUMMARY_MODEL", "gemini-2.5-flash"),
		SummaryTimeout:       envDurationOr("PREPVOICE_SUMMARY_TIMEOUT", 60*time.Second),
		LiveWriteTimeout:     envDurationOr("PREPVOICE_LIVE_WRITE_TIMEOUT", 10*time.Second),
		LivePingInterval:     envDurationOr("PREPVOICE_LIVE_PING_INTERVAL", 20*time.Second),
		LiveMaxObserverQueue: envIntOr("PREPVOICE_LIVE_MAX_OBSERVER_QUEUE", 32),
		LiveMaxSnapshotBytes: envInt64Or("PREPVOICE_LIVE_MAX_SNAPSHOT_BYTES", 256<<10),
		LiveSessionTTL:       envDurationOr("PREPVOICE_LIVE_SESSION_TTL", 30*time.Minute),
		ReadHeaderTimeout:    envDurationOr("PREPVOICE_READ_HEADER_TIMEOUT", 10*time.Second),
		ReadTimeout:          envDurationOr("PREPVOICE_READ_TIMEOUT", 30*time.Second),
		ShutdownGracePeriod:  envDurationOr("PREPVOICE_SHUTDOWN_GRACE", 15*time.Second),
		MaxBodyBytes:         envInt64Or("PREPVOICE_MAX_BODY_BYTES", 1<<20),
	}

	for _, key := range splitList(os.Getenv("PREPVOICE_API_KEYS")) {
		cfg.APIKeys[key] = struct{}{}
	}
	for _, origin := range splitList(os.Getenv("PREPVOICE_CORS_ORIGINS")) {
		cfg.CORSAllowedOrigins[origin] = struct{}{}
	}

	return cfg, cfg.Validate()
}

// Validate reports configuration problems that would make the gateway
// unusable.
func (c Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr must not be empty")
	}
	if c.RealtimeAPIKey == "" {
		return fmt.Errorf("PREPVOICE_REALTIME_API_KEY is required")
	}
	if c.TokenRequestTimeout <= 0 || c.SummaryTimeout <= 0 {
		return fmt.Errorf("timeouts must be > 0")
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("max body bytes must be > 0")
	}
	if c.LiveMaxObserverQueue <= 0 {
		return fmt.Errorf("live observer queue must be > 0")
	}
	if c.LiveSessionTTL <= 0 {
		return fmt.Errorf("live session ttl must be > 0")
	}
	return nil
}

// AuthEnabled reports whether static API key auth is on.
func (c Config) AuthEnabled() bool { return len(c.APIKeys) > 0 }

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64Or(key string, fallback int64) int64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
