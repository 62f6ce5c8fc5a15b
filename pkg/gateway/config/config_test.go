package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	t.Setenv("PREPVOICE_REALTIME_API_KEY", "sk-test")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.Addr)
	require.Equal(t, "gpt-realtime", cfg.RealtimeModel)
	require.False(t, cfg.AuthEnabled())
	require.Equal(t, 15*time.Second, cfg.TokenRequestTimeout)
}

func TestLoadFromEnv_MissingRealtimeKey(t *testing.T) {
	t.Setenv("PREPVOICE_REALTIME_API_KEY", "")

	_, err := LoadFromEnv()
	require.ErrorContains(t, err, "PREPVOICE_REALTIME_API_KEY")
}

func TestLoadFromEnv_Lists(t *testing.T) {
	t.Setenv("PREPVOICE_REALTIME_API_KEY", "sk-test")
	t.Setenv("PREPVOICE_API_KEYS", "alpha, beta ,,gamma")
	t.Setenv("PREPVOICE_CORS_ORIGINS", "https://app.example.com")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	require.True(t, cfg.AuthEnabled())
	require.Len(t, cfg.APIKeys, 3)
	require.Contains(t, cfg.APIKeys, "beta")
	require.Contains(t, cfg.CORSAllowedOrigins, "https://app.example.com")
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("PREPVOICE_REALTIME_API_KEY", "sk-test")
	t.Setenv("PREPVOICE_ADDR", ":9191")
	t.Setenv("PREPVOICE_TOKEN_TIMEOUT", "3s")
	t.Setenv("PREPVOICE_MAX_BODY_BYTES", "2048")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	require.Equal(t, ":9191", cfg.Addr)
	require.Equal(t, 3*time.Second, cfg.TokenRequestTimeout)
	require.Equal(t, int64(2048), cfg.MaxBodyBytes)
}
