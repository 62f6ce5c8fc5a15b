// Command prepvoice-gateway runs the prepvoice HTTP gateway: realtime
// token minting, the question bank, interview history, coaching
// summaries, and the live transcript relay.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/prepvoice/prepvoice/pkg/gateway/config"
	"github.com/prepvoice/prepvoice/pkg/gateway/server"
	"github.com/prepvoice/prepvoice/pkg/gateway/store"
	"github.com/prepvoice/prepvoice/pkg/gateway/summarize"
)

func main() {
	envFile := flag.String("env-file", "", "Optional .env file to load before reading configuration")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			slog.Error("failed to load env file", "path", *envFile, "error", err)
			os.Exit(1)
		}
	} else {
		_ = godotenv.Load()
	}

	logger := setupLogger(*logLevel)
	slog.SetDefault(logger)

	cfg, err := config.LoadFromEnv()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	opts := server.Options{Logger: logger}

	if cfg.DatabaseURL != "" {
		if err := store.Migrate(cfg.DatabaseURL); err != nil {
			logger.Error("migrations failed", "error", err)
			os.Exit(1)
		}
		st, err := store.Open(context.Background(), cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to open store", "error", err)
			os.Exit(1)
		}
		defer st.Close()
		opts.Store = st
	} else {
		logger.Warn("no database configured, question bank and history disabled")
	}

	if cfg.GeminiAPIKey != "" {
		sum, err := summarize.New(context.Background(), cfg.GeminiAPIKey, cfg.SummaryModel)
		if err != nil {
			logger.Error("failed to init summarizer", "error", err)
			os.Exit(1)
		}
		opts.Summarizer = sum
	} else {
		logger.Warn("no Gemini key configured, summaries disabled")
	}

	srv := server.New(cfg, opts)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

func setupLogger(level string) *slog.Logger {
	lvl := slog.LevelInfo
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
