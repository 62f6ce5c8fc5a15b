// Package server wires the gateway's handlers, middleware, and HTTP
// server together.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/prepvoice/prepvoice/pkg/core/realtime"
	"github.com/prepvoice/prepvoice/pkg/gateway/config"
	"github.com/prepvoice/prepvoice/pkg/gateway/handlers"
	"github.com/prepvoice/prepvoice/pkg/gateway/live"
	"github.com/prepvoice/prepvoice/pkg/gateway/metrics"
	"github.com/prepvoice/prepvoice/pkg/gateway/mw"
	"github.com/prepvoice/prepvoice/pkg/gateway/store"
)

// Server is the prepvoice gateway.
type Server struct {
	config     config.Config
	logger     *slog.Logger
	store      *store.Store
	summarizer realtime.Summarizer
	metrics    *metrics.Metrics
	registry   *prometheus.Registry
	relay      *live.Relay

	mux        *http.ServeMux
	httpServer *http.Server
}

// Options carries the optional collaborators; zero values disable the
// corresponding endpoints rather than failing startup.
type Options struct {
	Store      *store.Store
	Summarizer realtime.Summarizer
	Logger     *slog.Logger
}

// New builds a fully wired gateway for cfg.
func New(cfg config.Config, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	s := &Server{
		config:     cfg,
		logger:     logger,
		store:      opts.Store,
		summarizer: opts.Summarizer,
		metrics:    m,
		registry:   registry,
		relay:      live.NewRelay(cfg, logger, m),
		mux:        http.NewServeMux(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// Unauthenticated: probes and metrics.
	s.mux.Handle("GET /healthz", handlers.HealthHandler{})
	s.mux.Handle("GET /readyz", handlers.ReadyHandler{Config: s.config, StoreReady: s.storeReady()})
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	token := &handlers.TokenHandler{
		Config:    s.config,
		Client:    &http.Client{Timeout: s.config.TokenRequestTimeout},
		Logger:    s.logger,
		Metrics:   s.metrics,
		Questions: s.questionSource(),
	}
	questions := &handlers.QuestionsHandler{Store: s.store, Logger: s.logger}
	categories := &handlers.CategoriesHandler{Store: s.store, Logger: s.logger}
	interviews := &handlers.InterviewsHandler{Store: s.store, Logger: s.logger, Metrics: s.metrics}
	summary := &handlers.SummaryHandler{
		Config:     s.config,
		Summarizer: s.summarizer,
		Logger:     s.logger,
		Metrics:    s.metrics,
	}

	api := http.NewServeMux()
	api.Handle("POST /v1/realtime/token", token)
	api.Handle("GET /v1/questions", questions)
	api.HandleFunc("GET /v1/categories", categories.List)
	api.HandleFunc("POST /v1/categories", categories.Create)
	api.HandleFunc("PUT /v1/categories/{id}", categories.Update)
	api.HandleFunc("DELETE /v1/categories/{id}", categories.Delete)
	api.HandleFunc("GET /v1/interviews", interviews.List)
	api.HandleFunc("POST /v1/interviews", interviews.Save)
	api.HandleFunc("GET /v1/interviews/{id}", interviews.Get)
	api.Handle("POST /v1/summary", summary)
	api.Handle("GET /v1/live/{session}", s.relay)

	s.mux.Handle("/v1/", s.withMiddleware(api))
}

// withMiddleware wraps the API surface; probe endpoints stay outside the
// chain.
func (s *Server) withMiddleware(handler http.Handler) http.Handler {
	handler = mw.Auth(s.config, handler)
	handler = mw.CORS(s.config, handler)
	handler = mw.AccessLog(s.logger, handler)
	handler = mw.RequestID(handler)
	return handler
}

// Handler exposes the routing table for tests.
func (s *Server) Handler() http.Handler { return s.mux }

// Start blocks serving HTTP until Shutdown or a listener error.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.mux,
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
		ReadTimeout:       s.config.ReadTimeout,
	}
	s.logger.Info("gateway listening",
		"addr", s.config.Addr,
		"auth", s.config.AuthEnabled(),
		"store", s.store != nil,
	)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and stops the live relay sweeper.
func (s *Server) Shutdown(ctx context.Context) error {
	s.relay.Close()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) storeReady() func() bool {
	if s.store == nil {
		return nil
	}
	return func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return s.store.Ping(ctx) == nil
	}
}

func (s *Server) questionSource() handlers.QuestionSource {
	if s.store == nil {
		return nil
	}
	return s.store
}
