// Package api exposes the agent over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Chative-core-poc-v1/shopping-agent/internal/agent/graph"
	"github.com/Chative-core-poc-v1/shopping-agent/internal/agent/model"
	"github.com/Chative-core-poc-v1/shopping-agent/internal/telemetry"
	logx "github.com/Chative-core-poc-v1/shopping-agent/pkg/logger"
)

type Config struct {
	Addr              string        `envconfig:"API_ADDR" default:":8080"`
	RequestTimeout    time.Duration `envconfig:"API_REQUEST_TIMEOUT" default:"60s"`
	ReadHeaderTimeout time.Duration `envconfig:"API_READ_HEADER_TIMEOUT" default:"10s"`
	ShutdownTimeout   time.Duration `envconfig:"API_SHUTDOWN_TIMEOUT" default:"15s"`
}

// Server serves the rag and feedback endpoints.
type Server struct {
	cfg        Config
	runner     graph.Runner
	feedback   model.FeedbackRepository
	sink       *telemetry.Sink
	metrics    *telemetry.Metrics
	httpServer *http.Server
}

func NewServer(cfg Config, runner graph.Runner, feedback model.FeedbackRepository, sink *telemetry.Sink, metrics *telemetry.Metrics) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	s := &Server{
		cfg:      cfg,
		runner:   runner,
		feedback: feedback,
		sink:     sink,
		metrics:  metrics,
	}
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
	return s
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	// Order: request id -> access log -> recoverer
	r.Use(requestIDMiddleware)
	r.Use(s.accessLogMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	r.Post("/rag", s.handleRAG)
	r.Post("/submit_feedback", s.handleFeedback)
	return r
}

// ListenAndServe blocks until the server stops. A graceful shutdown is not
// reported as an error.
func (s *Server) ListenAndServe() error {
	logx.Info().Str("addr", s.cfg.Addr).Msg("HTTP server starting")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
		defer cancel()
	}
	return s.httpServer.Shutdown(ctx)
}
