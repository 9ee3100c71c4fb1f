package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/averlon/oauth2-engine/internal/grantflow"
)

// healthChecker is implemented by models with a backend to reach.
type healthChecker interface {
	CheckHealth(ctx context.Context) error
}

type server struct {
	cfg     Config
	router  *chi.Mux
	engine  *grantflow.Server
	health  healthChecker
	logger  *zap.Logger
	metrics *metrics
}

func newServer(cfg Config, engine *grantflow.Server, health healthChecker, logger *zap.Logger) *server {
	srv := &server{
		cfg:     cfg,
		router:  chi.NewRouter(),
		engine:  engine,
		health:  health,
		logger:  logger,
		metrics: newMetrics(),
	}

	srv.router.Use(middleware.RealIP)
	srv.router.Use(middleware.Recoverer)
	srv.router.Use(middleware.Timeout(cfg.RequestTimeout))
	srv.router.Use(srv.logRequests)

	srv.routes()
	return srv
}

func (s *server) routes() {
	s.router.Get("/health", s.handleHealth())
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Post("/token", s.handleToken())
	s.router.Get("/authorize", s.handleAuthorize())
	s.router.Post("/authorize", s.handleAuthorize())
}

func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
