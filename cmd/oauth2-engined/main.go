package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/averlon/oauth2-engine/internal/grantflow"
)

// Version is set by the build process
var Version = "dev"

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		logger.Fatal("loading configuration", zap.Error(err))
	}

	model, health, cleanup, err := buildModel(cfg, logger)
	if err != nil {
		logger.Fatal("building model", zap.Error(err))
	}
	defer cleanup()

	engine, err := grantflow.NewServer(model,
		grantflow.WithAccessTokenLifetime(cfg.AccessTokenLifetime),
		grantflow.WithRefreshTokenLifetime(cfg.RefreshTokenLifetime),
		grantflow.WithAuthorizationCodeLifetime(cfg.AuthorizationCodeLifetime),
	)
	if err != nil {
		logger.Fatal("building engine", zap.Error(err))
	}

	srv := newServer(cfg, engine, health, logger)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv.router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.Int("port", cfg.Port), zap.String("version", Version))
		serverErrors <- httpServer.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Fatal("server error", zap.Error(err))

	case sig := <-shutdown:
		logger.Info("starting shutdown", zap.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(ctx); err != nil {
			logger.Error("shutting down server", zap.Error(err))
			if err := httpServer.Close(); err != nil {
				logger.Error("closing server", zap.Error(err))
			}
		}
	}
}

// buildModel picks the model backend from configuration and applies the
// optional JWT access token format.
func buildModel(cfg Config, logger *zap.Logger) (grantflow.Model, healthChecker, func(), error) {
	var tokenFormat grantflow.AccessTokenGenerator
	if cfg.JWTSigningKey != "" {
		tokenFormat = grantflow.NewJWTGenerator([]byte(cfg.JWTSigningKey), cfg.JWTIssuer, cfg.AccessTokenLifetime)
	}

	if cfg.RedisURL == "" {
		logger.Warn("REDIS_URL not set, using in-memory model")
		model := grantflow.NewMemoryModel()
		model.TokenFormat = tokenFormat
		return model, model, func() {}, nil
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return nil, nil, nil, fmt.Errorf("connecting to redis: %w", err)
	}

	model := grantflow.NewRedisModel(redisClient)
	model.TokenFormat = tokenFormat
	cleanup := func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("closing redis connection", zap.Error(err))
		}
	}
	return model, model, cleanup, nil
}
