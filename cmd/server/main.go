// Command server runs the detour provisioning API: it manages tunnel client
// identities on the two region gateways and serves the synthesized client
// configuration documents.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"detour/internal/artifact"
	"detour/internal/auth"
	"detour/internal/platform/config"
	"detour/internal/platform/httpserver"
	"detour/internal/platform/logger"
	"detour/internal/platform/middleware"
	platformredis "detour/internal/platform/redis"
	"detour/internal/provision/handler"
	"detour/internal/provision/metrics"
	"detour/internal/provision/service"
	"detour/internal/provision/store"
	"detour/internal/region"
)

func main() {
	// Optional .env for local development; real deployments set the
	// environment directly.
	_ = godotenv.Load(".env")

	log := logger.New()
	slog.SetDefault(log)

	cfg, err := config.FromEnv()
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	registry, cleanup, err := buildRegistry(cfg, log)
	if err != nil {
		log.Error("failed to initialize registry", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	documents, err := artifact.NewStore(cfg.ArtifactDir, cfg.PublicBaseURL)
	if err != nil {
		log.Error("failed to initialize artifact store", "error", err)
		os.Exit(1)
	}

	gateway := region.NewManager(
		[]*region.Client{
			region.NewClient(cfg.Primary),
			region.NewClient(cfg.Secondary),
		},
		region.WithLogger(log),
	)

	provisionMetrics := metrics.New()
	provisionService := service.New(registry, gateway, documents, cfg.Primary, cfg.Secondary,
		service.WithLogger(log),
		service.WithMetrics(provisionMetrics),
	)

	tokens := auth.NewTokenService(cfg.JWTSigningKey, cfg.TokenTTL)
	authService := auth.NewService(cfg.AdminUsername, cfg.AdminPasswordHash, tokens)

	provisionHandler := handler.New(provisionService, authService, documents, log)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RequestTime)
	router.Handle("/metrics", promhttp.Handler())
	provisionHandler.Register(router, middleware.RequireAuth(tokens, log))

	srv := httpserver.New(cfg.Addr, router)

	go func() {
		log.Info("starting detour server",
			"addr", cfg.Addr,
			"registry", cfg.Registry,
			"primary", cfg.Primary.ID,
			"secondary", cfg.Secondary.ID,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

// buildRegistry selects the registry backend from configuration.
func buildRegistry(cfg config.Config, log *slog.Logger) (store.Registry, func(), error) {
	noop := func() {}
	switch cfg.Registry {
	case config.BackendSqlite:
		registry, err := store.OpenSqlite(cfg.SqlitePath)
		if err != nil {
			return nil, noop, err
		}
		return registry, func() { _ = registry.Close() }, nil
	case config.BackendRedis:
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Redis.DialTimeout)
		defer cancel()
		client, err := platformredis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, noop, err
		}
		return store.NewRedis(client.Client), func() { _ = client.Close() }, nil
	default:
		log.Warn("using in-memory registry, records will not survive restarts")
		return store.NewInMemory(), noop, nil
	}
}
