// Package main is the entrypoint for the ModelGate API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/praghav/modelgate/internal/admission"
	"github.com/praghav/modelgate/internal/api"
	"github.com/praghav/modelgate/internal/api/handler"
	mw "github.com/praghav/modelgate/internal/api/middleware"
	"github.com/praghav/modelgate/internal/api/response"
	"github.com/praghav/modelgate/internal/auth"
	"github.com/praghav/modelgate/internal/cache"
	"github.com/praghav/modelgate/internal/config"
	"github.com/praghav/modelgate/internal/idempotency"
	"github.com/praghav/modelgate/internal/metrics"
	"github.com/praghav/modelgate/internal/orchestrator"
	"github.com/praghav/modelgate/internal/provider"
	"github.com/praghav/modelgate/internal/store"
	"github.com/praghav/modelgate/pkg/models"
)

const shutdownTimeout = 30 * time.Second

// seedLatencies prime the scoring view before the first real observations
// arrive, so routing works from the first request.
var seedLatencies = map[string]float64{
	"mock":   150,
	"openai": 250,
	"gemini": 180,
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config, fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "providers", cfg.Providers.Enabled, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Create store
	pgStore := store.NewPostgresStore(pool)

	if err := bootstrapCredential(ctx, pgStore); err != nil {
		return fmt.Errorf("bootstrap credential: %w", err)
	}

	// 6. Build the provider registry and start the health monitor
	registry, err := provider.NewRegistryFromConfig(cfg.Providers)
	if err != nil {
		return fmt.Errorf("build provider registry: %w", err)
	}
	slog.Info("providers registered", "names", registry.Names())

	monitor := provider.NewMonitor(registry, seedLatencies, cfg.Providers.ProbeInterval)
	go monitor.Run(ctx)

	// 7. Assemble the request pipeline
	sink := metrics.NewStoreSink(pgStore)
	orch := orchestrator.New(registry, monitor, sink, cfg.Providers.FallbackOrder, cfg.Providers.AttemptTimeout)
	verifier := auth.NewVerifier(pgStore, redisCache, cfg.Auth)
	controller := admission.NewController(redisCache, cfg.RateLimit)
	coordinator := idempotency.NewCoordinator(pgStore, cfg.Idempotency.Lease)

	deps := api.Dependencies{
		Auth:      mw.NewAuth(verifier),
		Admission: mw.NewAdmission(controller),

		HealthHandler:    healthHandler(pgStore, redisCache),
		InferHandler:     handler.NewInferHandler(orch, monitor, coordinator, registry.Names()),
		ProvidersHandler: handler.NewProvidersHandler(registry),
	}

	router := api.NewRouter(deps)

	// 8. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// bootstrapCredential issues an initial API key on a fresh install so the
// gateway is usable before any provisioning tooling exists. The raw secret is
// printed exactly once.
func bootstrapCredential(ctx context.Context, s store.Store) error {
	count, err := s.CountCredentials(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	secret, cred, err := auth.Issue(ctx, s, uuid.New(), models.TierStandard)
	if err != nil {
		return err
	}
	slog.Info("bootstrap credential issued", "credential_id", cred.ID, "owner_id", cred.OwnerID)
	fmt.Printf("bootstrap API key (shown once): %s\n", secret)
	return nil
}

// healthHandler checks database and cache connectivity.
func healthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
