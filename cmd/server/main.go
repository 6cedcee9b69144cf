// Package main is the entrypoint for the depicts analyzer API server.
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

	"github.com/mfscpayload-690/commons-depicts-analyzer/internal/analyzer"
	"github.com/mfscpayload-690/commons-depicts-analyzer/internal/api"
	"github.com/mfscpayload-690/commons-depicts-analyzer/internal/api/handler"
	mw "github.com/mfscpayload-690/commons-depicts-analyzer/internal/api/middleware"
	"github.com/mfscpayload-690/commons-depicts-analyzer/internal/api/response"
	"github.com/mfscpayload-690/commons-depicts-analyzer/internal/cache"
	"github.com/mfscpayload-690/commons-depicts-analyzer/internal/commons"
	"github.com/mfscpayload-690/commons-depicts-analyzer/internal/config"
	"github.com/mfscpayload-690/commons-depicts-analyzer/internal/jobs"
	"github.com/mfscpayload-690/commons-depicts-analyzer/internal/labelcache"
	"github.com/mfscpayload-690/commons-depicts-analyzer/internal/store"
	"github.com/mfscpayload-690/commons-depicts-analyzer/internal/wikidata"
)

const shutdownTimeout = 30 * time.Second

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
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env, "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool := store.NewPool(store.PgxDialer(cfg.Database.URL), cfg.Database.PoolSize)
	defer pool.Close(context.Background())

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	slog.Info("database connected", "pool_size", cfg.Database.PoolSize)

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

	// 5. Upstream API clients
	commonsClient := commons.NewHTTPClient(cfg.Commons.BaseURL, cfg.Commons.UserAgent, cfg.Commons.Timeout)
	wikidataClient := wikidata.NewHTTPClient(cfg.Wikidata.BaseURL, cfg.Commons.UserAgent, cfg.Wikidata.Timeout)

	// 6. Analyzer service
	pgStore := store.NewPostgresStore(pool)
	svc := analyzer.NewService(analyzer.Deps{
		Commons:         commonsClient,
		Wikidata:        wikidataClient,
		Labels:          labelcache.New(cfg.Labels.TTL, cfg.Labels.Capacity),
		Store:           pgStore,
		Jobs:            jobs.NewManager(),
		DefaultLanguage: cfg.Wikidata.DefaultLanguage,
	})

	// 7. Build router with dependencies
	deps := api.Dependencies{
		Admin:     mw.NewAdmin(cfg.Admin.TokenHash),
		RateLimit: mw.NewRateLimit(redisCache, cfg.RateLimit.RequestsPerMinute),

		HealthHandler:   healthHandler(pgStore, redisCache),
		AnalyzeHandler:  handler.NewAnalyzeHandler(svc),
		ProgressHandler: handler.NewProgressHandler(svc),
		CancelHandler:   handler.NewCancelHandler(svc),
		ResultsHandler:  handler.NewResultsHandler(svc),
		HistoryHandler:  handler.NewHistoryHandler(svc),
		SuggestHandler:  handler.NewSuggestHandler(svc, redisCache),
		ExportHandler:   handler.NewExportHandler(svc),
		DeleteHandler:   handler.NewDeleteCategoryHandler(svc),
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

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
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

		if checks["database"] != "ok" || checks["cache"] != "ok" {
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
