// Package main is the entrypoint for the synthgen API server.
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

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/kiranshivaraju/synthgen/internal/ai"
	"github.com/kiranshivaraju/synthgen/internal/api"
	"github.com/kiranshivaraju/synthgen/internal/api/handler"
	mw "github.com/kiranshivaraju/synthgen/internal/api/middleware"
	"github.com/kiranshivaraju/synthgen/internal/cache"
	"github.com/kiranshivaraju/synthgen/internal/config"
	"github.com/kiranshivaraju/synthgen/internal/generate"
	"github.com/kiranshivaraju/synthgen/internal/logging"
	"github.com/kiranshivaraju/synthgen/internal/metrics"
	"github.com/kiranshivaraju/synthgen/internal/retrieval"
	"github.com/kiranshivaraju/synthgen/internal/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

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
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("config loaded", "ai_provider", cfg.AI.Provider, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Optional database: run audit, API keys, persistent descriptions
	var pg *store.PostgresStore
	var descriptions retrieval.DescriptionStore = retrieval.NewMemoryStore()
	if cfg.Database.URL != "" {
		pool, err := store.Connect(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer pool.Close()
		slog.Info("database connected")

		if err := store.RunMigrations(cfg.Database.URL); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		slog.Info("database migrations applied")

		pg = store.NewPostgresStore(pool)
		descriptions = pg
	} else {
		slog.Info("DATABASE_URL not set, run audit disabled and descriptions kept in memory")
	}

	// 3. Redis: dataset cache and rate limit counters
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 4. AI provider
	provider, err := ai.NewProvider(cfg.AI)
	if err != nil {
		return fmt.Errorf("create AI provider: %w", err)
	}
	slog.Info("AI provider initialized", "provider", provider.Name())

	// 5. Generation pipeline
	m, err := metrics.New()
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	gen := generate.NewBatchGenerator(provider, cfg.Generation.BatchSize, cfg.AI.InferenceTimeout, m)
	assembler := generate.NewAssembler(redisCache, gen, cfg.Generation.CacheTTL, m)
	retriever := retrieval.NewRetriever(descriptions, nil, cfg.Generation.ContextTopK, cfg.Generation.Domain)

	// 6. Build router with dependencies
	genDeps := handler.GenerateDeps{
		Context: retriever,
		Streams: assembler,
		Metrics: m,
		Limits:  cfg.Generation,
	}
	var dbPinger handler.Pinger
	if pg != nil {
		genDeps.Runs = pg
		dbPinger = pg
	}

	deps := api.Dependencies{
		RateLimit: mw.NewRateLimit(redisCache,
			mw.Window{Limit: cfg.RateLimit.PerMinute, Period: time.Minute},
			mw.Window{Limit: cfg.RateLimit.PerTenSeconds, Period: 10 * time.Second},
		),
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		HealthHandler:   handler.NewHealthHandler(redisCache, dbPinger),
		GenerateHandler: handler.NewGenerateHandler(genDeps),
		MetricsHandler:  m.Handler(),
	}
	if cfg.Auth.Enabled {
		deps.Auth = mw.NewAuth(pg)
		slog.Info("API key authentication enabled")
	}

	router := api.NewRouter(deps)

	// 7. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received, draining connections...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("server stopped gracefully")
	return nil
}
