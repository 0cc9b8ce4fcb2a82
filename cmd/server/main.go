// Command server starts the legal AI HTTP gateway.
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

	"github.com/qanuni/legalai/internal/adapter/ai"
	"github.com/qanuni/legalai/internal/adapter/ai/provider"
	httpserver "github.com/qanuni/legalai/internal/adapter/httpserver"
	"github.com/qanuni/legalai/internal/adapter/observability"
	"github.com/qanuni/legalai/internal/adapter/repo/postgres"
	"github.com/qanuni/legalai/internal/app"
	"github.com/qanuni/legalai/internal/config"
	"github.com/qanuni/legalai/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx := context.Background()

	// Infra: DB pool and schema
	pool, err := postgres.Connect(ctx, cfg.DBURL, 30*time.Second)
	if err != nil {
		slog.Error("db connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()
	if err := postgres.Migrate(ctx, pool); err != nil {
		slog.Error("db migrate failed", slog.Any("error", err))
		os.Exit(1)
	}

	rdb, err := app.NewRedisClient(cfg)
	if err != nil {
		slog.Error("redis config invalid", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = rdb.Close() }()

	// AI providers, in fallback order
	reg := provider.Build(cfg)
	repo := postgres.NewProviderRepo(pool)
	if err := repo.SyncProviders(ctx, reg.Infos); err != nil {
		slog.Warn("provider registry sync failed", slog.Any("error", err))
	}
	if len(reg.Providers) == 0 {
		slog.Warn("no ai providers configured; chat requests will fail")
	}
	orch := ai.NewOrchestrator(reg.Providers,
		ai.WithDelay(cfg.FallbackDelay()),
		ai.WithUsageRecorder(repo),
	)
	slog.Info("ai fallback chain ready", slog.Any("providers", orch.Providers()))

	// Cache and limiter
	store, closeStore, err := app.NewCacheStore(cfg, rdb)
	if err != nil {
		slog.Error("cache store init failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = closeStore() }()
	resultCache := app.NewCache(cfg, store)

	limiter, err := app.NewLimiter(cfg, rdb)
	if err != nil {
		slog.Error("rate limiter init failed", slog.Any("error", err))
		os.Exit(1)
	}

	// Usecases
	catalog, err := usecase.LoadCatalog()
	if err != nil {
		slog.Error("prompt catalog invalid", slog.Any("error", err))
		os.Exit(1)
	}
	chatSvc := usecase.NewChatService(orch, catalog, cfg.ChatMaxTokens, cfg.ChatTemperature)
	genSvc := usecase.NewGenerationService(reg.Structured, catalog,
		usecase.WithCache(resultCache),
		usecase.WithNewsTTL(cfg.NewsCacheTTL),
		usecase.WithGenerationLimits(cfg.GenerateMaxTokens, cfg.GenerateTemperature),
	)

	srv := &httpserver.Server{
		Cfg:        cfg,
		Chat:       chatSvc,
		Generator:  genSvc,
		Limiter:    limiter,
		Cache:      resultCache,
		Providers:  repo,
		Configured: reg.Infos,
		Probes:     app.BuildReadinessProbes(pool, rdb),
	}
	handler := app.BuildRouter(cfg, srv)

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.Port))
		errCh <- srvHTTP.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = srvHTTP.Shutdown(shutdownCtx)
}
