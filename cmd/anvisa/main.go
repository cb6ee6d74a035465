package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/use-agent/anvisa/api"
	"github.com/use-agent/anvisa/cache"
	"github.com/use-agent/anvisa/config"
	"github.com/use-agent/anvisa/egress"
	"github.com/use-agent/anvisa/engine"
	"github.com/use-agent/anvisa/metrics"
	"github.com/use-agent/anvisa/models"
	"github.com/use-agent/anvisa/navigator"
	"github.com/use-agent/anvisa/scraper"
	"github.com/use-agent/anvisa/translate"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("anvisa starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"maxSearches", cfg.Server.MaxConcurrentSearches,
	)

	// ── 3. Selector catalogue ───────────────────────────────────────
	catalogue, err := config.LoadCatalogue(cfg.SelectorsFile)
	if err != nil {
		slog.Error("failed to load selector catalogue", "path", cfg.SelectorsFile, "error", err)
		os.Exit(1)
	}

	// ── 4. Egress proxies ───────────────────────────────────────────
	rotator, err := egress.NewRotator(cfg.Egress.Proxies)
	if err != nil {
		slog.Error("invalid proxy configuration", "error", err)
		os.Exit(1)
	}
	slog.Info("egress configured", "proxies", rotator.Len())

	// ── 5. Translator with memo cache ───────────────────────────────
	memo := cache.New[models.TranslatedQuery](cfg.Translator.CacheEntries, cfg.Translator.CacheTTL)
	defer memo.Close()
	translator := translate.NewClient(cfg.Translator, memo)
	if cfg.Translator.APIKey == "" {
		slog.Warn("no translator API key configured; searches use the original terms unless a request supplies one")
	}

	// ── 6. Navigation engine ────────────────────────────────────────
	waiter := engine.NewWaiter(cfg.Search.PollInterval, nil)
	orch := engine.NewOrchestrator(waiter, engine.OrchestratorConfig{
		MaxAttempts: cfg.Search.MaxAttempts,
		Timeout:     cfg.Search.StepTimeout,
		Backoff:     cfg.Search.Backoff,
		Observer:    metrics.Locators{},
	})
	nav, err := navigator.New(navigator.Options{
		Opener:            scraper.NewLauncher(cfg.Browser),
		Translator:        translator,
		Rotator:           rotator,
		Catalogue:         catalogue,
		Waiter:            waiter,
		Orchestrator:      orch,
		MaxRows:           cfg.Search.MaxRows,
		SearchTimeout:     cfg.Search.Timeout,
		NavigationTimeout: cfg.Search.NavigationTimeout,
		IdleTimeout:       cfg.Search.IdleTimeout,
		MaxConcurrent:     cfg.Server.MaxConcurrentSearches,
	})
	if err != nil {
		slog.Error("failed to initialise navigator", "error", err)
		os.Exit(1)
	}

	// ── 7. Setup router ─────────────────────────────────────────────
	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	router := api.NewRouter(ctx, nav, cfg, time.Now())

	// ── 8. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 9. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	// Searches take minutes; give them the search timeout to finish so
	// their browsers are closed by the navigator, not killed with us.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Search.Timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	slog.Info("anvisa stopped")
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}

	slog.SetDefault(slog.New(handler))
}
