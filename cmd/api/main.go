package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/kirillkom/hybrid-rag/internal/adapters/http"
	"github.com/kirillkom/hybrid-rag/internal/bootstrap"
	"github.com/kirillkom/hybrid-rag/internal/config"
	"github.com/kirillkom/hybrid-rag/internal/observability/logging"
	"github.com/kirillkom/hybrid-rag/internal/observability/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logging.NewJSONLogger("api", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	// Index loading can take minutes on a cold corpus; serve health checks
	// while it runs.
	go func() {
		if err := app.RebuildUC.EnsureFresh(ctx); err != nil {
			slog.Error("initial index load failed", "error", err)
		}
	}()

	go func() {
		err := app.Queue.SubscribeIndexRebuilt(ctx, func(handlerCtx context.Context, corpusHash string) error {
			slog.Info("index rebuilt, reloading", "corpus_hash", corpusHash)
			reloadCtx, cancel := context.WithTimeout(handlerCtx, 5*time.Minute)
			defer cancel()
			return app.RebuildUC.Reload(reloadCtx)
		})
		if err != nil && ctx.Err() == nil {
			slog.Error("rebuilt subscription failed", "error", err)
		}
	}()

	m := metrics.NewHTTPServerMetrics("api")
	handler := httpadapter.NewRouter(cfg, app.AskUC, app.IngestUC, app.Repo, m, "api").Handler()
	server := &http.Server{
		Addr:        ":" + cfg.APIPort,
		Handler:     handler,
		ReadTimeout: 30 * time.Second,
		// Answer streams stay open well past a normal response window.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("api listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("api server", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api shutdown", "error", err)
	}
}
