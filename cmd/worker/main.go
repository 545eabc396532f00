package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/hybrid-rag/internal/bootstrap"
	"github.com/kirillkom/hybrid-rag/internal/config"
	"github.com/kirillkom/hybrid-rag/internal/core/domain"
	"github.com/kirillkom/hybrid-rag/internal/observability/logging"
	"github.com/kirillkom/hybrid-rag/internal/observability/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logging.NewJSONLogger("worker", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	wm := metrics.NewWorkerMetrics("worker")
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: wm.Handler(),
	}
	go func() {
		slog.Info("worker metrics listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server", "error", err)
		}
	}()

	rebuild := func(handlerCtx context.Context, reason, detail string) error {
		rebuildCtx, cancel := context.WithTimeout(handlerCtx, 15*time.Minute)
		defer cancel()

		wm.StartRebuild()
		start := time.Now()
		err := app.RebuildUC.Rebuild(rebuildCtx)
		wm.FinishRebuild("worker", time.Since(start), err)
		if err != nil {
			slog.Error("rebuild failed", "reason", reason, "detail", detail, "error", err)
			return err
		}

		stats := app.AskUC.Stats()
		wm.SetCorpusChunks(stats.ChunkCount)
		slog.Info("rebuild complete", "reason", reason, "detail", detail,
			"chunks", stats.ChunkCount, "duration_s", time.Since(start).Seconds())
		return nil
	}

	if err := app.RebuildUC.EnsureFresh(ctx); err != nil {
		slog.Error("initial corpus check failed", "error", err)
	} else {
		stats := app.AskUC.Stats()
		wm.SetCorpusChunks(stats.ChunkCount)
	}

	slog.Info("worker subscribed", "subject", cfg.NATSIngestedSubject)
	err = app.Queue.SubscribeDocumentIngested(ctx, func(handlerCtx context.Context, documentID string) error {
		if err := app.Repo.UpdateDocumentStatus(handlerCtx, documentID, domain.StatusIndexing, ""); err != nil {
			slog.Warn("mark document indexing", "document_id", documentID, "error", err)
		}
		if err := rebuild(handlerCtx, "document_ingested", documentID); err != nil {
			if updateErr := app.Repo.UpdateDocumentStatus(handlerCtx, documentID, domain.StatusFailed, err.Error()); updateErr != nil {
				slog.Warn("mark document failed", "document_id", documentID, "error", updateErr)
			}
			return err
		}
		return nil
	})
	if err != nil && ctx.Err() == nil {
		slog.Error("worker subscribe", "error", err)
		os.Exit(1)
	}

	_ = metricsServer.Close()
}
