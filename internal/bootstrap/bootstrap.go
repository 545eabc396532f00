// Package bootstrap wires configuration into the object graph shared by the
// api and worker binaries.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/kirillkom/hybrid-rag/internal/cache"
	"github.com/kirillkom/hybrid-rag/internal/config"
	"github.com/kirillkom/hybrid-rag/internal/core/domain"
	"github.com/kirillkom/hybrid-rag/internal/core/ports"
	"github.com/kirillkom/hybrid-rag/internal/core/usecase"
	"github.com/kirillkom/hybrid-rag/internal/infrastructure/chunking"
	"github.com/kirillkom/hybrid-rag/internal/infrastructure/extract"
	"github.com/kirillkom/hybrid-rag/internal/infrastructure/index/keyword"
	"github.com/kirillkom/hybrid-rag/internal/infrastructure/index/vector"
	"github.com/kirillkom/hybrid-rag/internal/infrastructure/llm/ollama"
	natsqueue "github.com/kirillkom/hybrid-rag/internal/infrastructure/queue/nats"
	"github.com/kirillkom/hybrid-rag/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/hybrid-rag/internal/infrastructure/resilience"
	"github.com/kirillkom/hybrid-rag/internal/infrastructure/storage/localfs"
)

type App struct {
	Config config.Config

	Queue ports.MessageQueue
	Repo  ports.CorpusRepository

	AskUC     *usecase.AskUseCase
	IngestUC  *usecase.IngestUseCase
	RebuildUC *usecase.RebuildUseCase

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewCorpusRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := natsqueue.NewWithOptions(cfg.NATSURL, cfg.NATSIngestedSubject, cfg.NATSRebuiltSubject, natsqueue.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, executor)
	embedder := ollama.NewEmbedder(ollamaClient, cfg.OllamaEmbedModels)
	if err := embedder.Init(ctx); err != nil {
		return nil, fmt.Errorf("init embedder: %w", err)
	}

	source := extract.NewSource(storage.BasePath())
	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	state := usecase.NewIndexState()
	responseCache := cache.New(cfg.CacheCapacity, cfg.CacheEvictCount)

	askUC := usecase.NewAskUseCase(ollamaClient, embedder, state, responseCache, usecase.AskConfig{
		TopK:            cfg.RAGTopK,
		CandidateFactor: cfg.RAGCandidateFactor,
		BroadenBelow:    cfg.RAGBroadenBelow,
		RerankMin:       cfg.RAGRerankMin,
		RerankTopN:      cfg.RAGRerankTopN,
		ContextBudget:   cfg.RAGContextBudget,
		RewriteSampling: domain.CompletionRequest{
			Temperature:   cfg.RewriteTemperature,
			MaxTokens:     cfg.RewriteMaxTokens,
			ContextWindow: cfg.RewriteContextWindow,
		},
		RerankSampling: domain.CompletionRequest{
			Temperature:   cfg.RerankTemperature,
			MaxTokens:     cfg.RerankMaxTokens,
			ContextWindow: cfg.RerankContextWindow,
		},
		GenerateSampling: domain.CompletionRequest{
			Temperature:   cfg.GenerateTemperature,
			MaxTokens:     cfg.GenerateMaxTokens,
			ContextWindow: cfg.GenerateContextWindow,
		},
	})
	ingestUC := usecase.NewIngestUseCase(repo, storage, queue)
	rebuildUC := usecase.NewRebuildUseCase(
		source,
		chunker,
		embedder,
		vector.Factory{},
		keyword.Factory{},
		repo,
		queue,
		state,
		usecase.RebuildConfig{
			SnapshotPath:   cfg.SnapshotPath,
			EmbedBatchSize: cfg.EmbedBatchSize,
			LoadWorkers:    cfg.LoadWorkers,
		},
	)

	return &App{
		Config: cfg,

		Queue: queue,
		Repo:  repo,

		AskUC:     askUC,
		IngestUC:  ingestUC,
		RebuildUC: rebuildUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
