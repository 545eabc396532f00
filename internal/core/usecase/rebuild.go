package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/hybrid-rag/internal/core/domain"
	"github.com/kirillkom/hybrid-rag/internal/core/ports"
)

// RebuildConfig carries the indexing pipeline's tunables.
type RebuildConfig struct {
	SnapshotPath   string
	EmbedBatchSize int
	LoadWorkers    int
}

func (c RebuildConfig) withDefaults() RebuildConfig {
	if c.EmbedBatchSize <= 0 {
		c.EmbedBatchSize = 50
	}
	if c.LoadWorkers <= 0 {
		c.LoadWorkers = 4
	}
	return c
}

// RebuildUseCase turns the document directory into the in-memory indexes:
// extract, chunk, embed, persist, swap. One rebuild at a time; concurrent
// calls serialize on the rebuild mutex.
type RebuildUseCase struct {
	source         ports.CorpusSource
	chunker        ports.Chunker
	embedder       ports.Embedder
	vectorFactory  ports.VectorIndexFactory
	keywordFactory ports.KeywordIndexFactory
	repo           ports.CorpusRepository
	queue          ports.MessageQueue
	state          *IndexState
	cfg            RebuildConfig

	rebuildMu sync.Mutex
}

func NewRebuildUseCase(
	source ports.CorpusSource,
	chunker ports.Chunker,
	embedder ports.Embedder,
	vectorFactory ports.VectorIndexFactory,
	keywordFactory ports.KeywordIndexFactory,
	repo ports.CorpusRepository,
	queue ports.MessageQueue,
	state *IndexState,
	cfg RebuildConfig,
) *RebuildUseCase {
	return &RebuildUseCase{
		source:         source,
		chunker:        chunker,
		embedder:       embedder,
		vectorFactory:  vectorFactory,
		keywordFactory: keywordFactory,
		repo:           repo,
		queue:          queue,
		state:          state,
		cfg:            cfg.withDefaults(),
	}
}

// EnsureFresh reuses the persisted corpus when the document directory is
// unchanged since the last rebuild, and rebuilds from scratch otherwise.
func (uc *RebuildUseCase) EnsureFresh(ctx context.Context) error {
	const op = "rebuild.EnsureFresh"

	fingerprint, err := uc.source.Fingerprint(ctx)
	if err != nil {
		return fmt.Errorf("%s: fingerprint corpus: %w", op, err)
	}
	stored, err := uc.repo.CorpusHash(ctx)
	if err != nil {
		return fmt.Errorf("%s: load stored corpus hash: %w", op, err)
	}

	if stored != "" && stored == fingerprint {
		if err := uc.Reload(ctx); err == nil {
			slog.Info("corpus unchanged, reused persisted indexes", "corpus_hash", stored)
			return nil
		} else {
			slog.Warn("persisted index reload failed, rebuilding", "error", err)
		}
	}

	return uc.Rebuild(ctx)
}

// Rebuild runs the full indexing pipeline over the document directory.
func (uc *RebuildUseCase) Rebuild(ctx context.Context) error {
	const op = "rebuild.Rebuild"

	uc.rebuildMu.Lock()
	defer uc.rebuildMu.Unlock()

	start := time.Now()

	fingerprint, err := uc.source.Fingerprint(ctx)
	if err != nil {
		return fmt.Errorf("%s: fingerprint corpus: %w", op, err)
	}
	files, err := uc.source.ListFiles(ctx)
	if err != nil {
		return fmt.Errorf("%s: list files: %w", op, err)
	}

	extracted := uc.extractAll(ctx, files)
	docs, chunks := uc.chunkAll(extracted)

	// A failed index build degrades that search path instead of losing the
	// whole corpus; retrieval falls back to whatever survived.
	vector, err := uc.buildVectorIndex(ctx, chunks)
	if err != nil {
		slog.Warn("vector index build failed, continuing without it", "error", err)
		vector = nil
	}
	keyword, err := uc.keywordFactory.Build(chunks)
	if err != nil {
		slog.Warn("keyword index build failed, continuing without it", "error", err)
		keyword = nil
	}

	if err := uc.repo.ReplaceCorpus(ctx, docs, chunks, fingerprint); err != nil {
		if keyword != nil {
			keyword.Close()
		}
		return fmt.Errorf("%s: persist corpus: %w", op, err)
	}
	if vector != nil && uc.cfg.SnapshotPath != "" {
		if err := vector.Save(uc.cfg.SnapshotPath); err != nil {
			slog.Warn("save vector snapshot failed, reloads will rebuild", "path", uc.cfg.SnapshotPath, "error", err)
		}
	}

	uc.state.Swap(vector, keyword, chunks, fingerprint)

	if uc.queue != nil {
		if err := uc.queue.PublishIndexRebuilt(ctx, fingerprint); err != nil {
			slog.Warn("publish index rebuilt event failed", "error", err)
		}
	}

	vectorCount := 0
	if vector != nil {
		vectorCount = vector.Count()
	}
	slog.Info("corpus rebuilt",
		"files", len(files),
		"documents", len(docs),
		"chunks", len(chunks),
		"vectors", vectorCount,
		"corpus_hash", fingerprint,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Reload swaps in the corpus persisted by another process: chunks and the
// corpus hash from the repository, vectors from the snapshot file. The
// keyword index is always rebuilt in memory from the loaded chunks.
func (uc *RebuildUseCase) Reload(ctx context.Context) error {
	const op = "rebuild.Reload"

	chunks, err := uc.repo.LoadChunks(ctx)
	if err != nil {
		return fmt.Errorf("%s: load chunks: %w", op, err)
	}
	corpusHash, err := uc.repo.CorpusHash(ctx)
	if err != nil {
		return fmt.Errorf("%s: load corpus hash: %w", op, err)
	}
	vector, err := uc.vectorFactory.Load(uc.cfg.SnapshotPath)
	if err != nil {
		return fmt.Errorf("%s: load vector snapshot: %w", op, err)
	}
	keyword, err := uc.keywordFactory.Build(chunks)
	if err != nil {
		return fmt.Errorf("%s: build keyword index: %w", op, err)
	}

	uc.state.Swap(vector, keyword, chunks, corpusHash)
	slog.Info("indexes reloaded", "chunks", len(chunks), "vectors", vector.Count(), "corpus_hash", corpusHash)
	return nil
}

// extractAll extracts all files with a bounded worker pool. A failed file is
// logged and skipped; one unreadable document must not block the corpus.
// Results arrive in completion order.
func (uc *RebuildUseCase) extractAll(ctx context.Context, files []string) []*domain.ExtractedDocument {
	if len(files) == 0 {
		return nil
	}
	workers := uc.cfg.LoadWorkers
	if len(files) < workers {
		workers = len(files)
	}

	var mu sync.Mutex
	extracted := make([]*domain.ExtractedDocument, 0, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, path := range files {
		path := path
		g.Go(func() error {
			doc, err := uc.source.Extract(gctx, path)
			if err != nil {
				slog.Warn("document extraction failed, skipping", "file", filepath.Base(path), "error", err)
				return nil
			}
			mu.Lock()
			extracted = append(extracted, doc)
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return extracted
}

// chunkAll splits every extracted section into overlapping chunks and
// assembles the document records that describe them.
func (uc *RebuildUseCase) chunkAll(extracted []*domain.ExtractedDocument) ([]domain.Document, []domain.Chunk) {
	now := time.Now().UTC()
	docs := make([]domain.Document, 0, len(extracted))
	var chunks []domain.Chunk

	for _, ex := range extracted {
		doc := domain.Document{
			ID:          uuid.NewString(),
			Filename:    ex.Filename,
			FileType:    ex.FileType,
			StoragePath: ex.Filename,
			Status:      domain.StatusIndexed,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		chunkIndex := 0
		for _, section := range ex.Sections {
			if strings.TrimSpace(section.Text) == "" {
				continue
			}
			if section.Page > doc.Pages {
				doc.Pages = section.Page
			}
			for _, span := range uc.chunker.Split(section.Text) {
				chunks = append(chunks, domain.Chunk{
					ID:          uuid.NewString(),
					DocumentID:  doc.ID,
					Source:      ex.Filename,
					Page:        section.Page,
					FileType:    ex.FileType,
					StartOffset: span.Start,
					ChunkIndex:  chunkIndex,
					Content:     span.Text,
				})
				chunkIndex++
			}
		}
		doc.ChunkCount = chunkIndex
		docs = append(docs, doc)
	}
	return docs, chunks
}

// buildVectorIndex embeds chunks in batches and folds each batch's
// sub-index into the main index sequentially.
func (uc *RebuildUseCase) buildVectorIndex(ctx context.Context, chunks []domain.Chunk) (ports.VectorIndex, error) {
	main := uc.vectorFactory.New()

	for offset := 0; offset < len(chunks); offset += uc.cfg.EmbedBatchSize {
		end := offset + uc.cfg.EmbedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[offset:end]

		texts := make([]string, len(batch))
		ids := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Content
			ids[i] = c.ID
		}

		vectors, err := uc.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed batch at %d: %w", offset, err)
		}

		sub := uc.vectorFactory.New()
		if err := sub.Add(ids, vectors); err != nil {
			return nil, fmt.Errorf("index batch at %d: %w", offset, err)
		}
		if err := main.Merge(sub); err != nil {
			return nil, fmt.Errorf("merge batch at %d: %w", offset, err)
		}
	}
	return main, nil
}
