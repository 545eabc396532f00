package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/hybrid-rag/internal/cache"
	"github.com/kirillkom/hybrid-rag/internal/core/domain"
	"github.com/kirillkom/hybrid-rag/internal/core/ports"
)

// minQuestionLength rejects questions before any retrieval work happens.
const minQuestionLength = 3

// AskConfig carries the pipeline's tunable constants. The candidate factor
// and rerank pass-through threshold mirror the retrieval heuristics this
// service was built around; they are configuration, not derived values.
type AskConfig struct {
	TopK            int
	CandidateFactor int
	BroadenBelow    int
	RerankMin       int
	RerankTopN      int
	ContextBudget   int

	RewriteSampling  domain.CompletionRequest
	RerankSampling   domain.CompletionRequest
	GenerateSampling domain.CompletionRequest
}

func (c AskConfig) withDefaults() AskConfig {
	if c.TopK <= 0 {
		c.TopK = 6
	}
	if c.CandidateFactor <= 0 {
		c.CandidateFactor = 2
	}
	if c.BroadenBelow <= 0 {
		c.BroadenBelow = 3
	}
	if c.RerankMin <= 0 {
		c.RerankMin = 3
	}
	if c.RerankTopN <= 0 {
		c.RerankTopN = 6
	}
	if c.ContextBudget <= 0 {
		c.ContextBudget = defaultContextBudget
	}
	return c
}

// AskUseCase answers one question at a time through the full pipeline:
// rewrite, hybrid search, rerank, format, stream generation, cache.
type AskUseCase struct {
	chat     ports.ChatModel
	embedder ports.Embedder
	state    *IndexState
	cache    *cache.Cache
	cfg      AskConfig

	statsMu       sync.Mutex
	questionCount int
	totalDuration time.Duration
}

func NewAskUseCase(
	chat ports.ChatModel,
	embedder ports.Embedder,
	state *IndexState,
	responseCache *cache.Cache,
	cfg AskConfig,
) *AskUseCase {
	return &AskUseCase{
		chat:     chat,
		embedder: embedder,
		state:    state,
		cache:    responseCache,
		cfg:      cfg.withDefaults(),
	}
}

// Ask resolves one question. Fragments of the generated answer are
// forwarded to emit as they arrive; emit may be nil. A cache hit
// short-circuits the whole pipeline and emits the stored answer once.
func (uc *AskUseCase) Ask(ctx context.Context, question string, emit func(delta string) error) (*domain.AskResult, error) {
	start := time.Now()

	question = strings.TrimSpace(question)
	if len(question) < minQuestionLength {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ask",
			errors.New("question too short, please provide more details"))
	}

	key := cache.Key(question)
	if entry, ok := uc.cache.Get(key); ok {
		if emit != nil {
			if err := emit(entry.Answer); err != nil {
				return nil, fmt.Errorf("emit cached answer: %w", err)
			}
		}
		metrics := entry.Metrics
		metrics.Cached = true
		uc.recordQuestion(time.Since(start))
		return &domain.AskResult{Answer: entry.Answer, Metrics: metrics}, nil
	}

	analysis := AnalyzeQuery(question)

	retrievalStart := time.Now()
	searcher := &hybridSearcher{
		chat:            uc.chat,
		embedder:        uc.embedder,
		state:           uc.state,
		rewriteSampling: uc.cfg.RewriteSampling,
		candidateFactor: uc.cfg.CandidateFactor,
	}
	retrieval := searcher.search(ctx, question, uc.cfg.TopK)
	if len(retrieval.Results) < uc.cfg.BroadenBelow {
		retrieval.Results = searcher.broaden(ctx, question, retrieval.Results, uc.cfg.TopK)
	}

	reranked := rerankDocuments(ctx, uc.chat, uc.cfg.RerankSampling, question,
		retrieval.Results, uc.cfg.RerankMin, uc.cfg.RerankTopN)
	retrievalDuration := time.Since(retrievalStart)

	contextBlock := formatContext(reranked, analysis, uc.cfg.ContextBudget)
	quality := contextQuality(len(reranked), len(contextBlock))

	slog.Info("retrieval_complete",
		"status", string(retrieval.Status),
		"docs", len(reranked),
		"quality", quality,
		"complexity", string(analysis.Level),
		"sub_search_failures", len(retrieval.Failures),
		"duration_ms", retrievalDuration.Milliseconds(),
	)

	generationStart := time.Now()
	sampling := uc.cfg.GenerateSampling
	sampling.Prompt = buildAnswerPrompt(question, contextBlock, analysis.Summary())
	answer, err := uc.chat.Stream(ctx, sampling, emit)
	if err != nil {
		// Generation failure aborts only this question; nothing is cached.
		return nil, fmt.Errorf("generate answer: %w", err)
	}
	generationDuration := time.Since(generationStart)

	tagged := domain.Retrieval{Results: reranked}
	metrics := domain.AskMetrics{
		Docs:         len(reranked),
		VectorDocs:   tagged.VectorCount(),
		BM25Docs:     tagged.BM25Count(),
		Quality:      quality,
		Complexity:   string(analysis.Level),
		ContextChars: len(contextBlock),
		RetrievalMS:  retrievalDuration.Milliseconds(),
		GenerationMS: generationDuration.Milliseconds(),
	}

	uc.cache.Put(key, answer, metrics)
	uc.recordQuestion(time.Since(start))

	return &domain.AskResult{Answer: answer, Sources: reranked, Metrics: metrics}, nil
}

// Stats reports pipeline counters for the stats surface.
type Stats struct {
	Questions        int           `json:"questions"`
	AverageDuration  time.Duration `json:"-"`
	AverageDurationS float64       `json:"avg_duration_seconds"`
	CachedAnswers    int           `json:"cached_answers"`
	ChunkCount       int           `json:"chunk_count"`
	VectorCount      int           `json:"vector_count"`
	KeywordCount     int           `json:"keyword_count"`
	VectorReady      bool          `json:"vector_ready"`
	KeywordReady     bool          `json:"keyword_ready"`
	CorpusHash       string        `json:"corpus_hash"`
	IndexBuiltAt     time.Time     `json:"index_built_at"`
}

func (uc *AskUseCase) Stats() Stats {
	uc.statsMu.Lock()
	questions := uc.questionCount
	total := uc.totalDuration
	uc.statsMu.Unlock()

	chunkCount, vectorCount, keywordCount, builtAt := uc.state.Stats()
	_, vectorReady := uc.state.VectorIndex()
	_, keywordReady := uc.state.KeywordIndex()

	stats := Stats{
		Questions:     questions,
		CachedAnswers: uc.cache.Len(),
		ChunkCount:    chunkCount,
		VectorCount:   vectorCount,
		KeywordCount:  keywordCount,
		VectorReady:   vectorReady,
		KeywordReady:  keywordReady,
		CorpusHash:    uc.state.CorpusHash(),
		IndexBuiltAt:  builtAt,
	}
	if questions > 0 {
		stats.AverageDuration = total / time.Duration(questions)
		stats.AverageDurationS = stats.AverageDuration.Seconds()
	}
	return stats
}

// Cache exposes the response cache for the cache inspection surface.
func (uc *AskUseCase) Cache() *cache.Cache {
	return uc.cache
}

func (uc *AskUseCase) recordQuestion(d time.Duration) {
	uc.statsMu.Lock()
	uc.questionCount++
	uc.totalDuration += d
	uc.statsMu.Unlock()
}

func contextQuality(docCount, contextChars int) string {
	switch {
	case docCount >= 3 && contextChars > 500:
		return "High"
	case docCount >= 2:
		return "Medium"
	default:
		return "Low"
	}
}
