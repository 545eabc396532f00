package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/hybrid-rag/internal/cache"
	"github.com/kirillkom/hybrid-rag/internal/core/domain"
	"github.com/kirillkom/hybrid-rag/internal/core/ports"
)

const testAnswer = "Confidence: High\nAnswer: Paris is the capital of France.\nSources: geo.pdf"

func newAskFixture(chat *scriptedChat, vector ports.VectorIndex, keyword ports.KeywordIndex, chunks []domain.Chunk) *AskUseCase {
	state := NewIndexState()
	state.Swap(vector, keyword, chunks, "hash-1")
	return NewAskUseCase(chat, &fakeEmbedder{dim: 4}, state, cache.New(0, 0), AskConfig{})
}

func TestAskRejectsShortQuestion(t *testing.T) {
	chat := &scriptedChat{}
	uc := newAskFixture(chat, nil, nil, testChunks())

	_, err := uc.Ask(context.Background(), "  hi ", nil)

	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("err = %v, want invalid input", err)
	}
	if chat.promptCount() != 0 {
		t.Fatal("short question must be rejected before any model call")
	}
}

func TestAskFullPipeline(t *testing.T) {
	vector := &fakeVectorIndex{hits: []ports.VectorHit{{ChunkID: "c1", Score: 0.9}}}
	keyword := &fakeKeywordIndex{hits: []ports.KeywordHit{{ChunkID: "c3", Score: 2.1}}}
	chat := &scriptedChat{
		err:        errors.New("rewrite and rerank unavailable"),
		streamText: testAnswer,
	}
	uc := newAskFixture(chat, vector, keyword, testChunks())

	var streamed strings.Builder
	result, err := uc.Ask(context.Background(), "What is the capital of France?", func(delta string) error {
		streamed.WriteString(delta)
		return nil
	})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}

	if result.Answer != testAnswer {
		t.Fatalf("answer = %q", result.Answer)
	}
	if streamed.String() != testAnswer {
		t.Fatalf("streamed = %q, want the full answer", streamed.String())
	}
	if result.Metrics.Cached {
		t.Fatal("first ask must not report a cache hit")
	}
	if result.Metrics.Docs != 2 || result.Metrics.VectorDocs != 1 || result.Metrics.BM25Docs != 1 {
		t.Fatalf("metrics = %+v", result.Metrics)
	}
	if result.Metrics.Quality != "Medium" {
		t.Fatalf("quality = %q, want Medium for 2 docs", result.Metrics.Quality)
	}
}

func TestAskBroadensSparseRetrieval(t *testing.T) {
	// One hit on the first pass forces a second, broader query built from
	// the first three terms of the question.
	vector := &fakeVectorIndex{hits: []ports.VectorHit{{ChunkID: "c1", Score: 0.9}}}
	keyword := &fakeKeywordIndex{}
	chat := &scriptedChat{
		err:        errors.New("rewrite and rerank unavailable"),
		streamText: testAnswer,
	}
	uc := newAskFixture(chat, vector, keyword, testChunks())

	result, err := uc.Ask(context.Background(), "What IS the Capital of France?", nil)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}

	if len(keyword.queries) != 2 {
		t.Fatalf("keyword queries = %v, want the original plus a broader one", keyword.queries)
	}
	if keyword.queries[1] != "what is the" {
		t.Fatalf("broader query = %q, want %q", keyword.queries[1], "what is the")
	}
	// The broader pass falls back to raw chunks; merging dedupes the c1
	// already found so every chunk appears once.
	if result.Metrics.Docs != len(testChunks()) {
		t.Fatalf("docs = %d, want %d after merge", result.Metrics.Docs, len(testChunks()))
	}
}

func TestAskSkipsBroadeningWhenRetrievalIsRich(t *testing.T) {
	vector := &fakeVectorIndex{hits: []ports.VectorHit{
		{ChunkID: "c1", Score: 0.9},
		{ChunkID: "c2", Score: 0.8},
		{ChunkID: "c3", Score: 0.7},
	}}
	keyword := &fakeKeywordIndex{}
	chat := &scriptedChat{
		err:        errors.New("rewrite and rerank unavailable"),
		streamText: testAnswer,
	}
	uc := newAskFixture(chat, vector, keyword, testChunks())

	if _, err := uc.Ask(context.Background(), "What is the capital of France?", nil); err != nil {
		t.Fatalf("Ask: %v", err)
	}

	if len(keyword.queries) != 1 {
		t.Fatalf("keyword queries = %v, want only the original", keyword.queries)
	}
}

func TestAskCachesAndShortCircuits(t *testing.T) {
	vector := &fakeVectorIndex{hits: []ports.VectorHit{{ChunkID: "c1", Score: 0.9}}}
	chat := &scriptedChat{
		err:        errors.New("rewrite and rerank unavailable"),
		streamText: testAnswer,
	}
	uc := newAskFixture(chat, vector, nil, testChunks())

	if _, err := uc.Ask(context.Background(), "What is the capital of France?", nil); err != nil {
		t.Fatalf("first Ask: %v", err)
	}
	callsAfterFirst := chat.promptCount()

	// Same question, different case and whitespace: must hit the cache.
	var streamed strings.Builder
	result, err := uc.Ask(context.Background(), "  WHAT IS THE CAPITAL OF FRANCE?  ", func(delta string) error {
		streamed.WriteString(delta)
		return nil
	})
	if err != nil {
		t.Fatalf("second Ask: %v", err)
	}

	if !result.Metrics.Cached {
		t.Fatal("second ask must report a cache hit")
	}
	if result.Answer != testAnswer || streamed.String() != testAnswer {
		t.Fatalf("cached answer = %q, streamed = %q", result.Answer, streamed.String())
	}
	if chat.promptCount() != callsAfterFirst {
		t.Fatal("cache hit must not call the model")
	}
}

func TestAskDoesNotCacheShortAnswers(t *testing.T) {
	vector := &fakeVectorIndex{hits: []ports.VectorHit{{ChunkID: "c1", Score: 0.9}}}
	chat := &scriptedChat{
		err:        errors.New("rewrite and rerank unavailable"),
		streamText: "I don't know.",
	}
	uc := newAskFixture(chat, vector, nil, testChunks())

	if _, err := uc.Ask(context.Background(), "What is the capital of France?", nil); err != nil {
		t.Fatalf("Ask: %v", err)
	}

	if uc.Cache().Len() != 0 {
		t.Fatalf("short answer cached, cache len = %d", uc.Cache().Len())
	}
}

func TestAskGenerationFailure(t *testing.T) {
	vector := &fakeVectorIndex{hits: []ports.VectorHit{{ChunkID: "c1", Score: 0.9}}}
	chat := &scriptedChat{
		err:       errors.New("rewrite and rerank unavailable"),
		streamErr: errors.New("model offline"),
	}
	uc := newAskFixture(chat, vector, nil, testChunks())

	_, err := uc.Ask(context.Background(), "What is the capital of France?", nil)

	if err == nil {
		t.Fatal("expected generation error")
	}
	if uc.Cache().Len() != 0 {
		t.Fatal("failed generation must not populate the cache")
	}
}

func TestAskStatsCounters(t *testing.T) {
	vector := &fakeVectorIndex{hits: []ports.VectorHit{{ChunkID: "c1", Score: 0.9}}}
	chat := &scriptedChat{
		err:        errors.New("rewrite and rerank unavailable"),
		streamText: testAnswer,
	}
	uc := newAskFixture(chat, vector, nil, testChunks())

	if _, err := uc.Ask(context.Background(), "What is the capital of France?", nil); err != nil {
		t.Fatalf("Ask: %v", err)
	}

	stats := uc.Stats()
	if stats.Questions != 1 {
		t.Fatalf("questions = %d, want 1", stats.Questions)
	}
	if stats.CachedAnswers != 1 {
		t.Fatalf("cached answers = %d, want 1", stats.CachedAnswers)
	}
	if stats.ChunkCount != len(testChunks()) {
		t.Fatalf("chunk count = %d, want %d", stats.ChunkCount, len(testChunks()))
	}
	if !stats.VectorReady || stats.KeywordReady {
		t.Fatalf("readiness = %v/%v, want vector only", stats.VectorReady, stats.KeywordReady)
	}
	if stats.CorpusHash != "hash-1" {
		t.Fatalf("corpus hash = %q", stats.CorpusHash)
	}
}
