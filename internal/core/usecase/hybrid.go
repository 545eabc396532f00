package usecase

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"log/slog"
	"strings"

	"github.com/kirillkom/hybrid-rag/internal/core/domain"
	"github.com/kirillkom/hybrid-rag/internal/core/ports"
)

const (
	// fingerprintPrefix is how much chunk content feeds the dedup hash.
	fingerprintPrefix = 200
	// broadenPrefix keys the merge dedup after a broader re-query.
	broadenPrefix = 100
)

type hybridSearcher struct {
	chat     ports.ChatModel
	embedder ports.Embedder
	state    *IndexState

	rewriteSampling domain.CompletionRequest
	// candidateFactor bounds the deduplicated candidate list to
	// candidateFactor*k, headroom for the reranker to discard weak matches.
	candidateFactor int
}

// search runs the full variant fan-out. It never returns an error: every
// sub-search failure is recorded on the outcome and drops only its own
// results.
func (h *hybridSearcher) search(ctx context.Context, question string, k int) domain.Retrieval {
	if k <= 0 {
		k = 6
	}
	halfK := (k + 1) / 2

	variants := rewriteQuery(ctx, h.chat, h.rewriteSampling, question)

	var (
		candidates []domain.TaggedResult
		failures   []domain.SubSearchFailure
	)

	for _, variant := range variants {
		vectorResults, err := h.vectorSearch(ctx, variant, halfK)
		if err != nil {
			slog.Warn("vector_sub_search_failed", "variant", variant, "error", err)
			failures = append(failures, domain.SubSearchFailure{
				Variant: variant,
				Kind:    domain.SearchTypeVector,
				Reason:  err.Error(),
			})
		}
		candidates = append(candidates, vectorResults...)

		keywordResults, err := h.keywordSearch(ctx, variant, halfK)
		if err != nil {
			slog.Warn("bm25_sub_search_failed", "variant", variant, "error", err)
			failures = append(failures, domain.SubSearchFailure{
				Variant: variant,
				Kind:    domain.SearchTypeBM25,
				Reason:  err.Error(),
			})
		}
		candidates = append(candidates, keywordResults...)
	}

	deduped := dedupeByFingerprint(candidates)

	if len(deduped) == 0 {
		chunks := h.state.Chunks()
		if len(chunks) == 0 {
			return domain.Retrieval{Status: domain.RetrievalEmpty, Failures: failures}
		}
		if k > len(chunks) {
			k = len(chunks)
		}
		fallback := make([]domain.TaggedResult, 0, k)
		for _, c := range chunks[:k] {
			fallback = append(fallback, domain.TaggedResult{
				Chunk:        c,
				SearchType:   domain.SearchTypeFallback,
				QueryVariant: question,
			})
		}
		return domain.Retrieval{Results: fallback, Status: domain.RetrievalFallback, Failures: failures}
	}

	limit := k * h.candidateFactor
	if limit <= 0 {
		limit = k * 2
	}
	if len(deduped) > limit {
		deduped = deduped[:limit]
	}
	return domain.Retrieval{Results: deduped, Status: domain.RetrievalHybrid, Failures: failures}
}

// broaden re-queries with the first three terms of the question after a
// sparse retrieval and merges the extra hits in, keeping the first
// occurrence of each content prefix.
func (h *hybridSearcher) broaden(ctx context.Context, question string, current []domain.TaggedResult, k int) []domain.TaggedResult {
	terms := strings.Fields(strings.ToLower(question))
	if len(terms) < 2 {
		return current
	}
	if len(terms) > 3 {
		terms = terms[:3]
	}
	broader := h.search(ctx, strings.Join(terms, " "), k)

	seen := make(map[string]struct{}, len(current)+len(broader.Results))
	merged := make([]domain.TaggedResult, 0, len(current)+len(broader.Results))
	add := func(results []domain.TaggedResult) {
		for _, r := range results {
			key := cutRunes(r.Content, broadenPrefix)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, r)
		}
	}
	add(current)
	add(broader.Results)
	return merged
}

func (h *hybridSearcher) vectorSearch(ctx context.Context, variant string, k int) ([]domain.TaggedResult, error) {
	index, ok := h.state.VectorIndex()
	if !ok {
		return nil, nil
	}

	queryVector, err := h.embedder.EmbedQuery(ctx, variant)
	if err != nil {
		return nil, err
	}
	hits, err := index.Search(queryVector, k)
	if err != nil {
		return nil, err
	}
	return h.resolveHitIDs(hits, nil, variant, domain.SearchTypeVector), nil
}

func (h *hybridSearcher) keywordSearch(ctx context.Context, variant string, k int) ([]domain.TaggedResult, error) {
	index, ok := h.state.KeywordIndex()
	if !ok {
		return nil, nil
	}

	hits, err := index.Search(ctx, variant, k)
	if err != nil {
		return nil, err
	}
	return h.resolveHitIDs(nil, hits, variant, domain.SearchTypeBM25), nil
}

func (h *hybridSearcher) resolveHitIDs(vec []ports.VectorHit, kw []ports.KeywordHit, variant string, searchType domain.SearchType) []domain.TaggedResult {
	ids := make([]string, 0, len(vec)+len(kw))
	for _, hit := range vec {
		ids = append(ids, hit.ChunkID)
	}
	for _, hit := range kw {
		ids = append(ids, hit.ChunkID)
	}

	out := make([]domain.TaggedResult, 0, len(ids))
	for _, id := range ids {
		chunk, ok := h.state.ChunkByID(id)
		if !ok {
			// Stale hit from an index swap mid-flight; skip it.
			continue
		}
		out = append(out, domain.TaggedResult{
			Chunk:        chunk,
			SearchType:   searchType,
			QueryVariant: variant,
		})
	}
	return out
}

// dedupeByFingerprint keeps the first occurrence of each content
// fingerprint, preserving order.
func dedupeByFingerprint(results []domain.TaggedResult) []domain.TaggedResult {
	seen := make(map[string]struct{}, len(results))
	out := make([]domain.TaggedResult, 0, len(results))
	for _, r := range results {
		fp := contentFingerprint(r.Content)
		if _, dup := seen[fp]; dup {
			continue
		}
		seen[fp] = struct{}{}
		out = append(out, r)
	}
	return out
}

func contentFingerprint(content string) string {
	sum := md5.Sum([]byte(cutRunes(content, fingerprintPrefix)))
	return hex.EncodeToString(sum[:])
}
