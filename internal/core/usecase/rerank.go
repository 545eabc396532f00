package usecase

import (
	"context"
	"log/slog"
	"regexp"
	"sort"
	"strconv"

	"github.com/kirillkom/hybrid-rag/internal/core/domain"
	"github.com/kirillkom/hybrid-rag/internal/core/ports"
)

const defaultRelevanceScore = 5

var scorePattern = regexp.MustCompile(`(\d+)`)

// rerankDocuments scores each candidate 1-10 against the original question
// and keeps the top topN. Lists of minSize or fewer pass through untouched.
// The sort is deliberately stable so equal scores keep their incoming order.
func rerankDocuments(
	ctx context.Context,
	chat ports.ChatModel,
	sampling domain.CompletionRequest,
	question string,
	docs []domain.TaggedResult,
	minSize, topN int,
) []domain.TaggedResult {
	if len(docs) <= minSize {
		return docs
	}
	if topN <= 0 {
		topN = 6
	}

	scores := make([]int, len(docs))
	for i, doc := range docs {
		scores[i] = scoreDocument(ctx, chat, sampling, question, doc.Content)
	}

	ranked := make([]domain.TaggedResult, len(docs))
	copy(ranked, docs)
	// Keep ranked/scores aligned: sort an index permutation, not the data.
	order := make([]int, len(docs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return scores[order[i]] > scores[order[j]]
	})

	out := make([]domain.TaggedResult, 0, topN)
	for _, idx := range order {
		out = append(out, ranked[idx])
		if len(out) == topN {
			break
		}
	}
	return out
}

// scoreDocument never fails: parse errors and model errors both yield the
// default score so one bad call cannot abort the rerank of its neighbors.
func scoreDocument(ctx context.Context, chat ports.ChatModel, sampling domain.CompletionRequest, question, content string) int {
	sampling.Prompt = buildScorePrompt(question, content)
	response, err := chat.Complete(ctx, sampling)
	if err != nil {
		slog.Warn("rerank_score_failed", "error", err)
		return defaultRelevanceScore
	}

	match := scorePattern.FindString(response)
	if match == "" {
		return defaultRelevanceScore
	}
	score, err := strconv.Atoi(match)
	if err != nil {
		return defaultRelevanceScore
	}
	if score < 1 {
		return 1
	}
	if score > 10 {
		return 10
	}
	return score
}
