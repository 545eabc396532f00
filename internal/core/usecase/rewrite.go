package usecase

import (
	"context"
	"log/slog"
	"strings"

	"github.com/kirillkom/hybrid-rag/internal/core/domain"
	"github.com/kirillkom/hybrid-rag/internal/core/ports"
)

// maxQueryVariants bounds the variant set to the original plus three rewrites.
const maxQueryVariants = 4

// rewriteQuery asks the model for alternative phrasings and parses the
// numbered lines. Any failure degrades to the original question alone;
// this function never returns an error.
func rewriteQuery(ctx context.Context, chat ports.ChatModel, sampling domain.CompletionRequest, question string) []string {
	original := strings.TrimSpace(question)
	variants := []string{original}

	sampling.Prompt = buildRewritePrompt(original)
	response, err := chat.Complete(ctx, sampling)
	if err != nil {
		slog.Warn("query_rewrite_failed", "error", err)
		return variants
	}

	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		variant, ok := stripNumberPrefix(line)
		if !ok || variant == "" {
			continue
		}
		if containsString(variants, variant) {
			continue
		}
		variants = append(variants, variant)
		if len(variants) == maxQueryVariants {
			break
		}
	}
	return variants
}

// stripNumberPrefix accepts lines shaped like "1. ..." through "3. ...".
func stripNumberPrefix(line string) (string, bool) {
	for _, prefix := range []string{"1.", "2.", "3."} {
		if strings.HasPrefix(line, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(line, prefix)), true
		}
	}
	return "", false
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
