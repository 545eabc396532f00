package usecase

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/hybrid-rag/internal/core/domain"
)

const (
	// NoContextMessage is returned verbatim when nothing was retrieved.
	NoContextMessage = "No relevant information found."

	defaultContextBudget  = 3000
	highComplexityBonus   = 500
	maxFormattedDocuments = 6

	sentenceRetainRatio = 0.6
	wordRetainRatio     = 0.8
)

// formatContext renders reranked documents into a bounded text block with
// source attribution. Vector results lead, then bm25, then everything else,
// each group keeping its incoming order.
func formatContext(docs []domain.TaggedResult, analysis domain.QueryAnalysis, budget int) string {
	if len(docs) == 0 {
		return NoContextMessage
	}
	if budget <= 0 {
		budget = defaultContextBudget
	}
	if analysis.Level == domain.ComplexityHigh {
		budget += highComplexityBonus
	}

	vectorTotal := 0
	bm25Total := 0
	for _, doc := range docs {
		switch doc.SearchType {
		case domain.SearchTypeVector:
			vectorTotal++
		case domain.SearchTypeBM25:
			bm25Total++
		}
	}

	prioritized := prioritizeBySearchType(docs)
	if len(prioritized) > maxFormattedDocuments {
		prioritized = prioritized[:maxFormattedDocuments]
	}

	parts := make([]string, 0, len(prioritized))
	total := 0
	for i, doc := range prioritized {
		content := strings.TrimSpace(doc.Content)
		if content == "" || total >= budget {
			continue
		}

		label := buildSourceLabel(doc)
		remaining := budget - total
		if len(content) > remaining-len(label) {
			content = truncateAtBoundary(content, remaining-len(label)-3)
			if content == "" {
				continue
			}
		}

		formatted := fmt.Sprintf("Document %d: %s%s", i+1, label, content)
		parts = append(parts, formatted)
		total += len(formatted)
	}

	summary := fmt.Sprintf(
		"\n[Search Summary: Retrieved %d documents using hybrid search (Vector: %d, BM25: %d)]",
		len(docs), vectorTotal, bm25Total,
	)
	return strings.Join(parts, "\n\n") + summary
}

func prioritizeBySearchType(docs []domain.TaggedResult) []domain.TaggedResult {
	out := make([]domain.TaggedResult, 0, len(docs))
	for _, doc := range docs {
		if doc.SearchType == domain.SearchTypeVector {
			out = append(out, doc)
		}
	}
	for _, doc := range docs {
		if doc.SearchType == domain.SearchTypeBM25 {
			out = append(out, doc)
		}
	}
	for _, doc := range docs {
		if doc.SearchType != domain.SearchTypeVector && doc.SearchType != domain.SearchTypeBM25 {
			out = append(out, doc)
		}
	}
	return out
}

// buildSourceLabel tags vector/bm25 results with their search method; other
// kinds get the bare source reference.
func buildSourceLabel(doc domain.TaggedResult) string {
	source := doc.Source
	if source == "" {
		source = "Unknown"
	}

	method := ""
	if doc.SearchType == domain.SearchTypeVector || doc.SearchType == domain.SearchTypeBM25 {
		method = "[" + strings.ToUpper(string(doc.SearchType)) + "] "
	}

	if doc.Page > 0 && method != "" {
		return fmt.Sprintf("%s[Source: %s, Page: %d] ", method, source, doc.Page)
	}
	return fmt.Sprintf("%s[Source: %s] ", method, source)
}

// truncateAtBoundary cuts content to at most limit characters, preferring a
// sentence end that keeps >=60% of the window, then a space that keeps
// >=80%, then a hard cut with an ellipsis.
func truncateAtBoundary(content string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if len(content) <= limit {
		return content
	}
	window := cutRunes(content, limit)

	sentenceEnd := -1
	for _, terminal := range []string{".", "!", "?"} {
		if idx := strings.LastIndex(window, terminal); idx > sentenceEnd {
			sentenceEnd = idx
		}
	}
	if sentenceEnd > int(float64(len(window))*sentenceRetainRatio) {
		return window[:sentenceEnd+1]
	}

	if wordEnd := strings.LastIndex(window, " "); wordEnd > int(float64(len(window))*wordRetainRatio) {
		return window[:wordEnd] + "..."
	}
	return window + "..."
}

// cutRunes truncates s to at most limit bytes, stepping back so a
// multi-byte rune is never split.
func cutRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
