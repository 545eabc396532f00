package usecase

import (
	"regexp"
	"strings"

	"github.com/kirillkom/hybrid-rag/internal/core/domain"
)

var (
	comparisonTerms = []string{"compare", "versus", "vs", "difference", "better", "worse"}
	analyticalTerms = []string{"analyze", "explain why", "how does", "what causes"}
	factualTerms    = []string{"what is", "who is", "when did", "where is"}
	temporalTerms   = []string{"when", "before", "after", "during", "timeline"}

	numericalPattern = regexp.MustCompile(`\d+|how many|how much|percentage|rate`)
)

// AnalyzeQuery classifies a question by keyword/regex membership checks.
// Pure function; a failure mode does not exist, so callers never need a
// fallback label.
func AnalyzeQuery(question string) domain.QueryAnalysis {
	lower := strings.ToLower(question)

	analysis := domain.QueryAnalysis{
		Comparison: containsAny(lower, comparisonTerms),
		Analytical: containsAny(lower, analyticalTerms),
		Factual:    containsAny(lower, factualTerms),
		Numerical:  numericalPattern.MatchString(lower),
		Temporal:   containsAny(lower, temporalTerms),
		WordCount:  len(strings.Fields(question)),
	}

	for _, hit := range []bool{analysis.Comparison, analysis.Analytical, analysis.Factual, analysis.Numerical, analysis.Temporal} {
		if hit {
			analysis.Score++
		}
	}

	switch {
	case analysis.Score >= 2 || analysis.WordCount > 15:
		analysis.Level = domain.ComplexityHigh
	case analysis.Score == 1 || analysis.WordCount > 8:
		analysis.Level = domain.ComplexityMedium
	default:
		analysis.Level = domain.ComplexityLow
	}

	analysis.RequiresSynthesis = analysis.Comparison || analysis.Analytical
	return analysis
}

func containsAny(s string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(s, term) {
			return true
		}
	}
	return false
}
