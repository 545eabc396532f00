package domain

import "strings"

type ComplexityLevel string

const (
	ComplexityLow    ComplexityLevel = "low"
	ComplexityMedium ComplexityLevel = "medium"
	ComplexityHigh   ComplexityLevel = "high"
)

// QueryAnalysis classifies a question by five boolean indicators. It feeds
// both the context budget and the generation prompt.
type QueryAnalysis struct {
	Comparison bool `json:"comparison"`
	Analytical bool `json:"analytical"`
	Factual    bool `json:"factual"`
	Numerical  bool `json:"numerical"`
	Temporal   bool `json:"temporal"`

	Score             int             `json:"score"`
	WordCount         int             `json:"word_count"`
	Level             ComplexityLevel `json:"level"`
	RequiresSynthesis bool            `json:"requires_synthesis"`
}

// Indicators lists the names of matched indicator categories in a fixed order.
func (a QueryAnalysis) Indicators() []string {
	out := make([]string, 0, 5)
	if a.Comparison {
		out = append(out, "comparison")
	}
	if a.Analytical {
		out = append(out, "analytical")
	}
	if a.Factual {
		out = append(out, "factual")
	}
	if a.Numerical {
		out = append(out, "numerical")
	}
	if a.Temporal {
		out = append(out, "temporal")
	}
	return out
}

// Summary renders the analysis as a one-line string for prompting.
func (a QueryAnalysis) Summary() string {
	return "Complexity: " + string(a.Level) + ", Type: " + strings.Join(a.Indicators(), ", ")
}
