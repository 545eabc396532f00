package domain

// CompletionRequest carries one prompt plus its sampling parameters. The
// rewriter, reranker and answer generator share one provider and differ only
// in these parameters.
type CompletionRequest struct {
	Prompt        string
	Temperature   float64
	MaxTokens     int
	ContextWindow int
}
