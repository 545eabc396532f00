package domain

// SearchType identifies which retrieval path produced a result.
type SearchType string

const (
	SearchTypeVector   SearchType = "vector"
	SearchTypeBM25     SearchType = "bm25"
	SearchTypeFallback SearchType = "fallback"
)

// Chunk is a contiguous slice of a source document. Immutable once created
// by the ingestion pipeline; both indexes consume the same chunk set.
type Chunk struct {
	ID          string `json:"id"`
	DocumentID  string `json:"document_id"`
	Source      string `json:"source"`
	Page        int    `json:"page,omitempty"`
	FileType    string `json:"file_type"`
	StartOffset int    `json:"start_offset"`
	ChunkIndex  int    `json:"chunk_index"`
	Content     string `json:"content"`
}

// TaggedResult is a Chunk plus per-search retrieval metadata. Created fresh
// on every search call, never persisted.
type TaggedResult struct {
	Chunk
	SearchType   SearchType `json:"search_type"`
	QueryVariant string     `json:"query_variant"`
}

// RetrievalStatus distinguishes "got fewer results" from "got none".
type RetrievalStatus string

const (
	RetrievalHybrid   RetrievalStatus = "hybrid"
	RetrievalFallback RetrievalStatus = "fallback"
	RetrievalEmpty    RetrievalStatus = "empty"
)

// SubSearchFailure records a recovered failure of one variant's sub-search.
type SubSearchFailure struct {
	Variant string     `json:"variant"`
	Kind    SearchType `json:"kind"`
	Reason  string     `json:"reason"`
}

// Retrieval is the outcome of one hybrid search call. Sub-search failures
// degrade the result set, they never surface as errors.
type Retrieval struct {
	Results  []TaggedResult     `json:"results"`
	Status   RetrievalStatus    `json:"status"`
	Failures []SubSearchFailure `json:"failures,omitempty"`
}

// VectorCount returns how many results came from the vector index.
func (r Retrieval) VectorCount() int {
	return r.countByType(SearchTypeVector)
}

// BM25Count returns how many results came from the keyword index.
func (r Retrieval) BM25Count() int {
	return r.countByType(SearchTypeBM25)
}

func (r Retrieval) countByType(t SearchType) int {
	n := 0
	for _, res := range r.Results {
		if res.SearchType == t {
			n++
		}
	}
	return n
}

// AskMetrics is the per-question retrieval and generation summary. A copy is
// stored alongside cached answers.
type AskMetrics struct {
	Docs         int    `json:"docs"`
	VectorDocs   int    `json:"vector_docs"`
	BM25Docs     int    `json:"bm25_docs"`
	Quality      string `json:"quality"`
	Complexity   string `json:"complexity"`
	ContextChars int    `json:"context_chars"`
	RetrievalMS  int64  `json:"retrieval_ms"`
	GenerationMS int64  `json:"generation_ms"`
	Cached       bool   `json:"cached"`
}

// AskResult is the final answer to one question.
type AskResult struct {
	Answer  string         `json:"answer"`
	Sources []TaggedResult `json:"sources,omitempty"`
	Metrics AskMetrics     `json:"metrics"`
}
