package ports

import (
	"context"
	"io"

	"github.com/kirillkom/hybrid-rag/internal/core/domain"
)

// Embedder builds vectors for chunks and query text. Implementations select
// a concrete model at startup; Embed fails only after selection succeeded.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// ChatModel is the shared completion provider. Stream forwards text
// fragments to emit as they arrive and returns the accumulated text;
// returning from Stream is the stream-complete signal.
type ChatModel interface {
	Complete(ctx context.Context, req domain.CompletionRequest) (string, error)
	Stream(ctx context.Context, req domain.CompletionRequest, emit func(delta string) error) (string, error)
}

// VectorHit is one vector-index match.
type VectorHit struct {
	ChunkID string
	Score   float64
}

// VectorIndex stores chunk vectors and answers top-k similarity queries.
// Merge folds another index of the same implementation into this one;
// merging must never run concurrently with itself.
type VectorIndex interface {
	Add(ids []string, vectors [][]float32) error
	Search(query []float32, k int) ([]VectorHit, error)
	Merge(other VectorIndex) error
	Count() int
	Save(path string) error
}

// VectorIndexFactory creates empty indexes and loads persisted snapshots.
type VectorIndexFactory interface {
	New() VectorIndex
	Load(path string) (VectorIndex, error)
}

// KeywordHit is one keyword-index match.
type KeywordHit struct {
	ChunkID string
	Score   float64
}

// KeywordIndex ranks chunks by lexical overlap (BM25-style).
type KeywordIndex interface {
	Search(ctx context.Context, query string, k int) ([]KeywordHit, error)
	Count() int
	Close() error
}

// KeywordIndexFactory builds a keyword index over a full chunk set.
type KeywordIndexFactory interface {
	Build(chunks []domain.Chunk) (KeywordIndex, error)
}

// CorpusSource scans the document directory and extracts individual files.
type CorpusSource interface {
	ListFiles(ctx context.Context) ([]string, error)
	// Fingerprint hashes the (filename, mtime) pairs of all supported files.
	Fingerprint(ctx context.Context) (string, error)
	Extract(ctx context.Context, path string) (*domain.ExtractedDocument, error)
}

// Chunker splits extracted text into overlapping spans with start offsets.
type Chunker interface {
	Split(text string) []domain.Span
}

// CorpusRepository persists documents, chunks and the corpus fingerprint.
type CorpusRepository interface {
	EnsureSchema(ctx context.Context) error
	ReplaceCorpus(ctx context.Context, docs []domain.Document, chunks []domain.Chunk, corpusHash string) error
	LoadChunks(ctx context.Context) ([]domain.Chunk, error)
	CorpusHash(ctx context.Context) (string, error)
	CreateDocument(ctx context.Context, doc *domain.Document) error
	GetDocumentByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateDocumentStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
}

// ObjectStorage stores uploaded source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes corpus lifecycle events.
type MessageQueue interface {
	PublishDocumentIngested(ctx context.Context, documentID string) error
	SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error
	PublishIndexRebuilt(ctx context.Context, corpusHash string) error
	SubscribeIndexRebuilt(ctx context.Context, handler func(context.Context, string) error) error
}
