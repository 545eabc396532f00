package ports

import (
	"context"
	"io"

	"github.com/kirillkom/hybrid-rag/internal/core/domain"
)

// QuestionService is the inbound contract for question answering. Answer
// fragments are forwarded to emit as they are generated; emit may be nil
// when the caller does not consume the stream incrementally.
type QuestionService interface {
	Ask(ctx context.Context, question string, emit func(delta string) error) (*domain.AskResult, error)
}

// DocumentIngestor is the inbound contract for document upload.
type DocumentIngestor interface {
	Upload(ctx context.Context, filename, mimeType string, body io.Reader) (*domain.Document, error)
}

// IndexRebuilder is the inbound contract for corpus (re)indexing.
type IndexRebuilder interface {
	// EnsureFresh loads the persisted corpus when its fingerprint still
	// matches the document directory, and rebuilds otherwise.
	EnsureFresh(ctx context.Context) error
	Rebuild(ctx context.Context) error
	// Reload swaps in the state persisted by another process.
	Reload(ctx context.Context) error
}
