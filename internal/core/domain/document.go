package domain

import "time"

type DocumentStatus string

const (
	StatusUploaded DocumentStatus = "uploaded"
	StatusIndexing DocumentStatus = "indexing"
	StatusIndexed  DocumentStatus = "indexed"
	StatusFailed   DocumentStatus = "failed"
)

// Document is the metadata record for one source file in the corpus.
type Document struct {
	ID          string         `json:"id"`
	Filename    string         `json:"filename"`
	FileType    string         `json:"file_type"`
	MimeType    string         `json:"mime_type,omitempty"`
	StoragePath string         `json:"storage_path"`
	Pages       int            `json:"pages"`
	ChunkCount  int            `json:"chunk_count"`
	Status      DocumentStatus `json:"status"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Section is one page- or sheet-level unit of extracted text. Page is
// 1-based for paginated formats and 0 when the format has no pages.
type Section struct {
	Page int
	Text string
}

// ExtractedDocument is the raw extraction result for one source file,
// before chunking.
type ExtractedDocument struct {
	Filename string
	FileType string
	Sections []Section
}

// Span is one split piece of a section's text with its start offset in the
// original text.
type Span struct {
	Text  string
	Start int
}
