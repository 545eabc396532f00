package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/hybrid-rag/internal/core/domain"
	"github.com/kirillkom/hybrid-rag/internal/core/ports"
)

var supportedExtensions = map[string]struct{}{
	".pdf":  {},
	".docx": {},
	".doc":  {},
	".xlsx": {},
	".xls":  {},
	".txt":  {},
	".md":   {},
}

// IngestUseCase stores an uploaded document and notifies the indexing worker.
type IngestUseCase struct {
	repo    ports.CorpusRepository
	storage ports.ObjectStorage
	queue   ports.MessageQueue
}

func NewIngestUseCase(repo ports.CorpusRepository, storage ports.ObjectStorage, queue ports.MessageQueue) *IngestUseCase {
	return &IngestUseCase{repo: repo, storage: storage, queue: queue}
}

// Upload validates and persists one document, then publishes an ingestion
// event so the worker picks it up for indexing.
func (uc *IngestUseCase) Upload(ctx context.Context, filename, mimeType string, body io.Reader) (*domain.Document, error) {
	const op = "ingest.Upload"

	filename = filepath.Base(strings.TrimSpace(filename))
	if filename == "" || filename == "." {
		return nil, domain.WrapError(domain.ErrInvalidInput, op, errors.New("filename is required"))
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := supportedExtensions[ext]; !ok {
		return nil, domain.WrapError(domain.ErrInvalidInput, op,
			fmt.Errorf("unsupported file type %q", ext))
	}

	now := time.Now().UTC()
	doc := &domain.Document{
		ID:          uuid.NewString(),
		Filename:    filename,
		FileType:    strings.TrimPrefix(ext, "."),
		MimeType:    mimeType,
		StoragePath: filename,
		Status:      domain.StatusUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := uc.storage.Save(ctx, doc.StoragePath, body); err != nil {
		return nil, domain.WrapError(domain.ErrUnavailable, op, fmt.Errorf("store file: %w", err))
	}
	if err := uc.repo.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("%s: create document record: %w", op, err)
	}

	if err := uc.queue.PublishDocumentIngested(ctx, doc.ID); err != nil {
		// The document is stored; the next full rebuild will index it even
		// without the event.
		return nil, domain.WrapError(domain.ErrTemporary, op,
			fmt.Errorf("publish ingestion event: %w", err))
	}

	return doc, nil
}

// GetDocument returns the metadata record for one document.
func (uc *IngestUseCase) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ingest.GetDocument", errors.New("id is required"))
	}
	return uc.repo.GetDocumentByID(ctx, id)
}
