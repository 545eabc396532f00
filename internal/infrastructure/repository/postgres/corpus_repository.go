// Package postgres persists documents, chunks and the corpus fingerprint.
// The database is the source of truth the api process reloads from after a
// worker rebuild.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/hybrid-rag/internal/core/domain"
)

type CorpusRepository struct {
	db *sql.DB
}

func NewCorpusRepository(db *sql.DB) *CorpusRepository {
	return &CorpusRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *CorpusRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083001)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	filename TEXT NOT NULL UNIQUE,
	file_type TEXT NOT NULL,
	mime_type TEXT NOT NULL DEFAULT '',
	storage_path TEXT NOT NULL,
	pages INTEGER NOT NULL DEFAULT 0,
	chunk_count INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS chunks (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	source TEXT NOT NULL,
	page INTEGER NOT NULL DEFAULT 0,
	file_type TEXT NOT NULL DEFAULT '',
	start_offset INTEGER NOT NULL DEFAULT 0,
	chunk_index INTEGER NOT NULL DEFAULT 0,
	content TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chunks_document_id ON chunks(document_id);
CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);

CREATE TABLE IF NOT EXISTS corpus_state (
	id SMALLINT PRIMARY KEY CHECK (id = 1),
	corpus_hash TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// ReplaceCorpus swaps the persisted corpus for the given one in a single
// transaction. Documents are upserted by filename so a record created at
// upload time keeps its ID across rebuilds; chunk document references are
// remapped to the surviving IDs.
func (r *CorpusRepository) ReplaceCorpus(ctx context.Context, docs []domain.Document, chunks []domain.Chunk, corpusHash string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin corpus tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := deleteStaleDocuments(ctx, tx, docs); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks`); err != nil {
		return fmt.Errorf("clear chunks: %w", err)
	}

	idByOriginal := make(map[string]string, len(docs))
	for _, doc := range docs {
		var persistedID string
		err := tx.QueryRowContext(ctx, `
INSERT INTO documents (id, filename, file_type, mime_type, storage_path, pages, chunk_count, status, error_message, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (filename) DO UPDATE SET
	file_type = EXCLUDED.file_type,
	pages = EXCLUDED.pages,
	chunk_count = EXCLUDED.chunk_count,
	status = EXCLUDED.status,
	error_message = EXCLUDED.error_message,
	updated_at = EXCLUDED.updated_at
RETURNING id
`,
			doc.ID, doc.Filename, doc.FileType, doc.MimeType, doc.StoragePath,
			doc.Pages, doc.ChunkCount, string(doc.Status), doc.Error, doc.CreatedAt, doc.UpdatedAt,
		).Scan(&persistedID)
		if err != nil {
			return fmt.Errorf("upsert document %s: %w", doc.Filename, err)
		}
		idByOriginal[doc.ID] = persistedID
	}

	for _, chunk := range chunks {
		documentID, ok := idByOriginal[chunk.DocumentID]
		if !ok {
			return fmt.Errorf("chunk %s references unknown document %s", chunk.ID, chunk.DocumentID)
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO chunks (id, document_id, source, page, file_type, start_offset, chunk_index, content)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`,
			chunk.ID, documentID, chunk.Source, chunk.Page, chunk.FileType,
			chunk.StartOffset, chunk.ChunkIndex, chunk.Content,
		); err != nil {
			return fmt.Errorf("insert chunk %s: %w", chunk.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO corpus_state (id, corpus_hash, updated_at)
VALUES (1, $1, $2)
ON CONFLICT (id) DO UPDATE SET corpus_hash = EXCLUDED.corpus_hash, updated_at = EXCLUDED.updated_at
`, corpusHash, time.Now().UTC()); err != nil {
		return fmt.Errorf("save corpus hash: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit corpus tx: %w", err)
	}
	return nil
}

func deleteStaleDocuments(ctx context.Context, tx *sql.Tx, docs []domain.Document) error {
	if len(docs) == 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM documents`); err != nil {
			return fmt.Errorf("clear documents: %w", err)
		}
		return nil
	}

	filenames := make([]string, len(docs))
	for i, doc := range docs {
		filenames[i] = doc.Filename
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE filename != ALL($1::text[])`, pgTextArray(filenames)); err != nil {
		return fmt.Errorf("delete stale documents: %w", err)
	}
	return nil
}

// pgTextArray renders values as a postgres text[] literal for the stdlib
// driver, which cannot bind Go slices directly.
func pgTextArray(values []string) string {
	escaper := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	var b strings.Builder
	b.WriteByte('{')
	for i, v := range values {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(escaper.Replace(v))
		b.WriteByte('"')
	}
	b.WriteByte('}')
	return b.String()
}

func (r *CorpusRepository) LoadChunks(ctx context.Context) ([]domain.Chunk, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, document_id, source, page, file_type, start_offset, chunk_index, content
FROM chunks
ORDER BY source, chunk_index
`)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk
	for rows.Next() {
		var c domain.Chunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Source, &c.Page, &c.FileType, &c.StartOffset, &c.ChunkIndex, &c.Content); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}
	return chunks, nil
}

// CorpusHash returns the stored fingerprint, or empty when no corpus has
// ever been persisted.
func (r *CorpusRepository) CorpusHash(ctx context.Context) (string, error) {
	var hash string
	err := r.db.QueryRowContext(ctx, `SELECT corpus_hash FROM corpus_state WHERE id = 1`).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query corpus hash: %w", err)
	}
	return hash, nil
}

func (r *CorpusRepository) CreateDocument(ctx context.Context, doc *domain.Document) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO documents (id, filename, file_type, mime_type, storage_path, pages, chunk_count, status, error_message, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (filename) DO UPDATE SET
	mime_type = EXCLUDED.mime_type,
	status = EXCLUDED.status,
	error_message = EXCLUDED.error_message,
	updated_at = EXCLUDED.updated_at
`,
		doc.ID, doc.Filename, doc.FileType, doc.MimeType, doc.StoragePath,
		doc.Pages, doc.ChunkCount, string(doc.Status), doc.Error, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *CorpusRepository) GetDocumentByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, filename, file_type, mime_type, storage_path, pages, chunk_count, status, error_message, created_at, updated_at
FROM documents
WHERE id = $1
`, id)

	var doc domain.Document
	var status string
	err := row.Scan(
		&doc.ID, &doc.Filename, &doc.FileType, &doc.MimeType, &doc.StoragePath,
		&doc.Pages, &doc.ChunkCount, &status, &doc.Error, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "postgres.GetDocumentByID", fmt.Errorf("id %s", id))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	doc.Status = domain.DocumentStatus(status)
	return &doc, nil
}

func (r *CorpusRepository) UpdateDocumentStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, "postgres.UpdateDocumentStatus", fmt.Errorf("id %s", id))
	}
	return nil
}
