// Package keyword provides the BM25-style lexical index over chunk content,
// built in memory from the persisted chunk set on every load.
package keyword

import (
	"context"
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"

	"github.com/kirillkom/hybrid-rag/internal/core/domain"
	"github.com/kirillkom/hybrid-rag/internal/core/ports"
)

const indexBatchSize = 500

type chunkDocument struct {
	Content string `json:"content"`
}

// Index wraps a memory-only bleve index. Memory-only avoids on-disk index
// locking between the api and worker processes; each process rebuilds its
// own copy from the chunk set.
type Index struct {
	index bleve.Index
	count int
}

// Build indexes the chunk contents under their chunk IDs.
func Build(chunks []domain.Chunk) (*Index, error) {
	im := bleve.NewIndexMapping()

	// Standard analyzer: lowercase and tokenize without stemming, so query
	// terms match document words exactly.
	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = standard.Name

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("content", textField)
	im.DefaultMapping = docMapping

	index, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, fmt.Errorf("create keyword index: %w", err)
	}

	batch := index.NewBatch()
	for i, chunk := range chunks {
		if err := batch.Index(chunk.ID, chunkDocument{Content: chunk.Content}); err != nil {
			index.Close()
			return nil, fmt.Errorf("index chunk %s: %w", chunk.ID, err)
		}
		if batch.Size() >= indexBatchSize || i == len(chunks)-1 {
			if err := index.Batch(batch); err != nil {
				index.Close()
				return nil, fmt.Errorf("flush keyword batch: %w", err)
			}
			batch = index.NewBatch()
		}
	}

	return &Index{index: index, count: len(chunks)}, nil
}

func (b *Index) Search(ctx context.Context, query string, k int) ([]ports.KeywordHit, error) {
	if k <= 0 {
		return nil, nil
	}

	request := bleve.NewSearchRequest(bleve.NewMatchQuery(query))
	request.Size = k

	result, err := b.index.SearchInContext(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}

	hits := make([]ports.KeywordHit, 0, len(result.Hits))
	for _, hit := range result.Hits {
		hits = append(hits, ports.KeywordHit{ChunkID: hit.ID, Score: hit.Score})
	}
	return hits, nil
}

func (b *Index) Count() int {
	return b.count
}

func (b *Index) Close() error {
	return b.index.Close()
}

// Factory adapts Build to the index factory port.
type Factory struct{}

func (Factory) Build(chunks []domain.Chunk) (ports.KeywordIndex, error) {
	return Build(chunks)
}
