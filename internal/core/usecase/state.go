package usecase

import (
	"sync"
	"time"

	"github.com/kirillkom/hybrid-rag/internal/core/domain"
	"github.com/kirillkom/hybrid-rag/internal/core/ports"
)

// IndexState owns the current vector index, keyword index and chunk set.
// It is the single mutation point for index data: the rebuild path swaps a
// fully built replacement in, readers take the read lock. The HTTP server
// accepts concurrent questions, so every access goes through the lock.
type IndexState struct {
	mu sync.RWMutex

	vector  ports.VectorIndex
	keyword ports.KeywordIndex
	chunks  []domain.Chunk
	byID    map[string]domain.Chunk

	corpusHash string
	builtAt    time.Time
}

func NewIndexState() *IndexState {
	return &IndexState{byID: map[string]domain.Chunk{}}
}

// Swap replaces the complete index state. A nil vector or keyword index
// marks that retrieval path unavailable; search degrades accordingly.
func (s *IndexState) Swap(vector ports.VectorIndex, keyword ports.KeywordIndex, chunks []domain.Chunk, corpusHash string) {
	byID := make(map[string]domain.Chunk, len(chunks))
	for _, c := range chunks {
		byID[c.ID] = c
	}

	s.mu.Lock()
	old := s.keyword
	s.vector = vector
	s.keyword = keyword
	s.chunks = chunks
	s.byID = byID
	s.corpusHash = corpusHash
	s.builtAt = time.Now().UTC()
	s.mu.Unlock()

	if old != nil && old != keyword {
		_ = old.Close()
	}
}

// VectorIndex returns the vector index, or false when it is unavailable.
func (s *IndexState) VectorIndex() (ports.VectorIndex, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vector, s.vector != nil
}

// KeywordIndex returns the keyword index, or false when it is unavailable.
func (s *IndexState) KeywordIndex() (ports.KeywordIndex, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.keyword, s.keyword != nil
}

// Chunks returns the corpus chunk list in document order.
func (s *IndexState) Chunks() []domain.Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chunks
}

// ChunkByID resolves an index hit back to its chunk.
func (s *IndexState) ChunkByID(id string) (domain.Chunk, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byID[id]
	return c, ok
}

// CorpusHash returns the fingerprint the current state was built from.
func (s *IndexState) CorpusHash() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.corpusHash
}

// Stats summarizes the state for the stats surface.
func (s *IndexState) Stats() (chunkCount, vectorCount, keywordCount int, builtAt time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chunkCount = len(s.chunks)
	if s.vector != nil {
		vectorCount = s.vector.Count()
	}
	if s.keyword != nil {
		keywordCount = s.keyword.Count()
	}
	return chunkCount, vectorCount, keywordCount, s.builtAt
}
