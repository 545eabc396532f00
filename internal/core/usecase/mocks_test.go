package usecase

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/kirillkom/hybrid-rag/internal/core/domain"
	"github.com/kirillkom/hybrid-rag/internal/core/ports"
)

// scriptedChat replays canned completions in order and records every prompt.
type scriptedChat struct {
	mu        sync.Mutex
	responses []string
	err       error

	streamText string
	streamErr  error

	prompts []string
}

func (c *scriptedChat) Complete(_ context.Context, req domain.CompletionRequest) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prompts = append(c.prompts, req.Prompt)
	if c.err != nil {
		return "", c.err
	}
	if len(c.responses) == 0 {
		return "", nil
	}
	response := c.responses[0]
	c.responses = c.responses[1:]
	return response, nil
}

func (c *scriptedChat) Stream(_ context.Context, req domain.CompletionRequest, emit func(string) error) (string, error) {
	c.mu.Lock()
	c.prompts = append(c.prompts, req.Prompt)
	c.mu.Unlock()
	if c.streamErr != nil {
		return "", c.streamErr
	}
	if emit != nil {
		if err := emit(c.streamText); err != nil {
			return "", err
		}
	}
	return c.streamText, nil
}

func (c *scriptedChat) promptCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.prompts)
}

type fakeEmbedder struct {
	dim int
	err error

	mu         sync.Mutex
	embedCalls int
}

func (e *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.embedCalls++
	e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, e.dim)
		out[i][0] = float32(len(texts[i]))
	}
	return out, nil
}

func (e *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// fakeVectorIndex replays preset hits; each Search call consumes the next k
// so multi-variant searches see distinct result pages.
type fakeVectorIndex struct {
	ids       []string
	hits      []ports.VectorHit
	cursor    int
	searchErr error
	savedTo   string
}

func (f *fakeVectorIndex) Add(ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids/vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}
	f.ids = append(f.ids, ids...)
	return nil
}

func (f *fakeVectorIndex) Search(_ []float32, k int) ([]ports.VectorHit, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	start := f.cursor
	if start > len(f.hits) {
		start = len(f.hits)
	}
	end := start + k
	if end > len(f.hits) {
		end = len(f.hits)
	}
	f.cursor = end
	return f.hits[start:end], nil
}

func (f *fakeVectorIndex) Merge(other ports.VectorIndex) error {
	o, ok := other.(*fakeVectorIndex)
	if !ok {
		return fmt.Errorf("merge of incompatible index %T", other)
	}
	f.ids = append(f.ids, o.ids...)
	return nil
}

func (f *fakeVectorIndex) Count() int { return len(f.ids) }

func (f *fakeVectorIndex) Save(path string) error {
	f.savedTo = path
	return nil
}

type fakeVectorFactory struct {
	created []*fakeVectorIndex
	loaded  *fakeVectorIndex
	loadErr error
}

func (f *fakeVectorFactory) New() ports.VectorIndex {
	idx := &fakeVectorIndex{}
	f.created = append(f.created, idx)
	return idx
}

func (f *fakeVectorFactory) Load(string) (ports.VectorIndex, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.loaded, nil
}

type fakeKeywordIndex struct {
	hits      []ports.KeywordHit
	searchErr error
	count     int
	closed    bool
	queries   []string
}

func (f *fakeKeywordIndex) Search(_ context.Context, query string, k int) ([]ports.KeywordHit, error) {
	f.queries = append(f.queries, query)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if k > len(f.hits) {
		k = len(f.hits)
	}
	return f.hits[:k], nil
}

func (f *fakeKeywordIndex) Count() int { return f.count }

func (f *fakeKeywordIndex) Close() error {
	f.closed = true
	return nil
}

type fakeKeywordFactory struct {
	err   error
	built *fakeKeywordIndex
}

func (f *fakeKeywordFactory) Build(chunks []domain.Chunk) (ports.KeywordIndex, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.built = &fakeKeywordIndex{count: len(chunks)}
	return f.built, nil
}

type fakeSource struct {
	files       []string
	fingerprint string
	docs        map[string]*domain.ExtractedDocument
	extractErr  map[string]error
}

func (s *fakeSource) ListFiles(context.Context) ([]string, error) { return s.files, nil }

func (s *fakeSource) Fingerprint(context.Context) (string, error) { return s.fingerprint, nil }

func (s *fakeSource) Extract(_ context.Context, path string) (*domain.ExtractedDocument, error) {
	if err := s.extractErr[path]; err != nil {
		return nil, err
	}
	doc, ok := s.docs[path]
	if !ok {
		return nil, fmt.Errorf("no extraction scripted for %q", path)
	}
	return doc, nil
}

// wholeTextChunker emits each section as a single span.
type wholeTextChunker struct{}

func (wholeTextChunker) Split(text string) []domain.Span {
	return []domain.Span{{Text: text, Start: 0}}
}

type fakeRepo struct {
	mu sync.Mutex

	storedHash   string
	storedChunks []domain.Chunk
	storedDocs   []domain.Document
	replaceErr   error

	documents map[string]*domain.Document
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{documents: map[string]*domain.Document{}}
}

func (r *fakeRepo) EnsureSchema(context.Context) error { return nil }

func (r *fakeRepo) ReplaceCorpus(_ context.Context, docs []domain.Document, chunks []domain.Chunk, corpusHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.replaceErr != nil {
		return r.replaceErr
	}
	r.storedDocs = docs
	r.storedChunks = chunks
	r.storedHash = corpusHash
	return nil
}

func (r *fakeRepo) LoadChunks(context.Context) ([]domain.Chunk, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.storedChunks, nil
}

func (r *fakeRepo) CorpusHash(context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.storedHash, nil
}

func (r *fakeRepo) CreateDocument(_ context.Context, doc *domain.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.documents[doc.ID] = doc
	return nil
}

func (r *fakeRepo) GetDocumentByID(_ context.Context, id string) (*domain.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.documents[id]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	return doc, nil
}

func (r *fakeRepo) UpdateDocumentStatus(_ context.Context, id string, status domain.DocumentStatus, errMessage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if doc, ok := r.documents[id]; ok {
		doc.Status = status
		doc.Error = errMessage
	}
	return nil
}

type fakeQueue struct {
	mu             sync.Mutex
	ingestedIDs   []string
	rebuiltHashes []string
	publishErr    error
	rebuildPubErr error
}

func (q *fakeQueue) PublishDocumentIngested(_ context.Context, documentID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.publishErr != nil {
		return q.publishErr
	}
	q.ingestedIDs = append(q.ingestedIDs, documentID)
	return nil
}

func (q *fakeQueue) SubscribeDocumentIngested(context.Context, func(context.Context, string) error) error {
	return nil
}

func (q *fakeQueue) PublishIndexRebuilt(_ context.Context, corpusHash string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.rebuildPubErr != nil {
		return q.rebuildPubErr
	}
	q.rebuiltHashes = append(q.rebuiltHashes, corpusHash)
	return nil
}

func (q *fakeQueue) SubscribeIndexRebuilt(context.Context, func(context.Context, string) error) error {
	return nil
}

type fakeStorage struct {
	mu    sync.Mutex
	saved map[string][]byte
	err   error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{saved: map[string][]byte{}}
}

func (s *fakeStorage) Save(_ context.Context, key string, data io.Reader) error {
	if s.err != nil {
		return s.err
	}
	content, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.saved[key] = content
	s.mu.Unlock()
	return nil
}

func (s *fakeStorage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	return nil, fmt.Errorf("open %q: not implemented", key)
}
