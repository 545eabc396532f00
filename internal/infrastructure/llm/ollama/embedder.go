package ollama

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Embedder embeds via the first working model from a candidate list. The
// model chosen at Init stays fixed for the process lifetime, so all stored
// vectors share one embedding space.
type Embedder struct {
	client     *Client
	candidates []string

	mu    sync.RWMutex
	model string
}

func NewEmbedder(client *Client, candidates []string) *Embedder {
	return &Embedder{client: client, candidates: candidates}
}

// Init probes the candidate models in order and selects the first one that
// answers an embedding request. It must succeed before any Embed call.
func (e *Embedder) Init(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.model != "" {
		return nil
	}

	var lastErr error
	for _, candidate := range e.candidates {
		if _, err := e.embedWith(ctx, candidate, []string{"probe"}); err != nil {
			slog.Warn("embedding model unavailable", "model", candidate, "error", err)
			lastErr = err
			continue
		}
		e.model = candidate
		slog.Info("embedding model selected", "model", candidate)
		return nil
	}
	if lastErr == nil {
		return fmt.Errorf("no embedding model candidates configured")
	}
	return fmt.Errorf("no embedding model available: %w", lastErr)
}

// Model returns the selected embedding model name, empty before Init.
func (e *Embedder) Model() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.model
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	model := e.Model()
	if model == "" {
		return nil, fmt.Errorf("embedder not initialized")
	}
	return e.embedWith(ctx, model, texts)
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

func (e *Embedder) embedWith(ctx context.Context, model string, texts []string) ([][]float32, error) {
	payload := map[string]any{
		"model": model,
		"input": texts,
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	call := func(callCtx context.Context) error {
		return e.client.postJSON(callCtx, "/api/embed", payload, &response, "embed")
	}

	var err error
	if e.client.executor != nil {
		err = e.client.executor.Execute(ctx, "ollama.embed", call, classifyModelError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, wrapTemporaryIfNeeded("embed", err)
	}
	if len(response.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embed returned %d vectors for %d inputs", len(response.Embeddings), len(texts))
	}
	return response.Embeddings, nil
}
