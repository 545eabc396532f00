package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadRetrievalDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("OLLAMA_EMBED_MODELS", "")
	t.Setenv("RAG_TOP_K", "")
	t.Setenv("RAG_CANDIDATE_FACTOR", "")
	t.Setenv("RAG_BROADEN_BELOW", "")
	t.Setenv("RAG_RERANK_MIN", "")
	t.Setenv("RAG_CONTEXT_BUDGET", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.RAGTopK != 6 {
		t.Fatalf("expected default top k 6, got %d", cfg.RAGTopK)
	}
	if cfg.RAGCandidateFactor != 2 {
		t.Fatalf("expected default candidate factor 2, got %d", cfg.RAGCandidateFactor)
	}
	if cfg.RAGBroadenBelow != 3 {
		t.Fatalf("expected default broaden threshold 3, got %d", cfg.RAGBroadenBelow)
	}
	if cfg.RAGRerankMin != 3 {
		t.Fatalf("expected default rerank min 3, got %d", cfg.RAGRerankMin)
	}
	if cfg.RAGContextBudget != 3000 {
		t.Fatalf("expected default context budget 3000, got %d", cfg.RAGContextBudget)
	}
	if len(cfg.OllamaEmbedModels) != 3 || cfg.OllamaEmbedModels[0] != "mxbai-embed-large" {
		t.Fatalf("unexpected default embed models %v", cfg.OllamaEmbedModels)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("RAG_TOP_K", "10")
	t.Setenv("OLLAMA_EMBED_MODELS", "custom-embed, second-embed")
	t.Setenv("GENERATE_TEMPERATURE", "0.7")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.RAGTopK != 10 {
		t.Fatalf("expected top k 10, got %d", cfg.RAGTopK)
	}
	if len(cfg.OllamaEmbedModels) != 2 || cfg.OllamaEmbedModels[1] != "second-embed" {
		t.Fatalf("unexpected embed models %v", cfg.OllamaEmbedModels)
	}
	if cfg.GenerateTemperature != 0.7 {
		t.Fatalf("expected generate temperature 0.7, got %v", cfg.GenerateTemperature)
	}
}

func TestLoadFileOverlayAndEnvPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "api_port: \"9999\"\nrag_top_k: 12\nchunk_size: 500\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("RAG_TOP_K", "8")
	t.Setenv("API_PORT", "")
	t.Setenv("CHUNK_SIZE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIPort != "9999" {
		t.Fatalf("expected api port from file, got %q", cfg.APIPort)
	}
	if cfg.ChunkSize != 500 {
		t.Fatalf("expected chunk size from file, got %d", cfg.ChunkSize)
	}
	if cfg.RAGTopK != 8 {
		t.Fatalf("env should override file, got %d", cfg.RAGTopK)
	}
}

func TestLoadBadFileFails(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}
