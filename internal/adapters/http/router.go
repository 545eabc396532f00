// Package httpadapter exposes the question answering pipeline and document
// ingestion over HTTP.
package httpadapter

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/hybrid-rag/internal/cache"
	"github.com/kirillkom/hybrid-rag/internal/config"
	"github.com/kirillkom/hybrid-rag/internal/core/domain"
	"github.com/kirillkom/hybrid-rag/internal/core/ports"
	"github.com/kirillkom/hybrid-rag/internal/core/usecase"
	"github.com/kirillkom/hybrid-rag/internal/observability/metrics"
)

// AskService is what the router needs from the question pipeline beyond the
// inbound port: runtime stats and cache introspection.
type AskService interface {
	ports.QuestionService
	Stats() usecase.Stats
	Cache() *cache.Cache
}

// DocumentFinder is the read side of the corpus repository.
type DocumentFinder interface {
	GetDocumentByID(ctx context.Context, id string) (*domain.Document, error)
}

type Router struct {
	cfg      config.Config
	askSvc   AskService
	ingestor ports.DocumentIngestor
	docs     DocumentFinder
	metrics  *metrics.HTTPServerMetrics
	service  string
}

func NewRouter(
	cfg config.Config,
	askSvc AskService,
	ingestor ports.DocumentIngestor,
	docs DocumentFinder,
	m *metrics.HTTPServerMetrics,
	service string,
) *Router {
	return &Router{
		cfg:      cfg,
		askSvc:   askSvc,
		ingestor: ingestor,
		docs:     docs,
		metrics:  m,
		service:  service,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/ask", rt.askQuestion)
	mux.HandleFunc("/v1/stats", rt.stats)
	mux.HandleFunc("/v1/cache", rt.cacheEndpoint)
	mux.HandleFunc("/v1/documents", rt.uploadDocument)
	mux.HandleFunc("/v1/documents/", rt.getDocumentByID)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.service, handler)
	}
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, 100*time.Millisecond)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) askQuestion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Question string `json:"question"`
		Stream   bool   `json:"stream"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
		return
	}

	if req.Stream || strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		rt.streamAnswer(w, r, req.Question)
		return
	}

	result, err := rt.askSvc.Ask(r.Context(), req.Question, nil)
	if err != nil {
		writeError(w, err)
		return
	}
	rt.recordAnswer(result)
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) recordAnswer(result *domain.AskResult) {
	if rt.metrics == nil || result == nil {
		return
	}
	rt.metrics.RecordCacheEvent(rt.service, result.Metrics.Cached)
	if result.Metrics.Cached {
		return
	}
	rt.metrics.RecordQuestion(
		rt.service,
		result.Metrics.Quality,
		result.Metrics.Complexity,
		result.Metrics.Docs,
		result.Metrics.ContextChars,
		time.Duration(result.Metrics.RetrievalMS)*time.Millisecond,
		time.Duration(result.Metrics.GenerationMS)*time.Millisecond,
	)
}

func (rt *Router) stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, rt.askSvc.Stats())
}

func (rt *Router) cacheEndpoint(w http.ResponseWriter, r *http.Request) {
	responseCache := rt.askSvc.Cache()
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{
			"size":        responseCache.Len(),
			"recent_keys": responseCache.RecentKeys(10),
		})
	case http.MethodDelete:
		responseCache.Clear()
		writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	doc, err := rt.ingestor.Upload(
		r.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) getDocumentByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	doc, err := rt.docs.GetDocumentByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}
