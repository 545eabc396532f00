package httpadapter

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/kirillkom/hybrid-rag/internal/core/domain"
)

// streamAnswer sends the answer as server-sent events: one "delta" event per
// generated fragment, a "result" event carrying sources and metrics, then a
// [DONE] terminator. Errors after the first delta arrive as an "error" event
// because the status line is already on the wire.
func (rt *Router) streamAnswer(w http.ResponseWriter, r *http.Request, question string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming is not supported by response writer"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	emit := func(delta string) error {
		return writeEvent(w, flusher, "delta", map[string]string{"text": delta})
	}

	result, err := rt.askSvc.Ask(r.Context(), question, emit)
	if err != nil {
		_ = writeEvent(w, flusher, "error", map[string]string{"error": err.Error()})
		return
	}
	rt.recordAnswer(result)

	final := struct {
		Sources []domain.TaggedResult `json:"sources,omitempty"`
		Metrics domain.AskMetrics     `json:"metrics"`
	}{
		Sources: result.Sources,
		Metrics: result.Metrics,
	}
	if err := writeEvent(w, flusher, "result", final); err != nil {
		return
	}

	_, _ = io.WriteString(w, "data: [DONE]\n\n")
	flusher.Flush()
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
