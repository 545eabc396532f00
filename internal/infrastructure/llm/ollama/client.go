package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/hybrid-rag/internal/core/domain"
	"github.com/kirillkom/hybrid-rag/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	genModel   string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, genModel string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		executor:   executor,
	}
}

// Complete runs one non-streaming generation with the request's sampling
// parameters. Transient failures are retried by the shared executor.
func (c *Client) Complete(ctx context.Context, req domain.CompletionRequest) (string, error) {
	payload := map[string]any{
		"model":   c.genModel,
		"prompt":  req.Prompt,
		"stream":  false,
		"options": samplingOptions(req),
	}

	var text string
	call := func(callCtx context.Context) error {
		var response struct {
			Response string `json:"response"`
		}
		if err := c.postJSON(callCtx, "/api/generate", payload, &response, "generate"); err != nil {
			return err
		}
		text = strings.TrimSpace(response.Response)
		return nil
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "ollama.generate", call, classifyModelError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", wrapTemporaryIfNeeded("generate", err)
	}
	return text, nil
}

// Stream generates with stream=true, forwarding each fragment to emit and
// returning the accumulated text. Streaming is never retried: fragments
// already reached the caller, so a retry would duplicate output.
func (c *Client) Stream(ctx context.Context, req domain.CompletionRequest, emit func(delta string) error) (string, error) {
	payload := map[string]any{
		"model":   c.genModel,
		"prompt":  req.Prompt,
		"stream":  true,
		"options": samplingOptions(req),
	}

	var answer strings.Builder
	err := c.postNDJSON(ctx, "/api/generate", payload, "generate", func(line json.RawMessage) (bool, error) {
		var fragment struct {
			Response string `json:"response"`
			Done     bool   `json:"done"`
		}
		if err := json.Unmarshal(line, &fragment); err != nil {
			return false, err
		}
		if fragment.Response != "" {
			answer.WriteString(fragment.Response)
			if emit != nil {
				if err := emit(fragment.Response); err != nil {
					return false, err
				}
			}
		}
		return fragment.Done, nil
	})
	if err != nil {
		return "", wrapTemporaryIfNeeded("generate", err)
	}
	return strings.TrimSpace(answer.String()), nil
}

func samplingOptions(req domain.CompletionRequest) map[string]any {
	options := map[string]any{}
	if req.Temperature > 0 {
		options["temperature"] = req.Temperature
	}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}
	if req.ContextWindow > 0 {
		options["num_ctx"] = req.ContextWindow
	}
	return options
}
