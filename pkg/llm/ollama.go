package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultOllamaURL   = "http://localhost:11434"
	defaultOllamaModel = "llama3.1"
)

// OllamaProvider talks to a local Ollama server over its JSON chat API.
type OllamaProvider struct {
	backend  Backend
	endpoint string
	http     *http.Client
}

// NewOllama builds a provider. An empty base URL targets localhost.
func NewOllama(b Backend) *OllamaProvider {
	base := strings.TrimRight(b.BaseURL, "/")
	if base == "" {
		base = defaultOllamaURL
	}
	hc := b.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 120 * time.Second}
	}
	return &OllamaProvider{backend: b, endpoint: base + "/api/chat", http: hc}
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  *ollamaOptions `json:"options,omitempty"`
}

type ollamaReply struct {
	Model           string  `json:"model"`
	Message         Message `json:"message"`
	PromptEvalCount int     `json:"prompt_eval_count"`
	EvalCount       int     `json:"eval_count"`
	Error           string  `json:"error"`
}

// Chat implements Provider with a single non-streaming request.
func (p *OllamaProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	body := ollamaRequest{
		Model:    p.backend.PickModel(req.Model, defaultOllamaModel),
		Messages: req.Messages,
	}
	opts := ollamaOptions{Temperature: req.Temperature, NumPredict: req.MaxTokens}
	if opts.NumPredict <= 0 {
		opts.NumPredict = p.backend.MaxTokens
	}
	if opts != (ollamaOptions{}) {
		body.Options = &opts
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode ollama request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build ollama request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(httpReq)
	if err != nil {
		return nil, WrapError("ollama", 0, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, WrapError("ollama", 0, err)
	}
	var reply ollamaReply
	decodeErr := json.Unmarshal(raw, &reply)

	if resp.StatusCode != http.StatusOK {
		msg := reply.Error
		if decodeErr != nil || msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return nil, WrapError("ollama", resp.StatusCode, fmt.Errorf("ollama returned %d: %s", resp.StatusCode, msg))
	}
	if decodeErr != nil {
		return nil, WrapError("ollama", resp.StatusCode, fmt.Errorf("decode ollama reply: %w", decodeErr))
	}

	return &ChatResponse{
		Content: reply.Message.Content,
		Model:   reply.Model,
		Usage: Usage{
			PromptTokens:     reply.PromptEvalCount,
			CompletionTokens: reply.EvalCount,
			TotalTokens:      reply.PromptEvalCount + reply.EvalCount,
		},
	}, nil
}

var _ Provider = (*OllamaProvider)(nil)
