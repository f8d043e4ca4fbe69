package assistant

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/jllopis/launcher/pkg/config"
	"github.com/jllopis/launcher/pkg/errors"
	"github.com/jllopis/launcher/pkg/llm"
	"github.com/jllopis/launcher/pkg/llm/anthropic"
	"github.com/jllopis/launcher/pkg/llm/gemini"
	"github.com/jllopis/launcher/pkg/llm/openai"
)

// NewProvider builds the backend named by cfg.Provider. It returns a nil
// provider for "none" or an empty name.
func NewProvider(ctx context.Context, cfg config.LLMConfig) (llm.Provider, error) {
	backend := llm.Backend{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, Model: cfg.Model, MaxTokens: cfg.MaxTokens}
	if cfg.TimeoutSeconds > 0 {
		backend.HTTPClient = &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second}
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "none":
		return nil, nil
	case "ollama":
		return llm.NewOllama(backend), nil
	case "openai":
		return openai.New(backend), nil
	case "anthropic", "claude":
		return anthropic.New(backend), nil
	case "gemini", "google":
		p, err := gemini.New(ctx, backend)
		if err != nil {
			return nil, errors.New(errors.CodeLLMError, "gemini client", err)
		}
		return p, nil
	case "mock":
		reply := cfg.Model
		if reply == "" {
			reply = "mock response"
		}
		return &llm.MockProvider{Response: reply}, nil
	default:
		return nil, errors.Newf(errors.CodeInvalidInput, "unknown llm provider %q", cfg.Provider).
			WithContext("provider", cfg.Provider)
	}
}
