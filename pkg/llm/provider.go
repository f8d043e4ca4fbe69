// Package llm defines the chat interface the assistant falls back to when
// no extension answers directly, plus an Ollama client and test doubles.
// SDK-backed providers live in subpackages.
package llm

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/jllopis/launcher/pkg/errors"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single unit of communication.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatRequest encapsulates the input for the LLM.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// ChatResponse encapsulates the output from the LLM.
type ChatResponse struct {
	Content string `json:"content"`
	Model   string `json:"model,omitempty"`
	Usage   Usage  `json:"usage"`
}

// Usage tracks token consumption.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Provider defines the interface for interacting with LLM backends.
type Provider interface {
	// Chat sends a chat request to the LLM and returns the response.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// WrapError classifies a provider failure. status is the HTTP status when
// known, 0 otherwise. 429 and 5xx are recoverable; so are transport errors.
func WrapError(provider string, status int, err error) error {
	if err == nil {
		return nil
	}
	var le *errors.LauncherError
	if stderrors.As(err, &le) {
		return err
	}

	var out *errors.LauncherError
	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		out = errors.New(errors.CodeTimeout, provider+" request timed out", err)
	case stderrors.Is(err, context.Canceled):
		out = errors.New(errors.CodeContextLost, provider+" request cancelled", err)
	case status == http.StatusTooManyRequests:
		out = errors.New(errors.CodeRateLimit, provider+" rate limited", err).WithRecoverable(true)
	case status >= 500 || status == 0:
		out = errors.New(errors.CodeLLMError, provider+" request failed", err).WithRecoverable(true)
	default:
		out = errors.New(errors.CodeLLMError, provider+" request rejected", err)
	}
	out = out.WithContext("provider", provider)
	if status != 0 {
		out = out.WithContext("status", status)
	}
	return out
}
