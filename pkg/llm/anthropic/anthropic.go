// Copyright 2026 © The Launcher Authors
// SPDX-License-Identifier: Apache-2.0

// Package anthropic answers assistant fallbacks with the Anthropic
// Messages API.
package anthropic

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/jllopis/launcher/pkg/llm"
)

const (
	// DefaultModel is used when neither the backend nor the request names one.
	DefaultModel = "claude-sonnet-4-20250514"
	// DefaultMaxTokens bounds replies; the API requires a limit.
	DefaultMaxTokens = 1024
)

// Provider implements llm.Provider.
type Provider struct {
	client  anthropic.Client
	backend llm.Backend
}

// New builds a provider. An empty API key lets the SDK read
// ANTHROPIC_API_KEY.
func New(b llm.Backend) *Provider {
	if b.MaxTokens <= 0 {
		b.MaxTokens = DefaultMaxTokens
	}
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if b.APIKey != "" {
		opts = append(opts, option.WithAPIKey(b.APIKey))
	}
	if b.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(b.BaseURL))
	}
	if b.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(b.HTTPClient))
	}
	return &Provider{client: anthropic.NewClient(opts...), backend: b}
}

// Chat implements llm.Provider. System messages become the system prompt.
func (p *Provider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	system, turns := llm.SplitSystem(req.Messages)

	limit := req.MaxTokens
	if limit <= 0 {
		limit = p.backend.MaxTokens
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.backend.PickModel(req.Model, DefaultModel)),
		MaxTokens: int64(limit),
		Messages:  make([]anthropic.MessageParam, len(turns)),
	}
	for i, m := range turns {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == llm.RoleAssistant {
			params.Messages[i] = anthropic.NewAssistantMessage(block)
		} else {
			params.Messages[i] = anthropic.NewUserMessage(block)
		}
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		status := 0
		if errors.As(err, &apiErr) {
			status = apiErr.StatusCode
		}
		return nil, llm.WrapError("anthropic", status, err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	in, out := int(msg.Usage.InputTokens), int(msg.Usage.OutputTokens)
	return &llm.ChatResponse{
		Content: text.String(),
		Model:   string(msg.Model),
		Usage:   llm.Usage{PromptTokens: in, CompletionTokens: out, TotalTokens: in + out},
	}, nil
}

var _ llm.Provider = (*Provider)(nil)
