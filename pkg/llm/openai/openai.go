// Copyright 2026 © The Launcher Authors
// SPDX-License-Identifier: Apache-2.0

// Package openai answers assistant fallbacks with the OpenAI chat
// completions API or any compatible endpoint.
package openai

import (
	"context"
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/jllopis/launcher/pkg/llm"
)

// DefaultModel is used when neither the backend nor the request names one.
const DefaultModel = "gpt-5-mini"

// Provider implements llm.Provider.
type Provider struct {
	client  openai.Client
	backend llm.Backend
}

// New builds a provider. An empty API key lets the SDK read OPENAI_API_KEY.
func New(b llm.Backend) *Provider {
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
	return &Provider{client: openai.NewClient(opts...), backend: b}
}

// Chat implements llm.Provider.
func (p *Provider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(p.backend.PickModel(req.Model, DefaultModel)),
		Messages: toMessages(req.Messages),
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	limit := req.MaxTokens
	if limit <= 0 {
		limit = p.backend.MaxTokens
	}
	if limit > 0 {
		params.MaxCompletionTokens = openai.Int(int64(limit))
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		status := 0
		if errors.As(err, &apiErr) {
			status = apiErr.StatusCode
		}
		return nil, llm.WrapError("openai", status, err)
	}

	out := &llm.ChatResponse{
		Model: completion.Model,
		Usage: llm.Usage{
			PromptTokens:     int(completion.Usage.PromptTokens),
			CompletionTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:      int(completion.Usage.TotalTokens),
		},
	}
	if len(completion.Choices) > 0 {
		out.Content = completion.Choices[0].Message.Content
	}
	return out, nil
}

func toMessages(msgs []llm.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, len(msgs))
	for i, m := range msgs {
		switch m.Role {
		case llm.RoleSystem:
			out[i] = openai.SystemMessage(m.Content)
		case llm.RoleAssistant:
			out[i] = openai.AssistantMessage(m.Content)
		default:
			out[i] = openai.UserMessage(m.Content)
		}
	}
	return out
}

var _ llm.Provider = (*Provider)(nil)
