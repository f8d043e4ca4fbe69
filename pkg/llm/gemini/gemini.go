// Copyright 2026 © The Launcher Authors
// SPDX-License-Identifier: Apache-2.0

// Package gemini answers assistant fallbacks with the Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/jllopis/launcher/pkg/llm"
)

// DefaultModel is used when neither the backend nor the request names one.
const DefaultModel = "gemini-2.5-flash"

// Provider implements llm.Provider.
type Provider struct {
	client  *genai.Client
	backend llm.Backend
}

// New builds a provider. An empty API key lets the SDK read GOOGLE_API_KEY
// or GEMINI_API_KEY.
func New(ctx context.Context, b llm.Backend) (*Provider, error) {
	cfg := &genai.ClientConfig{
		Backend:    genai.BackendGeminiAPI,
		APIKey:     b.APIKey,
		HTTPClient: b.HTTPClient,
	}
	if b.BaseURL != "" {
		cfg.HTTPOptions.BaseURL = b.BaseURL
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &Provider{client: client, backend: b}, nil
}

// Chat implements llm.Provider.
func (p *Provider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	system, turns := llm.SplitSystem(req.Messages)

	gen := &genai.GenerateContentConfig{}
	if system != "" {
		gen.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if req.Temperature > 0 {
		temp := float32(req.Temperature)
		gen.Temperature = &temp
	}
	limit := req.MaxTokens
	if limit <= 0 {
		limit = p.backend.MaxTokens
	}
	if limit > 0 {
		gen.MaxOutputTokens = int32(limit)
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.backend.PickModel(req.Model, DefaultModel), toContents(turns), gen)
	if err != nil {
		var apiErr genai.APIError
		status := 0
		if errors.As(err, &apiErr) {
			status = apiErr.Code
		}
		return nil, llm.WrapError("gemini", status, err)
	}
	return fromResponse(resp), nil
}

// toContents maps conversation turns; the assistant speaks as "model".
func toContents(turns []llm.Message) []*genai.Content {
	out := make([]*genai.Content, len(turns))
	for i, m := range turns {
		role := genai.Role(genai.RoleUser)
		if m.Role == llm.RoleAssistant {
			role = genai.RoleModel
		}
		out[i] = genai.NewContentFromText(m.Content, role)
	}
	return out
}

func fromResponse(resp *genai.GenerateContentResponse) *llm.ChatResponse {
	out := &llm.ChatResponse{}
	if resp == nil {
		return out
	}
	out.Model = resp.ModelVersion
	if u := resp.UsageMetadata; u != nil {
		out.Usage = llm.Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return out
	}
	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			text.WriteString(part.Text)
		}
	}
	out.Content = text.String()
	return out
}

var _ llm.Provider = (*Provider)(nil)
