package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MockProvider is an in-memory Provider for tests and the "mock" backend.
// ChatFunc wins over Err, which wins over Response. An empty Response
// echoes the last user message.
type MockProvider struct {
	Response string
	Err      error
	ChatFunc func(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	mu   sync.Mutex
	seen []ChatRequest
}

// Chat records req and answers it.
func (m *MockProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	m.mu.Lock()
	m.seen = append(m.seen, req)
	m.mu.Unlock()

	switch {
	case m.ChatFunc != nil:
		return m.ChatFunc(ctx, req)
	case m.Err != nil:
		return nil, m.Err
	}

	content := m.Response
	if content == "" {
		content = lastUserMessage(req.Messages)
	}
	prompt := 0
	for _, msg := range req.Messages {
		prompt += len(strings.Fields(msg.Content))
	}
	completion := len(strings.Fields(content))
	return &ChatResponse{
		Content: content,
		Model:   req.Model,
		Usage:   Usage{PromptTokens: prompt, CompletionTokens: completion, TotalTokens: prompt + completion},
	}, nil
}

// Requests returns a copy of every request received.
func (m *MockProvider) Requests() []ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ChatRequest(nil), m.seen...)
}

func lastUserMessage(msgs []Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == RoleUser {
			return msgs[i].Content
		}
	}
	return ""
}

// ScriptStep is one scripted outcome: Err if set, otherwise Content.
type ScriptStep struct {
	Content string
	Err     error
}

// ScriptedMockProvider plays back steps in order, one per Chat call, and
// fails once they run out.
type ScriptedMockProvider struct {
	mu    sync.Mutex
	steps []ScriptStep
	calls int
}

// NewScriptedMockProvider scripts a reply per response.
func NewScriptedMockProvider(responses ...string) *ScriptedMockProvider {
	s := &ScriptedMockProvider{}
	for _, r := range responses {
		s.steps = append(s.steps, ScriptStep{Content: r})
	}
	return s
}

func (s *ScriptedMockProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.steps) == 0 {
		return nil, fmt.Errorf("scripted mock: script exhausted after %d calls", s.calls-1)
	}
	step := s.steps[0]
	s.steps = s.steps[1:]
	if step.Err != nil {
		return nil, step.Err
	}
	n := len(strings.Fields(step.Content))
	return &ChatResponse{Content: step.Content, Model: req.Model, Usage: Usage{CompletionTokens: n, TotalTokens: n}}, nil
}

// AddStep appends to the script.
func (s *ScriptedMockProvider) AddStep(step ScriptStep) {
	s.mu.Lock()
	s.steps = append(s.steps, step)
	s.mu.Unlock()
}

// Calls counts Chat invocations, including failed ones.
func (s *ScriptedMockProvider) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

var (
	_ Provider = (*MockProvider)(nil)
	_ Provider = (*ScriptedMockProvider)(nil)
)
