// Copyright 2026 © The Launcher Authors
// SPDX-License-Identifier: Apache-2.0

// Package assistant is the AI front-end of the launcher. It asks the
// enabled extensions first and answers directly from a high priority
// response; otherwise it hands the query, the launcher context and the
// extension hints to an LLM backend.
package assistant

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/launcher/pkg/config"
	"github.com/jllopis/launcher/pkg/core"
	"github.com/jllopis/launcher/pkg/errors"
	"github.com/jllopis/launcher/pkg/extension"
	"github.com/jllopis/launcher/pkg/llm"
	"github.com/jllopis/launcher/pkg/resilience"
	"github.com/jllopis/launcher/pkg/telemetry"
)

// DefaultDirectPriority is the response priority at or above which an
// extension answers without consulting the LLM.
const DefaultDirectPriority = 9

// QuotaMessage is the user-facing message for exhausted LLM quota.
const QuotaMessage = "AI usage limit reached. Please try again later."

var quotaPhrases = []string{
	"out of extra usage",
	"usage limit",
	"rate limit exceeded",
	"quota exceeded",
}

// Source tells where an answer came from.
type Source string

const (
	// SourceExtension means the top extension response was used verbatim.
	SourceExtension Source = "extension"
	// SourceLLM means the LLM produced the text.
	SourceLLM Source = "llm"
)

// Answer is the result of Ask.
type Answer struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Source Source `json:"source"`
	Model  string `json:"model,omitempty"`
	// Extensions holds every extension response, highest priority first.
	// A direct answer's actions are those of Extensions[0].
	Extensions []extension.Response `json:"extensions,omitempty"`
	Usage      *llm.Usage           `json:"usage,omitempty"`
}

// Querier is the part of the extension manager the assistant needs.
type Querier interface {
	QueryExtensions(ctx context.Context, query string, lc extension.LauncherContext) []extension.Response
}

// Assistant arbitrates between extension responses and an LLM.
type Assistant struct {
	querier  Querier
	provider llm.Provider
	name     string

	mu      sync.RWMutex
	cfg     config.AssistantConfig
	timeout time.Duration

	breaker *resilience.Breaker
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *telemetry.ExtensionMetrics
}

// Option configures an Assistant.
type Option func(*Assistant)

// WithConfig sets the arbitration and retry settings.
func WithConfig(cfg config.AssistantConfig) Option {
	return func(a *Assistant) {
		a.cfg = normalize(cfg)
	}
}

// WithTimeout bounds each LLM call. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(a *Assistant) {
		a.timeout = d
	}
}

// WithProviderName labels spans and errors with the backend name.
func WithProviderName(name string) Option {
	return func(a *Assistant) {
		a.name = name
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Assistant) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithTracer overrides the tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(a *Assistant) {
		if tracer != nil {
			a.tracer = tracer
		}
	}
}

// WithMetrics records LLM failures.
func WithMetrics(metrics *telemetry.ExtensionMetrics) Option {
	return func(a *Assistant) {
		a.metrics = metrics
	}
}

// WithBreaker replaces the circuit breaker guarding the LLM.
func WithBreaker(cb *resilience.Breaker) Option {
	return func(a *Assistant) {
		if cb != nil {
			a.breaker = cb
		}
	}
}

// New creates an assistant. provider may be nil, in which case only
// extension responses are returned.
func New(querier Querier, provider llm.Provider, opts ...Option) *Assistant {
	a := &Assistant{
		querier:  querier,
		provider: provider,
		cfg:      normalize(config.AssistantConfig{}),
		timeout:  60 * time.Second,
		logger:   slog.Default(),
		tracer:   otel.Tracer("launcher/assistant"),
	}
	a.breaker = resilience.NewBreaker(resilience.BreakerConfig{
		Name:          "assistant.llm",
		Threshold:     5,
		Cooldown:      30 * time.Second,
		Counts:        resilience.IsRecoverable,
		OnStateChange: a.breakerChanged,
	})
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func normalize(cfg config.AssistantConfig) config.AssistantConfig {
	if cfg.DirectPriority <= 0 {
		cfg.DirectPriority = DefaultDirectPriority
	}
	if cfg.MaxNotifications <= 0 {
		cfg.MaxNotifications = 5
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelayMs <= 0 {
		cfg.RetryDelayMs = 200
	}
	return cfg
}

// Update swaps the arbitration settings, typically on config reload.
// Queries in flight keep the settings they started with.
func (a *Assistant) Update(cfg config.AssistantConfig) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cfg = normalize(cfg)
}

// Config returns the current settings.
func (a *Assistant) Config() config.AssistantConfig {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg
}

// Ask answers query. Extensions are consulted first; a response whose
// priority reaches DirectPriority is returned as is. Otherwise the LLM is
// asked with the launcher context and the remaining responses as hints.
func (a *Assistant) Ask(ctx context.Context, query string, lc extension.LauncherContext) (*Answer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New(errors.CodeInvalidInput, "query is empty", nil)
	}

	a.mu.RLock()
	cfg := a.cfg
	a.mu.RUnlock()

	answer := &Answer{ID: uuid.NewString()}
	ctx, span := a.tracer.Start(ctx, "assistant.ask",
		trace.WithAttributes(telemetry.QueryAttributes(answer.ID, query, 0)...))
	defer span.End()

	answer.Extensions = a.querier.QueryExtensions(ctx, query, lc)

	if len(answer.Extensions) > 0 && answer.Extensions[0].Priority >= cfg.DirectPriority {
		a.fromExtension(answer)
		span.SetAttributes(telemetry.AnswerAttributes(answer.ID, string(answer.Source), "", "")...)
		a.logger.DebugContext(ctx, "answered by extension",
			"answer_id", answer.ID, "extension_id", answer.Extensions[0].ExtensionID)
		return answer, nil
	}

	if a.provider == nil {
		if len(answer.Extensions) == 0 {
			err := errors.New(errors.CodeLLMError, "no extension answered and no assistant backend is configured", nil)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		a.fromExtension(answer)
		span.SetAttributes(telemetry.AnswerAttributes(answer.ID, string(answer.Source), "", "")...)
		return answer, nil
	}

	resp, err := a.chat(ctx, cfg, query, lc, answer.Extensions)
	if err != nil {
		err = classify(err, a.name)
		a.metrics.RecordError(ctx, err, "assistant")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		a.logger.WarnContext(ctx, "assistant backend failed",
			"answer_id", answer.ID, "provider", a.name, "error", err)
		return nil, err
	}

	answer.Text = resp.Content
	answer.Source = SourceLLM
	answer.Model = resp.Model
	usage := resp.Usage
	answer.Usage = &usage
	span.SetAttributes(telemetry.AnswerAttributes(answer.ID, string(answer.Source), resp.Model, a.name)...)
	span.SetAttributes(attribute.Int("gen_ai.usage.total_tokens", resp.Usage.TotalTokens))
	return answer, nil
}

func (a *Assistant) fromExtension(answer *Answer) {
	answer.Text = answer.Extensions[0].Text
	answer.Source = SourceExtension
}

func (a *Assistant) chat(ctx context.Context, cfg config.AssistantConfig, query string, lc extension.LauncherContext, hints []extension.Response) (*llm.ChatResponse, error) {
	system := cfg.SystemPrompt
	if system == "" {
		system = BuildContextPrompt(lc, cfg.MaxNotifications)
	}
	messages := []llm.Message{{Role: llm.RoleSystem, Content: system}}
	if h := extensionHints(hints); h != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: h})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: query})
	req := llm.ChatRequest{Messages: messages}

	policy := resilience.DefaultPolicy()
	policy.Attempts = cfg.MaxRetries + 1
	policy.Backoff.Initial = time.Duration(cfg.RetryDelayMs) * time.Millisecond
	policy.Retryable = func(err error) bool {
		return !isQuota(err) && resilience.IsRecoverable(err)
	}
	policy.OnRetry = func(n int, err error, wait time.Duration) {
		a.logger.WarnContext(ctx, "retrying assistant backend", "backend", a.name, "retry", n, "wait", wait, "error", err)
	}

	return resilience.Retry(ctx, policy, func(ctx context.Context) (*llm.ChatResponse, error) {
		var resp *llm.ChatResponse
		err := a.breaker.Call(ctx, func(ctx context.Context) error {
			var err error
			resp, err = resilience.WithTimeoutResult(ctx, a.timeout, func(ctx context.Context) (*llm.ChatResponse, error) {
				return a.provider.Chat(ctx, req)
			})
			return err
		})
		return resp, err
	})
}

// classify maps quota exhaustion reported by any backend to
// errors.CodeRateLimit with a user-facing message.
func classify(err error, provider string) error {
	if !isQuota(err) {
		return err
	}
	le := errors.New(errors.CodeRateLimit, QuotaMessage, err)
	if provider != "" {
		le = le.WithContext("provider", provider)
	}
	return le
}

func isQuota(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range quotaPhrases {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

func (a *Assistant) breakerChanged(name string, from, to resilience.State) {
	a.logger.Info("assistant backend breaker changed", "breaker", name, "backend", a.name, "from", from.String(), "to", to.String())
}

// HealthChecker reports the backend state: degraded without a backend or
// while the breaker probes, unhealthy while it is open.
func (a *Assistant) HealthChecker() core.HealthChecker {
	return core.CheckFunc(func(context.Context) core.HealthResult {
		result := core.HealthResult{Status: core.HealthHealthy, Message: "backend " + a.name}
		if a.provider == nil {
			result.Status = core.HealthDegraded
			result.Message = "no assistant backend configured"
			return result
		}
		switch a.breaker.State() {
		case resilience.StateOpen:
			result.Status = core.HealthUnhealthy
			result.Message = "backend " + a.name + " circuit open"
		case resilience.StateHalfOpen:
			result.Status = core.HealthDegraded
			result.Message = "backend " + a.name + " recovering"
		}
		return result
	})
}
